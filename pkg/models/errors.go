package models

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownNodeKind is returned for a node type outside the closed set.
	ErrUnknownNodeKind = errors.New("unknown node kind")

	// ErrInvalidNodeData indicates a payload that does not fit its node kind.
	ErrInvalidNodeData = errors.New("invalid node data")

	// ErrInvalidTrigger indicates a trigger value that does not fit its kind.
	ErrInvalidTrigger = errors.New("invalid trigger")

	// ErrCorruptFlow indicates a persisted flow that breaks a structural invariant.
	ErrCorruptFlow = errors.New("corrupt flow")
)

// CorruptFlowError describes which element of a persisted flow is malformed.
type CorruptFlowError struct {
	FlowID  string // Flow ID if known
	Element string // "node", "edge" or "document"
	ID      string // Offending element ID if any
	Reason  string
	Err     error // Underlying cause if any
}

func (e *CorruptFlowError) Error() string {
	msg := "corrupt flow"
	if e.FlowID != "" {
		msg += " " + e.FlowID
	}

	if e.ID != "" {
		msg += fmt.Sprintf(": %s %s", e.Element, e.ID)
	} else if e.Element != "" {
		msg += ": " + e.Element
	}

	msg += ": " + e.Reason
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}

	return msg
}

func (e *CorruptFlowError) Unwrap() error {
	return e.Err
}

// Is makes every CorruptFlowError match ErrCorruptFlow.
func (e *CorruptFlowError) Is(target error) bool {
	return target == ErrCorruptFlow
}

// IsCorruptFlow checks if an error indicates a malformed persisted flow.
func IsCorruptFlow(err error) bool {
	return errors.Is(err, ErrCorruptFlow)
}

// IsUnknownNodeKind checks if an error indicates an unknown node kind.
func IsUnknownNodeKind(err error) bool {
	return errors.Is(err, ErrUnknownNodeKind)
}
