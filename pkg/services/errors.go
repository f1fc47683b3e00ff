// Package services implements the flow list and editing operations behind the API.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/chatflow/pkg/editor"
	"github.com/dukex/chatflow/pkg/graph"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/persistence"
)

var (
	// ErrInvalidRequest indicates a malformed request (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrFlowNil is returned when a nil flow is saved.
	ErrFlowNil = errors.New("flow cannot be nil")

	// ErrTemplatesUnavailable is returned when no template source is configured.
	ErrTemplatesUnavailable = errors.New("message templates are not available")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsValidationError checks if an error is a client error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrFlowNil) ||
		errors.Is(err, models.ErrInvalidNodeData) ||
		errors.Is(err, models.ErrUnknownNodeKind) ||
		errors.Is(err, models.ErrInvalidTrigger) ||
		errors.Is(err, editor.ErrNotMessageNode)
}

// IsNotFoundError checks if an error names a flow, node or edge that does not exist.
func IsNotFoundError(err error) bool {
	return persistence.IsFlowNotFound(err) ||
		errors.Is(err, graph.ErrNodeNotFound) ||
		errors.Is(err, graph.ErrEdgeNotFound)
}
