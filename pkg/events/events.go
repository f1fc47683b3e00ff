// Package events defines the flow lifecycle notifications published on the event bus.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every flow lifecycle event.
const Topic = "chatflow.flows"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	FlowSavedEvent      EventType = "flow.saved"
	FlowDeletedEvent    EventType = "flow.deleted"
	FlowDuplicatedEvent EventType = "flow.duplicated"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	FlowID    string         `json:"flow_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, flowID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		FlowID:    flowID,
	}
}

// FlowSaved is published after a flow is created or updated.
type FlowSaved struct {
	BaseEvent

	Name      string `json:"name"`
	Trigger   string `json:"trigger"`
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
	Created   bool   `json:"created"`
}

func (e FlowSaved) GetType() EventType {
	return FlowSavedEvent
}

// FlowDeleted is published after a flow is removed.
type FlowDeleted struct {
	BaseEvent
}

func (e FlowDeleted) GetType() EventType {
	return FlowDeletedEvent
}

// FlowDuplicated is published after a flow is copied. FlowID is the copy.
type FlowDuplicated struct {
	BaseEvent

	SourceFlowID string `json:"source_flow_id"`
	Name         string `json:"name"`
}

func (e FlowDuplicated) GetType() EventType {
	return FlowDuplicatedEvent
}
