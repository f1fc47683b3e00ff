package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/chatflow/pkg/eventbus"
	"github.com/dukex/chatflow/pkg/events"
)

// FlowAuditLog records every flow lifecycle event it receives.
type FlowAuditLog struct {
	logger *slog.Logger
}

func NewFlowAuditLog(logger *slog.Logger) *FlowAuditLog {
	if logger == nil {
		logger = slog.Default()
	}

	return &FlowAuditLog{logger: logger.With("module", "flow_audit")}
}

// Register attaches the audit handlers to subscriber. The caller still has
// to call Subscribe on it.
func (a *FlowAuditLog) Register(subscriber eventbus.EventSubscriber) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.FlowSavedEvent:      a.handleSaved,
		events.FlowDeletedEvent:    a.handleDeleted,
		events.FlowDuplicatedEvent: a.handleDuplicated,
	}

	for eventType, handler := range handlers {
		if err := subscriber.Handle(eventType, handler); err != nil {
			return fmt.Errorf("failed to register %s handler: %w", eventType, err)
		}
	}

	return nil
}

func (a *FlowAuditLog) handleSaved(ctx context.Context, event any) error {
	saved, ok := event.(*events.FlowSaved)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	action := "updated"
	if saved.Created {
		action = "created"
	}

	a.logger.InfoContext(ctx, "Flow "+action,
		"flow_id", saved.FlowID,
		"name", saved.Name,
		"trigger", saved.Trigger,
		"nodes", saved.NodeCount,
		"edges", saved.EdgeCount)

	return nil
}

func (a *FlowAuditLog) handleDeleted(ctx context.Context, event any) error {
	deleted, ok := event.(*events.FlowDeleted)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	a.logger.InfoContext(ctx, "Flow deleted", "flow_id", deleted.FlowID)

	return nil
}

func (a *FlowAuditLog) handleDuplicated(ctx context.Context, event any) error {
	duplicated, ok := event.(*events.FlowDuplicated)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	a.logger.InfoContext(ctx, "Flow duplicated",
		"flow_id", duplicated.FlowID,
		"source_flow_id", duplicated.SourceFlowID,
		"name", duplicated.Name)

	return nil
}
