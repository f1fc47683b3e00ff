package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/chatflow/pkg/editor"
	"github.com/dukex/chatflow/pkg/eventbus"
	"github.com/dukex/chatflow/pkg/events"
	"github.com/dukex/chatflow/pkg/graph"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/persistence"
)

// Flow serves the flow list screen and applies edits to stored flows. Every
// edit loads the flow into an editor, mutates it and saves it back.
type Flow struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	editorOpts  []editor.Option
}

// NewFlow creates a flow service. publisher may be nil.
func NewFlow(
	persistence persistence.Persistence,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
	editorOpts ...editor.Option,
) *Flow {
	if logger == nil {
		logger = slog.Default()
	}

	return &Flow{
		persistence: persistence,
		publisher:   publisher,
		logger:      logger.With("module", "flow_service"),
		editorOpts:  append([]editor.Option{editor.WithLogger(logger)}, editorOpts...),
	}
}

// HealthCheck checks the health of the persistence layer.
func (f *Flow) HealthCheck(ctx context.Context) (string, bool) {
	if f.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := f.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns every stored flow.
func (f *Flow) List(ctx context.Context) ([]*models.Flow, error) {
	flows, err := f.persistence.FlowRepository().GetFlows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	return flows, nil
}

// FetchByID retrieves a flow by its ID.
func (f *Flow) FetchByID(ctx context.Context, id string) (*models.Flow, error) {
	return f.persistence.FlowRepository().GetFlow(ctx, id)
}

// Create saves a new flow seeded with a start node wired to a message node.
func (f *Flow) Create(ctx context.Context, name, description string) (*models.Flow, error) {
	ed, err := editor.NewFlow(f.persistence.FlowRepository(), f.editorOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to seed flow: %w", err)
	}
	defer ed.Close()

	if err := ed.SetName(name); err != nil {
		return nil, err
	}

	if err := ed.SetDescription(description); err != nil {
		return nil, err
	}

	created, err := ed.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create flow: %w", err)
	}

	f.publishSaved(ctx, created, true)

	return created, nil
}

// Replace stores a whole flow document under id. The document must load into
// a graph and its trigger must validate; the flow must already exist.
func (f *Flow) Replace(ctx context.Context, id string, flow *models.Flow) (*models.Flow, error) {
	if flow == nil {
		return nil, ErrFlowNil
	}

	if err := f.checkDocument(flow); err != nil {
		return nil, err
	}

	repo := f.persistence.FlowRepository()

	if _, err := repo.GetFlow(ctx, id); err != nil {
		return nil, err
	}

	doc := flow.Clone()
	doc.ID = id

	saved, err := repo.SaveFlow(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	f.publishSaved(ctx, saved, false)

	return saved, nil
}

func (f *Flow) checkDocument(flow *models.Flow) error {
	if err := graph.NewStore().Load(flow.Nodes, flow.Edges); err != nil {
		return NewValidationError("checkDocument", "INVALID_GRAPH", err.Error(), fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}

	if err := models.DecodeTrigger(flow.Trigger).Validate(); err != nil {
		return NewValidationError("checkDocument", "INVALID_TRIGGER", err.Error(), err)
	}

	return nil
}

// Delete removes a flow by its ID.
func (f *Flow) Delete(ctx context.Context, id string) error {
	if err := f.persistence.FlowRepository().DeleteFlow(ctx, id); err != nil {
		return err
	}

	f.publish(ctx, id, events.FlowDeleted{BaseEvent: events.NewBaseEvent(events.FlowDeletedEvent, id)})

	return nil
}

// Duplicate copies a flow under a new id.
func (f *Flow) Duplicate(ctx context.Context, id string) (*models.Flow, error) {
	copied, err := f.persistence.FlowRepository().DuplicateFlow(ctx, id)
	if err != nil {
		return nil, err
	}

	f.publish(ctx, copied.ID, events.FlowDuplicated{
		BaseEvent:    events.NewBaseEvent(events.FlowDuplicatedEvent, copied.ID),
		SourceFlowID: id,
		Name:         copied.Name,
	})

	return copied, nil
}

// AddNode appends a node of kind with its default payload.
func (f *Flow) AddNode(ctx context.Context, flowID string, kind models.NodeKind, position models.Position) (*models.Node, *models.Flow, error) {
	var node *models.Node

	saved, err := f.edit(ctx, flowID, func(ed *editor.Editor) (bool, error) {
		id, err := ed.AddNode(kind, position)
		if err != nil {
			return false, err
		}

		node, _ = ed.Node(id)

		return true, nil
	})
	if err != nil {
		return nil, nil, err
	}

	return node, saved, nil
}

// NodeUpdate is a partial node edit. Nil fields are left alone.
type NodeUpdate struct {
	Data     map[string]any
	Position *models.Position
	Template *models.MessageTemplate
}

// UpdateNode applies a template, a data patch and a move, in that order.
func (f *Flow) UpdateNode(ctx context.Context, flowID, nodeID string, update NodeUpdate) (*models.Node, *models.Flow, error) {
	var node *models.Node

	saved, err := f.edit(ctx, flowID, func(ed *editor.Editor) (bool, error) {
		if update.Template != nil {
			if err := ed.SelectTemplate(nodeID, *update.Template); err != nil {
				return false, err
			}
		}

		if len(update.Data) > 0 {
			if err := ed.UpdateNodeData(nodeID, update.Data); err != nil {
				return false, err
			}
		}

		if update.Position != nil {
			if err := ed.MoveNode(nodeID, *update.Position); err != nil {
				return false, err
			}
		}

		var ok bool
		if node, ok = ed.Node(nodeID); !ok {
			return false, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, nodeID)
		}

		return true, nil
	})
	if err != nil {
		return nil, nil, err
	}

	return node, saved, nil
}

// RemoveNode deletes a node and its edges.
func (f *Flow) RemoveNode(ctx context.Context, flowID, nodeID string) (*models.Flow, error) {
	return f.edit(ctx, flowID, func(ed *editor.Editor) (bool, error) {
		return true, ed.RemoveNode(nodeID)
	})
}

// Connect proposes source -> target. A rejected edge returns accepted ==
// false and leaves the stored flow untouched.
func (f *Flow) Connect(ctx context.Context, flowID, source, target string) (*models.Edge, bool, error) {
	var edge *models.Edge

	_, err := f.edit(ctx, flowID, func(ed *editor.Editor) (bool, error) {
		var (
			accepted bool
			err      error
		)

		edge, accepted, err = ed.ProposeEdge(source, target)

		return accepted, err
	})
	if err != nil {
		return nil, false, err
	}

	return edge, edge != nil, nil
}

// Disconnect removes an edge.
func (f *Flow) Disconnect(ctx context.Context, flowID, edgeID string) (*models.Flow, error) {
	return f.edit(ctx, flowID, func(ed *editor.Editor) (bool, error) {
		return true, ed.RemoveEdge(edgeID)
	})
}

// SetTrigger replaces the flow-level trigger.
func (f *Flow) SetTrigger(ctx context.Context, flowID string, trigger models.TriggerConfig) (*models.Flow, error) {
	return f.edit(ctx, flowID, func(ed *editor.Editor) (bool, error) {
		return true, ed.SetTrigger(trigger)
	})
}

// edit loads flowID, runs fn and saves when fn reports a change. The
// returned flow is nil when nothing was saved.
func (f *Flow) edit(ctx context.Context, flowID string, fn func(*editor.Editor) (bool, error)) (*models.Flow, error) {
	ed := editor.New(f.persistence.FlowRepository(), f.editorOpts...)
	defer ed.Close()

	if err := ed.Load(ctx, flowID); err != nil {
		return nil, err
	}

	changed, err := fn(ed)
	if err != nil {
		return nil, err
	}

	if !changed {
		return nil, nil
	}

	saved, err := ed.Save(ctx)
	if err != nil {
		return nil, err
	}

	f.publishSaved(ctx, saved, false)

	return saved, nil
}

func (f *Flow) publishSaved(ctx context.Context, flow *models.Flow, created bool) {
	f.publish(ctx, flow.ID, events.FlowSaved{
		BaseEvent: events.NewBaseEvent(events.FlowSavedEvent, flow.ID),
		Name:      flow.Name,
		Trigger:   flow.Trigger,
		NodeCount: len(flow.Nodes),
		EdgeCount: len(flow.Edges),
		Created:   created,
	})
}

// publish never fails the calling operation.
func (f *Flow) publish(ctx context.Context, flowID string, event eventbus.Event) {
	if f.publisher == nil {
		return
	}

	if err := f.publisher.Publish(ctx, flowID, event); err != nil {
		f.logger.WarnContext(ctx, "Failed to publish flow event",
			"flow_id", flowID,
			"event_type", event.GetType(),
			"error", err)
	}
}
