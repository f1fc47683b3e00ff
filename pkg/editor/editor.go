// Package editor is the controller for one open chatbot flow. It bridges the
// in-memory graph to persistence, translates the flow trigger through the
// trigger codec and guards against repeated loads.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/chatflow/pkg/graph"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/otelhelper"
	"github.com/dukex/chatflow/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Repository is the part of persistence the editor needs.
type Repository interface {
	GetFlow(ctx context.Context, id string) (*models.Flow, error)
	SaveFlow(ctx context.Context, flow *models.Flow) (*models.Flow, error)
}

// TemplateSource lists the WhatsApp message templates available to message nodes.
type TemplateSource interface {
	GetWhatsAppTemplates(ctx context.Context) ([]models.MessageTemplate, error)
}

// Starter graph geometry for new flows.
var (
	startPosition   = models.Position{X: 250, Y: 50}
	messagePosition = models.Position{X: 250, Y: 200}
)

// Editor holds one flow document. All methods are safe for concurrent use;
// graph mutations are serialized and never wait on I/O.
type Editor struct {
	mu sync.Mutex

	repo      Repository
	logger    *slog.Logger
	tracer    trace.Tracer
	storeOpts []graph.Option

	store       *graph.Store
	state       State
	flowID      string
	name        string
	description string
	trigger     models.TriggerConfig

	loadAttempted bool
	loadID        string
	loadErr       error
	loadDone      chan struct{}
	closed        bool

	subscribers map[int]func(Change)
	nextSubID   int
}

type Option func(*Editor)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Editor) {
		e.tracer = tracer
	}
}

// WithStoreOptions configures every graph store the editor creates.
func WithStoreOptions(opts ...graph.Option) Option {
	return func(e *Editor) {
		e.storeOpts = append(e.storeOpts, opts...)
	}
}

// New returns an editor with no flow. Call Load before editing.
func New(repo Repository, opts ...Option) *Editor {
	e := &Editor{
		repo:        repo,
		state:       StateUnloaded,
		trigger:     models.TriggerConfig{Type: models.TriggerMessage},
		subscribers: make(map[int]func(Change)),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}

	e.logger = e.logger.With("module", "editor")
	e.store = graph.NewStore(e.storeOpts...)

	return e
}

// NewFlow returns a ready editor holding an unsaved flow seeded with a start
// node wired to a message node.
func NewFlow(repo Repository, opts ...Option) (*Editor, error) {
	e := New(repo, opts...)

	start, err := e.store.AddNode(models.NodeKindFlow, startPosition)
	if err != nil {
		return nil, err
	}

	message, err := e.store.AddNode(models.NodeKindMessage, messagePosition)
	if err != nil {
		return nil, err
	}

	e.store.ProposeEdge(start, message)
	e.state = StateReady

	return e, nil
}

// State returns the current lifecycle state.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// ID returns the persisted id of the flow, empty until the first save.
func (e *Editor) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.flowID
}

// Subscribe registers fn for every change and returns a function that
// removes it. fn runs outside the editor lock and may call back into it.
func (e *Editor) Subscribe(fn func(Change)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		delete(e.subscribers, id)
	}
}

// unlockAndNotify releases the lock and delivers changes.
func (e *Editor) unlockAndNotify(changes ...Change) {
	subscribers := make([]func(Change), 0, len(e.subscribers))
	for _, fn := range e.subscribers {
		subscribers = append(subscribers, fn)
	}

	e.mu.Unlock()

	for _, change := range changes {
		for _, fn := range subscribers {
			fn(change)
		}
	}
}

// Load fetches flow id into the editor. Only the first call reaches the
// repository; later calls for the same id wait for that load and return its
// result. Use Retry after a failed load.
func (e *Editor) Load(ctx context.Context, id string) error {
	e.mu.Lock()

	switch {
	case e.closed:
		e.mu.Unlock()
		return ErrClosed
	case e.loadAttempted && e.loadID == id && e.state == StateLoading:
		done := e.loadDone
		e.mu.Unlock()

		return e.awaitLoad(ctx, done)
	case e.loadAttempted && e.loadID == id:
		err := e.loadErr
		e.mu.Unlock()

		return err
	case e.loadAttempted || e.state != StateUnloaded:
		e.mu.Unlock()
		return ErrAlreadyLoaded
	}

	e.loadAttempted = true
	e.loadID = id

	return e.load(ctx, id)
}

// Retry repeats a failed load.
func (e *Editor) Retry(ctx context.Context) error {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}

	if e.state != StateFailed {
		e.mu.Unlock()
		return ErrNoFailedLoad
	}

	return e.load(ctx, e.loadID)
}

func (e *Editor) awaitLoad(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	return e.loadErr
}

// load runs with e.mu held and releases it.
func (e *Editor) load(ctx context.Context, id string) error {
	done := make(chan struct{})
	defer close(done)

	e.loadDone = done
	e.state = StateLoading
	e.unlockAndNotify(Change{Kind: ChangeState, State: StateLoading})

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.load", attribute.String(otelhelper.FlowIDKey, id))
	defer span.End()

	e.logger.InfoContext(ctx, "Loading flow", "flow_id", id)

	flow, err := e.repo.GetFlow(ctx, id)

	var store *graph.Store
	if err == nil {
		store = graph.NewStore(e.storeOpts...)
		err = store.Load(flow.Nodes, flow.Edges)

		var corrupt *models.CorruptFlowError
		if errors.As(err, &corrupt) && corrupt.FlowID == "" {
			corrupt.FlowID = id
		}
	}

	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}

	if err != nil {
		err = fmt.Errorf("load flow %s: %w", id, err)
		otelhelper.SetError(span, err)
		e.logger.ErrorContext(ctx, "Failed to load flow", "flow_id", id, "error", err)

		e.state = StateFailed
		e.loadErr = err
		e.unlockAndNotify(Change{Kind: ChangeState, State: StateFailed, Err: err})

		return err
	}

	e.store = store
	e.flowID = flow.ID
	e.name = flow.Name
	e.description = flow.Description
	e.trigger = models.DecodeTrigger(flow.Trigger)
	e.state = StateReady
	e.loadErr = nil

	span.SetAttributes(attribute.String(otelhelper.FlowNameKey, flow.Name))
	e.logger.InfoContext(ctx, "Flow loaded", "flow_id", id, "nodes", store.NodeCount(), "edges", store.EdgeCount())
	e.unlockAndNotify(Change{Kind: ChangeState, State: StateReady})

	return nil
}

// Save persists a snapshot of the flow as it is at the time of the call.
// Edits made while the save is in flight are kept for the next save. On
// failure the editor returns to ready with every edit intact.
func (e *Editor) Save(ctx context.Context) (*models.Flow, error) {
	e.mu.Lock()

	switch {
	case e.closed:
		e.mu.Unlock()
		return nil, ErrClosed
	case e.state == StateSaving:
		e.mu.Unlock()
		return nil, ErrSaveInProgress
	case e.state != StateReady:
		e.mu.Unlock()
		return nil, ErrNotReady
	}

	snapshot := e.snapshot()
	triggerType := e.trigger.Type
	e.state = StateSaving
	e.unlockAndNotify(Change{Kind: ChangeState, State: StateSaving})

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.save",
		attribute.String(otelhelper.FlowIDKey, snapshot.ID),
		attribute.String(otelhelper.TriggerTypeKey, string(triggerType)),
	)
	defer span.End()

	saved, err := e.repo.SaveFlow(ctx, snapshot)

	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}

	e.state = StateReady

	if err != nil {
		err = fmt.Errorf("save flow: %w", err)
		otelhelper.SetError(span, err)
		e.logger.ErrorContext(ctx, "Failed to save flow", "flow_id", snapshot.ID, "error", err)
		e.unlockAndNotify(Change{Kind: ChangeState, State: StateReady, Err: err})

		return nil, err
	}

	e.flowID = saved.ID
	if e.name == "" {
		e.name = saved.Name
	}

	e.logger.InfoContext(ctx, "Flow saved", "flow_id", saved.ID)
	e.unlockAndNotify(Change{Kind: ChangeState, State: StateReady})

	return saved, nil
}

// snapshot builds the persisted document. Caller holds e.mu.
func (e *Editor) snapshot() *models.Flow {
	flow := &models.Flow{
		ID:          e.flowID,
		Name:        e.name,
		Description: e.description,
		Trigger:     models.EncodeTrigger(e.trigger),
		Nodes:       e.store.Nodes(),
		Edges:       e.store.Edges(),
	}
	flow.ApplyDefaults()

	return flow
}

// Flow returns the document Save would persist right now.
func (e *Editor) Flow() (*models.Flow, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.editable() {
		return nil, ErrNotReady
	}

	return e.snapshot(), nil
}

// Close discards the editor. In-flight loads and saves finish but their
// results are dropped.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	clear(e.subscribers)
}

// lockEditable takes the lock and checks that edits are allowed. On error
// the lock is not held.
func (e *Editor) lockEditable() error {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}

	if !e.state.editable() {
		e.mu.Unlock()
		return ErrNotReady
	}

	return nil
}

func (e *Editor) SetName(name string) error {
	if err := e.lockEditable(); err != nil {
		return err
	}

	e.name = name
	e.unlockAndNotify(Change{Kind: ChangeFlowUpdated})

	return nil
}

func (e *Editor) SetDescription(description string) error {
	if err := e.lockEditable(); err != nil {
		return err
	}

	e.description = description
	e.unlockAndNotify(Change{Kind: ChangeFlowUpdated})

	return nil
}

// Trigger returns the flow-level trigger.
func (e *Editor) Trigger() models.TriggerConfig {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.trigger
}

// SetTrigger replaces the flow-level trigger after validating its value.
func (e *Editor) SetTrigger(cfg models.TriggerConfig) error {
	if cfg.Type == "" {
		cfg.Type = models.TriggerMessage
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := e.lockEditable(); err != nil {
		return err
	}

	e.trigger = cfg
	e.unlockAndNotify(Change{Kind: ChangeFlowUpdated})

	return nil
}

// AddNode creates a node of kind with its default payload.
func (e *Editor) AddNode(kind models.NodeKind, position models.Position) (string, error) {
	if err := e.lockEditable(); err != nil {
		return "", err
	}

	id, err := e.store.AddNode(kind, position)
	if err != nil {
		e.mu.Unlock()
		return "", err
	}

	e.unlockAndNotify(Change{Kind: ChangeNodeAdded, NodeID: id})

	return id, nil
}

// RemoveNode deletes a node and every edge touching it.
func (e *Editor) RemoveNode(id string) error {
	if err := e.lockEditable(); err != nil {
		return err
	}

	removed, err := e.store.RemoveNode(id)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	changes := make([]Change, 0, len(removed)+1)
	for _, edgeID := range removed {
		changes = append(changes, Change{Kind: ChangeEdgeRemoved, EdgeID: edgeID})
	}

	changes = append(changes, Change{Kind: ChangeNodeRemoved, NodeID: id})
	e.unlockAndNotify(changes...)

	return nil
}

// UpdateNodeData shallow-merges patch into the node payload.
func (e *Editor) UpdateNodeData(id string, patch map[string]any) error {
	if err := e.lockEditable(); err != nil {
		return err
	}

	if err := e.store.UpdateNodeData(id, patch); err != nil {
		e.mu.Unlock()
		return err
	}

	e.unlockAndNotify(Change{Kind: ChangeNodeUpdated, NodeID: id})

	return nil
}

func (e *Editor) MoveNode(id string, position models.Position) error {
	if err := e.lockEditable(); err != nil {
		return err
	}

	if err := e.store.MoveNode(id, position); err != nil {
		e.mu.Unlock()
		return err
	}

	e.unlockAndNotify(Change{Kind: ChangeNodeMoved, NodeID: id})

	return nil
}

// ProposeEdge adds source -> target when the connection rule allows it. A
// rejected edge reports accepted == false with a nil error.
func (e *Editor) ProposeEdge(source, target string) (*models.Edge, bool, error) {
	if err := e.lockEditable(); err != nil {
		return nil, false, err
	}

	edge, ok := e.store.ProposeEdge(source, target)
	if !ok {
		e.mu.Unlock()
		e.logger.Debug("Edge rejected", "source", source, "target", target)

		return nil, false, nil
	}

	e.unlockAndNotify(Change{Kind: ChangeEdgeAdded, EdgeID: edge.ID})

	return edge, true, nil
}

func (e *Editor) RemoveEdge(id string) error {
	if err := e.lockEditable(); err != nil {
		return err
	}

	if err := e.store.RemoveEdge(id); err != nil {
		e.mu.Unlock()
		return err
	}

	e.unlockAndNotify(Change{Kind: ChangeEdgeRemoved, EdgeID: id})

	return nil
}

// Node returns a copy of a node.
func (e *Editor) Node(id string) (*models.Node, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.store.Node(id)
}

// SelectTemplate fills a message node from a WhatsApp template.
func (e *Editor) SelectTemplate(nodeID string, tpl models.MessageTemplate) error {
	if err := e.lockEditable(); err != nil {
		return err
	}

	node, ok := e.store.Node(nodeID)
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", graph.ErrNodeNotFound, nodeID)
	}

	data, ok := node.Data.(*models.MessageData)
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrNotMessageNode, nodeID, node.Type)
	}

	registry.ApplyTemplate(data, tpl)

	if err := e.store.ReplaceNodeData(nodeID, data); err != nil {
		e.mu.Unlock()
		return err
	}

	e.unlockAndNotify(Change{Kind: ChangeNodeUpdated, NodeID: nodeID})

	return nil
}
