// Package graph holds the nodes and edges of one flow being edited and
// enforces its structural invariants.
package graph

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/registry"
	"github.com/google/uuid"
)

var (
	// ErrNodeNotFound indicates a node id that is not in the store.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound indicates an edge id that is not in the store.
	ErrEdgeNotFound = errors.New("edge not found")
)

// Store is an id-indexed arena of nodes and edges. Iteration follows
// insertion order. A Store is not safe for concurrent use.
type Store struct {
	nodes     map[string]*models.Node
	nodeOrder []string
	edges     map[string]*models.Edge
	edgeOrder []string
	incoming  map[string][]string // target node id -> edge ids
	outgoing  map[string][]string // source node id -> edge ids

	clock      func() time.Time
	lastNodeTS int64
	newEdgeID  func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used for node ids.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// WithEdgeIDs replaces the edge id generator.
func WithEdgeIDs(next func() string) Option {
	return func(s *Store) {
		s.newEdgeID = next
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		nodes:     make(map[string]*models.Node),
		edges:     make(map[string]*models.Edge),
		incoming:  make(map[string][]string),
		outgoing:  make(map[string][]string),
		clock:     time.Now,
		newEdgeID: uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Load replaces the contents of the store with a persisted graph. Persisted
// flows are trusted to satisfy the connection rule, but references must
// resolve and payload enums must be known: a malformed graph is rejected with
// a CorruptFlowError and the store is left unchanged.
func (s *Store) Load(nodes []*models.Node, edges []*models.Edge) error {
	fresh := NewStore(WithClock(s.clock), WithEdgeIDs(s.newEdgeID))

	for _, node := range nodes {
		if err := fresh.insertLoadedNode(node); err != nil {
			return err
		}
	}

	for _, edge := range edges {
		if err := fresh.insertLoadedEdge(edge); err != nil {
			return err
		}
	}

	fresh.lastNodeTS = s.lastNodeTS
	*s = *fresh

	return nil
}

func (s *Store) insertLoadedNode(node *models.Node) error {
	switch {
	case node == nil:
		return &models.CorruptFlowError{Element: "node", Reason: "null node"}
	case node.ID == "":
		return &models.CorruptFlowError{Element: "node", Reason: "missing id"}
	case !node.Type.IsValid():
		return &models.CorruptFlowError{Element: "node", ID: node.ID, Reason: fmt.Sprintf("unknown type %q", node.Type), Err: models.ErrUnknownNodeKind}
	case node.Data == nil:
		return &models.CorruptFlowError{Element: "node", ID: node.ID, Reason: "missing data"}
	case node.Data.Kind() != node.Type:
		return &models.CorruptFlowError{Element: "node", ID: node.ID, Reason: fmt.Sprintf("%s data on %s node", node.Data.Kind(), node.Type)}
	}

	if err := registry.ValidateData(node.Data); err != nil {
		return &models.CorruptFlowError{Element: "node", ID: node.ID, Reason: err.Error()}
	}

	if _, exists := s.nodes[node.ID]; exists {
		return &models.CorruptFlowError{Element: "node", ID: node.ID, Reason: "duplicate id"}
	}

	s.insertNode(node.Clone())

	return nil
}

func (s *Store) insertLoadedEdge(edge *models.Edge) error {
	switch {
	case edge == nil:
		return &models.CorruptFlowError{Element: "edge", Reason: "null edge"}
	case edge.ID == "":
		return &models.CorruptFlowError{Element: "edge", Reason: "missing id"}
	}

	if _, exists := s.edges[edge.ID]; exists {
		return &models.CorruptFlowError{Element: "edge", ID: edge.ID, Reason: "duplicate id"}
	}

	if _, ok := s.nodes[edge.Source]; !ok {
		return &models.CorruptFlowError{Element: "edge", ID: edge.ID, Reason: fmt.Sprintf("source %q does not exist", edge.Source)}
	}

	if _, ok := s.nodes[edge.Target]; !ok {
		return &models.CorruptFlowError{Element: "edge", ID: edge.ID, Reason: fmt.Sprintf("target %q does not exist", edge.Target)}
	}

	e := *edge
	s.insertEdge(&e)

	return nil
}

// AddNode creates a node of kind with the registry default payload and
// returns its id.
func (s *Store) AddNode(kind models.NodeKind, position models.Position) (string, error) {
	data, err := registry.DefaultData(kind)
	if err != nil {
		return "", err
	}

	node := &models.Node{
		ID:       s.nextNodeID(kind),
		Type:     kind,
		Position: position,
		Data:     data,
	}

	s.insertNode(node)

	return node.ID, nil
}

// nextNodeID returns "{kind}-{unix millis}", bumping the timestamp so ids
// stay unique when nodes are created within the same millisecond.
func (s *Store) nextNodeID(kind models.NodeKind) string {
	ts := s.clock().UnixMilli()
	if ts <= s.lastNodeTS {
		ts = s.lastNodeTS + 1
	}

	for {
		id := fmt.Sprintf("%s-%d", kind, ts)
		if _, taken := s.nodes[id]; !taken {
			s.lastNodeTS = ts
			return id
		}

		ts++
	}
}

// RemoveNode deletes a node together with every edge touching it and
// returns the removed edge ids.
func (s *Store) RemoveNode(id string) ([]string, error) {
	if _, ok := s.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	incident := make([]string, 0, len(s.incoming[id])+len(s.outgoing[id]))
	incident = append(incident, s.incoming[id]...)

	for _, edgeID := range s.outgoing[id] {
		if !slices.Contains(incident, edgeID) {
			incident = append(incident, edgeID)
		}
	}

	for _, edgeID := range incident {
		s.deleteEdge(edgeID)
	}

	delete(s.nodes, id)
	delete(s.incoming, id)
	delete(s.outgoing, id)
	s.nodeOrder = slices.DeleteFunc(s.nodeOrder, func(n string) bool { return n == id })

	return incident, nil
}

// UpdateNodeData shallow-merges patch into the node's payload using the
// registry rules.
func (s *Store) UpdateNodeData(id string, patch map[string]any) error {
	node, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	merged, err := registry.MergeData(node.Data, patch)
	if err != nil {
		return fmt.Errorf("update node %s: %w", id, err)
	}

	node.Data = merged

	return nil
}

// ReplaceNodeData swaps the payload of a node. The payload kind must match.
func (s *Store) ReplaceNodeData(id string, data models.NodeData) error {
	node, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	if data == nil || data.Kind() != node.Type {
		return fmt.Errorf("%w: %s node cannot hold %T", models.ErrInvalidNodeData, node.Type, data)
	}

	node.Data = models.CloneNodeData(data)

	return nil
}

// MoveNode updates canvas geometry.
func (s *Store) MoveNode(id string, position models.Position) error {
	node, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	node.Position = position

	return nil
}

// ProposeEdge adds source -> target when the connection rule allows it. A
// rejected proposal is not an error; it returns false and changes nothing.
func (s *Store) ProposeEdge(source, target string) (*models.Edge, bool) {
	if !CanConnect(s, source, target) {
		return nil, false
	}

	edge := &models.Edge{ID: s.newEdgeID(), Source: source, Target: target}
	s.insertEdge(edge)

	e := *edge

	return &e, true
}

// RemoveEdge deletes an edge.
func (s *Store) RemoveEdge(id string) error {
	if _, ok := s.edges[id]; !ok {
		return fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
	}

	s.deleteEdge(id)

	return nil
}

// Node returns a copy of the node with id.
func (s *Store) Node(id string) (*models.Node, bool) {
	node, ok := s.nodes[id]
	if !ok {
		return nil, false
	}

	return node.Clone(), true
}

// Nodes returns copies of all nodes in insertion order.
func (s *Store) Nodes() []*models.Node {
	nodes := make([]*models.Node, 0, len(s.nodeOrder))
	for _, id := range s.nodeOrder {
		nodes = append(nodes, s.nodes[id].Clone())
	}

	return nodes
}

// Edges returns copies of all edges in insertion order.
func (s *Store) Edges() []*models.Edge {
	edges := make([]*models.Edge, 0, len(s.edgeOrder))
	for _, id := range s.edgeOrder {
		e := *s.edges[id]
		edges = append(edges, &e)
	}

	return edges
}

// Incoming returns copies of the edges whose target is id.
func (s *Store) Incoming(id string) []*models.Edge {
	edges := make([]*models.Edge, 0, len(s.incoming[id]))
	for _, edgeID := range s.incoming[id] {
		e := *s.edges[edgeID]
		edges = append(edges, &e)
	}

	return edges
}

// NodesByKind returns copies of the nodes of kind in insertion order.
func (s *Store) NodesByKind(kind models.NodeKind) []*models.Node {
	nodes := make([]*models.Node, 0)
	for _, id := range s.nodeOrder {
		if s.nodes[id].Type == kind {
			nodes = append(nodes, s.nodes[id].Clone())
		}
	}

	return nodes
}

// NodeCount returns the number of nodes.
func (s *Store) NodeCount() int {
	return len(s.nodes)
}

// EdgeCount returns the number of edges.
func (s *Store) EdgeCount() int {
	return len(s.edges)
}

func (s *Store) insertNode(node *models.Node) {
	s.nodes[node.ID] = node
	s.nodeOrder = append(s.nodeOrder, node.ID)
}

func (s *Store) insertEdge(edge *models.Edge) {
	s.edges[edge.ID] = edge
	s.edgeOrder = append(s.edgeOrder, edge.ID)
	s.incoming[edge.Target] = append(s.incoming[edge.Target], edge.ID)
	s.outgoing[edge.Source] = append(s.outgoing[edge.Source], edge.ID)
}

func (s *Store) deleteEdge(id string) {
	edge, ok := s.edges[id]
	if !ok {
		return
	}

	without := func(ids []string) []string {
		return slices.DeleteFunc(ids, func(e string) bool { return e == id })
	}

	s.incoming[edge.Target] = without(s.incoming[edge.Target])
	s.outgoing[edge.Source] = without(s.outgoing[edge.Source])
	s.edgeOrder = without(s.edgeOrder)
	delete(s.edges, id)
}
