// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/registry"
	"github.com/google/uuid"
)

// CreateTestNode creates a node of kind carrying the registry default payload.
// It panics on an unknown kind.
func CreateTestNode(kind models.NodeKind, id string, overrides ...func(*models.Node)) *models.Node {
	data, err := registry.DefaultData(kind)
	if err != nil {
		panic(err)
	}

	node := &models.Node{
		ID:       id,
		Type:     kind,
		Position: models.Position{X: 100, Y: 200},
		Data:     data,
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithData replaces the node payload.
func WithData(data models.NodeData) func(*models.Node) {
	return func(n *models.Node) {
		n.Data = data
	}
}

// WithPosition sets the canvas position.
func WithPosition(x, y float64) func(*models.Node) {
	return func(n *models.Node) {
		n.Position = models.Position{X: x, Y: y}
	}
}

// CreateTestEdge creates an edge with a random id.
func CreateTestEdge(source, target string) *models.Edge {
	return &models.Edge{ID: uuid.New().String(), Source: source, Target: target}
}

// CreateTestFlow creates a flow with a start node wired to a message node.
func CreateTestFlow(overrides ...func(*models.Flow)) *models.Flow {
	start := CreateTestNode(models.NodeKindFlow, "flow-1", WithPosition(250, 50))
	reply := CreateTestNode(models.NodeKindMessage, "message-1", WithPosition(250, 200))

	flow := &models.Flow{
		ID:      uuid.New().String(),
		Name:    "Test Flow",
		Trigger: "",
		Nodes:   []*models.Node{start, reply},
		Edges:   []*models.Edge{CreateTestEdge(start.ID, reply.ID)},
	}

	for _, override := range overrides {
		override(flow)
	}

	return flow
}

// WithNodes appends nodes to the flow.
func WithNodes(nodes ...*models.Node) func(*models.Flow) {
	return func(f *models.Flow) {
		f.Nodes = append(f.Nodes, nodes...)
	}
}

// WithEdges appends edges to the flow.
func WithEdges(edges ...*models.Edge) func(*models.Flow) {
	return func(f *models.Flow) {
		f.Edges = append(f.Edges, edges...)
	}
}

// WithTrigger sets the encoded flow trigger.
func WithTrigger(cfg models.TriggerConfig) func(*models.Flow) {
	return func(f *models.Flow) {
		f.Trigger = models.EncodeTrigger(cfg)
	}
}
