// Package models defines the persisted chatbot flow document and its node variants.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultFlowName is used when a flow is saved without a name.
const DefaultFlowName = "Untitled Flow"

// Flow is a saved chatbot conversation graph. Its JSON form is the wire and
// storage contract shared with the backend, so field names must not change.
type Flow struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Trigger     string     `json:"trigger"` // EncodeTrigger form
	Nodes       []*Node    `json:"nodes"`
	Edges       []*Edge    `json:"edges"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// Position is editor-local canvas geometry. It carries no domain meaning.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one conversation step. Data always matches Type.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeKind `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge is a directed transition between two nodes.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// ApplyDefaults fills the fields a saved flow must never leave empty.
func (f *Flow) ApplyDefaults() {
	if f.Name == "" {
		f.Name = DefaultFlowName
	}

	if f.Nodes == nil {
		f.Nodes = make([]*Node, 0)
	}

	if f.Edges == nil {
		f.Edges = make([]*Edge, 0)
	}
}

// Clone returns a deep copy of the flow.
func (f *Flow) Clone() *Flow {
	clone := *f

	clone.Nodes = make([]*Node, 0, len(f.Nodes))
	for _, node := range f.Nodes {
		clone.Nodes = append(clone.Nodes, node.Clone())
	}

	clone.Edges = make([]*Edge, 0, len(f.Edges))
	for _, edge := range f.Edges {
		e := *edge
		clone.Edges = append(clone.Edges, &e)
	}

	if f.CreatedAt != nil {
		t := *f.CreatedAt
		clone.CreatedAt = &t
	}

	if f.UpdatedAt != nil {
		t := *f.UpdatedAt
		clone.UpdatedAt = &t
	}

	return &clone
}

// Clone returns a deep copy of the node, including its data payload.
func (n *Node) Clone() *Node {
	clone := *n
	if n.Data != nil {
		clone.Data = CloneNodeData(n.Data)
	}

	return &clone
}

// UnmarshalJSON decodes the data payload into the variant selected by type.
func (n *Node) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID       string          `json:"id"`
		Type     NodeKind        `json:"type"`
		Position Position        `json:"position"`
		Data     json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	data, err := DecodeNodeData(raw.Type, raw.Data)
	if err != nil {
		return fmt.Errorf("node %q: %w", raw.ID, err)
	}

	n.ID = raw.ID
	n.Type = raw.Type
	n.Position = raw.Position
	n.Data = data

	return nil
}
