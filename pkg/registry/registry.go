// Package registry defines the closed set of node kinds, their default
// payloads and the rules applied when a payload is edited.
package registry

import (
	"fmt"

	"github.com/dukex/chatflow/pkg/models"
)

// Definition describes one node kind for palettes and property forms.
type Definition struct {
	Kind        models.NodeKind `json:"kind"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      *JSONSchema     `json:"schema"`
	newDefault  func() models.NodeData
}

var definitions = map[models.NodeKind]Definition{
	models.NodeKindFlow: {
		Kind:        models.NodeKindFlow,
		Name:        "Flow",
		Description: "Entry point started by the flow trigger",
		Schema:      flowSchema,
		newDefault: func() models.NodeData {
			return &models.FlowData{Label: "Start", Trigger: models.TriggerMessage}
		},
	},
	models.NodeKindMessage: {
		Kind:        models.NodeKindMessage,
		Name:        "Message",
		Description: "Sends a text, template or call-to-action message",
		Schema:      messageSchema,
		newDefault: func() models.NodeData {
			return &models.MessageData{Label: "Message", MessageType: models.MessageTypeText}
		},
	},
	models.NodeKindInput: {
		Kind:        models.NodeKindInput,
		Name:        "Input",
		Description: "Asks a question and stores the answer",
		Schema:      inputSchema,
		newDefault: func() models.NodeData {
			return &models.InputData{Label: "Input"}
		},
	},
	models.NodeKindCondition: {
		Kind:        models.NodeKindCondition,
		Name:        "Condition",
		Description: "Branches on an expression",
		Schema:      conditionSchema,
		newDefault: func() models.NodeData {
			return &models.ConditionData{Label: "Condition"}
		},
	},
	models.NodeKindAPI: {
		Kind:        models.NodeKindAPI,
		Name:        "API Call",
		Description: "Calls an external HTTP endpoint",
		Schema:      apiSchema,
		newDefault: func() models.NodeData {
			return &models.APIData{Label: "API Call", Method: "GET"}
		},
	},
	models.NodeKindFunction: {
		Kind:        models.NodeKindFunction,
		Name:        "Function",
		Description: "Runs a predefined or custom function",
		Schema:      functionSchema,
		newDefault: func() models.NodeData {
			return &models.FunctionData{Label: "Function", FunctionType: models.FunctionTypeCustom}
		},
	},
}

// Definitions returns every node kind in palette order.
func Definitions() []Definition {
	defs := make([]Definition, 0, len(models.NodeKinds))
	for _, kind := range models.NodeKinds {
		defs = append(defs, definitions[kind])
	}

	return defs
}

// Lookup returns the definition of kind.
func Lookup(kind models.NodeKind) (Definition, error) {
	def, ok := definitions[kind]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", models.ErrUnknownNodeKind, kind)
	}

	return def, nil
}

// DefaultData returns a fresh default payload for kind.
func DefaultData(kind models.NodeKind) (models.NodeData, error) {
	def, err := Lookup(kind)
	if err != nil {
		return nil, err
	}

	return def.newDefault(), nil
}
