package registry

import "github.com/dukex/chatflow/pkg/models"

// JSONSchema describes a node payload for property forms.
type JSONSchema struct {
	Type        string               `json:"type"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Required    []string             `json:"required,omitempty"`
	Title       string               `json:"title,omitempty"`
	Description string               `json:"description,omitempty"`
}

// Property is one field of a JSONSchema.
type Property struct {
	Type        string               `json:"type"`
	Description string               `json:"description,omitempty"`
	Enum        []any                `json:"enum,omitempty"`
	Default     any                  `json:"default,omitempty"`
	Format      string               `json:"format,omitempty"`
	ReadOnly    bool                 `json:"readOnly,omitempty"`
	Items       *Property            `json:"items,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Required    []string             `json:"required,omitempty"`
}

func enumOf[T ~string](values ...T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = string(v)
	}

	return out
}

var labelProperty = &Property{Type: "string", Description: "Name shown on the canvas"}

var buttonProperty = &Property{
	Type: "object",
	Properties: map[string]*Property{
		"type":         {Type: "string"},
		"text":         {Type: "string"},
		"url":          {Type: "string", Format: "uri"},
		"phone_number": {Type: "string"},
		"code":         {Type: "string"},
	},
	Required: []string{"type", "text"},
}

var flowSchema = &JSONSchema{
	Type:  "object",
	Title: "Flow",
	Properties: map[string]*Property{
		"label":   labelProperty,
		"trigger": {Type: "string", Enum: enumOf(models.TriggerKinds...), Default: string(models.TriggerMessage)},
		"content": {Type: "string", Description: "Trigger value shown on the entry node"},
	},
	Required: []string{"label", "trigger"},
}

var messageSchema = &JSONSchema{
	Type:  "object",
	Title: "Message",
	Properties: map[string]*Property{
		"label":   labelProperty,
		"content": {Type: "string", Description: "Message text"},
		"messageType": {
			Type:    "string",
			Enum:    enumOf(models.MessageTypeText, models.MessageTypeTemplate, models.MessageTypeCTAURL),
			Default: string(models.MessageTypeText),
		},
		"buttons":    {Type: "array", Items: buttonProperty},
		"templateId": {Type: "string", Description: "WhatsApp template ID"},
		"templateComponents": {
			Type: "array",
			Items: &Property{
				Type: "object",
				Properties: map[string]*Property{
					"type":    {Type: "string", Enum: enumOf(models.ComponentHeader, models.ComponentBody, models.ComponentFooter, models.ComponentButtons)},
					"text":    {Type: "string"},
					"buttons": {Type: "array", Items: buttonProperty},
				},
			},
		},
		"ctaUrl": {
			Type: "object",
			Properties: map[string]*Property{
				"header": {Type: "string"},
				"body":   {Type: "string"},
				"footer": {Type: "string"},
				"button": {
					Type: "object",
					Properties: map[string]*Property{
						"display_text": {Type: "string"},
						"url":          {Type: "string", Format: "uri"},
					},
					Required: []string{"display_text", "url"},
				},
			},
			Required: []string{"body", "button"},
		},
	},
	Required: []string{"label", "content", "messageType"},
}

var inputSchema = &JSONSchema{
	Type:  "object",
	Title: "Input",
	Properties: map[string]*Property{
		"label":    labelProperty,
		"content":  {Type: "string", Description: "Question sent to the user"},
		"variable": {Type: "string", Description: "Field that stores the answer"},
	},
	Required: []string{"label", "content"},
}

var conditionSchema = &JSONSchema{
	Type:  "object",
	Title: "Condition",
	Properties: map[string]*Property{
		"label":     labelProperty,
		"condition": {Type: "string", Description: "Predicate expression"},
	},
	Required: []string{"label"},
}

var apiSchema = &JSONSchema{
	Type:  "object",
	Title: "API Call",
	Properties: map[string]*Property{
		"label":    labelProperty,
		"endpoint": {Type: "string", Format: "uri"},
		"method":   {Type: "string", Enum: []any{"GET", "POST", "PUT", "PATCH", "DELETE"}, Default: "GET"},
		"payload": {
			Type:        "object",
			Description: "Request field to template expression mapping",
		},
	},
	Required: []string{"label"},
}

var functionSchema = &JSONSchema{
	Type:  "object",
	Title: "Function",
	Properties: map[string]*Property{
		"label": labelProperty,
		"functionType": {
			Type: "string",
			Enum: enumOf(models.FunctionTypeSaveName, models.FunctionTypeSaveEmail,
				models.FunctionTypeSavePhone, models.FunctionTypeCustom),
			Default: string(models.FunctionTypeCustom),
		},
		"functionBody": {Type: "string", Description: "Editable only for custom functions"},
	},
	Required: []string{"label", "functionType"},
}
