package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// NodeKind is the closed set of conversation step variants.
type NodeKind string

const (
	NodeKindFlow      NodeKind = "flow"      // Flow entry marker
	NodeKindMessage   NodeKind = "message"   // Outgoing reply, the only convergence point
	NodeKindInput     NodeKind = "input"     // Captures the user's answer
	NodeKindCondition NodeKind = "condition" // Branching predicate
	NodeKindAPI       NodeKind = "api"       // External HTTP call
	NodeKindFunction  NodeKind = "function"  // Predefined or custom function
)

// NodeKinds lists every kind in palette order.
var NodeKinds = []NodeKind{
	NodeKindFlow,
	NodeKindMessage,
	NodeKindInput,
	NodeKindCondition,
	NodeKindAPI,
	NodeKindFunction,
}

// IsValid reports whether k is one of the known kinds.
func (k NodeKind) IsValid() bool {
	switch k {
	case NodeKindFlow, NodeKindMessage, NodeKindInput, NodeKindCondition, NodeKindAPI, NodeKindFunction:
		return true
	default:
		return false
	}
}

// MessageType selects how a message node is sent.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeTemplate MessageType = "template"
	MessageTypeCTAURL   MessageType = "cta_url"
)

// IsValid reports whether t is a known message type.
func (t MessageType) IsValid() bool {
	return t == MessageTypeText || t == MessageTypeTemplate || t == MessageTypeCTAURL
}

// FunctionType selects the body of a function node.
type FunctionType string

const (
	FunctionTypeSaveName  FunctionType = "save_name"
	FunctionTypeSaveEmail FunctionType = "save_email"
	FunctionTypeSavePhone FunctionType = "save_phone"
	FunctionTypeCustom    FunctionType = "custom"
)

// IsValid reports whether t is a known function type.
func (t FunctionType) IsValid() bool {
	switch t {
	case FunctionTypeSaveName, FunctionTypeSaveEmail, FunctionTypeSavePhone, FunctionTypeCustom:
		return true
	default:
		return false
	}
}

// NodeData is the per-kind payload of a node. The set of implementations is
// sealed; every switch over it must handle all six variants.
type NodeData interface {
	Kind() NodeKind
	nodeData()
}

// FlowData marks the entry of a flow.
type FlowData struct {
	Label   string      `json:"label"`
	Trigger TriggerKind `json:"trigger"`
	Content string      `json:"content,omitempty"`
}

// MessageData is an outgoing reply.
type MessageData struct {
	Label              string              `json:"label"`
	Content            string              `json:"content"`
	MessageType        MessageType         `json:"messageType"`
	Buttons            []TemplateButton    `json:"buttons,omitempty"`
	TemplateID         TemplateID          `json:"templateId,omitempty"`
	TemplateComponents []TemplateComponent `json:"templateComponents,omitempty"`
	CTAURL             *CTAURL             `json:"ctaUrl,omitempty"`
}

// CTAURL is the interactive call-to-action URL payload.
type CTAURL struct {
	Header string    `json:"header,omitempty"`
	Body   string    `json:"body"`
	Footer string    `json:"footer,omitempty"`
	Button CTAButton `json:"button"`
}

// CTAButton is the single button of a cta_url message.
type CTAButton struct {
	DisplayText string `json:"display_text"`
	URL         string `json:"url"`
}

// InputData asks a question and stores the answer.
type InputData struct {
	Label    string `json:"label"`
	Content  string `json:"content"`
	Variable string `json:"variable,omitempty"`
}

// ConditionData branches on a predicate expression.
type ConditionData struct {
	Label     string `json:"label"`
	Condition string `json:"condition,omitempty"`
}

// APIData calls an external endpoint.
type APIData struct {
	Label    string            `json:"label"`
	Endpoint string            `json:"endpoint,omitempty"`
	Method   string            `json:"method,omitempty"`
	Payload  map[string]string `json:"payload,omitempty"`
}

// FunctionData runs a predefined snippet or a custom body.
type FunctionData struct {
	Label        string       `json:"label"`
	FunctionType FunctionType `json:"functionType"`
	FunctionBody string       `json:"functionBody,omitempty"`
}

func (*FlowData) Kind() NodeKind      { return NodeKindFlow }
func (*MessageData) Kind() NodeKind   { return NodeKindMessage }
func (*InputData) Kind() NodeKind     { return NodeKindInput }
func (*ConditionData) Kind() NodeKind { return NodeKindCondition }
func (*APIData) Kind() NodeKind       { return NodeKindAPI }
func (*FunctionData) Kind() NodeKind  { return NodeKindFunction }

func (*FlowData) nodeData()      {}
func (*MessageData) nodeData()   {}
func (*InputData) nodeData()     {}
func (*ConditionData) nodeData() {}
func (*APIData) nodeData()       {}
func (*FunctionData) nodeData()  {}

// NewNodeData returns an empty payload of the given kind.
func NewNodeData(kind NodeKind) (NodeData, error) {
	switch kind {
	case NodeKindFlow:
		return &FlowData{}, nil
	case NodeKindMessage:
		return &MessageData{}, nil
	case NodeKindInput:
		return &InputData{}, nil
	case NodeKindCondition:
		return &ConditionData{}, nil
	case NodeKindAPI:
		return &APIData{}, nil
	case NodeKindFunction:
		return &FunctionData{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeKind, kind)
	}
}

// DecodeNodeData decodes a raw payload into the variant for kind.
func DecodeNodeData(kind NodeKind, raw json.RawMessage) (NodeData, error) {
	data, err := NewNodeData(kind)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return data, nil
	}

	if err := json.Unmarshal(trimmed, data); err != nil {
		return nil, fmt.Errorf("%w: decode %s data: %v", ErrInvalidNodeData, kind, err)
	}

	return data, nil
}

// NodeDataToMap flattens a payload into its JSON field map.
func NodeDataToMap(data NodeData) (map[string]any, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s data: %w", data.Kind(), err)
	}

	fields := make(map[string]any)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal %s data: %w", data.Kind(), err)
	}

	return fields, nil
}

// NodeDataFromMap rebuilds a payload of kind from a JSON field map.
func NodeDataFromMap(kind NodeKind, fields map[string]any) (NodeData, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNodeData, err)
	}

	return DecodeNodeData(kind, body)
}

// CloneNodeData deep-copies a payload.
func CloneNodeData(data NodeData) NodeData {
	switch d := data.(type) {
	case *FlowData:
		c := *d
		return &c
	case *MessageData:
		c := *d
		if d.Buttons != nil {
			c.Buttons = append([]TemplateButton(nil), d.Buttons...)
		}

		if d.TemplateComponents != nil {
			c.TemplateComponents = make([]TemplateComponent, len(d.TemplateComponents))
			for i, component := range d.TemplateComponents {
				c.TemplateComponents[i] = component.Clone()
			}
		}

		if d.CTAURL != nil {
			cta := *d.CTAURL
			c.CTAURL = &cta
		}

		return &c
	case *InputData:
		c := *d
		return &c
	case *ConditionData:
		c := *d
		return &c
	case *APIData:
		c := *d
		if d.Payload != nil {
			c.Payload = make(map[string]string, len(d.Payload))
			for k, v := range d.Payload {
				c.Payload[k] = v
			}
		}

		return &c
	case *FunctionData:
		c := *d
		return &c
	default:
		panic(fmt.Sprintf("models: unhandled node data %T", data))
	}
}

// TemplateID identifies a WhatsApp template. The Graph API and older saved
// flows use both numeric and string forms, so both decode.
type TemplateID string

// UnmarshalJSON accepts a JSON string or number.
func (id *TemplateID) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}

	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}

		*id = TemplateID(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("template id must be a string or number: %w", err)
	}

	if i, err := n.Int64(); err == nil {
		*id = TemplateID(strconv.FormatInt(i, 10))
		return nil
	}

	*id = TemplateID(n.String())

	return nil
}
