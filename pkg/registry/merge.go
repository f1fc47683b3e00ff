package registry

import (
	"fmt"

	"github.com/dukex/chatflow/pkg/models"
)

// messageTypeFields are cleared whenever a message node changes type so no
// field of the previous type survives the switch.
var messageTypeFields = []string{"content", "templateId", "templateComponents", "ctaUrl"}

// MergeData shallow-merges patch into a copy of current and returns the
// result. Keys use the JSON field names of the payload. current is not
// modified.
//
// Changing messageType resets the type-specific message fields before the
// patch is applied. Leaving the template type also drops the template buttons. A function node of a predefined type always carries that
// type's snippet as its body; switching to custom keeps the existing body.
func MergeData(current models.NodeData, patch map[string]any) (models.NodeData, error) {
	fields, err := models.NodeDataToMap(current)
	if err != nil {
		return nil, err
	}

	if msg, ok := current.(*models.MessageData); ok {
		if raw, present := patch["messageType"]; present {
			next, err := messageTypeOf(raw)
			if err != nil {
				return nil, err
			}

			if next != msg.MessageType {
				resetMessageFields(fields, msg.MessageType, next)
			}
		}
	}

	for key, value := range patch {
		fields[key] = value
	}

	merged, err := models.NodeDataFromMap(current.Kind(), fields)
	if err != nil {
		return nil, err
	}

	if err := normalize(merged); err != nil {
		return nil, err
	}

	return merged, nil
}

func messageTypeOf(raw any) (models.MessageType, error) {
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: messageType must be a string, got %T", models.ErrInvalidNodeData, raw)
	}

	t := models.MessageType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: unknown messageType %q", models.ErrInvalidNodeData, s)
	}

	return t, nil
}

func resetMessageFields(fields map[string]any, prev, next models.MessageType) {
	for _, key := range messageTypeFields {
		delete(fields, key)
	}

	// Template buttons come from the template itself.
	if prev == models.MessageTypeTemplate {
		delete(fields, "buttons")
	}

	fields["content"] = ""

	if next == models.MessageTypeCTAURL {
		fields["ctaUrl"] = map[string]any{
			"body":   "",
			"button": map[string]any{"display_text": "", "url": ""},
		}
	}
}

// ValidateData reports a payload whose enum fields hold values outside their
// closed sets. Empty enums are accepted; they take their defaults on the
// next merge. data is not modified.
func ValidateData(data models.NodeData) error {
	if data == nil {
		return fmt.Errorf("%w: missing payload", models.ErrInvalidNodeData)
	}

	return normalize(models.CloneNodeData(data))
}

// normalize enforces per-kind invariants on a merged payload.
func normalize(data models.NodeData) error {
	switch d := data.(type) {
	case *models.FlowData:
		if d.Trigger == "" {
			d.Trigger = models.TriggerMessage
		}

		if !d.Trigger.IsValid() {
			return fmt.Errorf("%w: unknown trigger %q", models.ErrInvalidNodeData, d.Trigger)
		}
	case *models.MessageData:
		if d.MessageType == "" {
			d.MessageType = models.MessageTypeText
		}

		if !d.MessageType.IsValid() {
			return fmt.Errorf("%w: unknown messageType %q", models.ErrInvalidNodeData, d.MessageType)
		}
	case *models.FunctionData:
		if d.FunctionType == "" {
			d.FunctionType = models.FunctionTypeCustom
		}

		if !d.FunctionType.IsValid() {
			return fmt.Errorf("%w: unknown functionType %q", models.ErrInvalidNodeData, d.FunctionType)
		}

		if snippet, ok := FunctionSnippet(d.FunctionType); ok {
			d.FunctionBody = snippet
		}
	case *models.InputData, *models.ConditionData, *models.APIData:
	default:
		return fmt.Errorf("%w: %T", models.ErrUnknownNodeKind, data)
	}

	return nil
}

// ApplyTemplate fills a message payload from a WhatsApp template: the body
// text becomes the content and template buttons become the node buttons.
func ApplyTemplate(data *models.MessageData, tpl models.MessageTemplate) {
	data.MessageType = models.MessageTypeTemplate
	data.TemplateID = tpl.ID
	data.CTAURL = nil
	data.Content = ""
	data.Buttons = nil

	data.TemplateComponents = make([]models.TemplateComponent, len(tpl.Components))
	for i, component := range tpl.Components {
		data.TemplateComponents[i] = component.Clone()
	}

	if body, ok := tpl.Component(models.ComponentBody); ok {
		data.Content = body.Text
	}

	if buttons, ok := tpl.Component(models.ComponentButtons); ok && len(buttons.Buttons) > 0 {
		data.Buttons = append([]models.TemplateButton(nil), buttons.Buttons...)
	}
}
