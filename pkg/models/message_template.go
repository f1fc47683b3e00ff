package models

// ComponentType is the section of a WhatsApp template.
type ComponentType string

const (
	ComponentHeader  ComponentType = "HEADER"
	ComponentBody    ComponentType = "BODY"
	ComponentFooter  ComponentType = "FOOTER"
	ComponentButtons ComponentType = "BUTTONS"
)

// MessageTemplate is a WhatsApp message template managed outside the editor.
type MessageTemplate struct {
	ID         TemplateID          `json:"id"`
	Name       string              `json:"name"`
	Category   string              `json:"category"`
	Language   string              `json:"language"`
	Status     string              `json:"status"`
	Components []TemplateComponent `json:"components"`
}

// TemplateComponent is one header, body, footer or button block.
type TemplateComponent struct {
	Type    ComponentType    `json:"type"`
	Format  string           `json:"format,omitempty"`
	Text    string           `json:"text,omitempty"`
	Buttons []TemplateButton `json:"buttons,omitempty"`
}

// TemplateButton is a button declared by a BUTTONS component.
type TemplateButton struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	URL         string `json:"url,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Code        string `json:"code,omitempty"`
}

// Clone deep-copies the component.
func (c TemplateComponent) Clone() TemplateComponent {
	if c.Buttons != nil {
		c.Buttons = append([]TemplateButton(nil), c.Buttons...)
	}

	return c
}

// Component returns the first component of the given type.
func (t *MessageTemplate) Component(kind ComponentType) (TemplateComponent, bool) {
	for _, component := range t.Components {
		if component.Type == kind {
			return component, true
		}
	}

	return TemplateComponent{}, false
}
