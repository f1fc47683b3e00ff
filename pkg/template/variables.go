// Package template extracts and substitutes {{name}} placeholders in WhatsApp message templates.
package template

import (
	"regexp"

	"github.com/dukex/chatflow/pkg/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// ExtractVariables returns the placeholder names in text, in order of first
// appearance and without duplicates.
func ExtractVariables(text string) []string {
	variables := make([]string, 0)
	seen := make(map[string]struct{})

	for _, match := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		name := match[1]
		if _, ok := seen[name]; ok {
			continue
		}

		seen[name] = struct{}{}
		variables = append(variables, name)
	}

	return variables
}

// ExtractTemplateVariables unions the variables of every component text and
// button URL, keeping first-appearance order across components.
func ExtractTemplateVariables(components []models.TemplateComponent) []string {
	variables := make([]string, 0)
	seen := make(map[string]struct{})

	add := func(text string) {
		for _, name := range ExtractVariables(text) {
			if _, ok := seen[name]; ok {
				continue
			}

			seen[name] = struct{}{}
			variables = append(variables, name)
		}
	}

	for _, component := range components {
		add(component.Text)

		for _, button := range component.Buttons {
			add(button.URL)
		}
	}

	return variables
}

// Substitute replaces every {{name}} with values[name]. Placeholders without
// a value are left as the literal token.
func Substitute(text string, values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		name := placeholderPattern.FindStringSubmatch(token)[1]
		if value, ok := values[name]; ok {
			return value
		}

		return token
	})
}

// SubstituteComponents returns copies of components with values substituted
// into their text and button URLs.
func SubstituteComponents(components []models.TemplateComponent, values map[string]string) []models.TemplateComponent {
	rendered := make([]models.TemplateComponent, len(components))
	for i, component := range components {
		rendered[i] = component.Clone()
		rendered[i].Text = Substitute(component.Text, values)

		for j := range rendered[i].Buttons {
			rendered[i].Buttons[j].URL = Substitute(rendered[i].Buttons[j].URL, values)
		}
	}

	return rendered
}
