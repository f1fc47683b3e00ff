package services

import (
	"context"
	"log/slog"

	"github.com/dukex/chatflow/pkg/editor"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/template"
)

// Templates lists WhatsApp message templates for message nodes.
type Templates struct {
	source editor.TemplateSource
	logger *slog.Logger
}

// NewTemplates creates a template service. source may be nil when the
// WhatsApp integration is not configured.
func NewTemplates(source editor.TemplateSource, logger *slog.Logger) *Templates {
	if logger == nil {
		logger = slog.Default()
	}

	return &Templates{source: source, logger: logger.With("module", "template_service")}
}

// List always returns a usable slice. A non-nil error explains why it is empty.
func (t *Templates) List(ctx context.Context) ([]models.MessageTemplate, error) {
	if t.source == nil {
		return []models.MessageTemplate{}, ErrTemplatesUnavailable
	}

	templates, err := t.source.GetWhatsAppTemplates(ctx)
	if err != nil {
		t.logger.WarnContext(ctx, "Failed to load message templates", "error", err)

		return []models.MessageTemplate{}, err
	}

	if templates == nil {
		templates = []models.MessageTemplate{}
	}

	return templates, nil
}

// Variables returns the distinct placeholders used by components.
func (t *Templates) Variables(components []models.TemplateComponent) []string {
	return template.ExtractTemplateVariables(components)
}
