package mocks

import (
	"context"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockTemplateSource is a mock WhatsApp template collaborator.
type MockTemplateSource struct {
	mock.Mock
}

func (m *MockTemplateSource) GetWhatsAppTemplates(ctx context.Context) ([]models.MessageTemplate, error) {
	args := m.Called(ctx)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.MessageTemplate), args.Error(1)
}
