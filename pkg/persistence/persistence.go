// Package persistence provides the storage abstraction for chatbot flows.
package persistence

import (
	"context"

	"github.com/dukex/chatflow/pkg/models"
)

type Persistence interface {
	FlowRepository() FlowRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// FlowRepository is flow CRUD. SaveFlow creates the flow when its ID is empty
// and updates it otherwise; it returns the canonical stored form, which may
// carry a new ID and timestamps.
type FlowRepository interface {
	GetFlow(ctx context.Context, id string) (*models.Flow, error)
	SaveFlow(ctx context.Context, flow *models.Flow) (*models.Flow, error)
	GetFlows(ctx context.Context) ([]*models.Flow, error)
	DeleteFlow(ctx context.Context, id string) error
	DuplicateFlow(ctx context.Context, id string) (*models.Flow, error)
}

// CopySuffix is appended to the name of a duplicated flow.
const CopySuffix = " (Copy)"
