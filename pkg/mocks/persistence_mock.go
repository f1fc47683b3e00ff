package mocks

import (
	"context"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockFlowRepository is a mock implementation of persistence.FlowRepository interface.
type MockFlowRepository struct {
	mock.Mock
}

func flowOrNil(v any) *models.Flow {
	if v == nil {
		return nil
	}

	return v.(*models.Flow)
}

func (m *MockFlowRepository) GetFlow(ctx context.Context, id string) (*models.Flow, error) {
	args := m.Called(ctx, id)

	return flowOrNil(args.Get(0)), args.Error(1)
}

// SaveFlow also accepts a func(context.Context, *models.Flow) (*models.Flow, error)
// as the return value, called with the actual arguments.
func (m *MockFlowRepository) SaveFlow(ctx context.Context, flow *models.Flow) (*models.Flow, error) {
	args := m.Called(ctx, flow)

	if fn, ok := args.Get(0).(func(context.Context, *models.Flow) (*models.Flow, error)); ok {
		return fn(ctx, flow)
	}

	return flowOrNil(args.Get(0)), args.Error(1)
}

func (m *MockFlowRepository) GetFlows(ctx context.Context) ([]*models.Flow, error) {
	args := m.Called(ctx)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Flow), args.Error(1)
}

func (m *MockFlowRepository) DeleteFlow(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockFlowRepository) DuplicateFlow(ctx context.Context, id string) (*models.Flow, error) {
	args := m.Called(ctx, id)

	return flowOrNil(args.Get(0)), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	Flows *MockFlowRepository
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{Flows: &MockFlowRepository{}}
}

func (m *MockPersistence) FlowRepository() persistence.FlowRepository {
	return m.Flows
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
