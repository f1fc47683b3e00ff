package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dukex/chatflow/pkg/events"
	"github.com/dukex/chatflow/pkg/mocks"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/persistence"
	"github.com/dukex/chatflow/pkg/persistence/file"
	"github.com/dukex/chatflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFileService(t *testing.T) (*Flow, *mocks.MockEventBus) {
	t.Helper()

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	return NewFlow(file.NewPersistence(t.TempDir()), bus, discardLogger()), bus
}

func publishedOfType(bus *mocks.MockEventBus, eventType events.EventType) []any {
	var found []any

	for _, call := range bus.Calls {
		if call.Method != "Publish" {
			continue
		}

		if event, ok := call.Arguments.Get(2).(interface{ GetType() events.EventType }); ok && event.GetType() == eventType {
			found = append(found, event)
		}
	}

	return found
}

func TestFlow_CreateSeedsAndPublishes(t *testing.T) {
	service, bus := newFileService(t)

	created, err := service.Create(t.Context(), "Welcome", "greets new users")
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Welcome", created.Name)
	assert.Equal(t, "greets new users", created.Description)
	require.Len(t, created.Nodes, 2)
	assert.Equal(t, models.NodeKindFlow, created.Nodes[0].Type)
	assert.Equal(t, models.NodeKindMessage, created.Nodes[1].Type)
	require.Len(t, created.Edges, 1)

	saved := publishedOfType(bus, events.FlowSavedEvent)
	require.Len(t, saved, 1)

	event := saved[0].(events.FlowSaved)
	assert.True(t, event.Created)
	assert.Equal(t, created.ID, event.FlowID)
	assert.Equal(t, 2, event.NodeCount)
	assert.Equal(t, 1, event.EdgeCount)

	fetched, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Welcome", fetched.Name)
}

func TestFlow_CreateWithoutNameUsesDefault(t *testing.T) {
	service, _ := newFileService(t)

	created, err := service.Create(t.Context(), "", "")
	require.NoError(t, err)

	assert.Equal(t, models.DefaultFlowName, created.Name)
}

func TestFlow_ListAndDelete(t *testing.T) {
	service, bus := newFileService(t)

	first, err := service.Create(t.Context(), "First", "")
	require.NoError(t, err)

	_, err = service.Create(t.Context(), "Second", "")
	require.NoError(t, err)

	flows, err := service.List(t.Context())
	require.NoError(t, err)
	assert.Len(t, flows, 2)

	require.NoError(t, service.Delete(t.Context(), first.ID))
	assert.Len(t, publishedOfType(bus, events.FlowDeletedEvent), 1)

	_, err = service.FetchByID(t.Context(), first.ID)
	assert.True(t, persistence.IsFlowNotFound(err))

	err = service.Delete(t.Context(), first.ID)
	assert.True(t, IsNotFoundError(err))
}

func TestFlow_Duplicate(t *testing.T) {
	service, bus := newFileService(t)

	original, err := service.Create(t.Context(), "Support", "")
	require.NoError(t, err)

	copied, err := service.Duplicate(t.Context(), original.ID)
	require.NoError(t, err)

	assert.NotEqual(t, original.ID, copied.ID)
	assert.Equal(t, "Support"+persistence.CopySuffix, copied.Name)
	assert.Len(t, copied.Nodes, len(original.Nodes))

	duplicated := publishedOfType(bus, events.FlowDuplicatedEvent)
	require.Len(t, duplicated, 1)
	assert.Equal(t, original.ID, duplicated[0].(events.FlowDuplicated).SourceFlowID)
}

func TestFlow_EditOperations(t *testing.T) {
	service, _ := newFileService(t)
	ctx := t.Context()

	created, err := service.Create(ctx, "Survey", "")
	require.NoError(t, err)

	start := created.Nodes[0].ID
	message := created.Nodes[1].ID

	input, _, err := service.AddNode(ctx, created.ID, models.NodeKindInput, models.Position{X: 250, Y: 350})
	require.NoError(t, err)
	assert.Equal(t, models.NodeKindInput, input.Type)

	edge, accepted, err := service.Connect(ctx, created.ID, message, input.ID)
	require.NoError(t, err)
	require.True(t, accepted)
	assert.Equal(t, input.ID, edge.Target)

	_, accepted, err = service.Connect(ctx, created.ID, start, input.ID)
	require.NoError(t, err)
	assert.False(t, accepted, "input already has a parent")

	node, _, err := service.UpdateNode(ctx, created.ID, input.ID, NodeUpdate{
		Data:     map[string]any{"variable": "email"},
		Position: &models.Position{X: 10, Y: 20},
	})
	require.NoError(t, err)
	assert.Equal(t, "email", node.Data.(*models.InputData).Variable)
	assert.Equal(t, models.Position{X: 10, Y: 20}, node.Position)

	saved, err := service.SetTrigger(ctx, created.ID, models.TriggerConfig{Type: models.TriggerExactMatch, Value: "survey"})
	require.NoError(t, err)
	assert.Equal(t, "exact_match:survey", saved.Trigger)

	saved, err = service.Disconnect(ctx, created.ID, edge.ID)
	require.NoError(t, err)
	assert.Len(t, saved.Edges, 1)

	saved, err = service.RemoveNode(ctx, created.ID, message)
	require.NoError(t, err)
	assert.Len(t, saved.Nodes, 2)
	assert.Empty(t, saved.Edges)
}

func TestFlow_RejectedEdgeDoesNotSave(t *testing.T) {
	p := mocks.NewMockPersistence()
	flow := testutil.CreateTestFlow(
		testutil.WithNodes(
			testutil.CreateTestNode(models.NodeKindInput, "a"),
			testutil.CreateTestNode(models.NodeKindCondition, "b"),
		),
		testutil.WithEdges(testutil.CreateTestEdge("a", "b")),
	)
	flow.ID = "flow-1"

	p.Flows.On("GetFlow", mock.Anything, "flow-1").Return(flow, nil)

	service := NewFlow(p, nil, discardLogger())

	edge, accepted, err := service.Connect(t.Context(), "flow-1", "b", "b")
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Nil(t, edge)
	p.Flows.AssertNotCalled(t, "SaveFlow", mock.Anything, mock.Anything)
}

func TestFlow_UpdateNodeSelectsTemplate(t *testing.T) {
	service, _ := newFileService(t)

	created, err := service.Create(t.Context(), "Promo", "")
	require.NoError(t, err)

	tpl := models.MessageTemplate{
		ID:   "77",
		Name: "promo",
		Components: []models.TemplateComponent{
			{Type: models.ComponentBody, Text: "Hello {{1}}"},
		},
	}

	node, _, err := service.UpdateNode(t.Context(), created.ID, created.Nodes[1].ID, NodeUpdate{Template: &tpl})
	require.NoError(t, err)

	data := node.Data.(*models.MessageData)
	assert.Equal(t, models.MessageTypeTemplate, data.MessageType)
	assert.Equal(t, "Hello {{1}}", data.Content)

	_, _, err = service.UpdateNode(t.Context(), created.ID, created.Nodes[0].ID, NodeUpdate{Template: &tpl})
	assert.True(t, IsValidationError(err))
}

func TestFlow_EditErrors(t *testing.T) {
	service, _ := newFileService(t)

	created, err := service.Create(t.Context(), "Errors", "")
	require.NoError(t, err)

	_, _, err = service.AddNode(t.Context(), created.ID, "webhook", models.Position{})
	assert.True(t, IsValidationError(err))

	_, err = service.RemoveNode(t.Context(), created.ID, "missing")
	assert.True(t, IsNotFoundError(err))

	_, err = service.Disconnect(t.Context(), created.ID, "missing")
	assert.True(t, IsNotFoundError(err))

	_, err = service.SetTrigger(t.Context(), created.ID, models.TriggerConfig{Type: models.TriggerSchedule, Value: "every day"})
	assert.True(t, IsValidationError(err))

	_, err = service.RemoveNode(t.Context(), "does-not-exist", "x")
	assert.True(t, IsNotFoundError(err))
}

func TestFlow_Replace(t *testing.T) {
	service, _ := newFileService(t)

	created, err := service.Create(t.Context(), "Original", "")
	require.NoError(t, err)

	doc := created.Clone()
	doc.ID = "ignored"
	doc.Name = "Replaced"
	doc.Trigger = "regex:^hi"

	saved, err := service.Replace(t.Context(), created.ID, doc)
	require.NoError(t, err)
	assert.Equal(t, created.ID, saved.ID)
	assert.Equal(t, "Replaced", saved.Name)
}

func TestFlow_ReplaceRejectsInvalidDocuments(t *testing.T) {
	service, _ := newFileService(t)

	created, err := service.Create(t.Context(), "Original", "")
	require.NoError(t, err)

	dangling := created.Clone()
	dangling.Edges = append(dangling.Edges, &models.Edge{ID: "e-x", Source: "nope", Target: created.Nodes[0].ID})

	_, err = service.Replace(t.Context(), created.ID, dangling)
	assert.True(t, IsValidationError(err))
	assert.True(t, models.IsCorruptFlow(err))

	badEnum := created.Clone()
	badEnum.Nodes[1].Data.(*models.MessageData).MessageType = "video"

	_, err = service.Replace(t.Context(), created.ID, badEnum)
	assert.True(t, IsValidationError(err))
	assert.True(t, models.IsCorruptFlow(err))
	assert.Contains(t, err.Error(), `unknown messageType "video"`)

	badTrigger := created.Clone()
	badTrigger.Trigger = "regex:("

	_, err = service.Replace(t.Context(), created.ID, badTrigger)
	assert.True(t, IsValidationError(err))

	_, err = service.Replace(t.Context(), created.ID, nil)
	assert.ErrorIs(t, err, ErrFlowNil)

	_, err = service.Replace(t.Context(), "missing", created.Clone())
	assert.True(t, IsNotFoundError(err))
}

func TestFlow_PublishFailureIsNotFatal(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bus down"))

	service := NewFlow(file.NewPersistence(t.TempDir()), bus, discardLogger())

	created, err := service.Create(t.Context(), "Resilient", "")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	bus.AssertNumberOfCalls(t, "Publish", 1)
}

func TestFlow_HealthCheck(t *testing.T) {
	p := mocks.NewMockPersistence()
	p.On("HealthCheck", mock.Anything).Return(nil).Once()
	p.On("HealthCheck", mock.Anything).Return(errors.New("disk full")).Once()

	service := NewFlow(p, nil, discardLogger())

	message, ok := service.HealthCheck(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", message)

	message, ok = service.HealthCheck(context.Background())
	assert.False(t, ok)
	assert.Contains(t, message, "disk full")

	message, ok = NewFlow(nil, nil, nil).HealthCheck(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "Persistence layer not initialized", message)
}
