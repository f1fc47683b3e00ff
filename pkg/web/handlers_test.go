package web_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/chatflow/pkg/mocks"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/persistence/file"
	"github.com/dukex/chatflow/pkg/services"
	"github.com/dukex/chatflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var welcomeTemplate = models.MessageTemplate{
	ID:       "1001",
	Name:     "welcome",
	Language: "en_US",
	Components: []models.TemplateComponent{
		{Type: models.ComponentBody, Text: "Hi {{1}}, welcome to {{2}}"},
	},
}

func setupTestApp(t *testing.T, source *mocks.MockTemplateSource) (*fiber.App, *services.Flow) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	flowService := services.NewFlow(file.NewPersistence(t.TempDir()), nil, logger)

	var templateService *services.Templates
	if source != nil {
		templateService = services.NewTemplates(source, logger)
	} else {
		templateService = services.NewTemplates(nil, logger)
	}

	handlers := web.NewAPIHandlers(flowService, templateService, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	app.Get("/health", handlers.HealthCheck)
	app.Get("/node-types", handlers.GetNodeTypes)
	app.Get("/templates", handlers.GetTemplates)
	app.Post("/templates/variables", handlers.ExtractTemplateVariables)

	f := app.Group("/flows")
	f.Get("/", handlers.GetFlows)
	f.Post("/", handlers.CreateFlow)
	f.Get("/:id", handlers.GetFlow)
	f.Put("/:id", handlers.ReplaceFlow)
	f.Delete("/:id", handlers.DeleteFlow)
	f.Post("/:id/duplicate", handlers.DuplicateFlow)
	f.Post("/:id/nodes", handlers.CreateNode)
	f.Patch("/:id/nodes/:nodeId", handlers.UpdateNode)
	f.Delete("/:id/nodes/:nodeId", handlers.DeleteNode)
	f.Post("/:id/edges", handlers.CreateEdge)
	f.Delete("/:id/edges/:edgeId", handlers.DeleteEdge)
	f.Put("/:id/trigger", handlers.SetTrigger)

	return app, flowService
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, respBody
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))

	return v
}

func createFlow(t *testing.T, app *fiber.App, name string) *models.Flow {
	t.Helper()

	resp, body := doRequest(t, app, http.MethodPost, "/flows", web.CreateFlowRequest{Name: name})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	return decode[*models.Flow](t, body)
}

func TestAPIHandlers_CreateAndGetFlow(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t, nil)

	created := createFlow(t, app, "Onboarding")
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Onboarding", created.Name)
	require.Len(t, created.Nodes, 2)
	require.Len(t, created.Edges, 1)

	resp, body := doRequest(t, app, http.MethodGet, "/flows/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	fetched := decode[*models.Flow](t, body)
	assert.Equal(t, created.ID, fetched.ID)
	assert.IsType(t, &models.FlowData{}, fetched.Nodes[0].Data)

	resp, body = doRequest(t, app, http.MethodGet, "/flows", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]*models.Flow](t, body), 1)
}

func TestAPIHandlers_GetFlow_NotFound(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t, nil)

	resp, body := doRequest(t, app, http.MethodGet, "/flows/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	problem := decode[map[string]any](t, body)
	assert.Equal(t, "flow_not_found", problem["type"])
	assert.Equal(t, "/flows/missing", problem["instance"])
}

func TestAPIHandlers_CreateFlow_InvalidBody(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/flows", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_DeleteAndDuplicate(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t, nil)
	created := createFlow(t, app, "Support")

	resp, body := doRequest(t, app, http.MethodPost, "/flows/"+created.ID+"/duplicate", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	copied := decode[*models.Flow](t, body)
	assert.Equal(t, "Support (Copy)", copied.Name)
	assert.NotEqual(t, created.ID, copied.ID)

	resp, _ = doRequest(t, app, http.MethodDelete, "/flows/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodDelete, "/flows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_NodeAndEdgeEditing(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t, nil)
	created := createFlow(t, app, "Branching")
	base := "/flows/" + created.ID
	message := created.Nodes[1].ID

	resp, body := doRequest(t, app, http.MethodPost, base+"/nodes", web.CreateNodeRequest{Type: "condition", Position: models.Position{X: 100, Y: 400}})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	condition := decode[web.NodeResponse](t, body).Node
	assert.Equal(t, models.NodeKindCondition, condition.Type)

	resp, body = doRequest(t, app, http.MethodPost, base+"/edges", web.CreateEdgeRequest{Source: message, Target: condition.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	added := decode[web.EdgeResponse](t, body)
	require.True(t, added.Accepted)

	resp, body = doRequest(t, app, http.MethodPost, base+"/edges", web.CreateEdgeRequest{Source: created.Nodes[0].ID, Target: condition.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[web.EdgeResponse](t, body).Accepted)

	resp, body = doRequest(t, app, http.MethodPatch, base+"/nodes/"+condition.ID, web.UpdateNodeRequest{
		Data: map[string]any{"condition": "age > 18"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "age > 18", decode[web.NodeResponse](t, body).Node.Data.(*models.ConditionData).Condition)

	resp, body = doRequest(t, app, http.MethodDelete, base+"/edges/"+added.Edge.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[*models.Flow](t, body).Edges, 1)

	resp, body = doRequest(t, app, http.MethodDelete, base+"/nodes/"+message, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	flow := decode[*models.Flow](t, body)
	assert.Len(t, flow.Nodes, 2)
	assert.Empty(t, flow.Edges)
}

func TestAPIHandlers_NodeErrors(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t, nil)
	created := createFlow(t, app, "Errors")
	base := "/flows/" + created.ID

	tests := []struct {
		name           string
		method         string
		path           string
		body           any
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "unknown node type",
			method:         http.MethodPost,
			path:           base + "/nodes",
			body:           web.CreateNodeRequest{Type: "webhook"},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "missing node",
			method:         http.MethodDelete,
			path:           base + "/nodes/ghost",
			expectedStatus: http.StatusNotFound,
			expectedType:   "node_not_found",
		},
		{
			name:           "missing edge",
			method:         http.MethodDelete,
			path:           base + "/edges/ghost",
			expectedStatus: http.StatusNotFound,
			expectedType:   "edge_not_found",
		},
		{
			name:           "edge without target",
			method:         http.MethodPost,
			path:           base + "/edges",
			body:           web.CreateEdgeRequest{Source: created.Nodes[0].ID},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "invalid message type",
			method:         http.MethodPatch,
			path:           base + "/nodes/" + created.Nodes[1].ID,
			body:           web.UpdateNodeRequest{Data: map[string]any{"messageType": "video"}},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "flow missing",
			method:         http.MethodPost,
			path:           "/flows/nope/nodes",
			body:           web.CreateNodeRequest{Type: "input"},
			expectedStatus: http.StatusNotFound,
			expectedType:   "flow_not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doRequest(t, app, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode, string(body))
			assert.Equal(t, tt.expectedType, decode[map[string]any](t, body)["type"])
		})
	}
}

func TestAPIHandlers_SetTrigger(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t, nil)
	created := createFlow(t, app, "Scheduled")

	resp, body := doRequest(t, app, http.MethodPut, "/flows/"+created.ID+"/trigger", web.TriggerRequest{Type: "schedule", Value: "0 9 * * 1"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "schedule:0 9 * * 1", decode[*models.Flow](t, body).Trigger)

	resp, _ = doRequest(t, app, http.MethodPut, "/flows/"+created.ID+"/trigger", web.TriggerRequest{Type: "schedule", Value: "whenever"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodPut, "/flows/"+created.ID+"/trigger", web.TriggerRequest{Type: "webhook"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_ReplaceFlow(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t, nil)
	created := createFlow(t, app, "Replace me")

	doc := web.FlowDocumentRequest{
		Name:    "Replaced",
		Trigger: "button:yes",
		Nodes:   created.Nodes,
		Edges:   created.Edges,
	}

	resp, body := doRequest(t, app, http.MethodPut, "/flows/"+created.ID, doc)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "Replaced", decode[*models.Flow](t, body).Name)

	doc.Edges = append(doc.Edges, &models.Edge{ID: "dangling", Source: "ghost", Target: created.Nodes[1].ID})

	resp, _ = doRequest(t, app, http.MethodPut, "/flows/"+created.ID, doc)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodPut, "/flows/"+created.ID, map[string]any{"name": "No graph"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_Templates(t *testing.T) {
	t.Parallel()

	source := &mocks.MockTemplateSource{}
	source.On("GetWhatsAppTemplates", mock.Anything).Return([]models.MessageTemplate{welcomeTemplate}, nil)

	app, _ := setupTestApp(t, source)

	resp, body := doRequest(t, app, http.MethodGet, "/templates", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	listed := decode[web.TemplatesResponse](t, body)
	require.Len(t, listed.Templates, 1)
	assert.Empty(t, listed.Warning)

	created := createFlow(t, app, "Templated")

	resp, body = doRequest(t, app, http.MethodPatch, "/flows/"+created.ID+"/nodes/"+created.Nodes[1].ID, web.UpdateNodeRequest{TemplateID: "1001"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	data := decode[web.NodeResponse](t, body).Node.Data.(*models.MessageData)
	assert.Equal(t, models.MessageTypeTemplate, data.MessageType)
	assert.Equal(t, models.TemplateID("1001"), data.TemplateID)

	resp, _ = doRequest(t, app, http.MethodPatch, "/flows/"+created.ID+"/nodes/"+created.Nodes[1].ID, web.UpdateNodeRequest{TemplateID: "999"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_TemplatesFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	source := &mocks.MockTemplateSource{}
	source.On("GetWhatsAppTemplates", mock.Anything).Return(nil, errors.New("graph api timeout"))

	app, _ := setupTestApp(t, source)

	resp, body := doRequest(t, app, http.MethodGet, "/templates", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	listed := decode[web.TemplatesResponse](t, body)
	assert.NotNil(t, listed.Templates)
	assert.Empty(t, listed.Templates)
	assert.Contains(t, listed.Warning, "graph api timeout")
}

func TestAPIHandlers_ExtractTemplateVariables(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t, nil)

	resp, body := doRequest(t, app, http.MethodPost, "/templates/variables", web.TemplateVariablesRequest{
		Components: welcomeTemplate.Components,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"1", "2"}, decode[web.TemplateVariablesResponse](t, body).Variables)

	resp, _ = doRequest(t, app, http.MethodPost, "/templates/variables", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_NodeTypesAndHealth(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t, nil)

	resp, body := doRequest(t, app, http.MethodGet, "/node-types", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	types := decode[[]map[string]any](t, body)
	require.Len(t, types, len(models.NodeKinds))
	assert.Equal(t, "flow", types[0]["kind"])

	resp, body = doRequest(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decode[map[string]any](t, body)["status"])
}
