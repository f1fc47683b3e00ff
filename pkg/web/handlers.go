// Package web provides HTTP handlers and REST API endpoints for chatbot flow editing.
package web

import (
	"net/http"
	"time"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/registry"
	"github.com/dukex/chatflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	flowService     *services.Flow
	templateService *services.Templates
	validator       *validator.Validate
}

func NewAPIHandlers(
	flowService *services.Flow,
	templateService *services.Templates,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		flowService:     flowService,
		templateService: templateService,
		validator:       validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.flowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Chatflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Chatflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	flows, err := h.flowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flows)
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	flow, err := h.flowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.flowService.Create(c.Context(), req.Name, req.Description)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) ReplaceFlow(c fiber.Ctx) error {
	var req FlowDocumentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid flow document: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	saved, err := h.flowService.Replace(c.Context(), c.Params("id"), req.Flow())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(saved)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	if err := h.flowService.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DuplicateFlow(c fiber.Ctx) error {
	copied, err := h.flowService.Duplicate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(copied)
}

func (h *APIHandlers) CreateNode(c fiber.Ctx) error {
	var req CreateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, flow, err := h.flowService.AddNode(c.Context(), c.Params("id"), models.NodeKind(req.Type), req.Position)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(NodeResponse{Node: node, Flow: flow})
}

func (h *APIHandlers) UpdateNode(c fiber.Ctx) error {
	var req UpdateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	update := services.NodeUpdate{Data: req.Data, Position: req.Position}

	if req.TemplateID != "" {
		templates, err := h.templateService.List(c.Context())
		if err != nil {
			return unavailable(c, "Message templates are unavailable: "+err.Error())
		}

		tpl := findTemplate(templates, req.TemplateID)
		if tpl == nil {
			return badRequest(c, "Unknown template "+req.TemplateID)
		}

		update.Template = tpl
	}

	node, flow, err := h.flowService.UpdateNode(c.Context(), c.Params("id"), c.Params("nodeId"), update)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(NodeResponse{Node: node, Flow: flow})
}

func findTemplate(templates []models.MessageTemplate, id string) *models.MessageTemplate {
	for i := range templates {
		if string(templates[i].ID) == id {
			return &templates[i]
		}
	}

	return nil
}

func (h *APIHandlers) DeleteNode(c fiber.Ctx) error {
	flow, err := h.flowService.RemoveNode(c.Context(), c.Params("id"), c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) CreateEdge(c fiber.Ctx) error {
	var req CreateEdgeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	edge, accepted, err := h.flowService.Connect(c.Context(), c.Params("id"), req.Source, req.Target)
	if err != nil {
		return handleServiceError(c, err)
	}

	if !accepted {
		return c.JSON(EdgeResponse{Accepted: false})
	}

	return c.Status(fiber.StatusCreated).JSON(EdgeResponse{Accepted: true, Edge: edge})
}

func (h *APIHandlers) DeleteEdge(c fiber.Ctx) error {
	flow, err := h.flowService.Disconnect(c.Context(), c.Params("id"), c.Params("edgeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) SetTrigger(c fiber.Ctx) error {
	var req TriggerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow, err := h.flowService.SetTrigger(c.Context(), c.Params("id"), models.TriggerConfig{
		Type:  models.TriggerKind(req.Type),
		Value: req.Value,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) GetNodeTypes(c fiber.Ctx) error {
	return c.JSON(registry.Definitions())
}

// GetTemplates never fails: an unavailable template source yields an empty
// list with a warning so message nodes stay editable.
func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	templates, err := h.templateService.List(c.Context())

	response := TemplatesResponse{Templates: templates}
	if err != nil {
		response.Warning = "Message templates are unavailable: " + err.Error()
	}

	return c.JSON(response)
}

func (h *APIHandlers) ExtractTemplateVariables(c fiber.Ctx) error {
	var req TemplateVariablesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	return c.JSON(TemplateVariablesResponse{Variables: h.templateService.Variables(req.Components)})
}
