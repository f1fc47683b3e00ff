// Package web provides HTTP request and response types for the flow API.
package web

import "github.com/dukex/chatflow/pkg/models"

// CreateFlowRequest represents the request body for creating a new flow.
type CreateFlowRequest struct {
	Name        string `json:"name"        validate:"max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// FlowDocumentRequest is a whole flow document sent to replace a stored one.
type FlowDocumentRequest struct {
	Name        string         `json:"name"        validate:"required,max=200"`
	Description string         `json:"description" validate:"max=2000"`
	Trigger     string         `json:"trigger"`
	Nodes       []*models.Node `json:"nodes"       validate:"required"`
	Edges       []*models.Edge `json:"edges"       validate:"required"`
}

func (r FlowDocumentRequest) Flow() *models.Flow {
	return &models.Flow{
		Name:        r.Name,
		Description: r.Description,
		Trigger:     r.Trigger,
		Nodes:       r.Nodes,
		Edges:       r.Edges,
	}
}

type CreateNodeRequest struct {
	Type     string          `json:"type"     validate:"required,oneof=flow message input condition api function"`
	Position models.Position `json:"position"`
}

// UpdateNodeRequest is a partial node update. TemplateID selects a WhatsApp
// template for a message node before Data is merged.
type UpdateNodeRequest struct {
	Data       map[string]any   `json:"data,omitempty"`
	Position   *models.Position `json:"position,omitempty"`
	TemplateID string           `json:"templateId,omitempty"`
}

type NodeResponse struct {
	Node *models.Node `json:"node"`
	Flow *models.Flow `json:"flow"`
}

type CreateEdgeRequest struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// EdgeResponse reports whether a proposed edge was added. Rejection is not an error.
type EdgeResponse struct {
	Accepted bool         `json:"accepted"`
	Edge     *models.Edge `json:"edge,omitempty"`
}

type TriggerRequest struct {
	Type  string `json:"type"  validate:"required,oneof=message exact_match button api schedule event regex intent"`
	Value string `json:"value"`
}

// TemplatesResponse always carries a list; Warning is set when it could not be fetched.
type TemplatesResponse struct {
	Templates []models.MessageTemplate `json:"templates"`
	Warning   string                   `json:"warning,omitempty"`
}

type TemplateVariablesRequest struct {
	Components []models.TemplateComponent `json:"components" validate:"required"`
}

type TemplateVariablesResponse struct {
	Variables []string `json:"variables"`
}
