package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/persistence"
	"github.com/google/uuid"
)

const flowsDir = "flows"

// FlowRepository stores each flow as root/flows/{id}.json.
type FlowRepository struct {
	root string
	mu   sync.RWMutex
	now  func() time.Time
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(root string) *FlowRepository {
	return &FlowRepository{
		root: root,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (fr *FlowRepository) path(id string) string {
	return filepath.Join(fr.root, flowsDir, filepath.Base(id)+".json")
}

// GetFlow reads a flow and checks it against the document schema.
func (fr *FlowRepository) GetFlow(_ context.Context, id string) (*models.Flow, error) {
	fr.mu.RLock()
	defer fr.mu.RUnlock()

	return fr.read(id)
}

func (fr *FlowRepository) read(id string) (*models.Flow, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, persistence.NewFlowError("GetFlow", id, persistence.ErrFlowNotFound)
	}

	body, err := os.ReadFile(fr.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewFlowError("GetFlow", id, persistence.ErrFlowNotFound)
		}

		return nil, persistence.NewFlowError("GetFlow", id, err)
	}

	if err := models.ValidateFlowDocument(body); err != nil {
		var corrupt *models.CorruptFlowError
		if errors.As(err, &corrupt) {
			corrupt.FlowID = id
		}

		return nil, persistence.NewFlowError("GetFlow", id, err)
	}

	var flow models.Flow
	if err := json.Unmarshal(body, &flow); err != nil {
		return nil, persistence.NewFlowError("GetFlow", id, &models.CorruptFlowError{
			FlowID:  id,
			Element: "document",
			Reason:  "cannot decode flow",
			Err:     err,
		})
	}

	if flow.ID == "" {
		flow.ID = id
	}

	return &flow, nil
}

// SaveFlow writes a flow, assigning an ID on create and refreshing timestamps.
func (fr *FlowRepository) SaveFlow(_ context.Context, flow *models.Flow) (*models.Flow, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	return fr.write(flow.Clone())
}

func (fr *FlowRepository) write(flow *models.Flow) (*models.Flow, error) {
	if strings.ContainsAny(flow.ID, `/\`) {
		return nil, persistence.NewFlowError("SaveFlow", flow.ID, fmt.Errorf("invalid flow id %q", flow.ID))
	}

	if err := os.MkdirAll(filepath.Join(fr.root, flowsDir), 0750); err != nil {
		return nil, persistence.NewFlowError("SaveFlow", flow.ID, fmt.Errorf("failed to create flows directory: %w", err))
	}

	if flow.ID == "" {
		flow.ID = uuid.NewString()
	}

	now := fr.now()
	if flow.CreatedAt == nil {
		if existing, err := fr.read(flow.ID); err == nil && existing.CreatedAt != nil {
			flow.CreatedAt = existing.CreatedAt
		} else {
			flow.CreatedAt = &now
		}
	}

	flow.UpdatedAt = &now
	flow.ApplyDefaults()

	data, err := json.MarshalIndent(flow, "", "  ")
	if err != nil {
		return nil, persistence.NewFlowError("SaveFlow", flow.ID, fmt.Errorf("failed to marshal flow: %w", err))
	}

	if err := os.WriteFile(fr.path(flow.ID), data, 0600); err != nil {
		return nil, persistence.NewFlowError("SaveFlow", flow.ID, err)
	}

	return flow, nil
}

// GetFlows returns every stored flow, most recently updated first.
func (fr *FlowRepository) GetFlows(_ context.Context) ([]*models.Flow, error) {
	fr.mu.RLock()
	defer fr.mu.RUnlock()

	jsonFiles, err := fs.Glob(os.DirFS(filepath.Join(fr.root, flowsDir)), "*.json")
	if err != nil {
		return nil, persistence.NewFlowError("GetFlows", "", fmt.Errorf("failed to list flow files: %w", err))
	}

	flows := make([]*models.Flow, 0, len(jsonFiles))
	for _, file := range jsonFiles {
		flow, err := fr.read(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		flows = append(flows, flow)
	}

	sort.SliceStable(flows, func(i, j int) bool {
		return updatedAt(flows[i]).After(updatedAt(flows[j]))
	})

	return flows, nil
}

func updatedAt(flow *models.Flow) time.Time {
	if flow.UpdatedAt == nil {
		return time.Time{}
	}

	return *flow.UpdatedAt
}

// DeleteFlow removes a flow by its ID.
func (fr *FlowRepository) DeleteFlow(_ context.Context, id string) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	if id == "" || strings.ContainsAny(id, `/\`) {
		return persistence.NewFlowError("DeleteFlow", id, persistence.ErrFlowNotFound)
	}

	err := os.Remove(fr.path(id))
	if os.IsNotExist(err) {
		return persistence.NewFlowError("DeleteFlow", id, persistence.ErrFlowNotFound)
	}

	if err != nil {
		return persistence.NewFlowError("DeleteFlow", id, err)
	}

	return nil
}

// DuplicateFlow stores a copy of a flow under a new ID.
func (fr *FlowRepository) DuplicateFlow(_ context.Context, id string) (*models.Flow, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	source, err := fr.read(id)
	if err != nil {
		return nil, err
	}

	source.ID = ""
	source.Name += persistence.CopySuffix
	source.CreatedAt = nil
	source.UpdatedAt = nil

	return fr.write(source)
}
