package postgresql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/persistence"
	"github.com/google/uuid"
)

const selectFlowColumns = `
		SELECT
			id
		  , name
		  , description
		  , trigger
		  , nodes
		  , edges
		  , created_at
		  , updated_at
		FROM flows
`

// FlowRepository handles flow-related database operations. Nodes and edges
// are stored as JSONB documents on the flow row.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// GetFlow returns a flow by its ID.
func (r *FlowRepository) GetFlow(ctx context.Context, id string) (*models.Flow, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, persistence.NewFlowError("GetFlow", id, persistence.ErrFlowNotFound)
	}

	row := r.db.QueryRowContext(ctx, selectFlowColumns+" WHERE id = $1 AND deleted_at IS NULL", id)

	flow, err := r.scanFlow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewFlowError("GetFlow", id, persistence.ErrFlowNotFound)
	}

	if err != nil {
		return nil, classify("GetFlow", id, err)
	}

	return flow, nil
}

// GetFlows returns all live flows, most recently updated first.
func (r *FlowRepository) GetFlows(ctx context.Context) ([]*models.Flow, error) {
	rows, err := r.db.QueryContext(ctx, selectFlowColumns+" WHERE deleted_at IS NULL ORDER BY updated_at DESC")
	if err != nil {
		return nil, classify("GetFlows", "", fmt.Errorf("failed to query flows: %w", err))
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	flows := make([]*models.Flow, 0)

	for rows.Next() {
		flow, err := r.scanFlow(rows)
		if err != nil {
			return nil, classify("GetFlows", "", err)
		}

		flows = append(flows, flow)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("GetFlows", "", fmt.Errorf("error iterating flows: %w", err))
	}

	return flows, nil
}

// SaveFlow inserts or updates a flow. New flows get a time-ordered UUID.
func (r *FlowRepository) SaveFlow(ctx context.Context, flow *models.Flow) (*models.Flow, error) {
	saved := flow.Clone()
	saved.ApplyDefaults()

	if saved.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, persistence.NewFlowError("SaveFlow", "", fmt.Errorf("failed to generate flow id: %w", err))
		}

		saved.ID = id.String()
	} else if _, err := uuid.Parse(saved.ID); err != nil {
		return nil, persistence.NewFlowError("SaveFlow", saved.ID, fmt.Errorf("flow id must be a UUID: %w", err))
	}

	nodes, err := json.Marshal(saved.Nodes)
	if err != nil {
		return nil, persistence.NewFlowError("SaveFlow", saved.ID, fmt.Errorf("failed to marshal nodes: %w", err))
	}

	edges, err := json.Marshal(saved.Edges)
	if err != nil {
		return nil, persistence.NewFlowError("SaveFlow", saved.ID, fmt.Errorf("failed to marshal edges: %w", err))
	}

	query := `
		INSERT INTO flows (id, name, description, trigger, nodes, edges, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , description = EXCLUDED.description
		  , trigger = EXCLUDED.trigger
		  , nodes = EXCLUDED.nodes
		  , edges = EXCLUDED.edges
		  , updated_at = EXCLUDED.updated_at
		WHERE flows.deleted_at IS NULL
		RETURNING created_at, updated_at
	`

	var createdAt, updatedAt time.Time

	err = r.db.QueryRowContext(ctx, query,
		saved.ID, saved.Name, saved.Description, saved.Trigger, nodes, edges, r.now(),
	).Scan(&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewFlowError("SaveFlow", saved.ID, persistence.ErrFlowNotFound)
	}

	if err != nil {
		return nil, classify("SaveFlow", saved.ID, err)
	}

	saved.CreatedAt = &createdAt
	saved.UpdatedAt = &updatedAt

	return saved, nil
}

// DeleteFlow soft deletes a flow by setting deleted_at.
func (r *FlowRepository) DeleteFlow(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return persistence.NewFlowError("DeleteFlow", id, persistence.ErrFlowNotFound)
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE flows SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL", id, r.now())
	if err != nil {
		return classify("DeleteFlow", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return classify("DeleteFlow", id, err)
	}

	if affected == 0 {
		return persistence.NewFlowError("DeleteFlow", id, persistence.ErrFlowNotFound)
	}

	return nil
}

// DuplicateFlow stores a copy of a flow under a new ID.
func (r *FlowRepository) DuplicateFlow(ctx context.Context, id string) (*models.Flow, error) {
	source, err := r.GetFlow(ctx, id)
	if err != nil {
		return nil, err
	}

	source.ID = ""
	source.Name += persistence.CopySuffix
	source.CreatedAt = nil
	source.UpdatedAt = nil

	return r.SaveFlow(ctx, source)
}

func (r *FlowRepository) scanFlow(row rowScanner) (*models.Flow, error) {
	var (
		flow                 models.Flow
		nodes, edges         []byte
		createdAt, updatedAt time.Time
	)

	err := row.Scan(&flow.ID, &flow.Name, &flow.Description, &flow.Trigger, &nodes, &edges, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(nodes, &flow.Nodes); err != nil {
		return nil, &models.CorruptFlowError{FlowID: flow.ID, Element: "node", Reason: "cannot decode nodes", Err: err}
	}

	if err := json.Unmarshal(edges, &flow.Edges); err != nil {
		return nil, &models.CorruptFlowError{FlowID: flow.ID, Element: "edge", Reason: "cannot decode edges", Err: err}
	}

	flow.CreatedAt = &createdAt
	flow.UpdatedAt = &updatedAt
	flow.ApplyDefaults()

	return &flow, nil
}

// classify wraps err, marking connectivity failures as persistence.ErrNetwork.
func classify(op, id string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) {
		return persistence.NetworkError(op, id, err)
	}

	return persistence.NewFlowError(op, id, err)
}
