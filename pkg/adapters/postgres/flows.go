package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aretw0/parley/internal/compiler"
	"github.com/aretw0/parley/pkg/domain"
)

// FlowRepository implements ports.FlowRepository on the bot_flows table.
// Each row holds the editor document of one bot as JSONB.
type FlowRepository struct {
	pool *pgxpool.Pool
}

// NewFlowRepository creates a repository on a migrated pool.
func NewFlowRepository(pool *pgxpool.Pool) *FlowRepository {
	return &FlowRepository{pool: pool}
}

// Load compiles the stored document of a bot.
func (r *FlowRepository) Load(ctx context.Context, botID string) (*domain.Flow, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT document FROM bot_flows WHERE bot_id = $1`, botID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, botID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load flow %s: %w", botID, err)
	}
	flow, err := compiler.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to compile flow %s: %w", botID, err)
	}
	flow.BotID = botID
	return flow, nil
}

func (r *FlowRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT bot_id FROM bot_flows ORDER BY bot_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Save stores or replaces the flow of flow.BotID.
func (r *FlowRepository) Save(ctx context.Context, flow *domain.Flow) error {
	if flow.BotID == "" {
		return fmt.Errorf("flow has no bot id")
	}
	doc, err := compiler.Marshal(flow)
	if err != nil {
		return fmt.Errorf("failed to encode flow %s: %w", flow.BotID, err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO bot_flows (bot_id, name, document, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (bot_id) DO UPDATE
		SET name = EXCLUDED.name, document = EXCLUDED.document, updated_at = now()`,
		flow.BotID, flow.Name, string(doc))
	if err != nil {
		return fmt.Errorf("failed to save flow %s: %w", flow.BotID, err)
	}
	return nil
}

// Delete removes the flow of a bot.
func (r *FlowRepository) Delete(ctx context.Context, botID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM bot_flows WHERE bot_id = $1`, botID); err != nil {
		return fmt.Errorf("failed to delete flow %s: %w", botID, err)
	}
	return nil
}
