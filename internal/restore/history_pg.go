package restore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/assetkeeper/internal/database"
)

// PostgresHistory stores deployments in the deployment_history table.
type PostgresHistory struct {
	db database.DBTX
}

// NewPostgresHistory returns a history backed by db.
func NewPostgresHistory(db database.DBTX) *PostgresHistory {
	return &PostgresHistory{db: db}
}

func (h *PostgresHistory) Start(ctx context.Context, r DeploymentResult) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode deployment %s: %w", r.DeploymentID, err)
	}
	_, err = h.db.Exec(ctx, `
		INSERT INTO deployment_history
		    (deployment_id, kind, source_id, target_id, status, success, started_at, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (deployment_id) DO NOTHING`,
		r.DeploymentID, string(r.Kind), r.SourceID, r.TargetID, string(r.Status), r.Success, r.StartedAt, body,
	)
	if err != nil {
		return fmt.Errorf("insert deployment %s: %w", r.DeploymentID, err)
	}
	return nil
}

// Complete writes the terminal record. Only the first completion of a
// deployment is applied.
func (h *PostgresHistory) Complete(ctx context.Context, r DeploymentResult) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode deployment %s: %w", r.DeploymentID, err)
	}
	_, err = h.db.Exec(ctx, `
		UPDATE deployment_history
		SET status = $2, success = $3, completed_at = $4, result = $5
		WHERE deployment_id = $1 AND completed_at IS NULL`,
		r.DeploymentID, string(r.Status), r.Success, r.CompletedAt, body,
	)
	if err != nil {
		return fmt.Errorf("complete deployment %s: %w", r.DeploymentID, err)
	}
	return nil
}

func (h *PostgresHistory) Get(ctx context.Context, id string) (DeploymentResult, error) {
	var body []byte
	err := h.db.QueryRow(ctx,
		`SELECT result FROM deployment_history WHERE deployment_id = $1`, id,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return DeploymentResult{}, ErrDeploymentNotFound
	}
	if err != nil {
		return DeploymentResult{}, fmt.Errorf("get deployment %s: %w", id, err)
	}
	var r DeploymentResult
	if err := json.Unmarshal(body, &r); err != nil {
		return DeploymentResult{}, fmt.Errorf("decode deployment %s: %w", id, err)
	}
	return r, nil
}

// List returns up to limit deployments, newest first. A limit <= 0 returns all.
func (h *PostgresHistory) List(ctx context.Context, limit int) ([]DeploymentResult, error) {
	query := `SELECT result FROM deployment_history ORDER BY started_at DESC, deployment_id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := h.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	var out []DeploymentResult
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		var r DeploymentResult
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("decode deployment: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
