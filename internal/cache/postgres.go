package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/database"
	"github.com/JonMunkholm/assetkeeper/internal/metadata"
)

const upsertAssetQuery = `
INSERT INTO asset_cache (kind, asset_id, name, enrichment_status, metadata, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (kind, asset_id) DO UPDATE SET
    name = EXCLUDED.name,
    enrichment_status = EXCLUDED.enrichment_status,
    metadata = EXCLUDED.metadata,
    updated_at = now()`

// Postgres stores cache records in the asset_cache table.
type Postgres struct {
	pool   database.Pool
	source Source
}

// NewPostgres returns a cache backed by pool that rebuilds from source.
func NewPostgres(pool database.Pool, source Source) *Postgres {
	return &Postgres{pool: pool, source: source}
}

func (c *Postgres) ReplaceAsset(ctx context.Context, kind asset.Kind, id string, m metadata.Metadata) error {
	return upsert(ctx, c.pool, kind, id, m)
}

// RebuildCacheForAssetType replaces every record of kind in one transaction.
func (c *Postgres) RebuildCacheForAssetType(ctx context.Context, kind asset.Kind) error {
	records, err := c.source.Load(ctx, kind)
	if err != nil {
		return err
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin cache rebuild: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM asset_cache WHERE kind = $1`, string(kind)); err != nil {
		return fmt.Errorf("clear %s cache: %w", kind, err)
	}
	for _, m := range records {
		if err := upsert(ctx, tx, kind, m.ID, m); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cache rebuild: %w", err)
	}
	return nil
}

// Get loads one cached record.
func (c *Postgres) Get(ctx context.Context, kind asset.Kind, id string) (metadata.Metadata, error) {
	var raw []byte
	err := c.pool.QueryRow(ctx,
		`SELECT metadata FROM asset_cache WHERE kind = $1 AND asset_id = $2`,
		string(kind), id,
	).Scan(&raw)
	if err != nil {
		return metadata.Metadata{}, fmt.Errorf("get cached %s %s: %w", kind, id, err)
	}
	var m metadata.Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return metadata.Metadata{}, fmt.Errorf("decode cached %s %s: %w", kind, id, err)
	}
	return m, nil
}

func upsert(ctx context.Context, db database.DBTX, kind asset.Kind, id string, m metadata.Metadata) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode cache record: %w", err)
	}
	if _, err := db.Exec(ctx, upsertAssetQuery, string(kind), id, m.Name, string(m.EnrichmentStatus), doc); err != nil {
		return fmt.Errorf("upsert cached %s %s: %w", kind, id, err)
	}
	return nil
}
