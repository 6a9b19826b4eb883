package restore

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/sjson"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/logging"
	"github.com/JonMunkholm/assetkeeper/internal/metadata"
	"github.com/JonMunkholm/assetkeeper/internal/storage"
)

// activate copies the restored document to the active location. Collection
// kinds are merged into the shared collection document under their id. The
// archived copy is left in place.
func (o *Orchestrator) activate(ctx context.Context, kind asset.Kind, id string, working *asset.ExportData) (string, error) {
	body, err := working.Encode()
	if err != nil {
		return "", fmt.Errorf("encode %s %s: %w", kind, id, err)
	}

	if !kind.IsCollection() {
		key := asset.ActiveKey(kind, id)
		if err := o.put(ctx, key, body); err != nil {
			return "", fmt.Errorf("write active %s: %w", key, err)
		}
		return key, nil
	}

	key := asset.CollectionKey(kind)
	unlock := o.locks.lock(key)
	defer unlock()

	doc, err := o.store.Get(ctx, o.bucket, key)
	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		doc = []byte("{}")
	case err != nil:
		return "", fmt.Errorf("read collection %s: %w", key, err)
	case len(bytes.TrimSpace(doc)) == 0:
		doc = []byte("{}")
	}

	merged, err := sjson.SetRawBytes(doc, id, body)
	if err != nil {
		return "", fmt.Errorf("merge %s into %s: %w", id, key, err)
	}
	if err := o.put(ctx, key, merged); err != nil {
		return "", fmt.Errorf("write collection %s: %w", key, err)
	}
	return key, nil
}

// updateCache replaces the cached record for the restored asset, falling
// back to a full rebuild of the kind when the targeted replace fails.
func (o *Orchestrator) updateCache(ctx context.Context, kind asset.Kind, id string, working *asset.ExportData) error {
	if o.cache == nil {
		return nil
	}
	m := metadata.For(kind).Extract(working, nil)
	m.ID = id

	err := o.cache.ReplaceAsset(ctx, kind, id, m)
	if err == nil {
		return nil
	}
	logging.WithFields(ctx, "kind", kind, "asset_id", id).
		Warn("cache replace failed, rebuilding", "error", err)
	if rerr := o.cache.RebuildCacheForAssetType(ctx, kind); rerr != nil {
		return fmt.Errorf("cache replace: %v; rebuild: %w", err, rerr)
	}
	return nil
}
