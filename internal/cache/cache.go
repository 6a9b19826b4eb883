// Package cache keeps the flat per-asset metadata records that listing and
// search screens read, so they never have to open archived documents.
package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/metadata"
	"github.com/JonMunkholm/assetkeeper/internal/storage"
)

// Cache is updated after a restore activates an asset.
type Cache interface {
	ReplaceAsset(ctx context.Context, kind asset.Kind, id string, m metadata.Metadata) error
	RebuildCacheForAssetType(ctx context.Context, kind asset.Kind) error
}

// Source reads active asset documents for rebuilds.
type Source struct {
	Store  storage.ObjectStore
	Bucket string
}

// Load extracts metadata for every active asset of kind. Documents that
// fail to decode are logged and skipped.
func (s Source) Load(ctx context.Context, kind asset.Kind) ([]metadata.Metadata, error) {
	if s.Store == nil {
		return nil, fmt.Errorf("cache source for %s: no object store configured", kind)
	}
	extractor := metadata.For(kind)

	if kind.IsCollection() {
		raw, err := s.Store.Get(ctx, s.Bucket, asset.CollectionKey(kind))
		if err != nil {
			return nil, fmt.Errorf("load %s collection: %w", kind, err)
		}
		var out []metadata.Metadata
		gjson.ParseBytes(raw).ForEach(func(id, doc gjson.Result) bool {
			data, err := asset.DecodeExportData([]byte(doc.Raw))
			if err != nil {
				slog.Warn("skipping undecodable collection entry", "kind", kind, "asset_id", id.String(), "error", err)
				return true
			}
			if data.Metadata.AssetID == "" {
				data.Metadata.AssetID = id.String()
			}
			out = append(out, extractor.Extract(data, nil))
			return true
		})
		return out, nil
	}

	keys, err := s.Store.List(ctx, s.Bucket, asset.ActivePrefix(kind))
	if err != nil {
		return nil, fmt.Errorf("list active %s: %w", kind.Plural(), err)
	}
	out := make([]metadata.Metadata, 0, len(keys))
	for _, key := range keys {
		raw, err := s.Store.Get(ctx, s.Bucket, key)
		if err != nil {
			slog.Warn("skipping unreadable asset", "kind", kind, "key", key, "error", err)
			continue
		}
		data, err := asset.DecodeExportData(raw)
		if err != nil {
			slog.Warn("skipping undecodable asset", "kind", kind, "key", key, "error", err)
			continue
		}
		out = append(out, extractor.Extract(data, nil))
	}
	return out, nil
}
