// Package admin provides maintenance operations over the metadata cache.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/cache"
	"github.com/JonMunkholm/assetkeeper/internal/storage"
)

// RebuildTimeout is the maximum duration for a full cache rebuild.
const RebuildTimeout = 5 * time.Minute

// RebuildReport lists the outcome per kind.
type RebuildReport struct {
	Rebuilt []asset.Kind `json:"rebuilt"`
	Empty   []asset.Kind `json:"empty"`
}

// Maintenance runs cache maintenance.
type Maintenance struct {
	Cache cache.Cache
}

// RebuildAll rebuilds the cache for every kind, or only for kinds when given.
// Kinds with no active documents are reported as empty rather than failing.
func (m *Maintenance) RebuildAll(ctx context.Context, kinds ...asset.Kind) (RebuildReport, error) {
	if m.Cache == nil {
		return RebuildReport{}, errors.New("admin: no cache configured")
	}
	if len(kinds) == 0 {
		kinds = asset.AllKinds()
	}

	ctx, cancel := context.WithTimeout(ctx, RebuildTimeout)
	defer cancel()

	var report RebuildReport
	for _, kind := range kinds {
		err := m.Cache.RebuildCacheForAssetType(ctx, kind)
		switch {
		case err == nil:
			report.Rebuilt = append(report.Rebuilt, kind)
		case errors.Is(err, storage.ErrObjectNotFound):
			slog.Info("no active documents, cache left empty", "kind", kind)
			report.Empty = append(report.Empty, kind)
		default:
			return report, fmt.Errorf("rebuild %s cache: %w", kind, err)
		}
	}
	return report, nil
}
