package cache

import (
	"context"
	"sort"
	"sync"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/metadata"
)

// Memory is an in-process Cache.
type Memory struct {
	source Source

	mu      sync.RWMutex
	records map[asset.Kind]map[string]metadata.Metadata
}

// NewMemory returns an empty cache that rebuilds from source.
func NewMemory(source Source) *Memory {
	return &Memory{source: source, records: make(map[asset.Kind]map[string]metadata.Metadata)}
}

func (c *Memory) ReplaceAsset(_ context.Context, kind asset.Kind, id string, m metadata.Metadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.records[kind] == nil {
		c.records[kind] = make(map[string]metadata.Metadata)
	}
	c.records[kind][id] = m
	return nil
}

func (c *Memory) RebuildCacheForAssetType(ctx context.Context, kind asset.Kind) error {
	records, err := c.source.Load(ctx, kind)
	if err != nil {
		return err
	}
	fresh := make(map[string]metadata.Metadata, len(records))
	for _, m := range records {
		fresh[m.ID] = m
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[kind] = fresh
	return nil
}

// Get returns the cached record for an asset.
func (c *Memory) Get(kind asset.Kind, id string) (metadata.Metadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.records[kind][id]
	return m, ok
}

// List returns the cached records of kind ordered by id.
func (c *Memory) List(kind asset.Kind) []metadata.Metadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]metadata.Metadata, 0, len(c.records[kind]))
	for _, m := range c.records[kind] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
