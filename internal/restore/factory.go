package restore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/platform"
)

// Factory maps asset kinds to restore strategies.
type Factory struct {
	mu         sync.RWMutex
	strategies map[asset.Kind]Strategy
}

// NewFactory returns a factory with a strategy registered for every kind
// the platform can recreate. Users are managed by the identity provider and
// stay unsupported.
func NewFactory(client platform.Client) *Factory {
	f := &Factory{strategies: make(map[asset.Kind]Strategy)}
	f.Register(newDashboardStrategy(client))
	f.Register(newAnalysisStrategy(client))
	f.Register(newDatasetStrategy(client))
	f.Register(newDatasourceStrategy(client))
	f.Register(newFolderStrategy(client))
	f.Register(newGroupStrategy(client))
	return f
}

// Register adds a strategy.
// Panics if a strategy for the same kind is already registered.
func (f *Factory) Register(s Strategy) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.strategies[s.Kind()]; exists {
		panic(fmt.Sprintf("restore strategy already registered: %s", s.Kind()))
	}
	f.strategies[s.Kind()] = s
}

// For returns the strategy for kind. Kinds without a registered strategy get
// one whose Restore fails with a not-implemented error.
func (f *Factory) For(kind asset.Kind) Strategy {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if s, ok := f.strategies[kind]; ok {
		return s
	}
	return Unsupported(kind)
}

// Supports reports whether kind has a real strategy.
func (f *Factory) Supports(kind asset.Kind) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, ok := f.strategies[kind]
	return ok
}

// Kinds returns the supported kinds, sorted.
func (f *Factory) Kinds() []asset.Kind {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]asset.Kind, 0, len(f.strategies))
	for k := range f.strategies {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
