package restore

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrDeploymentNotFound is returned for an unknown deployment id.
var ErrDeploymentNotFound = errors.New("deployment not found")

// HistoryStore records deployments. Records are created once when a restore
// starts, completed once when it reaches a terminal state, and never deleted.
type HistoryStore interface {
	Start(ctx context.Context, r DeploymentResult) error
	Complete(ctx context.Context, r DeploymentResult) error
	Get(ctx context.Context, id string) (DeploymentResult, error)
	List(ctx context.Context, limit int) ([]DeploymentResult, error)
}

// MemoryHistory is a process-lifetime HistoryStore.
type MemoryHistory struct {
	mu      sync.RWMutex
	records map[string]DeploymentResult
}

// NewMemoryHistory returns an empty history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{records: make(map[string]DeploymentResult)}
}

// Start adds r. An id that is already recorded is left untouched.
func (h *MemoryHistory) Start(_ context.Context, r DeploymentResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.records[r.DeploymentID]; !exists {
		h.records[r.DeploymentID] = r
	}
	return nil
}

// Complete stores the terminal record for a started deployment. Later
// completions of the same id are ignored.
func (h *MemoryHistory) Complete(_ context.Context, r DeploymentResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev, ok := h.records[r.DeploymentID]
	if !ok {
		return ErrDeploymentNotFound
	}
	if prev.CompletedAt != nil {
		return nil
	}
	h.records[r.DeploymentID] = r
	return nil
}

func (h *MemoryHistory) Get(_ context.Context, id string) (DeploymentResult, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.records[id]
	if !ok {
		return DeploymentResult{}, ErrDeploymentNotFound
	}
	return r, nil
}

// List returns up to limit records, newest first. A limit <= 0 returns all.
func (h *MemoryHistory) List(_ context.Context, limit int) ([]DeploymentResult, error) {
	h.mu.RLock()
	out := make([]DeploymentResult, 0, len(h.records))
	for _, r := range h.records {
		out = append(out, r)
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].DeploymentID < out[j].DeploymentID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
