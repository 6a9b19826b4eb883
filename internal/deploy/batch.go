package deploy

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/assetkeeper/internal/logging"
	"github.com/JonMunkholm/assetkeeper/internal/restore"
)

// Batch execution modes.
const (
	ModeSequential = "sequential"
	ModeConcurrent = "concurrent"
)

// errStopped is the reason recorded for items skipped after a failure.
var errStopped = errors.New("skipped: an earlier batch item failed")

// BatchResult holds one result per manifest item, in manifest order.
type BatchResult struct {
	Mode      string                     `json:"mode"`
	Results   []restore.DeploymentResult `json:"results"`
	Succeeded int                        `json:"succeeded"`
	Failed    int                        `json:"failed"`
	Skipped   int                        `json:"skipped"`
	Duration  time.Duration              `json:"durationNs"`
}

// Success reports whether no item failed.
func (b BatchResult) Success() bool { return b.Failed == 0 }

// DeployBatch restores every manifest item. Sequential batches run in
// manifest order and, with StopOnError, mark the items after the first
// failure as skipped. Concurrent batches run up to MaxParallel items at once,
// never more than the limiter has slots, and always wait for every item.
func (c *Coordinator) DeployBatch(ctx context.Context, m Manifest) BatchResult {
	start := c.now()
	mode := ModeSequential
	if m.Concurrent {
		mode = ModeConcurrent
	}
	log := logging.WithFields(ctx, "batch_mode", mode, "items", len(m.Items))
	log.Info("batch started")

	results := make([]restore.DeploymentResult, len(m.Items))
	if m.Concurrent {
		c.runConcurrent(ctx, m, results)
	} else {
		c.runSequential(ctx, m, results)
	}

	out := BatchResult{Mode: mode, Results: results, Duration: c.now().Sub(start)}
	for _, r := range results {
		switch {
		case r.Status == restore.StatusSkipped:
			out.Skipped++
		case r.Success:
			out.Succeeded++
		default:
			out.Failed++
		}
		batchItemsTotal.WithLabelValues(string(r.Status)).Inc()
	}

	batchesTotal.WithLabelValues(mode).Inc()
	batchDuration.WithLabelValues(mode).Observe(out.Duration.Seconds())
	log.Info("batch finished",
		"succeeded", out.Succeeded,
		"failed", out.Failed,
		"skipped", out.Skipped,
		"duration", out.Duration,
	)
	return out
}

func (c *Coordinator) runSequential(ctx context.Context, m Manifest, results []restore.DeploymentResult) {
	stopped := false
	for i, item := range m.Items {
		req := item.Request(m.Defaults)
		if stopped {
			results[i] = c.rejected(req, restore.StatusSkipped, nil)
			results[i].Warnings = []string{errStopped.Error()}
			continue
		}
		results[i] = c.deployItem(ctx, req)
		if m.StopOnError && results[i].Status == restore.StatusFailed {
			stopped = true
		}
	}
}

func (c *Coordinator) runConcurrent(ctx context.Context, m Manifest, results []restore.DeploymentResult) {
	requested := m.MaxParallel
	if requested <= 0 {
		requested = c.maxParallel
	}
	limit := c.limiter.Clamp(requested)
	if limit < requested {
		logging.FromContext(ctx).Info("batch parallelism capped at the restore slot count",
			"requested", requested,
			"limit", limit,
		)
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, item := range m.Items {
		req := item.Request(m.Defaults)
		g.Go(func() error {
			results[i] = c.deployItem(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
}

// deployItem runs one batch item, queueing for a slot. Errors before the
// restore starts become a failed result.
func (c *Coordinator) deployItem(ctx context.Context, req Request) restore.DeploymentResult {
	r, err := c.deploy(ctx, req, c.limiter.AcquireQueued)
	if err != nil {
		logging.WithFields(ctx, "kind", req.Kind, "asset_id", req.ID).
			Error("batch item rejected", "error", err)
		return c.rejected(req, restore.StatusFailed, err)
	}
	return r
}
