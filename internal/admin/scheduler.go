package admin

// scheduler.go keeps the asset listing cache in step with the object store.
//
// The memory cache starts empty and the Postgres cache can drift when
// documents are written by the archive side rather than through a restore.
// The scheduler rebuilds every kind on start and then every Interval. A
// failed run is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// ScheduleConfig controls the rebuild scheduler.
type ScheduleConfig struct {
	RunOnStart bool          // rebuild before the first tick
	Interval   time.Duration // 0 disables periodic rebuilds
}

// StartRebuildScheduler rebuilds the cache on schedule until ctx is done.
// It returns immediately when there is nothing to schedule.
func (m *Maintenance) StartRebuildScheduler(ctx context.Context, cfg ScheduleConfig) {
	if !cfg.RunOnStart && cfg.Interval <= 0 {
		return
	}
	slog.Info("cache rebuild scheduler started",
		"run_on_start", cfg.RunOnStart,
		"interval", cfg.Interval,
	)

	if cfg.RunOnStart {
		m.runRebuildJob(ctx)
	}
	if cfg.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("cache rebuild scheduler stopped")
			return
		case <-ticker.C:
			m.runRebuildJob(ctx)
		}
	}
}

// runRebuildJob performs one rebuild of every kind.
func (m *Maintenance) runRebuildJob(ctx context.Context) {
	start := time.Now()
	report, err := m.RebuildAll(ctx)
	if err != nil {
		slog.Error("cache rebuild failed", "error", err, "rebuilt", report.Rebuilt)
		return
	}
	slog.Info("cache rebuild completed",
		"rebuilt", len(report.Rebuilt),
		"empty", len(report.Empty),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
