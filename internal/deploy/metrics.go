package deploy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetkeeper",
			Subsystem: "deploy",
			Name:      "batches_total",
			Help:      "Batch deployments by execution mode",
		},
		[]string{"mode"},
	)

	batchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetkeeper",
			Subsystem: "deploy",
			Name:      "batch_items_total",
			Help:      "Batch items by final status",
		},
		[]string{"status"},
	)

	batchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "assetkeeper",
			Subsystem: "deploy",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of a batch deployment",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"mode"},
	)

	slotsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "assetkeeper",
			Subsystem: "deploy",
			Name:      "slots_in_use",
			Help:      "Restores currently holding a concurrency slot",
		},
	)

	slotWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "assetkeeper",
			Subsystem: "deploy",
			Name:      "slot_wait_seconds",
			Help:      "Time spent waiting for a restore slot",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
		},
		[]string{"mode"},
	)

	limiterRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "assetkeeper",
			Subsystem: "deploy",
			Name:      "limiter_rejections_total",
			Help:      "Restores rejected because no slot freed up in time",
		},
	)
)
