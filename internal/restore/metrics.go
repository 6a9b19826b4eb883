package restore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("assetkeeper.restore")

var (
	// deploymentsTotal counts finished deployments.
	// Labels: kind, status (completed, failed, skipped)
	deploymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetkeeper",
		Subsystem: "restore",
		Name:      "deployments_total",
		Help:      "Total restore deployments by kind and terminal status",
	}, []string{"kind", "status"})

	// deploymentDuration measures end-to-end restore time.
	// Labels: kind
	deploymentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "assetkeeper",
		Subsystem: "restore",
		Name:      "deployment_duration_seconds",
		Help:      "Restore deployment duration in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"kind"})

	// stageFailures counts deployments that failed in a pipeline stage.
	// Labels: kind, stage
	stageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetkeeper",
		Subsystem: "restore",
		Name:      "stage_failures_total",
		Help:      "Total restore failures by pipeline stage",
	}, []string{"kind", "stage"})

	// sideEffectsTotal counts post-create operations.
	// Labels: kind, effect (refresh-schedule, folder-membership, ...), outcome (ok, failed)
	sideEffectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetkeeper",
		Subsystem: "restore",
		Name:      "side_effects_total",
		Help:      "Total post-create side effects by outcome",
	}, []string{"kind", "effect", "outcome"})
)
