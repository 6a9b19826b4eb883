package restore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/cache"
	"github.com/JonMunkholm/assetkeeper/internal/logging"
	"github.com/JonMunkholm/assetkeeper/internal/parser"
	"github.com/JonMunkholm/assetkeeper/internal/platform"
	"github.com/JonMunkholm/assetkeeper/internal/storage"
)

// targetIDPattern is the identifier charset the platform accepts.
var targetIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,512}$`)

// Options configures an Orchestrator. Client, Store and Bucket are required.
type Options struct {
	Client  platform.Client
	Store   storage.ObjectStore
	Bucket  string
	Cache   cache.Cache  // optional
	History HistoryStore // defaults to an in-memory history
	Factory *Factory     // defaults to NewFactory(Client)
	Clock   func() time.Time
}

// Orchestrator drives single-asset restores from the archive.
type Orchestrator struct {
	client  platform.Client
	store   storage.ObjectStore
	bucket  string
	cache   cache.Cache
	history HistoryStore
	factory *Factory
	now     func() time.Time
	locks   keyedMutex
}

// NewOrchestrator validates opts and fills in defaults.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Client == nil {
		return nil, errors.New("restore: platform client is required")
	}
	if opts.Store == nil {
		return nil, errors.New("restore: object store is required")
	}
	if opts.Bucket == "" {
		return nil, errors.New("restore: bucket is required")
	}
	if opts.History == nil {
		opts.History = NewMemoryHistory()
	}
	if opts.Factory == nil {
		opts.Factory = NewFactory(opts.Client)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Orchestrator{
		client:  opts.Client,
		store:   opts.Store,
		bucket:  opts.Bucket,
		cache:   opts.Cache,
		history: opts.History,
		factory: opts.Factory,
		now:     opts.Clock,
	}, nil
}

// History returns the deployment history the orchestrator writes to.
func (o *Orchestrator) History() HistoryStore { return o.history }

// Factory returns the strategy factory.
func (o *Orchestrator) Factory() *Factory { return o.factory }

// Validate runs the pre-deploy checks without changing anything.
func (o *Orchestrator) Validate(ctx context.Context, kind asset.Kind, id string, archived *asset.ExportData, cfg DeployConfig) []ValidationResult {
	ctx, span := tracer.Start(ctx, "Orchestrator.Validate", trace.WithAttributes(
		attribute.String("asset.kind", string(kind)),
		attribute.String("asset.id", id),
	))
	defer span.End()

	results, _ := o.validate(ctx, kind, id, archived, cfg)
	return results
}

// validate returns the check results and whether a live asset exists at the
// target id.
func (o *Orchestrator) validate(ctx context.Context, kind asset.Kind, id string, archived *asset.ExportData, cfg DeployConfig) ([]ValidationResult, bool) {
	var results []ValidationResult
	targetID := cfg.target(id)
	strategy := o.factory.For(kind)

	if src := cfg.source(); src != SourceArchive {
		results = append(results, ValidationResult{
			Validator: ValidatorSource,
			Message:   fmt.Sprintf("unsupported restore source %q; only %q is allowed", src, SourceArchive),
			Severity:  SeverityError,
		})
	} else {
		results = append(results, ValidationResult{
			Validator: ValidatorSource,
			Passed:    true,
			Message:   "restoring from the archive",
			Severity:  SeverityInfo,
		})
	}

	validTarget := targetIDPattern.MatchString(targetID)
	if validTarget {
		results = append(results, ValidationResult{
			Validator: ValidatorTargetID,
			Passed:    true,
			Message:   fmt.Sprintf("target id %s is valid", targetID),
			Severity:  SeverityInfo,
		})
	} else {
		results = append(results, ValidationResult{
			Validator: ValidatorTargetID,
			Message:   fmt.Sprintf("target id %q must be 1-512 letters, digits, hyphens or underscores", targetID),
			Severity:  SeverityError,
			Details:   map[string]any{"targetId": targetID},
		})
	}

	archivedOK := true
	switch {
	case !kind.Valid():
		archivedOK = false
		results = append(results, ValidationResult{
			Validator: ValidatorArchivedData,
			Message:   fmt.Sprintf("unknown asset kind %q", kind),
			Severity:  SeverityError,
		})
	case archived == nil:
		archivedOK = false
		results = append(results, ValidationResult{
			Validator: ValidatorArchivedData,
			Message:   fmt.Sprintf("no archived data for %s %s", kind, id),
			Severity:  SeverityError,
		})
	default:
		if _, ok := archived.DefinitionDocument(); !ok {
			archivedOK = false
			results = append(results, ValidationResult{
				Validator: ValidatorArchivedData,
				Message:   fmt.Sprintf("archived %s %s has neither a definition nor a describe snapshot", kind, id),
				Severity:  SeverityError,
			})
		} else if err := strategy.CheckPreconditions(id, archived); err != nil {
			archivedOK = false
			r := ValidationResult{
				Validator: ValidatorArchivedData,
				Message:   err.Error(),
				Severity:  SeverityError,
			}
			var pe *PreconditionError
			if errors.As(err, &pe) {
				r.Details = map[string]any{"component": pe.Component}
			}
			results = append(results, r)
		} else {
			results = append(results, ValidationResult{
				Validator: ValidatorArchivedData,
				Passed:    true,
				Message:   "archived data present",
				Severity:  SeverityInfo,
			})
		}
	}

	exists := false
	if validTarget && kind.Valid() {
		var existing ValidationResult
		existing, exists = o.checkExisting(ctx, strategy, kind, targetID, cfg)
		results = append(results, existing)
	}

	if archivedOK {
		results = append(results, strategy.ValidateDependencies(ctx, id, archived)...)
	}

	return append(results, summarize(results)), exists
}

func (o *Orchestrator) checkExisting(ctx context.Context, strategy Strategy, kind asset.Kind, targetID string, cfg DeployConfig) (ValidationResult, bool) {
	r := ValidationResult{Validator: ValidatorExisting, Details: map[string]any{"targetId": targetID}}

	exists, err := strategy.Exists(ctx, targetID)
	switch {
	case err != nil:
		r.Message = fmt.Sprintf("could not check for an existing %s %s: %v", kind, targetID, err)
		r.Severity = SeverityWarning
	case !exists:
		r.Passed = true
		r.Message = fmt.Sprintf("no live %s %s", kind, targetID)
		r.Severity = SeverityInfo
	case cfg.Overwrite:
		r.Passed = true
		r.Message = fmt.Sprintf("live %s %s will be replaced", kind, targetID)
		r.Severity = SeverityInfo
	case cfg.SkipIfExists:
		r.Passed = true
		r.Message = fmt.Sprintf("live %s %s exists and will be skipped", kind, targetID)
		r.Severity = SeverityInfo
	default:
		r.Message = fmt.Sprintf("%s %s already exists; enable overwrite or skip-if-exists", kind, targetID)
		r.Severity = SeverityError
	}
	return r, exists
}

func summarize(results []ValidationResult) ValidationResult {
	var errs, warns int
	for _, r := range results {
		if r.Passed {
			continue
		}
		switch r.Severity {
		case SeverityError:
			errs++
		case SeverityWarning:
			warns++
		}
	}
	details := map[string]any{"errors": errs, "warnings": warns, "checks": len(results)}
	if errs > 0 {
		return ValidationResult{
			Validator: ValidatorSummary,
			Message:   fmt.Sprintf("validation failed: %d error(s), %d warning(s)", errs, warns),
			Severity:  SeverityError,
			Details:   details,
		}
	}
	return ValidationResult{
		Validator: ValidatorSummary,
		Passed:    true,
		Message:   fmt.Sprintf("validation passed with %d warning(s)", warns),
		Severity:  SeverityInfo,
		Details:   details,
	}
}

// firstFailure returns the message of the first failed error-severity check
// other than the summary.
func firstFailure(results []ValidationResult) string {
	for _, r := range results {
		if !r.Passed && r.Severity == SeverityError && r.Validator != ValidatorSummary {
			return r.Message
		}
	}
	return "unknown validation error"
}

// Deploy restores one asset and always returns a complete result. The result
// is recorded in the history store when the restore starts and again when it
// finishes.
func (o *Orchestrator) Deploy(ctx context.Context, kind asset.Kind, id string, archived *asset.ExportData, cfg DeployConfig) (result DeploymentResult) {
	targetID := cfg.target(id)
	result = DeploymentResult{
		DeploymentID: uuid.NewString(),
		Kind:         kind,
		SourceID:     id,
		TargetID:     targetID,
		Status:       StatusValidating,
		StartedAt:    o.now(),
		DryRun:       cfg.DryRun,
	}

	ctx, span := tracer.Start(ctx, "Orchestrator.Deploy", trace.WithAttributes(
		attribute.String("deployment.id", result.DeploymentID),
		attribute.String("asset.kind", string(kind)),
		attribute.String("asset.id", id),
		attribute.String("asset.target_id", targetID),
	))
	defer span.End()

	log := logging.WithFields(ctx,
		"deployment_id", result.DeploymentID,
		"kind", kind,
		"asset_id", id,
		"target_id", targetID,
	)
	if err := o.history.Start(ctx, result); err != nil {
		log.Warn("failed to record deployment start", "error", err)
	}
	defer o.finish(ctx, log, span, &result)

	log.Info("restore started", "dry_run", cfg.DryRun, "validate_only", cfg.ValidateOnly, "overwrite", cfg.Overwrite)

	results, exists := o.validate(ctx, kind, id, archived, cfg)
	result.ValidationResults = results
	if HasErrors(results) {
		o.fail(log, span, &result, StageValidating, fmt.Errorf("validation failed: %s", firstFailure(results)))
		return result
	}
	if cfg.ValidateOnly {
		o.succeed(&result)
		return result
	}
	if exists && cfg.SkipIfExists && !cfg.Overwrite {
		result.Status = StatusSkipped
		result.Success = true
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s %s already exists, restore skipped", kind, targetID))
		return result
	}

	working := archived.Clone()
	transformations, err := applyTransformations(working, kind, id, targetID, cfg)
	result.Transformations = transformations
	if err != nil {
		o.fail(log, span, &result, StageCreating, err)
		return result
	}
	raw, _ := working.DefinitionDocument()
	info := parser.For(kind).Parse(raw)

	if cfg.DryRun {
		o.succeed(&result)
		return result
	}

	result.Status = StatusDeploying
	strategy := o.factory.For(kind)

	if exists && cfg.Overwrite && cfg.BackupExisting {
		err := o.runStage(ctx, StageBackupExisting, func(ctx context.Context) error {
			path, err := o.backupExisting(ctx, kind, targetID, strategy)
			result.BackupPath = path
			return err
		})
		if err != nil {
			o.fail(log, span, &result, StageBackupExisting, err)
			return result
		}
	}

	if cfg.Overwrite {
		if err := o.runStage(ctx, StageDeleting, func(ctx context.Context) error {
			return strategy.DeleteExisting(ctx, targetID)
		}); err != nil {
			o.fail(log, span, &result, StageDeleting, err)
			return result
		}
	}

	var out RestoreOutput
	if err := o.runStage(ctx, StageCreating, func(ctx context.Context) error {
		var err error
		out, err = strategy.Restore(ctx, targetID, working, info)
		return err
	}); err != nil {
		o.fail(log, span, &result, StageCreating, err)
		return result
	}
	result.TargetArn = out.Arn
	result.Warnings = append(result.Warnings, out.Warnings...)
	log.Info("asset created", "arn", out.Arn)

	_ = o.runStage(ctx, StagePostProcessing, func(ctx context.Context) error {
		result.Warnings = append(result.Warnings, o.runSideEffects(ctx, kind, targetID, working, cfg)...)
		if _, err := o.activate(ctx, kind, targetID, working); err != nil {
			log.Warn("activation failed", "error", err)
			result.Warnings = append(result.Warnings, "activation failed: "+ClassifyError(err))
		}
		if err := o.updateCache(ctx, kind, targetID, working); err != nil {
			log.Warn("cache update failed", "error", err)
			result.Warnings = append(result.Warnings, "cache update failed: "+ClassifyError(err))
		}
		return nil
	})

	_ = o.runStage(ctx, StageArchivalBackup, func(ctx context.Context) error {
		path, err := o.writeArchivalBackup(ctx, kind, id, archived)
		if err != nil {
			log.Warn("archival backup failed", "error", err)
			result.Warnings = append(result.Warnings, "archival backup failed: "+ClassifyError(err))
			return err
		}
		result.ArchiveBackupPath = path
		return nil
	})

	o.succeed(&result)
	return result
}

// runStage wraps one pipeline stage in a span.
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "restore."+string(stage))
	defer span.End()
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(stage)+" failed")
	}
	return err
}

func (o *Orchestrator) succeed(r *DeploymentResult) {
	r.Status = StatusCompleted
	r.Success = true
}

func (o *Orchestrator) fail(log *slog.Logger, span trace.Span, r *DeploymentResult, stage Stage, err error) {
	r.Status = StatusFailed
	r.Success = false
	r.FailedStage = stage
	r.Error = ClassifyError(err)
	r.ErrorCode = MapError(err).Code

	span.RecordError(err)
	span.SetStatus(codes.Error, string(stage)+" failed")
	stageFailures.WithLabelValues(string(r.Kind), string(stage)).Inc()
	log.Error("restore failed", "stage", stage, "code", r.ErrorCode, "error", err)
}

// finish stamps completion and records the terminal result. The history
// write is not bound to the caller's cancellation.
func (o *Orchestrator) finish(ctx context.Context, log *slog.Logger, span trace.Span, r *DeploymentResult) {
	completed := o.now()
	r.CompletedAt = &completed
	r.Duration = completed.Sub(r.StartedAt)

	if err := o.history.Complete(context.WithoutCancel(ctx), *r); err != nil {
		log.Warn("failed to record deployment completion", "error", err)
	}

	deploymentsTotal.WithLabelValues(string(r.Kind), string(r.Status)).Inc()
	deploymentDuration.WithLabelValues(string(r.Kind)).Observe(r.Duration.Seconds())
	span.SetAttributes(
		attribute.String("deployment.status", string(r.Status)),
		attribute.Bool("deployment.success", r.Success),
	)
	log.Info("restore finished",
		"status", r.Status,
		"success", r.Success,
		"warnings", len(r.Warnings),
		"duration", r.Duration,
	)
}
