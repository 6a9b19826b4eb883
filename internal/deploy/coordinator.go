// Package deploy coordinates restores for callers: it loads archived
// documents, bounds concurrency and runs single or batch deployments through
// the restore orchestrator.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/logging"
	"github.com/JonMunkholm/assetkeeper/internal/parser"
	"github.com/JonMunkholm/assetkeeper/internal/restore"
	"github.com/JonMunkholm/assetkeeper/internal/storage"
)

// Options configures a Coordinator. Orchestrator, Store and Bucket are
// required.
type Options struct {
	Orchestrator *restore.Orchestrator
	Store        storage.ObjectStore
	Bucket       string
	Limiter      *Limiter // defaults to NewLimiter(0, 0)
	MaxParallel  int      // batch parallelism when a manifest sets none
	Clock        func() time.Time
}

// Coordinator is the entry point the HTTP API and CLI call.
type Coordinator struct {
	orch        *restore.Orchestrator
	store       storage.ObjectStore
	bucket      string
	limiter     *Limiter
	maxParallel int
	now         func() time.Time
}

// Request is one restore.
type Request struct {
	Kind     asset.Kind           `json:"kind" validate:"required"`
	ID       string               `json:"id" validate:"required,max=512"`
	Config   restore.DeployConfig `json:"config"`
	Archived *asset.ExportData    `json:"archived,omitempty" validate:"-"`
}

// NewCoordinator validates opts and fills in defaults.
func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.Orchestrator == nil {
		return nil, errors.New("deploy: orchestrator is required")
	}
	if opts.Store == nil {
		return nil, errors.New("deploy: object store is required")
	}
	if opts.Bucket == "" {
		return nil, errors.New("deploy: bucket is required")
	}
	if opts.Limiter == nil {
		opts.Limiter = NewLimiter(0, 0)
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = opts.Limiter.MaxConcurrent()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Coordinator{
		orch:        opts.Orchestrator,
		store:       opts.Store,
		bucket:      opts.Bucket,
		limiter:     opts.Limiter,
		maxParallel: opts.MaxParallel,
		now:         opts.Clock,
	}, nil
}

// Limiter returns the concurrency limiter shared by all restores.
func (c *Coordinator) Limiter() *Limiter { return c.limiter }

// Kinds returns the kinds a restore strategy is registered for.
func (c *Coordinator) Kinds() []asset.Kind { return c.orch.Factory().Kinds() }

// Validate runs the pre-deploy checks for req.
func (c *Coordinator) Validate(ctx context.Context, req Request) ([]restore.ValidationResult, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	archived, err := c.archivedFor(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.orch.Validate(ctx, req.Kind, req.ID, archived, req.Config), nil
}

// Deploy restores one asset. The returned error covers failures before the
// restore starts (bad request, unreadable archive, no free slot); everything
// after that is reported in the DeploymentResult.
func (c *Coordinator) Deploy(ctx context.Context, req Request) (restore.DeploymentResult, error) {
	return c.deploy(ctx, req, c.limiter.Acquire)
}

// deploy runs one restore holding a slot taken by acquire.
func (c *Coordinator) deploy(ctx context.Context, req Request, acquire func(context.Context) error) (restore.DeploymentResult, error) {
	if err := checkRequest(req); err != nil {
		return restore.DeploymentResult{}, err
	}
	archived, err := c.archivedFor(ctx, req)
	if err != nil {
		return restore.DeploymentResult{}, err
	}

	if err := acquire(ctx); err != nil {
		return restore.DeploymentResult{}, err
	}
	defer c.limiter.Release()

	return c.orch.Deploy(ctx, req.Kind, req.ID, archived, req.Config), nil
}

// History returns one deployment record.
func (c *Coordinator) History(ctx context.Context, deploymentID string) (restore.DeploymentResult, error) {
	return c.orch.History().Get(ctx, deploymentID)
}

// ListHistory returns the newest deployments first. limit <= 0 returns all.
func (c *Coordinator) ListHistory(ctx context.Context, limit int) ([]restore.DeploymentResult, error) {
	return c.orch.History().List(ctx, limit)
}

// Inspect parses the archived definition of an asset.
func (c *Coordinator) Inspect(ctx context.Context, kind asset.Kind, id string) (parser.ParsedAssetInfo, error) {
	if !kind.Valid() {
		return parser.ParsedAssetInfo{}, fmt.Errorf("%w: unknown asset kind %q", ErrInvalidRequest, kind)
	}
	archived, err := c.LoadArchived(ctx, kind, id)
	if err != nil {
		return parser.ParsedAssetInfo{}, err
	}
	doc, ok := archived.DefinitionDocument()
	if !ok {
		return parser.Empty(), nil
	}
	return parser.For(kind).Parse(doc), nil
}

// LoadArchived reads and decodes archived/<plural>/<id>.json.
func (c *Coordinator) LoadArchived(ctx context.Context, kind asset.Kind, id string) (*asset.ExportData, error) {
	key := asset.ArchivedKey(kind, id)
	raw, err := c.store.Get(ctx, c.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("load archived %s %s: %w", kind, id, err)
	}
	data, err := asset.DecodeExportData(raw)
	if err != nil {
		return nil, fmt.Errorf("load archived %s %s: %w", kind, id, err)
	}
	return data, nil
}

// archivedFor returns the archive supplied with req or loads it. A missing
// archive yields nil so validation reports it as a failed check.
func (c *Coordinator) archivedFor(ctx context.Context, req Request) (*asset.ExportData, error) {
	if req.Archived != nil {
		return req.Archived, nil
	}
	data, err := c.LoadArchived(ctx, req.Kind, req.ID)
	if errors.Is(err, storage.ErrObjectNotFound) {
		logging.FromContext(ctx).Info("no archived document",
			slog.String("kind", string(req.Kind)),
			slog.String("asset_id", req.ID),
		)
		return nil, nil
	}
	return data, err
}

func checkRequest(req Request) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, describeValidation(err))
	}
	if !req.Kind.Valid() {
		return fmt.Errorf("%w: unknown asset kind %q", ErrInvalidRequest, req.Kind)
	}
	return nil
}

// rejected builds the result recorded for a batch item that never reached
// the orchestrator.
func (c *Coordinator) rejected(req Request, status restore.DeploymentStatus, err error) restore.DeploymentResult {
	now := c.now()
	target := req.Config.TargetID
	if target == "" {
		target = req.ID
	}
	r := restore.DeploymentResult{
		DeploymentID: uuid.NewString(),
		Kind:         req.Kind,
		SourceID:     req.ID,
		TargetID:     target,
		Status:       status,
		StartedAt:    now,
		CompletedAt:  &now,
		DryRun:       req.Config.DryRun,
	}
	if err != nil {
		r.FailedStage = restore.StageValidating
		r.Error = restore.ClassifyError(err)
		r.ErrorCode = restore.MapError(err).Code
	}
	return r
}
