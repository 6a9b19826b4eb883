package deploy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/platform/platformtest"
	"github.com/JonMunkholm/assetkeeper/internal/restore"
	"github.com/JonMunkholm/assetkeeper/internal/storage"
)

func TestNewCoordinatorRequiresCollaborators(t *testing.T) {
	_, err := NewCoordinator(Options{})
	assert.Error(t, err)
}

func TestDeployLoadsArchive(t *testing.T) {
	h := newHarness(t)
	h.archive(t, "src-1")

	res, err := h.coord.Deploy(context.Background(), Request{
		Kind:   asset.KindDatasource,
		ID:     "src-1",
		Config: restore.DefaultConfig(),
	})
	require.NoError(t, err)

	assert.True(t, res.Success, res.Error)
	assert.Equal(t, restore.StatusCompleted, res.Status)
	assert.True(t, h.client.Has(platformtest.Datasource, "src-1"))
	assert.Equal(t, 0, h.coord.Limiter().ActiveCount())

	got, err := h.coord.History(context.Background(), res.DeploymentID)
	require.NoError(t, err)
	assert.Equal(t, restore.StatusCompleted, got.Status)
}

func TestDeployUsesSuppliedArchive(t *testing.T) {
	h := newHarness(t)

	res, err := h.coord.Deploy(context.Background(), Request{
		Kind:     asset.KindDatasource,
		ID:       "src-2",
		Config:   restore.DefaultConfig(),
		Archived: datasourceArchive("src-2"),
	})
	require.NoError(t, err)
	assert.True(t, res.Success, res.Error)
	assert.True(t, h.client.Has(platformtest.Datasource, "src-2"))
}

func TestDeployMissingArchiveFailsValidation(t *testing.T) {
	h := newHarness(t)

	res, err := h.coord.Deploy(context.Background(), Request{
		Kind:   asset.KindDatasource,
		ID:     "absent",
		Config: restore.DefaultConfig(),
	})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, restore.StatusFailed, res.Status)
	assert.Equal(t, restore.StageValidating, res.FailedStage)
	assert.Empty(t, h.client.CallsTo("CreateDataSource"))

	history, err := h.coord.ListHistory(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestDeployInvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"missing kind", Request{ID: "x"}},
		{"missing id", Request{Kind: asset.KindDataset}},
		{"unknown kind", Request{Kind: "report", ID: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.coord.Deploy(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Empty(t, h.client.Calls())
		})
	}
}

func TestDeployNoFreeSlot(t *testing.T) {
	h := newHarness(t)
	h.archive(t, "src-1")
	for h.coord.Limiter().TryAcquire() {
	}
	defer func() {
		for h.coord.Limiter().ActiveCount() > 0 {
			h.coord.Limiter().Release()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.coord.Deploy(ctx, Request{Kind: asset.KindDatasource, ID: "src-1", Config: restore.DefaultConfig()})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.client.CallsTo("CreateDataSource"))
}

func TestValidateLoadsArchive(t *testing.T) {
	h := newHarness(t)
	h.archive(t, "src-1")

	results, err := h.coord.Validate(context.Background(), Request{
		Kind:   asset.KindDatasource,
		ID:     "src-1",
		Config: restore.DefaultConfig(),
	})
	require.NoError(t, err)
	assert.False(t, restore.HasErrors(results))
	assert.Empty(t, h.client.CallsTo("CreateDataSource"))

	results, err = h.coord.Validate(context.Background(), Request{
		Kind:   asset.KindDatasource,
		ID:     "absent",
		Config: restore.DefaultConfig(),
	})
	require.NoError(t, err)
	assert.True(t, restore.HasErrors(results))
}

func TestValidateUnsupportedSource(t *testing.T) {
	h := newHarness(t)
	h.archive(t, "src-1")

	cfg := restore.DefaultConfig()
	cfg.Source = "live"
	req := Request{Kind: asset.KindDatasource, ID: "src-1", Config: cfg}

	results, err := h.coord.Validate(context.Background(), req)
	require.NoError(t, err)
	require.True(t, restore.HasErrors(results))

	var sourceErrors int
	for _, r := range results {
		if r.Validator == restore.ValidatorSource && r.Severity == restore.SeverityError {
			sourceErrors++
		}
	}
	assert.Equal(t, 1, sourceErrors)

	result, err := h.coord.Deploy(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, restore.StatusFailed, result.Status)
	assert.Equal(t, restore.StageValidating, result.FailedStage)
	assert.Empty(t, h.client.CallsTo("CreateDataSource"))
}

func TestValidateCorruptArchive(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Put(context.Background(), testBucket,
		asset.ArchivedKey(asset.KindDatasource, "bad"), []byte("{not json")))

	_, err := h.coord.Validate(context.Background(), Request{Kind: asset.KindDatasource, ID: "bad"})
	assert.ErrorContains(t, err, "decode export data")
}

func TestInspect(t *testing.T) {
	h := newHarness(t)
	h.archive(t, "src-1")

	info, err := h.coord.Inspect(context.Background(), asset.KindDatasource, "src-1")
	require.NoError(t, err)
	require.NotNil(t, info.Connection)

	_, err = h.coord.Inspect(context.Background(), asset.KindDatasource, "absent")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	_, err = h.coord.Inspect(context.Background(), "report", "x")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestKinds(t *testing.T) {
	h := newHarness(t)
	assert.Contains(t, h.coord.Kinds(), asset.KindDashboard)
	assert.NotContains(t, h.coord.Kinds(), asset.KindUser)
}
