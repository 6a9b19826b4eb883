package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/assetkeeper/internal/admin"
	"github.com/JonMunkholm/assetkeeper/internal/application"
	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/config"
	"github.com/JonMunkholm/assetkeeper/internal/deploy"
	"github.com/JonMunkholm/assetkeeper/internal/platform/platformtest"
	"github.com/JonMunkholm/assetkeeper/internal/restore"
	"github.com/JonMunkholm/assetkeeper/internal/storage"
)

const testBucket = "assetkeeper"

// env is one shared store and platform fake; every command invocation
// builds a fresh App over them, as separate CLI runs would.
type env struct {
	store   *storage.MemoryStore
	client  *platformtest.Fake
	history *restore.MemoryHistory
}

func newEnv() *env {
	return &env{
		store:   storage.NewMemoryStore(),
		client:  platformtest.New(),
		history: restore.NewMemoryHistory(),
	}
}

func (e *env) load(ctx context.Context, _ string) (*application.App, error) {
	cfg := &config.Config{
		ObjectStore: config.ObjectStoreConfig{Backend: config.BackendMemory, Bucket: testBucket},
		Platform:    config.PlatformConfig{AccountID: "111122223333"},
		Restore: config.RestoreConfig{
			MaxConcurrent:    2,
			MaxWaitTime:      time.Second,
			BatchParallelism: 2,
			MaxManifestSize:  1 << 20,
			MaxArchiveSize:   1 << 20,
		},
	}
	app, err := application.New(ctx, cfg, application.WithClient(e.client), application.WithStore(e.store))
	if err != nil {
		return nil, err
	}
	// Keep history across invocations.
	orch, err := restore.NewOrchestrator(restore.Options{
		Client:  e.client,
		Store:   e.store,
		Bucket:  testBucket,
		Cache:   app.Cache,
		History: e.history,
	})
	if err != nil {
		return nil, err
	}
	app.Coordinator, err = deploy.NewCoordinator(deploy.Options{
		Orchestrator: orch,
		Store:        e.store,
		Bucket:       testBucket,
	})
	return app, err
}

func datasourceArchive(t *testing.T, id string) []byte {
	t.Helper()
	d := asset.NewExportData(asset.KindDatasource, id)
	d.Set(asset.SnapshotDescribe, json.RawMessage(fmt.Sprintf(`{
		"DataSource": {
			"DataSourceId": %q,
			"Name": "Athena %s",
			"Type": "ATHENA",
			"DataSourceParameters": {"AthenaParameters": {"WorkGroup": "primary"}}
		}
	}`, id, id)), time.Now())
	raw, err := d.Encode()
	require.NoError(t, err)
	return raw
}

func (e *env) archive(t *testing.T, id string) {
	t.Helper()
	key := asset.ArchivedKey(asset.KindDatasource, id)
	require.NoError(t, e.store.Put(context.Background(), testBucket, key, datasourceArchive(t, id)))
}

// run executes one command line and returns stdout.
func (e *env) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(e.load)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestKinds(t *testing.T) {
	e := newEnv()

	out, err := e.run(t, "", "kinds", "--json")
	require.NoError(t, err)

	var kinds []asset.Kind
	require.NoError(t, json.Unmarshal([]byte(out), &kinds))
	assert.Contains(t, kinds, asset.KindDatasource)
	assert.Contains(t, kinds, asset.KindDashboard)
}

func TestDeployAndHistory(t *testing.T) {
	e := newEnv()
	e.archive(t, "athena-1")

	out, err := e.run(t, "", "deploy", "datasource", "athena-1", "--json")
	require.NoError(t, err)

	var result restore.DeploymentResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, restore.StatusCompleted, result.Status, result.Error)
	assert.True(t, e.client.Has(platformtest.Datasource, "athena-1"))

	out, err = e.run(t, "", "history", "--json")
	require.NoError(t, err)
	var list []restore.DeploymentResult
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, result.DeploymentID, list[0].DeploymentID)

	out, err = e.run(t, "", "history", result.DeploymentID)
	require.NoError(t, err)
	assert.Contains(t, out, result.DeploymentID)
	assert.Contains(t, out, string(restore.StatusCompleted))
}

func TestDeployFailurePrintsNextStep(t *testing.T) {
	e := newEnv()
	e.archive(t, "athena-1")
	e.client.FailFor("CreateDataSource", "athena-1", errors.New("AccessDeniedException: not authorized"))

	out, err := e.run(t, "", "deploy", "datasource", "athena-1")
	require.ErrorIs(t, err, errFindings)
	assert.Contains(t, out, "[RST006]")
	assert.Contains(t, out, "Next step:")
	assert.Contains(t, out, "Check the service role permissions for this account")
}

func TestDeployFromArchiveFile(t *testing.T) {
	e := newEnv()
	path := filepath.Join(t.TempDir(), "athena-2.json")
	require.NoError(t, os.WriteFile(path, datasourceArchive(t, "athena-2"), 0o644))

	_, err := e.run(t, "", "deploy", "datasource", "athena-2", "--archive", path)
	require.NoError(t, err)
	assert.True(t, e.client.Has(platformtest.Datasource, "athena-2"))
}

func TestValidateMissingArchiveReportsFindings(t *testing.T) {
	e := newEnv()

	out, err := e.run(t, "", "validate", "datasource", "missing", "--json")
	require.ErrorIs(t, err, errFindings)
	assert.Equal(t, exitFindings, exitCode(err))

	var body struct {
		Valid   bool                       `json:"valid"`
		Results []restore.ValidationResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.False(t, body.Valid)
	assert.NotEmpty(t, body.Results)
}

func TestDeployRejectsUnknownKind(t *testing.T) {
	e := newEnv()

	_, err := e.run(t, "", "deploy", "spreadsheet", "x")
	require.ErrorIs(t, err, deploy.ErrInvalidRequest)
	assert.Equal(t, exitError, exitCode(err))
}

func TestDeployRequiresTwoArgs(t *testing.T) {
	_, err := newEnv().run(t, "", "deploy", "datasource")
	assert.Error(t, err)
}

func TestBatchFromStdin(t *testing.T) {
	e := newEnv()
	e.archive(t, "athena-1")

	manifest := `
items:
  - kind: datasource
    id: athena-1
  - kind: datasource
    id: missing
`
	out, err := e.run(t, manifest, "batch", "-", "--json")
	require.ErrorIs(t, err, errFindings)

	var result deploy.BatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, deploy.ModeSequential, result.Mode)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "athena-1", result.Results[0].SourceID)
}

func TestBatchInvalidManifest(t *testing.T) {
	e := newEnv()

	_, err := e.run(t, "items: []\n", "batch", "-")
	require.ErrorIs(t, err, deploy.ErrInvalidManifest)

	_, err = e.run(t, "items:\n  - kind: datasource\n    id: a\n", "batch", "-", "--max-parallel", "99")
	require.ErrorIs(t, err, deploy.ErrInvalidManifest)
}

func TestInspectDatasource(t *testing.T) {
	e := newEnv()
	e.archive(t, "athena-1")

	out, err := e.run(t, "", "inspect", "datasources", "athena-1")
	require.NoError(t, err)
	assert.Contains(t, out, "datasource athena-1")
}

func TestCacheRebuild(t *testing.T) {
	e := newEnv()

	out, err := e.run(t, "", "cache", "rebuild", "dataset", "datasets", "--json")
	require.NoError(t, err)

	var report admin.RebuildReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Len(t, append(report.Rebuilt, report.Empty...), 1)
}

func TestParseKinds(t *testing.T) {
	kinds, err := parseKinds([]string{"dashboard", "Dashboards", "folder"})
	require.NoError(t, err)
	assert.Equal(t, []asset.Kind{asset.KindDashboard, asset.KindFolder}, kinds)

	_, err = parseKinds([]string{"nope"})
	assert.ErrorIs(t, err, deploy.ErrInvalidRequest)
}

func TestReportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
		hint bool
	}{
		{name: "nil", err: nil},
		{name: "findings", err: fmt.Errorf("wrap: %w", errFindings)},
		{
			name: "known failure",
			err:  errors.New("load archived dataset x: E_OBJECT_NOT_FOUND: x"),
			want: []string{"Error: load archived dataset x", "Hint: RST009: No archived copy exists for this asset."},
			hint: true,
		},
		{name: "unknown failure", err: errors.New("boom"), want: []string{"Error: boom"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			reportError(&buf, tt.err)

			if len(tt.want) == 0 {
				assert.Empty(t, buf.String())
				return
			}
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
			assert.Equal(t, tt.hint, strings.Contains(buf.String(), "Hint:"))
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitSuccess, exitCode(nil))
	assert.Equal(t, exitFindings, exitCode(fmt.Errorf("wrap: %w", errFindings)))
	assert.Equal(t, exitError, exitCode(assert.AnError))
}

func TestReadLimited(t *testing.T) {
	raw, err := readLimited(strings.NewReader("abc"), 3, "manifest")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(raw))

	_, err = readLimited(strings.NewReader("abcd"), 3, "manifest")
	assert.ErrorContains(t, err, "manifest exceeds 3 bytes")

	raw, err = readLimited(strings.NewReader("abcd"), 0, "manifest")
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(raw))
}
