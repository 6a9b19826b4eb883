package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/config"
	"github.com/JonMunkholm/assetkeeper/internal/deploy"
	"github.com/JonMunkholm/assetkeeper/internal/platform/platformtest"
	"github.com/JonMunkholm/assetkeeper/internal/restore"
	"github.com/JonMunkholm/assetkeeper/internal/storage"
)

const testBucket = "archive"

type testEnv struct {
	client *platformtest.Fake
	store  *storage.MemoryStore
	server *Server
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Port: 8080, RequestTimeout: time.Minute, ShutdownTimeout: time.Second},
		Restore: config.RestoreConfig{MaxConcurrent: 2, MaxWaitTime: time.Second, BatchParallelism: 2, MaxManifestSize: 4096, MaxArchiveSize: 1 << 20},
		Logging: config.LoggingConfig{Level: "info", Format: "text"},
	}
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	env := &testEnv{client: platformtest.New(), store: storage.NewMemoryStore()}
	orch, err := restore.NewOrchestrator(restore.Options{Client: env.client, Store: env.store, Bucket: testBucket})
	require.NoError(t, err)
	coord, err := deploy.NewCoordinator(deploy.Options{
		Orchestrator: orch,
		Store:        env.store,
		Bucket:       testBucket,
		Limiter:      deploy.NewLimiter(cfg.Restore.MaxConcurrent, cfg.Restore.MaxWaitTime),
	})
	require.NoError(t, err)

	env.server = NewServer(coord, cfg)
	t.Cleanup(func() { _ = env.server.Shutdown(context.Background()) })
	return env
}

func (e *testEnv) archive(t *testing.T, id string) {
	t.Helper()
	d := asset.NewExportData(asset.KindDatasource, id)
	d.Set(asset.SnapshotDescribe, json.RawMessage(`{"DataSource": {
		"DataSourceId": "`+id+`",
		"Name": "Athena",
		"Type": "ATHENA",
		"DataSourceParameters": {"AthenaParameters": {"WorkGroup": "primary"}}
	}}`), time.Now())
	raw, err := d.Encode()
	require.NoError(t, err)
	require.NoError(t, e.store.Put(context.Background(), testBucket, asset.ArchivedKey(asset.KindDatasource, id), raw))
}

func (e *testEnv) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "192.0.2.1:1234"
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 2, health.Restores.MaxConcurrent)
	assert.Contains(t, health.Kinds, asset.KindDataset)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListKinds(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/api/kinds", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var kinds []struct {
		Kind       asset.Kind `json:"kind"`
		Restorable bool       `json:"restorable"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &kinds))
	require.Len(t, kinds, len(asset.AllKinds()))
	for _, k := range kinds {
		assert.Equal(t, k.Kind != asset.KindUser, k.Restorable, k.Kind)
	}
}

func TestDeployAndHistory(t *testing.T) {
	env := newTestEnv(t, nil)
	env.archive(t, "src-1")

	rec := env.do(http.MethodPost, "/api/restore/datasources/src-1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[restore.DeploymentResult](t, rec)
	assert.Equal(t, restore.StatusCompleted, result.Status)
	assert.True(t, env.client.Has(platformtest.Datasource, "src-1"))

	rec = env.do(http.MethodGet, "/api/deployments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]restore.DeploymentResult](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, result.DeploymentID, list[0].DeploymentID)

	rec = env.do(http.MethodGet, "/api/deployments/"+result.DeploymentID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, result.DeploymentID, decode[restore.DeploymentResult](t, rec).DeploymentID)

	rec = env.do(http.MethodGet, "/api/deployments/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeployDryRunBody(t *testing.T) {
	env := newTestEnv(t, nil)
	env.archive(t, "src-1")

	rec := env.do(http.MethodPost, "/api/restore/datasource/src-1", `{"config": {"dryRun": true}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[restore.DeploymentResult](t, rec)
	assert.True(t, result.DryRun)
	assert.Empty(t, env.client.CallsTo("CreateDataSource"))
}

func TestDeployInlineArchive(t *testing.T) {
	env := newTestEnv(t, nil)
	body := `{"archived": {
		"@metadata": {"assetId": "inline", "kind": "datasource"},
		"apiResponses": {"describe": {"timestamp": "2025-03-01T12:00:00Z", "data": {"DataSource": {
			"Name": "Inline", "Type": "S3", "DataSourceParameters": {"S3Parameters": {}}
		}}}}
	}}`

	rec := env.do(http.MethodPost, "/api/restore/datasource/inline", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.client.Has(platformtest.Datasource, "inline"))
}

func TestDeployFailedResult(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/restore/datasource/absent", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	result := decode[restore.DeploymentResult](t, rec)
	assert.Equal(t, restore.StatusFailed, result.Status)
	assert.Equal(t, restore.StageValidating, result.FailedStage)
}

func TestRestoreBadRequests(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"unknown kind", "/api/restore/reports/r1", ""},
		{"unknown body field", "/api/restore/datasource/src-1", `{"colour": "red"}`},
		{"malformed body", "/api/restore/datasource/src-1", `{"config":`},
		{"validate unknown kind", "/api/restore/reports/r1/validate", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			rec := env.do(http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Code)
			assert.Contains(t, resp.Detail, "invalid request")
			assert.Empty(t, env.client.Calls())
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.archive(t, "src-1")

	rec := env.do(http.MethodPost, "/api/restore/datasource/src-1/validate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ValidateResponse](t, rec)
	assert.True(t, resp.Valid)
	assert.NotEmpty(t, resp.Results)

	rec = env.do(http.MethodPost, "/api/restore/datasource/src-1/validate", `{"config": {"targetId": "bad id"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[ValidateResponse](t, rec).Valid)

	rec = env.do(http.MethodPost, "/api/restore/datasource/src-1/validate", `{"config": {"source": "live"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp = decode[ValidateResponse](t, rec)
	assert.False(t, resp.Valid)
	var sourceErr *restore.ValidationResult
	for i, r := range resp.Results {
		if r.Validator == restore.ValidatorSource {
			sourceErr = &resp.Results[i]
		}
	}
	require.NotNil(t, sourceErr)
	assert.Equal(t, restore.SeverityError, sourceErr.Severity)
	assert.Contains(t, sourceErr.Message, `"live"`)

	assert.Empty(t, env.client.CallsTo("CreateDataSource"))
}

func TestDeployBatchEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.archive(t, "a")
	env.archive(t, "b")

	manifest := `
concurrent: true
items:
  - kind: datasource
    id: a
  - kind: datasource
    id: b
  - kind: datasource
    id: missing
`
	rec := env.do(http.MethodPost, "/api/restore/batch", manifest, "Content-Type", "application/yaml")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[deploy.BatchResult](t, rec)
	assert.Equal(t, deploy.ModeConcurrent, res.Mode)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
}

func TestDeployBatchRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid manifest", "items: []\n", http.StatusBadRequest},
		{"too large", "items:\n" + strings.Repeat("  - kind: datasource\n    id: padding\n", 200), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			rec := env.do(http.MethodPost, "/api/restore/batch", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestParsedAsset(t *testing.T) {
	env := newTestEnv(t, nil)
	env.archive(t, "src-1")

	rec := env.do(http.MethodGet, "/api/assets/datasource/src-1/parsed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"connection"`)

	rec = env.do(http.MethodGet, "/api/assets/datasource/absent/parsed", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "RST009", decode[ErrorResponse](t, rec).Code)
}

func TestListDeploymentsLimit(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/deployments?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/deployments?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAPIKeyRequired(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	})

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/deployments", "").Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/deployments", "", "X-API-Key", "secret").Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz", "").Code)
}

func TestRestoreRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, RestoreLimit: 1}
	})
	env.archive(t, "src-1")

	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/restore/datasource/src-1/validate", "").Code)

	rec := env.do(http.MethodPost, "/api/restore/datasource/src-1/validate", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Non-restore routes use the general limit.
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/deployments", "").Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid request", deploy.ErrInvalidRequest, http.StatusBadRequest},
		{"invalid manifest", deploy.ErrInvalidManifest, http.StatusBadRequest},
		{"busy", deploy.ErrTooManyDeployments, http.StatusServiceUnavailable},
		{"no deployment", restore.ErrDeploymentNotFound, http.StatusNotFound},
		{"no object", storage.ErrObjectNotFound, http.StatusNotFound},
		{"too large", &http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{"other", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
