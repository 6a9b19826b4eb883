package restore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/metadata"
	"github.com/JonMunkholm/assetkeeper/internal/platform/platformtest"
	"github.com/JonMunkholm/assetkeeper/internal/storage"
)

func TestNewOrchestratorRequiresCollaborators(t *testing.T) {
	_, err := NewOrchestrator(Options{})
	assert.Error(t, err)

	_, err = NewOrchestrator(Options{Client: platformtest.New()})
	assert.Error(t, err)
}

func TestValidateSource(t *testing.T) {
	h := newHarness(t)
	cfg := DefaultConfig()
	cfg.Source = "live"

	results := h.orch.Validate(context.Background(), asset.KindDashboard, "sales", dashboardArchive("sales"), cfg)

	var sourceErrors int
	for _, r := range results {
		if r.Validator == ValidatorSource && r.Severity == SeverityError {
			sourceErrors++
			assert.False(t, r.Passed)
		}
	}
	assert.Equal(t, 1, sourceErrors)
	assert.True(t, HasErrors(results))

	summary, ok := findResult(results, ValidatorSummary)
	require.True(t, ok)
	assert.Equal(t, SeverityError, summary.Severity)
}

func TestValidateEmptySourceMeansArchive(t *testing.T) {
	h := newHarness(t)
	cfg := DefaultConfig()
	cfg.Source = ""

	r, ok := findResult(h.orch.Validate(context.Background(), asset.KindDashboard, "sales", dashboardArchive("sales"), cfg), ValidatorSource)
	require.True(t, ok)
	assert.True(t, r.Passed)
}

func TestValidateTargetID(t *testing.T) {
	tests := []struct {
		name   string
		target string
		valid  bool
	}{
		{"source id", "", true},
		{"letters digits dash underscore", "Sales_2024-copy", true},
		{"space", "sales copy", false},
		{"slash", "sales/copy", false},
		{"too long", strings.Repeat("a", 513), false},
		{"max length", strings.Repeat("a", 512), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			cfg := DefaultConfig()
			cfg.TargetID = tt.target

			r, ok := findResult(h.orch.Validate(context.Background(), asset.KindDashboard, "sales", dashboardArchive("sales"), cfg), ValidatorTargetID)
			require.True(t, ok)
			assert.Equal(t, tt.valid, r.Passed)
			if !tt.valid {
				assert.Equal(t, SeverityError, r.Severity)
			}
		})
	}
}

func TestValidateArchivedData(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r, _ := findResult(h.orch.Validate(ctx, asset.KindDashboard, "sales", nil, DefaultConfig()), ValidatorArchivedData)
	assert.Equal(t, SeverityError, r.Severity)

	empty := envelope(asset.KindDashboard, "sales", map[string]string{asset.SnapshotTags: `{"Tags": []}`})
	r, _ = findResult(h.orch.Validate(ctx, asset.KindDashboard, "sales", empty, DefaultConfig()), ValidatorArchivedData)
	assert.Equal(t, SeverityError, r.Severity)

	describeOnly := envelope(asset.KindDashboard, "sales", map[string]string{asset.SnapshotDescribe: `{"Dashboard": {"Name": "Sales"}}`})
	r, _ = findResult(h.orch.Validate(ctx, asset.KindDashboard, "sales", describeOnly, DefaultConfig()), ValidatorArchivedData)
	assert.Equal(t, SeverityError, r.Severity)
	assert.Equal(t, "Definition", r.Details["component"])
}

func TestValidateMissingComponentIsError(t *testing.T) {
	tests := []struct {
		name      string
		kind      asset.Kind
		describe  string
		component string
	}{
		{"dataset", asset.KindDataset, `{"DataSet": {"DataSetId": "x", "Name": "X"}}`, "PhysicalTableMap"},
		{"datasource", asset.KindDatasource, `{"DataSource": {"DataSourceId": "x", "Type": "ATHENA"}}`, "DataSourceParameters"},
		{"folder", asset.KindFolder, `{"Folder": {"FolderId": "x"}}`, "Name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			archived := envelope(tt.kind, "x", map[string]string{asset.SnapshotDescribe: tt.describe})

			results := h.orch.Validate(context.Background(), tt.kind, "x", archived, DefaultConfig())

			r, ok := findResult(results, ValidatorArchivedData)
			require.True(t, ok)
			assert.False(t, r.Passed)
			assert.Equal(t, SeverityError, r.Severity)
			assert.Equal(t, tt.component, r.Details["component"])
			assert.True(t, HasErrors(results))
		})
	}
}

func TestValidateExistingAsset(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*DeployConfig)
		passed   bool
		severity Severity
	}{
		{"no flags", func(*DeployConfig) {}, false, SeverityError},
		{"overwrite", func(c *DeployConfig) { c.Overwrite = true }, true, SeverityInfo},
		{"skip if exists", func(c *DeployConfig) { c.SkipIfExists = true }, true, SeverityInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.client.Seed(platformtest.Dashboard, "sales", json.RawMessage(`{"Dashboard": {"Name": "Live"}}`))
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			r, ok := findResult(h.orch.Validate(context.Background(), asset.KindDashboard, "sales", dashboardArchive("sales"), cfg), ValidatorExisting)
			require.True(t, ok)
			assert.Equal(t, tt.passed, r.Passed)
			assert.Equal(t, tt.severity, r.Severity)
		})
	}
}

func TestValidateExistsCheckFailureIsWarning(t *testing.T) {
	h := newHarness(t)
	h.client.Fail("DescribeDashboard", errors.New("ThrottlingException: rate exceeded"))

	r, ok := findResult(h.orch.Validate(context.Background(), asset.KindDashboard, "sales", dashboardArchive("sales"), DefaultConfig()), ValidatorExisting)
	require.True(t, ok)
	assert.False(t, r.Passed)
	assert.Equal(t, SeverityWarning, r.Severity)
}

func TestDeployDashboard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result := h.orch.Deploy(ctx, asset.KindDashboard, "sales", dashboardArchive("sales"), DefaultConfig())

	require.True(t, result.Success, result.Error)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.NotEmpty(t, result.DeploymentID)
	assert.Equal(t, "arn:aws:quicksight:us-east-1:111122223333:dashboard/sales", result.TargetArn)
	assert.Equal(t, "archived/dashboards/sales-previous-archive-1.json", result.ArchiveBackupPath)
	assert.Empty(t, result.Warnings)
	assert.Empty(t, result.FailedStage)
	require.NotNil(t, result.CompletedAt)

	deps, ok := findResult(result.ValidationResults, ValidatorDependencies)
	require.True(t, ok)
	assert.Equal(t, SeverityWarning, deps.Severity, "missing dataset is reported but does not block")

	active, err := h.store.Get(ctx, testBucket, "assets/dashboards/sales.json")
	require.NoError(t, err)
	restored, err := asset.DecodeExportData(active)
	require.NoError(t, err)
	assert.JSONEq(t, dashboardDefinition, string(restored.Data(asset.SnapshotDefinition)))

	cached, ok := h.cache.Get(asset.KindDashboard, "sales")
	require.True(t, ok)
	assert.Equal(t, "sales", cached.ID)

	stored, err := h.history.Get(ctx, result.DeploymentID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
}

func TestArchivalBackupNumbering(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Overwrite = true

	first := h.orch.Deploy(ctx, asset.KindDashboard, "sales", dashboardArchive("sales"), cfg)
	second := h.orch.Deploy(ctx, asset.KindDashboard, "sales", dashboardArchive("sales"), cfg)

	require.True(t, first.Success, first.Error)
	require.True(t, second.Success, second.Error)
	assert.Equal(t, "archived/dashboards/sales-previous-archive-1.json", first.ArchiveBackupPath)
	assert.Equal(t, "archived/dashboards/sales-previous-archive-2.json", second.ArchiveBackupPath)
	assert.Len(t, h.client.CallsTo("DeleteDashboard"), 2)
}

func TestArchivalBackupNeverOverwrites(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Put(ctx, testBucket, "archived/dashboards/sales-previous-archive-1.json", []byte(`"old"`)))

	path, err := h.orch.writeArchivalBackup(ctx, asset.KindDashboard, "sales", dashboardArchive("sales"))
	require.NoError(t, err)
	assert.Equal(t, "archived/dashboards/sales-previous-archive-2.json", path)

	old, err := h.store.Get(ctx, testBucket, "archived/dashboards/sales-previous-archive-1.json")
	require.NoError(t, err)
	assert.Equal(t, `"old"`, string(old))
}

func TestArchivalBackupRetriesStoreErrors(t *testing.T) {
	tests := []struct {
		name      string
		retryable bool
		wantErr   bool
		calls     int
	}{
		{"retryable error is retried", true, false, 2},
		{"permanent error fails at once", false, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &flakyStore{
				MemoryStore: storage.NewMemoryStore(),
				err:         &storage.Error{Code: storage.CodeTimeout, Retryable: tt.retryable, Err: errors.New("i/o timeout")},
				failures:    1,
			}
			orch, err := NewOrchestrator(Options{
				Client: platformtest.New(),
				Store:  store,
				Bucket: testBucket,
				Clock:  func() time.Time { return testTime },
			})
			require.NoError(t, err)

			path, err := orch.writeArchivalBackup(context.Background(), asset.KindDashboard, "sales", dashboardArchive("sales"))

			assert.Equal(t, tt.calls, store.existsCalls())
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "check backup slot 1")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "archived/dashboards/sales-previous-archive-1.json", path)
		})
	}
}

func TestDeployOverwriteBackupsWithinOneMillisecond(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.client.Seed(platformtest.Dashboard, "sales", json.RawMessage(`{"Dashboard": {"Name": "Live"}}`))
	require.NoError(t, h.store.Put(ctx, testBucket, "assets/dashboards/sales.json", []byte(`{"live": 1}`)))

	cfg := DefaultConfig()
	cfg.Overwrite = true
	cfg.BackupExisting = true

	// The fixed clock makes both restores share one timestamp.
	first := h.orch.Deploy(ctx, asset.KindDashboard, "sales", dashboardArchive("sales"), cfg)
	require.True(t, first.Success, first.Error)
	second := h.orch.Deploy(ctx, asset.KindDashboard, "sales", dashboardArchive("sales"), cfg)
	require.True(t, second.Success, second.Error)

	assert.Equal(t, fmt.Sprintf("backups/dashboards/sales-%d.json", testTime.UnixMilli()), first.BackupPath)
	assert.Equal(t, fmt.Sprintf("backups/dashboards/sales-%d.json", testTime.UnixMilli()+1), second.BackupPath)

	original, err := h.store.Get(ctx, testBucket, first.BackupPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"live": 1}`, string(original))
}

func TestArchivalBackupConcurrentSlots(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const n = 8

	var wg sync.WaitGroup
	paths := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = h.orch.writeArchivalBackup(ctx, asset.KindDataset, "ds-orders",
				envelope(asset.KindDataset, "ds-orders", map[string]string{asset.SnapshotDescribe: datasetDescribe}))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	want := make([]string, n)
	for i := range want {
		want[i] = fmt.Sprintf("archived/datasets/ds-orders-previous-archive-%d.json", i+1)
	}
	sort.Strings(want)
	sort.Strings(paths)
	assert.Equal(t, want, paths)
}

func TestSideEffectPartialFailure(t *testing.T) {
	archived := envelope(asset.KindDataset, "ds-orders", map[string]string{
		asset.SnapshotDescribe: datasetDescribe,
		asset.SnapshotRefreshSchedules: `{"RefreshSchedules": [
			{"ScheduleId": "nightly", "Arn": "arn:x", "ScheduleFrequency": {"Interval": "DAILY"}, "RefreshType": "FULL_REFRESH"},
			{"ScheduleId": "weekly", "ScheduleFrequency": {"Interval": "WEEKLY"}, "RefreshType": "FULL_REFRESH"}
		]}`,
		asset.SnapshotRefreshProperties: `{"DataSetRefreshProperties": {"RefreshConfiguration": {"IncrementalRefresh": {}}}}`,
		asset.SnapshotFolderMemberships: `{"Folders": ["arn:aws:quicksight:us-east-1:111122223333:folder/finance", {"FolderId": "ops"}]}`,
	})

	tests := []struct {
		name        string
		failMethod  string
		wantWarning string
	}{
		{"refresh schedule fails", "CreateRefreshSchedule", "refresh-schedule"},
		{"folder membership fails", "CreateFolderMembership", "folder-membership"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.client.Fail(tt.failMethod, errors.New("InternalFailure: boom"))

			result := h.orch.Deploy(context.Background(), asset.KindDataset, "ds-orders", archived, DefaultConfig())

			assert.True(t, result.Success)
			assert.Equal(t, StatusCompleted, result.Status)
			assert.Len(t, h.client.CallsTo("CreateRefreshSchedule"), 2)
			assert.Len(t, h.client.CallsTo("PutDataSetRefreshProperties"), 1)
			assert.Equal(t, []platformtest.Call{
				{Method: "CreateFolderMembership", ID: "finance/ds-orders"},
				{Method: "CreateFolderMembership", ID: "ops/ds-orders"},
			}, h.client.CallsTo("CreateFolderMembership"))
			require.Len(t, result.Warnings, 2)
			for _, w := range result.Warnings {
				assert.Contains(t, w, tt.wantWarning)
			}
			assert.NotEmpty(t, result.ArchiveBackupPath)
		})
	}
}

func TestSideEffectPayloads(t *testing.T) {
	h := newHarness(t)
	archived := envelope(asset.KindDataset, "ds-orders", map[string]string{
		asset.SnapshotDescribe:         datasetDescribe,
		asset.SnapshotRefreshSchedules: `[{"ScheduleId": "nightly", "Arn": "arn:x", "RefreshType": "FULL_REFRESH"}]`,
	})

	result := h.orch.Deploy(context.Background(), asset.KindDataset, "ds-orders", archived, DefaultConfig())
	require.True(t, result.Success, result.Error)

	schedules := h.client.Payloads("CreateRefreshSchedule")
	require.Len(t, schedules, 1)
	assert.Equal(t, "nightly", schedules[0]["ScheduleId"])
	assert.NotContains(t, schedules[0], "Arn")
}

func TestSideEffectsHonourConfig(t *testing.T) {
	h := newHarness(t)
	archived := envelope(asset.KindDataset, "ds-orders", map[string]string{
		asset.SnapshotDescribe:          datasetDescribe,
		asset.SnapshotRefreshSchedules:  `{"RefreshSchedules": [{"ScheduleId": "nightly"}]}`,
		asset.SnapshotFolderMemberships: `{"Folders": ["finance"]}`,
	})
	cfg := DefaultConfig()
	cfg.RestoreRefreshSchedules = false
	cfg.RestoreFolderMemberships = false

	result := h.orch.Deploy(context.Background(), asset.KindDataset, "ds-orders", archived, cfg)
	require.True(t, result.Success, result.Error)
	assert.Empty(t, h.client.CallsTo("CreateRefreshSchedule"))
	assert.Empty(t, h.client.CallsTo("CreateFolderMembership"))
}

func TestFolderAndGroupMembers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	folder := envelope(asset.KindFolder, "finance", map[string]string{
		asset.SnapshotDescribe: `{"Folder": {"FolderId": "finance", "Name": "Finance", "FolderType": "SHARED"}}`,
		asset.SnapshotFolderMemberships: `{"FolderMemberList": [
			{"MemberId": "sales", "MemberArn": "arn:aws:quicksight:us-east-1:111122223333:dashboard/sales"},
			{"MemberId": "ds-orders", "MemberArn": "arn:aws:quicksight:us-east-1:111122223333:dataset/ds-orders"},
			{"MemberId": "odd", "MemberArn": "not-an-arn"}
		]}`,
	})
	result := h.orch.Deploy(ctx, asset.KindFolder, "finance", folder, DefaultConfig())
	require.True(t, result.Success, result.Error)

	memberships := h.client.Payloads("CreateFolderMembership")
	require.Len(t, memberships, 2)
	assert.Equal(t, "DASHBOARD", memberships[0]["MemberType"])
	assert.Equal(t, "DATASET", memberships[1]["MemberType"])

	group := envelope(asset.KindGroup, "analysts", map[string]string{
		asset.SnapshotDescribe: `{"Group": {"GroupName": "analysts"}}`,
		asset.SnapshotMembers:  `{"GroupMemberList": [{"MemberName": "ana"}, {"MemberName": "bob"}, {}]}`,
	})
	result = h.orch.Deploy(ctx, asset.KindGroup, "analysts", group, DefaultConfig())
	require.True(t, result.Success, result.Error)
	assert.Equal(t, []platformtest.Call{
		{Method: "CreateGroupMembership", ID: "analysts/ana"},
		{Method: "CreateGroupMembership", ID: "analysts/bob"},
	}, h.client.CallsTo("CreateGroupMembership"))
}

func TestCollectionActivationMerges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, id := range []string{"finance", "ops"} {
		archived := envelope(asset.KindFolder, id, map[string]string{
			asset.SnapshotDescribe: fmt.Sprintf(`{"Folder": {"FolderId": %q, "Name": %q}}`, id, strings.ToUpper(id)),
		})
		result := h.orch.Deploy(ctx, asset.KindFolder, id, archived, DefaultConfig())
		require.True(t, result.Success, result.Error)
	}

	doc, err := h.store.Get(ctx, testBucket, "assets/organization/folders.json")
	require.NoError(t, err)
	assert.True(t, gjson.GetBytes(doc, "finance").IsObject())
	assert.True(t, gjson.GetBytes(doc, "ops").IsObject())
	assert.Equal(t, "OPS", gjson.GetBytes(doc, `ops.apiResponses.describe.data.Folder.Name`).String())

	assert.Len(t, h.cache.List(asset.KindFolder), 2)
}

func TestDeployDateSerializationFailure(t *testing.T) {
	h := newHarness(t)
	h.client.Fail("CreateDashboard", errors.New(`SerializationException: parsing time "1709294400" as "2006-01-02T15:04:05Z07:00": cannot parse`))

	result := h.orch.Deploy(context.Background(), asset.KindDashboard, "sales", dashboardArchive("sales"), DefaultConfig())

	assert.False(t, result.Success)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, StageCreating, result.FailedStage)
	assert.Equal(t, "RST003", result.ErrorCode)
	assert.True(t, strings.HasPrefix(result.Error, "date serialization failed"))
	assert.Contains(t, result.Error, "known SDK defect")
	assert.Contains(t, result.Error, `parsing time "1709294400"`)
	assert.Empty(t, result.ArchiveBackupPath)
	assert.Empty(t, h.store.Keys(testBucket), "no activation or backup after a failed create")
}

func TestDeployFailsValidationWhenTargetExists(t *testing.T) {
	h := newHarness(t)
	h.client.Seed(platformtest.Dashboard, "sales", json.RawMessage(`{}`))

	result := h.orch.Deploy(context.Background(), asset.KindDashboard, "sales", dashboardArchive("sales"), DefaultConfig())

	assert.False(t, result.Success)
	assert.Equal(t, StageValidating, result.FailedStage)
	assert.Equal(t, "RST010", result.ErrorCode)
	assert.Contains(t, result.Error, "already exists")
	assert.Empty(t, h.client.CallsTo("CreateDashboard"))
	assert.Empty(t, h.client.CallsTo("DeleteDashboard"))

	stored, err := h.history.Get(context.Background(), result.DeploymentID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
}

func TestDeployModes(t *testing.T) {
	tests := []struct {
		name   string
		seed   bool
		mutate func(*DeployConfig)
		status DeploymentStatus
	}{
		{"validate only", false, func(c *DeployConfig) { c.ValidateOnly = true }, StatusCompleted},
		{"dry run", false, func(c *DeployConfig) { c.DryRun = true; c.TargetID = "sales-copy" }, StatusCompleted},
		{"skip if exists", true, func(c *DeployConfig) { c.SkipIfExists = true }, StatusSkipped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.seed {
				h.client.Seed(platformtest.Dashboard, "sales", json.RawMessage(`{}`))
			}
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			result := h.orch.Deploy(context.Background(), asset.KindDashboard, "sales", dashboardArchive("sales"), cfg)

			assert.True(t, result.Success, result.Error)
			assert.Equal(t, tt.status, result.Status)
			assert.Equal(t, cfg.DryRun, result.DryRun)
			assert.Empty(t, h.client.CallsTo("CreateDashboard"))
			assert.Empty(t, h.client.CallsTo("DeleteDashboard"))
			assert.Empty(t, h.store.Keys(testBucket))
			if cfg.DryRun {
				assert.NotEmpty(t, result.Transformations)
			}
		})
	}
}

func TestDeployOverwriteBacksUpActiveCopy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.client.Seed(platformtest.Dashboard, "sales", json.RawMessage(`{"Dashboard": {"Name": "Live"}}`))
	require.NoError(t, h.store.Put(ctx, testBucket, "assets/dashboards/sales.json", []byte(`{"live": true}`)))

	cfg := DefaultConfig()
	cfg.Overwrite = true
	cfg.BackupExisting = true
	result := h.orch.Deploy(ctx, asset.KindDashboard, "sales", dashboardArchive("sales"), cfg)

	require.True(t, result.Success, result.Error)
	assert.Equal(t, fmt.Sprintf("backups/dashboards/sales-%d.json", testTime.UnixMilli()), result.BackupPath)
	backup, err := h.store.Get(ctx, testBucket, result.BackupPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"live": true}`, string(backup))
	assert.Len(t, h.client.CallsTo("DeleteDashboard"), 1)
	assert.Len(t, h.client.CallsTo("CreateDashboard"), 1)
}

func TestDeployOverwriteBacksUpDescribedAsset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.client.Seed(platformtest.Dashboard, "sales", json.RawMessage(`{"Dashboard": {"Name": "Live"}}`))

	cfg := DefaultConfig()
	cfg.Overwrite = true
	cfg.BackupExisting = true
	result := h.orch.Deploy(ctx, asset.KindDashboard, "sales", dashboardArchive("sales"), cfg)
	require.True(t, result.Success, result.Error)

	backup, err := h.store.Get(ctx, testBucket, result.BackupPath)
	require.NoError(t, err)
	live, err := asset.DecodeExportData(backup)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Dashboard": {"Name": "Live"}}`, string(live.Data(asset.SnapshotDescribe)))
}

func TestDeployOverwriteKeepsLiveAssetWhenArchiveIncomplete(t *testing.T) {
	h := newHarness(t)
	h.client.Seed(platformtest.Dataset, "ds-orders", json.RawMessage(datasetDescribe))
	archived := envelope(asset.KindDataset, "ds-orders", map[string]string{
		asset.SnapshotDescribe: `{"DataSet": {"DataSetId": "ds-orders", "Name": "Orders", "LogicalTableMap": {}}}`,
	})

	cfg := DefaultConfig()
	cfg.Overwrite = true
	cfg.BackupExisting = true
	result := h.orch.Deploy(context.Background(), asset.KindDataset, "ds-orders", archived, cfg)

	assert.False(t, result.Success)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, StageValidating, result.FailedStage)
	assert.Equal(t, "RST001", result.ErrorCode, "missing component outranks the generic validation code")
	assert.Contains(t, result.Error, "PhysicalTableMap")
	assert.Empty(t, result.BackupPath)

	assert.True(t, h.client.Has(platformtest.Dataset, "ds-orders"), "live dataset must survive")
	assert.Empty(t, h.client.CallsTo("DeleteDataSet"))
	assert.Empty(t, h.client.CallsTo("CreateDataSet"))
}

func TestDeployDeleteFailureStopsPipeline(t *testing.T) {
	h := newHarness(t)
	h.client.Seed(platformtest.Dashboard, "sales", json.RawMessage(`{}`))
	h.client.Fail("DeleteDashboard", errors.New("AccessDeniedException: not authorized"))

	cfg := DefaultConfig()
	cfg.Overwrite = true
	result := h.orch.Deploy(context.Background(), asset.KindDashboard, "sales", dashboardArchive("sales"), cfg)

	assert.False(t, result.Success)
	assert.Equal(t, StageDeleting, result.FailedStage)
	assert.Equal(t, "RST006", result.ErrorCode)
	assert.Empty(t, h.client.CallsTo("CreateDashboard"))
}

func TestDeployTransformations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.TargetID = "sales-copy"
	cfg.NameOverride = "Sales Copy"
	cfg.IncludePermissions = false

	archived := envelope(asset.KindDashboard, "sales", map[string]string{
		asset.SnapshotDefinition:  dashboardDefinition,
		asset.SnapshotPermissions: `{"Permissions": [{"Principal": "p", "Actions": ["a"]}]}`,
	})
	result := h.orch.Deploy(ctx, asset.KindDashboard, "sales", archived, cfg)
	require.True(t, result.Success, result.Error)
	assert.Len(t, result.Transformations, 3)

	p := h.client.Payloads("CreateDashboard")[0]
	assert.Equal(t, "sales-copy", p["DashboardId"])
	assert.Equal(t, "Sales Copy", p["Name"])
	assert.Equal(t, []Permission{}, p["Permissions"])

	_, err := h.store.Get(ctx, testBucket, "assets/dashboards/sales-copy.json")
	assert.NoError(t, err)
	assert.Equal(t, "archived/dashboards/sales-previous-archive-1.json", result.ArchiveBackupPath)

	// The archived input is never modified.
	assert.Equal(t, "sales", gjson.GetBytes(archived.Data(asset.SnapshotDefinition), "DashboardId").String())
	assert.True(t, archived.Has(asset.SnapshotPermissions))
}

type failingCache struct {
	replaceErr error
	rebuildErr error
	rebuilds   int
}

func (c *failingCache) ReplaceAsset(context.Context, asset.Kind, string, metadata.Metadata) error {
	return c.replaceErr
}

func (c *failingCache) RebuildCacheForAssetType(context.Context, asset.Kind) error {
	c.rebuilds++
	return c.rebuildErr
}

func TestCacheFailuresAreWarnings(t *testing.T) {
	tests := []struct {
		name     string
		cache    *failingCache
		warnings int
		rebuilds int
	}{
		{"replace ok", &failingCache{}, 0, 0},
		{"rebuild fallback", &failingCache{replaceErr: errors.New("conn reset")}, 0, 1},
		{"both fail", &failingCache{replaceErr: errors.New("conn reset"), rebuildErr: errors.New("timeout")}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			orch, err := NewOrchestrator(Options{Client: h.client, Store: h.store, Bucket: testBucket, Cache: tt.cache})
			require.NoError(t, err)

			result := orch.Deploy(context.Background(), asset.KindDashboard, "sales", dashboardArchive("sales"), DefaultConfig())

			assert.True(t, result.Success, result.Error)
			assert.Len(t, result.Warnings, tt.warnings)
			assert.Equal(t, tt.rebuilds, tt.cache.rebuilds)
		})
	}
}

func TestDeployUnsupportedKind(t *testing.T) {
	h := newHarness(t)
	archived := envelope(asset.KindUser, "ana", map[string]string{
		asset.SnapshotDescribe: `{"User": {"UserName": "ana", "Role": "READER"}}`,
	})

	result := h.orch.Deploy(context.Background(), asset.KindUser, "ana", archived, DefaultConfig())

	assert.False(t, result.Success)
	assert.Equal(t, StageCreating, result.FailedStage)
	assert.Equal(t, "RST002", result.ErrorCode)
}
