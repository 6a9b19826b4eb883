package restore

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/cache"
	"github.com/JonMunkholm/assetkeeper/internal/platform/platformtest"
	"github.com/JonMunkholm/assetkeeper/internal/storage"
)

const testBucket = "archive"

var testTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func envelope(kind asset.Kind, id string, snaps map[string]string) *asset.ExportData {
	d := asset.NewExportData(kind, id)
	for name, raw := range snaps {
		d.Set(name, json.RawMessage(raw), testTime)
	}
	return d
}

const dashboardDefinition = `{
	"DashboardId": "sales",
	"Name": "Sales",
	"Definition": {
		"DataSetIdentifierDeclarations": [
			{"Identifier": "orders", "DataSetArn": "arn:aws:quicksight:us-east-1:111122223333:dataset/ds-orders"}
		],
		"Sheets": []
	}
}`

const datasetDescribe = `{
	"DataSet": {
		"DataSetId": "ds-orders",
		"Name": "Orders",
		"ImportMode": "DIRECT_QUERY",
		"PhysicalTableMap": {
			"t1": {"RelationalTable": {
				"DataSourceArn": "arn:aws:quicksight:us-east-1:111122223333:datasource/src-1",
				"Name": "orders",
				"InputColumns": [{"Name": "id", "Type": "INTEGER"}]
			}}
		},
		"LogicalTableMap": {
			"l1": {"Alias": "orders", "Source": {"PhysicalTableId": "t1"}}
		}
	}
}`

const compositeDatasetDescribe = `{
	"DataSet": {
		"DataSetId": "ds-combined",
		"Name": "Combined",
		"PhysicalTableMap": {
			"t1": {"RelationalTable": {
				"DataSourceArn": "arn:aws:quicksight:us-east-1:111122223333:datasource/src-1",
				"Name": "orders",
				"InputColumns": [{"Name": "id", "Type": "INTEGER"}]
			}}
		},
		"LogicalTableMap": {
			"l1": {"Alias": "orders", "Source": {"PhysicalTableId": "t1"}},
			"l2": {"Alias": "customers", "Source": {"DataSetArn": "arn:aws:quicksight:us-east-1:111122223333:dataset/ds-customers"}},
			"l3": {"Alias": "joined", "Source": {"JoinInstruction": {"LeftOperand": "l1", "RightOperand": "l2", "Type": "INNER"}}}
		}
	}
}`

func dashboardArchive(id string) *asset.ExportData {
	return envelope(asset.KindDashboard, id, map[string]string{
		asset.SnapshotDefinition:  dashboardDefinition,
		asset.SnapshotPermissions: `{"Permissions": []}`,
		asset.SnapshotTags:        `{"Tags": []}`,
	})
}

type harness struct {
	client  *platformtest.Fake
	store   *storage.MemoryStore
	cache   *cache.Memory
	history *MemoryHistory
	orch    *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		client:  platformtest.New(),
		store:   storage.NewMemoryStore(),
		history: NewMemoryHistory(),
	}
	h.cache = cache.NewMemory(cache.Source{Store: h.store, Bucket: testBucket})
	orch, err := NewOrchestrator(Options{
		Client:  h.client,
		Store:   h.store,
		Bucket:  testBucket,
		Cache:   h.cache,
		History: h.history,
		Clock:   func() time.Time { return testTime },
	})
	require.NoError(t, err)
	h.orch = orch
	return h
}

// flakyStore fails the first failures Exists calls with err.
type flakyStore struct {
	*storage.MemoryStore
	err      error
	failures int

	mu    sync.Mutex
	calls int
}

func (s *flakyStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	s.mu.Unlock()
	if fail {
		return false, s.err
	}
	return s.MemoryStore.Exists(ctx, bucket, key)
}

func (s *flakyStore) existsCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func findResult(results []ValidationResult, validator string) (ValidationResult, bool) {
	for _, r := range results {
		if r.Validator == validator {
			return r, true
		}
	}
	return ValidationResult{}, false
}
