package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/platform/platformtest"
	"github.com/JonMunkholm/assetkeeper/internal/restore"
	"github.com/JonMunkholm/assetkeeper/internal/storage"
)

const testBucket = "archive"

var testTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	client  *platformtest.Fake
	store   *storage.MemoryStore
	history *restore.MemoryHistory
	coord   *Coordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithLimiter(t, NewLimiter(4, time.Second))
}

func newHarnessWithLimiter(t *testing.T, limiter *Limiter) *harness {
	t.Helper()
	h := &harness{
		client:  platformtest.New(),
		store:   storage.NewMemoryStore(),
		history: restore.NewMemoryHistory(),
	}
	orch, err := restore.NewOrchestrator(restore.Options{
		Client:  h.client,
		Store:   h.store,
		Bucket:  testBucket,
		History: h.history,
		Clock:   func() time.Time { return testTime },
	})
	require.NoError(t, err)

	h.coord, err = NewCoordinator(Options{
		Orchestrator: orch,
		Store:        h.store,
		Bucket:       testBucket,
		Limiter:      limiter,
		Clock:        func() time.Time { return testTime },
	})
	require.NoError(t, err)
	return h
}

func datasourceArchive(id string) *asset.ExportData {
	d := asset.NewExportData(asset.KindDatasource, id)
	d.Set(asset.SnapshotDescribe, json.RawMessage(fmt.Sprintf(`{
		"DataSource": {
			"DataSourceId": %q,
			"Name": "Athena %s",
			"Type": "ATHENA",
			"DataSourceParameters": {"AthenaParameters": {"WorkGroup": "primary"}}
		}
	}`, id, id)), testTime)
	return d
}

// archive stores a datasource envelope at its archived location.
func (h *harness) archive(t *testing.T, id string) {
	t.Helper()
	raw, err := datasourceArchive(id).Encode()
	require.NoError(t, err)
	require.NoError(t, h.store.Put(context.Background(), testBucket, asset.ArchivedKey(asset.KindDatasource, id), raw))
}

func ptr[T any](v T) *T { return &v }
