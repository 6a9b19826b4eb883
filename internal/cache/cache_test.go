package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/metadata"
	"github.com/JonMunkholm/assetkeeper/internal/storage"
)

const bucket = "bi-archive"

func putEnvelope(t *testing.T, s storage.ObjectStore, key string, d *asset.ExportData) {
	t.Helper()
	raw, err := d.Encode()
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), bucket, key, raw))
}

func TestMemoryRebuildIndividual(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	for _, id := range []string{"orders", "regions"} {
		d := asset.NewExportData(asset.KindDataset, id)
		d.Set(asset.SnapshotDescribe, json.RawMessage(`{"DataSet": {"Name": "`+id+`", "ImportMode": "SPICE"}}`), time.Now())
		putEnvelope(t, store, asset.ActiveKey(asset.KindDataset, id), d)
	}
	require.NoError(t, store.Put(ctx, bucket, asset.ActiveKey(asset.KindDataset, "broken"), []byte(`not json`)))

	c := NewMemory(Source{Store: store, Bucket: bucket})
	require.NoError(t, c.ReplaceAsset(ctx, asset.KindDataset, "stale", metadata.Metadata{ID: "stale"}))
	require.NoError(t, c.RebuildCacheForAssetType(ctx, asset.KindDataset))

	records := c.List(asset.KindDataset)
	require.Len(t, records, 2)
	assert.Equal(t, "orders", records[0].ID)
	assert.Equal(t, "SPICE", records[0].ImportMode)
	_, ok := c.Get(asset.KindDataset, "stale")
	assert.False(t, ok, "rebuild replaces the whole kind")
}

func TestMemoryRebuildCollection(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	g := asset.NewExportData(asset.KindGroup, "analysts")
	g.Set(asset.SnapshotMembers, json.RawMessage(`{"GroupMemberList": [{"MemberName": "a"}]}`), time.Now())
	raw, err := g.Encode()
	require.NoError(t, err)
	collection := []byte(`{"analysts": ` + string(raw) + `, "bad": "x"}`)
	require.NoError(t, store.Put(ctx, bucket, asset.CollectionKey(asset.KindGroup), collection))

	c := NewMemory(Source{Store: store, Bucket: bucket})
	require.NoError(t, c.RebuildCacheForAssetType(ctx, asset.KindGroup))

	m, ok := c.Get(asset.KindGroup, "analysts")
	require.True(t, ok)
	assert.Equal(t, 1, m.MemberCount)
	assert.Len(t, c.List(asset.KindGroup), 1)
}

func TestRebuildWithoutStore(t *testing.T) {
	c := NewMemory(Source{})
	assert.Error(t, c.RebuildCacheForAssetType(context.Background(), asset.KindDashboard))
}
