package restore

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
)

// idPaths and namePaths locate the identifier and display name inside the
// definition and describe snapshots, with and without the describe wrapper.
var (
	idPaths = map[asset.Kind][]string{
		asset.KindDashboard:  {"DashboardId", "Dashboard.DashboardId"},
		asset.KindAnalysis:   {"AnalysisId", "Analysis.AnalysisId"},
		asset.KindDataset:    {"DataSetId", "DataSet.DataSetId"},
		asset.KindDatasource: {"DataSourceId", "DataSource.DataSourceId"},
		asset.KindFolder:     {"FolderId", "Folder.FolderId"},
		asset.KindGroup:      {"GroupName", "Group.GroupName"},
		asset.KindUser:       {"UserName", "User.UserName"},
	}
	namePaths = map[asset.Kind][]string{
		asset.KindDashboard:  {"Name", "Dashboard.Name"},
		asset.KindAnalysis:   {"Name", "Analysis.Name"},
		asset.KindDataset:    {"Name", "DataSet.Name"},
		asset.KindDatasource: {"Name", "DataSource.Name"},
		asset.KindFolder:     {"Name", "Folder.Name"},
	}
)

// transformSnapshots are rewritten by transformations; the other snapshots
// describe access and membership and carry no asset identity.
var transformSnapshots = []string{asset.SnapshotDefinition, asset.SnapshotDescribe}

// applyTransformations rewrites working in place for the target id and name
// override and strips components the config excludes. It returns a
// description of every change made.
func applyTransformations(working *asset.ExportData, kind asset.Kind, sourceID, targetID string, cfg DeployConfig) ([]string, error) {
	var applied []string

	if targetID != sourceID {
		n, err := rewrite(working, idPaths[kind], targetID)
		if err != nil {
			return applied, fmt.Errorf("rewrite id: %w", err)
		}
		working.Metadata.AssetID = targetID
		applied = append(applied, fmt.Sprintf("id %s -> %s (%d fields)", sourceID, targetID, n))
	}

	if cfg.NameOverride != "" {
		paths, ok := namePaths[kind]
		if !ok {
			applied = append(applied, fmt.Sprintf("name override ignored: %s has no display name", kind))
		} else {
			n, err := rewrite(working, paths, cfg.NameOverride)
			if err != nil {
				return applied, fmt.Errorf("rewrite name: %w", err)
			}
			applied = append(applied, fmt.Sprintf("name -> %q (%d fields)", cfg.NameOverride, n))
		}
	}

	if !cfg.IncludePermissions && working.Has(asset.SnapshotPermissions) {
		delete(working.APIResponses, asset.SnapshotPermissions)
		applied = append(applied, "permissions excluded")
	}
	if !cfg.IncludeTags && working.Has(asset.SnapshotTags) {
		delete(working.APIResponses, asset.SnapshotTags)
		applied = append(applied, "tags excluded")
	}
	return applied, nil
}

// rewrite sets value at every existing path of the transformable snapshots
// and returns the number of fields changed. Paths that are absent are left
// absent.
func rewrite(working *asset.ExportData, paths []string, value string) (int, error) {
	changed := 0
	for _, name := range transformSnapshots {
		snap, ok := working.Snapshot(name)
		if !ok || !gjson.ValidBytes(snap.Data) {
			continue
		}
		data := []byte(snap.Data)
		for _, path := range paths {
			if !gjson.GetBytes(data, path).Exists() {
				continue
			}
			next, err := sjson.SetBytes(data, path, value)
			if err != nil {
				return changed, fmt.Errorf("%s %s: %w", name, path, err)
			}
			data = next
			changed++
		}
		snap.Data = json.RawMessage(data)
	}
	return changed, nil
}
