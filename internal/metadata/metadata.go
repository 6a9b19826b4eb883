// Package metadata derives the flat per-asset record stored in the cache from
// an export envelope. Extraction never fails: missing snapshots produce
// zero-valued counts and the enrichment status records what was available.
package metadata

import (
	"encoding/json"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/parser"
)

// Metadata is the normalized cache record for one asset.
type Metadata struct {
	Kind             asset.Kind             `json:"kind"`
	ID               string                 `json:"id"`
	Name             string                 `json:"name,omitempty"`
	Arn              string                 `json:"arn,omitempty"`
	CreatedTime      string                 `json:"createdTime,omitempty"`
	LastUpdatedTime  string                 `json:"lastUpdatedTime,omitempty"`
	EnrichmentStatus asset.EnrichmentStatus `json:"enrichmentStatus"`
	PermissionCount  int                    `json:"permissionCount"`
	TagCount         int                    `json:"tagCount"`

	// Explorations.
	SheetCount           int      `json:"sheetCount,omitempty"`
	VisualCount          int      `json:"visualCount,omitempty"`
	FieldCount           int      `json:"fieldCount,omitempty"`
	CalculatedFieldCount int      `json:"calculatedFieldCount,omitempty"`
	DatasetIDs           []string `json:"datasetIds,omitempty"`
	ThemeArn             string   `json:"themeArn,omitempty"`
	Status               string   `json:"status,omitempty"`
	PublishedVersion     int64    `json:"publishedVersion,omitempty"`

	// Datasets.
	ImportMode           string   `json:"importMode,omitempty"`
	ColumnCount          int      `json:"columnCount,omitempty"`
	DatasourceIDs        []string `json:"datasourceIds,omitempty"`
	RowLevelSecurity     bool     `json:"rowLevelSecurity,omitempty"`
	RefreshScheduleCount int      `json:"refreshScheduleCount,omitempty"`

	// Datasources.
	ConnectionType string `json:"connectionType,omitempty"`
	Host           string `json:"host,omitempty"`
	Database       string `json:"database,omitempty"`

	// Folders and groups.
	MemberCount int    `json:"memberCount,omitempty"`
	FolderType  string `json:"folderType,omitempty"`

	// Users.
	Role         string `json:"role,omitempty"`
	Email        string `json:"email,omitempty"`
	IdentityType string `json:"identityType,omitempty"`
}

// identity names where each kind keeps its describe wrapper and id.
type identity struct {
	wrapper string
	idKey   string
	nameKey string
}

var identities = map[asset.Kind]identity{
	asset.KindDashboard:  {wrapper: "Dashboard", idKey: "DashboardId", nameKey: "Name"},
	asset.KindAnalysis:   {wrapper: "Analysis", idKey: "AnalysisId", nameKey: "Name"},
	asset.KindDataset:    {wrapper: "DataSet", idKey: "DataSetId", nameKey: "Name"},
	asset.KindDatasource: {wrapper: "DataSource", idKey: "DataSourceId", nameKey: "Name"},
	asset.KindFolder:     {wrapper: "Folder", idKey: "FolderId", nameKey: "Name"},
	asset.KindGroup:      {wrapper: "Group", idKey: "GroupName", nameKey: "GroupName"},
	asset.KindUser:       {wrapper: "User", idKey: "UserName", nameKey: "UserName"},
}

// Extractor builds Metadata for one kind.
type Extractor struct {
	kind asset.Kind
}

// For returns the extractor for kind.
func For(kind asset.Kind) Extractor {
	return Extractor{kind: kind}
}

// Extract builds the metadata record. transformed, when non-empty, replaces
// the stored definition (callers pass the rewritten document after a
// restore applied id or name transformations).
func (e Extractor) Extract(data *asset.ExportData, transformed []byte) Metadata {
	m := Metadata{Kind: e.kind}
	if data == nil {
		m.EnrichmentStatus = asset.EnrichmentSkeleton
		return m
	}
	m.ID = data.Metadata.AssetID
	m.EnrichmentStatus = ClassifyEnrichment(e.kind, data, data.Metadata.EnrichmentStatus)

	e.basic(&m, data)

	def := transformed
	if len(def) == 0 {
		if e.kind.RequiresDefinition() {
			def = data.Data(asset.SnapshotDefinition)
		} else {
			def, _ = data.DefinitionDocument()
		}
	}

	switch {
	case e.kind.IsExploration():
		e.exploration(&m, data, def)
	case e.kind == asset.KindDataset:
		e.dataset(&m, data, def)
	case e.kind == asset.KindDatasource:
		e.datasource(&m, def)
	case e.kind == asset.KindFolder:
		m.FolderType = describeBody(e.kind, data).Get("FolderType").String()
		m.MemberCount = countList(data.Data(asset.SnapshotFolderMemberships), "FolderMemberList", "MemberIdList")
	case e.kind == asset.KindGroup:
		m.MemberCount = countList(data.Data(asset.SnapshotMembers), "GroupMemberList")
	case e.kind == asset.KindUser:
		body := describeBody(e.kind, data)
		m.Role = body.Get("Role").String()
		m.Email = body.Get("Email").String()
		m.IdentityType = body.Get("IdentityType").String()
	}
	return m
}

// basic fills identity and timestamps from describe, falling back to list.
func (e Extractor) basic(m *Metadata, data *asset.ExportData) {
	id := identities[e.kind]
	for _, body := range []gjson.Result{describeBody(e.kind, data), parse(data.Data(asset.SnapshotList))} {
		if !body.IsObject() {
			continue
		}
		if m.ID == "" {
			m.ID = body.Get(id.idKey).String()
		}
		if m.Name == "" {
			m.Name = body.Get(id.nameKey).String()
		}
		if m.Arn == "" {
			m.Arn = body.Get("Arn").String()
		}
		if m.CreatedTime == "" {
			m.CreatedTime = body.Get("CreatedTime").String()
		}
		if m.LastUpdatedTime == "" {
			m.LastUpdatedTime = body.Get("LastUpdatedTime").String()
		}
	}
	m.PermissionCount = countList(data.Data(asset.SnapshotPermissions), "Permissions")
	m.TagCount = countList(data.Data(asset.SnapshotTags), "Tags")
}

func (e Extractor) exploration(m *Metadata, data *asset.ExportData, def []byte) {
	body := describeBody(e.kind, data)
	version := body.Get("Version")
	if !version.Exists() {
		version = body
	}
	m.ThemeArn = version.Get("ThemeArn").String()
	m.Status = version.Get("Status").String()
	m.PublishedVersion = body.Get("Version.VersionNumber").Int()

	if len(def) == 0 {
		return
	}
	info := parser.For(e.kind).Parse(def)
	m.SheetCount = len(info.Sheets)
	m.VisualCount = len(info.Visuals)
	m.FieldCount = len(info.Fields)
	m.CalculatedFieldCount = len(info.CalculatedFields)
	m.DatasetIDs = info.Lineage.DatasetIDs
}

func (e Extractor) dataset(m *Metadata, data *asset.ExportData, def []byte) {
	body := describeBody(e.kind, data)
	m.ImportMode = body.Get("ImportMode").String()
	m.RowLevelSecurity = body.Get("RowLevelPermissionDataSet").IsObject()
	m.RefreshScheduleCount = countList(data.Data(asset.SnapshotRefreshSchedules), "RefreshSchedules")

	if len(def) == 0 {
		return
	}
	if m.ImportMode == "" {
		m.ImportMode = unwrap(parse(def), "DataSet").Get("ImportMode").String()
	}
	info := parser.For(e.kind).Parse(def)
	m.ColumnCount = len(info.Fields)
	m.CalculatedFieldCount = len(info.CalculatedFields)
	m.DatasourceIDs = info.Lineage.DatasourceIDs
	m.DatasetIDs = lo.Uniq(info.Lineage.DatasetIDs)
}

func (e Extractor) datasource(m *Metadata, def []byte) {
	if len(def) == 0 {
		return
	}
	info := parser.For(e.kind).Parse(def)
	if info.Connection == nil {
		return
	}
	m.ConnectionType = info.Connection.Type
	m.Host = info.Connection.Host
	m.Database = info.Connection.Database
}

// describeBody returns the unwrapped describe payload for kind.
func describeBody(kind asset.Kind, data *asset.ExportData) gjson.Result {
	return unwrap(parse(data.Data(asset.SnapshotDescribe)), identities[kind].wrapper)
}

func parse(raw json.RawMessage) gjson.Result {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return gjson.Result{}
	}
	return gjson.ParseBytes(raw)
}

func unwrap(doc gjson.Result, key string) gjson.Result {
	if key == "" {
		return doc
	}
	if inner := doc.Get(key); inner.IsObject() {
		return inner
	}
	return doc
}

// countList counts the entries of the first array found under keys, or of
// the document itself when it is an array.
func countList(raw json.RawMessage, keys ...string) int {
	doc := parse(raw)
	if doc.IsArray() {
		return len(doc.Array())
	}
	for _, k := range keys {
		if v := doc.Get(k); v.IsArray() {
			return len(v.Array())
		}
	}
	return 0
}
