package restore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/logging"
	"github.com/JonMunkholm/assetkeeper/internal/parser"
	"github.com/JonMunkholm/assetkeeper/internal/platform"
)

// datasetCopyKeys are passed through from the archived definition unchanged.
var datasetCopyKeys = []string{
	"PhysicalTableMap",
	"LogicalTableMap",
	"ColumnGroups",
	"FieldFolders",
	"RowLevelPermissionDataSet",
	"RowLevelPermissionTagConfiguration",
	"ColumnLevelPermissionRules",
	"DataSetUsageConfiguration",
	"DatasetParameters",
}

type datasetStrategy struct {
	client platform.Client
}

func newDatasetStrategy(c platform.Client) *datasetStrategy {
	return &datasetStrategy{client: c}
}

func (s *datasetStrategy) Kind() asset.Kind { return asset.KindDataset }

// datasetPayload builds a create or update body for a dataset definition.
func datasetPayload(id string, body gjson.Result) platform.Payload {
	p := platform.Payload{
		"DataSetId":  id,
		"Name":       firstNonEmpty(body.Get("Name").String(), id),
		"ImportMode": firstNonEmpty(body.Get("ImportMode").String(), "SPICE"),
	}
	copyRaw(p, body, datasetCopyKeys...)
	return p
}

func (s *datasetStrategy) CheckPreconditions(id string, archived *asset.ExportData) error {
	if !definitionDoc(archived, "DataSet").Get("PhysicalTableMap").IsObject() {
		return &PreconditionError{Kind: asset.KindDataset, ID: id, Component: "PhysicalTableMap"}
	}
	return nil
}

func (s *datasetStrategy) Restore(ctx context.Context, id string, archived *asset.ExportData, info parser.ParsedAssetInfo) (RestoreOutput, error) {
	if err := s.CheckPreconditions(id, archived); err != nil {
		return RestoreOutput{}, err
	}
	body := definitionDoc(archived, "DataSet")

	p := withAccess(datasetPayload(id, body), archived)
	res, err := s.client.CreateDataSet(ctx, p)
	if err != nil {
		return RestoreOutput{Payload: p}, fmt.Errorf("create dataset %s: %w", id, err)
	}
	out := RestoreOutput{CreateResult: res, Payload: p}

	children := info.Lineage.DatasetIDs
	if len(children) == 0 {
		children = parser.DatasetLineage(body).DatasetIDs
	}
	children = lo.Without(lo.Uniq(children), id)
	out.Warnings = append(out.Warnings, s.refreshChildren(ctx, id, children)...)
	return out, nil
}

// refreshChildren re-submits each child dataset unchanged so the platform
// regenerates the identifiers the new parent links to. Failures are
// reported per child and never fail the parent.
func (s *datasetStrategy) refreshChildren(ctx context.Context, parentID string, children []string) []string {
	var warnings []string
	log := logging.WithFields(ctx, "kind", asset.KindDataset, "asset_id", parentID)
	for _, child := range children {
		if err := s.refreshChild(ctx, child); err != nil {
			log.Warn("child dataset refresh failed", "child_id", child, "error", err)
			warnings = append(warnings, fmt.Sprintf("child dataset %s not refreshed: %s", child, ClassifyError(err)))
			sideEffectsTotal.WithLabelValues(string(asset.KindDataset), "child-refresh", "failed").Inc()
			continue
		}
		sideEffectsTotal.WithLabelValues(string(asset.KindDataset), "child-refresh", "ok").Inc()
	}
	return warnings
}

func (s *datasetStrategy) refreshChild(ctx context.Context, childID string) error {
	raw, err := s.client.DescribeDataSet(ctx, childID)
	if err != nil {
		return err
	}
	body := gjson.ParseBytes(raw)
	if inner := body.Get("DataSet"); inner.IsObject() {
		body = inner
	}
	if !body.Get("PhysicalTableMap").IsObject() {
		return fmt.Errorf("child dataset %s: describe returned no PhysicalTableMap", childID)
	}
	return s.client.UpdateDataSet(ctx, datasetPayload(childID, body))
}

func (s *datasetStrategy) DeleteExisting(ctx context.Context, id string) error {
	return deleteIgnoringNotFound(ctx, asset.KindDataset, id, s.client.DeleteDataSet)
}

// ValidateDependencies checks the datasources the physical tables read from
// and, for composite datasets, the child datasets.
func (s *datasetStrategy) ValidateDependencies(ctx context.Context, id string, archived *asset.ExportData) []ValidationResult {
	body := definitionDoc(archived, "DataSet")
	if !body.Get("PhysicalTableMap").IsObject() {
		return []ValidationResult{{
			Validator: ValidatorDependencies,
			Passed:    false,
			Message:   "archived dataset has no PhysicalTableMap, dependencies not checked",
			Severity:  SeverityWarning,
		}}
	}
	lineage := parser.DatasetLineage(body)
	results := checkReferences(ctx, asset.KindDatasource, lineage.DatasourceIDs, s.client.DescribeDataSource)
	results = append(results, checkReferences(ctx, asset.KindDataset, lo.Without(lineage.DatasetIDs, id), s.client.DescribeDataSet)...)
	if len(results) == 0 {
		return noDependencies(asset.KindDataset)
	}
	return results
}

func (s *datasetStrategy) Exists(ctx context.Context, id string) (bool, error) {
	return existsVia(ctx, id, s.client.DescribeDataSet)
}

func (s *datasetStrategy) Describe(ctx context.Context, id string) (json.RawMessage, error) {
	return s.client.DescribeDataSet(ctx, id)
}
