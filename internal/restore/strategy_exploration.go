package restore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/parser"
	"github.com/JonMunkholm/assetkeeper/internal/platform"
)

// explorationStrategy restores dashboards and analyses. Both share the
// sheet/visual definition structure and differ only in the platform calls
// and id key.
type explorationStrategy struct {
	kind     asset.Kind
	idKey    string
	wrapper  string
	client   platform.Client
	create   func(context.Context, platform.Payload) (platform.CreateResult, error)
	remove   func(context.Context, string) error
	describe func(context.Context, string) (json.RawMessage, error)
}

func newDashboardStrategy(c platform.Client) *explorationStrategy {
	return &explorationStrategy{
		kind:     asset.KindDashboard,
		idKey:    "DashboardId",
		wrapper:  "Dashboard",
		client:   c,
		create:   c.CreateDashboard,
		remove:   c.DeleteDashboard,
		describe: c.DescribeDashboard,
	}
}

func newAnalysisStrategy(c platform.Client) *explorationStrategy {
	return &explorationStrategy{
		kind:     asset.KindAnalysis,
		idKey:    "AnalysisId",
		wrapper:  "Analysis",
		client:   c,
		create:   c.CreateAnalysis,
		remove:   c.DeleteAnalysis,
		describe: c.DescribeAnalysis,
	}
}

func (s *explorationStrategy) Kind() asset.Kind { return s.kind }

func (s *explorationStrategy) CheckPreconditions(id string, archived *asset.ExportData) error {
	if !definitionDoc(archived, "").Get("Definition").IsObject() {
		return &PreconditionError{Kind: s.kind, ID: id, Component: "Definition"}
	}
	return nil
}

func (s *explorationStrategy) Restore(ctx context.Context, id string, archived *asset.ExportData, _ parser.ParsedAssetInfo) (RestoreOutput, error) {
	if err := s.CheckPreconditions(id, archived); err != nil {
		return RestoreOutput{}, err
	}
	doc := definitionDoc(archived, "")
	def := doc.Get("Definition")

	described := describeDoc(archived, s.wrapper)
	p := platform.Payload{
		s.idKey:      id,
		"Name":       firstNonEmpty(doc.Get("Name").String(), described.Get("Name").String(), id),
		"Definition": json.RawMessage(def.Raw),
	}
	if theme := firstNonEmpty(
		doc.Get("ThemeArn").String(),
		described.Get("Version.ThemeArn").String(),
		described.Get("ThemeArn").String(),
	); theme != "" {
		p["ThemeArn"] = theme
	}
	if s.kind == asset.KindDashboard {
		copyRaw(p, doc, "DashboardPublishOptions")
	}
	withAccess(p, archived)

	res, err := s.create(ctx, p)
	if err != nil {
		return RestoreOutput{Payload: p}, fmt.Errorf("create %s %s: %w", s.kind, id, err)
	}
	return RestoreOutput{CreateResult: res, Payload: p}, nil
}

func (s *explorationStrategy) DeleteExisting(ctx context.Context, id string) error {
	return deleteIgnoringNotFound(ctx, s.kind, id, s.remove)
}

// ValidateDependencies checks that every dataset the definition declares
// exists.
func (s *explorationStrategy) ValidateDependencies(ctx context.Context, _ string, archived *asset.ExportData) []ValidationResult {
	raw, ok := archived.DefinitionDocument()
	if !ok || !gjson.GetBytes(raw, "Definition").IsObject() {
		return []ValidationResult{{
			Validator: ValidatorDependencies,
			Passed:    false,
			Message:   fmt.Sprintf("archived %s has no definition, dataset references not checked", s.kind),
			Severity:  SeverityWarning,
		}}
	}
	ids := parser.For(s.kind).Parse(raw).Lineage.DatasetIDs
	if len(ids) == 0 {
		return []ValidationResult{{
			Validator: ValidatorDependencies,
			Passed:    true,
			Message:   fmt.Sprintf("%s references no datasets", s.kind),
			Severity:  SeverityInfo,
		}}
	}
	return checkReferences(ctx, asset.KindDataset, ids, s.client.DescribeDataSet)
}

func (s *explorationStrategy) Exists(ctx context.Context, id string) (bool, error) {
	return existsVia(ctx, id, s.describe)
}

func (s *explorationStrategy) Describe(ctx context.Context, id string) (json.RawMessage, error) {
	return s.describe(ctx, id)
}
