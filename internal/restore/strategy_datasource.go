package restore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/parser"
	"github.com/JonMunkholm/assetkeeper/internal/platform"
)

// credentialFreeTypes authenticate through the service role and need no
// secret on recreate.
var credentialFreeTypes = map[string]bool{
	"ATHENA":            true,
	"S3":                true,
	"AWS_IOT_ANALYTICS": true,
	"TIMESTREAM":        true,
}

type datasourceStrategy struct {
	client platform.Client
}

func newDatasourceStrategy(c platform.Client) *datasourceStrategy {
	return &datasourceStrategy{client: c}
}

func (s *datasourceStrategy) Kind() asset.Kind { return asset.KindDatasource }

func (s *datasourceStrategy) CheckPreconditions(id string, archived *asset.ExportData) error {
	body := definitionDoc(archived, "DataSource")
	if body.Get("Type").String() == "" {
		return &PreconditionError{Kind: asset.KindDatasource, ID: id, Component: "Type"}
	}
	if !body.Get("DataSourceParameters").IsObject() {
		return &PreconditionError{Kind: asset.KindDatasource, ID: id, Component: "DataSourceParameters"}
	}
	return nil
}

func (s *datasourceStrategy) Restore(ctx context.Context, id string, archived *asset.ExportData, _ parser.ParsedAssetInfo) (RestoreOutput, error) {
	if err := s.CheckPreconditions(id, archived); err != nil {
		return RestoreOutput{}, err
	}
	body := definitionDoc(archived, "DataSource")
	typ := body.Get("Type").String()
	params := body.Get("DataSourceParameters")

	p := platform.Payload{
		"DataSourceId":         id,
		"Name":                 firstNonEmpty(body.Get("Name").String(), id),
		"Type":                 typ,
		"DataSourceParameters": json.RawMessage(params.Raw),
	}
	copyRaw(p, body, "VpcConnectionProperties", "SslProperties")
	withAccess(p, archived)

	res, err := s.client.CreateDataSource(ctx, p)
	if err != nil {
		return RestoreOutput{Payload: p}, fmt.Errorf("create datasource %s: %w", id, err)
	}
	out := RestoreOutput{CreateResult: res, Payload: p}
	if !credentialFreeTypes[typ] {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("datasource %s (%s) was created without credentials; update them on the platform before use", id, typ))
	}
	return out, nil
}

func (s *datasourceStrategy) DeleteExisting(ctx context.Context, id string) error {
	return deleteIgnoringNotFound(ctx, asset.KindDatasource, id, s.client.DeleteDataSource)
}

func (s *datasourceStrategy) ValidateDependencies(context.Context, string, *asset.ExportData) []ValidationResult {
	return noDependencies(asset.KindDatasource)
}

func (s *datasourceStrategy) Exists(ctx context.Context, id string) (bool, error) {
	return existsVia(ctx, id, s.client.DescribeDataSource)
}

func (s *datasourceStrategy) Describe(ctx context.Context, id string) (json.RawMessage, error) {
	return s.client.DescribeDataSource(ctx, id)
}
