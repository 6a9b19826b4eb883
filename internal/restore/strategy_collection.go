package restore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/parser"
	"github.com/JonMunkholm/assetkeeper/internal/platform"
)

type folderStrategy struct {
	client platform.Client
}

func newFolderStrategy(c platform.Client) *folderStrategy {
	return &folderStrategy{client: c}
}

func (s *folderStrategy) Kind() asset.Kind { return asset.KindFolder }

func (s *folderStrategy) CheckPreconditions(id string, archived *asset.ExportData) error {
	if definitionDoc(archived, "Folder").Get("Name").String() == "" {
		return &PreconditionError{Kind: asset.KindFolder, ID: id, Component: "Name"}
	}
	return nil
}

func (s *folderStrategy) Restore(ctx context.Context, id string, archived *asset.ExportData, _ parser.ParsedAssetInfo) (RestoreOutput, error) {
	if err := s.CheckPreconditions(id, archived); err != nil {
		return RestoreOutput{}, err
	}
	body := definitionDoc(archived, "Folder")

	p := platform.Payload{
		"FolderId": id,
		"Name":     body.Get("Name").String(),
	}
	copyRaw(p, body, "FolderType", "ParentFolderArn", "SharingModel")
	withAccess(p, archived)

	res, err := s.client.CreateFolder(ctx, p)
	if err != nil {
		return RestoreOutput{Payload: p}, fmt.Errorf("create folder %s: %w", id, err)
	}
	return RestoreOutput{CreateResult: res, Payload: p}, nil
}

func (s *folderStrategy) DeleteExisting(ctx context.Context, id string) error {
	return deleteIgnoringNotFound(ctx, asset.KindFolder, id, s.client.DeleteFolder)
}

// ValidateDependencies checks that a nested folder's parent exists.
func (s *folderStrategy) ValidateDependencies(ctx context.Context, _ string, archived *asset.ExportData) []ValidationResult {
	parent := definitionDoc(archived, "Folder").Get("ParentFolderArn").String()
	if parent == "" {
		return noDependencies(asset.KindFolder)
	}
	return checkReferences(ctx, asset.KindFolder, []string{parser.ArnID(parent)}, s.client.DescribeFolder)
}

func (s *folderStrategy) Exists(ctx context.Context, id string) (bool, error) {
	return existsVia(ctx, id, s.client.DescribeFolder)
}

func (s *folderStrategy) Describe(ctx context.Context, id string) (json.RawMessage, error) {
	return s.client.DescribeFolder(ctx, id)
}

// groupStrategy restores a group by name. Groups carry no resource
// permissions or tags; members are restored as a side effect.
type groupStrategy struct {
	client platform.Client
}

func newGroupStrategy(c platform.Client) *groupStrategy {
	return &groupStrategy{client: c}
}

func (s *groupStrategy) Kind() asset.Kind { return asset.KindGroup }

func (s *groupStrategy) CheckPreconditions(id string, archived *asset.ExportData) error {
	if definitionDoc(archived, "Group").Get("GroupName").String() == "" {
		return &PreconditionError{Kind: asset.KindGroup, ID: id, Component: "GroupName"}
	}
	return nil
}

func (s *groupStrategy) Restore(ctx context.Context, id string, archived *asset.ExportData, _ parser.ParsedAssetInfo) (RestoreOutput, error) {
	if err := s.CheckPreconditions(id, archived); err != nil {
		return RestoreOutput{}, err
	}
	body := definitionDoc(archived, "Group")

	p := platform.Payload{"GroupName": id}
	copyRaw(p, body, "Description")

	res, err := s.client.CreateGroup(ctx, p)
	if err != nil {
		return RestoreOutput{Payload: p}, fmt.Errorf("create group %s: %w", id, err)
	}
	return RestoreOutput{CreateResult: res, Payload: p}, nil
}

func (s *groupStrategy) DeleteExisting(ctx context.Context, id string) error {
	return deleteIgnoringNotFound(ctx, asset.KindGroup, id, s.client.DeleteGroup)
}

func (s *groupStrategy) ValidateDependencies(context.Context, string, *asset.ExportData) []ValidationResult {
	return noDependencies(asset.KindGroup)
}

func (s *groupStrategy) Exists(ctx context.Context, id string) (bool, error) {
	return existsVia(ctx, id, s.client.DescribeGroup)
}

func (s *groupStrategy) Describe(ctx context.Context, id string) (json.RawMessage, error) {
	return s.client.DescribeGroup(ctx, id)
}
