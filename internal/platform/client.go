// Package platform defines the contract the restore core uses to talk to the
// BI platform, and its Amazon QuickSight implementation.
//
// Payloads are loosely typed maps keyed by the platform's API member names
// (DashboardId, Definition, PhysicalTableMap, ...). Describe calls return the
// raw JSON response so callers can read it with the same defensive accessors
// used for archived documents.
package platform

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is wrapped by every client error that means the requested
// resource does not exist.
var ErrNotFound = errors.New("resource not found")

// IsNotFound reports whether err signals a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Payload is a create or update request body.
type Payload map[string]any

// CreateResult is the subset of a create response the restore core keeps.
type CreateResult struct {
	Arn       string `json:"arn,omitempty"`
	ID        string `json:"id,omitempty"`
	Status    string `json:"status,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Client is the BI platform surface used by restore strategies.
type Client interface {
	CreateDashboard(ctx context.Context, in Payload) (CreateResult, error)
	DeleteDashboard(ctx context.Context, id string) error
	DescribeDashboard(ctx context.Context, id string) (json.RawMessage, error)

	CreateAnalysis(ctx context.Context, in Payload) (CreateResult, error)
	DeleteAnalysis(ctx context.Context, id string) error
	DescribeAnalysis(ctx context.Context, id string) (json.RawMessage, error)

	CreateDataSet(ctx context.Context, in Payload) (CreateResult, error)
	UpdateDataSet(ctx context.Context, in Payload) error
	DeleteDataSet(ctx context.Context, id string) error
	DescribeDataSet(ctx context.Context, id string) (json.RawMessage, error)

	CreateDataSource(ctx context.Context, in Payload) (CreateResult, error)
	DeleteDataSource(ctx context.Context, id string) error
	DescribeDataSource(ctx context.Context, id string) (json.RawMessage, error)

	CreateFolder(ctx context.Context, in Payload) (CreateResult, error)
	DeleteFolder(ctx context.Context, id string) error
	DescribeFolder(ctx context.Context, id string) (json.RawMessage, error)

	CreateGroup(ctx context.Context, in Payload) (CreateResult, error)
	DeleteGroup(ctx context.Context, name string) error
	DescribeGroup(ctx context.Context, name string) (json.RawMessage, error)

	CreateRefreshSchedule(ctx context.Context, datasetID string, schedule Payload) error
	PutDataSetRefreshProperties(ctx context.Context, datasetID string, props Payload) error
	CreateFolderMembership(ctx context.Context, folderID, memberID, memberType string) error
	CreateGroupMembership(ctx context.Context, groupName, memberName string) error
}
