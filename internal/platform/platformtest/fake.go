// Package platformtest provides an in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/JonMunkholm/assetkeeper/internal/platform"
)

// Resource names accepted by Seed and Has.
const (
	Dashboard  = "dashboard"
	Analysis   = "analysis"
	Dataset    = "dataset"
	Datasource = "datasource"
	Folder     = "folder"
	Group      = "group"
)

var wrappers = map[string]string{
	Dashboard:  "Dashboard",
	Analysis:   "Analysis",
	Dataset:    "DataSet",
	Datasource: "DataSource",
	Folder:     "Folder",
	Group:      "Group",
}

// Call is one recorded client invocation.
type Call struct {
	Method string
	ID     string
}

// Fake stores created assets in memory and records every call. Errors can be
// injected per method or per (method, id).
type Fake struct {
	mu       sync.Mutex
	assets   map[string]map[string]json.RawMessage
	calls    []Call
	payloads map[string][]platform.Payload
	errs     map[string]error
	errsFor  map[string]error
}

var _ platform.Client = (*Fake)(nil)

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		assets:   make(map[string]map[string]json.RawMessage),
		payloads: make(map[string][]platform.Payload),
		errs:     make(map[string]error),
		errsFor:  make(map[string]error),
	}
}

// Seed stores describe as the live body of resource id.
func (f *Fake) Seed(resource, id string, describe json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.assets[resource] == nil {
		f.assets[resource] = make(map[string]json.RawMessage)
	}
	f.assets[resource][id] = describe
}

// Has reports whether resource id exists.
func (f *Fake) Has(resource, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.assets[resource][id]
	return ok
}

// Fail makes every call to method return err.
func (f *Fake) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = err
}

// FailFor makes calls to method for id return err.
func (f *Fake) FailFor(method, id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errsFor[method+"/"+id] = err
}

// Calls returns every recorded call.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded calls of method.
func (f *Fake) CallsTo(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Payloads returns the payloads sent to method, in call order.
func (f *Fake) Payloads(method string) []platform.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Payload(nil), f.payloads[method]...)
}

// record logs the call and returns the injected error, if any.
func (f *Fake) record(method, id string, p platform.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Method: method, ID: id})
	if p != nil {
		f.payloads[method] = append(f.payloads[method], p)
	}
	if err, ok := f.errsFor[method+"/"+id]; ok {
		return err
	}
	return f.errs[method]
}

func arn(resource, id string) string {
	if resource == Group {
		return fmt.Sprintf("arn:aws:quicksight:us-east-1:111122223333:group/default/%s", id)
	}
	return fmt.Sprintf("arn:aws:quicksight:us-east-1:111122223333:%s/%s", resource, id)
}

func (f *Fake) create(method, resource, idKey string, in platform.Payload) (platform.CreateResult, error) {
	id, _ := in[idKey].(string)
	if err := f.record(method, id, in); err != nil {
		return platform.CreateResult{}, err
	}
	if id == "" {
		return platform.CreateResult{}, fmt.Errorf("InvalidParameterValueException: %s is required", idKey)
	}

	body, err := json.Marshal(map[string]any{wrappers[resource]: in})
	if err != nil {
		return platform.CreateResult{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.assets[resource][id]; exists {
		return platform.CreateResult{}, fmt.Errorf("ResourceExistsException: %s %s already exists", resource, id)
	}
	if f.assets[resource] == nil {
		f.assets[resource] = make(map[string]json.RawMessage)
	}
	f.assets[resource][id] = body
	return platform.CreateResult{
		Arn:       arn(resource, id),
		ID:        id,
		Status:    "CREATION_SUCCESSFUL",
		RequestID: "req-" + id,
	}, nil
}

func (f *Fake) remove(method, resource, id string) error {
	if err := f.record(method, id, nil); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.assets[resource][id]; !ok {
		return fmt.Errorf("%w: %s %s", platform.ErrNotFound, resource, id)
	}
	delete(f.assets[resource], id)
	return nil
}

func (f *Fake) describe(method, resource, id string) (json.RawMessage, error) {
	if err := f.record(method, id, nil); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.assets[resource][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", platform.ErrNotFound, resource, id)
	}
	return body, nil
}

func (f *Fake) CreateDashboard(_ context.Context, in platform.Payload) (platform.CreateResult, error) {
	return f.create("CreateDashboard", Dashboard, "DashboardId", in)
}

func (f *Fake) DeleteDashboard(_ context.Context, id string) error {
	return f.remove("DeleteDashboard", Dashboard, id)
}

func (f *Fake) DescribeDashboard(_ context.Context, id string) (json.RawMessage, error) {
	return f.describe("DescribeDashboard", Dashboard, id)
}

func (f *Fake) CreateAnalysis(_ context.Context, in platform.Payload) (platform.CreateResult, error) {
	return f.create("CreateAnalysis", Analysis, "AnalysisId", in)
}

func (f *Fake) DeleteAnalysis(_ context.Context, id string) error {
	return f.remove("DeleteAnalysis", Analysis, id)
}

func (f *Fake) DescribeAnalysis(_ context.Context, id string) (json.RawMessage, error) {
	return f.describe("DescribeAnalysis", Analysis, id)
}

func (f *Fake) CreateDataSet(_ context.Context, in platform.Payload) (platform.CreateResult, error) {
	return f.create("CreateDataSet", Dataset, "DataSetId", in)
}

func (f *Fake) UpdateDataSet(_ context.Context, in platform.Payload) error {
	id, _ := in["DataSetId"].(string)
	if err := f.record("UpdateDataSet", id, in); err != nil {
		return err
	}
	if !f.Has(Dataset, id) {
		return fmt.Errorf("%w: %s %s", platform.ErrNotFound, Dataset, id)
	}
	return nil
}

func (f *Fake) DeleteDataSet(_ context.Context, id string) error {
	return f.remove("DeleteDataSet", Dataset, id)
}

func (f *Fake) DescribeDataSet(_ context.Context, id string) (json.RawMessage, error) {
	return f.describe("DescribeDataSet", Dataset, id)
}

func (f *Fake) CreateDataSource(_ context.Context, in platform.Payload) (platform.CreateResult, error) {
	return f.create("CreateDataSource", Datasource, "DataSourceId", in)
}

func (f *Fake) DeleteDataSource(_ context.Context, id string) error {
	return f.remove("DeleteDataSource", Datasource, id)
}

func (f *Fake) DescribeDataSource(_ context.Context, id string) (json.RawMessage, error) {
	return f.describe("DescribeDataSource", Datasource, id)
}

func (f *Fake) CreateFolder(_ context.Context, in platform.Payload) (platform.CreateResult, error) {
	return f.create("CreateFolder", Folder, "FolderId", in)
}

func (f *Fake) DeleteFolder(_ context.Context, id string) error {
	return f.remove("DeleteFolder", Folder, id)
}

func (f *Fake) DescribeFolder(_ context.Context, id string) (json.RawMessage, error) {
	return f.describe("DescribeFolder", Folder, id)
}

func (f *Fake) CreateGroup(_ context.Context, in platform.Payload) (platform.CreateResult, error) {
	return f.create("CreateGroup", Group, "GroupName", in)
}

func (f *Fake) DeleteGroup(_ context.Context, name string) error {
	return f.remove("DeleteGroup", Group, name)
}

func (f *Fake) DescribeGroup(_ context.Context, name string) (json.RawMessage, error) {
	return f.describe("DescribeGroup", Group, name)
}

func (f *Fake) CreateRefreshSchedule(_ context.Context, datasetID string, schedule platform.Payload) error {
	return f.record("CreateRefreshSchedule", datasetID, schedule)
}

func (f *Fake) PutDataSetRefreshProperties(_ context.Context, datasetID string, props platform.Payload) error {
	return f.record("PutDataSetRefreshProperties", datasetID, props)
}

func (f *Fake) CreateFolderMembership(_ context.Context, folderID, memberID, memberType string) error {
	return f.record("CreateFolderMembership", folderID+"/"+memberID, platform.Payload{
		"FolderId":   folderID,
		"MemberId":   memberID,
		"MemberType": memberType,
	})
}

func (f *Fake) CreateGroupMembership(_ context.Context, groupName, memberName string) error {
	return f.record("CreateGroupMembership", groupName+"/"+memberName, nil)
}
