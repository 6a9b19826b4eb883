package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/quicksight"
	"github.com/aws/aws-sdk-go/service/quicksight/quicksightiface"
)

// QuickSightConfig holds connection settings for NewQuickSightFromConfig.
type QuickSightConfig struct {
	Region          string
	AccountID       string
	Namespace       string
	AccessKeyID     string
	SecretAccessKey string
}

// QuickSight implements Client on the aws-sdk-go QuickSight API.
type QuickSight struct {
	api       quicksightiface.QuickSightAPI
	accountID string
	namespace string
}

// NewQuickSight wraps an existing API client.
func NewQuickSight(api quicksightiface.QuickSightAPI, accountID, namespace string) *QuickSight {
	if namespace == "" {
		namespace = "default"
	}
	return &QuickSight{api: api, accountID: accountID, namespace: namespace}
}

// NewQuickSightFromConfig creates a session using the default credential
// chain, overridden by static keys when both are set.
func NewQuickSightFromConfig(cfg QuickSightConfig) (*QuickSight, error) {
	if cfg.AccountID == "" {
		return nil, errors.New("quicksight: account id is required")
	}
	sess, err := session.NewSession()
	if err != nil {
		return nil, fmt.Errorf("quicksight session: %w", err)
	}

	config := aws.NewConfig()
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		config = config.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""))
	}
	if cfg.Region != "" {
		config = config.WithRegion(cfg.Region)
	}
	return NewQuickSight(quicksight.New(sess, config), cfg.AccountID, cfg.Namespace), nil
}

// decode converts a payload into a typed SDK input. SDK structs carry no json
// tags, so member names match exported field names.
func decode(in Payload, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode payload into %T: %w", out, err)
	}
	return nil
}

// wrapErr maps SDK not-found failures onto ErrNotFound.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var notFound *quicksight.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%s: %w: %s", op, ErrNotFound, notFound.Message())
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == quicksight.ErrCodeResourceNotFoundException {
		return fmt.Errorf("%s: %w: %s", op, ErrNotFound, aerr.Message())
	}
	return fmt.Errorf("%s: %w", op, err)
}

func describe(op string, out any, err error) (json.RawMessage, error) {
	if err != nil {
		return nil, wrapErr(op, err)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("%s: encode response: %w", op, err)
	}
	return raw, nil
}

func result(arn, id, requestID *string, status *int64) CreateResult {
	r := CreateResult{
		Arn:       aws.StringValue(arn),
		ID:        aws.StringValue(id),
		RequestID: aws.StringValue(requestID),
	}
	if status != nil {
		r.Status = fmt.Sprint(*status)
	}
	return r
}

// Dashboards

func (q *QuickSight) CreateDashboard(ctx context.Context, in Payload) (CreateResult, error) {
	var input quicksight.CreateDashboardInput
	if err := decode(in, &input); err != nil {
		return CreateResult{}, err
	}
	input.AwsAccountId = aws.String(q.accountID)
	out, err := q.api.CreateDashboardWithContext(ctx, &input)
	if err != nil {
		return CreateResult{}, wrapErr("create dashboard", err)
	}
	return result(out.Arn, out.DashboardId, out.RequestId, out.Status), nil
}

func (q *QuickSight) DeleteDashboard(ctx context.Context, id string) error {
	_, err := q.api.DeleteDashboardWithContext(ctx, &quicksight.DeleteDashboardInput{
		AwsAccountId: aws.String(q.accountID),
		DashboardId:  aws.String(id),
	})
	return wrapErr("delete dashboard", err)
}

func (q *QuickSight) DescribeDashboard(ctx context.Context, id string) (json.RawMessage, error) {
	out, err := q.api.DescribeDashboardWithContext(ctx, &quicksight.DescribeDashboardInput{
		AwsAccountId: aws.String(q.accountID),
		DashboardId:  aws.String(id),
	})
	return describe("describe dashboard", out, err)
}

// Analyses

func (q *QuickSight) CreateAnalysis(ctx context.Context, in Payload) (CreateResult, error) {
	var input quicksight.CreateAnalysisInput
	if err := decode(in, &input); err != nil {
		return CreateResult{}, err
	}
	input.AwsAccountId = aws.String(q.accountID)
	out, err := q.api.CreateAnalysisWithContext(ctx, &input)
	if err != nil {
		return CreateResult{}, wrapErr("create analysis", err)
	}
	return result(out.Arn, out.AnalysisId, out.RequestId, out.Status), nil
}

// DeleteAnalysis skips the recovery window so the id can be reused at once.
func (q *QuickSight) DeleteAnalysis(ctx context.Context, id string) error {
	_, err := q.api.DeleteAnalysisWithContext(ctx, &quicksight.DeleteAnalysisInput{
		AwsAccountId:               aws.String(q.accountID),
		AnalysisId:                 aws.String(id),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	return wrapErr("delete analysis", err)
}

func (q *QuickSight) DescribeAnalysis(ctx context.Context, id string) (json.RawMessage, error) {
	out, err := q.api.DescribeAnalysisWithContext(ctx, &quicksight.DescribeAnalysisInput{
		AwsAccountId: aws.String(q.accountID),
		AnalysisId:   aws.String(id),
	})
	return describe("describe analysis", out, err)
}

// Datasets

func (q *QuickSight) CreateDataSet(ctx context.Context, in Payload) (CreateResult, error) {
	var input quicksight.CreateDataSetInput
	if err := decode(in, &input); err != nil {
		return CreateResult{}, err
	}
	input.AwsAccountId = aws.String(q.accountID)
	out, err := q.api.CreateDataSetWithContext(ctx, &input)
	if err != nil {
		return CreateResult{}, wrapErr("create dataset", err)
	}
	return result(out.Arn, out.DataSetId, out.RequestId, out.Status), nil
}

func (q *QuickSight) UpdateDataSet(ctx context.Context, in Payload) error {
	var input quicksight.UpdateDataSetInput
	if err := decode(in, &input); err != nil {
		return err
	}
	input.AwsAccountId = aws.String(q.accountID)
	_, err := q.api.UpdateDataSetWithContext(ctx, &input)
	return wrapErr("update dataset", err)
}

func (q *QuickSight) DeleteDataSet(ctx context.Context, id string) error {
	_, err := q.api.DeleteDataSetWithContext(ctx, &quicksight.DeleteDataSetInput{
		AwsAccountId: aws.String(q.accountID),
		DataSetId:    aws.String(id),
	})
	return wrapErr("delete dataset", err)
}

func (q *QuickSight) DescribeDataSet(ctx context.Context, id string) (json.RawMessage, error) {
	out, err := q.api.DescribeDataSetWithContext(ctx, &quicksight.DescribeDataSetInput{
		AwsAccountId: aws.String(q.accountID),
		DataSetId:    aws.String(id),
	})
	return describe("describe dataset", out, err)
}

// Datasources

func (q *QuickSight) CreateDataSource(ctx context.Context, in Payload) (CreateResult, error) {
	var input quicksight.CreateDataSourceInput
	if err := decode(in, &input); err != nil {
		return CreateResult{}, err
	}
	input.AwsAccountId = aws.String(q.accountID)
	out, err := q.api.CreateDataSourceWithContext(ctx, &input)
	if err != nil {
		return CreateResult{}, wrapErr("create datasource", err)
	}
	return result(out.Arn, out.DataSourceId, out.RequestId, out.Status), nil
}

func (q *QuickSight) DeleteDataSource(ctx context.Context, id string) error {
	_, err := q.api.DeleteDataSourceWithContext(ctx, &quicksight.DeleteDataSourceInput{
		AwsAccountId: aws.String(q.accountID),
		DataSourceId: aws.String(id),
	})
	return wrapErr("delete datasource", err)
}

func (q *QuickSight) DescribeDataSource(ctx context.Context, id string) (json.RawMessage, error) {
	out, err := q.api.DescribeDataSourceWithContext(ctx, &quicksight.DescribeDataSourceInput{
		AwsAccountId: aws.String(q.accountID),
		DataSourceId: aws.String(id),
	})
	return describe("describe datasource", out, err)
}

// Folders

func (q *QuickSight) CreateFolder(ctx context.Context, in Payload) (CreateResult, error) {
	var input quicksight.CreateFolderInput
	if err := decode(in, &input); err != nil {
		return CreateResult{}, err
	}
	input.AwsAccountId = aws.String(q.accountID)
	out, err := q.api.CreateFolderWithContext(ctx, &input)
	if err != nil {
		return CreateResult{}, wrapErr("create folder", err)
	}
	return result(out.Arn, out.FolderId, out.RequestId, out.Status), nil
}

func (q *QuickSight) DeleteFolder(ctx context.Context, id string) error {
	_, err := q.api.DeleteFolderWithContext(ctx, &quicksight.DeleteFolderInput{
		AwsAccountId: aws.String(q.accountID),
		FolderId:     aws.String(id),
	})
	return wrapErr("delete folder", err)
}

func (q *QuickSight) DescribeFolder(ctx context.Context, id string) (json.RawMessage, error) {
	out, err := q.api.DescribeFolderWithContext(ctx, &quicksight.DescribeFolderInput{
		AwsAccountId: aws.String(q.accountID),
		FolderId:     aws.String(id),
	})
	return describe("describe folder", out, err)
}

// Groups

func (q *QuickSight) CreateGroup(ctx context.Context, in Payload) (CreateResult, error) {
	var input quicksight.CreateGroupInput
	if err := decode(in, &input); err != nil {
		return CreateResult{}, err
	}
	input.AwsAccountId = aws.String(q.accountID)
	input.Namespace = aws.String(q.namespace)
	out, err := q.api.CreateGroupWithContext(ctx, &input)
	if err != nil {
		return CreateResult{}, wrapErr("create group", err)
	}
	r := result(nil, input.GroupName, out.RequestId, out.Status)
	if out.Group != nil {
		r.Arn = aws.StringValue(out.Group.Arn)
	}
	return r, nil
}

func (q *QuickSight) DeleteGroup(ctx context.Context, name string) error {
	_, err := q.api.DeleteGroupWithContext(ctx, &quicksight.DeleteGroupInput{
		AwsAccountId: aws.String(q.accountID),
		GroupName:    aws.String(name),
		Namespace:    aws.String(q.namespace),
	})
	return wrapErr("delete group", err)
}

func (q *QuickSight) DescribeGroup(ctx context.Context, name string) (json.RawMessage, error) {
	out, err := q.api.DescribeGroupWithContext(ctx, &quicksight.DescribeGroupInput{
		AwsAccountId: aws.String(q.accountID),
		GroupName:    aws.String(name),
		Namespace:    aws.String(q.namespace),
	})
	return describe("describe group", out, err)
}

// Side effects

func (q *QuickSight) CreateRefreshSchedule(ctx context.Context, datasetID string, schedule Payload) error {
	var s quicksight.RefreshSchedule
	if err := decode(schedule, &s); err != nil {
		return err
	}
	_, err := q.api.CreateRefreshScheduleWithContext(ctx, &quicksight.CreateRefreshScheduleInput{
		AwsAccountId: aws.String(q.accountID),
		DataSetId:    aws.String(datasetID),
		Schedule:     &s,
	})
	return wrapErr("create refresh schedule", err)
}

func (q *QuickSight) PutDataSetRefreshProperties(ctx context.Context, datasetID string, props Payload) error {
	var p quicksight.DataSetRefreshProperties
	if err := decode(props, &p); err != nil {
		return err
	}
	_, err := q.api.PutDataSetRefreshPropertiesWithContext(ctx, &quicksight.PutDataSetRefreshPropertiesInput{
		AwsAccountId:             aws.String(q.accountID),
		DataSetId:                aws.String(datasetID),
		DataSetRefreshProperties: &p,
	})
	return wrapErr("put dataset refresh properties", err)
}

func (q *QuickSight) CreateFolderMembership(ctx context.Context, folderID, memberID, memberType string) error {
	_, err := q.api.CreateFolderMembershipWithContext(ctx, &quicksight.CreateFolderMembershipInput{
		AwsAccountId: aws.String(q.accountID),
		FolderId:     aws.String(folderID),
		MemberId:     aws.String(memberID),
		MemberType:   aws.String(memberType),
	})
	return wrapErr("create folder membership", err)
}

func (q *QuickSight) CreateGroupMembership(ctx context.Context, groupName, memberName string) error {
	_, err := q.api.CreateGroupMembershipWithContext(ctx, &quicksight.CreateGroupMembershipInput{
		AwsAccountId: aws.String(q.accountID),
		GroupName:    aws.String(groupName),
		MemberName:   aws.String(memberName),
		Namespace:    aws.String(q.namespace),
	})
	return wrapErr("create group membership", err)
}
