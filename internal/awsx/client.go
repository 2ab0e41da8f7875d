// Package awsx implements the external collaborators over the AWS SDK: the
// CloudWatch metric source and the DynamoDB table catalog.
package awsx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avast/retry-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"

	"github.com/wesleyorama2/dynosweep/internal/collector"
)

const metricNamespace = "AWS/DynamoDB"

// Options selects the credential chain and region for one client.
type Options struct {
	Region  string
	Profile string

	// UseInstanceProfile forces the default chain (EC2 instance metadata)
	// even when a profile name is configured.
	UseInstanceProfile bool

	// RetryAttempts bounds retries of throttled CloudWatch calls. Zero
	// means 4. Retries live here, in the source's client; the collection
	// core never retries a job.
	RetryAttempts uint
}

// Client is a region-bound AWS client implementing both
// collector.MetricSource and collector.TableCatalog.
type Client struct {
	cw            *cloudwatch.Client
	ddb           *dynamodb.Client
	region        string
	retryAttempts uint
}

// New loads the configured credential chain, verifies it with an STS
// GetCallerIdentity probe, and returns a client for the region.
func New(ctx context.Context, opts Options) (*Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.Profile != "" && !opts.UseInstanceProfile {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "loading AWS config for region %s", opts.Region)
	}

	if _, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		return nil, errors.Wrap(err, "verifying AWS credentials")
	}

	attempts := opts.RetryAttempts
	if attempts == 0 {
		attempts = 4
	}
	return &Client{
		cw:            cloudwatch.NewFromConfig(cfg),
		ddb:           dynamodb.NewFromConfig(cfg),
		region:        opts.Region,
		retryAttempts: attempts,
	}, nil
}

// Region returns the client's region.
func (c *Client) Region() string { return c.region }

// GetStatistics fetches one slice's statistics from CloudWatch.
//
// Metric naming policy: every operation's metric is <Operation>Latency in
// the AWS/DynamoDB namespace with TableName and Operation dimensions.
// SampleCount of that metric counts requests; P99 uses the p99 extended
// statistic. (Legacy script variants sometimes requested
// SuccessfulRequestLatency for writes; that divergence is not preserved.)
func (c *Client) GetStatistics(ctx context.Context, req collector.StatisticsRequest) (*collector.StatisticsResult, error) {
	input := &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(metricNamespace),
		MetricName: aws.String(string(req.Operation) + "Latency"),
		StartTime:  aws.Time(req.Start),
		EndTime:    aws.Time(req.End),
		Period:     aws.Int32(req.Period),
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String("TableName"), Value: aws.String(req.Table)},
			{Name: aws.String("Operation"), Value: aws.String(string(req.Operation))},
		},
	}
	switch req.Metric {
	case collector.MetricSampleCount:
		input.Statistics = []cwtypes.Statistic{cwtypes.StatisticSampleCount}
	case collector.MetricP99Latency:
		input.ExtendedStatistics = []string{"p99"}
	default:
		return nil, errors.Errorf("unknown metric kind %q", req.Metric)
	}

	var out *cloudwatch.GetMetricStatisticsOutput
	err := retry.Do(
		func() error {
			var err error
			out, err = c.cw.GetMetricStatistics(ctx, input)
			return err
		},
		retry.Attempts(c.retryAttempts),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isThrottled),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "GetMetricStatistics %s/%s", req.Table, req.Operation)
	}

	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encoding statistics response")
	}
	return &collector.StatisticsResult{
		Label:      aws.ToString(out.Label),
		Datapoints: len(out.Datapoints),
		Raw:        raw,
	}, nil
}

// ListTables returns every table name in the region, following pagination.
func (c *Client) ListTables(ctx context.Context) ([]string, error) {
	var tables []string
	var exclusiveStart *string
	for {
		out, err := c.ddb.ListTables(ctx, &dynamodb.ListTablesInput{
			ExclusiveStartTableName: exclusiveStart,
		})
		if err != nil {
			return nil, errors.Wrap(err, "listing tables")
		}
		tables = append(tables, out.TableNames...)
		if out.LastEvaluatedTableName == nil {
			return tables, nil
		}
		exclusiveStart = out.LastEvaluatedTableName
	}
}

// Describe returns the catalog facts for one table.
func (c *Client) Describe(ctx context.Context, table string) (collector.TableInfo, error) {
	out, err := c.ddb.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	})
	if err != nil {
		return collector.TableInfo{}, errors.Wrapf(err, "describing table %s", table)
	}
	info := collector.TableInfo{Name: table}
	if out.Table != nil && out.Table.CreationDateTime != nil {
		info.CreationTime = *out.Table.CreationDateTime
	}
	return info, nil
}

// DefaultRegion resolves the region of the ambient credential chain, for
// runs that specify none.
func DefaultRegion(ctx context.Context) (string, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", errors.Wrap(err, "loading default AWS config")
	}
	if cfg.Region == "" {
		return "", errors.New("no default region configured")
	}
	return cfg.Region, nil
}

// isThrottled reports whether err is a CloudWatch rate-limit rejection.
func isThrottled(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "Throttling", "ThrottlingException", "RequestLimitExceeded", "TooManyRequestsException":
		return true
	}
	return false
}
