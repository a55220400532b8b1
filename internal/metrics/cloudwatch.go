package metrics

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// DefaultNamespace is the CloudWatch namespace the pipeline publishes under.
const DefaultNamespace = "EcoMonitor/DataPipeline"

// CloudWatchAPI is the subset of the CloudWatch client the sink uses.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchSink publishes each datum as a custom metric.
type CloudWatchSink struct {
	client    CloudWatchAPI
	namespace string
}

func NewCloudWatchSink(client CloudWatchAPI, namespace string) *CloudWatchSink {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CloudWatchSink{client: client, namespace: namespace}
}

func (s *CloudWatchSink) Type() string { return "cloudwatch" }

func (s *CloudWatchSink) Put(ctx context.Context, d Datum) error {
	md := types.MetricDatum{
		MetricName: aws.String(d.Name),
		Value:      aws.Float64(d.Value),
		Unit:       types.StandardUnit(d.Unit),
		Timestamp:  aws.Time(d.Timestamp),
	}
	for _, dim := range d.Dimensions {
		md.Dimensions = append(md.Dimensions, types.Dimension{
			Name:  aws.String(dim.Name),
			Value: aws.String(dim.Value),
		})
	}

	_, err := s.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(s.namespace),
		MetricData: []types.MetricDatum{md},
	})
	if err != nil {
		return fmt.Errorf("put metric %s: %w", d.Name, err)
	}
	return nil
}
