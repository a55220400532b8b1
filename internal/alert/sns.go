package alert

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSAPI is the subset of the SNS client the channel uses.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSChannel publishes alerts to an SNS topic.
type SNSChannel struct {
	client   SNSAPI
	topicARN string
}

func NewSNSChannel(client SNSAPI, topicARN string) *SNSChannel {
	return &SNSChannel{client: client, topicARN: topicARN}
}

func (s *SNSChannel) Type() string {
	return "sns"
}

func (s *SNSChannel) Send(ctx context.Context, a Alert) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(truncateSubject(a.Subject)),
		Message:  aws.String(a.Message),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

// SNS rejects subjects longer than 100 characters.
func truncateSubject(s string) string {
	const max = 100
	if len(s) <= max {
		return s
	}
	return s[:max]
}
