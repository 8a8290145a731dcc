package publishers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// snsAPI is the part of *sns.Client the publisher calls.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// snsPublisher publishes events to an SNS topic.
type snsPublisher struct {
	id       string
	topicARN string
	client   snsAPI
	log      Logger
}

func newSNSPublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.SNS == nil {
		return nil, fmt.Errorf("publisher %q missing sns configuration", cfg.ID)
	}
	awsCfg, err := loadAWSConfig(ctx, cfg.SNS.AWSConfig)
	if err != nil {
		return nil, err
	}
	endpoint := endpointOverride(cfg.SNS.Endpoint)
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	})
	return &snsPublisher{id: cfg.ID, topicARN: cfg.SNS.TopicARN, client: client, log: orDiscard(log)}, nil
}

func (s *snsPublisher) ID() string   { return s.id }
func (s *snsPublisher) Type() string { return TypeSNS }

func (s *snsPublisher) Publish(ctx context.Context, evt Event) error {
	msg, err := encodeAWSMessage(evt)
	if err != nil {
		return err
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(snsSubject(evt)),
		Message:  aws.String(msg.body),
		MessageAttributes: stringAttributes(msg.attrs, func(dt, v *string) types.MessageAttributeValue {
			return types.MessageAttributeValue{DataType: dt, StringValue: v}
		}),
	})
	if err != nil {
		s.log.ErrorObj("sns publisher send failed", "publisher_sns_error", map[string]any{
			"publisher_id": s.id,
			"attempt_id":   evt.AttemptID,
			"error":        err.Error(),
		})
		return fmt.Errorf("publish to sns: %w", err)
	}
	s.log.DebugObj("sns publisher delivered event", "publisher_sns_delivery", map[string]any{
		"publisher_id": s.id,
		"attempt_id":   evt.AttemptID,
		"message_id":   aws.ToString(out.MessageId),
	})
	return nil
}

// snsSubject is the email-friendly subject line, e.g. "randombark: hound-afghan".
func snsSubject(evt Event) string {
	if evt.Dog != nil && evt.Dog.Breed != "" {
		return "randombark: " + evt.Dog.Breed
	}
	if evt.ErrorKind != "" {
		return "randombark: " + evt.ErrorKind + " error"
	}
	return "randombark: " + evt.Status
}
