package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/sz-labs/randombark/internal/domain"
)

func sampleSuccessEvent() Event {
	return NewSuccessEvent("attempt-1", domain.DogPayload{
		Breed:    "hound-afghan",
		ImageURL: "https://images.dog.ceo/breeds/hound-afghan/n02088094_1003.jpg",
	}, false, time.Now())
}

func sampleFailureEvent() Event {
	return NewFailureEvent("attempt-9", errors.New("status 500"), "transport", time.Now())
}

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("sqs-1")}, nil
}

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("sns-1")}, nil
}

func TestEncodeAWSMessage(t *testing.T) {
	cases := []struct {
		name      string
		evt       Event
		wantAttrs map[string]string
	}{
		{
			name: "success",
			evt:  sampleSuccessEvent(),
			wantAttrs: map[string]string{
				"status": StatusSuccess, "attempt_id": "attempt-1", "breed": "hound-afghan",
			},
		},
		{
			name: "failure",
			evt:  sampleFailureEvent(),
			wantAttrs: map[string]string{
				"status": StatusError, "attempt_id": "attempt-9", "error_kind": "transport",
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := encodeAWSMessage(tc.evt)
			if err != nil {
				t.Fatalf("encodeAWSMessage: %v", err)
			}
			if len(msg.attrs) != len(tc.wantAttrs) {
				t.Fatalf("attrs = %v, want %v", msg.attrs, tc.wantAttrs)
			}
			for k, v := range tc.wantAttrs {
				if msg.attrs[k] != v {
					t.Errorf("attr %s = %q, want %q", k, msg.attrs[k], v)
				}
			}
			var decoded Event
			if err := json.Unmarshal([]byte(msg.body), &decoded); err != nil {
				t.Fatalf("body is not an event: %v", err)
			}
			if decoded.AttemptID != tc.evt.AttemptID {
				t.Fatalf("body attempt = %q", decoded.AttemptID)
			}
		})
	}
}

func TestSQSPublisherStandardQueue(t *testing.T) {
	client := &fakeSQS{}
	pub := newSQSPublisherWith("queue", "https://sqs.us-east-1.amazonaws.com/1/dogs", client, nil)

	if err := pub.Publish(context.Background(), sampleSuccessEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	in := client.inputs[0]
	if got := aws.ToString(in.QueueUrl); got != "https://sqs.us-east-1.amazonaws.com/1/dogs" {
		t.Fatalf("QueueUrl = %s", got)
	}
	if in.MessageGroupId != nil || in.MessageDeduplicationId != nil {
		t.Fatalf("standard queues must not set FIFO fields")
	}
	attr := in.MessageAttributes["breed"]
	if aws.ToString(attr.DataType) != "String" || aws.ToString(attr.StringValue) != "hound-afghan" {
		t.Fatalf("breed attribute = %#v", attr)
	}
}

func TestSQSPublisherFIFOQueue(t *testing.T) {
	client := &fakeSQS{}
	pub := newSQSPublisherWith("queue", "https://sqs.us-east-1.amazonaws.com/1/dogs.fifo", client, nil)

	if err := pub.Publish(context.Background(), sampleFailureEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	in := client.inputs[0]
	if aws.ToString(in.MessageGroupId) != fifoGroupID {
		t.Fatalf("MessageGroupId = %q", aws.ToString(in.MessageGroupId))
	}
	if aws.ToString(in.MessageDeduplicationId) != "attempt-9" {
		t.Fatalf("MessageDeduplicationId = %q", aws.ToString(in.MessageDeduplicationId))
	}
}

func TestSNSPublisherSubjectAndAttributes(t *testing.T) {
	cases := []struct {
		evt         Event
		wantSubject string
	}{
		{sampleSuccessEvent(), "randombark: hound-afghan"},
		{sampleFailureEvent(), "randombark: transport error"},
		{Event{Status: StatusError}, "randombark: error"},
	}
	for _, tc := range cases {
		client := &fakeSNS{}
		pub := &snsPublisher{id: "topic", topicARN: "arn:aws:sns:us-east-1:1:dogs", client: client, log: discardLogger{}}
		if err := pub.Publish(context.Background(), tc.evt); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		in := client.inputs[0]
		if got := aws.ToString(in.Subject); got != tc.wantSubject {
			t.Errorf("Subject = %q, want %q", got, tc.wantSubject)
		}
		if got := aws.ToString(in.TopicArn); got != "arn:aws:sns:us-east-1:1:dogs" {
			t.Errorf("TopicArn = %s", got)
		}
		if _, ok := in.MessageAttributes["status"]; !ok {
			t.Errorf("status attribute missing")
		}
	}
}

func TestAWSPublishersWrapClientErrors(t *testing.T) {
	boom := errors.New("boom")
	pubs := []Publisher{
		newSQSPublisherWith("queue", "https://example/q", &fakeSQS{err: boom}, nil),
		&snsPublisher{id: "topic", topicARN: "arn", client: &fakeSNS{err: boom}, log: discardLogger{}},
	}
	for _, pub := range pubs {
		err := pub.Publish(context.Background(), sampleSuccessEvent())
		if !errors.Is(err, boom) {
			t.Errorf("%s: expected wrapped client error, got %v", pub.Type(), err)
		}
	}
}

func TestAWSBuildersRequireConfig(t *testing.T) {
	for _, typ := range []string{TypeSQS, TypeSNS} {
		if _, err := DefaultBuilders().Build(context.Background(), PublisherConfig{ID: "x", Type: typ}, nil); err == nil {
			t.Errorf("%s: expected error without service block", typ)
		}
	}
}

func TestEndpointOverride(t *testing.T) {
	if endpointOverride("") != nil {
		t.Fatalf("empty endpoint should not override")
	}
	if got := aws.ToString(endpointOverride("http://localhost:4566")); got != "http://localhost:4566" {
		t.Fatalf("endpointOverride = %q", got)
	}
}
