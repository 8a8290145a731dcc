package publishers

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestLoadRegistryEnabledFilter(t *testing.T) {
	path := writeFile(t, "publishers.yaml", `
publishers:
  - id: http1
    type: http
    enabled: false
    http:
      url: https://example.com
  - id: queue
    type: SQS
    sqs:
      uri: https://sqs.eu-west-1.amazonaws.com/123/dogs
      region: eu-west-1
  - id: topic
    type: sns
    sns:
      topic_arn: arn:aws:sns:eu-west-1:123:dogs
      region: eu-west-1
      access_key_id: AKIA
      secret_access_key: secret
`)

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	enabled := reg.Enabled()
	if len(enabled) != 2 || enabled[0].ID != "queue" || enabled[1].ID != "topic" {
		t.Fatalf("unexpected enabled publishers %#v", enabled)
	}
	queue, ok := reg.ByID("queue")
	if !ok || queue.Type != TypeSQS || queue.SQS.Region != "eu-west-1" {
		t.Fatalf("unexpected sqs config %#v", queue)
	}
	topic, _ := reg.ByID("topic")
	if topic.SNS.AccessKeyID != "AKIA" {
		t.Fatalf("inline aws config not decoded: %#v", topic.SNS)
	}
	http1, _ := reg.ByID("http1")
	if http1.HTTP.Method != "POST" || http1.HTTP.TimeoutSeconds != httpDefaultTimeoutSeconds {
		t.Fatalf("http defaults not applied: %#v", http1.HTTP)
	}
}

func TestLoadRegistryJSON(t *testing.T) {
	path := writeFile(t, "publishers.json", `{"publishers":[
		{"id":"ps","type":"gcp_pubsub","gcp_pubsub":{"project_id":"p","topic":"dogs"}},
		{"id":"q","type":"sqs","sqs":{"uri":"https://q","region":"us-east-1","endpoint":"http://localhost:4566"}}
	]}`)

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.All()) != 2 {
		t.Fatalf("expected 2 publishers, got %d", len(reg.All()))
	}
	q, _ := reg.ByID("q")
	if q.SQS.Endpoint != "http://localhost:4566" {
		t.Fatalf("embedded aws config not decoded from json: %#v", q.SQS)
	}
}

func TestLoadRegistryDuplicateID(t *testing.T) {
	path := writeFile(t, "publishers.yaml", `
publishers:
  - id: dup
    type: http
    http: {url: https://a}
  - id: dup
    type: http
    http: {url: https://b}
`)
	if _, err := LoadRegistry(path); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestValidatePublisherConfig(t *testing.T) {
	bad := []PublisherConfig{
		{Type: TypeHTTP},
		{ID: "h1", Type: TypeHTTP},
		{ID: "s1", Type: TypeSQS, SQS: &SQSPublisherConfig{QueueURL: "https://q"}},
		{ID: "s2", Type: TypeSNS, SNS: &SNSPublisherConfig{TopicARN: "arn", AWSConfig: AWSConfig{Region: "r", AccessKeyID: "only-id"}}},
		{ID: "g1", Type: TypeGCPPubSub, PubSub: &GCPQueueConfig{ProjectID: "p"}},
	}
	for _, cfg := range bad {
		if err := validatePublisherConfig(cfg); err == nil {
			t.Errorf("expected validation error for %#v", cfg)
		}
	}
}
