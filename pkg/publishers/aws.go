package publishers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// loadAWSConfig resolves region and credentials for an AWS sink. Static keys
// win over the default chain when both are configured.
func loadAWSConfig(ctx context.Context, c AWSConfig) (aws.Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(c.Region)}
	if c.AccessKeyID != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// endpointOverride returns a pointer suitable for a service client's BaseEndpoint.
func endpointOverride(endpoint string) *string {
	if endpoint == "" {
		return nil
	}
	return aws.String(endpoint)
}

// awsMessage is an event rendered for the AWS messaging APIs: a JSON body plus
// string attributes that subscribers can filter on.
type awsMessage struct {
	body  string
	attrs map[string]string
}

func encodeAWSMessage(evt Event) (awsMessage, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return awsMessage{}, fmt.Errorf("marshal event: %w", err)
	}
	return awsMessage{body: string(payload), attrs: evt.attributes()}, nil
}

// stringAttributes converts attrs into the service-specific attribute value type.
func stringAttributes[V any](attrs map[string]string, mk func(dataType, value *string) V) map[string]V {
	out := make(map[string]V, len(attrs))
	for k, v := range attrs {
		out[k] = mk(aws.String("String"), aws.String(v))
	}
	return out
}
