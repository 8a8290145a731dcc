package httpclient

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

// Logger receives one debug entry per completed request.
type Logger interface {
	DebugObj(msg, key string, obj interface{})
}

// Options configure the resty-backed clients. The zero value is valid: no
// timeout beyond the transport default, no retries, no request logging.
type Options struct {
	Timeout time.Duration
	Log     Logger
}

// RestyClient implements Client on top of resty.
type RestyClient struct {
	client *resty.Client
}

// NewRestyClient returns a Client for plain GET calls.
func NewRestyClient(opts Options) *RestyClient {
	return &RestyClient{client: NewResty(opts)}
}

// NewResty returns a configured resty.Client for callers needing other verbs or bodies.
func NewResty(opts Options) *resty.Client {
	c := resty.New().SetRetryCount(0)
	if opts.Timeout > 0 {
		c.SetTimeout(opts.Timeout)
	}
	if opts.Log != nil {
		log := opts.Log
		c.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			log.DebugObj("http request completed", "http_request", map[string]any{
				"method":      resp.Request.Method,
				"url":         resp.Request.URL,
				"status_code": resp.StatusCode(),
				"elapsed_ms":  resp.Time().Milliseconds(),
				"bytes":       resp.Size(),
			})
			return nil
		})
	}
	return c
}

// Get issues a GET. Non-2xx statuses come back as a Response, not an error.
func (r *RestyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(url)
	if err != nil {
		return nil, err
	}
	return restyResponse{resp}, nil
}

type restyResponse struct{ *resty.Response }

var _ Response = restyResponse{}
