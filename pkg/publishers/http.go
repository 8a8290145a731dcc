package publishers

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sz-labs/randombark/pkg/httpclient"
)

// eventHeaderPrefix prefixes the event attributes copied into webhook headers.
const eventHeaderPrefix = "X-Randombark-"

// webhookPublisher sends each event as a JSON body to a fixed URL.
type webhookPublisher struct {
	id      string
	method  string
	url     string
	headers map[string]string
	client  *resty.Client
	log     Logger
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}
	timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
	return &webhookPublisher{
		id:      cfg.ID,
		method:  cfg.HTTP.Method,
		url:     cfg.HTTP.URL,
		headers: maps.Clone(cfg.HTTP.Headers),
		client:  httpclient.NewResty(httpclient.Options{Timeout: timeout, Log: log}).SetHeader("Content-Type", "application/json"),
		log:     orDiscard(log),
	}, nil
}

func (w *webhookPublisher) ID() string   { return w.id }
func (w *webhookPublisher) Type() string { return TypeHTTP }

func (w *webhookPublisher) Publish(ctx context.Context, evt Event) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeaders(w.headers).
		SetHeaders(eventHeaders(evt)).
		SetBody(evt).
		Execute(w.method, w.url)
	if err != nil {
		return fmt.Errorf("webhook %s %s: %w", w.method, w.url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook %s %s: status %d: %s", w.method, w.url, resp.StatusCode(), bodySnippet(resp.Body()))
	}

	w.log.DebugObj("webhook publisher delivered event", "publisher_http_delivery", map[string]any{
		"publisher_id": w.id,
		"attempt_id":   evt.AttemptID,
		"status_code":  resp.StatusCode(),
	})
	return nil
}

// eventHeaders maps event attributes to headers, e.g. breed -> X-Randombark-Breed.
func eventHeaders(evt Event) map[string]string {
	attrs := evt.attributes()
	headers := make(map[string]string, len(attrs))
	for k, v := range attrs {
		headers[eventHeaderPrefix+headerName(k)] = v
	}
	return headers
}

// headerName turns a snake_case attribute key into Header-Case.
func headerName(key string) string {
	parts := strings.Split(key, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "-")
}

func bodySnippet(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
