package dogapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/sz-labs/randombark/internal/domain"
	"github.com/sz-labs/randombark/pkg/httpclient"
)

const (
	DefaultBaseURL  = "https://dog.ceo"
	RandomImagePath = "/api/breeds/image/random"

	statusSuccess = "success"
)

// Fetcher retrieves one random dog per call.
type Fetcher interface {
	Fetch(ctx context.Context) (domain.DogPayload, error)
}

// Client is the dog.ceo fetch client. It performs exactly one GET per Fetch
// and never retries.
type Client struct {
	http      httpclient.Client
	endpoint  string
	userAgent string
}

// Option customizes a Client.
type Option func(*Client)

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = strings.TrimSpace(ua) }
}

// NewClient builds a fetch client against baseURL (DefaultBaseURL when empty).
func NewClient(client httpclient.Client, baseURL string, opts ...Option) *Client {
	if client == nil {
		client = httpclient.NewRestyClient(httpclient.Options{})
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		http:     client,
		endpoint: baseURL + RandomImagePath,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the fully qualified URL the client requests.
func (c *Client) Endpoint() string { return c.endpoint }

// Fetch performs the GET and decodes the reply into a DogPayload.
// Failures are *TransportError or *DecodeError.
func (c *Client) Fetch(ctx context.Context) (domain.DogPayload, error) {
	resp, err := c.http.Get(ctx, c.endpoint, c.headers())
	if err != nil {
		return domain.DogPayload{}, &TransportError{URL: c.endpoint, Err: err}
	}

	body := resp.Body()
	if !httpclient.IsSuccess(resp) {
		return domain.DogPayload{}, &TransportError{
			URL:        c.endpoint,
			StatusCode: resp.StatusCode(),
			Body:       responseSnippet(body),
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode()),
		}
	}

	payload, err := decodeReply(body)
	if err != nil {
		return domain.DogPayload{}, &DecodeError{Body: responseSnippet(body), Err: err}
	}
	return payload, nil
}

func (c *Client) headers() map[string]string {
	headers := map[string]string{"Accept": "application/json"}
	if c.userAgent != "" {
		headers["User-Agent"] = c.userAgent
	}
	return headers
}

// randomImageReply mirrors the JSON body. Pointers distinguish missing fields from empty ones.
type randomImageReply struct {
	Message *string `json:"message"`
	Status  *string `json:"status"`
}

func decodeReply(body []byte) (domain.DogPayload, error) {
	var reply randomImageReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return domain.DogPayload{}, err
	}
	if reply.Status == nil {
		return domain.DogPayload{}, ErrMissingStatus
	}
	if *reply.Status != statusSuccess {
		return domain.DogPayload{}, fmt.Errorf("%w: %q", ErrUnexpectedStatus, *reply.Status)
	}
	if reply.Message == nil || strings.TrimSpace(*reply.Message) == "" {
		return domain.DogPayload{}, ErrMissingMessage
	}

	imageURL := strings.TrimSpace(*reply.Message)
	breed, err := BreedFromImageURL(imageURL)
	if err != nil {
		return domain.DogPayload{}, err
	}
	return domain.DogPayload{Breed: breed, ImageURL: imageURL}, nil
}

// BreedFromImageURL returns the path segment between "breeds/" and the
// trailing filename, e.g. ".../breeds/hound-afghan/n02088094_1003.jpg" gives
// "hound-afghan".
func BreedFromImageURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", ErrInvalidImageURL
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg != "breeds" {
			continue
		}
		// need both a breed segment and a filename after it
		if i+2 >= len(segments) {
			break
		}
		breed, file := segments[i+1], segments[len(segments)-1]
		if breed == "" || file == "" {
			break
		}
		return breed, nil
	}
	return "", ErrBreedNotInImageURL
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
