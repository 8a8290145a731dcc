package dogapi

import (
	"errors"
	"fmt"
)

// Error kinds reported alongside failed fetches.
const (
	KindTransport = "transport"
	KindDecode    = "decode"
)

// TransportError reports that the request never produced a usable 2xx response:
// the host was unreachable, the call timed out, or the server answered non-2xx.
type TransportError struct {
	URL        string
	StatusCode int // zero when no response was received
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("dog api %s returned status %d body: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("dog api %s request failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a 2xx response whose body does not match the expected shape.
type DecodeError struct {
	Body string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode dog api reply: %v (body: %s)", e.Err, e.Body)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var (
	ErrMissingMessage     = errors.New("reply is missing message")
	ErrMissingStatus      = errors.New("reply is missing status")
	ErrUnexpectedStatus   = errors.New("reply status is not success")
	ErrInvalidImageURL    = errors.New("message is not an absolute image URL")
	ErrBreedNotInImageURL = errors.New("image URL has no breeds/<breed>/<file> path")
)

// Kind classifies err as KindTransport, KindDecode, or "" for anything else.
func Kind(err error) string {
	var te *TransportError
	if errors.As(err, &te) {
		return KindTransport
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return KindDecode
	}
	return ""
}
