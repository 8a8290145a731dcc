// Package storage remembers which dog images have already been shown.
package storage

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic key derivation
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Store tracks image URLs returned by successful fetches.
type Store interface {
	Close() error
	SeenImage(imageURL string) (bool, error)
	MarkImage(imageURL string) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	ImageTTL        time.Duration
	CleanupInterval time.Duration
}

// Backend names accepted by NewStore.
const (
	TypeNone  = "none"
	TypeBBolt = "bbolt"
)

const (
	defaultImageTTL        = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	if typ == "" || typ == "disabled" {
		typ = TypeNone
	}
	if typ == TypeNone {
		return noopStore{}, nil
	}
	if typ != TypeBBolt {
		return nil, fmt.Errorf("unsupported storage type %q (want %s or %s)", typ, TypeBBolt, TypeNone)
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("bbolt storage requires a path")
	}
	return openBolt(path, opts)
}

func normalizeOptions(opts Options) Options {
	if opts.ImageTTL <= 0 {
		opts.ImageTTL = defaultImageTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

// imageKey hashes the trimmed URL so keys stay fixed-size.
func imageKey(imageURL string) []byte {
	sum := sha1.Sum([]byte(strings.TrimSpace(imageURL)))
	return []byte(hex.EncodeToString(sum[:]))
}

type noopStore struct{}

func (noopStore) Close() error                   { return nil }
func (noopStore) SeenImage(string) (bool, error) { return false, nil }
func (noopStore) MarkImage(string) error         { return nil }
