package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	imageBucket = "seen_images"
	expiryBytes = 8
)

var errBucketMissing = errors.New("seen_images bucket missing")

// boltStore implements Store on BoltDB. Each key is an image hash and each
// value is the big-endian unix second at which the entry expires.
type boltStore struct {
	db       *bolt.DB
	ttl      time.Duration
	sweepGap time.Duration
	now      func() time.Time

	sweepMu   sync.Mutex
	lastSweep atomic.Int64
}

// openBolt opens (creating if needed) the database file and its bucket.
func openBolt(path string, opts Options) (Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(imageBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	s := &boltStore{
		db:       db,
		ttl:      opts.ImageTTL,
		sweepGap: opts.CleanupInterval,
		now:      time.Now,
	}
	s.lastSweep.Store(s.now().Unix())
	return s, nil
}

func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// SeenImage reports whether imageURL was marked and has not expired yet.
// Expired entries found on lookup are deleted.
func (b *boltStore) SeenImage(imageURL string) (bool, error) {
	now := b.now()
	if err := b.sweepIfDue(now); err != nil {
		return false, err
	}

	key := imageKey(imageURL)
	seen := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := seenBucket(tx)
		if err != nil {
			return err
		}
		raw := bucket.Get(key)
		if raw == nil {
			return nil
		}
		if live(raw, now) {
			seen = true
			return nil
		}
		return bucket.Delete(key)
	})
	return seen, err
}

// MarkImage records imageURL as seen until now+TTL.
func (b *boltStore) MarkImage(imageURL string) error {
	now := b.now()
	if err := b.sweepIfDue(now); err != nil {
		return err
	}

	val := make([]byte, expiryBytes)
	binary.BigEndian.PutUint64(val, uint64(now.Add(b.ttl).Unix()))
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := seenBucket(tx)
		if err != nil {
			return err
		}
		return bucket.Put(imageKey(imageURL), val)
	})
}

// sweepIfDue deletes expired entries at most once per sweep gap.
func (b *boltStore) sweepIfDue(now time.Time) error {
	if now.Sub(time.Unix(b.lastSweep.Load(), 0)) < b.sweepGap {
		return nil
	}

	b.sweepMu.Lock()
	defer b.sweepMu.Unlock()
	if now.Sub(time.Unix(b.lastSweep.Load(), 0)) < b.sweepGap {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := seenBucket(tx)
		if err != nil {
			return err
		}
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if live(v, now) {
				continue
			}
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sweep expired images: %w", err)
	}
	b.lastSweep.Store(now.Unix())
	return nil
}

func seenBucket(tx *bolt.Tx) (*bolt.Bucket, error) {
	bucket := tx.Bucket([]byte(imageBucket))
	if bucket == nil {
		return nil, errBucketMissing
	}
	return bucket, nil
}

// live reports whether an encoded expiry is well-formed and after now.
func live(raw []byte, now time.Time) bool {
	if len(raw) != expiryBytes {
		return false
	}
	unix := int64(binary.BigEndian.Uint64(raw))
	return unix > 0 && time.Unix(unix, 0).After(now)
}
