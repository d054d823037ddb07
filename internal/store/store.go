package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// FileName is the database file created inside the data directory
const FileName = "exchange-json-rpc.db"

const (
	defaultCacheSize = 256
	openTimeout      = 5 * time.Second
)

var bucketName = []byte("keyv")

// ErrStorageUnavailable wraps every failure to open the database
var ErrStorageUnavailable = errors.New("storage unavailable")

// Store is a JSON key-value store in a single bbolt file.
// It is safe for concurrent use.
type Store struct {
	db    *bolt.DB
	cache *lru.Cache
	log   *zap.Logger

	// mu orders cache fills after a read against writes, so a stale read never lands in the cache
	mu sync.RWMutex
}

// Options for Open
type Options struct {
	CacheSize int
	Logger    *zap.Logger
}

// Open creates the parent directory, the file and the bucket as needed
func Open(path string, opts Options) (*Store, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: failed to create data directory: %v", ErrStorageUnavailable, err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", ErrStorageUnavailable, path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to create bucket: %v", ErrStorageUnavailable, err)
	}

	cache, err := lru.New(opts.CacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return &Store{db: db, cache: cache, log: opts.Logger}, nil
}

// Close releases the database file
func (s *Store) Close() error {
	return s.db.Close()
}

// Path of the underlying file
func (s *Store) Path() string {
	return s.db.Path()
}

// Get decodes the value stored under key into value.
// A missing key, or a stored value that does not decode, reports false with no error.
func (s *Store) Get(key string, value interface{}) (bool, error) {
	raw, ok, err := s.Raw(key)
	if err != nil || !ok {
		return false, err
	}

	if err := json.Unmarshal(raw, value); err != nil {
		s.log.Warn("discarding undecodable record", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return true, nil
}

// Raw returns a copy of the stored JSON text of key
func (s *Store) Raw(key string) (json.RawMessage, bool, error) {
	if cached, ok := s.cache.Get(key); ok {
		return clone(cached.(json.RawMessage)), true, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw json.RawMessage
	err := s.db.View(func(tx *bolt.Tx) error {
		raw = clone(tx.Bucket(bucketName).Get([]byte(key)))
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	if raw == nil {
		return nil, false, nil
	}

	s.cache.Add(key, raw)
	return clone(raw), true, nil
}

// Set stores value as JSON under key, replacing any previous value
func (s *Store) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), raw)
	})
	if err != nil {
		s.cache.Remove(key)
		return fmt.Errorf("failed to write %q: %w", key, err)
	}

	s.cache.Add(key, json.RawMessage(raw))
	return nil
}

// SetIfAbsent stores value under key only when the key is not present yet.
// The check and the write happen in one transaction. It reports whether value was written.
func (s *Store) SetIfAbsent(key string, value interface{}) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to encode %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := false
	err = s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket.Get([]byte(key)) != nil {
			return nil
		}
		created = true
		return bucket.Put([]byte(key), raw)
	})
	if err != nil {
		s.cache.Remove(key)
		return false, fmt.Errorf("failed to write %q: %w", key, err)
	}

	if created {
		s.cache.Add(key, json.RawMessage(raw))
	}
	return created, nil
}

// clone copies b; bbolt memory is only valid inside the transaction
func clone(b []byte) json.RawMessage {
	if b == nil {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}

// putRaw writes bytes without encoding; tests use it to plant corrupt rows
func (s *Store) putRaw(key string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), raw)
	})
	s.cache.Remove(key)
	return err
}
