package txcache

import (
	"errors"
	"fmt"

	"github.com/AlexZinkM/exchange-json-rpc/internal/crypto"
)

// ErrNotFound is returned for an id that was never cached
var ErrNotFound = errors.New("transaction not found")

// Storage is the subset of the key-value store the cache needs
type Storage interface {
	Get(key string, value interface{}) (bool, error)
	Set(key string, value interface{}) error
}

// Cache holds signed transactions until they are broadcast.
// Entries are never removed, so a transaction can be broadcast again.
type Cache struct {
	storage Storage
}

// New creates a cache on top of storage
func New(storage Storage) *Cache {
	return &Cache{storage: storage}
}

// Put stores tx under its id
func (c *Cache) Put(tx *crypto.Transaction) error {
	if tx == nil || tx.ID == "" {
		return errors.New("cannot cache a transaction without id")
	}
	if err := c.storage.Set(tx.ID, tx); err != nil {
		return fmt.Errorf("failed to cache transaction %s: %w", tx.ID, err)
	}
	return nil
}

// TakeForBroadcast returns the cached transaction without removing it
func (c *Cache) TakeForBroadcast(id string) (*crypto.Transaction, error) {
	var tx crypto.Transaction
	ok, err := c.storage.Get(id, &tx)
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction %s: %w", id, err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return &tx, nil
}
