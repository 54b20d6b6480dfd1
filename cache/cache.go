// Package cache is a small persistent key value cache with expiring entries,
// used to remember marketplace lookups between runs.
package cache

import (
	"fmt"
	"time"

	"github.com/rubiojr/kv"
)

const DefaultExpiry = 1 * time.Hour

type Cache interface {
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	Namespace(name string) Cache
}

type CacheOption func(*kvCache)

func WithExpiry(expiry time.Duration) CacheOption {
	return func(c *kvCache) {
		c.expiry = &expiry
	}
}

type kvCache struct {
	db        kv.Database
	expiry    *time.Duration
	namespace string
}

// NewCache opens (or creates) the sqlite backed cache at path. Entries expire
// after DefaultExpiry unless WithExpiry says otherwise.
func NewCache(path string, opts ...CacheOption) (*kvCache, error) {
	db, err := kv.New("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", path, err)
	}

	cache := &kvCache{db: db}
	for _, opt := range opts {
		opt(cache)
	}

	if cache.expiry == nil {
		defaultExpiry := DefaultExpiry
		cache.expiry = &defaultExpiry
	}

	return cache, nil
}

// Get returns an error for missing and expired keys.
func (c *kvCache) Get(key []byte) ([]byte, error) {
	return c.db.Get(c.namespace + string(key))
}

func (c *kvCache) Put(key []byte, value []byte) error {
	var expireAt *time.Time
	if c.expiry != nil {
		expiry := time.Now().Add(*c.expiry)
		expireAt = &expiry
	}
	return c.db.Set(c.namespace+string(key), value, expireAt)
}

func (c *kvCache) Delete(key []byte) error {
	return c.db.Del(c.namespace + string(key))
}

// Namespace returns a view of the cache whose keys are prefixed with name.
// Namespaces nest.
func (c *kvCache) Namespace(name string) Cache {
	return &kvCache{
		db:        c.db,
		expiry:    c.expiry,
		namespace: fmt.Sprintf("%s%s:", c.namespace, name),
	}
}
