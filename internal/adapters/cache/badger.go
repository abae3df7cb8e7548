// Package cache stores short-lived key/value entries in badger.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/okian/affinity/internal/domain/geo"
	"github.com/okian/affinity/pkg/logger"
)

// BadgerCache is a TTL cache over an embedded badger database.
type BadgerCache struct {
	db     *badger.DB
	logger logger.Logger
}

// Option applies a configuration option to the BadgerCache.
type Option func(*BadgerCache)

// WithLogger sets a custom logger for the cache.
func WithLogger(l logger.Logger) Option {
	return func(c *BadgerCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// Open opens a badger cache in dir, or in memory when dir is empty.
func Open(dir string, opts ...Option) (*BadgerCache, error) {
	bo := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		bo = bo.WithInMemory(true)
	}
	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return New(db, opts...), nil
}

// New wraps an open badger database.
func New(db *badger.DB, opts ...Option) *BadgerCache {
	c := &BadgerCache{db: db, logger: logger.Get().Named("cache")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value under key or geo.ErrCacheMiss.
func (c *BadgerCache) Get(_ context.Context, key string) ([]byte, error) {
	if c.db.IsClosed() {
		return nil, ErrClosed
	}
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return geo.ErrCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	return out, err
}

// Set stores value under key, expiring after ttl. A non-positive ttl never expires.
func (c *BadgerCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.db.IsClosed() {
		return ErrClosed
	}
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		if err := txn.SetEntry(e); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		return nil
	})
}

// Delete removes key. Missing keys are not an error.
func (c *BadgerCache) Delete(_ context.Context, key string) error {
	if c.db.IsClosed() {
		return ErrClosed
	}
	return c.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	})
}

// Ping reports whether the cache can serve requests.
func (c *BadgerCache) Ping(context.Context) error {
	if c.db.IsClosed() {
		return ErrClosed
	}
	return c.db.View(func(*badger.Txn) error { return nil })
}

// CountPrefix counts live keys starting with prefix.
func (c *BadgerCache) CountPrefix(_ context.Context, prefix string) (int, error) {
	if c.db.IsClosed() {
		return 0, ErrClosed
	}
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close closes the underlying database.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}
