// Package cache keeps backend reads in durable client storage with a
// freshness window per kind of entry.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
)

// Freshness windows.
const (
	ListWindow   = 30 * time.Minute
	DetailWindow = 15 * time.Minute
)

// Entry is the stored form of a cached value. Timestamp is Unix milliseconds.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Fresh reports whether the entry is still inside window at now.
func (e Entry) Fresh(now time.Time, window time.Duration) bool {
	return now.UnixMilli()-e.Timestamp < window.Milliseconds()
}

// Cache reads and writes entries through a KVStore.
type Cache struct {
	store ports.KVStore
	now   func() time.Time
	log   zerolog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger used for corrupt or unreadable entries.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// New returns a Cache over store.
func New(store ports.KVStore, opts ...Option) *Cache {
	c := &Cache{store: store, now: time.Now, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get decodes the entry at key into dst. It reports false on a miss, which
// includes expired entries (deleted as a side effect) and entries that no
// longer decode.
func (c *Cache) Get(ctx context.Context, key string, window time.Duration, dst any) bool {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}

	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("dropping corrupt cache entry")
		c.drop(ctx, key)
		return false
	}
	if !e.Fresh(c.now(), window) {
		c.drop(ctx, key)
		return false
	}
	if err := json.Unmarshal(e.Data, dst); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("dropping undecodable cache entry")
		c.drop(ctx, key)
		return false
	}
	return true
}

// Set stores v at key stamped with the current time.
func (c *Cache) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	raw, err := json.Marshal(Entry{Data: data, Timestamp: c.now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("cache: encode entry %s: %w", key, err)
	}
	if err := c.store.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("cache: write %s: %w", key, err)
	}
	return nil
}

// Invalidate removes the entries at keys.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	var errs []error
	for _, k := range keys {
		if err := c.store.Delete(ctx, k); err != nil {
			errs = append(errs, fmt.Errorf("cache: delete %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

// InvalidatePrefix removes every entry whose key starts with prefix.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) error {
	if err := c.store.DeletePrefix(ctx, prefix); err != nil {
		return fmt.Errorf("cache: delete prefix %s: %w", prefix, err)
	}
	return nil
}

func (c *Cache) drop(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache delete failed")
	}
}
