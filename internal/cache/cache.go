// Package cache implements the per-kind resource cache and the batch fetcher
// that fills it.
//
// One Cache exists per resource kind (species, move, ability) for the whole
// process. It is created at startup and injected into every consumer, so an
// in-flight lookup started by the HTTP handlers is visible to the enrichment
// pipeline and the other way around.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/pokemmo-companion/internal/model"
)

// DefaultTTL is how long a fetched resource stays valid.
const DefaultTTL = 24 * time.Hour

// Persister is the durable key-value backend behind a Cache. Implementations
// live in the storage package (SQLite, JSON file, Redis, memory).
type Persister interface {
	Load(ctx context.Context, kind model.ResourceKind) ([]model.CacheRecord, error)
	Save(ctx context.Context, kind model.ResourceKind, records []model.CacheRecord) error
	Clear(ctx context.Context, kind model.ResourceKind) error
}

// Entry is one cached value plus the time it was fetched.
type Entry[T any] struct {
	Data      T
	Timestamp time.Time
}

// Valid reports whether the entry is younger than ttl at time now.
func (e Entry[T]) Valid(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.Timestamp) < ttl
}

// Stats is a point-in-time summary of a Cache.
type Stats struct {
	Kind     model.ResourceKind `json:"kind"`
	Entries  int                `json:"entries"`
	Expired  int                `json:"expired"`
	InFlight int                `json:"in_flight"`
	Oldest   time.Time          `json:"oldest,omitempty"`
	Newest   time.Time          `json:"newest,omitempty"`
}

// Cache is a TTL-bounded memo of external lookups for one resource kind.
// Expired entries read as absent but are never actively evicted; they are
// overwritten by the next successful fetch and skipped on the next load.
type Cache[T any] struct {
	kind      model.ResourceKind
	ttl       time.Duration
	persister Persister
	logger    *zap.Logger
	now       func() time.Time

	initMu      sync.Mutex
	mu          sync.RWMutex
	entries     map[string]Entry[T]
	inFlight    map[string]chan struct{}
	initialized bool
}

// New creates an empty, uninitialized cache. persister may be nil for a
// memory-only cache.
func New[T any](kind model.ResourceKind, persister Persister, ttl time.Duration, logger *zap.Logger) *Cache[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache[T]{
		kind:      kind,
		ttl:       ttl,
		persister: persister,
		logger:    logger.With(zap.String("kind", string(kind))),
		now:       time.Now,
		entries:   make(map[string]Entry[T]),
		inFlight:  make(map[string]chan struct{}),
	}
}

// Kind returns the resource kind this cache holds.
func (c *Cache[T]) Kind() model.ResourceKind { return c.kind }

// Init hydrates the cache from the persister. Only the first call has any
// effect. A failing persister leaves the cache empty but initialized.
func (c *Cache[T]) Init(ctx context.Context) {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	c.mu.RLock()
	done := c.initialized
	c.mu.RUnlock()
	if done {
		return
	}

	loaded := make(map[string]Entry[T])
	dropped := 0
	if c.persister != nil {
		records, err := c.persister.Load(ctx, c.kind)
		if err != nil {
			c.logger.Warn("loading cache, starting empty", zap.Error(err))
			records = nil
		}
		now := c.now()
		for _, rec := range records {
			entry := Entry[T]{Timestamp: rec.FetchedAt}
			if !entry.Valid(now, c.ttl) {
				dropped++
				continue
			}
			if err := json.Unmarshal(rec.Data, &entry.Data); err != nil {
				c.logger.Warn("skipping undecodable cache record", zap.String("key", rec.Key), zap.Error(err))
				continue
			}
			loaded[rec.Key] = entry
		}
	}

	c.mu.Lock()
	for key, entry := range loaded {
		// Entries written before Init finished are newer than anything on disk.
		if _, exists := c.entries[key]; !exists {
			c.entries[key] = entry
		}
	}
	c.initialized = true
	c.mu.Unlock()

	c.logger.Debug("cache initialized", zap.Int("loaded", len(loaded)), zap.Int("expired", dropped))
}

// Initialized reports whether Init has run.
func (c *Cache[T]) Initialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// Get returns the entry for key if it is present and still valid. It never
// triggers a fetch.
func (c *Cache[T]) Get(key string) (Entry[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.getLocked(key)
}

func (c *Cache[T]) getLocked(key string) (Entry[T], bool) {
	entry, ok := c.entries[key]
	if !ok || !entry.Valid(c.now(), c.ttl) {
		return Entry[T]{}, false
	}
	return entry, true
}

// Lookup returns just the cached value.
func (c *Cache[T]) Lookup(key string) (T, bool) {
	entry, ok := c.Get(key)
	return entry.Data, ok
}

// Has reports whether a valid entry exists for key.
func (c *Cache[T]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// InFlight reports whether key is currently being fetched.
func (c *Cache[T]) InFlight(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.inFlight[key]
	return ok
}

// MarkInFlight claims key for fetching. It returns false when the key is
// already cached or another consumer holds the claim.
func (c *Cache[T]) MarkInFlight(key string) bool {
	return len(c.ClaimMissing([]string{key})) == 1
}

// ClaimMissing atomically selects the keys that are neither cached nor in
// flight and marks them in flight. Duplicate keys are claimed once.
func (c *Cache[T]) ClaimMissing(keys []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var claimed []string
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := c.getLocked(key); ok {
			continue
		}
		if _, busy := c.inFlight[key]; busy {
			continue
		}
		c.inFlight[key] = make(chan struct{})
		claimed = append(claimed, key)
	}
	return claimed
}

// ClearInFlight releases the claim on key and wakes anyone waiting on it.
func (c *Cache[T]) ClearInFlight(key string) {
	c.mu.Lock()
	ch, ok := c.inFlight[key]
	delete(c.inFlight, key)
	c.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Await blocks until none of keys is in flight or ctx is done.
func (c *Cache[T]) Await(ctx context.Context, keys ...string) error {
	c.mu.RLock()
	var waits []chan struct{}
	for _, key := range keys {
		if ch, ok := c.inFlight[key]; ok {
			waits = append(waits, ch)
		}
	}
	c.mu.RUnlock()

	for _, ch := range waits {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Put stores data under key and persists it. Persistence is best-effort:
// failures are logged and the in-memory entry is kept.
func (c *Cache[T]) Put(ctx context.Context, key string, data T) {
	c.PutAll(ctx, map[string]T{key: data})
}

// PutAll stores several values with one persist call.
func (c *Cache[T]) PutAll(ctx context.Context, items map[string]T) {
	if len(items) == 0 {
		return
	}
	now := c.now()

	c.mu.Lock()
	for key, data := range items {
		c.entries[key] = Entry[T]{Data: data, Timestamp: now}
	}
	c.mu.Unlock()

	if c.persister == nil {
		return
	}
	records := make([]model.CacheRecord, 0, len(items))
	for key, data := range items {
		raw, err := json.Marshal(data)
		if err != nil {
			c.logger.Warn("encoding cache entry", zap.String("key", key), zap.Error(err))
			continue
		}
		records = append(records, model.CacheRecord{Key: key, Data: raw, FetchedAt: now})
	}
	if err := c.persister.Save(ctx, c.kind, records); err != nil {
		c.logger.Warn("persisting cache entries", zap.Int("count", len(records)), zap.Error(err))
	}
}

// Clear wipes the in-memory entries and the persisted ones for this kind.
// In-flight claims are left alone so running fetches settle normally.
func (c *Cache[T]) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]Entry[T])
	c.mu.Unlock()

	if c.persister == nil {
		return nil
	}
	if err := c.persister.Clear(ctx, c.kind); err != nil {
		c.logger.Warn("clearing persisted cache", zap.Error(err))
		return err
	}
	return nil
}

// Stats summarizes the cache contents.
func (c *Cache[T]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	st := Stats{Kind: c.kind, InFlight: len(c.inFlight)}
	for _, entry := range c.entries {
		if !entry.Valid(now, c.ttl) {
			st.Expired++
			continue
		}
		st.Entries++
		if st.Oldest.IsZero() || entry.Timestamp.Before(st.Oldest) {
			st.Oldest = entry.Timestamp
		}
		if entry.Timestamp.After(st.Newest) {
			st.Newest = entry.Timestamp
		}
	}
	return st
}
