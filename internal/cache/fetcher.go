package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/fleveque/pokemmo-companion/internal/model"
)

// FetchFunc loads one resource from upstream.
type FetchFunc[T any] func(ctx context.Context, key string) (T, error)

// Result reports what one FetchMissing call did. Keys that were already
// cached or claimed by another consumer are Skipped.
type Result struct {
	Kind     model.ResourceKind `json:"kind"`
	Fetched  []string           `json:"fetched,omitempty"`
	Failed   map[string]error   `json:"-"`
	Skipped  []string           `json:"skipped,omitempty"`
	Duration time.Duration      `json:"duration"`
}

// Attempted is the number of keys this call sent upstream.
func (r Result) Attempted() int {
	return len(r.Fetched) + len(r.Failed)
}

// AllFailed reports whether every attempted key failed.
func (r Result) AllFailed() bool {
	return len(r.Failed) > 0 && len(r.Fetched) == 0
}

// FailedKeys returns the failed keys in sorted order.
func (r Result) FailedKeys() []string {
	keys := make([]string, 0, len(r.Failed))
	for k := range r.Failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fetcher fills a Cache by fetching only the keys it is missing.
type Fetcher[T any] struct {
	cache         *Cache[T]
	fetch         FetchFunc[T]
	maxConcurrent int
	logger        *zap.Logger
}

// NewFetcher creates a Fetcher. maxConcurrent bounds the number of parallel
// upstream requests per call.
func NewFetcher[T any](c *Cache[T], fetch FetchFunc[T], maxConcurrent int, logger *zap.Logger) *Fetcher[T] {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher[T]{
		cache:         c,
		fetch:         fetch,
		maxConcurrent: maxConcurrent,
		logger:        logger.With(zap.String("kind", string(c.Kind()))),
	}
}

// Cache returns the cache this fetcher fills.
func (f *Fetcher[T]) Cache() *Cache[T] { return f.cache }

// FetchMissing fetches every key that is neither cached nor in flight.
// All missing keys are claimed before the first request goes out, so an
// overlapping call with the same keys skips them instead of duplicating the
// requests. Each key fails independently: a failed key stays absent and is
// retried by the next call.
func (f *Fetcher[T]) FetchMissing(ctx context.Context, keys []string) Result {
	start := time.Now()
	f.cache.Init(ctx)

	claimed := f.cache.ClaimMissing(keys)
	res := Result{Kind: f.cache.Kind(), Failed: make(map[string]error)}

	isClaimed := make(map[string]struct{}, len(claimed))
	for _, k := range claimed {
		isClaimed[k] = struct{}{}
	}
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup || k == "" {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := isClaimed[k]; !ok {
			res.Skipped = append(res.Skipped, k)
		}
	}

	if len(claimed) == 0 {
		res.Duration = time.Since(start)
		return res
	}

	var mu sync.Mutex
	fetched := make(map[string]T, len(claimed))

	p := pool.New().WithMaxGoroutines(f.maxConcurrent)
	for _, key := range claimed {
		key := key // per-iteration copy; go.mod targets Go 1.21 loop semantics
		p.Go(func() {
			data, err := f.fetch(ctx, key)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[key] = err
				return
			}
			fetched[key] = data
		})
	}
	p.Wait()

	// Store before releasing the claims so anyone in Await sees the data.
	f.cache.PutAll(context.WithoutCancel(ctx), fetched)
	for _, key := range claimed {
		f.cache.ClearInFlight(key)
	}

	for key := range fetched {
		res.Fetched = append(res.Fetched, key)
	}
	sort.Strings(res.Fetched)
	res.Duration = time.Since(start)

	if len(res.Failed) > 0 {
		f.logger.Info("batch fetch finished with failures",
			zap.Int("fetched", len(res.Fetched)),
			zap.Strings("failed", res.FailedKeys()),
			zap.Duration("duration", res.Duration),
		)
	} else {
		f.logger.Debug("batch fetch finished",
			zap.Int("fetched", len(res.Fetched)),
			zap.Int("skipped", len(res.Skipped)),
		)
	}
	return res
}

// Fetch returns one resource, fetching it when missing and waiting for a
// concurrent fetch of the same key when another consumer holds the claim.
// The boolean is false when the resource could not be resolved.
func (f *Fetcher[T]) Fetch(ctx context.Context, key string) (T, bool, error) {
	if data, ok := f.cache.Lookup(key); ok {
		return data, true, nil
	}
	res := f.FetchMissing(ctx, []string{key})
	if err := f.cache.Await(ctx, key); err != nil {
		var zero T
		return zero, false, err
	}
	if data, ok := f.cache.Lookup(key); ok {
		return data, true, nil
	}
	var zero T
	return zero, false, res.Failed[key]
}
