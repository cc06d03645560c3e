package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/pokemmo-companion/internal/cache"
	"github.com/fleveque/pokemmo-companion/internal/model"
)

// Cache engines accepted by NewPersister.
const (
	EngineSQLite = "sqlite"
	EngineJSON   = "json"
	EngineMemory = "memory"
	EngineRedis  = "redis"
)

// PersisterOptions carries what each engine needs. Only the fields for the
// selected engine are read.
type PersisterOptions struct {
	DB        *sqlx.DB
	CacheFile string
	RedisURL  string
	KeyPrefix string
}

// NewPersister picks a cache backend by engine name. The returned closer
// releases engine-owned resources (the Redis client); it is never nil.
func NewPersister(engine string, opts PersisterOptions) (cache.Persister, func() error, error) {
	noop := func() error { return nil }

	switch engine {
	case "", EngineSQLite:
		if opts.DB == nil {
			return nil, noop, fmt.Errorf("sqlite cache engine needs a database")
		}
		return NewSQLitePersister(opts.DB), noop, nil
	case EngineJSON:
		if opts.CacheFile == "" {
			return nil, noop, fmt.Errorf("json cache engine needs storage.cache_file")
		}
		return NewJSONFilePersister(opts.CacheFile), noop, nil
	case EngineMemory:
		return NewMemoryPersister(), noop, nil
	case EngineRedis:
		p, err := NewRedisPersister(opts.RedisURL, opts.KeyPrefix)
		if err != nil {
			return nil, noop, err
		}
		return p, p.Close, nil
	default:
		return nil, noop, fmt.Errorf("unsupported cache engine: %s", engine)
	}
}

// MemoryPersister keeps records in process memory. It backs the "memory"
// engine and doubles as a test helper.
type MemoryPersister struct {
	mu      sync.Mutex
	records map[model.ResourceKind]map[string]model.CacheRecord
}

// NewMemoryPersister creates an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{records: make(map[model.ResourceKind]map[string]model.CacheRecord)}
}

func (m *MemoryPersister) Load(_ context.Context, kind model.ResourceKind) ([]model.CacheRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.CacheRecord, 0, len(m.records[kind]))
	for _, rec := range m.records[kind] {
		out = append(out, rec)
	}
	return out, nil
}

func (m *MemoryPersister) Save(_ context.Context, kind model.ResourceKind, records []model.CacheRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.records[kind]
	if !ok {
		bucket = make(map[string]model.CacheRecord)
		m.records[kind] = bucket
	}
	for _, rec := range records {
		bucket[rec.Key] = rec
	}
	return nil
}

func (m *MemoryPersister) Clear(_ context.Context, kind model.ResourceKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, kind)
	return nil
}
