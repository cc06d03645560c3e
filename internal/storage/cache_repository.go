package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/pokemmo-companion/internal/cache"
	"github.com/fleveque/pokemmo-companion/internal/model"
)

// sqlitePersister stores cache records in the cache_entries table.
// Only the cache.Persister interface is exported; the struct stays private.
type sqlitePersister struct {
	db *sqlx.DB
}

// NewSQLitePersister creates a SQLite-backed cache persister.
func NewSQLitePersister(db *sqlx.DB) cache.Persister {
	return &sqlitePersister{db: db}
}

func (p *sqlitePersister) Load(ctx context.Context, kind model.ResourceKind) ([]model.CacheRecord, error) {
	var records []model.CacheRecord
	err := p.db.SelectContext(ctx, &records,
		"SELECT cache_key, data, fetched_at FROM cache_entries WHERE kind = ?", kind)
	if err != nil {
		return nil, fmt.Errorf("loading %s cache entries: %w", kind, err)
	}
	return records, nil
}

// Save upserts all records in one transaction so a batch lands together.
func (p *sqlitePersister) Save(ctx context.Context, kind model.ResourceKind, records []model.CacheRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting cache transaction: %w", err)
	}
	// Rollback after Commit is a no-op, so deferring it covers every early return.
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO cache_entries (kind, cache_key, data, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(kind, cache_key) DO UPDATE SET
			data = excluded.data,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return fmt.Errorf("preparing cache upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, kind, rec.Key, []byte(rec.Data), rec.FetchedAt.UTC()); err != nil {
			return fmt.Errorf("saving %s cache entry %s: %w", kind, rec.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing cache entries: %w", err)
	}
	return nil
}

func (p *sqlitePersister) Clear(ctx context.Context, kind model.ResourceKind) error {
	if _, err := p.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE kind = ?", kind); err != nil {
		return fmt.Errorf("clearing %s cache entries: %w", kind, err)
	}
	return nil
}
