package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/pokemmo-companion/internal/model"
)

// ErrNotFound is returned when a stored item doesn't exist.
// Go uses sentinel errors (predefined error values) instead of exception types.
// Callers check with errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("not found")

// FetchStats summarizes the upstream log for one resource kind.
type FetchStats struct {
	Kind          model.ResourceKind `db:"kind" json:"kind"`
	Total         int64              `db:"total" json:"total"`
	Failed        int64              `db:"failed" json:"failed"`
	AvgDurationMs float64            `db:"avg_duration_ms" json:"avg_duration_ms"`
}

// FetchLogRepository records every upstream PokeAPI call.
// Go interfaces are implicit: a test fake only needs these methods.
type FetchLogRepository interface {
	Create(ctx context.Context, fetch *model.UpstreamFetch) error
	CountByKey(ctx context.Context, kind model.ResourceKind, key string) (int64, error)
	StatsByKind(ctx context.Context) ([]FetchStats, error)
	Recent(ctx context.Context, limit int) ([]model.UpstreamFetch, error)
}

type sqliteFetchLogRepository struct {
	db *sqlx.DB
}

// NewFetchLogRepository creates a new SQLite-backed FetchLogRepository.
func NewFetchLogRepository(db *sqlx.DB) FetchLogRepository {
	return &sqliteFetchLogRepository{db: db}
}

func (r *sqliteFetchLogRepository) Create(ctx context.Context, fetch *model.UpstreamFetch) error {
	// NamedExecContext uses the struct's `db:` tags to map fields to :named placeholders.
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO upstream_fetches (kind, resource_key, success, status_code, duration_ms)
		VALUES (:kind, :resource_key, :success, :status_code, :duration_ms)
	`, fetch)
	if err != nil {
		return fmt.Errorf("creating upstream fetch record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	fetch.ID = id
	return nil
}

func (r *sqliteFetchLogRepository) CountByKey(ctx context.Context, kind model.ResourceKind, key string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM upstream_fetches WHERE kind = ? AND resource_key = ?", kind, key)
	return count, err
}

func (r *sqliteFetchLogRepository) StatsByKind(ctx context.Context) ([]FetchStats, error) {
	var stats []FetchStats
	err := r.db.SelectContext(ctx, &stats, `
		SELECT kind,
		       COUNT(*) AS total,
		       SUM(CASE WHEN success THEN 0 ELSE 1 END) AS failed,
		       COALESCE(AVG(duration_ms), 0) AS avg_duration_ms
		FROM upstream_fetches
		GROUP BY kind
		ORDER BY kind
	`)
	if err != nil {
		return nil, fmt.Errorf("aggregating upstream fetches: %w", err)
	}
	return stats, nil
}

func (r *sqliteFetchLogRepository) Recent(ctx context.Context, limit int) ([]model.UpstreamFetch, error) {
	var fetches []model.UpstreamFetch
	err := r.db.SelectContext(ctx, &fetches,
		"SELECT * FROM upstream_fetches ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent upstream fetches: %w", err)
	}
	return fetches, nil
}
