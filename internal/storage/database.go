// Package storage handles data persistence: the SQLite database, the
// container dump files, the sprite files and the cache persisters.
package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // Blank import: registers the SQLite driver.
	// In Go, importing a package for its side effects (init function) is done
	// with `_`. The sqlite3 package registers itself as a database/sql driver.
)

// The schema lives in a const so it ships inside the binary and no migration
// files need to exist at runtime.
//
// cache_entries is the default persister behind the resource caches: one row
// per (kind, key) holding the flattened JSON. upstream_fetches is an
// append-only log of every PokeAPI call, read by the admin stats endpoint.
const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
    kind       TEXT NOT NULL,
    cache_key  TEXT NOT NULL,
    data       BLOB NOT NULL,
    fetched_at DATETIME NOT NULL,
    PRIMARY KEY (kind, cache_key)
);

CREATE TABLE IF NOT EXISTS upstream_fetches (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    kind         TEXT NOT NULL,
    resource_key TEXT NOT NULL,
    success      BOOLEAN NOT NULL DEFAULT 0,
    status_code  INTEGER NOT NULL DEFAULT 0,
    duration_ms  INTEGER NOT NULL DEFAULT 0,
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_upstream_fetches_kind ON upstream_fetches(kind);
CREATE INDEX IF NOT EXISTS idx_upstream_fetches_key ON upstream_fetches(kind, resource_key);
`

// NewDatabase creates a new SQLite connection and runs migrations.
// sqlx wraps database/sql with convenience methods like StructScan and NamedExec.
func NewDatabase(dbPath string) (*sqlx.DB, error) {
	// WAL lets readers proceed while the single writer commits; busy_timeout
	// waits on lock contention instead of failing right away.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Ping actually opens the connection (Open is lazy in database/sql)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// SQLite performs best with a single writer connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}
