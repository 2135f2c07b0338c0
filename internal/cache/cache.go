// Package cache provides SQLite-backed caching of check results.
// The cache is stored in .ovocheck/cache.db. A run is keyed by a fingerprint
// of everything that can change its outcome, so a hit can be replayed
// without parsing anything.
package cache

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DBName is the cache file inside the config directory.
const DBName = "cache.db"

// MaxRuns is how many run results are kept. Older ones are evicted on Save.
const MaxRuns = 64

// Cache manages the .ovocheck/cache.db SQLite database.
type Cache struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the cache database in the given .ovocheck directory.
func Open(dir string) (*Cache, error) {
	dbPath := filepath.Join(dir, DBName)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	// The CLI and a running MCP server may hold the file at the same time.
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	cache := &Cache{db: db, dbPath: dbPath}
	if err := cache.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return cache, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Clear removes all cached runs and the file index.
func (c *Cache) Clear() error {
	if _, err := c.db.Exec("DELETE FROM runs; DELETE FROM file_index;"); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (c *Cache) Path() string {
	return c.dbPath
}

// Stats describes the cache contents.
type Stats struct {
	Runs           int64 `yaml:"runs" json:"runs"`
	Hits           int64 `yaml:"hits" json:"hits"`
	FileIndexCount int64 `yaml:"files" json:"files"`
}

// GetStats returns statistics about the cache contents.
func (c *Cache) GetStats() (*Stats, error) {
	var stats Stats

	err := c.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(hits), 0) FROM runs").Scan(&stats.Runs, &stats.Hits)
	if err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}

	err = c.db.QueryRow("SELECT COUNT(*) FROM file_index").Scan(&stats.FileIndexCount)
	if err != nil {
		return nil, fmt.Errorf("count file index: %w", err)
	}
	return &stats, nil
}
