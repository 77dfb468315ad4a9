package refminer

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Cache is an on-disk store of raw RefactoringMiner output keyed by
// commit hash. It lives in the engine's temp dir and dies with it.
type Cache struct {
	db *sql.DB
}

// OpenCache creates or opens the cache database at path.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS refactorings (
			commit_sha TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	return &Cache{db: db}, nil
}

// Get returns the cached payload for a commit, if present.
func (c *Cache) Get(commitHash string) ([]byte, bool) {
	var payload []byte
	err := c.db.QueryRow(`SELECT payload FROM refactorings WHERE commit_sha = ?`, commitHash).Scan(&payload)
	if err != nil {
		return nil, false
	}
	return payload, true
}

// Put stores the payload for a commit, replacing any previous entry.
func (c *Cache) Put(commitHash string, payload []byte) error {
	_, err := c.db.Exec(`INSERT OR REPLACE INTO refactorings (commit_sha, payload) VALUES (?, ?)`, commitHash, payload)
	return err
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
