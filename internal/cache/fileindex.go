package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"
)

// FileEntry holds the last checked content hash of a file.
type FileEntry struct {
	FilePath    string
	ContentHash string
	CheckedAt   time.Time
}

// GetFileEntry retrieves the entry for path.
// Returns sql.ErrNoRows if the file has not been checked.
func (c *Cache) GetFileEntry(path string) (*FileEntry, error) {
	var entry FileEntry
	var checkedAt string
	err := c.db.QueryRow(`
		SELECT file_path, content_hash, checked_at FROM file_index WHERE file_path = ?`,
		path).Scan(&entry.FilePath, &entry.ContentHash, &checkedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get file entry %s: %w", path, err)
	}
	entry.CheckedAt, _ = time.Parse(time.RFC3339, checkedAt)
	return &entry, nil
}

// RecordFiles stores the content hashes of a run's files, keyed by path.
func (c *Cache) RecordFiles(hashes map[string]string) error {
	if len(hashes) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO file_index (file_path, content_hash, checked_at)
		VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Format(time.RFC3339)
	for path, hash := range hashes {
		if _, err := stmt.Exec(path, hash, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("save file entry %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ChangedFiles returns the paths in hashes whose content differs from the
// recorded hash or that were never recorded, sorted.
func (c *Cache) ChangedFiles(hashes map[string]string) ([]string, error) {
	var changed []string
	for path, hash := range hashes {
		entry, err := c.GetFileEntry(path)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			changed = append(changed, path)
		case err != nil:
			return nil, err
		case entry.ContentHash != hash:
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	return changed, nil
}

// PruneMissing removes entries for files that no longer exist and returns
// how many were removed.
func (c *Cache) PruneMissing() (int, error) {
	rows, err := c.db.Query("SELECT file_path FROM file_index")
	if err != nil {
		return 0, fmt.Errorf("query file entries: %w", err)
	}
	var stale []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan row: %w", err)
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			stale = append(stale, path)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate rows: %w", err)
	}

	for i, path := range stale {
		if _, err := c.db.Exec("DELETE FROM file_index WHERE file_path = ?", path); err != nil {
			return i, fmt.Errorf("delete file entry %s: %w", path, err)
		}
	}
	return len(stale), nil
}
