package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"strconv"
	"time"

	"github.com/ovo-tools/ovocheck/internal/build"
)

// createdAtLayout sorts lexically, unlike RFC3339Nano.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

// Fingerprint accumulates the inputs of a run into a cache key. Every value
// is length prefixed so adjacent values cannot run into each other.
type Fingerprint struct {
	h hash.Hash
}

// NewFingerprint returns an empty fingerprint.
func NewFingerprint() *Fingerprint {
	return &Fingerprint{h: sha256.New()}
}

// Add mixes a labelled value into the fingerprint.
func (f *Fingerprint) Add(label string, value []byte) *Fingerprint {
	for _, b := range [][]byte{[]byte(label), value} {
		f.h.Write([]byte(strconv.Itoa(len(b))))
		f.h.Write([]byte{':'})
		f.h.Write(b)
	}
	return f
}

// AddString is Add for strings.
func (f *Fingerprint) AddString(label, value string) *Fingerprint {
	return f.Add(label, []byte(value))
}

// Sum returns the hex encoded key.
func (f *Fingerprint) Sum() string {
	return hex.EncodeToString(f.h.Sum(nil))
}

// HashContent returns the hash recorded in the file index.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached result for fingerprint. The second return is
// false on a miss.
func (c *Cache) Lookup(fingerprint string) (*build.Result, bool, error) {
	var data string
	err := c.db.QueryRow("SELECT result FROM runs WHERE fingerprint = ?", fingerprint).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup run %s: %w", fingerprint, err)
	}

	var result build.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		// A result written by an incompatible version is a miss.
		return nil, false, nil
	}
	if _, err := c.db.Exec("UPDATE runs SET hits = hits + 1 WHERE fingerprint = ?", fingerprint); err != nil {
		return nil, false, fmt.Errorf("record hit %s: %w", fingerprint, err)
	}
	return &result, true, nil
}

// Save stores result under fingerprint and evicts runs beyond MaxRuns.
func (c *Cache) Save(fingerprint string, result *build.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	_, err = tx.Exec(`
		INSERT OR REPLACE INTO runs (fingerprint, result, error_count, hits, created_at)
		VALUES (?, ?, ?, 0, ?)`,
		fingerprint, string(data), result.ErrorCount(), time.Now().UTC().Format(createdAtLayout),
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("save run %s: %w", fingerprint, err)
	}
	_, err = tx.Exec(`
		DELETE FROM runs WHERE fingerprint NOT IN (
			SELECT fingerprint FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, MaxRuns)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("evict runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
