// Package cache stores compiled programs in SQLite, keyed by a hash of
// their source, so that unchanged sources are not recompiled.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/push/vm"
)

var log = commonlog.GetLogger("push.cache")

// formatVersion is bumped whenever the binary program layout changes.
const formatVersion = 1

// Cache handles SQLite storage for compiled programs.
type Cache struct {
	db     *sql.DB
	dbPath string
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries int
	Hits    int
	Bytes   int
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		key TEXT PRIMARY KEY,
		build_id TEXT NOT NULL,
		program BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		hits INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened %s", path)
	return &Cache{db: db, dbPath: path}, nil
}

// Path returns the database path.
func (c *Cache) Path() string {
	return c.dbPath
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Key returns the cache key for source: a hex SHA-256 over the built-in
// table version, the program format version and the source text.
func Key(source string) string {
	h := sha256.New()
	var versions [16]byte
	binary.LittleEndian.PutUint64(versions[:8], vm.BuiltinsVersion)
	binary.LittleEndian.PutUint64(versions[8:], formatVersion)
	h.Write(versions[:])
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached program for source and the build id it was stored
// under. ok is false on a miss.
func (c *Cache) Get(source string) (program []byte, buildID string, ok bool, err error) {
	key := Key(source)
	err = c.db.QueryRow("SELECT program, build_id FROM programs WHERE key = ?", key).Scan(&program, &buildID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", false, nil
		}
		return nil, "", false, fmt.Errorf("querying program: %w", err)
	}

	if _, err := c.db.Exec("UPDATE programs SET hits = hits + 1 WHERE key = ?", key); err != nil {
		return nil, "", false, fmt.Errorf("counting hit: %w", err)
	}
	log.Debugf("hit %s (build %s)", key[:12], buildID)
	return program, buildID, true, nil
}

// Put stores a compiled program for source and returns its new build id.
func (c *Cache) Put(source string, program []byte) (string, error) {
	buildID := uuid.New().String()
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO programs (key, build_id, program, created_at, hits) VALUES (?, ?, ?, ?, 0)",
		Key(source), buildID, program, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("saving program: %w", err)
	}
	log.Debugf("stored build %s (%d bytes)", buildID, len(program))
	return buildID, nil
}

// Stats returns entry, hit and size totals.
func (c *Cache) Stats() (Stats, error) {
	var s Stats
	err := c.db.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(hits), 0), COALESCE(SUM(LENGTH(program)), 0) FROM programs",
	).Scan(&s.Entries, &s.Hits, &s.Bytes)
	if err != nil {
		return Stats{}, fmt.Errorf("querying stats: %w", err)
	}
	return s, nil
}

// Clear removes every cached program.
func (c *Cache) Clear() error {
	if _, err := c.db.Exec("DELETE FROM programs"); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}
