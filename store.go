package blogkit

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SnapshotStore keeps the last good copy of each rendered page's data in
// SQLite so the site can keep serving while the content API is down.
type SnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore opens (or creates) the SQLite database at path, ensures the
// data directory exists, and creates the schema.
func NewSnapshotStore(path string) (*SnapshotStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets readers proceed while a snapshot is written; busy_timeout makes
	// writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &SnapshotStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

func (s *SnapshotStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS snapshots (
    key TEXT PRIMARY KEY,
    body TEXT NOT NULL,
    saved_at TEXT NOT NULL
);
`)
	return err
}

// Save stores v, JSON encoded, under key.
func (s *SnapshotStore) Save(key string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", key, err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO snapshots (key, body, saved_at) VALUES (?, ?, ?)`,
		key, string(body), time.Now().UTC().Format(time.RFC3339))
	return err
}

// Load decodes the snapshot stored under key into v and returns when it was
// saved. It returns ErrNotFound when there is none.
func (s *SnapshotStore) Load(key string, v interface{}) (time.Time, error) {
	var body, savedAt string
	err := s.db.QueryRow(`SELECT body, saved_at FROM snapshots WHERE key = ?`, key).Scan(&body, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return time.Time{}, fmt.Errorf("snapshot %s: %w", key, err)
	}
	t, _ := time.Parse(time.RFC3339, savedAt)
	return t, nil
}

// Delete removes the snapshot stored under key.
func (s *SnapshotStore) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM snapshots WHERE key = ?`, key)
	return err
}

// Keys returns all snapshot keys in ascending order.
func (s *SnapshotStore) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM snapshots ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
