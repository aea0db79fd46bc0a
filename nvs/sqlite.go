package nvs

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS kv (
  namespace TEXT NOT NULL,
  key TEXT NOT NULL,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT (datetime('now')),
  PRIMARY KEY (namespace, key)
);
`

// SQLite is a Store backed by a single table keyed by (namespace, key).
type SQLite struct {
	db        *sql.DB
	namespace string
}

// OpenSQLite opens (creating if needed) the database at path and scopes all
// access to namespace.
func OpenSQLite(path, namespace string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("nvs path is required")
	}
	if namespace == "" {
		return nil, errors.New("nvs namespace is required")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	connStr := fmt.Sprintf("%s?_journal=WAL&_busy_timeout=5000&mode=rwc", path)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("open nvs: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db, namespace: namespace}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) get(key string) (string, error) {
	var v string
	err := s.db.QueryRow(
		"SELECT value FROM kv WHERE namespace = ? AND key = ?",
		s.namespace, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (s *SQLite) put(key, v string) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (namespace, key, value, updated_at) VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.namespace, key, v,
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) GetInt(key string) (int, error) {
	v, err := s.get(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	return n, nil
}

func (s *SQLite) PutInt(key string, v int) error {
	return s.put(key, strconv.Itoa(v))
}

func (s *SQLite) GetBool(key string) (bool, error) {
	v, err := s.get(key)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	return b, nil
}

func (s *SQLite) PutBool(key string, v bool) error {
	return s.put(key, strconv.FormatBool(v))
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}
