// Package storage persists botdeck state (accounts, server defaults and
// per-identity scripts) in a single SQLite database. WAL mode plus a busy
// timeout lets a second panel instance read safely while this one writes.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion tracks the current database schema. Bump when adding
// migrations.
const SchemaVersion = 1

// DB wraps the SQLite state database. Thread-safe for concurrent use within
// one process.
type DB struct {
	db   *sql.DB
	path string

	hookMu sync.Mutex
	onSave func()
}

// AccountRow is one saved account.
type AccountRow struct {
	Username          string
	Auth              string
	AutoLoginCommands string
	CommandDelay      int
	AutoReconnect     bool
	ProxyJSON         json.RawMessage
	Position          int
}

// Open creates or opens the state database at dbPath.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("storage: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}

	// WAL mode: allows concurrent readers while writing
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: wal mode: %w", err)
	}

	// Busy timeout: wait up to 5s if another process holds a lock
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: busy timeout: %w", err)
	}

	s := &DB{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close checkpoints WAL and closes the database.
func (s *DB) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// Path returns the database file location.
func (s *DB) Path() string { return s.path }

func (s *DB) migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("storage: create metadata: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			username            TEXT PRIMARY KEY,
			auth                TEXT NOT NULL DEFAULT '',
			auto_login_commands TEXT NOT NULL DEFAULT '',
			command_delay       INTEGER NOT NULL DEFAULT 5,
			auto_reconnect      INTEGER NOT NULL DEFAULT 0,
			proxy_json          TEXT,
			position            INTEGER NOT NULL DEFAULT 0
		)
	`); err != nil {
		return fmt.Errorf("storage: create accounts: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS scripts (
			username TEXT PRIMARY KEY,
			data     TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("storage: create scripts: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, strconv.Itoa(SchemaVersion)); err != nil {
		return fmt.Errorf("storage: set schema version: %w", err)
	}

	return tx.Commit()
}

// SaveAccounts replaces the accounts table with the given rows in one
// transaction. Row order is preserved via the position column.
func (s *DB) SaveAccounts(rows []*AccountRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: begin save accounts: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM accounts"); err != nil {
		return fmt.Errorf("storage: clear accounts: %w", err)
	}
	for i, r := range rows {
		var proxy any
		if len(r.ProxyJSON) > 0 {
			proxy = string(r.ProxyJSON)
		}
		if _, err := tx.Exec(`
			INSERT INTO accounts
				(username, auth, auto_login_commands, command_delay, auto_reconnect, proxy_json, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.Username, r.Auth, r.AutoLoginCommands, r.CommandDelay, boolToInt(r.AutoReconnect), proxy, i); err != nil {
			return fmt.Errorf("storage: insert account %s: %w", r.Username, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit accounts: %w", err)
	}
	return s.Touch()
}

// LoadAccounts returns all saved accounts in their stored order.
func (s *DB) LoadAccounts() ([]*AccountRow, error) {
	rows, err := s.db.Query(`
		SELECT username, auth, auto_login_commands, command_delay, auto_reconnect, proxy_json
		FROM accounts ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("storage: load accounts: %w", err)
	}
	defer rows.Close()

	var out []*AccountRow
	for rows.Next() {
		r := &AccountRow{}
		var reconnect int
		var proxy sql.NullString
		if err := rows.Scan(&r.Username, &r.Auth, &r.AutoLoginCommands, &r.CommandDelay, &reconnect, &proxy); err != nil {
			return nil, fmt.Errorf("storage: scan account: %w", err)
		}
		r.AutoReconnect = reconnect != 0
		if proxy.Valid && proxy.String != "" {
			r.ProxyJSON = json.RawMessage(proxy.String)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteAccount removes one account and its script.
func (s *DB) DeleteAccount(username string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: begin delete account: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM accounts WHERE username = ?", username); err != nil {
		return fmt.Errorf("storage: delete account %s: %w", username, err)
	}
	if _, err := tx.Exec("DELETE FROM scripts WHERE username = ?", username); err != nil {
		return fmt.Errorf("storage: delete script %s: %w", username, err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return s.Touch()
}

// SaveScript stores an identity's script as one JSON blob. Scripts load and
// save as whole units, never incrementally.
func (s *DB) SaveScript(username string, data []byte) error {
	if _, err := s.db.Exec(`
		INSERT INTO scripts (username, data) VALUES (?, ?)
		ON CONFLICT(username) DO UPDATE SET data = excluded.data
	`, username, string(data)); err != nil {
		return fmt.Errorf("storage: save script %s: %w", username, err)
	}
	return s.Touch()
}

// LoadScript returns an identity's script blob, or nil when none is saved.
func (s *DB) LoadScript(username string) ([]byte, error) {
	var data string
	err := s.db.QueryRow("SELECT data FROM scripts WHERE username = ?", username).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load script %s: %w", username, err)
	}
	return []byte(data), nil
}

// SetMeta stores one metadata key.
func (s *DB) SetMeta(key, value string) error {
	if _, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value); err != nil {
		return fmt.Errorf("storage: set meta %s: %w", key, err)
	}
	return nil
}

// GetMeta returns one metadata value, or "" when absent.
func (s *DB) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("storage: get meta %s: %w", key, err)
	}
	return value, nil
}

// setOnSave registers a hook invoked after every Touch. The watcher uses it
// to tell this process's writes apart from another instance's.
func (s *DB) setOnSave(fn func()) {
	s.hookMu.Lock()
	s.onSave = fn
	s.hookMu.Unlock()
}

// Touch records the current time for change detection by other instances.
// Every save path ends here, so the save hook sees all of them.
func (s *DB) Touch() error {
	if err := s.SetMeta("last_modified", strconv.FormatInt(time.Now().UnixNano(), 10)); err != nil {
		return err
	}
	s.hookMu.Lock()
	fn := s.onSave
	s.hookMu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

// LastModified returns the last Touch timestamp in unix nanos (0 if never).
func (s *DB) LastModified() (int64, error) {
	v, err := s.GetMeta("last_modified")
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
