package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/baysumehmet/botdeck/internal/game"
	"github.com/baysumehmet/botdeck/internal/script"
)

// Account is the panel-level view of one saved account. It carries only
// per-account settings; the server target comes from config and is merged at
// connect time.
type Account struct {
	Username          string
	Auth              string
	AutoLoginCommands string
	CommandDelay      time.Duration
	AutoReconnect     bool
	Proxy             *game.ProxyDescriptor
}

// ConnectOptions merges the account with the default server target into the
// options handed to the session factory.
func (a *Account) ConnectOptions(host string, port int, version string) game.ConnectOptions {
	return game.ConnectOptions{
		Username:          a.Username,
		Host:              host,
		Port:              port,
		Auth:              a.Auth,
		Version:           version,
		Proxy:             a.Proxy,
		AutoLoginCommands: a.AutoLoginCommands,
		CommandDelay:      int(a.CommandDelay / time.Second),
		AutoReconnect:     a.AutoReconnect,
	}
}

// Store layers account and script semantics over the raw database.
type Store struct {
	db *DB
}

// NewStore wraps an open database.
func NewStore(db *DB) *Store { return &Store{db: db} }

// Accounts loads every saved account in stored order.
func (s *Store) Accounts() ([]*Account, error) {
	rows, err := s.db.LoadAccounts()
	if err != nil {
		return nil, err
	}
	out := make([]*Account, 0, len(rows))
	for _, r := range rows {
		a := &Account{
			Username:          r.Username,
			Auth:              r.Auth,
			AutoLoginCommands: r.AutoLoginCommands,
			CommandDelay:      time.Duration(r.CommandDelay) * time.Second,
			AutoReconnect:     r.AutoReconnect,
		}
		if len(r.ProxyJSON) > 0 {
			var p game.ProxyDescriptor
			if err := json.Unmarshal(r.ProxyJSON, &p); err != nil {
				return nil, fmt.Errorf("storage: proxy for %s: %w", r.Username, err)
			}
			a.Proxy = &p
		}
		out = append(out, a)
	}
	return out, nil
}

// SaveAccounts replaces the full account list.
func (s *Store) SaveAccounts(accounts []*Account) error {
	rows := make([]*AccountRow, 0, len(accounts))
	for _, a := range accounts {
		r := &AccountRow{
			Username:          a.Username,
			Auth:              a.Auth,
			AutoLoginCommands: a.AutoLoginCommands,
			CommandDelay:      int(a.CommandDelay / time.Second),
			AutoReconnect:     a.AutoReconnect,
		}
		if a.Proxy != nil {
			b, err := json.Marshal(a.Proxy)
			if err != nil {
				return fmt.Errorf("storage: proxy for %s: %w", a.Username, err)
			}
			r.ProxyJSON = b
		}
		rows = append(rows, r)
	}
	return s.db.SaveAccounts(rows)
}

// DeleteAccount removes one account and its script.
func (s *Store) DeleteAccount(username string) error {
	return s.db.DeleteAccount(username)
}

// Script loads the saved script tree for an identity. Returns an empty tree
// when none is saved.
func (s *Store) Script(username string) (*script.Tree, error) {
	data, err := s.db.LoadScript(username)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return script.NewTree(), nil
	}
	return script.Unmarshal(data)
}

// SaveScript persists the script tree for an identity as one blob.
func (s *Store) SaveScript(username string, tree *script.Tree) error {
	data, err := script.Marshal(tree)
	if err != nil {
		return err
	}
	return s.db.SaveScript(username, data)
}

// LastModified proxies the database change stamp for the watcher.
func (s *Store) LastModified() (int64, error) { return s.db.LastModified() }
