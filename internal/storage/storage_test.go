package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baysumehmet/botdeck/internal/game"
	"github.com/baysumehmet/botdeck/internal/script"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenCreatesSchema(t *testing.T) {
	db := openTestDB(t)

	version, err := db.GetMeta("schema_version")
	require.NoError(t, err)
	assert.Equal(t, "1", version)

	rows, err := db.LoadAccounts()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAccountRoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)

	accounts := []*Account{
		{
			Username:          "alpha",
			Auth:              "microsoft",
			AutoLoginCommands: "/login pw\n/home",
			CommandDelay:      7 * time.Second,
			AutoReconnect:     true,
			Proxy:             &game.ProxyDescriptor{Scheme: "socks5", Host: "127.0.0.1", Port: 1080},
		},
		{Username: "beta", Auth: "offline"},
	}
	require.NoError(t, store.SaveAccounts(accounts))

	loaded, err := store.Accounts()
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	alpha := loaded[0]
	assert.Equal(t, "alpha", alpha.Username)
	assert.Equal(t, "microsoft", alpha.Auth)
	assert.Equal(t, 7*time.Second, alpha.CommandDelay)
	assert.True(t, alpha.AutoReconnect)
	require.NotNil(t, alpha.Proxy)
	assert.Equal(t, "socks5", alpha.Proxy.Scheme)
	assert.Equal(t, 1080, alpha.Proxy.Port)

	beta := loaded[1]
	assert.Equal(t, "beta", beta.Username)
	assert.Nil(t, beta.Proxy)
	assert.False(t, beta.AutoReconnect)
}

func TestSaveAccountsReplacesAndKeepsOrder(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)

	require.NoError(t, store.SaveAccounts([]*Account{
		{Username: "old1"}, {Username: "old2"},
	}))
	require.NoError(t, store.SaveAccounts([]*Account{
		{Username: "zeta"}, {Username: "alpha"}, {Username: "mid"},
	}))

	loaded, err := store.Accounts()
	require.NoError(t, err)
	names := make([]string, len(loaded))
	for i, a := range loaded {
		names[i] = a.Username
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names, "insertion order survives, not sorted")
}

func TestAccountConnectOptionsMerge(t *testing.T) {
	a := &Account{
		Username:          "alpha",
		Auth:              "offline",
		AutoLoginCommands: "/login pw",
		CommandDelay:      3 * time.Second,
		AutoReconnect:     true,
	}
	opts := a.ConnectOptions("play.example.org", 25599, "1.20.4")

	assert.Equal(t, "alpha", opts.Username)
	assert.Equal(t, "play.example.org", opts.Host)
	assert.Equal(t, 25599, opts.Port)
	assert.Equal(t, "1.20.4", opts.Version)
	assert.Equal(t, 3, opts.CommandDelay)
	assert.True(t, opts.AutoReconnect)
}

func TestScriptRoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)

	tree := script.NewTree()
	repeatID, err := tree.AddCommand(script.KindRepeat, script.Params{"times": 2.0})
	require.NoError(t, err)
	_, err = tree.AddChild(repeatID, script.KindSay, script.Params{"message": "hi"})
	require.NoError(t, err)

	require.NoError(t, store.SaveScript("alpha", tree))

	loaded, err := store.Script("alpha")
	require.NoError(t, err)
	assert.Equal(t, tree.Len(), loaded.Len())

	// No script saved yet: empty tree, not an error.
	empty, err := store.Script("nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestSaveScriptOverwrites(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)

	first := script.NewTree()
	_, _ = first.AddCommand(script.KindWait, script.Params{"milliseconds": 100.0})
	require.NoError(t, store.SaveScript("alpha", first))

	second := script.NewTree()
	_, _ = second.AddCommand(script.KindSay, script.Params{"message": "v2"})
	_, _ = second.AddCommand(script.KindWait, script.Params{"milliseconds": 50.0})
	require.NoError(t, store.SaveScript("alpha", second))

	loaded, err := store.Script("alpha")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
}

func TestDeleteAccountRemovesScript(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)

	require.NoError(t, store.SaveAccounts([]*Account{{Username: "alpha"}}))
	tree := script.NewTree()
	_, _ = tree.AddCommand(script.KindSay, script.Params{"message": "x"})
	require.NoError(t, store.SaveScript("alpha", tree))

	require.NoError(t, store.DeleteAccount("alpha"))

	loaded, err := store.Accounts()
	require.NoError(t, err)
	assert.Empty(t, loaded)

	orphan, err := store.Script("alpha")
	require.NoError(t, err)
	assert.Equal(t, 0, orphan.Len(), "the script goes with the account")
}

func TestTouchAdvancesLastModified(t *testing.T) {
	db := openTestDB(t)

	before, err := db.LastModified()
	require.NoError(t, err)

	require.NoError(t, db.Touch())
	after, err := db.LastModified()
	require.NoError(t, err)
	assert.Greater(t, after, before)
}
