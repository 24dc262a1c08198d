package storage

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baysumehmet/botdeck/internal/script"
)

func TestWatcherIgnoresOwnSaves(t *testing.T) {
	db := openTestDB(t)

	var changes atomic.Int32
	w := NewWatcher(db, func() { changes.Add(1) })
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// Saves through this handle mark themselves, so the filesystem events
	// they cause must not come back as reload prompts.
	store := NewStore(db)
	tree := script.NewTree()
	_, err := tree.AddCommand(script.KindWait, script.Params{"milliseconds": 10.0})
	require.NoError(t, err)
	require.NoError(t, store.SaveScript("alpha", tree))

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(0), changes.Load())
}

func TestWatcherReportsExternalWrites(t *testing.T) {
	db := openTestDB(t)

	var changes atomic.Int32
	w := NewWatcher(db, func() { changes.Add(1) })
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// A second handle on the same file stands in for another panel
	// instance; its writes carry no self-save mark.
	external, err := Open(db.Path())
	require.NoError(t, err)
	defer external.Close()
	require.NoError(t, external.Touch())

	require.Eventually(t, func() bool {
		return changes.Load() >= 1
	}, 2*time.Second, 20*time.Millisecond)
}
