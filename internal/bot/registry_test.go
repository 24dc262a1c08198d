package bot

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baysumehmet/botdeck/internal/game"
)

func TestRegistryPutIfAbsent(t *testing.T) {
	r := NewRegistry()
	h1 := newHandle("bot1", game.ConnectOptions{Host: "srv"})
	h2 := newHandle("bot1", game.ConnectOptions{Host: "other"})

	assert.True(t, r.putIfAbsent(h1))
	assert.False(t, r.putIfAbsent(h2), "slot is taken until the first handle dies")

	got, ok := r.Get("bot1")
	require.True(t, ok)
	assert.Same(t, h1, got)
}

func TestRegistryPutIfAbsentUnderContention(t *testing.T) {
	r := NewRegistry()

	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.putIfAbsent(newHandle("bot1", game.ConnectOptions{})) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryRemoveIfIgnoresStaleHandle(t *testing.T) {
	r := NewRegistry()
	old := newHandle("bot1", game.ConnectOptions{})
	require.True(t, r.putIfAbsent(old))
	require.True(t, r.removeIf(old))

	// A replacement landed; the old handle's late cleanup must not evict it.
	fresh := newHandle("bot1", game.ConnectOptions{})
	require.True(t, r.putIfAbsent(fresh))
	assert.False(t, r.removeIf(old))

	got, ok := r.Get("bot1")
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestRegistrySessionLookup(t *testing.T) {
	r := NewRegistry()
	h := newHandle("bot1", game.ConnectOptions{})
	require.True(t, r.putIfAbsent(h))

	// Connecting but not yet established: no session to hand out.
	_, ok := r.Session("bot1")
	assert.False(t, ok)

	sess := &fakeSession{}
	h.setSession(sess)
	got, ok := r.Session("bot1")
	require.True(t, ok)
	assert.Same(t, game.Session(sess), got)

	_, ok = r.Session("ghost")
	assert.False(t, ok)
}

func TestRegistryIdentitiesSorted(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"zeta", "alpha", "mid"} {
		require.True(t, r.putIfAbsent(newHandle(id, game.ConnectOptions{})))
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Identities())
}

func TestHandleBeginTerminalOnce(t *testing.T) {
	h := newHandle("bot1", game.ConnectOptions{})

	assert.True(t, h.beginTerminal())
	assert.False(t, h.beginTerminal(), "only the first terminal event wins")
}

func TestHandleManualStopConsumedOnce(t *testing.T) {
	h := newHandle("bot1", game.ConnectOptions{})

	assert.False(t, h.consumeManualStop())

	h.manualStop.Store(true)
	assert.True(t, h.consumeManualStop())
	assert.False(t, h.consumeManualStop(), "the flag does not survive consumption")
}
