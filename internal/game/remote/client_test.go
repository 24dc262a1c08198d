package remote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baysumehmet/botdeck/internal/game"
)

// Event dispatch never touches the socket, so a bare client with callbacks
// is enough to exercise it.
func TestDispatchEventInvokesCallbacks(t *testing.T) {
	var calls []string
	var health, food float64
	var raw string
	var pos game.MessagePosition

	c := &client{
		identity: "bot1",
		pending:  map[uint32]chan callResult{},
		cb: game.Callbacks{
			OnLogin: func() { calls = append(calls, "login") },
			OnSpawn: func() { calls = append(calls, "spawn") },
			OnStat: func(h, f float64) {
				calls = append(calls, "stat")
				health, food = h, f
			},
			OnMessage: func(r string, p game.MessagePosition) {
				calls = append(calls, "message")
				raw, pos = r, p
			},
			OnChestOpen:   func() { calls = append(calls, "chest_open") },
			OnChestClose:  func() { calls = append(calls, "chest_close") },
			OnGoalReached: func() { calls = append(calls, "goal_reached") },
		},
	}

	c.dispatchEvent(frame{Event: "login"})
	c.dispatchEvent(frame{Event: "spawn"})
	c.dispatchEvent(frame{Event: "stat", Data: json.RawMessage(`{"health":17,"food":20}`)})
	c.dispatchEvent(frame{Event: "message", Data: json.RawMessage(`{"raw":"<Steve> hi","position":"chat"}`)})
	c.dispatchEvent(frame{Event: "chest_open"})
	c.dispatchEvent(frame{Event: "chest_close"})
	c.dispatchEvent(frame{Event: "goal_reached"})
	c.dispatchEvent(frame{Event: "some_future_event"})

	require.Equal(t, []string{
		"login", "spawn", "stat", "message",
		"chest_open", "chest_close", "goal_reached",
	}, calls)
	assert.Equal(t, 17.0, health)
	assert.Equal(t, 20.0, food)
	assert.Equal(t, "<Steve> hi", raw)
	assert.Equal(t, game.PositionChat, pos)
}

func TestDispatchEventToleratesNilCallbacks(t *testing.T) {
	c := &client{identity: "bot1", pending: map[uint32]chan callResult{}}

	c.dispatchEvent(frame{Event: "login"})
	c.dispatchEvent(frame{Event: "chest_open"})
	c.dispatchEvent(frame{Event: "chest_close"})
	c.dispatchEvent(frame{Event: "goal_reached"})
}
