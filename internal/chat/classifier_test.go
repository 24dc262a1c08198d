package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baysumehmet/botdeck/internal/game"
)

func TestClassifyFormats(t *testing.T) {
	c := New("MyBot")

	tests := []struct {
		name       string
		raw        string
		position   game.MessagePosition
		wantSender string
		wantText   string
		wantOK     bool
	}{
		{"angle brackets", "<Steve> hello world", game.PositionChat, "Steve", "hello world", true},
		{"single tag", "[Mod] Notch: watch it", game.PositionChat, "Notch", "watch it", true},
		{"stacked tags", "[VIP][Admin] Notch: hi", game.PositionChat, "Notch", "hi", true},
		{"whisper", "Alex whispers: psst", game.PositionChat, "Alex", "psst", true},
		{"whisper to you", "Alex whispers to you: over here", game.PositionChat, "Alex", "over here", true},
		{"plain colon", "Steve: hello", game.PositionChat, "Steve", "hello", true},
		{"arrow separator tag", "[Srv] Steve > hey", game.PositionChat, "Steve", "hey", true},
		{"unparseable", "Steve has joined the game", game.PositionSystem, FallbackSender, "Steve has joined the game", true},
		{"empty message body", "<Steve>", game.PositionChat, "Steve", "", true},
		{"blank", "   ", game.PositionChat, "", "", false},
		{"action bar dropped", "<Steve> hi", game.MessagePosition("game_info"), "", "", false},
		{"system position kept", "<Steve> hi", game.PositionSystem, "Steve", "hi", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := c.Classify(tt.raw, tt.position)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantSender, msg.Sender)
				assert.Equal(t, tt.wantText, msg.Message)
			}
		})
	}
}

func TestClassifySuppressesSelf(t *testing.T) {
	c := New("MyBot")

	_, ok := c.Classify("<MyBot> hello", game.PositionChat)
	assert.False(t, ok, "own echo must be dropped")

	// Case-insensitive: servers often lowercase names in some formats.
	_, ok = c.Classify("<mybot> hello", game.PositionChat)
	assert.False(t, ok)

	// Self-suppression applies after extraction, not on substring presence.
	msg, ok := c.Classify("<Steve> MyBot come here", game.PositionChat)
	require.True(t, ok)
	assert.Equal(t, "Steve", msg.Sender)
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// A line matching both the tagged and plain rules must take the tagged
	// rule's extraction: the tag is not part of the sender.
	c := New("MyBot")
	msg, ok := c.Classify("[Helper] Alex: hi there", game.PositionChat)
	require.True(t, ok)
	assert.Equal(t, "Alex", msg.Sender)
	assert.Equal(t, "hi there", msg.Message)
}

func TestClassifyCustomRules(t *testing.T) {
	// Server-specific rule prepended ahead of the defaults.
	rules := append([]Rule{
		MustRule("guild", `^\(G\) ([A-Za-z0-9_]{1,16}) » (.*)$`),
	}, DefaultRules()...)
	c := New("MyBot", rules...)

	msg, ok := c.Classify("(G) Steve » guild hello", game.PositionChat)
	require.True(t, ok)
	assert.Equal(t, "Steve", msg.Sender)
	assert.Equal(t, "guild hello", msg.Message)

	// Defaults still apply after the custom rule.
	msg, ok = c.Classify("<Alex> plain", game.PositionChat)
	require.True(t, ok)
	assert.Equal(t, "Alex", msg.Sender)
}
