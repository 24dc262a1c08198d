package ui

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatLogPerIdentityScrollback(t *testing.T) {
	log := NewChatLog()
	log.AddChat("alpha", "Steve", "hello")
	log.AddSelf("alpha", "hi back")
	log.AddSystem("beta", "logged in to server")

	assert.Equal(t, 2, log.Len("alpha"))
	assert.Equal(t, 1, log.Len("beta"))

	log.Clear("alpha")
	assert.Equal(t, 0, log.Len("alpha"))
	assert.Equal(t, 1, log.Len("beta"))
}

func TestChatLogCapsScrollback(t *testing.T) {
	log := NewChatLog()
	for i := 0; i < maxChatLines+50; i++ {
		log.AddChat("alpha", "Steve", fmt.Sprintf("line %d", i))
	}
	assert.Equal(t, maxChatLines, log.Len("alpha"))

	// The oldest lines fell off; the newest survived.
	out := log.Render("alpha", 200, maxChatLines)
	assert.NotContains(t, out, "line 0\n")
	assert.Contains(t, out, fmt.Sprintf("line %d", maxChatLines+49))
}

func TestChatLogRenderShowsLastLines(t *testing.T) {
	log := NewChatLog()
	log.AddChat("alpha", "Steve", "first")
	log.AddChat("alpha", "Steve", "second")
	log.AddChat("alpha", "Steve", "third")

	out := log.Render("alpha", 200, 2)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "second")
	assert.Contains(t, lines[1], "third")
}

func TestRenderChatLineKinds(t *testing.T) {
	log := NewChatLog()
	log.AddChat("alpha", "Steve", "hello")
	log.AddSelf("alpha", "my line")
	log.AddSystem("alpha", "reconnecting in 5s")

	out := stripANSI(log.Render("alpha", 200, 10))
	assert.Contains(t, out, "<Steve> hello")
	assert.Contains(t, out, "<alpha> my line")
	assert.Contains(t, out, "* reconnecting in 5s")
}

func TestRenderChatLineTruncatesWide(t *testing.T) {
	log := NewChatLog()
	log.AddChat("alpha", "Steve", strings.Repeat("x", 300))

	out := log.Render("alpha", 40, 1)
	for _, line := range strings.Split(out, "\n") {
		plain := stripANSI(line)
		assert.LessOrEqual(t, len([]rune(plain)), 40)
	}
	assert.Contains(t, out, "…")
}

func TestStripANSI(t *testing.T) {
	styled := "\x1b[38;5;110mhello\x1b[0m world"
	assert.Equal(t, "hello world", stripANSI(styled))
	assert.Equal(t, "plain", stripANSI("plain"))
}
