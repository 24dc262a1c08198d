package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sidebarFixture() []BotItem {
	return []BotItem{
		{Username: "miner-alpha", Online: true},
		{Username: "farmer-beta"},
		{Username: "scout-gamma", Online: true, Reconnecting: false},
		{Username: "miner-delta", Reconnecting: true},
	}
}

func TestFilterBotsEmptyQueryPassthrough(t *testing.T) {
	items := sidebarFixture()
	assert.Equal(t, items, filterBots(items, ""))
	assert.Equal(t, items, filterBots(items, "   "))
}

func TestFilterBotsFuzzyMatch(t *testing.T) {
	got := filterBots(sidebarFixture(), "miner")
	require.Len(t, got, 2)
	names := []string{got[0].Username, got[1].Username}
	assert.Contains(t, names, "miner-alpha")
	assert.Contains(t, names, "miner-delta")

	assert.Empty(t, filterBots(sidebarFixture(), "zzzz"))
}

func TestFilterBotsSubsequenceMatch(t *testing.T) {
	got := filterBots(sidebarFixture(), "sgm")
	require.NotEmpty(t, got)
	assert.Equal(t, "scout-gamma", got[0].Username)
}

func TestRenderBotRowStates(t *testing.T) {
	online := stripANSI(renderBotRow(BotItem{Username: "alpha", Online: true}, false, 40))
	assert.Contains(t, online, "●")
	assert.Contains(t, online, "alpha")

	offline := stripANSI(renderBotRow(BotItem{Username: "beta"}, false, 40))
	assert.Contains(t, offline, "○")

	reconnecting := stripANSI(renderBotRow(BotItem{Username: "gamma", Reconnecting: true}, false, 40))
	assert.Contains(t, reconnecting, "◌")

	afk := stripANSI(renderBotRow(BotItem{Username: "delta", Online: true, AntiAfk: true, Health: 20}, false, 40))
	assert.Contains(t, afk, "⟳")
	assert.Contains(t, afk, "20♥")
}

func TestRenderBotRowSelection(t *testing.T) {
	selected := stripANSI(renderBotRow(BotItem{Username: "alpha"}, true, 40))
	assert.True(t, strings.HasPrefix(selected, "› "))

	plain := stripANSI(renderBotRow(BotItem{Username: "alpha"}, false, 40))
	assert.True(t, strings.HasPrefix(plain, "  "))
}

func TestRenderBotRowTruncatesLongNames(t *testing.T) {
	long := strings.Repeat("a", 60)
	out := stripANSI(renderBotRow(BotItem{Username: long, Online: true}, false, 20))
	assert.Contains(t, out, "…")
	assert.NotContains(t, out, long)
}
