package ui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
)

// BotItem is one sidebar row.
type BotItem struct {
	Username     string
	Online       bool
	Reconnecting bool
	AntiAfk      bool
	Health       float64
	Food         float64
}

// botSource implements fuzzy.Source over sidebar items.
type botSource []BotItem

func (s botSource) String(i int) string { return s[i].Username }
func (s botSource) Len() int            { return len(s) }

// filterBots returns the items fuzzy-matching query, best score first.
// An empty query returns the items unchanged.
func filterBots(items []BotItem, query string) []BotItem {
	query = strings.TrimSpace(query)
	if query == "" {
		return items
	}
	matches := fuzzy.FindFrom(query, botSource(items))
	out := make([]BotItem, 0, len(matches))
	for _, m := range matches {
		out = append(out, items[m.Index])
	}
	return out
}

// renderBotRow renders one sidebar entry, truncated to width cells.
func renderBotRow(item BotItem, selected bool, width int) string {
	var dot string
	switch {
	case item.Reconnecting:
		dot = ReconnectingStyle.Render("◌")
	case item.Online:
		dot = OnlineStyle.Render("●")
	default:
		dot = OfflineStyle.Render("○")
	}

	name := item.Username
	suffix := ""
	if item.AntiAfk {
		suffix = " ⟳"
	}
	if item.Online && item.Health > 0 {
		suffix += fmt.Sprintf(" %.0f♥", item.Health)
	}

	budget := width - 2 - runewidth.StringWidth(suffix)
	if budget > 0 && runewidth.StringWidth(name) > budget {
		name = runewidth.Truncate(name, budget, "…")
	}

	row := dot + " " + name + DimStyle.Render(suffix)
	if selected {
		return SelectedStyle.Render("› ") + row
	}
	return "  " + row
}
