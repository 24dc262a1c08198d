package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// maxChatLines caps the per-identity scrollback. Oldest lines fall off.
const maxChatLines = 500

type chatLineKind int

const (
	chatLineChat chatLineKind = iota
	chatLineSelf
	chatLineSystem
)

type chatLine struct {
	when   time.Time
	sender string
	text   string
	kind   chatLineKind
}

// ChatLog holds per-identity chat scrollback.
type ChatLog struct {
	lines map[string][]chatLine
}

// NewChatLog returns an empty log.
func NewChatLog() *ChatLog {
	return &ChatLog{lines: map[string][]chatLine{}}
}

// AddChat records an inbound chat line for identity.
func (c *ChatLog) AddChat(identity, sender, text string) {
	c.add(identity, chatLine{when: time.Now(), sender: sender, text: text, kind: chatLineChat})
}

// AddSelf records an outbound line the operator sent through identity.
func (c *ChatLog) AddSelf(identity, text string) {
	c.add(identity, chatLine{when: time.Now(), sender: identity, text: text, kind: chatLineSelf})
}

// AddSystem records a lifecycle notice (login, disconnect, reconnect).
func (c *ChatLog) AddSystem(identity, text string) {
	c.add(identity, chatLine{when: time.Now(), text: text, kind: chatLineSystem})
}

func (c *ChatLog) add(identity string, line chatLine) {
	lines := append(c.lines[identity], line)
	if len(lines) > maxChatLines {
		lines = lines[len(lines)-maxChatLines:]
	}
	c.lines[identity] = lines
}

// Clear drops the scrollback for identity.
func (c *ChatLog) Clear(identity string) {
	delete(c.lines, identity)
}

// Len returns the number of stored lines for identity.
func (c *ChatLog) Len(identity string) int {
	return len(c.lines[identity])
}

// Render returns the last `height` lines for identity, each truncated to
// `width` display cells.
func (c *ChatLog) Render(identity string, width, height int) string {
	lines := c.lines[identity]
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderChatLine(line, width))
	}
	return b.String()
}

func renderChatLine(line chatLine, width int) string {
	stamp := DimStyle.Render(line.when.Format("15:04"))

	var body string
	switch line.kind {
	case chatLineSelf:
		body = ChatSelfStyle.Render(fmt.Sprintf("<%s>", line.sender)) + " " + line.text
	case chatLineSystem:
		body = ChatSystemStyle.Render("* " + line.text)
	default:
		body = ChatSenderStyle.Render(fmt.Sprintf("<%s>", line.sender)) + " " + line.text
	}

	out := stamp + " " + body
	if width > 3 && runewidth.StringWidth(stripANSI(out)) > width {
		// Truncate on the plain text, then restyle the minimum: drop styling
		// rather than risk cutting an escape sequence in half.
		plain := stamp + " " + plainChatLine(line)
		out = runewidth.Truncate(plain, width-1, "…")
	}
	return out
}

func plainChatLine(line chatLine) string {
	if line.kind == chatLineSystem {
		return "* " + line.text
	}
	return fmt.Sprintf("<%s> %s", line.sender, line.text)
}

// stripANSI removes CSI escape sequences for width measurement.
func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		if inEscape {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
			continue
		}
		if r == '\x1b' {
			inEscape = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
