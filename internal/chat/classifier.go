// Package chat turns raw server text into attributable (sender, message)
// pairs. Servers reformat chat freely, so extraction is an ordered rule list:
// most specific pattern first, first match wins. The classifier is pure — no
// session access, no I/O — so it can be unit tested against captured lines.
package chat

import (
	"regexp"
	"strings"

	"github.com/baysumehmet/botdeck/internal/game"
)

// FallbackSender attributes lines no rule could parse. The UI renders these
// as server notices rather than player chat.
const FallbackSender = "Server"

// Message is one classified chat event.
type Message struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// Rule is one extraction pattern. The regexp must expose exactly two capture
// groups: sender, then message.
type Rule struct {
	Name string
	re   *regexp.Regexp
}

// MustRule compiles a rule or panics. Intended for package-level tables.
func MustRule(name, pattern string) Rule {
	return Rule{Name: name, re: regexp.MustCompile(pattern)}
}

// DefaultRules covers the vanilla and common plugin chat formats. Order
// matters: bracket-tagged formats must run before the bare "name: text"
// rule or the tag would be swallowed into the message.
func DefaultRules() []Rule {
	return []Rule{
		// <Steve> hello
		MustRule("angle", `^<([A-Za-z0-9_]{1,16})>\s?(.*)$`),
		// [Mod] Notch: hi  /  [VIP][Admin] Notch: hi
		MustRule("tagged", `^(?:\[[^\]]*\]\s*)+([A-Za-z0-9_]{1,16})\s*[:»>]\s?(.*)$`),
		// Steve whispers: psst  /  Steve whispers to you: psst
		MustRule("whisper", `^([A-Za-z0-9_]{1,16}) whispers(?: to you)?:\s?(.*)$`),
		// Steve: hello
		MustRule("plain", `^([A-Za-z0-9_]{1,16})\s*:\s?(.*)$`),
	}
}

// Classifier extracts chat messages for one bot identity.
type Classifier struct {
	self  string
	rules []Rule
}

// New builds a classifier for the given bot identity. With no rules the
// default table is used; extra server-specific rules can be prepended by the
// caller without touching the matching algorithm.
func New(self string, rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{self: self, rules: rules}
}

// Classify maps raw server text to a Message. The second return is false when
// the event should be dropped: unrecognized position tag, blank text, or the
// bot's own chat echoed back.
func (c *Classifier) Classify(raw string, position game.MessagePosition) (Message, bool) {
	if position != game.PositionChat && position != game.PositionSystem {
		return Message{}, false
	}
	if strings.TrimSpace(raw) == "" {
		return Message{}, false
	}

	msg := Message{Sender: FallbackSender, Message: raw}
	for _, rule := range c.rules {
		if m := rule.re.FindStringSubmatch(raw); m != nil {
			msg.Sender = m[1]
			msg.Message = m[2]
			break
		}
	}

	// The server echoes our own chat back; re-displaying it would double
	// every outgoing line.
	if strings.EqualFold(msg.Sender, c.self) {
		return Message{}, false
	}

	return msg, true
}
