package bot

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/baysumehmet/botdeck/internal/game"
)

// Handle owns the live session of one bot identity along with the state the
// lifecycle manager needs across callbacks: the connect options reused on
// reconnect, the terminal-event guard, and the manual-stop flag.
type Handle struct {
	Identity string
	Options  game.ConnectOptions

	mu      sync.RWMutex
	session game.Session

	// disconnecting guards terminal-event handling: a failing session may
	// emit both an error and an end event, and only the first one counts.
	disconnecting atomic.Bool

	// manualStop is set by an operator disconnect before Quit is issued,
	// and consumed exactly once to suppress auto-reconnect.
	manualStop atomic.Bool
}

func newHandle(identity string, opts game.ConnectOptions) *Handle {
	return &Handle{Identity: identity, Options: opts}
}

func (h *Handle) setSession(s game.Session) {
	h.mu.Lock()
	h.session = s
	h.mu.Unlock()
}

// Session returns the underlying game session; nil while the session is
// still being created.
func (h *Handle) Session() game.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.session
}

// beginTerminal flips the disconnecting guard. Only the first caller wins.
func (h *Handle) beginTerminal() bool {
	return h.disconnecting.CompareAndSwap(false, true)
}

// consumeManualStop reads and clears the manual-stop flag in one step.
func (h *Handle) consumeManualStop() bool {
	return h.manualStop.Swap(false)
}

// Registry maps bot identities to their live session handles. At most one
// handle exists per identity. Lookup is safe from any goroutine; only the
// lifecycle manager mutates an identity's entry.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: map[string]*Handle{}}
}

// putIfAbsent inserts a handle unless the identity already has one.
// Reserving the slot before session creation is what keeps two racing
// connects from both reaching the factory.
func (r *Registry) putIfAbsent(h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[h.Identity]; exists {
		return false
	}
	r.handles[h.Identity] = h
	return true
}

// Get returns the handle for an identity, if any.
func (r *Registry) Get(identity string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[identity]
	return h, ok
}

// removeIf removes the identity's entry only if it still holds this exact
// handle. A reconnect that already replaced the handle is left alone.
func (r *Registry) removeIf(h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.handles[h.Identity]; ok && cur == h {
		delete(r.handles, h.Identity)
		return true
	}
	return false
}

// Session resolves an identity to its live session. Satisfies the script
// interpreter's SessionProvider.
func (r *Registry) Session(identity string) (game.Session, bool) {
	h, ok := r.Get(identity)
	if !ok {
		return nil, false
	}
	s := h.Session()
	if s == nil {
		return nil, false
	}
	return s, true
}

// Identities returns the connected identities in stable order.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handles))
	for id := range r.handles {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
