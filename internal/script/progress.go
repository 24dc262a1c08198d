package script

import "sync"

// Progress accumulates the status transitions of one run so a UI can render
// per-node state. One instance per run; discard after completion, Reset after
// failure.
type Progress struct {
	mu        sync.Mutex
	running   bool
	current   string
	completed map[string]int
	errNode   string
}

// NewProgress returns an empty tracker.
func NewProgress() *Progress {
	return &Progress{completed: map[string]int{}}
}

// Apply folds one transition into the tracker. Safe as a Reporter from any
// goroutine.
func (p *Progress) Apply(t Transition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch t.Status {
	case StatusRunning:
		p.running = true
		p.current = t.NodeID
	case StatusCompleted:
		p.completed[t.NodeID]++
		if p.current == t.NodeID {
			p.current = ""
		}
	case StatusFailed:
		p.errNode = t.NodeID
		p.running = false
		p.current = ""
	}
}

// Finish marks the run as no longer executing.
func (p *Progress) Finish() {
	p.mu.Lock()
	p.running = false
	p.current = ""
	p.mu.Unlock()
}

// Reset clears all state for a fresh run.
func (p *Progress) Reset() {
	p.mu.Lock()
	p.running = false
	p.current = ""
	p.errNode = ""
	p.completed = map[string]int{}
	p.mu.Unlock()
}

// Running reports whether a run is in flight.
func (p *Progress) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Current returns the node currently executing, or "".
func (p *Progress) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Completions returns how many times the node has completed this run.
// Children of a repeat node complete once per iteration.
func (p *Progress) Completions(nodeID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed[nodeID]
}

// ErrNode returns the failing node id, or "" when no failure occurred.
func (p *Progress) ErrNode() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errNode
}
