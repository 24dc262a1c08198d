package bot

import (
	"sync"
	"time"
)

// afkPulseHold is how long the movement control stays pressed per pulse.
const afkPulseHold = 200 * time.Millisecond

// afkTimers owns the per-identity anti-idle tickers. Starting a timer for an
// identity that already has one cancels the old one first — two concurrent
// timers for one bot would double the pulse rate and look like a macro.
type afkTimers struct {
	mu     sync.Mutex
	timers map[string]chan struct{}
}

func newAfkTimers() afkTimers {
	return afkTimers{timers: map[string]chan struct{}{}}
}

// start replaces any existing timer for identity with a fresh one firing
// pulse every interval. The pulse never fires after stop: the stop channel is
// checked in the same select as the tick.
func (a *afkTimers) start(identity string, interval time.Duration, pulse func()) {
	a.mu.Lock()
	if old, ok := a.timers[identity]; ok {
		close(old)
	}
	stop := make(chan struct{})
	a.timers[identity] = stop
	a.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				select {
				case <-stop:
					return
				default:
				}
				pulse()
			}
		}
	}()
}

// stop cancels the identity's timer. Returns false when none existed.
func (a *afkTimers) stop(identity string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	stop, ok := a.timers[identity]
	if !ok {
		return false
	}
	close(stop)
	delete(a.timers, identity)
	return true
}

// active reports whether identity currently has a timer.
func (a *afkTimers) active(identity string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.timers[identity]
	return ok
}

// count returns the number of live timers.
func (a *afkTimers) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.timers)
}

// stopAll cancels every timer.
func (a *afkTimers) stopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, stop := range a.timers {
		close(stop)
		delete(a.timers, id)
	}
}
