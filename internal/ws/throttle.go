package ws

import (
	"strings"
	"sync"
	"time"
)

// RateLimiter is a per-key leading-edge throttle with trailing-edge catch-up.
// The first call on a cold key runs immediately; calls inside the window are
// coalesced into a single run at the end of the window, keeping only the
// latest one. The final state of a burst is therefore never lost.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*throttleEntry
}

type throttleEntry struct {
	lastCall time.Time
	pending  *time.Timer
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{entries: make(map[string]*throttleEntry)}
}

// Throttle runs fn now if no call for key happened within window, recording
// the call time. Otherwise it schedules fn once at the remaining delay,
// replacing any previously pending call for the key. Reports whether fn ran
// immediately.
func (rl *RateLimiter) Throttle(key string, fn func(), window time.Duration) bool {
	rl.mu.Lock()
	now := time.Now()

	e, ok := rl.entries[key]
	if !ok {
		e = &throttleEntry{}
		rl.entries[key] = e
	}

	if !ok || now.Sub(e.lastCall) >= window {
		if e.pending != nil {
			e.pending.Stop()
			e.pending = nil
		}
		e.lastCall = now
		rl.mu.Unlock()
		fn()
		return true
	}

	if e.pending != nil {
		e.pending.Stop()
	}
	e.pending = time.AfterFunc(window-now.Sub(e.lastCall), func() {
		rl.mu.Lock()
		cur, live := rl.entries[key]
		if !live {
			// Cleanup raced the timer; the key is gone, stay silent.
			rl.mu.Unlock()
			return
		}
		cur.lastCall = time.Now()
		cur.pending = nil
		rl.mu.Unlock()
		fn()
	})
	rl.mu.Unlock()
	return false
}

// Cleanup cancels and removes all state for keys starting with prefix.
// Called on connection teardown so pending timers never leak.
func (rl *RateLimiter) Cleanup(prefix string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k, e := range rl.entries {
		if strings.HasPrefix(k, prefix) {
			if e.pending != nil {
				e.pending.Stop()
			}
			delete(rl.entries, k)
		}
	}
}

// ActiveKeys reports how many keys currently hold throttle state.
func (rl *RateLimiter) ActiveKeys() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}
