package envgate

import (
	"sync"
	"time"
)

// slidingWindow tracks attempt timestamps per (caller, operation) and allows
// at most budget attempts inside the window. Allowed attempts are charged;
// denied attempts are not, so a caller cannot extend their own lockout.
type slidingWindow struct {
	mu       sync.Mutex
	attempts map[windowKey][]time.Time
	budget   int
	window   time.Duration
	now      func() time.Time
}

type windowKey struct {
	caller    string
	operation string
}

func newSlidingWindow(budget int, window time.Duration, now func() time.Time) *slidingWindow {
	return &slidingWindow{
		attempts: map[windowKey][]time.Time{},
		budget:   budget,
		window:   window,
		now:      now,
	}
}

func (w *slidingWindow) allow(caller, operation string) bool {
	if w == nil {
		return true
	}
	key := windowKey{caller: caller, operation: operation}
	now := w.now()
	cutoff := now.Add(-w.window)

	w.mu.Lock()
	defer w.mu.Unlock()

	recent := w.attempts[key][:0:0]
	for _, at := range w.attempts[key] {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}
	if len(recent) >= w.budget {
		if len(recent) == 0 {
			delete(w.attempts, key)
		} else {
			w.attempts[key] = recent
		}
		return false
	}
	w.attempts[key] = append(recent, now)
	return true
}
