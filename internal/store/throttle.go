package store

import "time"

// accessCounter tracks operations on one key inside the current window.
type accessCounter struct {
	count       int
	lastAttempt time.Time
}

// accessCounters implements the per-key operation budget: at most max
// operations while consecutive operations are no more than window apart.
// A gap longer than window resets the count to 1. Refused operations do not
// move lastAttempt, so a blocked key unblocks window after its last allowed
// operation. Not safe for concurrent use; guarded by the store.
type accessCounters struct {
	max      int
	window   time.Duration
	counters map[string]*accessCounter
}

func newAccessCounters(max int, window time.Duration) *accessCounters {
	return &accessCounters{
		max:      max,
		window:   window,
		counters: make(map[string]*accessCounter),
	}
}

func (a *accessCounters) allow(key string, now time.Time) bool {
	c, ok := a.counters[key]
	if !ok || now.Sub(c.lastAttempt) > a.window {
		a.counters[key] = &accessCounter{count: 1, lastAttempt: now}
		return true
	}

	if c.count >= a.max {
		return false
	}

	c.count++
	c.lastAttempt = now
	return true
}

func (a *accessCounters) count(key string) int {
	if c, ok := a.counters[key]; ok {
		return c.count
	}
	return 0
}

func (a *accessCounters) remove(key string) {
	delete(a.counters, key)
}

func (a *accessCounters) reset() {
	a.counters = make(map[string]*accessCounter)
}
