package risk

import (
	"sync"
	"time"
)

type windowEntry struct {
	at  time.Time
	usd float64
}

// Window remembers executed trades for a trailing span. Entries older than
// the span are dropped whenever the window is read.
type Window struct {
	mu      sync.Mutex
	span    time.Duration
	entries []windowEntry
}

// NewWindow returns an empty window covering span.
func NewWindow(span time.Duration) *Window {
	return &Window{span: span}
}

// Record appends an executed trade.
func (w *Window) Record(at time.Time, usd float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, windowEntry{at: at, usd: usd})
}

// Count prunes expired entries and returns how many remain.
func (w *Window) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(now)
	return len(w.entries)
}

// VolumeUSD prunes expired entries and sums the remaining notional.
func (w *Window) VolumeUSD(now time.Time) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(now)
	var sum float64
	for _, e := range w.entries {
		sum += e.usd
	}
	return sum
}

// Reset drops every entry.
func (w *Window) Reset() {
	w.mu.Lock()
	w.entries = nil
	w.mu.Unlock()
}

func (w *Window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.span)
	keep := 0
	for _, e := range w.entries {
		if e.at.After(cutoff) {
			w.entries[keep] = e
			keep++
		}
	}
	w.entries = w.entries[:keep]
}
