package usecase

import (
	"sync"
	"time"

	"ClpWatch/internal/domain/models"
)

// DefaultRecentFlips is how many flips Recent returns by default.
const DefaultRecentFlips = 8

// FlipState is the last seen regime per symbol.
type FlipState map[string]models.Regime

// DetectFlips compares snaps against state and returns the updated state with
// one event per symbol whose regime changed. Symbols seen for the first time
// only seed the state. state is not modified.
func DetectFlips(state FlipState, at time.Time, snaps []models.Snapshot) (FlipState, []models.FlipEvent) {
	next := make(FlipState, len(state)+len(snaps))
	for k, v := range state {
		next[k] = v
	}
	var flips []models.FlipEvent
	for _, s := range snaps {
		prev, seen := next[s.Symbol]
		if seen && prev != s.Regime {
			flips = append(flips, models.FlipEvent{Time: at, Symbol: s.Symbol, From: prev, To: s.Regime})
		}
		next[s.Symbol] = s.Regime
	}
	return next, flips
}

// FlipTracker owns the flip state across cycles and keeps an append-only log.
type FlipTracker struct {
	mu    sync.RWMutex
	state FlipState
	log   []models.FlipEvent
}

func NewFlipTracker() *FlipTracker {
	return &FlipTracker{state: FlipState{}}
}

// Observe folds one cycle's snapshots into the tracker and returns its flips.
func (t *FlipTracker) Observe(at time.Time, snaps []models.Snapshot) []models.FlipEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	next, flips := DetectFlips(t.state, at, snaps)
	t.state = next
	t.log = append(t.log, flips...)
	return flips
}

// Recent returns up to n of the latest flips, oldest first.
func (t *FlipTracker) Recent(n int) []models.FlipEvent {
	if n <= 0 {
		n = DefaultRecentFlips
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	start := len(t.log) - n
	if start < 0 {
		start = 0
	}
	return append([]models.FlipEvent(nil), t.log[start:]...)
}

// State returns a copy of the last seen regimes.
func (t *FlipTracker) State() FlipState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(FlipState, len(t.state))
	for k, v := range t.state {
		out[k] = v
	}
	return out
}
