package device

import (
	"sync"

	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
)

// NotifyFunc receives every incoming update after it was merged. first is
// true for the first update since construction or the last Rearm.
type NotifyFunc func(u dps.Update, first bool)

// Accumulator merges partial DP updates into a running snapshot.
//
// Updates must be fed from a single goroutine (the transport's delivery
// goroutine); the snapshot may be read from anywhere.
type Accumulator struct {
	mu       sync.RWMutex
	snapshot dps.Snapshot
	seen     bool
	notify   NotifyFunc
}

// NewAccumulator creates an accumulator. notify may be nil.
func NewAccumulator(notify NotifyFunc) *Accumulator {
	return &Accumulator{
		snapshot: dps.NewSnapshot(),
		notify:   notify,
	}
}

// OnUpdate merges u (last write wins per key, other keys untouched) and then
// calls the notify hook with u itself, outside the lock. It reports whether
// this was the first update.
func (a *Accumulator) OnUpdate(u dps.Update) bool {
	a.mu.Lock()
	a.snapshot.Merge(u)
	first := !a.seen
	a.seen = true
	a.mu.Unlock()

	if a.notify != nil {
		a.notify(u, first)
	}
	return first
}

// Snapshot returns a detached copy of the merged state.
func (a *Accumulator) Snapshot() dps.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot.Clone()
}

// Seen reports whether an update arrived since construction or Rearm.
func (a *Accumulator) Seen() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.seen
}

// Rearm makes the next update count as first again. The snapshot is kept.
func (a *Accumulator) Rearm() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = false
}

// Reset clears the snapshot.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshot.Reset()
}
