// Package ledger implements the time-bounded deduplication ledger for
// message IDs.
//
// Every device checks each inbound message ID against this ledger.
// If seen: drop silently (prevents infinite re-broadcast loops in a
// flooding network with cycles). If not seen: record and process.
//
// Entries expire after the configured window to bound memory over a
// multi-hour session. An expired entry is a miss: lookups treat it as
// absent and reads reclaim it eagerly; a sweep runs opportunistically
// after a batch of inserts, plus whenever the owner calls EvictExpired.
package ledger

import (
	"sync"
	"time"

	"github.com/goodmartian/beacon/internal/mesh"
)

// DefaultWindow is the default dedup expiry window.
const DefaultWindow = 5 * time.Minute

// sweepEvery is the number of inserts between opportunistic full sweeps.
const sweepEvery = 1024

// Ledger is a concurrent-safe first-seen store keyed by message ID.
// All operations take an explicit instant so behaviour is a pure
// function of (calls, clock) and tests need no sleeping.
type Ledger struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[mesh.MessageID]time.Time // id -> first seen
	inserts int
	evicted uint64
}

// New creates a Ledger with the given expiry window. A non-positive
// window falls back to DefaultWindow.
func New(window time.Duration) *Ledger {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Ledger{
		window:  window,
		entries: make(map[mesh.MessageID]time.Time),
	}
}

// HasSeen reports whether id was recorded within the window before now.
func (l *Ledger) HasSeen(id mesh.MessageID, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	first, ok := l.entries[id]
	if !ok {
		return false
	}
	if now.Sub(first) >= l.window {
		delete(l.entries, id)
		l.evicted++
		return false
	}
	return true
}

// MarkSeen records id at now and reports whether it was new. The check
// and the record are one critical section: of any number of concurrent
// MarkSeen calls for the same id, exactly one returns true.
func (l *Ledger) MarkSeen(id mesh.MessageID, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if first, ok := l.entries[id]; ok && now.Sub(first) < l.window {
		return false // already seen
	}
	l.entries[id] = now
	l.inserts++
	if l.inserts >= sweepEvery {
		l.inserts = 0
		l.sweepLocked(now)
	}
	return true
}

// EvictExpired removes every entry older than the window and returns
// the number removed.
func (l *Ledger) EvictExpired(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweepLocked(now)
}

// Len returns the current number of entries, expired or not.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Evicted returns the total number of entries reclaimed so far.
func (l *Ledger) Evicted() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.evicted
}

// Window returns the configured expiry window.
func (l *Ledger) Window() time.Duration { return l.window }

func (l *Ledger) sweepLocked(now time.Time) int {
	removed := 0
	for id, first := range l.entries {
		if now.Sub(first) >= l.window {
			delete(l.entries, id)
			removed++
		}
	}
	l.evicted += uint64(removed)
	return removed
}
