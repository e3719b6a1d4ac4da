package engine

import "sync"

// DedupTracker remembers which (content id, field) targets already have a
// mutation in the plan, and where.
//
// The planner consults it before accepting each desired mutation so that
// at most one mutation per target reaches the dispatcher. The first
// mutation recorded for a target wins; later ones are superseded, except
// assignee additions which merge into the first.
//
// Thread-safe: Can be called concurrently.
type DedupTracker struct {
	mu   sync.Mutex
	seen map[string]int // target key -> index of the winning mutation
}

// NewDedupTracker creates an empty tracker.
func NewDedupTracker() *DedupTracker {
	return &DedupTracker{seen: make(map[string]int)}
}

// Seen reports whether target already has a mutation, and its index.
func (d *DedupTracker) Seen(target string) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx, ok := d.seen[target]
	return idx, ok
}

// Record marks target as owned by the mutation at idx. The first record
// for a target is kept.
func (d *DedupTracker) Record(target string, idx int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[target]; !ok {
		d.seen[target] = idx
	}
}

// Len returns the number of distinct targets.
func (d *DedupTracker) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
