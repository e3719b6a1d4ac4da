package engine

import (
	"slices"
	"sync"

	"github.com/roach88/boardsync/internal/ir"
)

// Summary counts items by their overall outcome.
type Summary struct {
	Total     int `json:"total"`
	Changed   int `json:"changed"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// ItemStatus is one item's overall outcome.
type ItemStatus struct {
	Key      ir.ItemKey       `json:"item"`
	Status   ir.OutcomeStatus `json:"status"`
	Reasons  []ir.Reason      `json:"reasons"`
	Outcomes []ir.Outcome     `json:"outcomes"`
}

// StatusTracker collects outcomes keyed by item.
//
// An item's overall status is error if any of its mutations errored, else
// changed if any changed, else unchanged if any was unchanged, else
// skipped. An item with no outcome at all (nothing fired) is unchanged.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StatusTracker struct {
	mu       sync.Mutex
	order    []ir.ItemKey
	items    map[ir.ItemKey][]ir.Outcome
	outcomes []ir.Outcome
}

// NewStatusTracker creates an empty tracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{items: make(map[ir.ItemKey][]ir.Outcome)}
}

// Register adds an item with no outcomes yet.
func (t *StatusTracker) Register(key ir.ItemKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.registerLocked(key)
}

func (t *StatusTracker) registerLocked(key ir.ItemKey) {
	if _, ok := t.items[key]; !ok {
		t.items[key] = nil
		t.order = append(t.order, key)
	}
}

// Record stores an outcome, registering its item if needed.
func (t *StatusTracker) Record(o ir.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.registerLocked(o.Item)
	t.items[o.Item] = append(t.items[o.Item], o)
	t.outcomes = append(t.outcomes, o)
}

// Outcomes returns every outcome in record order.
func (t *StatusTracker) Outcomes() []ir.Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.outcomes)
}

// Items returns every item's status in registration order.
func (t *StatusTracker) Items() []ItemStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]ItemStatus, 0, len(t.order))
	for _, key := range t.order {
		outcomes := slices.Clone(t.items[key])
		is := ItemStatus{Key: key, Status: overall(outcomes), Outcomes: outcomes}
		for _, o := range outcomes {
			if !slices.Contains(is.Reasons, o.Reason) {
				is.Reasons = append(is.Reasons, o.Reason)
			}
		}
		out = append(out, is)
	}
	return out
}

// Summary counts items by overall status.
func (t *StatusTracker) Summary() Summary {
	var s Summary
	for _, is := range t.Items() {
		s.Total++
		switch is.Status {
		case ir.OutcomeChanged:
			s.Changed++
		case ir.OutcomeUnchanged:
			s.Unchanged++
		case ir.OutcomeSkipped:
			s.Skipped++
		case ir.OutcomeError:
			s.Errors++
		}
	}
	return s
}

// Top returns up to n items per overall status, in registration order.
// Categories with no items are absent.
func (t *StatusTracker) Top(n int) map[ir.OutcomeStatus][]ItemStatus {
	out := make(map[ir.OutcomeStatus][]ItemStatus)
	for _, is := range t.Items() {
		if len(out[is.Status]) < n {
			out[is.Status] = append(out[is.Status], is)
		}
	}
	return out
}

func overall(outcomes []ir.Outcome) ir.OutcomeStatus {
	if len(outcomes) == 0 {
		return ir.OutcomeUnchanged
	}
	rank := map[ir.OutcomeStatus]int{
		ir.OutcomeSkipped:   1,
		ir.OutcomeUnchanged: 2,
		ir.OutcomeChanged:   3,
		ir.OutcomeError:     4,
	}
	best := ir.OutcomeSkipped
	for _, o := range outcomes {
		if rank[o.Status] > rank[best] {
			best = o.Status
		}
	}
	return best
}
