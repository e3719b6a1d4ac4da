package engine

import (
	"time"

	"github.com/roach88/boardsync/internal/ir"
)

const dateLayout = "2006-01-02"

// CurrentIteration returns the iteration whose half-open window
// [start, start+duration) contains today, where today is local midnight of
// now in loc. Iterations with unparseable dates are ignored. When windows
// overlap the one that started last wins.
func CurrentIteration(its []ir.Iteration, now time.Time, loc *time.Location) (ir.Iteration, bool) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	var (
		best      ir.Iteration
		bestStart time.Time
		found     bool
	)
	for _, it := range its {
		start, err := time.ParseInLocation(dateLayout, it.StartDate, loc)
		if err != nil || it.Duration <= 0 {
			continue
		}
		end := start.AddDate(0, 0, it.Duration)
		if today.Before(start) || !today.Before(end) {
			continue
		}
		if !found || start.After(bestStart) {
			best, bestStart, found = it, start, true
		}
	}
	return best, found
}
