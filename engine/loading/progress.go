package loading

import (
	"github.com/spaghettifunk/gantry/engine/core"
	"github.com/spaghettifunk/gantry/engine/math"
)

type progressEntry struct {
	done  int
	total int
}

// ProgressTracker listens for loading progress events and aggregates them
// into an overall (done, total) pair, suitable for a progress bar. Entirely
// optional: nothing in the loading pipeline depends on it.
type ProgressTracker struct {
	counts map[string]progressEntry
}

func NewProgressTracker(bus *core.EventBus) *ProgressTracker {
	pt := &ProgressTracker{
		counts: make(map[string]progressEntry),
	}
	bus.Register(core.EventCodeLoadingProgress, pt, pt.onProgress)
	return pt
}

func (pt *ProgressTracker) onProgress(_ core.SystemEventCode, _ interface{}, _ interface{}, ctx core.EventContext) bool {
	pt.counts[ctx.Name] = progressEntry{done: ctx.Done, total: ctx.Total}
	return false
}

// Collection returns the last reported counts for one collection or
// dynamic file format.
func (pt *ProgressTracker) Collection(name string) (done, total int, ok bool) {
	entry, ok := pt.counts[name]
	return entry.done, entry.total, ok
}

// Overall sums the last reported counts across everything seen so far.
func (pt *ProgressTracker) Overall() (done, total int) {
	for _, entry := range pt.counts {
		done += entry.done
		total += entry.total
	}
	return done, total
}

// Ratio reduces the overall counts to a [0, 1] fraction for progress bars.
// An empty tracker reports 0.
func (pt *ProgressTracker) Ratio() float64 {
	done, total := pt.Overall()
	if total == 0 {
		return 0
	}
	return math.Clamp(float64(done)/float64(total), 0, 1)
}

// Reset clears the aggregated counts, typically on loading state re-entry.
func (pt *ProgressTracker) Reset() {
	pt.counts = make(map[string]progressEntry)
}
