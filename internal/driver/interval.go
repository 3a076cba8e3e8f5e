package driver

// Never disables an interval counter.
const Never = -1

// IntervalCounter gates a side effect to every Nth call, decoupling
// expensive work from the hot evaluation path. Not safe for concurrent
// use on its own; Fitness serializes calls under its mutex.
type IntervalCounter struct {
	count    int
	interval int
}

// NewIntervalCounter returns a counter that fires every interval calls.
// An interval of Never (or any value below 1) never fires.
func NewIntervalCounter(interval int) *IntervalCounter {
	return &IntervalCounter{interval: interval}
}

// Fire records one call and reports whether the side effect is due.
func (c *IntervalCounter) Fire() bool {
	if c.interval < 1 {
		return false
	}
	c.count++
	return c.count%c.interval == 0
}

// Calls returns the number of calls recorded so far.
func (c *IntervalCounter) Calls() int {
	return c.count
}
