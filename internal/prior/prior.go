package prior

import "sync/atomic"

// Prior maps a value on the unit interval to a physical parameter value.
//
// Identity matters: two priors with identical families and parameters are
// still distinct parameters unless the same object is assigned to both
// fields. The creation id is the only ordering key used when laying priors
// out in a vector; it carries no probabilistic meaning.
type Prior interface {
	// ID returns the monotonically increasing creation id.
	ID() int64

	// ValueFor maps unit in [0, 1] to the physical domain. It must be pure,
	// deterministic and monotonic, and safe for concurrent use.
	ValueFor(unit float64) float64
}

var counter atomic.Int64

// nextID assigns creation ids. Ids are process-wide and strictly increasing,
// so a prior created later always sorts after one created earlier.
func nextID() int64 {
	return counter.Add(1)
}
