package model

import "fmt"

// DimensionError reports a vector whose length disagrees with the parameter
// count of the space it was presented to.
type DimensionError struct {
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension error: expected vector of length %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionError) Is(target error) bool {
	_, ok := target.(*DimensionError)
	return ok
}

// ResolutionError reports a prior reachable from the node tree that has no
// entry in the value mapping. This indicates the caller computed the
// distinct-prior set incorrectly; it is a programming error, not a runtime
// condition to recover from.
type ResolutionError struct {
	Field string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolution error: no value supplied for prior bound to %q", e.Field)
}

func (e *ResolutionError) Is(target error) bool {
	_, ok := target.(*ResolutionError)
	return ok
}
