package driver

import (
	"github.com/cwbudde/priorfit/internal/model"
)

// Analysis is the caller-supplied likelihood contract. Fit scores one
// resolved instance, higher is better. Visualize renders diagnostic
// output into outDir; during is true when called from inside a running
// search at the visualize interval, false for the final call.
type Analysis interface {
	Fit(instance *model.Instance) (float64, error)
	Visualize(instance *model.Instance, outDir string, during bool) error
}

// FitError marks a recoverable domain failure inside a likelihood
// evaluation. The search maps it to a score of negative infinity and
// continues; any other error from Fit fails the run.
// Use errors.Is(err, &FitError{}) to check for it.
type FitError struct {
	Reason string
}

func (e *FitError) Error() string {
	return "fit error: " + e.Reason
}

func (e *FitError) Is(target error) bool {
	_, ok := target.(*FitError)
	return ok
}

// Result holds the outcome of a completed search.
type Result struct {
	// Instance is the best resolved instance seen. Nil if no evaluation
	// succeeded.
	Instance *model.Instance

	// Score is the best score seen. Negative infinity if no evaluation
	// succeeded.
	Score float64

	// Vector is the physical vector of the best fit, in
	// distinct-prior order.
	Vector []float64

	// Space is the refined parameter space seeded from the best fit.
	// Only populated when the search was configured to refine.
	Space *model.ParameterSpace
}
