package driver

import (
	"github.com/cwbudde/priorfit/internal/config"
	"github.com/cwbudde/priorfit/internal/model"
)

// Fmin minimizes fn starting from x0 and returns the minimizing vector.
// Downhill-simplex implementations fit this signature directly.
type Fmin func(fn func([]float64) float64, x0 []float64) []float64

// SimplexSearch drives an injected local minimizer over physical vectors,
// seeded at the prior medians. Local optimizers have no use for the unit
// cube, so this is the one front-end running in physical convention.
type SimplexSearch struct {
	*Search
	fmin Fmin
}

// NewSimplexSearch creates a simplex search over the given space.
func NewSimplexSearch(space *model.ParameterSpace, analysis Analysis, cfg *config.Config, opts Options, fmin Fmin) (*SimplexSearch, error) {
	s, err := newSearch(space, analysis, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &SimplexSearch{Search: s, fmin: fmin}, nil
}

// Run executes the search and returns the best fit.
func (s *SimplexSearch) Run() (*Result, error) {
	if err := s.begin(false); err != nil {
		return nil, s.finish(err)
	}

	x0 := s.medians()
	eval := s.fitness.Physical()
	objective := func(physical []float64) float64 {
		return -2 * eval(physical)
	}

	s.fmin(objective, x0)

	if err := s.finish(nil); err != nil {
		return nil, err
	}
	_, best, _ := s.fitness.Best()
	return s.result(best)
}

// medians returns the physical median vector, one entry per distinct
// prior in creation order.
func (s *SimplexSearch) medians() []float64 {
	tuples := s.space.PriorTuplesOrderedByID()
	out := make([]float64, len(tuples))
	for i, tu := range tuples {
		out[i] = tu.Prior.ValueFor(0.5)
	}
	return out
}
