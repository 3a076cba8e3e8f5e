package driver

import (
	"github.com/cwbudde/priorfit/internal/config"
	"github.com/cwbudde/priorfit/internal/model"
	"github.com/cwbudde/priorfit/internal/opt"
)

// MayflySearch drives a population optimizer over the unit cube. The
// optimizer minimizes, so scores are negated on the way in.
type MayflySearch struct {
	*Search
	optimizer opt.Optimizer
}

// NewMayflySearch creates a population search over the given space.
func NewMayflySearch(space *model.ParameterSpace, analysis Analysis, cfg *config.Config, opts Options, optimizer opt.Optimizer) (*MayflySearch, error) {
	s, err := newSearch(space, analysis, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &MayflySearch{Search: s, optimizer: optimizer}, nil
}

// Run executes the search and returns the best fit.
func (s *MayflySearch) Run() (*Result, error) {
	if err := s.begin(false); err != nil {
		return nil, s.finish(err)
	}

	dim := s.fitness.ParameterCount()
	eval := s.fitness.Unit()
	minimize := func(unit []float64) float64 {
		return -eval(unit)
	}

	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range upper {
		upper[i] = 1
	}
	s.optimizer.Run(minimize, lower, upper, dim)

	if err := s.finish(nil); err != nil {
		return nil, err
	}
	return s.result(s.bestPhysical())
}

// bestPhysical converts the best unit vector to physical convention.
func (s *Search) bestPhysical() []float64 {
	_, unit, _ := s.fitness.Best()
	if len(unit) == 0 {
		return nil
	}
	physical, err := s.space.PhysicalVectorFromUnit(unit)
	if err != nil {
		return nil
	}
	return physical
}
