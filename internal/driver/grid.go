package driver

import (
	"errors"
	"fmt"

	"github.com/cwbudde/priorfit/internal/config"
	"github.com/cwbudde/priorfit/internal/model"
	"github.com/cwbudde/priorfit/internal/opt"
	"github.com/cwbudde/priorfit/internal/store"
)

// GridSearch enumerates the unit-cube lattice sequentially, persisting a
// checkpoint record after every evaluation. A crashed run resumes from
// its record: the first calls-completed points are skipped and the best
// score and vector are re-seeded verbatim.
//
// Note the seeded best may be stale relative to skipped points if the
// record was written by an enumeration that visited them in a different
// order. The record is taken at face value rather than re-scoring.
type GridSearch struct {
	*Search
	stepSize float64
}

// NewGridSearch creates a grid search with the given lattice step.
// Passing the run ID of a prior grid run in opts resumes it.
func NewGridSearch(space *model.ParameterSpace, analysis Analysis, cfg *config.Config, opts Options, stepSize float64) (*GridSearch, error) {
	if stepSize <= 0 || stepSize > 1 {
		return nil, fmt.Errorf("step size must be in (0, 1], got %g", stepSize)
	}
	s, err := newSearch(space, analysis, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &GridSearch{Search: s, stepSize: stepSize}, nil
}

// Run executes the enumeration and returns the best fit.
func (g *GridSearch) Run() (*Result, error) {
	dim := g.fitness.ParameterCount()

	// Pull any backed-up record into the working directory before
	// deciding whether this is a resume.
	g.restore()

	skip, resuming, err := g.prepare(dim)
	if err != nil {
		g.status = StatusFailed
		return nil, err
	}

	if err := g.begin(resuming); err != nil {
		return nil, g.finish(err)
	}

	eval := g.fitness.Unit()
	points := opt.MakeLists(dim, g.stepSize)
	for i, point := range points {
		if i < skip {
			continue
		}
		eval(point)
		if err := g.checkpoint(i+1, dim); err != nil {
			return nil, g.finish(err)
		}
	}

	if err := g.finish(nil); err != nil {
		return nil, err
	}
	return g.result(g.bestPhysical())
}

// prepare loads any existing checkpoint and validates it against the
// current run shape. Returns the number of lattice points to skip.
func (g *GridSearch) prepare(dim int) (skip int, resuming bool, err error) {
	checkpoint, err := g.fs.LoadCheckpoint(g.runID)
	if errors.Is(err, &store.NotFoundError{}) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if err := checkpoint.Compatible(g.stepSize, dim); err != nil {
		return 0, false, err
	}

	g.fitness.Seed(checkpoint.BestScore, checkpoint.BestVector)
	return checkpoint.Calls, true, nil
}

// checkpoint persists the record after an evaluation. Unlike backup, a
// failed checkpoint write is fatal: resumability is the whole contract.
func (g *GridSearch) checkpoint(calls, dim int) error {
	score, vector, _ := g.fitness.Best()
	return g.fs.SaveCheckpoint(g.runID, &store.Checkpoint{
		Calls:          calls,
		BestScore:      score,
		BestVector:     vector,
		StepSize:       g.stepSize,
		ParameterCount: dim,
	})
}
