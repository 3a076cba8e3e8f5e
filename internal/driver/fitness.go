package driver

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cwbudde/priorfit/internal/model"
	"github.com/cwbudde/priorfit/internal/store"
)

// Fitness adapts a parameter space plus an Analysis to the calling
// convention an external optimizer expects. It is the only place the
// parameter space touches the optimizer.
//
// Each call resolves the incoming vector to an instance, scores it, and
// tracks the best score seen with its instance and vector. Bookkeeping
// is mutex-guarded so population optimizers may evaluate concurrently.
// The distinct-prior ordering is snapshotted at construction; the space
// must not be mutated while a run is in flight.
type Fitness struct {
	mu       sync.Mutex
	space    *model.ParameterSpace
	analysis Analysis
	tuples   []model.PriorTuple
	outDir   string

	visualize *IntervalCounter
	log       *IntervalCounter
	backup    *IntervalCounter

	// onLog receives a trace entry at the log interval. onBackup runs
	// at the backup interval. Both are set by the owning search.
	onLog    func(entry store.TraceEntry)
	onBackup func()

	calls        int
	bestScore    float64
	bestVector   []float64
	bestInstance *model.Instance
	err          error
}

// NewFitness creates a fitness adapter over the given space and analysis.
// Side-effect output goes to outDir. Each interval may be Never.
func NewFitness(space *model.ParameterSpace, analysis Analysis, outDir string, visualizeEvery, logEvery, backupEvery int) *Fitness {
	return &Fitness{
		space:     space,
		analysis:  analysis,
		tuples:    space.PriorTuplesOrderedByID(),
		outDir:    outDir,
		visualize: NewIntervalCounter(visualizeEvery),
		log:       NewIntervalCounter(logEvery),
		backup:    NewIntervalCounter(backupEvery),
		bestScore: math.Inf(-1),
	}
}

// ParameterCount returns the frozen dimensionality of the run.
func (f *Fitness) ParameterCount() int {
	return len(f.tuples)
}

// Seed primes the best-score bookkeeping from a checkpoint record. The
// persisted score and vector are taken verbatim; the instance graph is
// rebuilt by resolving the unit vector, so a resumed run whose seeded
// best is never beaten still completes with a full result.
func (f *Fitness) Seed(score float64, vector []float64) {
	instance, err := f.space.InstanceFromUnitVector(vector)
	if err != nil {
		instance = nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bestScore = score
	f.bestVector = append([]float64(nil), vector...)
	f.bestInstance = instance
}

// Unit returns the unit-cube calling convention: the incoming vector
// holds values in [0, 1) mapped through each prior.
func (f *Fitness) Unit() func([]float64) float64 {
	return func(unit []float64) float64 {
		instance, err := f.space.InstanceFromUnitVector(unit)
		if err != nil {
			f.fail(err)
			return math.Inf(-1)
		}
		return f.score(instance, unit)
	}
}

// Physical returns the physical-vector calling convention: the incoming
// vector holds already-transformed parameter values.
func (f *Fitness) Physical() func([]float64) float64 {
	return func(physical []float64) float64 {
		instance, err := f.space.InstanceFromPhysicalVector(physical)
		if err != nil {
			f.fail(err)
			return math.Inf(-1)
		}
		return f.score(instance, physical)
	}
}

// Cube returns the cube calling convention: the first nparams entries of
// cube hold unit values and are overwritten in place with their physical
// counterparts before the score is returned. scoreSoFar is ignored.
func (f *Fitness) Cube() func(cube []float64, ndim, nparams int, scoreSoFar float64) float64 {
	return func(cube []float64, ndim, nparams int, scoreSoFar float64) float64 {
		unit := append([]float64(nil), cube[:nparams]...)
		physical, err := f.space.PhysicalVectorFromUnit(unit)
		if err != nil {
			f.fail(err)
			return math.Inf(-1)
		}
		copy(cube, physical)

		instance, err := f.space.InstanceFromUnitVector(unit)
		if err != nil {
			f.fail(err)
			return math.Inf(-1)
		}
		return f.score(instance, unit)
	}
}

// score runs the likelihood, updates bookkeeping and fires interval-gated
// side effects. vector is in whatever convention the caller used.
func (f *Fitness) score(instance *model.Instance, vector []float64) float64 {
	score, err := f.analysis.Fit(instance)
	if err != nil {
		if errors.Is(err, &FitError{}) {
			// Recoverable: worst possible score, keep going.
			score = math.Inf(-1)
		} else {
			f.fail(err)
			return math.Inf(-1)
		}
	}

	f.mu.Lock()
	f.calls++
	call := f.calls
	if score > f.bestScore {
		f.bestScore = score
		f.bestVector = append([]float64(nil), vector...)
		f.bestInstance = instance
	}
	bestScore := f.bestScore
	bestVector := append([]float64(nil), f.bestVector...)
	fireVisualize := f.visualize.Fire()
	fireLog := f.log.Fire()
	fireBackup := f.backup.Fire()
	f.mu.Unlock()

	if fireVisualize {
		if err := f.analysis.Visualize(instance, f.outDir, true); err != nil {
			slog.Warn("Visualization failed", "call", call, "error", err)
		}
	}
	if fireLog {
		slog.Info("Search progress", "call", call, "score", score, "best", bestScore)
		if f.onLog != nil {
			f.onLog(store.TraceEntry{
				Call:      call,
				Score:     bestScore,
				Timestamp: time.Now(),
				Vector:    bestVector,
			})
		}
	}
	if fireBackup && f.onBackup != nil {
		f.onBackup()
	}

	return score
}

// fail records the first non-recoverable error. The run is transitioned
// to failed once the optimizer returns control.
func (f *Fitness) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err == nil {
		f.err = err
	}
}

// Calls returns the number of fitness calls made so far.
func (f *Fitness) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Best returns the best score, vector and instance seen so far. The
// vector is a copy; the instance may be nil if nothing scored above
// negative infinity yet.
func (f *Fitness) Best() (float64, []float64, *model.Instance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bestScore, append([]float64(nil), f.bestVector...), f.bestInstance
}

// Err returns the first non-recoverable error seen during evaluation.
func (f *Fitness) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
