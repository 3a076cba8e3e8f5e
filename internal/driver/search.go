package driver

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/cwbudde/priorfit/internal/config"
	"github.com/cwbudde/priorfit/internal/model"
	"github.com/cwbudde/priorfit/internal/refine"
	"github.com/cwbudde/priorfit/internal/store"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Options configures a search run.
type Options struct {
	// BaseDir is the root directory for run artifacts (checkpoints,
	// traces, visualizations, backups).
	BaseDir string

	// RunID identifies the run. Empty generates a fresh ID; passing the
	// ID of a prior grid run resumes it from its checkpoint.
	RunID string

	// VisualizeInterval, LogInterval and BackupInterval gate the three
	// side-effect counters. Never disables one.
	VisualizeInterval int
	LogInterval       int
	BackupInterval    int

	// Refine, when set, attaches a refined parameter space to the
	// result, seeded from the best physical vector.
	Refine *refine.WidthPolicy
}

// Search carries the state shared by all search front-ends: run identity,
// the lifecycle state machine, the fitness adapter and the artifact
// directories.
type Search struct {
	runID    string
	status   Status
	space    *model.ParameterSpace
	analysis Analysis
	cfg      *config.Config
	opts     Options

	fitness   *Fitness
	fs        *store.FSStore
	trace     *store.TraceWriter
	workDir   string
	backupDir string
}

func newSearch(space *model.ParameterSpace, analysis Analysis, cfg *config.Config, opts Options) (*Search, error) {
	if space.ParameterCount() == 0 {
		return nil, fmt.Errorf("parameter space has no free parameters")
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	fs, err := store.NewFSStore(opts.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	workDir := fs.RunDir(runID)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	s := &Search{
		runID:     runID,
		status:    StatusInitialized,
		space:     space,
		analysis:  analysis,
		cfg:       cfg,
		opts:      opts,
		fs:        fs,
		workDir:   workDir,
		backupDir: filepath.Join(opts.BaseDir, "backup", runID),
	}
	s.fitness = NewFitness(space, analysis, workDir, opts.VisualizeInterval, opts.LogInterval, opts.BackupInterval)
	s.fitness.onBackup = s.backup
	return s, nil
}

// RunID returns the identifier of this run.
func (s *Search) RunID() string {
	return s.runID
}

// Status returns the current lifecycle state.
func (s *Search) Status() Status {
	return s.status
}

// Fitness exposes the adapter, mainly for callers wiring a custom
// optimizer convention.
func (s *Search) Fitness() *Fitness {
	return s.fitness
}

// begin restores any prior backup into the working directory, opens the
// trace writer and moves the run to running.
func (s *Search) begin(appendTrace bool) error {
	s.restore()

	trace, err := store.NewTraceWriter(s.opts.BaseDir, s.runID, appendTrace)
	if err != nil {
		return fmt.Errorf("failed to open trace writer: %w", err)
	}
	s.trace = trace
	s.fitness.onLog = func(entry store.TraceEntry) {
		if err := s.trace.Write(entry); err != nil {
			slog.Warn("Failed to write trace entry", "runID", s.runID, "error", err)
		}
	}

	s.status = StatusRunning
	slog.Info("Search started", "runID", s.runID, "parameters", s.fitness.ParameterCount())
	return nil
}

// finish closes the trace, mirrors the working directory to the backup
// location and settles the final state. A non-recoverable evaluation
// error recorded by the fitness adapter fails the run even when the
// optimizer itself returned cleanly.
func (s *Search) finish(runErr error) error {
	if s.trace != nil {
		if err := s.trace.Close(); err != nil {
			slog.Warn("Failed to close trace writer", "runID", s.runID, "error", err)
		}
	}
	s.backup()

	if runErr == nil {
		runErr = s.fitness.Err()
	}
	if runErr != nil {
		s.status = StatusFailed
		slog.Error("Search failed", "runID", s.runID, "error", runErr)
		return runErr
	}
	s.status = StatusCompleted
	score, _, _ := s.fitness.Best()
	slog.Info("Search completed", "runID", s.runID, "calls", s.fitness.Calls(), "best", score)
	return nil
}

// result assembles the Result from the fitness bookkeeping. physical is
// the best vector in physical convention, already converted by the
// front-end when it ran in unit space.
func (s *Search) result(physical []float64) (*Result, error) {
	score, _, instance := s.fitness.Best()
	res := &Result{
		Instance: instance,
		Score:    score,
		Vector:   physical,
	}

	if s.opts.Refine != nil && len(physical) > 0 {
		refined, err := refine.SpaceFromMeans(s.space, physical, *s.opts.Refine, s.cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to refine parameter space: %w", err)
		}
		res.Space = refined
	}

	if instance != nil {
		if err := s.analysis.Visualize(instance, s.workDir, false); err != nil {
			slog.Warn("Final visualization failed", "runID", s.runID, "error", err)
		}
	}

	return res, nil
}

// backup mirrors the working directory to the backup location. Best
// effort: failures are logged and swallowed, never fatal to the search.
func (s *Search) backup() {
	if err := copyTree(s.workDir, s.backupDir); err != nil {
		slog.Warn("Backup failed", "runID", s.runID, "error", err)
	}
}

// restore copies any backup contents into the working directory. A
// missing backup is not an error.
func (s *Search) restore() {
	if _, err := os.Stat(s.backupDir); os.IsNotExist(err) {
		return
	}
	if err := copyTree(s.backupDir, s.workDir); err != nil {
		slog.Warn("Restore from backup failed", "runID", s.runID, "error", err)
	}
}

// copyTree recursively copies regular files from src into dst,
// overwriting existing files.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
