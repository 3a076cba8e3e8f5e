package driver

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cwbudde/priorfit/internal/config"
	"github.com/cwbudde/priorfit/internal/model"
	"github.com/cwbudde/priorfit/internal/store"
)

// triple is a three-parameter test model.
type triple struct {
	A float64
	B float64
	C float64
}

func quietOptions(baseDir string) Options {
	return Options{
		BaseDir:           baseDir,
		VisualizeInterval: Never,
		LogInterval:       Never,
		BackupInterval:    Never,
	}
}

func TestGridSearchCompletes(t *testing.T) {
	space := pairSpace(t)
	analysis := &stubAnalysis{
		fit: func(instance *model.Instance) (float64, error) {
			obj := instance.Get("pair").(*pair)
			return -(math.Abs(obj.X-0.5) + math.Abs(obj.Y-0.5)), nil
		},
	}

	search, err := NewGridSearch(space, analysis, config.Default(), quietOptions(t.TempDir()), 0.25)
	if err != nil {
		t.Fatalf("NewGridSearch failed: %v", err)
	}
	if search.Status() != StatusInitialized {
		t.Errorf("Expected initialized, got %s", search.Status())
	}

	result, err := search.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if search.Status() != StatusCompleted {
		t.Errorf("Expected completed, got %s", search.Status())
	}

	// 4 points per axis, 2 axes.
	if analysis.calls() != 16 {
		t.Errorf("Expected 16 evaluations, got %d", analysis.calls())
	}
	if result.Score != 0 {
		t.Errorf("Expected best score 0 at the peak, got %g", result.Score)
	}
	if len(result.Vector) != 2 || result.Vector[0] != 0.5 || result.Vector[1] != 0.5 {
		t.Errorf("Expected best vector [0.5 0.5], got %v", result.Vector)
	}
	if result.Instance == nil {
		t.Error("Expected best instance on completion")
	}
}

func TestGridSearchWritesCheckpointPerCall(t *testing.T) {
	baseDir := t.TempDir()
	space := pairSpace(t)
	analysis := &stubAnalysis{
		fit: func(*model.Instance) (float64, error) { return 1.0, nil },
	}

	search, err := NewGridSearch(space, analysis, config.Default(), quietOptions(baseDir), 0.5)
	if err != nil {
		t.Fatalf("NewGridSearch failed: %v", err)
	}
	if _, err := search.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	fs, err := store.NewFSStore(baseDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	checkpoint, err := fs.LoadCheckpoint(search.RunID())
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if checkpoint.Calls != 4 {
		t.Errorf("Expected 4 calls recorded, got %d", checkpoint.Calls)
	}
	if checkpoint.StepSize != 0.5 || checkpoint.ParameterCount != 2 {
		t.Errorf("Unexpected record shape: %+v", checkpoint)
	}
}

func TestGridSearchResumeSkipsCompletedPoints(t *testing.T) {
	baseDir := t.TempDir()

	fs, err := store.NewFSStore(baseDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	record := &store.Checkpoint{
		Calls:          5,
		BestScore:      -3.2,
		BestVector:     []float64{0.1, 0.2},
		StepSize:       0.1,
		ParameterCount: 2,
	}
	if err := fs.SaveCheckpoint("resume-run", record); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	var mu sync.Mutex
	var firstSeen []float64
	analysis := &stubAnalysis{
		fit: func(instance *model.Instance) (float64, error) {
			obj := instance.Get("pair").(*pair)
			mu.Lock()
			if firstSeen == nil {
				firstSeen = []float64{obj.X, obj.Y}
			}
			mu.Unlock()
			return -5, nil
		},
	}

	opts := quietOptions(baseDir)
	opts.RunID = "resume-run"
	search, err := NewGridSearch(pairSpace(t), analysis, config.Default(), opts, 0.1)
	if err != nil {
		t.Fatalf("NewGridSearch failed: %v", err)
	}

	result, err := search.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// 100 lattice points, the first 5 skipped.
	if analysis.calls() != 95 {
		t.Errorf("Expected 95 evaluations, got %d", analysis.calls())
	}

	// Enumeration is row-major with the last axis fastest, so the sixth
	// point is (0, 0.5).
	if len(firstSeen) != 2 || firstSeen[0] != 0 || firstSeen[1] != 0.5 {
		t.Errorf("Expected first evaluated point (0, 0.5), got %v", firstSeen)
	}

	// The seeded best survives verbatim: every resumed evaluation scored
	// worse, so the record's best wins even though its point was never
	// re-scored.
	if result.Score != -3.2 {
		t.Errorf("Expected seeded best -3.2, got %g", result.Score)
	}

	// The winning best was seeded, not evaluated, so its instance graph
	// must have been rebuilt from the record's vector.
	if result.Instance == nil {
		t.Fatal("Expected resumed result to carry an instance for the seeded best")
	}
	if got := result.Instance.Get("pair").(*pair); got.X != 0.1 || got.Y != 0.2 {
		t.Errorf("Expected instance resolved from seeded vector [0.1 0.2], got (%g, %g)", got.X, got.Y)
	}

	final, err := fs.LoadCheckpoint("resume-run")
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if final.Calls != 100 {
		t.Errorf("Expected 100 calls after resume, got %d", final.Calls)
	}
}

func TestGridSearchResumeShapeMismatch(t *testing.T) {
	baseDir := t.TempDir()

	fs, err := store.NewFSStore(baseDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	record := &store.Checkpoint{
		Calls:          5,
		BestScore:      -3.2,
		BestVector:     []float64{0.1, 0.2},
		StepSize:       0.1,
		ParameterCount: 2,
	}
	if err := fs.SaveCheckpoint("resume-run", record); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	analysis := &stubAnalysis{
		fit: func(*model.Instance) (float64, error) { return 0, nil },
	}

	node, err := model.NodeOf[triple](config.Default())
	if err != nil {
		t.Fatalf("Failed to build node: %v", err)
	}
	space := model.NewParameterSpace()
	space.AddModel("triple", node)

	opts := quietOptions(baseDir)
	opts.RunID = "resume-run"
	search, err := NewGridSearch(space, analysis, config.Default(), opts, 0.1)
	if err != nil {
		t.Fatalf("NewGridSearch failed: %v", err)
	}

	_, err = search.Run()
	if !errors.Is(err, &store.MismatchError{}) {
		t.Fatalf("Expected MismatchError, got %v", err)
	}
	if search.Status() != StatusFailed {
		t.Errorf("Expected failed, got %s", search.Status())
	}
	if analysis.calls() != 0 {
		t.Errorf("No evaluation may run against an incompatible record, got %d", analysis.calls())
	}
}

func TestGridSearchFailsOnNonFitError(t *testing.T) {
	broken := errors.New("detector offline")
	analysis := &stubAnalysis{
		fit: func(*model.Instance) (float64, error) { return 0, broken },
	}

	search, err := NewGridSearch(pairSpace(t), analysis, config.Default(), quietOptions(t.TempDir()), 0.5)
	if err != nil {
		t.Fatalf("NewGridSearch failed: %v", err)
	}

	_, err = search.Run()
	if !errors.Is(err, broken) {
		t.Fatalf("Expected the analysis error, got %v", err)
	}
	if search.Status() != StatusFailed {
		t.Errorf("Expected failed, got %s", search.Status())
	}
}

func TestGridSearchContinuesThroughFitErrors(t *testing.T) {
	analysis := &stubAnalysis{
		fit: func(instance *model.Instance) (float64, error) {
			obj := instance.Get("pair").(*pair)
			if obj.X < 0.5 {
				return 0, &FitError{Reason: "unphysical model"}
			}
			return obj.X + obj.Y, nil
		},
	}

	search, err := NewGridSearch(pairSpace(t), analysis, config.Default(), quietOptions(t.TempDir()), 0.25)
	if err != nil {
		t.Fatalf("NewGridSearch failed: %v", err)
	}

	result, err := search.Run()
	if err != nil {
		t.Fatalf("Fit errors must not fail the run: %v", err)
	}
	if result.Score != 1.5 {
		t.Errorf("Expected best 1.5 at (0.75, 0.75), got %g", result.Score)
	}
}

func TestGridSearchInvalidStepSize(t *testing.T) {
	analysis := &stubAnalysis{
		fit: func(*model.Instance) (float64, error) { return 0, nil },
	}

	for _, step := range []float64{0, -0.1, 1.5} {
		if _, err := NewGridSearch(pairSpace(t), analysis, config.Default(), quietOptions(t.TempDir()), step); err == nil {
			t.Errorf("Expected error for step %g", step)
		}
	}
}

func TestGridSearchWritesTraceAtLogInterval(t *testing.T) {
	baseDir := t.TempDir()
	analysis := &stubAnalysis{
		fit: func(*model.Instance) (float64, error) { return 1.0, nil },
	}

	opts := quietOptions(baseDir)
	opts.LogInterval = 2
	search, err := NewGridSearch(pairSpace(t), analysis, config.Default(), opts, 0.5)
	if err != nil {
		t.Fatalf("NewGridSearch failed: %v", err)
	}
	if _, err := search.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	reader, err := store.NewTraceReader(baseDir, search.RunID())
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	// 4 lattice points, entries at calls 2 and 4 only.
	if len(entries) != 2 {
		t.Fatalf("Expected 2 trace entries, got %d", len(entries))
	}
	if entries[0].Call != 2 || entries[1].Call != 4 {
		t.Errorf("Expected entries at calls 2 and 4, got %d and %d", entries[0].Call, entries[1].Call)
	}
}

func TestGridSearchBacksUpWorkingDirectory(t *testing.T) {
	baseDir := t.TempDir()
	analysis := &stubAnalysis{
		fit: func(*model.Instance) (float64, error) { return 1.0, nil },
	}

	search, err := NewGridSearch(pairSpace(t), analysis, config.Default(), quietOptions(baseDir), 0.5)
	if err != nil {
		t.Fatalf("NewGridSearch failed: %v", err)
	}
	if _, err := search.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	backup := filepath.Join(baseDir, "backup", search.RunID(), "checkpoint")
	if _, err := os.Stat(backup); err != nil {
		t.Errorf("Expected checkpoint mirrored into backup: %v", err)
	}
}
