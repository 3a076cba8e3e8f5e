package profile

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/priorfit/internal/config"
	"github.com/cwbudde/priorfit/internal/driver"
	"github.com/cwbudde/priorfit/internal/model"
	"github.com/cwbudde/priorfit/internal/prior"
)

func testDataset(t *testing.T) *Dataset {
	t.Helper()

	truth := &Gaussian{Centre: 5.0, Intensity: 10.0, Sigma: 1.0}
	return Synthesize(truth, 100, 10.0, 0.1, 42)
}

// gaussianInstance resolves a single-Gaussian space at the given centre,
// with intensity and sigma held constant.
func gaussianInstance(t *testing.T, centre float64) *model.Instance {
	t.Helper()

	node, err := model.NodeOf[Gaussian](config.Default())
	if err != nil {
		t.Fatalf("Failed to build node: %v", err)
	}
	if err := node.SetPrior("Centre", prior.NewUniformPrior(0, 10)); err != nil {
		t.Fatalf("SetPrior failed: %v", err)
	}
	if err := node.SetConstant("Intensity", 10.0); err != nil {
		t.Fatalf("SetConstant failed: %v", err)
	}
	if err := node.SetConstant("Sigma", 1.0); err != nil {
		t.Fatalf("SetConstant failed: %v", err)
	}

	space := model.NewParameterSpace()
	space.AddModel("gaussian", node)

	instance, err := space.InstanceFromPhysicalVector([]float64{centre})
	if err != nil {
		t.Fatalf("InstanceFromPhysicalVector failed: %v", err)
	}
	return instance
}

func TestAnalysisFitPrefersTruth(t *testing.T) {
	analysis, err := NewAnalysis(testDataset(t))
	if err != nil {
		t.Fatalf("NewAnalysis failed: %v", err)
	}

	atTruth, err := analysis.Fit(gaussianInstance(t, 5.0))
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	offTruth, err := analysis.Fit(gaussianInstance(t, 7.0))
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if atTruth <= offTruth {
		t.Errorf("Expected higher likelihood at the true centre: %g vs %g", atTruth, offTruth)
	}
}

func TestAnalysisFitNonFiniteModelIsFitError(t *testing.T) {
	analysis, err := NewAnalysis(testDataset(t))
	if err != nil {
		t.Fatalf("NewAnalysis failed: %v", err)
	}

	// Zero sigma blows the normalization up to infinity.
	node, err := model.NodeOf[Gaussian](config.Default())
	if err != nil {
		t.Fatalf("Failed to build node: %v", err)
	}
	node.SetConstant("Centre", 5.0)
	node.SetConstant("Intensity", 10.0)
	node.SetConstant("Sigma", 0.0)

	space := model.NewParameterSpace()
	space.AddModel("gaussian", node)
	instance, err := space.InstanceFromPhysicalVector(nil)
	if err != nil {
		t.Fatalf("InstanceFromPhysicalVector failed: %v", err)
	}

	_, err = analysis.Fit(instance)
	if !errors.Is(err, &driver.FitError{}) {
		t.Fatalf("Expected FitError for non-finite model, got %v", err)
	}
}

func TestAnalysisFitSumsMultipleProfiles(t *testing.T) {
	dataset := testDataset(t)
	analysis, err := NewAnalysis(dataset)
	if err != nil {
		t.Fatalf("NewAnalysis failed: %v", err)
	}

	gaussianNode, err := model.NodeOf[Gaussian](config.Default())
	if err != nil {
		t.Fatalf("Failed to build node: %v", err)
	}
	gaussianNode.SetConstant("Centre", 5.0)
	gaussianNode.SetConstant("Intensity", 10.0)
	gaussianNode.SetConstant("Sigma", 1.0)

	exponentialNode, err := model.NodeOf[Exponential](config.Default())
	if err != nil {
		t.Fatalf("Failed to build node: %v", err)
	}
	exponentialNode.SetConstant("Centre", 5.0)
	exponentialNode.SetConstant("Intensity", 0.0)
	exponentialNode.SetConstant("Rate", 1.0)

	space := model.NewParameterSpace()
	space.AddModel("gaussian", gaussianNode)
	space.AddModel("exponential", exponentialNode)

	instance, err := space.InstanceFromPhysicalVector(nil)
	if err != nil {
		t.Fatalf("InstanceFromPhysicalVector failed: %v", err)
	}

	// The zero-intensity exponential contributes nothing, so the score
	// must match the single-Gaussian fit exactly.
	both, err := analysis.Fit(instance)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	single, err := analysis.Fit(gaussianInstance(t, 5.0))
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if math.Abs(both-single) > 1e-9 {
		t.Errorf("Expected equal scores, got %g and %g", both, single)
	}
}

func TestAnalysisVisualizeWritesDump(t *testing.T) {
	analysis, err := NewAnalysis(testDataset(t))
	if err != nil {
		t.Fatalf("NewAnalysis failed: %v", err)
	}

	outDir := t.TempDir()
	if err := analysis.Visualize(gaussianInstance(t, 5.0), outDir, true); err != nil {
		t.Fatalf("Visualize failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "fit.json"))
	if err != nil {
		t.Fatalf("Failed to read fit dump: %v", err)
	}

	var dump struct {
		Xs     []float64 `json:"xs"`
		Data   []float64 `json:"data"`
		Model  []float64 `json:"model"`
		During bool      `json:"during"`
	}
	if err := json.Unmarshal(data, &dump); err != nil {
		t.Fatalf("Failed to parse fit dump: %v", err)
	}
	if len(dump.Model) != 100 || len(dump.Xs) != 100 {
		t.Errorf("Expected 100-point dump, got %d model, %d xs", len(dump.Model), len(dump.Xs))
	}
	if !dump.During {
		t.Error("Expected during flag set")
	}
}

func TestAnalysisRejectsProfileFreeInstance(t *testing.T) {
	analysis, err := NewAnalysis(testDataset(t))
	if err != nil {
		t.Fatalf("NewAnalysis failed: %v", err)
	}

	space := model.NewParameterSpace()
	space.AddFixed("label", "not a profile")
	instance, err := space.InstanceFromPhysicalVector(nil)
	if err != nil {
		t.Fatalf("InstanceFromPhysicalVector failed: %v", err)
	}

	_, err = analysis.Fit(instance)
	if err == nil {
		t.Fatal("Expected error for an instance with no profiles")
	}
	if errors.Is(err, &driver.FitError{}) {
		t.Error("A profile-free instance is a programming error, not a fit error")
	}
}

func TestGridSearchRecoversCentre(t *testing.T) {
	dataset := testDataset(t)
	analysis, err := NewAnalysis(dataset)
	if err != nil {
		t.Fatalf("NewAnalysis failed: %v", err)
	}

	node, err := model.NodeOf[Gaussian](config.Default())
	if err != nil {
		t.Fatalf("Failed to build node: %v", err)
	}
	node.SetPrior("Centre", prior.NewUniformPrior(0, 10))
	node.SetConstant("Intensity", 10.0)
	node.SetConstant("Sigma", 1.0)

	space := model.NewParameterSpace()
	space.AddModel("gaussian", node)

	opts := driver.Options{
		BaseDir:           t.TempDir(),
		VisualizeInterval: driver.Never,
		LogInterval:       driver.Never,
		BackupInterval:    driver.Never,
	}
	search, err := driver.NewGridSearch(space, analysis, config.Default(), opts, 0.05)
	if err != nil {
		t.Fatalf("NewGridSearch failed: %v", err)
	}

	result, err := search.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Lattice values are multiples of 0.5 in physical units; the true
	// centre 5.0 lies exactly on the grid.
	if len(result.Vector) != 1 || math.Abs(result.Vector[0]-5.0) > 1e-9 {
		t.Errorf("Expected recovered centre 5.0, got %v", result.Vector)
	}
}
