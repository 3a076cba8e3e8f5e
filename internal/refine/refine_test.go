package refine

import (
	"errors"
	"testing"

	"github.com/cwbudde/priorfit/internal/config"
	"github.com/cwbudde/priorfit/internal/model"
	"github.com/cwbudde/priorfit/internal/prior"
)

type quadModel struct {
	One   float64
	Two   float64
	Three float64
	Four  float64
}

func quadSpace(t *testing.T) *model.ParameterSpace {
	t.Helper()
	s := model.NewParameterSpace()
	n, err := model.NodeOf[quadModel](config.Default())
	if err != nil {
		t.Fatalf("NodeOf failed: %v", err)
	}
	s.AddModel("quad", n)
	return s
}

func gaussiansOf(t *testing.T, s *model.ParameterSpace) []*prior.GaussianPrior {
	t.Helper()
	tuples := s.PriorTuplesOrderedByID()
	out := make([]*prior.GaussianPrior, len(tuples))
	for i, tu := range tuples {
		gp, ok := tu.Prior.(*prior.GaussianPrior)
		if !ok {
			t.Fatalf("prior %d is %T, want GaussianPrior", i, tu.Prior)
		}
		out[i] = gp
	}
	return out
}

func TestConflictingPolicyFails(t *testing.T) {
	s := quadSpace(t)
	a, r := 2.0, 1.0

	_, err := SpaceFromMeans(s, []float64{1, 2, 3, 4}, WidthPolicy{Absolute: &a, Relative: &r}, config.Default())
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestAbsoluteWidth(t *testing.T) {
	s := quadSpace(t)

	refined, err := SpaceFromMeans(s, []float64{1, 2, 3, 4}, AbsoluteWidth(2.0), config.Default())
	if err != nil {
		t.Fatalf("SpaceFromMeans failed: %v", err)
	}

	for i, gp := range gaussiansOf(t, refined) {
		if gp.Sigma != 2.0 {
			t.Errorf("prior %d sigma = %v, want 2.0 regardless of mean", i, gp.Sigma)
		}
		if gp.Mean != float64(i+1) {
			t.Errorf("prior %d mean = %v, want %d", i, gp.Mean, i+1)
		}
	}
}

func TestRelativeWidth(t *testing.T) {
	s := quadSpace(t)

	refined, err := SpaceFromMeans(s, []float64{1, 2, 3, 4}, RelativeWidth(1.0), config.Default())
	if err != nil {
		t.Fatalf("SpaceFromMeans failed: %v", err)
	}

	for i, gp := range gaussiansOf(t, refined) {
		if gp.Sigma != gp.Mean {
			t.Errorf("prior %d sigma = %v, want mean %v", i, gp.Sigma, gp.Mean)
		}
	}
}

func TestPureEmpiricalWidth(t *testing.T) {
	s := quadSpace(t)

	// r = 0 makes the policy floor vanish; zero empirical width gives
	// degenerate Gaussians pinned at the means.
	refined, err := SpaceFromMeans(s, []float64{1, 2, 3, 4}, RelativeWidth(0.0), config.Default())
	if err != nil {
		t.Fatalf("SpaceFromMeans failed: %v", err)
	}

	for i, gp := range gaussiansOf(t, refined) {
		if gp.Sigma != 0.0 {
			t.Errorf("prior %d sigma = %v, want 0", i, gp.Sigma)
		}
		if gp.Mean != float64(i+1) {
			t.Errorf("prior %d mean = %v, want %d", i, gp.Mean, i+1)
		}
	}
}

func TestEmpiricalWidthWinsOverPolicy(t *testing.T) {
	s := quadSpace(t)

	summaries := []Summary{
		{Mean: 1, Width: 5.0}, // wider than the policy floor
		{Mean: 2, Width: 0.1},
		{Mean: 3, Width: 0.0},
		{Mean: 4, Width: 2.0},
	}
	refined, err := Space(s, summaries, AbsoluteWidth(2.0), config.Default())
	if err != nil {
		t.Fatalf("Space failed: %v", err)
	}

	want := []float64{5.0, 2.0, 2.0, 2.0}
	for i, gp := range gaussiansOf(t, refined) {
		if gp.Sigma != want[i] {
			t.Errorf("prior %d sigma = %v, want %v", i, gp.Sigma, want[i])
		}
	}
}

func TestConfiguredWidthRequiresConfigEntry(t *testing.T) {
	s := quadSpace(t)

	_, err := SpaceFromMeans(s, []float64{1, 2, 3, 4}, ConfiguredWidth(), config.Default())
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for missing width config, got %v", err)
	}
}

func TestConfiguredWidthFromConfig(t *testing.T) {
	cfg, err := config.Parse([]byte(`
widths:
  quadModel:
    One: {kind: absolute, value: 3.0}
    Two: {kind: absolute, value: 3.0}
    Three: {kind: relative, value: 0.5}
    Four: {kind: relative, value: 0.5}
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	s := quadSpace(t)
	refined, err := SpaceFromMeans(s, []float64{1, 2, 3, 4}, ConfiguredWidth(), cfg)
	if err != nil {
		t.Fatalf("SpaceFromMeans failed: %v", err)
	}

	want := []float64{3.0, 3.0, 1.5, 2.0}
	for i, gp := range gaussiansOf(t, refined) {
		if gp.Sigma != want[i] {
			t.Errorf("prior %d sigma = %v, want %v", i, gp.Sigma, want[i])
		}
	}
}

func TestRefinementPreservesSharing(t *testing.T) {
	s := quadSpace(t)
	n := s.Model("quad")
	shared := prior.NewUniformPrior(0, 1)
	n.SetPrior("One", shared)
	n.SetPrior("Two", shared)

	refined, err := SpaceFromMeans(s, []float64{1, 2, 3}, AbsoluteWidth(1.0), config.Default())
	if err != nil {
		t.Fatalf("SpaceFromMeans failed: %v", err)
	}

	if got := refined.ParameterCount(); got != 3 {
		t.Fatalf("refined ParameterCount = %d, want 3", got)
	}

	inst, err := refined.InstanceFromPhysicalVector([]float64{10, 20, 30})
	if err != nil {
		t.Fatal(err)
	}
	q := inst.Get("quad").(*quadModel)
	if q.One != q.Two {
		t.Errorf("sharing lost after refinement: One=%v Two=%v", q.One, q.Two)
	}
}

func TestLimitsCarryOverFromGaussian(t *testing.T) {
	s := quadSpace(t)
	n := s.Model("quad")
	n.SetPrior("One", prior.NewGaussianPriorWithLimits(0, 1, -5, 5))

	refined, err := SpaceFromMeans(s, []float64{9, 2, 3, 4}, AbsoluteWidth(1.0), config.Default())
	if err != nil {
		t.Fatalf("SpaceFromMeans failed: %v", err)
	}

	// The refined prior for One keeps [-5, 5] and clamps its output.
	tuples := refined.PriorTuplesOrderedByID()
	var one *prior.GaussianPrior
	for _, tu := range tuples {
		if tu.Name == "quad_One" {
			one = tu.Prior.(*prior.GaussianPrior)
		}
	}
	if one == nil {
		t.Fatal("quad_One not found in refined space")
	}
	lower, upper := one.Limits()
	if lower != -5 || upper != 5 {
		t.Errorf("limits = [%v, %v], want [-5, 5]", lower, upper)
	}
	if got := one.ValueFor(0.9999); got != 5 {
		t.Errorf("ValueFor in upper tail = %v, want clamped 5", got)
	}
}

func TestRefinedLimitsFromConfig(t *testing.T) {
	cfg, err := config.Parse([]byte(`
limits:
  quadModel:
    One: {lower: 0.0, upper: 2.0}
`))
	if err != nil {
		t.Fatal(err)
	}

	s := quadSpace(t)
	refined, err := SpaceFromMeans(s, []float64{1, 2, 3, 4}, AbsoluteWidth(10.0), cfg)
	if err != nil {
		t.Fatal(err)
	}

	for _, tu := range refined.PriorTuplesOrderedByID() {
		if tu.Name != "quad_One" {
			continue
		}
		gp := tu.Prior.(*prior.GaussianPrior)
		lower, upper := gp.Limits()
		if lower != 0 || upper != 2 {
			t.Errorf("limits = [%v, %v], want [0, 2]", lower, upper)
		}
	}
}

func TestSummaryCountMismatch(t *testing.T) {
	s := quadSpace(t)

	_, err := SpaceFromMeans(s, []float64{1, 2}, AbsoluteWidth(1.0), config.Default())
	var dimErr *model.DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionError, got %v", err)
	}
}

func TestSummariesAtSigma(t *testing.T) {
	summaries, err := SummariesAtSigma(
		[]float64{10, 20},
		[]float64{12, 21},
		[]float64{9, 17},
	)
	if err != nil {
		t.Fatal(err)
	}

	if summaries[0].Width != 2.0 {
		t.Errorf("width[0] = %v, want max(12-10, 10-9) = 2", summaries[0].Width)
	}
	if summaries[1].Width != 3.0 {
		t.Errorf("width[1] = %v, want max(21-20, 20-17) = 3", summaries[1].Width)
	}
}
