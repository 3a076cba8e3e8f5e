package prior

import (
	"math"
	"testing"
)

func TestUniformPriorValueFor(t *testing.T) {
	tests := []struct {
		name         string
		lower, upper float64
		unit         float64
		want         float64
	}{
		{"unit interval midpoint", 0, 1, 0.5, 0.5},
		{"unit interval lower", 0, 1, 0.0, 0.0},
		{"unit interval upper", 0, 1, 1.0, 1.0},
		{"shifted range", 10, 20, 0.25, 12.5},
		{"negative range", -4, 4, 0.75, 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewUniformPrior(tt.lower, tt.upper)
			got := p.ValueFor(tt.unit)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("ValueFor(%v) = %v, want %v", tt.unit, got, tt.want)
			}
		})
	}
}

func TestLogUniformPriorValueFor(t *testing.T) {
	p := NewLogUniformPrior(0.01, 100)

	// Midpoint of log10 space: 10^((-2+2)/2) = 1
	got := p.ValueFor(0.5)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("ValueFor(0.5) = %v, want 1.0", got)
	}

	if got := p.ValueFor(0.0); math.Abs(got-0.01) > 1e-9 {
		t.Errorf("ValueFor(0) = %v, want 0.01", got)
	}
	if got := p.ValueFor(1.0); math.Abs(got-100) > 1e-6 {
		t.Errorf("ValueFor(1) = %v, want 100", got)
	}
}

func TestGaussianPriorValueFor(t *testing.T) {
	p := NewGaussianPrior(3.0, 2.0)

	// Median of the distribution is the mean.
	if got := p.ValueFor(0.5); math.Abs(got-3.0) > 1e-12 {
		t.Errorf("ValueFor(0.5) = %v, want 3.0", got)
	}

	// Symmetric around the mean.
	lo := p.ValueFor(0.2)
	hi := p.ValueFor(0.8)
	if math.Abs((3.0-lo)-(hi-3.0)) > 1e-9 {
		t.Errorf("values not symmetric: %v, %v", lo, hi)
	}

	// One sigma: unit for +1 sigma is 0.5*(1+erf(1/sqrt2)).
	unit := 0.5 * (1 + math.Erf(1/math.Sqrt2))
	if got := p.ValueFor(unit); math.Abs(got-5.0) > 1e-9 {
		t.Errorf("ValueFor(+1 sigma) = %v, want 5.0", got)
	}
}

func TestGaussianPriorClampsToLimits(t *testing.T) {
	p := NewGaussianPriorWithLimits(0.0, 1.0, -0.5, 0.5)

	if got := p.ValueFor(0.999); got != 0.5 {
		t.Errorf("upper tail = %v, want clamped 0.5", got)
	}
	if got := p.ValueFor(0.001); got != -0.5 {
		t.Errorf("lower tail = %v, want clamped -0.5", got)
	}
	if got := p.ValueFor(0.5); got != 0.0 {
		t.Errorf("median = %v, want 0.0", got)
	}
}

func TestZeroSigmaGaussianIsDegenerate(t *testing.T) {
	p := NewGaussianPrior(7.0, 0.0)
	for _, unit := range []float64{0.1, 0.5, 0.9} {
		if got := p.ValueFor(unit); got != 7.0 {
			t.Errorf("ValueFor(%v) = %v, want 7.0", unit, got)
		}
	}
}

func TestCreationIDsIncrease(t *testing.T) {
	a := NewUniformPrior(0, 1)
	b := NewGaussianPrior(0, 1)
	c := NewLogUniformPrior(1, 10)

	if !(a.ID() < b.ID() && b.ID() < c.ID()) {
		t.Errorf("ids not increasing: %d, %d, %d", a.ID(), b.ID(), c.ID())
	}
}

func TestIdenticalParametersDistinctIdentity(t *testing.T) {
	a := NewUniformPrior(0, 1)
	b := NewUniformPrior(0, 1)
	if a.ID() == b.ID() {
		t.Error("two priors with equal parameters must still have distinct ids")
	}
}
