package prior

import "math"

// UniformPrior interpolates linearly between a lower and upper limit.
type UniformPrior struct {
	id    int64
	Lower float64
	Upper float64
}

// NewUniformPrior creates a uniform prior over [lower, upper].
func NewUniformPrior(lower, upper float64) *UniformPrior {
	return &UniformPrior{
		id:    nextID(),
		Lower: lower,
		Upper: upper,
	}
}

func (p *UniformPrior) ID() int64 {
	return p.id
}

func (p *UniformPrior) ValueFor(unit float64) float64 {
	return p.Lower + unit*(p.Upper-p.Lower)
}

// LogUniformPrior interpolates uniformly in log10 space between two positive
// limits. Useful for scale parameters spanning orders of magnitude.
type LogUniformPrior struct {
	id    int64
	Lower float64
	Upper float64
}

// NewLogUniformPrior creates a log-uniform prior over [lower, upper].
// Both limits must be positive.
func NewLogUniformPrior(lower, upper float64) *LogUniformPrior {
	return &LogUniformPrior{
		id:    nextID(),
		Lower: lower,
		Upper: upper,
	}
}

func (p *LogUniformPrior) ID() int64 {
	return p.id
}

func (p *LogUniformPrior) ValueFor(unit float64) float64 {
	lo := math.Log10(p.Lower)
	hi := math.Log10(p.Upper)
	return math.Pow(10, lo+unit*(hi-lo))
}

// GaussianPrior maps the unit interval through the inverse CDF of a normal
// distribution, then clamps the result to optional hard limits.
type GaussianPrior struct {
	id    int64
	Mean  float64
	Sigma float64
	Lower float64 // hard limit, -Inf when unbounded
	Upper float64 // hard limit, +Inf when unbounded
}

// NewGaussianPrior creates an unbounded Gaussian prior.
func NewGaussianPrior(mean, sigma float64) *GaussianPrior {
	return NewGaussianPriorWithLimits(mean, sigma, math.Inf(-1), math.Inf(1))
}

// NewGaussianPriorWithLimits creates a Gaussian prior whose output is
// clamped to [lower, upper].
func NewGaussianPriorWithLimits(mean, sigma, lower, upper float64) *GaussianPrior {
	return &GaussianPrior{
		id:    nextID(),
		Mean:  mean,
		Sigma: sigma,
		Lower: lower,
		Upper: upper,
	}
}

func (p *GaussianPrior) ID() int64 {
	return p.id
}

func (p *GaussianPrior) ValueFor(unit float64) float64 {
	v := p.Mean + p.Sigma*math.Sqrt2*math.Erfinv(2*unit-1)
	return math.Max(p.Lower, math.Min(p.Upper, v))
}

// Limits returns the hard limits carried by this prior.
func (p *GaussianPrior) Limits() (lower, upper float64) {
	return p.Lower, p.Upper
}
