// Package profile provides the worked 1D profile-fitting domain: line
// profiles, datasets and a chi-squared Analysis implementing the search
// driver's contract.
package profile

import "math"

// LineProfile evaluates a model line over a grid of x positions.
type LineProfile interface {
	Line(xs []float64) []float64
}

// Gaussian is a 1D Gaussian line profile.
type Gaussian struct {
	Centre    float64
	Intensity float64
	Sigma     float64
}

// Line evaluates the profile on the given grid.
func (g *Gaussian) Line(xs []float64) []float64 {
	out := make([]float64, len(xs))
	norm := g.Intensity / (g.Sigma * math.Sqrt(2*math.Pi))
	for i, x := range xs {
		z := (x - g.Centre) / g.Sigma
		out[i] = norm * math.Exp(-0.5*z*z)
	}
	return out
}

// Exponential is a 1D symmetric exponential line profile.
type Exponential struct {
	Centre    float64
	Intensity float64
	Rate      float64
}

// Line evaluates the profile on the given grid.
func (e *Exponential) Line(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = e.Intensity * e.Rate * math.Exp(-e.Rate*math.Abs(x-e.Centre))
	}
	return out
}
