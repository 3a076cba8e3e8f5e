package opt

// Optimizer defines the contract for the external black-box minimizers the
// search driver can delegate to.
type Optimizer interface {
	// Run minimizes eval over the box [lower, upper] with dimensionality
	// dim and returns the best position and its value. The driver adapts
	// likelihoods (higher is better) by negating before handing eval over.
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}
