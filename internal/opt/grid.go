package opt

// MakeLists returns every lattice point a grid search visits over the unit
// hypercube: each axis takes values 0, step, 2*step, ... strictly below 1,
// enumerated in row-major order with the last axis varying fastest. The
// enumeration order is deterministic, which is what makes call-count-based
// checkpoint resume possible.
func MakeLists(dim int, step float64) [][]float64 {
	n := int(1/step + 1e-9)
	if n < 1 || dim < 1 {
		return nil
	}

	total := 1
	for i := 0; i < dim; i++ {
		total *= n
	}

	points := make([][]float64, 0, total)
	indices := make([]int, dim)
	for {
		point := make([]float64, dim)
		for i, idx := range indices {
			point[i] = float64(idx) * step
		}
		points = append(points, point)

		// Advance the last axis first.
		i := dim - 1
		for i >= 0 {
			indices[i]++
			if indices[i] < n {
				break
			}
			indices[i] = 0
			i--
		}
		if i < 0 {
			return points
		}
	}
}
