package profile

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
)

// Dataset is a 1D line observation: signal values on a grid with
// per-point Gaussian noise estimates.
type Dataset struct {
	Xs    []float64 `json:"xs"`
	Data  []float64 `json:"data"`
	Noise []float64 `json:"noise"`
}

// Validate checks the dataset for consistent shape and usable noise.
func (d *Dataset) Validate() error {
	if len(d.Xs) == 0 {
		return fmt.Errorf("dataset is empty")
	}
	if len(d.Data) != len(d.Xs) || len(d.Noise) != len(d.Xs) {
		return fmt.Errorf("dataset shape mismatch: %d xs, %d data, %d noise",
			len(d.Xs), len(d.Data), len(d.Noise))
	}
	for i, n := range d.Noise {
		if n <= 0 {
			return fmt.Errorf("noise must be positive, got %g at index %d", n, i)
		}
	}
	return nil
}

// Synthesize generates a noisy observation of the given profile on a
// uniform grid of n points over [0, extent). Deterministic for a seed.
func Synthesize(p LineProfile, n int, extent, noiseSigma float64, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = extent * float64(i) / float64(n)
	}

	data := p.Line(xs)
	noise := make([]float64, n)
	for i := range data {
		data[i] += rng.NormFloat64() * noiseSigma
		noise[i] = noiseSigma
	}

	return &Dataset{Xs: xs, Data: data, Noise: noise}
}

// LoadDataset reads a dataset from a JSON file.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}

	var d Dataset
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse dataset file: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Save writes the dataset to a JSON file.
func (d *Dataset) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize dataset: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write dataset file: %w", err)
	}
	return nil
}
