package profile

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/cwbudde/priorfit/internal/driver"
	"github.com/cwbudde/priorfit/internal/model"
)

// Analysis scores resolved instances against a dataset with a Gaussian
// chi-squared log likelihood. Every object in the instance implementing
// LineProfile contributes to the summed model line.
type Analysis struct {
	dataset *Dataset
}

// NewAnalysis creates an analysis over the given dataset.
func NewAnalysis(dataset *Dataset) (*Analysis, error) {
	if err := dataset.Validate(); err != nil {
		return nil, err
	}
	return &Analysis{dataset: dataset}, nil
}

// Fit returns the log likelihood of the instance given the dataset.
// Unphysical parameter combinations that produce non-finite model values
// score as a recoverable FitError.
func (a *Analysis) Fit(instance *model.Instance) (float64, error) {
	line, err := a.modelLine(instance)
	if err != nil {
		return 0, err
	}

	logLikelihood := 0.0
	for i, m := range line {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return 0, &driver.FitError{Reason: fmt.Sprintf("non-finite model value at index %d", i)}
		}
		residual := (a.dataset.Data[i] - m) / a.dataset.Noise[i]
		logLikelihood += -0.5 * (residual*residual + math.Log(2*math.Pi*a.dataset.Noise[i]*a.dataset.Noise[i]))
	}
	return logLikelihood, nil
}

// Visualize writes the model line alongside the data as JSON into outDir.
// During a run the file is rewritten at the visualize interval; the final
// call overwrites it with the best fit.
func (a *Analysis) Visualize(instance *model.Instance, outDir string, during bool) error {
	line, err := a.modelLine(instance)
	if err != nil {
		return err
	}

	dump := struct {
		Xs     []float64 `json:"xs"`
		Data   []float64 `json:"data"`
		Model  []float64 `json:"model"`
		During bool      `json:"during"`
	}{Xs: a.dataset.Xs, Data: a.dataset.Data, Model: line, During: during}

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize fit dump: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "fit.json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write fit dump: %w", err)
	}
	return nil
}

// modelLine sums the lines of every profile in the instance.
func (a *Analysis) modelLine(instance *model.Instance) ([]float64, error) {
	line := make([]float64, len(a.dataset.Xs))
	profiles := 0
	for _, obj := range instance.Objects() {
		p, ok := obj.(LineProfile)
		if !ok {
			continue
		}
		profiles++
		for i, v := range p.Line(a.dataset.Xs) {
			line[i] += v
		}
	}
	if profiles == 0 {
		return nil, fmt.Errorf("instance contains no line profiles")
	}
	return line, nil
}
