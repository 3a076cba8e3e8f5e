package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Checkpoint is the crash-recovery record a sequential grid search writes
// after every evaluation. The persisted form is line-oriented: calls
// completed, best score, best vector literal, step size and parameter
// count, one field per line, in that order.
type Checkpoint struct {
	// Calls is the number of fitness calls completed so far.
	Calls int

	// BestScore is the best (highest) score seen so far. A resumed run is
	// seeded from this value verbatim.
	BestScore float64

	// BestVector is the unit-cube vector that produced BestScore. Empty
	// until the first successful evaluation.
	BestVector []float64

	// StepSize is the lattice step of the run that wrote this record.
	StepSize float64

	// ParameterCount is the dimensionality of the run that wrote this
	// record. A record is only valid against a run of the same shape.
	ParameterCount int
}

// Validate checks the record for internally inconsistent data.
func (c *Checkpoint) Validate() error {
	if c.Calls < 0 {
		return &ValidationError{Field: "Calls", Reason: "cannot be negative"}
	}
	if c.StepSize <= 0 || c.StepSize > 1 {
		return &ValidationError{Field: "StepSize", Reason: "must be in (0, 1]"}
	}
	if c.ParameterCount <= 0 {
		return &ValidationError{Field: "ParameterCount", Reason: "must be positive"}
	}
	if len(c.BestVector) != 0 && len(c.BestVector) != c.ParameterCount {
		return &ValidationError{
			Field:  "BestVector",
			Reason: fmt.Sprintf("length %d does not match parameter count %d", len(c.BestVector), c.ParameterCount),
		}
	}
	return nil
}

// Compatible checks whether a run with the given shape may resume from
// this record. A mismatch is fatal: silently resuming with the wrong
// dimensionality or step would corrupt the enumeration.
func (c *Checkpoint) Compatible(stepSize float64, parameterCount int) error {
	if c.ParameterCount != parameterCount {
		return &MismatchError{
			Field:    "ParameterCount",
			Expected: strconv.Itoa(c.ParameterCount),
			Actual:   strconv.Itoa(parameterCount),
		}
	}
	if c.StepSize != stepSize {
		return &MismatchError{
			Field:    "StepSize",
			Expected: formatFloat(c.StepSize),
			Actual:   formatFloat(stepSize),
		}
	}
	return nil
}

// Encode renders the record in its persisted line-oriented form.
func (c *Checkpoint) Encode() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%d\n", c.Calls)
	fmt.Fprintf(&b, "%s\n", formatFloat(c.BestScore))
	fmt.Fprintf(&b, "%s\n", formatVector(c.BestVector))
	fmt.Fprintf(&b, "%s\n", formatFloat(c.StepSize))
	fmt.Fprintf(&b, "%d\n", c.ParameterCount)
	return []byte(b.String())
}

// ParseCheckpoint decodes the persisted line-oriented form.
func ParseCheckpoint(data []byte) (*Checkpoint, error) {
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) < 5 {
		return nil, fmt.Errorf("checkpoint record has %d lines, want 5", len(lines))
	}

	calls, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse calls completed: %w", err)
	}
	bestScore, err := strconv.ParseFloat(strings.TrimSpace(lines[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse best score: %w", err)
	}
	bestVector, err := parseVector(lines[2])
	if err != nil {
		return nil, fmt.Errorf("failed to parse best vector: %w", err)
	}
	stepSize, err := strconv.ParseFloat(strings.TrimSpace(lines[3]), 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse step size: %w", err)
	}
	count, err := strconv.Atoi(strings.TrimSpace(lines[4]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse parameter count: %w", err)
	}

	checkpoint := &Checkpoint{
		Calls:          calls,
		BestScore:      bestScore,
		BestVector:     bestVector,
		StepSize:       stepSize,
		ParameterCount: count,
	}
	if err := checkpoint.Validate(); err != nil {
		return nil, err
	}
	return checkpoint, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = formatFloat(x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func parseVector(line string) ([]float64, error) {
	s := strings.TrimSpace(line)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("vector literal must be bracketed, got %q", line)
	}
	s = strings.TrimSpace(s[1 : len(s)-1])
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("bad vector element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// ValidationError reports an internally inconsistent checkpoint record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// MismatchError reports a checkpoint record that describes an incompatible
// prior run. Use errors.Is(err, &MismatchError{}) to check for it.
type MismatchError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *MismatchError) Error() string {
	return "checkpoint mismatch: " + e.Field + " (checkpoint " + e.Expected + ", run " + e.Actual + ")"
}

func (e *MismatchError) Is(target error) bool {
	_, ok := target.(*MismatchError)
	return ok
}
