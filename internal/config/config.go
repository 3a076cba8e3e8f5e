// Package config supplies default priors, refinement width policies and
// hard limits, keyed by the model struct type and field name. It is passed
// explicitly into the parameter space, refinement engine and search driver
// rather than living in ambient global state.
package config

import (
	"fmt"
	"math"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/priorfit/internal/prior"
)

// WidthKind selects how a configured refinement width is applied.
type WidthKind string

const (
	// WidthAbsolute uses the configured value as the sigma directly.
	WidthAbsolute WidthKind = "absolute"
	// WidthRelative multiplies the configured value by the posterior mean.
	WidthRelative WidthKind = "relative"
)

type priorSpec struct {
	Type  string  `yaml:"type"` // uniform, log_uniform, gaussian
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`
	Mean  float64 `yaml:"mean"`
	Sigma float64 `yaml:"sigma"`
}

type widthSpec struct {
	Kind  WidthKind `yaml:"kind"`
	Value float64   `yaml:"value"`
}

type limitSpec struct {
	Lower *float64 `yaml:"lower"`
	Upper *float64 `yaml:"upper"`
}

type fileFormat struct {
	Priors map[string]map[string]priorSpec `yaml:"priors"`
	Widths map[string]map[string]widthSpec `yaml:"widths"`
	Limits map[string]map[string]limitSpec `yaml:"limits"`
	Labels map[string]string               `yaml:"labels"`
}

// Config holds prior, width and limit defaults keyed by class name then
// field name. Lookups fall back to the nearest ancestor class, where
// ancestry is expressed through embedded struct types.
type Config struct {
	priors map[string]map[string]priorSpec
	widths map[string]map[string]widthSpec
	limits map[string]map[string]limitSpec
	labels map[string]string
}

// Default returns an empty configuration. Unconfigured fields receive a
// uniform prior over the unit interval, and limits default to unbounded.
func Default() *Config {
	return &Config{
		priors: map[string]map[string]priorSpec{},
		widths: map[string]map[string]widthSpec{},
		limits: map[string]map[string]limitSpec{},
		labels: map[string]string{},
	}
}

// Load reads a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration data.
func Parse(data []byte) (*Config, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := Default()
	if f.Priors != nil {
		cfg.priors = f.Priors
	}
	if f.Widths != nil {
		cfg.widths = f.Widths
	}
	if f.Limits != nil {
		cfg.limits = f.Limits
	}
	if f.Labels != nil {
		cfg.labels = f.Labels
	}

	for class, fields := range cfg.priors {
		for field, spec := range fields {
			switch spec.Type {
			case "uniform", "log_uniform", "gaussian":
			default:
				return nil, fmt.Errorf("config: unknown prior type %q for %s.%s", spec.Type, class, field)
			}
		}
	}
	return cfg, nil
}

// DefaultPrior creates a fresh prior for the given owner type and field.
// Every call returns a new prior with its own identity; sharing only
// happens when the caller assigns one prior to several fields. Falls back
// to a uniform prior over [0, 1] when no entry exists.
func (c *Config) DefaultPrior(owner reflect.Type, field string) prior.Prior {
	spec, ok := lookup(c.priors, owner, field)
	if !ok {
		return prior.NewUniformPrior(0, 1)
	}
	switch spec.Type {
	case "log_uniform":
		return prior.NewLogUniformPrior(spec.Lower, spec.Upper)
	case "gaussian":
		return prior.NewGaussianPriorWithLimits(spec.Mean, spec.Sigma, spec.Lower, spec.Upper)
	default:
		return prior.NewUniformPrior(spec.Lower, spec.Upper)
	}
}

// WidthPolicy returns the configured refinement width for a field. The
// boolean reports whether an entry exists for the class or any ancestor.
func (c *Config) WidthPolicy(owner reflect.Type, field string) (WidthKind, float64, bool) {
	spec, ok := lookup(c.widths, owner, field)
	if !ok {
		return "", 0, false
	}
	return spec.Kind, spec.Value, true
}

// Limits returns the configured hard limits for a field. Absent entries are
// unbounded.
func (c *Config) Limits(owner reflect.Type, field string) (lower, upper float64) {
	spec, ok := lookup(c.limits, owner, field)
	if !ok {
		return math.Inf(-1), math.Inf(1)
	}
	lower, upper = math.Inf(-1), math.Inf(1)
	if spec.Lower != nil {
		lower = *spec.Lower
	}
	if spec.Upper != nil {
		upper = *spec.Upper
	}
	return lower, upper
}

// Label returns the display label for a field, or the field name itself
// when unconfigured.
func (c *Config) Label(field string) string {
	if label, ok := c.labels[field]; ok {
		return label
	}
	return field
}

// lookup resolves class-keyed config with nearest-ancestor fallback: the
// owner's own name is tried first, then names of embedded struct types in
// breadth-first order.
func lookup[V any](m map[string]map[string]V, owner reflect.Type, field string) (V, bool) {
	for _, t := range ancestry(owner) {
		if fields, ok := m[t.Name()]; ok {
			if spec, ok := fields[field]; ok {
				return spec, true
			}
		}
	}
	var zero V
	return zero, false
}

// ancestry returns owner followed by its embedded struct types, walking
// breadth-first so nearer ancestors win.
func ancestry(owner reflect.Type) []reflect.Type {
	if owner.Kind() == reflect.Pointer {
		owner = owner.Elem()
	}
	queue := []reflect.Type{owner}
	var out []reflect.Type
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		if t.Kind() != reflect.Struct {
			continue
		}
		out = append(out, t)
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.Anonymous {
				continue
			}
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			queue = append(queue, ft)
		}
	}
	return out
}
