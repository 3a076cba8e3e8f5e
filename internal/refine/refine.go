// Package refine derives a new, narrower parameter space from posterior
// summaries of a completed search. Every prior is replaced by a Gaussian
// centred on the posterior mean, with a sigma that is the larger of the
// empirical width and the policy width, and the resulting space preserves
// prior sharing from the input.
package refine

import (
	"fmt"
	"math"

	"github.com/cwbudde/priorfit/internal/config"
	"github.com/cwbudde/priorfit/internal/model"
	"github.com/cwbudde/priorfit/internal/prior"
)

// Summary is the posterior mean and empirical width of one parameter, in
// distinct-prior order.
type Summary struct {
	Mean  float64
	Width float64
}

// WidthPolicy chooses the floor applied to refined sigmas. Exactly one of
// Absolute or Relative may be set; leaving both nil uses the per-class,
// per-field configured default.
type WidthPolicy struct {
	Absolute *float64
	Relative *float64
}

// AbsoluteWidth gives every refined prior at least sigma a.
func AbsoluteWidth(a float64) WidthPolicy {
	return WidthPolicy{Absolute: &a}
}

// RelativeWidth gives every refined prior at least sigma mean*r.
func RelativeWidth(r float64) WidthPolicy {
	return WidthPolicy{Relative: &r}
}

// ConfiguredWidth defers to the configuration for each field.
func ConfiguredWidth() WidthPolicy {
	return WidthPolicy{}
}

// ConfigurationError reports a conflicting or missing width policy.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Is(target error) bool {
	_, ok := target.(*ConfigurationError)
	return ok
}

// Space builds a refined parameter space. summaries supplies one (mean,
// width) pair per distinct prior, in the space's distinct-prior order. Hard
// limits carry over from priors that are already Gaussian; otherwise they
// are looked up by owning class and field.
func Space(space *model.ParameterSpace, summaries []Summary, policy WidthPolicy, cfg *config.Config) (*model.ParameterSpace, error) {
	if policy.Absolute != nil && policy.Relative != nil {
		return nil, &ConfigurationError{Reason: "width of refined priors cannot be both absolute and relative"}
	}

	tuples := space.PriorTuplesOrderedByID()
	if len(summaries) != len(tuples) {
		return nil, &model.DimensionError{Expected: len(tuples), Actual: len(summaries)}
	}

	repl := make(map[int64]prior.Prior, len(tuples))
	for i, t := range tuples {
		mean := summaries[i].Mean

		var policyWidth float64
		switch {
		case policy.Absolute != nil:
			policyWidth = *policy.Absolute
		case policy.Relative != nil:
			policyWidth = mean * *policy.Relative
		default:
			kind, value, ok := cfg.WidthPolicy(t.Owner, t.Field)
			if !ok {
				return nil, &ConfigurationError{
					Reason: fmt.Sprintf("no width policy configured for %s.%s", t.Owner.Name(), t.Field),
				}
			}
			switch kind {
			case config.WidthAbsolute:
				policyWidth = value
			case config.WidthRelative:
				policyWidth = mean * value
			default:
				return nil, &ConfigurationError{
					Reason: fmt.Sprintf("width policy for %s.%s must be absolute or relative, got %q", t.Owner.Name(), t.Field, kind),
				}
			}
		}

		sigma := math.Max(summaries[i].Width, policyWidth)

		var lower, upper float64
		if gp, ok := t.Prior.(*prior.GaussianPrior); ok {
			lower, upper = gp.Limits()
		} else {
			lower, upper = cfg.Limits(t.Owner, t.Field)
		}

		repl[t.Prior.ID()] = prior.NewGaussianPriorWithLimits(mean, sigma, lower, upper)
	}

	return space.WithPriors(repl), nil
}

// SpaceFromMeans refines with zero empirical widths, so sigmas come purely
// from the width policy.
func SpaceFromMeans(space *model.ParameterSpace, means []float64, policy WidthPolicy, cfg *config.Config) (*model.ParameterSpace, error) {
	summaries := make([]Summary, len(means))
	for i, mean := range means {
		summaries[i] = Summary{Mean: mean}
	}
	return Space(space, summaries, policy, cfg)
}

// SummariesAtSigma converts posterior means plus upper/lower credible
// interval bounds into summaries whose width is the larger one-sided error.
func SummariesAtSigma(means, uppers, lowers []float64) ([]Summary, error) {
	if len(uppers) != len(means) || len(lowers) != len(means) {
		return nil, &model.DimensionError{Expected: len(means), Actual: len(uppers)}
	}
	summaries := make([]Summary, len(means))
	for i, mean := range means {
		summaries[i] = Summary{
			Mean:  mean,
			Width: math.Max(uppers[i]-mean, mean-lowers[i]),
		}
	}
	return summaries, nil
}
