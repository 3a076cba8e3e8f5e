package model

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/cwbudde/priorfit/internal/prior"
)

// ParameterSpace is a named collection of parameter nodes plus the
// deduplicated, creation-id-ordered set of priors the tree induces. That
// ordering is the single source of truth for which vector position
// corresponds to which prior; it is stable as long as the space is not
// mutated, so callers running a search should snapshot it once and use it
// for every vector operation in that run.
type ParameterSpace struct {
	names  []string
	models map[string]*Node
	fixed  map[string]any
}

// NewParameterSpace creates an empty parameter space.
func NewParameterSpace() *ParameterSpace {
	return &ParameterSpace{
		models: make(map[string]*Node),
		fixed:  make(map[string]any),
	}
}

// AddModel registers a parameter node under a top-level name and returns
// the node for further binding.
func (s *ParameterSpace) AddModel(name string, n *Node) *Node {
	if _, exists := s.models[name]; !exists {
		if _, exists := s.fixed[name]; !exists {
			s.names = append(s.names, name)
		}
	}
	delete(s.fixed, name)
	s.models[name] = n
	return n
}

// AddFixed registers an already-built object that passes through resolution
// unchanged.
func (s *ParameterSpace) AddFixed(name string, v any) {
	if _, exists := s.models[name]; !exists {
		if _, exists := s.fixed[name]; !exists {
			s.names = append(s.names, name)
		}
	}
	delete(s.models, name)
	s.fixed[name] = v
}

// Model returns the node registered under name, or nil.
func (s *ParameterSpace) Model(name string) *Node {
	return s.models[name]
}

// Names returns the top-level names in insertion order.
func (s *ParameterSpace) Names() []string {
	return append([]string(nil), s.names...)
}

// PriorTuplesOrderedByID returns the distinct priors reachable from the
// tree, deduplicated by identity (the first occurrence supplies the name)
// and sorted by creation id.
func (s *ParameterSpace) PriorTuplesOrderedByID() []PriorTuple {
	seen := make(map[int64]bool)
	var distinct []PriorTuple
	for _, name := range s.names {
		n, ok := s.models[name]
		if !ok {
			continue
		}
		for _, t := range n.appendPriors(nil, name) {
			if seen[t.Prior.ID()] {
				continue
			}
			seen[t.Prior.ID()] = true
			distinct = append(distinct, t)
		}
	}
	sort.Slice(distinct, func(i, j int) bool {
		return distinct[i].Prior.ID() < distinct[j].Prior.ID()
	})
	return distinct
}

// ParameterCount returns the number of distinct priors in the space. Every
// vector presented to or produced by this space has exactly this length.
func (s *ParameterSpace) ParameterCount() int {
	return len(s.PriorTuplesOrderedByID())
}

// ParamNames returns the qualified name of each distinct prior in vector
// order.
func (s *ParameterSpace) ParamNames() []string {
	tuples := s.PriorTuplesOrderedByID()
	names := make([]string, len(tuples))
	for i, t := range tuples {
		names[i] = t.Name
	}
	return names
}

// PhysicalVectorFromUnit maps a unit hypercube vector elementwise through
// each prior in distinct-prior order.
func (s *ParameterSpace) PhysicalVectorFromUnit(unit []float64) ([]float64, error) {
	tuples := s.PriorTuplesOrderedByID()
	if len(unit) != len(tuples) {
		return nil, &DimensionError{Expected: len(tuples), Actual: len(unit)}
	}
	physical := make([]float64, len(unit))
	for i, t := range tuples {
		physical[i] = t.Prior.ValueFor(unit[i])
	}
	return physical, nil
}

// InstanceFromUnitVector resolves a unit hypercube vector to an instance
// graph.
func (s *ParameterSpace) InstanceFromUnitVector(unit []float64) (*Instance, error) {
	physical, err := s.PhysicalVectorFromUnit(unit)
	if err != nil {
		return nil, err
	}
	return s.InstanceFromPhysicalVector(physical)
}

// InstanceFromPhysicalVector resolves a physical-value vector to an
// instance graph. Fixed top-level attributes are copied onto the result
// unchanged.
func (s *ParameterSpace) InstanceFromPhysicalVector(physical []float64) (*Instance, error) {
	tuples := s.PriorTuplesOrderedByID()
	if len(physical) != len(tuples) {
		return nil, &DimensionError{Expected: len(tuples), Actual: len(physical)}
	}
	values := make(map[int64]float64, len(tuples))
	for i, t := range tuples {
		values[t.Prior.ID()] = physical[i]
	}
	return s.instanceForArguments(values)
}

// MedianInstance resolves the space at the midpoint of every prior.
func (s *ParameterSpace) MedianInstance() (*Instance, error) {
	unit := make([]float64, s.ParameterCount())
	for i := range unit {
		unit[i] = 0.5
	}
	return s.InstanceFromUnitVector(unit)
}

func (s *ParameterSpace) instanceForArguments(values map[int64]float64) (*Instance, error) {
	inst := newInstance()
	for _, name := range s.names {
		if n, ok := s.models[name]; ok {
			obj, err := n.instanceForArguments(values, name)
			if err != nil {
				return nil, err
			}
			inst.put(name, obj)
			continue
		}
		inst.put(name, s.fixed[name])
	}
	return inst, nil
}

// WithPriors returns a deep copy of the space with every prior whose id
// appears in repl replaced by its mapped prior. Formerly shared priors
// remain shared in the copy because substitution is keyed by identity.
func (s *ParameterSpace) WithPriors(repl map[int64]prior.Prior) *ParameterSpace {
	out := NewParameterSpace()
	out.names = append([]string(nil), s.names...)
	for name, n := range s.models {
		out.models[name] = n.withPriors(repl)
	}
	for name, v := range s.fixed {
		out.fixed[name] = v
	}
	return out
}

// Equal reports whether two spaces have equal top-level node mappings
// (structural, ordering-independent) and identity-equal prior sets.
func (s *ParameterSpace) Equal(other *ParameterSpace) bool {
	if other == nil || len(s.models) != len(other.models) || len(s.fixed) != len(other.fixed) {
		return false
	}
	for name, n := range s.models {
		on, ok := other.models[name]
		if !ok || !n.Equal(on) {
			return false
		}
	}
	for name, v := range s.fixed {
		ov, ok := other.fixed[name]
		if !ok || !reflect.DeepEqual(v, ov) {
			return false
		}
	}
	return true
}

// Info renders a human-readable summary of the space: each distinct prior's
// qualified name and transform, one per line, in vector order.
func (s *ParameterSpace) Info() string {
	var b strings.Builder
	for i, t := range s.PriorTuplesOrderedByID() {
		fmt.Fprintf(&b, "%-3d %-40s %s\n", i, t.Name, describePrior(t.Prior))
	}
	return b.String()
}

func describePrior(p prior.Prior) string {
	switch v := p.(type) {
	case *prior.UniformPrior:
		return fmt.Sprintf("uniform [%g, %g]", v.Lower, v.Upper)
	case *prior.LogUniformPrior:
		return fmt.Sprintf("log-uniform [%g, %g]", v.Lower, v.Upper)
	case *prior.GaussianPrior:
		return fmt.Sprintf("gaussian mean=%g sigma=%g", v.Mean, v.Sigma)
	default:
		return fmt.Sprintf("%T", p)
	}
}
