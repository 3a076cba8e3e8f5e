package model

import (
	"fmt"
	"reflect"

	"github.com/cwbudde/priorfit/internal/config"
	"github.com/cwbudde/priorfit/internal/prior"
)

// PriorTuple names one prior occurrence in a node tree. Name is qualified
// by the path from the root (e.g. "gaussian_centre"); Owner and Field
// identify the struct type and field the prior is bound to, which is how
// configuration lookups are keyed.
type PriorTuple struct {
	Name  string
	Owner reflect.Type
	Field string
	Prior prior.Prior
}

// Node wraps one struct type and binds each of its fields to a prior, a
// constant, a nested node, a tuple of priors, or a fixed pass-through
// value. Field insertion order follows struct declaration order.
type Node struct {
	typ      reflect.Type
	fields   []string
	bindings map[string]fieldBinding
}

// NewNode builds a node for a struct type, assigning every float64 field a
// default prior from the configuration, every float64 array field a tuple
// of default priors, and recursively wrapping struct-typed fields as nested
// nodes. typ may be a struct type or a pointer to one.
func NewNode(typ reflect.Type, cfg *config.Config) (*Node, error) {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model: cannot wrap %s, only struct types are supported", typ)
	}

	n := &Node{
		typ:      typ,
		bindings: make(map[string]fieldBinding),
	}

	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		switch {
		case f.Type.Kind() == reflect.Float64:
			n.bind(f.Name, priorBinding{p: cfg.DefaultPrior(typ, f.Name)})
		case f.Type.Kind() == reflect.Array && f.Type.Elem().Kind() == reflect.Float64:
			elems := make([]fieldBinding, f.Type.Len())
			for j := range elems {
				elems[j] = priorBinding{p: cfg.DefaultPrior(typ, f.Name)}
			}
			n.bind(f.Name, tupleBinding{elems: elems})
		case f.Type.Kind() == reflect.Struct, f.Type.Kind() == reflect.Pointer && f.Type.Elem().Kind() == reflect.Struct:
			child, err := NewNode(f.Type, cfg)
			if err != nil {
				return nil, err
			}
			n.bind(f.Name, nodeBinding{n: child})
		default:
			// Non-numeric fields are left at their zero value unless
			// explicitly bound with SetFixed.
		}
	}
	return n, nil
}

// NodeOf is a convenience wrapper building a node for the type parameter.
func NodeOf[T any](cfg *config.Config) (*Node, error) {
	return NewNode(reflect.TypeOf((*T)(nil)).Elem(), cfg)
}

// Type returns the wrapped struct type.
func (n *Node) Type() reflect.Type {
	return n.typ
}

func (n *Node) bind(field string, b fieldBinding) {
	if _, exists := n.bindings[field]; !exists {
		n.fields = append(n.fields, field)
	}
	n.bindings[field] = b
}

func (n *Node) checkField(field string) (reflect.StructField, error) {
	f, ok := n.typ.FieldByName(field)
	if !ok {
		return reflect.StructField{}, fmt.Errorf("model: %s has no field %q", n.typ, field)
	}
	return f, nil
}

// SetPrior binds a float64 field to a prior. Assigning one prior object to
// several fields ties those parameters together.
func (n *Node) SetPrior(field string, p prior.Prior) error {
	f, err := n.checkField(field)
	if err != nil {
		return err
	}
	if f.Type.Kind() != reflect.Float64 {
		return fmt.Errorf("model: field %s.%s is not float64", n.typ, field)
	}
	n.bind(field, priorBinding{p: p})
	return nil
}

// SetConstant binds a float64 field to a fixed value.
func (n *Node) SetConstant(field string, v float64) error {
	f, err := n.checkField(field)
	if err != nil {
		return err
	}
	if f.Type.Kind() != reflect.Float64 {
		return fmt.Errorf("model: field %s.%s is not float64", n.typ, field)
	}
	n.bind(field, constantBinding{v: v})
	return nil
}

// SetNode binds a struct field to a nested node.
func (n *Node) SetNode(field string, child *Node) error {
	f, err := n.checkField(field)
	if err != nil {
		return err
	}
	ft := f.Type
	if ft.Kind() == reflect.Pointer {
		ft = ft.Elem()
	}
	if ft != child.typ {
		return fmt.Errorf("model: field %s.%s has type %s, node wraps %s", n.typ, field, f.Type, child.typ)
	}
	n.bind(field, nodeBinding{n: child})
	return nil
}

// SetTupleElement rebinds one element of a float64 array field.
func (n *Node) SetTupleElement(field string, index int, p prior.Prior) error {
	if _, err := n.checkField(field); err != nil {
		return err
	}
	tb, ok := n.bindings[field].(tupleBinding)
	if !ok {
		return fmt.Errorf("model: field %s.%s is not a tuple field", n.typ, field)
	}
	if index < 0 || index >= len(tb.elems) {
		return fmt.Errorf("model: tuple index %d out of range for %s.%s", index, n.typ, field)
	}
	elems := make([]fieldBinding, len(tb.elems))
	copy(elems, tb.elems)
	elems[index] = priorBinding{p: p}
	n.bind(field, tupleBinding{elems: elems})
	return nil
}

// SetFixed binds a field to an already-built value that passes through
// resolution unchanged.
func (n *Node) SetFixed(field string, v any) error {
	f, err := n.checkField(field)
	if err != nil {
		return err
	}
	if v != nil && !reflect.TypeOf(v).AssignableTo(f.Type) {
		return fmt.Errorf("model: cannot assign %T to field %s.%s", v, n.typ, field)
	}
	n.bind(field, fixedBinding{v: v})
	return nil
}

// PriorTuples returns every prior directly or transitively owned by this
// node in field declaration order. Duplicates from shared priors are
// included; deduplication happens at the parameter space level.
func (n *Node) PriorTuples() []PriorTuple {
	return n.appendPriors(nil, "")
}

func (n *Node) appendPriors(dst []PriorTuple, qualifier string) []PriorTuple {
	for _, field := range n.fields {
		name := field
		if qualifier != "" {
			name = qualifier + "_" + field
		}
		dst = n.bindings[field].appendPriors(dst, name, n.typ, field)
	}
	return dst
}

// instanceForArguments instantiates the wrapped struct with every field
// substituted from the prior value mapping (keyed by prior id). Returns a
// pointer to the new struct.
func (n *Node) instanceForArguments(values map[int64]float64, qualifier string) (any, error) {
	ptr := reflect.New(n.typ)
	elem := ptr.Elem()
	for _, field := range n.fields {
		name := field
		if qualifier != "" {
			name = qualifier + "_" + field
		}
		target := elem.FieldByName(field)
		if err := n.bindings[field].resolve(values, target, name); err != nil {
			return nil, err
		}
	}
	return ptr.Interface(), nil
}

// withPriors deep-copies the node, replacing priors whose id appears in
// repl. Priors absent from repl are carried over unchanged, and priors
// shared between fields remain shared in the copy.
func (n *Node) withPriors(repl map[int64]prior.Prior) *Node {
	out := &Node{
		typ:      n.typ,
		fields:   append([]string(nil), n.fields...),
		bindings: make(map[string]fieldBinding, len(n.bindings)),
	}
	for field, b := range n.bindings {
		out.bindings[field] = b.remap(repl)
	}
	return out
}

// Equal reports structural equality: same type, same bound fields, and
// per-field bindings equal (priors by identity, constants by value, nested
// nodes recursively).
func (n *Node) Equal(other *Node) bool {
	if other == nil || n.typ != other.typ || len(n.bindings) != len(other.bindings) {
		return false
	}
	for field, b := range n.bindings {
		ob, ok := other.bindings[field]
		if !ok || !b.equal(ob) {
			return false
		}
	}
	return true
}

// fieldBinding is one of: prior, constant, nested node, tuple, fixed value.
type fieldBinding interface {
	appendPriors(dst []PriorTuple, name string, owner reflect.Type, field string) []PriorTuple
	resolve(values map[int64]float64, target reflect.Value, name string) error
	remap(repl map[int64]prior.Prior) fieldBinding
	equal(other fieldBinding) bool
}

type priorBinding struct {
	p prior.Prior
}

func (b priorBinding) appendPriors(dst []PriorTuple, name string, owner reflect.Type, field string) []PriorTuple {
	return append(dst, PriorTuple{Name: name, Owner: owner, Field: field, Prior: b.p})
}

func (b priorBinding) resolve(values map[int64]float64, target reflect.Value, name string) error {
	v, ok := values[b.p.ID()]
	if !ok {
		return &ResolutionError{Field: name}
	}
	target.SetFloat(v)
	return nil
}

func (b priorBinding) remap(repl map[int64]prior.Prior) fieldBinding {
	if np, ok := repl[b.p.ID()]; ok {
		return priorBinding{p: np}
	}
	return b
}

func (b priorBinding) equal(other fieldBinding) bool {
	ob, ok := other.(priorBinding)
	return ok && ob.p.ID() == b.p.ID()
}

type constantBinding struct {
	v float64
}

func (b constantBinding) appendPriors(dst []PriorTuple, _ string, _ reflect.Type, _ string) []PriorTuple {
	return dst
}

func (b constantBinding) resolve(_ map[int64]float64, target reflect.Value, _ string) error {
	target.SetFloat(b.v)
	return nil
}

func (b constantBinding) remap(map[int64]prior.Prior) fieldBinding {
	return b
}

func (b constantBinding) equal(other fieldBinding) bool {
	ob, ok := other.(constantBinding)
	return ok && ob.v == b.v
}

type nodeBinding struct {
	n *Node
}

func (b nodeBinding) appendPriors(dst []PriorTuple, name string, _ reflect.Type, _ string) []PriorTuple {
	return b.n.appendPriors(dst, name)
}

func (b nodeBinding) resolve(values map[int64]float64, target reflect.Value, name string) error {
	obj, err := b.n.instanceForArguments(values, name)
	if err != nil {
		return err
	}
	v := reflect.ValueOf(obj)
	if target.Kind() == reflect.Pointer {
		target.Set(v)
	} else {
		target.Set(v.Elem())
	}
	return nil
}

func (b nodeBinding) remap(repl map[int64]prior.Prior) fieldBinding {
	return nodeBinding{n: b.n.withPriors(repl)}
}

func (b nodeBinding) equal(other fieldBinding) bool {
	ob, ok := other.(nodeBinding)
	return ok && b.n.Equal(ob.n)
}

type tupleBinding struct {
	elems []fieldBinding
}

func (b tupleBinding) appendPriors(dst []PriorTuple, name string, owner reflect.Type, field string) []PriorTuple {
	for i, e := range b.elems {
		dst = e.appendPriors(dst, fmt.Sprintf("%s_%d", name, i), owner, field)
	}
	return dst
}

func (b tupleBinding) resolve(values map[int64]float64, target reflect.Value, name string) error {
	for i, e := range b.elems {
		if err := e.resolve(values, target.Index(i), fmt.Sprintf("%s_%d", name, i)); err != nil {
			return err
		}
	}
	return nil
}

func (b tupleBinding) remap(repl map[int64]prior.Prior) fieldBinding {
	elems := make([]fieldBinding, len(b.elems))
	for i, e := range b.elems {
		elems[i] = e.remap(repl)
	}
	return tupleBinding{elems: elems}
}

func (b tupleBinding) equal(other fieldBinding) bool {
	ob, ok := other.(tupleBinding)
	if !ok || len(ob.elems) != len(b.elems) {
		return false
	}
	for i, e := range b.elems {
		if !e.equal(ob.elems[i]) {
			return false
		}
	}
	return true
}

type fixedBinding struct {
	v any
}

func (b fixedBinding) appendPriors(dst []PriorTuple, _ string, _ reflect.Type, _ string) []PriorTuple {
	return dst
}

func (b fixedBinding) resolve(_ map[int64]float64, target reflect.Value, _ string) error {
	if b.v == nil {
		return nil
	}
	target.Set(reflect.ValueOf(b.v))
	return nil
}

func (b fixedBinding) remap(map[int64]prior.Prior) fieldBinding {
	return b
}

func (b fixedBinding) equal(other fieldBinding) bool {
	ob, ok := other.(fixedBinding)
	return ok && reflect.DeepEqual(ob.v, b.v)
}
