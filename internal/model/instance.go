package model

// Instance is the reconstructed object graph for one concrete parameter
// assignment. It mirrors the shape of the parameter space that produced it,
// with every node replaced by an instantiated object and every fixed
// attribute copied through unchanged. Instances are built once per
// evaluation and never mutated afterwards.
type Instance struct {
	names   []string
	objects map[string]any
}

func newInstance() *Instance {
	return &Instance{objects: make(map[string]any)}
}

func (i *Instance) put(name string, obj any) {
	if _, exists := i.objects[name]; !exists {
		i.names = append(i.names, name)
	}
	i.objects[name] = obj
}

// Get returns the object for a top-level name, or nil when absent.
func (i *Instance) Get(name string) any {
	return i.objects[name]
}

// Names returns top-level names in the order they were added to the space.
func (i *Instance) Names() []string {
	return append([]string(nil), i.names...)
}

// Objects returns the top-level objects in name order.
func (i *Instance) Objects() []any {
	out := make([]any, 0, len(i.names))
	for _, name := range i.names {
		out = append(out, i.objects[name])
	}
	return out
}
