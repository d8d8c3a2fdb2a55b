package engine

import (
	"fmt"
	"sort"
)

// TypeRegistry maps resource-type names to their teardown descriptors.
// Registration happens once at construction; after that the registry is
// read-only and safe for unsynchronized concurrent reads.
//
// A lookup miss is not fatal to a run: the planner marks records of
// unregistered types Skipped and continues.
type TypeRegistry struct {
	descriptors map[string]*TypeDescriptor
}

// NewTypeRegistry creates an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		descriptors: make(map[string]*TypeDescriptor),
	}
}

// Register adds a descriptor. Duplicate type names and invalid descriptors
// are configuration errors.
func (r *TypeRegistry) Register(desc *TypeDescriptor) error {
	if desc == nil {
		return NewConfigurationError("cannot register nil descriptor", nil)
	}
	if err := desc.Validate(); err != nil {
		return err
	}
	if _, exists := r.descriptors[desc.TypeName]; exists {
		return NewConfigurationError(
			fmt.Sprintf("duplicate descriptor for type %s", desc.TypeName), nil)
	}
	r.descriptors[desc.TypeName] = desc
	return nil
}

// Lookup returns the descriptor for a type name.
func (r *TypeRegistry) Lookup(typeName string) (*TypeDescriptor, bool) {
	desc, ok := r.descriptors[typeName]
	return desc, ok
}

// Types returns all registered type names, sorted.
func (r *TypeRegistry) Types() []string {
	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns all registered descriptors, sorted by type name. The
// slice is a fresh copy; the descriptors themselves are shared and must not
// be mutated.
func (r *TypeRegistry) Descriptors() []*TypeDescriptor {
	descs := make([]*TypeDescriptor, 0, len(r.descriptors))
	for _, name := range r.Types() {
		descs = append(descs, r.descriptors[name])
	}
	return descs
}

// Len returns the number of registered descriptors.
func (r *TypeRegistry) Len() int {
	return len(r.descriptors)
}

// Validate checks that every declared predecessor resolves to a registered
// descriptor, making dangling dependency wiring a construction-time error
// instead of a silently ignored edge.
func (r *TypeRegistry) Validate() error {
	for name, desc := range r.descriptors {
		for _, pred := range desc.Predecessors {
			if _, ok := r.descriptors[pred]; !ok {
				return NewConfigurationError(
					fmt.Sprintf("type %s declares unregistered predecessor %s", name, pred), nil)
			}
		}
	}
	return nil
}
