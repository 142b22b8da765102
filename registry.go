package unimodel

import (
	"fmt"

	"go.uber.org/zap"
)

// Binding pairs an interface struct with the implementation decoders build.
type Binding struct {
	Interface      *StructDescriptor
	Implementation *StructDescriptor
}

// Bind is shorthand for a Binding.
func Bind(iface, impl *StructDescriptor) Binding {
	return Binding{Interface: iface, Implementation: impl}
}

// ModelRegistry maps interface structs to implementation structs. It is
// immutable and safe for concurrent use.
type ModelRegistry struct {
	impls    map[*StructDescriptor]*StructDescriptor
	bindings []Binding
}

// NewModelRegistry validates that every implementation extends its interface.
func NewModelRegistry(bindings ...Binding) (*ModelRegistry, error) {
	r := &ModelRegistry{impls: make(map[*StructDescriptor]*StructDescriptor, len(bindings))}
	for _, b := range bindings {
		if b.Interface == nil || b.Implementation == nil {
			return nil, fmt.Errorf("unimodel: registry: nil struct in binding")
		}
		if !b.Implementation.IsSubtypeOf(b.Interface) {
			return nil, fmt.Errorf("unimodel: registry: %s does not extend %s", b.Implementation.Name(), b.Interface.Name())
		}
		if prev, ok := r.impls[b.Interface]; ok && prev != b.Implementation {
			return nil, fmt.Errorf("unimodel: registry: %s bound twice", b.Interface.Name())
		}
		r.impls[b.Interface] = b.Implementation
		r.bindings = append(r.bindings, b)
		Logger().Debug("model bound",
			zap.String("interface", b.Interface.Name()),
			zap.String("implementation", b.Implementation.Name()))
	}
	return r, nil
}

// Lookup returns the implementation registered for iface, or iface itself.
// A nil registry always returns iface.
func (r *ModelRegistry) Lookup(iface *StructDescriptor) *StructDescriptor {
	if r == nil {
		return iface
	}
	if impl, ok := r.impls[iface]; ok {
		return impl
	}
	return iface
}

// LookupInterface returns the most specific registered interface that impl
// is a subtype of, or impl itself when there is none.
func (r *ModelRegistry) LookupInterface(impl *StructDescriptor) *StructDescriptor {
	if r == nil {
		return impl
	}
	var best *StructDescriptor
	for _, b := range r.bindings {
		if !impl.IsSubtypeOf(b.Interface) {
			continue
		}
		if best == nil || b.Interface.depth() > best.depth() {
			best = b.Interface
		}
	}
	if best == nil {
		return impl
	}
	return best
}

// Bindings returns the registered pairs in registration order.
func (r *ModelRegistry) Bindings() []Binding {
	if r == nil {
		return nil
	}
	return append([]Binding(nil), r.bindings...)
}
