package jsoncodec

import (
	"fmt"
	"strings"

	"github.com/reoring/unimodel"
)

// property is one JSON key of a struct object. chain holds the unboxed
// struct fields leading to the field that owns the key, which comes last.
type property struct {
	name  string
	chain []*unimodel.Field
}

func (p property) leaf() *unimodel.Field { return p.chain[len(p.chain)-1] }

// layout is the flattened property set of a struct.
type layout struct {
	props  []property
	byName map[string]int
}

func (c *Codec) layout(desc *unimodel.StructDescriptor) (*layout, error) {
	if l, ok := c.layouts.Load(desc); ok {
		return l.(*layout), nil
	}
	l := &layout{byName: map[string]int{}}
	if err := c.flatten(l, desc, desc, nil, map[*unimodel.StructDescriptor]bool{}); err != nil {
		return nil, err
	}
	actual, _ := c.layouts.LoadOrStore(desc, l)
	return actual.(*layout), nil
}

func (c *Codec) flatten(l *layout, root, desc *unimodel.StructDescriptor, prefix []*unimodel.Field, active map[*unimodel.StructDescriptor]bool) error {
	if active[desc] {
		return &unimodel.SerializationError{
			Struct:  root.Name(),
			Field:   chainName(prefix),
			Message: "unboxed fields form a cycle through " + desc.Name(),
		}
	}
	active[desc] = true
	defer delete(active, desc)

	for _, f := range desc.Fields() {
		chain := append(append(make([]*unimodel.Field, 0, len(prefix)+1), prefix...), f)
		if st, ok := f.Type.(*unimodel.StructType); ok && f.Metadata.JSON.Unboxed {
			if err := c.flatten(l, root, c.registry.Lookup(st.Descriptor()), chain, active); err != nil {
				return err
			}
			continue
		}
		name := f.JSONProperty()
		if i, dup := l.byName[name]; dup {
			return &unimodel.SerializationError{
				Struct:  root.Name(),
				Field:   chainName(chain),
				Message: fmt.Sprintf("JSON property %q is also used by %s", name, chainName(l.props[i].chain)),
			}
		}
		l.byName[name] = len(l.props)
		l.props = append(l.props, property{name: name, chain: chain})
	}
	return nil
}

func chainName(chain []*unimodel.Field) string {
	names := make([]string, len(chain))
	for i, f := range chain {
		names[i] = f.Name
	}
	return strings.Join(names, ".")
}
