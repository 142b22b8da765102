// Package jsonschema exports struct descriptors as JSON Schema documents
// describing the jsoncodec format.
package jsonschema

import (
	"encoding/base64"
	"fmt"
	"math"
	"math/big"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/reoring/unimodel"
)

const draft = "https://json-schema.org/draft/2020-12/schema"

// ExportOptions tunes Export.
type ExportOptions struct {
	// Strict sets additionalProperties to false on every object, matching a
	// codec that rejects unknown fields.
	Strict bool `json:"strict,omitempty" yaml:"strict,omitempty"`
	// Registry substitutes implementations as the decoder does.
	Registry *unimodel.ModelRegistry `json:"-" yaml:"-"`
}

// Export returns a schema whose root references desc. Every reachable struct
// is emitted once under $defs, so recursive structs are supported.
func Export(desc *unimodel.StructDescriptor, opt ExportOptions) (*Schema, error) {
	e := &exporter{opt: opt, defs: map[string]*Schema{}, owner: map[string]*unimodel.StructDescriptor{}}
	ref, err := e.structRef(desc)
	if err != nil {
		return nil, err
	}
	return &Schema{SchemaURI: draft, Ref: ref.Ref, Defs: e.defs}, nil
}

// Marshal exports desc and encodes the schema.
func Marshal(desc *unimodel.StructDescriptor, opt ExportOptions) ([]byte, error) {
	s, err := Export(desc, opt)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(s, "", "  ")
}

type exporter struct {
	opt   ExportOptions
	defs  map[string]*Schema
	owner map[string]*unimodel.StructDescriptor
}

func (e *exporter) structRef(desc *unimodel.StructDescriptor) (*Schema, error) {
	desc = e.opt.Registry.Lookup(desc)
	name := desc.Name()
	ref := &Schema{Ref: "#/$defs/" + name}
	if prev, ok := e.owner[name]; ok {
		if prev != desc {
			return nil, fmt.Errorf("jsonschema: two different structs are named %s", name)
		}
		return ref, nil
	}
	if !desc.Defined() {
		return nil, fmt.Errorf("jsonschema: struct %s is not defined", name)
	}
	e.owner[name] = desc
	obj := &Schema{Title: name, Type: "object", Properties: map[string]*Schema{}}
	e.defs[name] = obj
	if err := e.members(obj, desc, map[*unimodel.StructDescriptor]bool{}); err != nil {
		return nil, err
	}
	if desc.IsUnion() {
		one := 1
		obj.MaxProperties = &one
		obj.Required = nil
	}
	if e.opt.Strict {
		obj.AdditionalProperties = false
	}
	return ref, nil
}

// members adds the properties of desc to obj, flattening unboxed fields the
// way the codec does.
func (e *exporter) members(obj *Schema, desc *unimodel.StructDescriptor, active map[*unimodel.StructDescriptor]bool) error {
	if active[desc] {
		return fmt.Errorf("jsonschema: unboxed fields form a cycle through %s", desc.Name())
	}
	active[desc] = true
	defer delete(active, desc)

	for _, f := range desc.Fields() {
		if st, ok := f.Type.(*unimodel.StructType); ok && f.Metadata.JSON.Unboxed {
			if err := e.members(obj, e.opt.Registry.Lookup(st.Descriptor()), active); err != nil {
				return err
			}
			continue
		}
		name := f.JSONProperty()
		if _, dup := obj.Properties[name]; dup {
			return fmt.Errorf("jsonschema: %s: JSON property %q is declared twice", desc.Name(), name)
		}
		s, err := e.typeSchema(f.Type)
		if err != nil {
			return fmt.Errorf("jsonschema: %s.%s: %w", desc.Name(), f.Name, err)
		}
		if f.Default != nil {
			s = withDefault(s, defaultValue(f.Type, f.Default))
		}
		if doc := f.Metadata.Annotations["doc"]; doc != "" {
			s = withDescription(s, doc)
		}
		obj.Properties[name] = s
		if f.Required {
			obj.Required = append(obj.Required, name)
		}
	}
	return nil
}

func (e *exporter) typeSchema(t unimodel.Type) (*Schema, error) {
	switch t.ID() {
	case unimodel.TypeBool:
		return &Schema{Type: "boolean"}, nil
	case unimodel.TypeI8:
		return intRange(math.MinInt8, math.MaxInt8), nil
	case unimodel.TypeI16:
		return intRange(math.MinInt16, math.MaxInt16), nil
	case unimodel.TypeI32:
		return intRange(math.MinInt32, math.MaxInt32), nil
	case unimodel.TypeI64:
		return intRange(math.MinInt64, math.MaxInt64), nil
	case unimodel.TypeBigInt:
		return &Schema{Type: "integer"}, nil
	case unimodel.TypeDouble:
		return &Schema{Type: "number"}, nil
	case unimodel.TypeUTF8:
		return &Schema{Type: "string"}, nil
	case unimodel.TypeBinary:
		return &Schema{Type: "string", ContentEncoding: "base64"}, nil
	case unimodel.TypeUUID:
		return &Schema{Type: "string", Format: "uuid"}, nil
	case unimodel.TypeJSON:
		return &Schema{}, nil
	case unimodel.TypeEnum:
		s := &Schema{Type: "string", Title: t.String()}
		for _, v := range t.(*unimodel.EnumType).Values() {
			s.Enum = append(s.Enum, v.Name)
		}
		return s, nil
	case unimodel.TypeStruct:
		return e.structRef(t.(*unimodel.StructType).Descriptor())
	case unimodel.TypeList, unimodel.TypeSet:
		items, err := e.typeSchema(t.Params()[0])
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "array", Items: items, UniqueItems: t.ID() == unimodel.TypeSet}, nil
	case unimodel.TypeTuple:
		s := &Schema{Type: "array", Items: false}
		for _, p := range t.Params() {
			ps, err := e.typeSchema(p)
			if err != nil {
				return nil, err
			}
			s.PrefixItems = append(s.PrefixItems, ps)
		}
		n := len(s.PrefixItems)
		s.MinItems, s.MaxItems = &n, &n
		return s, nil
	case unimodel.TypeMap:
		key := t.Params()[0]
		if key.ID() != unimodel.TypeUTF8 && !key.ID().IsInteger() {
			return nil, fmt.Errorf("map key type %s cannot be a JSON object key", key)
		}
		vs, err := e.typeSchema(t.Params()[1])
		if err != nil {
			return nil, err
		}
		s := &Schema{Type: "object", AdditionalProperties: vs}
		if key.ID().IsInteger() {
			s.PropertyNames = &Schema{Pattern: "^-?[0-9]+$"}
		}
		return s, nil
	}
	return nil, fmt.Errorf("unsupported type %s", t)
}

func intRange(lo, hi float64) *Schema {
	return &Schema{Type: "integer", Minimum: &lo, Maximum: &hi}
}

// withDefault and withDescription copy s so shared $ref schemas stay
// untouched.
func withDefault(s *Schema, v any) *Schema {
	c := *s
	c.Default = v
	return &c
}

func withDescription(s *Schema, doc string) *Schema {
	c := *s
	c.Description = doc
	return &c
}

// defaultValue renders a default as the codec would write it.
func defaultValue(t unimodel.Type, v any) any {
	switch x := v.(type) {
	case int32:
		if e, ok := t.(*unimodel.EnumType); ok {
			name, _ := e.Name(x)
			return name
		}
	case *big.Int:
		return json.Number(x.String())
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	case uuid.UUID:
		return x.String()
	}
	return v
}
