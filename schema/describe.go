package schema

import (
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/reoring/unimodel"
)

// Describe builds a Document holding descs and every struct they reach
// through parents and field types, dependencies first.
func Describe(descs ...*unimodel.StructDescriptor) (*Document, error) {
	d := &describer{seen: map[*unimodel.StructDescriptor]bool{}, doc: &Document{}}
	for _, desc := range descs {
		if err := d.visit(desc); err != nil {
			return nil, err
		}
	}
	return d.doc, nil
}

type describer struct {
	seen map[*unimodel.StructDescriptor]bool
	doc  *Document
}

func (d *describer) visit(desc *unimodel.StructDescriptor) error {
	if d.seen[desc] {
		return nil
	}
	if !desc.Defined() {
		return fmt.Errorf("schema: struct %s is not defined", desc.Name())
	}
	d.seen[desc] = true

	def := StructDef{Name: desc.Name(), Union: desc.IsUnion(), Fields: []FieldDef{}}
	for _, p := range desc.Parents() {
		if err := d.visit(p); err != nil {
			return err
		}
		def.Extends = append(def.Extends, p.Name())
	}
	for _, f := range desc.Fields() {
		if inherited(desc, f) {
			continue
		}
		fd, err := d.field(desc, f)
		if err != nil {
			return err
		}
		def.Fields = append(def.Fields, fd)
	}
	d.doc.Structs = append(d.doc.Structs, def)
	return nil
}

// inherited reports whether f is a parent field the struct leaves unchanged.
func inherited(desc *unimodel.StructDescriptor, f *unimodel.Field) bool {
	for _, p := range desc.Parents() {
		pf, ok := p.Field(f.Name)
		if ok && pf.Tag == f.Tag && pf.Wire() == f.Wire() && pf.Required == f.Required &&
			pf.Type.String() == f.Type.String() && pf.Metadata.JSON == f.Metadata.JSON {
			return true
		}
	}
	return false
}

func (d *describer) field(desc *unimodel.StructDescriptor, f *unimodel.Field) (FieldDef, error) {
	ref, err := d.typeRef(f.Type)
	if err != nil {
		return FieldDef{}, err
	}
	fd := FieldDef{
		Name:        f.Name,
		Tag:         f.Tag,
		Required:    f.Required,
		Type:        ref,
		Annotations: f.Metadata.Annotations,
	}
	if f.WireName != "" && f.WireName != f.Name {
		fd.WireName = f.WireName
	}
	if f.Metadata.JSON != (unimodel.JSONOptions{}) {
		opts := f.Metadata.JSON
		fd.JSON = &opts
	}
	if f.Default != nil {
		v, err := describeDefault(f.Type, f.Default)
		if err != nil {
			return FieldDef{}, fmt.Errorf("schema: %s.%s: %w", desc.Name(), f.Name, err)
		}
		fd.Default = v
	}
	return fd, nil
}

func (d *describer) typeRef(t unimodel.Type) (TypeRef, error) {
	switch x := t.(type) {
	case *unimodel.StructType:
		if err := d.visit(x.Descriptor()); err != nil {
			return TypeRef{}, err
		}
		return TypeRef{Kind: "struct", Name: x.Descriptor().Name()}, nil
	case *unimodel.EnumType:
		return TypeRef{Kind: "enum", Name: x.String(), Values: x.Values()}, nil
	}
	ref := TypeRef{Kind: t.ID().String()}
	for _, p := range t.Params() {
		pr, err := d.typeRef(p)
		if err != nil {
			return TypeRef{}, err
		}
		ref.Params = append(ref.Params, pr)
	}
	return ref, nil
}

// describeDefault renders a scalar default as plain data.
func describeDefault(t unimodel.Type, v any) (any, error) {
	switch x := v.(type) {
	case bool, string, float64:
		return x, nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int64:
		return x, nil
	case int32:
		if e, ok := t.(*unimodel.EnumType); ok {
			name, _ := e.Name(x)
			return name, nil
		}
		return int64(x), nil
	case *big.Int:
		return x.String(), nil
	case []byte:
		return base64.StdEncoding.EncodeToString(x), nil
	case uuid.UUID:
		return x.String(), nil
	}
	if t.ID() == unimodel.TypeJSON {
		return v, nil
	}
	return nil, fmt.Errorf("default of type %s cannot be described", t)
}
