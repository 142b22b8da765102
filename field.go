package unimodel

import (
	"errors"
	"fmt"
	"maps"
)

// UnassignedTag marks a field whose tag is chosen when its struct is defined.
// Any tag below 1 counts as unassigned.
const UnassignedTag int16 = -1

// Validator is a custom predicate run on a field value after its type check.
type Validator interface {
	Validate(v any) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(v any) error

func (f ValidatorFunc) Validate(v any) error { return f(v) }

// JSONOptions is the JSON codec metadata of a field.
type JSONOptions struct {
	// Property overrides the JSON property name.
	Property string `json:"property,omitempty" yaml:"property,omitempty"`
	// Unboxed flattens a struct-typed field into its parent object.
	Unboxed bool `json:"unboxed,omitempty" yaml:"unboxed,omitempty"`
}

// Metadata carries per-backend field settings.
type Metadata struct {
	Validators  []Validator
	Annotations map[string]string
	JSON        JSONOptions
}

// Field binds a type, tag and name to one struct member.
type Field struct {
	// Name is the declared identifier used by Instance.Get and Set.
	Name string
	// WireName is the name written by wire protocols; it defaults to Name.
	WireName string
	Tag      int16
	Type     Type
	Required bool
	Default  any
	Metadata Metadata
}

// FieldOption configures a Field built by NewField.
type FieldOption func(*Field)

// NewField returns a field with an unassigned tag.
func NewField(name string, t Type, opts ...FieldOption) *Field {
	f := &Field{Name: name, Tag: UnassignedTag, Type: t}
	for _, o := range opts {
		o(f)
	}
	return f
}

func Tag(tag int16) FieldOption        { return func(f *Field) { f.Tag = tag } }
func Required() FieldOption            { return func(f *Field) { f.Required = true } }
func Default(v any) FieldOption        { return func(f *Field) { f.Default = v } }
func WireName(name string) FieldOption { return func(f *Field) { f.WireName = name } }
func JSONName(name string) FieldOption { return func(f *Field) { f.Metadata.JSON.Property = name } }
func Unboxed() FieldOption             { return func(f *Field) { f.Metadata.JSON.Unboxed = true } }
func Annotate(k, v string) FieldOption { return func(f *Field) { f.annotate(k, v) } }

// FieldValidators appends custom validators run after the type check.
func FieldValidators(vs ...Validator) FieldOption {
	return func(f *Field) { f.Metadata.Validators = append(f.Metadata.Validators, vs...) }
}

func (f *Field) annotate(k, v string) {
	if f.Metadata.Annotations == nil {
		f.Metadata.Annotations = map[string]string{}
	}
	f.Metadata.Annotations[k] = v
}

// HasTag reports whether the tag is assigned.
func (f *Field) HasTag() bool { return f.Tag > 0 }

// Wire returns the name used on Thrift-family wires.
func (f *Field) Wire() string {
	if f.WireName != "" {
		return f.WireName
	}
	return f.Name
}

// JSONProperty returns the JSON property name.
func (f *Field) JSONProperty() string {
	if f.Metadata.JSON.Property != "" {
		return f.Metadata.JSON.Property
	}
	return f.Name
}

func (f *Field) String() string {
	if f == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s:%s@%d", f.Name, f.Type, f.Tag)
}

func (f *Field) clone() *Field {
	c := *f
	c.Metadata.Validators = append([]Validator(nil), f.Metadata.Validators...)
	c.Metadata.Annotations = maps.Clone(f.Metadata.Annotations)
	return &c
}

// validateValue runs the type check then the custom validators.
func (f *Field) validateValue(v any) error {
	if err := f.Type.Validate(v); err != nil {
		return err
	}
	for _, val := range f.Metadata.Validators {
		if err := val.Validate(v); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return err
			}
			return &ValidationError{Code: CodeInvalid, Message: err.Error(), Value: v, Err: err}
		}
	}
	return nil
}

// sameDefinition compares everything but validators and annotations.
func (f *Field) sameDefinition(o *Field) bool {
	return f.Name == o.Name && f.Wire() == o.Wire() && f.Tag == o.Tag &&
		f.Required == o.Required && f.Metadata.JSON == o.Metadata.JSON &&
		sameType(f.Type, o.Type)
}

func sameType(a, b Type) bool {
	if a.ID() != b.ID() {
		return false
	}
	switch x := a.(type) {
	case *StructType:
		return x.desc == b.(*StructType).desc
	case *EnumType:
		return x == b.(*EnumType)
	}
	pa, pb := a.Params(), b.Params()
	if len(pa) != len(pb) {
		return false
	}
	for i := range pa {
		if !sameType(pa[i], pb[i]) {
			return false
		}
	}
	return true
}
