package unimodel

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownField is returned when an instance is addressed by a name or tag
// its struct does not declare.
var ErrUnknownField = errors.New("unknown field")

// Instance is a struct value: its descriptor plus the fields that are set,
// keyed by tag. An unset field is absent, which differs from a field set to
// its zero value. Instances are not safe for concurrent mutation.
type Instance struct {
	desc   *StructDescriptor
	values map[int16]any
}

func (i *Instance) Descriptor() *StructDescriptor { return i.desc }

func (i *Instance) field(name string) (*Field, error) {
	f, ok := i.desc.Field(name)
	if !ok {
		return nil, fmt.Errorf("unimodel: %s.%s: %w", i.desc.Name(), name, ErrUnknownField)
	}
	return f, nil
}

// Get returns the value of a set field.
func (i *Instance) Get(name string) (any, bool) {
	f, ok := i.desc.Field(name)
	if !ok {
		return nil, false
	}
	v, ok := i.values[f.Tag]
	return v, ok
}

// GetOrDefault returns the value of the field, or its default when unset.
func (i *Instance) GetOrDefault(name string) any {
	f, ok := i.desc.Field(name)
	if !ok {
		return nil
	}
	if v, ok := i.values[f.Tag]; ok {
		return v
	}
	return f.Default
}

// Set stores v under the field's tag. A nil v unsets the field. Values are
// not validated until Validate.
func (i *Instance) Set(name string, v any) error {
	f, err := i.field(name)
	if err != nil {
		return err
	}
	i.put(f.Tag, v)
	return nil
}

// MustSet is Set for fixtures; it panics on unknown names and returns i.
func (i *Instance) MustSet(name string, v any) *Instance {
	if err := i.Set(name, v); err != nil {
		panic(err)
	}
	return i
}

func (i *Instance) Delete(name string) error {
	f, err := i.field(name)
	if err != nil {
		return err
	}
	delete(i.values, f.Tag)
	return nil
}

func (i *Instance) Has(name string) bool {
	_, ok := i.Get(name)
	return ok
}

func (i *Instance) GetTag(tag int16) (any, bool) {
	v, ok := i.values[tag]
	return v, ok
}

func (i *Instance) SetTag(tag int16, v any) error {
	if _, ok := i.desc.FieldByTag(tag); !ok {
		return fmt.Errorf("unimodel: %s tag %d: %w", i.desc.Name(), tag, ErrUnknownField)
	}
	i.put(tag, v)
	return nil
}

func (i *Instance) put(tag int16, v any) {
	if v == nil {
		delete(i.values, tag)
		return
	}
	i.values[tag] = v
}

// Tags returns the set tags in ascending order.
func (i *Instance) Tags() []int16 {
	tags := make([]int16, 0, len(i.values))
	for t := range i.values {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(a, b int) bool { return tags[a] < tags[b] })
	return tags
}

// Len is the number of set fields.
func (i *Instance) Len() int { return len(i.values) }

// Range calls fn for each set field in tag order until fn returns false.
func (i *Instance) Range(fn func(f *Field, v any) bool) {
	for _, f := range i.desc.l().byTag {
		v, ok := i.values[f.Tag]
		if !ok {
			continue
		}
		if !fn(f, v) {
			return
		}
	}
}

// CurrentField returns the single set field of a union, or nil when none is
// set. More than one set field is an error.
func (i *Instance) CurrentField() (*Field, any, error) {
	if len(i.values) > 1 {
		return nil, nil, i.unionError()
	}
	var cur *Field
	var val any
	i.Range(func(f *Field, v any) bool {
		cur, val = f, v
		return false
	})
	return cur, val, nil
}

func (i *Instance) unionError() error {
	return &ValidationError{
		Struct:  i.desc.Name(),
		Code:    CodeUnionAmbiguous,
		Message: fmt.Sprintf("union %s has %d fields set", i.desc.Name(), len(i.values)),
	}
}

// Equal reports whether both instances share a descriptor and hold equal
// values under the same tags.
func (i *Instance) Equal(o *Instance) bool {
	if i == nil || o == nil {
		return i == o
	}
	if i.desc != o.desc || len(i.values) != len(o.values) {
		return false
	}
	for tag, v := range i.values {
		ov, ok := o.values[tag]
		if !ok {
			return false
		}
		f, ok := i.desc.FieldByTag(tag)
		if !ok || !Equal(f.Type, v, ov) {
			return false
		}
	}
	return true
}

// Validate checks union arity, required fields, each set value against its
// type and validators, then the struct validators. It stops at the first
// failure, visiting fields in tag order.
func (i *Instance) Validate() error {
	lay := i.desc.l()
	if lay.union && len(i.values) > 1 {
		return i.unionError()
	}
	for _, f := range lay.byTag {
		v, ok := i.values[f.Tag]
		if !ok {
			if f.Required {
				return &ValidationError{
					Struct:  i.desc.Name(),
					Field:   f.Name,
					Tag:     f.Tag,
					Path:    Path{FieldSegment(f.Name)},
					Code:    CodeRequired,
					Message: fmt.Sprintf("Required field %s (id %d) not set", f.Name, f.Tag),
				}
			}
			continue
		}
		if err := f.validateValue(v); err != nil {
			return i.fieldError(f, err)
		}
	}
	for _, sv := range lay.validators {
		if err := sv.ValidateStruct(i); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				if ve.Struct == "" {
					ve.Struct = i.desc.Name()
				}
				return ve
			}
			return &ValidationError{Struct: i.desc.Name(), Code: CodeInvalid, Message: err.Error(), Err: err}
		}
	}
	return nil
}

func (i *Instance) fieldError(f *Field, err error) error {
	pe := prefixPath(err, FieldSegment(f.Name))
	ve := pe.(*ValidationError)
	if ve.Struct == "" {
		ve.Struct = i.desc.Name()
		ve.Field = f.Name
		ve.Tag = f.Tag
	}
	return ve
}

// String renders the instance as Name(field=value, ...) in tag order.
func (i *Instance) String() string {
	if i == nil {
		return "<nil>"
	}
	b := &strings.Builder{}
	b.WriteString(i.desc.Name())
	b.WriteByte('(')
	n := 0
	i.Range(func(f *Field, v any) bool {
		if n > 0 {
			b.WriteString(", ")
		}
		n++
		if s, ok := v.(string); ok {
			fmt.Fprintf(b, "%s=%q", f.Name, s)
		} else {
			fmt.Fprintf(b, "%s=%v", f.Name, v)
		}
		return true
	})
	b.WriteByte(')')
	return b.String()
}
