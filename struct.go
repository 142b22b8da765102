package unimodel

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// ErrAlreadyDefined is returned when a struct is redefined with a different
// layout.
var ErrAlreadyDefined = errors.New("struct already defined with a different layout")

// StructValidator is a struct-level check run after all field checks pass.
type StructValidator interface {
	ValidateStruct(inst *Instance) error
}

// StructValidatorFunc adapts a function to StructValidator.
type StructValidatorFunc func(inst *Instance) error

func (f StructValidatorFunc) ValidateStruct(inst *Instance) error { return f(inst) }

// StructOption configures Define.
type StructOption func(*structConfig)

type structConfig struct {
	parents    []*StructDescriptor
	union      bool
	validators []StructValidator
}

// Extends merges the fields of parents, in order, under the new struct's own
// fields. The new struct becomes a subtype of each parent.
func Extends(parents ...*StructDescriptor) StructOption {
	return func(c *structConfig) { c.parents = append(c.parents, parents...) }
}

// AsUnion marks the struct as a union: at most one field may be set.
func AsUnion() StructOption { return func(c *structConfig) { c.union = true } }

// StructValidators attaches struct-level validators.
func StructValidators(vs ...StructValidator) StructOption {
	return func(c *structConfig) { c.validators = append(c.validators, vs...) }
}

// StructDescriptor is the finalized description of a struct type. It is
// created undefined by Declare so that fields can reference it before Define
// fills in its layout.
type StructDescriptor struct {
	name   string
	mu     sync.Mutex
	layout atomic.Pointer[structLayout]
}

type structLayout struct {
	fields      []*Field // declaration order, parents first
	byTag       []*Field // ascending tag
	byName      map[string]*Field
	byWire      map[string]*Field
	tagIndex    map[int16]*Field
	union       bool
	parents     []*StructDescriptor
	validators  []StructValidator
	fingerprint uint64
}

var emptyLayout = &structLayout{}

// Declare returns an undefined struct descriptor.
func Declare(name string) *StructDescriptor { return &StructDescriptor{name: name} }

// Build declares and defines a struct in one step.
func Build(name string, fields []*Field, opts ...StructOption) (*StructDescriptor, error) {
	d := Declare(name)
	if err := Define(d, fields, opts...); err != nil {
		return nil, err
	}
	return d, nil
}

// Define finalizes d: parent fields are merged in order with fields
// overriding them by name, unassigned tags receive the lowest free positive
// tag in declaration order, and the name and tag indices are built.
// Defining an already defined struct with an identical layout is a no-op.
func Define(d *StructDescriptor, fields []*Field, opts ...StructOption) error {
	cfg := &structConfig{}
	for _, o := range opts {
		o(cfg)
	}
	lay, err := buildLayout(d.name, fields, cfg)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if cur := d.layout.Load(); cur != nil {
		if cur.sameAs(lay) {
			return nil
		}
		return fmt.Errorf("unimodel: struct %s: %w", d.name, ErrAlreadyDefined)
	}
	d.layout.Store(lay)
	Logger().Debug("struct defined",
		zap.String("struct", d.name),
		zap.Int("fields", len(lay.fields)),
		zap.Bool("union", lay.union),
		zap.Uint64("fingerprint", lay.fingerprint))
	return nil
}

func buildLayout(name string, fields []*Field, cfg *structConfig) (*structLayout, error) {
	var merged []*Field
	pos := map[string]int{}
	for _, p := range cfg.parents {
		if p == nil || !p.Defined() {
			return nil, fmt.Errorf("unimodel: struct %s: parent %s is not defined", name, p.Name())
		}
		for _, f := range p.l().fields {
			if i, ok := pos[f.Name]; ok {
				merged[i] = f.clone()
				continue
			}
			pos[f.Name] = len(merged)
			merged = append(merged, f.clone())
		}
	}

	own := map[string]bool{}
	for _, f := range fields {
		if f == nil || f.Name == "" || f.Type == nil {
			return nil, fmt.Errorf("unimodel: struct %s: field needs a name and a type", name)
		}
		if own[f.Name] {
			return nil, &DuplicateFieldError{Struct: name, Name: f.Name}
		}
		own[f.Name] = true
		c := f.clone()
		if i, ok := pos[c.Name]; ok {
			if !c.HasTag() {
				c.Tag = merged[i].Tag
			}
			merged[i] = c
			continue
		}
		pos[c.Name] = len(merged)
		merged = append(merged, c)
	}

	lay := &structLayout{
		fields:     merged,
		byName:     make(map[string]*Field, len(merged)),
		byWire:     make(map[string]*Field, len(merged)),
		tagIndex:   make(map[int16]*Field, len(merged)),
		union:      cfg.union,
		parents:    append([]*StructDescriptor(nil), cfg.parents...),
		validators: append([]StructValidator(nil), cfg.validators...),
	}
	for _, f := range merged {
		if !f.HasTag() {
			continue
		}
		if prev, ok := lay.tagIndex[f.Tag]; ok {
			return nil, &DuplicateFieldError{Struct: name, Tag: f.Tag, First: prev.Name, Second: f.Name}
		}
		lay.tagIndex[f.Tag] = f
	}
	next := int16(1)
	for _, f := range merged {
		if f.HasTag() {
			continue
		}
		for lay.tagIndex[next] != nil {
			if next == math.MaxInt16 {
				return nil, fmt.Errorf("unimodel: struct %s: no free tag for field %s", name, f.Name)
			}
			next++
		}
		f.Tag = next
		lay.tagIndex[next] = f
	}

	for _, f := range merged {
		lay.byName[f.Name] = f
		if prev, ok := lay.byWire[f.Wire()]; ok {
			return nil, &DuplicateFieldError{Struct: name, Name: f.Wire(), First: prev.Name, Second: f.Name}
		}
		lay.byWire[f.Wire()] = f
		if err := checkField(name, f); err != nil {
			return nil, err
		}
	}

	lay.byTag = append([]*Field(nil), merged...)
	sort.Slice(lay.byTag, func(i, j int) bool { return lay.byTag[i].Tag < lay.byTag[j].Tag })
	lay.fingerprint = fingerprint(name, lay)
	return lay, nil
}

func checkField(structName string, f *Field) error {
	if err := checkKeys(f.Type); err != nil {
		return fmt.Errorf("unimodel: struct %s field %s: %w", structName, f.Name, err)
	}
	if f.Metadata.JSON.Unboxed && f.Type.ID() != TypeStruct {
		return fmt.Errorf("unimodel: struct %s field %s: only struct fields can be unboxed", structName, f.Name)
	}
	if f.Default != nil {
		if err := f.Type.Validate(f.Default); err != nil {
			return fmt.Errorf("unimodel: struct %s field %s: invalid default: %w", structName, f.Name, err)
		}
	}
	return nil
}

func checkKeys(t Type) error {
	switch t.ID() {
	case TypeStruct:
		return nil
	case TypeMap:
		if !HashableKey(t.Params()[0]) {
			return fmt.Errorf("%s cannot be a map key", t.Params()[0])
		}
	}
	for _, p := range t.Params() {
		if err := checkKeys(p); err != nil {
			return err
		}
	}
	return nil
}

func fingerprint(name string, lay *structLayout) uint64 {
	b := &strings.Builder{}
	b.WriteString(name)
	if lay.union {
		b.WriteString("|union")
	}
	for _, f := range lay.byTag {
		b.WriteString("|")
		b.WriteString(strconv.Itoa(int(f.Tag)))
		b.WriteString(":")
		b.WriteString(f.Wire())
		b.WriteString(":")
		b.WriteString(f.Type.String())
		if f.Required {
			b.WriteString("!")
		}
	}
	return xxhash.Sum64String(b.String())
}

func (l *structLayout) sameAs(o *structLayout) bool {
	if l.union != o.union || len(l.fields) != len(o.fields) || len(l.parents) != len(o.parents) {
		return false
	}
	for i := range l.fields {
		if !l.fields[i].sameDefinition(o.fields[i]) {
			return false
		}
	}
	for i := range l.parents {
		if l.parents[i] != o.parents[i] {
			return false
		}
	}
	return true
}

func (d *StructDescriptor) l() *structLayout {
	if lay := d.layout.Load(); lay != nil {
		return lay
	}
	return emptyLayout
}

// Name returns the struct name.
func (d *StructDescriptor) Name() string {
	if d == nil {
		return "<nil>"
	}
	return d.name
}

// Defined reports whether Define has completed.
func (d *StructDescriptor) Defined() bool { return d.layout.Load() != nil }

// Fields returns the fields in declaration order, inherited fields first.
func (d *StructDescriptor) Fields() []*Field { return append([]*Field(nil), d.l().fields...) }

// FieldsByTag returns the fields in ascending tag order.
func (d *StructDescriptor) FieldsByTag() []*Field { return append([]*Field(nil), d.l().byTag...) }

func (d *StructDescriptor) Field(name string) (*Field, bool) {
	f, ok := d.l().byName[name]
	return f, ok
}

func (d *StructDescriptor) FieldByTag(tag int16) (*Field, bool) {
	f, ok := d.l().tagIndex[tag]
	return f, ok
}

func (d *StructDescriptor) FieldByWireName(name string) (*Field, bool) {
	f, ok := d.l().byWire[name]
	return f, ok
}

func (d *StructDescriptor) IsUnion() bool { return d.l().union }

func (d *StructDescriptor) Parents() []*StructDescriptor {
	return append([]*StructDescriptor(nil), d.l().parents...)
}

// IsSubtypeOf reports whether d is other or inherits from it.
func (d *StructDescriptor) IsSubtypeOf(other *StructDescriptor) bool {
	if d == other {
		return true
	}
	for _, p := range d.l().parents {
		if p.IsSubtypeOf(other) {
			return true
		}
	}
	return false
}

// depth is the length of the longest inheritance chain above d.
func (d *StructDescriptor) depth() int {
	n := 0
	for _, p := range d.l().parents {
		if pd := p.depth() + 1; pd > n {
			n = pd
		}
	}
	return n
}

// Fingerprint hashes the wire-relevant layout: name, union flag and, per
// field, tag, wire name, type and required flag.
func (d *StructDescriptor) Fingerprint() uint64 { return d.l().fingerprint }

// New returns an empty instance.
func (d *StructDescriptor) New() *Instance {
	return &Instance{desc: d, values: map[int16]any{}}
}

func (d *StructDescriptor) String() string { return d.Name() }
