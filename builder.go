package unimodel

// StructBuilder declares a struct field by field.
//
//	node := unimodel.NewStruct("TreeNode")
//	node.Field("children", unimodel.List(unimodel.Struct(node.Descriptor()))).
//		Field("data", unimodel.Struct(data)).Required()
//	desc, err := node.Build()
type StructBuilder struct {
	desc   *StructDescriptor
	fields []*Field
	opts   []StructOption
}

// FieldStep configures the field most recently added to a StructBuilder.
type FieldStep struct {
	b *StructBuilder
	f *Field
}

// NewStruct starts a builder around a freshly declared descriptor.
func NewStruct(name string) *StructBuilder { return &StructBuilder{desc: Declare(name)} }

// Descriptor returns the descriptor being built, for self references.
func (b *StructBuilder) Descriptor() *StructDescriptor { return b.desc }

// Field adds a field with an unassigned tag.
func (b *StructBuilder) Field(name string, t Type) *FieldStep {
	f := NewField(name, t)
	b.fields = append(b.fields, f)
	return &FieldStep{b: b, f: f}
}

// Add appends prebuilt fields.
func (b *StructBuilder) Add(fields ...*Field) *StructBuilder {
	b.fields = append(b.fields, fields...)
	return b
}

func (b *StructBuilder) Extends(parents ...*StructDescriptor) *StructBuilder {
	b.opts = append(b.opts, Extends(parents...))
	return b
}

func (b *StructBuilder) Union() *StructBuilder {
	b.opts = append(b.opts, AsUnion())
	return b
}

func (b *StructBuilder) Validators(vs ...StructValidator) *StructBuilder {
	b.opts = append(b.opts, StructValidators(vs...))
	return b
}

// Build defines the descriptor.
func (b *StructBuilder) Build() (*StructDescriptor, error) {
	if err := Define(b.desc, b.fields, b.opts...); err != nil {
		return nil, err
	}
	return b.desc, nil
}

// MustBuild is Build that panics on error, for package-level declarations.
func (b *StructBuilder) MustBuild() *StructDescriptor {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}

func (s *FieldStep) Tag(tag int16) *FieldStep {
	s.f.Tag = tag
	return s
}

func (s *FieldStep) Required() *FieldStep {
	s.f.Required = true
	return s
}

func (s *FieldStep) Optional() *FieldStep {
	s.f.Required = false
	return s
}

// Default sets the field default. It is checked against the type at Build.
func (s *FieldStep) Default(v any) *FieldStep {
	s.f.Default = v
	return s
}

func (s *FieldStep) WireName(name string) *FieldStep {
	s.f.WireName = name
	return s
}

func (s *FieldStep) JSONName(name string) *FieldStep {
	s.f.Metadata.JSON.Property = name
	return s
}

func (s *FieldStep) Unboxed() *FieldStep {
	s.f.Metadata.JSON.Unboxed = true
	return s
}

func (s *FieldStep) Validate(vs ...Validator) *FieldStep {
	s.f.Metadata.Validators = append(s.f.Metadata.Validators, vs...)
	return s
}

func (s *FieldStep) Annotate(k, v string) *FieldStep {
	s.f.annotate(k, v)
	return s
}

func (s *FieldStep) Field(name string, t Type) *FieldStep { return s.b.Field(name, t) }

func (s *FieldStep) Extends(parents ...*StructDescriptor) *StructBuilder {
	return s.b.Extends(parents...)
}

func (s *FieldStep) Union() *StructBuilder { return s.b.Union() }

func (s *FieldStep) Validators(vs ...StructValidator) *StructBuilder {
	return s.b.Validators(vs...)
}

func (s *FieldStep) Build() (*StructDescriptor, error) { return s.b.Build() }

func (s *FieldStep) MustBuild() *StructDescriptor { return s.b.MustBuild() }
