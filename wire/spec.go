package wire

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/apache/thrift/lib/go/thrift"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/reoring/unimodel"
)

// StructSpec is the resolved plan for reading and writing one struct.
// Nested plans may point back at an enclosing StructSpec.
type StructSpec struct {
	// Struct is the descriptor the plan was computed from.
	Struct *unimodel.StructDescriptor
	// Impl is the descriptor decoders instantiate.
	Impl   *unimodel.StructDescriptor
	Name   string
	Union  bool
	Tuple  bool
	Fields []*FieldSpec // ascending tag
	byTag  map[int16]*FieldSpec
}

// Field returns the plan entry for tag.
func (s *StructSpec) Field(tag int16) (*FieldSpec, bool) {
	f, ok := s.byTag[tag]
	return f, ok
}

// FieldSpec is one (tag, type, name, nested, default) entry of a plan.
type FieldSpec struct {
	Tag     int16
	Name    string
	Default any
	Field   *unimodel.Field
	*TypeSpec
}

// TypeSpec describes how one value is encoded.
type TypeSpec struct {
	Type   unimodel.Type
	TypeID unimodel.TypeID
	TType  thrift.TType
	Struct *StructSpec // struct and tuple
	Elem   *TypeSpec   // list and set
	Key    *TypeSpec   // map
	Value  *TypeSpec   // map
}

// TType maps a TypeID to the Thrift type tag used on the wire.
func TType(id unimodel.TypeID) thrift.TType {
	switch id {
	case unimodel.TypeBool:
		return thrift.BOOL
	case unimodel.TypeI8:
		return thrift.BYTE
	case unimodel.TypeI16:
		return thrift.I16
	case unimodel.TypeI32, unimodel.TypeEnum:
		return thrift.I32
	case unimodel.TypeI64:
		return thrift.I64
	case unimodel.TypeDouble:
		return thrift.DOUBLE
	case unimodel.TypeUTF8, unimodel.TypeBinary, unimodel.TypeBigInt, unimodel.TypeJSON:
		return thrift.STRING
	case unimodel.TypeUUID:
		return thrift.UUID
	case unimodel.TypeStruct, unimodel.TypeTuple:
		return thrift.STRUCT
	case unimodel.TypeList:
		return thrift.LIST
	case unimodel.TypeSet:
		return thrift.SET
	case unimodel.TypeMap:
		return thrift.MAP
	}
	return thrift.STOP
}

// Resolver builds and caches wire plans. Completed plans are shared by all
// callers; a plan is published only once every struct it reaches is filled.
type Resolver struct {
	registry *unimodel.ModelRegistry
	log      *zap.Logger

	plans  sync.Map // *unimodel.StructDescriptor -> *StructSpec
	tuples sync.Map // *unimodel.TupleType -> *unimodel.StructDescriptor
	group  singleflight.Group
}

// NewResolver returns a resolver instantiating implementations from registry.
// Both arguments may be nil.
func NewResolver(registry *unimodel.ModelRegistry, log *zap.Logger) *Resolver {
	if log == nil {
		log = unimodel.Logger()
	}
	return &Resolver{registry: registry, log: log}
}

// Resolve returns the plan for d.
func (r *Resolver) Resolve(d *unimodel.StructDescriptor) (*StructSpec, error) {
	if p, ok := r.plans.Load(d); ok {
		return p.(*StructSpec), nil
	}
	key := fmt.Sprintf("%p", d)
	v, err, _ := r.group.Do(key, func() (any, error) {
		if p, ok := r.plans.Load(d); ok {
			return p, nil
		}
		b := &planBuilder{r: r, pending: map[*unimodel.StructDescriptor]*StructSpec{}}
		spec, err := b.structSpec(d, false)
		if err != nil {
			return nil, err
		}
		for desc, p := range b.pending {
			r.plans.LoadOrStore(desc, p)
		}
		p, _ := r.plans.Load(d)
		r.log.Debug("wire plan resolved",
			zap.String("struct", d.Name()),
			zap.Int("structs", len(b.pending)),
			zap.Int("fields", len(spec.Fields)))
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*StructSpec), nil
}

// planBuilder resolves one plan graph. pending holds the placeholders
// reserved before their fields are filled.
type planBuilder struct {
	r       *Resolver
	pending map[*unimodel.StructDescriptor]*StructSpec
}

func (b *planBuilder) structSpec(d *unimodel.StructDescriptor, tuple bool) (*StructSpec, error) {
	if p, ok := b.r.plans.Load(d); ok {
		return p.(*StructSpec), nil
	}
	if p, ok := b.pending[d]; ok {
		return p, nil
	}
	if !d.Defined() {
		return nil, fmt.Errorf("wire: struct %s is not defined", d.Name())
	}
	spec := &StructSpec{
		Struct: d,
		Impl:   b.r.registry.Lookup(d),
		Name:   d.Name(),
		Union:  d.IsUnion(),
		Tuple:  tuple,
		byTag:  map[int16]*FieldSpec{},
	}
	b.pending[d] = spec
	for _, f := range d.FieldsByTag() {
		ts, err := b.typeSpec(f.Type)
		if err != nil {
			return nil, fmt.Errorf("wire: %s.%s: %w", d.Name(), f.Name, err)
		}
		fs := &FieldSpec{Tag: f.Tag, Name: f.Wire(), Default: f.Default, Field: f, TypeSpec: ts}
		spec.Fields = append(spec.Fields, fs)
		spec.byTag[f.Tag] = fs
	}
	return spec, nil
}

func (b *planBuilder) typeSpec(t unimodel.Type) (*TypeSpec, error) {
	ts := &TypeSpec{Type: t, TypeID: t.ID(), TType: TType(t.ID())}
	var err error
	switch tt := t.(type) {
	case *unimodel.StructType:
		ts.Struct, err = b.structSpec(tt.Descriptor(), false)
	case *unimodel.TupleType:
		var d *unimodel.StructDescriptor
		if d, err = b.r.tupleStruct(tt); err == nil {
			ts.Struct, err = b.structSpec(d, true)
		}
	case *unimodel.ListType:
		ts.Elem, err = b.typeSpec(tt.Elem())
	case *unimodel.SetType:
		ts.Elem, err = b.typeSpec(tt.Elem())
	case *unimodel.MapType:
		if ts.Key, err = b.typeSpec(tt.Key()); err == nil {
			ts.Value, err = b.typeSpec(tt.Value())
		}
	}
	if ts.TType == thrift.STOP {
		return nil, fmt.Errorf("no wire encoding for %s", t)
	}
	return ts, err
}

// tupleStruct synthesizes the struct a tuple travels as: one required field
// per slot named slot_0, slot_1, ... tagged from 1.
func (r *Resolver) tupleStruct(t *unimodel.TupleType) (*unimodel.StructDescriptor, error) {
	if d, ok := r.tuples.Load(t); ok {
		return d.(*unimodel.StructDescriptor), nil
	}
	params := t.Params()
	fields := make([]*unimodel.Field, len(params))
	for i, p := range params {
		fields[i] = unimodel.NewField("slot_"+strconv.Itoa(i), p, unimodel.Tag(int16(i+1)), unimodel.Required())
	}
	d, err := unimodel.Build(t.String(), fields)
	if err != nil {
		return nil, err
	}
	actual, _ := r.tuples.LoadOrStore(t, d)
	return actual.(*unimodel.StructDescriptor), nil
}
