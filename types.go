package unimodel

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// TypeID is the protocol independent identifier of a type. Backends map it
// to their own tag space.
type TypeID uint8

const (
	TypeBool TypeID = iota + 1
	TypeI8
	TypeI16
	TypeI32
	TypeI64
	TypeBigInt
	TypeDouble
	TypeUTF8
	TypeBinary
	TypeUUID
	TypeJSON
	TypeEnum
	TypeStruct
	TypeList
	TypeSet
	TypeMap
	TypeTuple
)

var typeIDNames = map[TypeID]string{
	TypeBool: "bool", TypeI8: "i8", TypeI16: "i16", TypeI32: "i32", TypeI64: "i64",
	TypeBigInt: "bigint", TypeDouble: "double", TypeUTF8: "string", TypeBinary: "binary",
	TypeUUID: "uuid", TypeJSON: "json", TypeEnum: "enum", TypeStruct: "struct",
	TypeList: "list", TypeSet: "set", TypeMap: "map", TypeTuple: "tuple",
}

func (id TypeID) String() string {
	if s, ok := typeIDNames[id]; ok {
		return s
	}
	return fmt.Sprintf("TypeID(%d)", uint8(id))
}

// IsInteger reports whether values of the type are fixed width integers.
func (id TypeID) IsInteger() bool {
	return id == TypeI8 || id == TypeI16 || id == TypeI32 || id == TypeI64
}

// Type is an immutable descriptor of a value shape.
//
// Native representations:
//
//	Bool bool, I8 int8, I16 int16, I32 int32, I64 int64, BigInt *big.Int,
//	Double float64, UTF8 string, Binary []byte, UUID uuid.UUID,
//	JSON any JSON-compatible tree, Enum int32, Struct *Instance,
//	List/Set/Tuple []any, Map map[any]any.
type Type interface {
	ID() TypeID
	String() string
	// Params returns the child types of a parametric type.
	Params() []Type
	Validate(v any) error
}

type primitive struct{ id TypeID }

var (
	Bool   Type = primitive{TypeBool}
	I8     Type = primitive{TypeI8}
	I16    Type = primitive{TypeI16}
	I32    Type = primitive{TypeI32}
	I64    Type = primitive{TypeI64}
	BigInt Type = primitive{TypeBigInt}
	Double Type = primitive{TypeDouble}
	UTF8   Type = primitive{TypeUTF8}
	Binary Type = primitive{TypeBinary}
	UUID   Type = primitive{TypeUUID}
	JSON   Type = primitive{TypeJSON}
)

// Primitive returns the primitive type for id, if id names one.
func Primitive(id TypeID) (Type, bool) {
	if id < TypeBool || id > TypeJSON {
		return nil, false
	}
	return primitive{id}, true
}

// PrimitiveByName resolves names such as "i64" or "string".
func PrimitiveByName(name string) (Type, bool) {
	for id := TypeBool; id <= TypeJSON; id++ {
		if typeIDNames[id] == name {
			return primitive{id}, true
		}
	}
	return nil, false
}

func (p primitive) ID() TypeID     { return p.id }
func (p primitive) String() string { return p.id.String() }
func (p primitive) Params() []Type { return nil }

func (p primitive) Validate(v any) error {
	var ok bool
	switch p.id {
	case TypeBool:
		_, ok = v.(bool)
	case TypeI8:
		_, ok = v.(int8)
	case TypeI16:
		_, ok = v.(int16)
	case TypeI32:
		_, ok = v.(int32)
	case TypeI64:
		_, ok = v.(int64)
	case TypeBigInt:
		b, isBig := v.(*big.Int)
		ok = isBig && b != nil
	case TypeDouble:
		_, ok = v.(float64)
	case TypeUTF8:
		s, isStr := v.(string)
		if isStr && !utf8.ValidString(s) {
			return &ValidationError{Code: CodeInvalidFormat, Message: "invalid UTF-8 string", Value: v}
		}
		ok = isStr
	case TypeBinary:
		_, ok = v.([]byte)
	case TypeUUID:
		_, ok = v.(uuid.UUID)
	case TypeJSON:
		if v != nil {
			_, err := json.Marshal(v)
			ok = err == nil
		}
	}
	if !ok {
		return typeMismatch(p, v)
	}
	return nil
}

// EnumValue is one member of an enum.
type EnumValue struct {
	Key  int32  `json:"key" yaml:"key"`
	Name string `json:"name" yaml:"name"`
}

// EnumType is a bijective mapping between int32 keys and names. Enum values
// are stored as their int32 key.
type EnumType struct {
	name   string
	values []EnumValue
	byKey  map[int32]string
	byName map[string]int32
}

// Enum builds an enum type. It panics if a key or a name repeats.
func Enum(name string, values ...EnumValue) *EnumType {
	e := &EnumType{name: name, byKey: map[int32]string{}, byName: map[string]int32{}}
	for _, v := range values {
		if _, dup := e.byKey[v.Key]; dup {
			panic(fmt.Sprintf("unimodel: enum %s: duplicate key %d", name, v.Key))
		}
		if _, dup := e.byName[v.Name]; dup {
			panic(fmt.Sprintf("unimodel: enum %s: duplicate name %q", name, v.Name))
		}
		e.byKey[v.Key] = v.Name
		e.byName[v.Name] = v.Key
		e.values = append(e.values, v)
	}
	sort.Slice(e.values, func(i, j int) bool { return e.values[i].Key < e.values[j].Key })
	return e
}

func (e *EnumType) ID() TypeID     { return TypeEnum }
func (e *EnumType) String() string { return e.name }
func (e *EnumType) Params() []Type { return nil }

// Values returns the members ordered by key.
func (e *EnumType) Values() []EnumValue { return append([]EnumValue(nil), e.values...) }

// Name returns the name for key.
func (e *EnumType) Name(key int32) (string, bool) {
	n, ok := e.byKey[key]
	return n, ok
}

// Key returns the key for name.
func (e *EnumType) Key(name string) (int32, bool) {
	k, ok := e.byName[name]
	return k, ok
}

func (e *EnumType) Validate(v any) error {
	k, ok := v.(int32)
	if !ok {
		return typeMismatch(e, v)
	}
	if _, ok := e.byKey[k]; !ok {
		return &ValidationError{Code: CodeInvalidEnum, Message: fmt.Sprintf("%d is not a member of enum %s", k, e.name), Value: v}
	}
	return nil
}

// StructType references a struct descriptor by identity.
type StructType struct{ desc *StructDescriptor }

// Struct returns the type of fields holding instances of d. The descriptor
// may still be undefined, which is how recursive structs are declared.
func Struct(d *StructDescriptor) *StructType { return &StructType{desc: d} }

func (t *StructType) ID() TypeID                    { return TypeStruct }
func (t *StructType) String() string                { return t.desc.Name() }
func (t *StructType) Params() []Type                { return nil }
func (t *StructType) Descriptor() *StructDescriptor { return t.desc }

func (t *StructType) Validate(v any) error {
	inst, ok := v.(*Instance)
	if !ok || inst == nil || !inst.desc.IsSubtypeOf(t.desc) {
		return typeMismatch(t, v)
	}
	return inst.Validate()
}

// ListType holds []any.
type ListType struct{ elem Type }

func List(elem Type) *ListType { return &ListType{elem: elem} }

func (t *ListType) ID() TypeID     { return TypeList }
func (t *ListType) String() string { return "list<" + t.elem.String() + ">" }
func (t *ListType) Params() []Type { return []Type{t.elem} }
func (t *ListType) Elem() Type     { return t.elem }

func (t *ListType) Validate(v any) error {
	xs, ok := v.([]any)
	if !ok {
		return typeMismatch(t, v)
	}
	for i, x := range xs {
		if err := t.elem.Validate(x); err != nil {
			return prefixPath(err, IndexSegment(i))
		}
	}
	return nil
}

// SetType holds []any without duplicate elements.
type SetType struct{ elem Type }

func Set(elem Type) *SetType { return &SetType{elem: elem} }

func (t *SetType) ID() TypeID     { return TypeSet }
func (t *SetType) String() string { return "set<" + t.elem.String() + ">" }
func (t *SetType) Params() []Type { return []Type{t.elem} }
func (t *SetType) Elem() Type     { return t.elem }

func (t *SetType) Validate(v any) error {
	xs, ok := v.([]any)
	if !ok {
		return typeMismatch(t, v)
	}
	for i, x := range xs {
		if err := t.elem.Validate(x); err != nil {
			return prefixPath(err, IndexSegment(i))
		}
		for j := 0; j < i; j++ {
			if Equal(t.elem, xs[j], x) {
				return &ValidationError{Path: Path{IndexSegment(i)}, Code: CodeDuplicateElement, Message: "duplicate set element", Value: x}
			}
		}
	}
	return nil
}

// MapType holds map[any]any. Keys must be hashable: a scalar primitive, an
// enum or a UUID.
type MapType struct{ key, value Type }

func Map(key, value Type) *MapType { return &MapType{key: key, value: value} }

func (t *MapType) ID() TypeID     { return TypeMap }
func (t *MapType) String() string { return "map<" + t.key.String() + "," + t.value.String() + ">" }
func (t *MapType) Params() []Type { return []Type{t.key, t.value} }
func (t *MapType) Key() Type      { return t.key }
func (t *MapType) Value() Type    { return t.value }

func (t *MapType) Validate(v any) error {
	m, ok := v.(map[any]any)
	if !ok {
		return typeMismatch(t, v)
	}
	for _, k := range SortedKeys(m) {
		if err := t.key.Validate(k); err != nil {
			return prefixPath(err, KeySegment(k))
		}
		if err := t.value.Validate(m[k]); err != nil {
			return prefixPath(err, KeySegment(k))
		}
	}
	return nil
}

// TupleType holds a []any with exactly one element per slot.
type TupleType struct{ elems []Type }

func Tuple(elems ...Type) *TupleType { return &TupleType{elems: append([]Type(nil), elems...)} }

func (t *TupleType) ID() TypeID     { return TypeTuple }
func (t *TupleType) Params() []Type { return append([]Type(nil), t.elems...) }

func (t *TupleType) String() string {
	parts := make([]string, len(t.elems))
	for i, e := range t.elems {
		parts[i] = e.String()
	}
	return "tuple<" + strings.Join(parts, ",") + ">"
}

func (t *TupleType) Validate(v any) error {
	xs, ok := v.([]any)
	if !ok {
		return typeMismatch(t, v)
	}
	if len(xs) != len(t.elems) {
		return &ValidationError{Code: CodeInvalidType, Message: fmt.Sprintf("expected %d tuple slots, got %d", len(t.elems), len(xs)), Value: v}
	}
	for i, x := range xs {
		if err := t.elems[i].Validate(x); err != nil {
			return prefixPath(err, IndexSegment(i))
		}
	}
	return nil
}

// HashableKey reports whether t may be used as a map key type.
func HashableKey(t Type) bool {
	switch t.ID() {
	case TypeBool, TypeI8, TypeI16, TypeI32, TypeI64, TypeDouble, TypeUTF8, TypeUUID, TypeEnum:
		return true
	}
	return false
}
