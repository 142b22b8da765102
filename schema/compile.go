package schema

import (
	"encoding/base64"
	"fmt"
	"math"
	"math/big"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/reoring/unimodel"
)

// Set is the result of compiling a Document.
type Set struct {
	order   []*unimodel.StructDescriptor
	structs map[string]*unimodel.StructDescriptor
	enums   map[string]*unimodel.EnumType
}

// Lookup resolves a struct by name. Set satisfies wire.StructLookup.
func (s *Set) Lookup(name string) (*unimodel.StructDescriptor, bool) {
	d, ok := s.structs[name]
	return d, ok
}

// Structs returns the descriptors in document order.
func (s *Set) Structs() []*unimodel.StructDescriptor {
	return append([]*unimodel.StructDescriptor(nil), s.order...)
}

func (s *Set) Enum(name string) (*unimodel.EnumType, bool) {
	e, ok := s.enums[name]
	return e, ok
}

// Compile declares every struct of doc, then defines them parents first so
// fields may refer to any struct of the document, including their own.
func Compile(doc *Document) (*Set, error) {
	c := &compiler{
		defs:  map[string]*StructDef{},
		state: map[string]int{},
		set: &Set{
			structs: map[string]*unimodel.StructDescriptor{},
			enums:   map[string]*unimodel.EnumType{},
		},
	}
	for i := range doc.Structs {
		def := &doc.Structs[i]
		if def.Name == "" {
			return nil, fmt.Errorf("schema: struct %d has no name", i)
		}
		if _, dup := c.defs[def.Name]; dup {
			return nil, fmt.Errorf("schema: struct %s defined twice", def.Name)
		}
		c.defs[def.Name] = def
		d := unimodel.Declare(def.Name)
		c.set.structs[def.Name] = d
		c.set.order = append(c.set.order, d)
	}
	for _, def := range doc.Structs {
		if err := c.define(def.Name); err != nil {
			return nil, err
		}
	}
	return c.set, nil
}

const (
	visiting = 1
	done     = 2
)

type compiler struct {
	defs  map[string]*StructDef
	state map[string]int
	set   *Set
}

func (c *compiler) define(name string) error {
	switch c.state[name] {
	case done:
		return nil
	case visiting:
		return fmt.Errorf("schema: struct %s extends itself", name)
	}
	def, ok := c.defs[name]
	if !ok {
		return fmt.Errorf("schema: unknown struct %s", name)
	}
	c.state[name] = visiting

	var opts []unimodel.StructOption
	for _, p := range def.Extends {
		if err := c.define(p); err != nil {
			return err
		}
		opts = append(opts, unimodel.Extends(c.set.structs[p]))
	}
	if def.Union {
		opts = append(opts, unimodel.AsUnion())
	}
	fields := make([]*unimodel.Field, 0, len(def.Fields))
	for _, fd := range def.Fields {
		f, err := c.field(def.Name, fd)
		if err != nil {
			return err
		}
		fields = append(fields, f)
	}
	if err := unimodel.Define(c.set.structs[name], fields, opts...); err != nil {
		return err
	}
	c.state[name] = done
	return nil
}

func (c *compiler) field(structName string, fd FieldDef) (*unimodel.Field, error) {
	t, err := c.typeOf(fd.Type)
	if err != nil {
		return nil, fmt.Errorf("schema: %s.%s: %w", structName, fd.Name, err)
	}
	f := unimodel.NewField(fd.Name, t)
	if fd.Tag > 0 {
		f.Tag = fd.Tag
	}
	f.WireName = fd.WireName
	f.Required = fd.Required
	if fd.JSON != nil {
		f.Metadata.JSON = *fd.JSON
	}
	for k, v := range fd.Annotations {
		unimodel.Annotate(k, v)(f)
	}
	if fd.Default != nil {
		v, err := compileDefault(t, fd.Default)
		if err != nil {
			return nil, fmt.Errorf("schema: %s.%s: default: %w", structName, fd.Name, err)
		}
		f.Default = v
	}
	return f, nil
}

func (c *compiler) typeOf(ref TypeRef) (unimodel.Type, error) {
	params := make([]unimodel.Type, len(ref.Params))
	for i, p := range ref.Params {
		t, err := c.typeOf(p)
		if err != nil {
			return nil, err
		}
		params[i] = t
	}
	arity := func(n int) error {
		if len(params) != n {
			return fmt.Errorf("%s takes %d type parameters, got %d", ref.Kind, n, len(params))
		}
		return nil
	}

	switch ref.Kind {
	case "struct":
		d, ok := c.set.structs[ref.Name]
		if !ok {
			return nil, fmt.Errorf("unknown struct %q", ref.Name)
		}
		return unimodel.Struct(d), nil
	case "enum":
		return c.enum(ref)
	case "list":
		if err := arity(1); err != nil {
			return nil, err
		}
		return unimodel.List(params[0]), nil
	case "set":
		if err := arity(1); err != nil {
			return nil, err
		}
		return unimodel.Set(params[0]), nil
	case "map":
		if err := arity(2); err != nil {
			return nil, err
		}
		return unimodel.Map(params[0], params[1]), nil
	case "tuple":
		if len(params) == 0 {
			return nil, fmt.Errorf("tuple needs at least one type parameter")
		}
		return unimodel.Tuple(params...), nil
	}
	t, ok := unimodel.PrimitiveByName(ref.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown type %q", ref.Kind)
	}
	return t, arity(0)
}

// enum returns one EnumType per name; repeated references must agree on the
// members or list none.
func (c *compiler) enum(ref TypeRef) (unimodel.Type, error) {
	if e, ok := c.set.enums[ref.Name]; ok {
		if len(ref.Values) > 0 && !sameValues(e.Values(), ref.Values) {
			return nil, fmt.Errorf("enum %s redeclared with different values", ref.Name)
		}
		return e, nil
	}
	if ref.Name == "" || len(ref.Values) == 0 {
		return nil, fmt.Errorf("enum %q needs a name and values", ref.Name)
	}
	keys, names := map[int32]bool{}, map[string]bool{}
	for _, v := range ref.Values {
		if keys[v.Key] || names[v.Name] {
			return nil, fmt.Errorf("enum %s repeats member %s=%d", ref.Name, v.Name, v.Key)
		}
		keys[v.Key], names[v.Name] = true, true
	}
	e := unimodel.Enum(ref.Name, ref.Values...)
	c.set.enums[ref.Name] = e
	return e, nil
}

func sameValues(a, b []unimodel.EnumValue) bool {
	if len(a) != len(b) {
		return false
	}
	seen := map[unimodel.EnumValue]bool{}
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if !seen[v] {
			return false
		}
	}
	return true
}

// compileDefault converts a decoded YAML or JSON literal to the native
// representation of t.
func compileDefault(t unimodel.Type, v any) (any, error) {
	switch t.ID() {
	case unimodel.TypeBool, unimodel.TypeUTF8, unimodel.TypeJSON:
		return v, nil
	case unimodel.TypeI8, unimodel.TypeI16, unimodel.TypeI32, unimodel.TypeI64:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return narrow(t.ID(), n)
	case unimodel.TypeBigInt:
		b, ok := new(big.Int).SetString(fmt.Sprint(v), 10)
		if !ok {
			return nil, fmt.Errorf("%v is not an integer", v)
		}
		return b, nil
	case unimodel.TypeDouble:
		switch x := v.(type) {
		case float64:
			return x, nil
		case json.Number:
			return x.Float64()
		}
		n, err := toInt64(v)
		return float64(n), err
	case unimodel.TypeBinary:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("binary default must be a base64 string")
		}
		return base64.StdEncoding.DecodeString(s)
	case unimodel.TypeUUID:
		return uuid.Parse(fmt.Sprint(v))
	case unimodel.TypeEnum:
		e := t.(*unimodel.EnumType)
		if s, ok := v.(string); ok {
			if k, ok := e.Key(s); ok {
				return k, nil
			}
			return nil, fmt.Errorf("%q is not a member of %s", s, e)
		}
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return narrow(unimodel.TypeI32, n)
	}
	return nil, fmt.Errorf("defaults of type %s are not supported", t)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows i64", x)
		}
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, fmt.Errorf("%v is not an integer", x)
		}
		return int64(x), nil
	case json.Number:
		return x.Int64()
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	return 0, fmt.Errorf("%v (%T) is not an integer", v, v)
}

func narrow(id unimodel.TypeID, n int64) (any, error) {
	var lo, hi int64
	switch id {
	case unimodel.TypeI8:
		lo, hi = math.MinInt8, math.MaxInt8
	case unimodel.TypeI16:
		lo, hi = math.MinInt16, math.MaxInt16
	case unimodel.TypeI32:
		lo, hi = math.MinInt32, math.MaxInt32
	default:
		return n, nil
	}
	if n < lo || n > hi {
		return nil, fmt.Errorf("%d is out of range for %s", n, id)
	}
	switch id {
	case unimodel.TypeI8:
		return int8(n), nil
	case unimodel.TypeI16:
		return int16(n), nil
	}
	return int32(n), nil
}
