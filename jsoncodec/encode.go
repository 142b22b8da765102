package jsoncodec

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"math/big"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/reoring/unimodel"
)

type encoder struct {
	ctx   context.Context
	c     *Codec
	buf   bytes.Buffer
	depth int
	cur   string // struct being written
}

func (e *encoder) fail(path unimodel.Path, msg string, err error) error {
	return &unimodel.SerializationError{Struct: e.cur, Path: path, Message: msg, Err: err}
}

func (e *encoder) mismatch(path unimodel.Path, t unimodel.Type, v any) error {
	return e.fail(path, "cannot encode value", &unimodel.ValueTypeError{Type: t, Value: v})
}

func (e *encoder) writeStruct(inst *unimodel.Instance, path unimodel.Path) error {
	if err := e.ctx.Err(); err != nil {
		return err
	}
	desc := inst.Descriptor()
	prev := e.cur
	e.cur = desc.Name()
	defer func() { e.cur = prev }()

	e.depth++
	defer func() { e.depth-- }()
	if e.c.maxDepth > 0 && e.depth > e.c.maxDepth {
		return e.fail(path, "max depth exceeded", nil)
	}
	if _, err := e.c.layout(desc); err != nil {
		return err
	}
	if desc.IsUnion() {
		if _, _, err := inst.CurrentField(); err != nil {
			return e.fail(path, "union has more than one field set", err)
		}
	}

	e.buf.WriteByte('{')
	written := map[string]string{}
	if err := e.writeMembers(inst, path, written); err != nil {
		return err
	}
	e.buf.WriteByte('}')
	return nil
}

// writeMembers writes the set fields of inst into the object being built,
// descending into unboxed fields. written maps each key to the field that
// produced it.
func (e *encoder) writeMembers(inst *unimodel.Instance, path unimodel.Path, written map[string]string) error {
	desc := inst.Descriptor()
	for _, f := range desc.Fields() {
		v, ok := inst.GetTag(f.Tag)
		if !ok {
			continue
		}
		if f.Metadata.JSON.Unboxed {
			sub, ok := v.(*unimodel.Instance)
			if !ok {
				return e.mismatch(path, f.Type, v)
			}
			if sub.Descriptor().IsUnion() {
				if _, _, err := sub.CurrentField(); err != nil {
					return e.fail(path, "union has more than one field set", err)
				}
			}
			e.depth++
			err := e.writeMembers(sub, path, written)
			e.depth--
			if err != nil {
				return err
			}
			continue
		}
		name := f.JSONProperty()
		if prev, dup := written[name]; dup {
			return e.fail(path, fmt.Sprintf("JSON property %q written by both %s and %s.%s", name, prev, desc.Name(), f.Name), nil)
		}
		if len(written) > 0 {
			e.buf.WriteByte(',')
		}
		written[name] = desc.Name() + "." + f.Name
		if err := e.writeString(name); err != nil {
			return err
		}
		e.buf.WriteByte(':')
		if err := e.writeValue(f.Type, v, path.Field(name)); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) writeString(s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	e.buf.Write(b)
	return nil
}

func (e *encoder) writeValue(t unimodel.Type, v any, path unimodel.Path) error {
	switch t.ID() {
	case unimodel.TypeBool:
		x, ok := v.(bool)
		if !ok {
			return e.mismatch(path, t, v)
		}
		e.buf.WriteString(strconv.FormatBool(x))
	case unimodel.TypeI8, unimodel.TypeI16, unimodel.TypeI32, unimodel.TypeI64:
		if err := t.Validate(v); err != nil {
			return e.mismatch(path, t, v)
		}
		x, _ := asInt64(v)
		e.buf.WriteString(strconv.FormatInt(x, 10))
	case unimodel.TypeBigInt:
		x, ok := v.(*big.Int)
		if !ok || x == nil {
			return e.mismatch(path, t, v)
		}
		e.buf.WriteString(x.String())
	case unimodel.TypeDouble:
		x, ok := v.(float64)
		if !ok {
			return e.mismatch(path, t, v)
		}
		e.writeDouble(x)
	case unimodel.TypeUTF8:
		x, ok := v.(string)
		if !ok {
			return e.mismatch(path, t, v)
		}
		return e.writeString(x)
	case unimodel.TypeBinary:
		x, ok := v.([]byte)
		if !ok {
			return e.mismatch(path, t, v)
		}
		return e.writeString(base64.StdEncoding.EncodeToString(x))
	case unimodel.TypeUUID:
		x, ok := v.(uuid.UUID)
		if !ok {
			return e.mismatch(path, t, v)
		}
		return e.writeString(x.String())
	case unimodel.TypeJSON:
		b, err := json.Marshal(v)
		if err != nil {
			return e.fail(path, "cannot encode JSON value", err)
		}
		e.buf.Write(b)
	case unimodel.TypeEnum:
		key, ok := v.(int32)
		if !ok {
			return e.mismatch(path, t, v)
		}
		name, ok := t.(*unimodel.EnumType).Name(key)
		if !ok {
			return e.fail(path, fmt.Sprintf("%d is not a member of %s", key, t), nil)
		}
		return e.writeString(name)
	case unimodel.TypeStruct:
		inst, ok := v.(*unimodel.Instance)
		if !ok || !inst.Descriptor().IsSubtypeOf(t.(*unimodel.StructType).Descriptor()) {
			return e.mismatch(path, t, v)
		}
		return e.writeStruct(inst, path)
	case unimodel.TypeList, unimodel.TypeSet:
		xs, ok := v.([]any)
		if !ok {
			return e.mismatch(path, t, v)
		}
		return e.writeArray(func(i int) unimodel.Type { return t.Params()[0] }, xs, path)
	case unimodel.TypeTuple:
		xs, ok := v.([]any)
		elems := t.Params()
		if !ok || len(xs) != len(elems) {
			return e.mismatch(path, t, v)
		}
		return e.writeArray(func(i int) unimodel.Type { return elems[i] }, xs, path)
	case unimodel.TypeMap:
		return e.writeMap(t.(*unimodel.MapType), v, path)
	default:
		return e.fail(path, "unsupported type "+t.String(), nil)
	}
	return nil
}

func (e *encoder) writeDouble(x float64) {
	switch {
	case math.IsNaN(x):
		e.buf.WriteString(`"NaN"`)
	case math.IsInf(x, 1):
		e.buf.WriteString(`"Infinity"`)
	case math.IsInf(x, -1):
		e.buf.WriteString(`"-Infinity"`)
	default:
		e.buf.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	}
}

func (e *encoder) writeArray(elem func(int) unimodel.Type, xs []any, path unimodel.Path) error {
	e.buf.WriteByte('[')
	for i, x := range xs {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		if err := e.writeValue(elem(i), x, path.Index(i)); err != nil {
			return err
		}
	}
	e.buf.WriteByte(']')
	return nil
}

func (e *encoder) writeMap(t *unimodel.MapType, v any, path unimodel.Path) error {
	if !jsonKey(t.Key()) {
		return e.fail(path, fmt.Sprintf("map key type %s cannot be a JSON object key", t.Key()), nil)
	}
	m, ok := v.(map[any]any)
	if !ok {
		return e.mismatch(path, t, v)
	}
	e.buf.WriteByte('{')
	for i, k := range unimodel.SortedKeys(m) {
		if err := t.Key().Validate(k); err != nil {
			return e.fail(path.Key(k), "invalid map key", err)
		}
		if i > 0 {
			e.buf.WriteByte(',')
		}
		key, ok := k.(string)
		if !ok {
			n, _ := asInt64(k)
			key = strconv.FormatInt(n, 10)
		}
		if err := e.writeString(key); err != nil {
			return err
		}
		e.buf.WriteByte(':')
		if err := e.writeValue(t.Value(), m[k], path.Key(k)); err != nil {
			return err
		}
	}
	e.buf.WriteByte('}')
	return nil
}

// jsonKey reports whether values of t can be written as object keys.
func jsonKey(t unimodel.Type) bool {
	return t.ID() == unimodel.TypeUTF8 || t.ID().IsInteger()
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}
