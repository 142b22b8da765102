package jsoncodec

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reoring/unimodel"
)

type decoder struct {
	ctx context.Context
	c   *Codec
	cur string // struct being read
}

func (d *decoder) fail(path unimodel.Path, raw any, msg string, err error) error {
	return &unimodel.JSONValidationError{Path: path, Value: raw, Struct: d.cur, Message: msg, Err: err}
}

func (d *decoder) readStruct(desc *unimodel.StructDescriptor, raw any, path unimodel.Path) (*unimodel.Instance, error) {
	if err := d.ctx.Err(); err != nil {
		return nil, err
	}
	desc = d.c.registry.Lookup(desc)
	prev := d.cur
	d.cur = desc.Name()
	defer func() { d.cur = prev }()

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, d.fail(path, raw, "expected object", nil)
	}
	lay, err := d.c.layout(desc)
	if err != nil {
		return nil, err
	}

	var unknown []string
	for k := range obj {
		if _, ok := lay.byName[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		if !d.c.skipUnknown {
			return nil, &unimodel.JSONValidationError{
				Path:    path,
				Struct:  desc.Name(),
				Code:    unimodel.CodeUnknownKey,
				Message: "unknown fields: " + strings.Join(unknown, ", "),
			}
		}
		d.c.log.Debug("skipping unknown properties",
			zap.String("struct", desc.Name()), zap.Strings("properties", unknown))
	}

	inst := desc.New()
	for _, p := range lay.props {
		rv, ok := obj[p.name]
		if !ok || rv == nil {
			continue
		}
		leaf := p.leaf()
		v, err := d.readValue(leaf.Type, rv, path.Field(p.name))
		if err != nil {
			return nil, err
		}
		if err := d.owner(inst, p.chain).SetTag(leaf.Tag, v); err != nil {
			return nil, err
		}
	}
	d.fillUnboxed(inst)

	if err := inst.Validate(); err != nil {
		return nil, &unimodel.JSONValidationError{Path: path, Struct: desc.Name(), Err: err}
	}
	return inst, nil
}

// owner returns the instance holding the last field of chain, creating the
// unboxed instances on the way.
func (d *decoder) owner(inst *unimodel.Instance, chain []*unimodel.Field) *unimodel.Instance {
	cur := inst
	for _, f := range chain[:len(chain)-1] {
		v, _ := cur.GetTag(f.Tag)
		sub, ok := v.(*unimodel.Instance)
		if !ok {
			sub = d.c.registry.Lookup(f.Type.(*unimodel.StructType).Descriptor()).New()
			_ = cur.SetTag(f.Tag, sub)
		}
		cur = sub
	}
	return cur
}

// fillUnboxed creates required unboxed instances none of whose properties
// were present.
func (d *decoder) fillUnboxed(inst *unimodel.Instance) {
	for _, f := range inst.Descriptor().Fields() {
		st, ok := f.Type.(*unimodel.StructType)
		if !ok || !f.Metadata.JSON.Unboxed {
			continue
		}
		v, set := inst.GetTag(f.Tag)
		sub, _ := v.(*unimodel.Instance)
		if !set {
			if !f.Required {
				continue
			}
			sub = d.c.registry.Lookup(st.Descriptor()).New()
			_ = inst.SetTag(f.Tag, sub)
		}
		if sub != nil {
			d.fillUnboxed(sub)
		}
	}
}

func (d *decoder) readValue(t unimodel.Type, raw any, path unimodel.Path) (any, error) {
	switch t.ID() {
	case unimodel.TypeBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, d.fail(path, raw, "expected boolean", nil)
		}
		return b, nil
	case unimodel.TypeI8, unimodel.TypeI16, unimodel.TypeI32, unimodel.TypeI64:
		n, ok := raw.(json.Number)
		if !ok {
			return nil, d.fail(path, raw, "expected integer", nil)
		}
		return d.parseInt(t, string(n), raw, path)
	case unimodel.TypeBigInt:
		var s string
		switch x := raw.(type) {
		case json.Number:
			s = string(x)
		case string:
			s = x
		}
		b, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, d.fail(path, raw, "expected integer", nil)
		}
		return b, nil
	case unimodel.TypeDouble:
		return d.parseDouble(raw, path)
	case unimodel.TypeUTF8:
		s, ok := raw.(string)
		if !ok {
			return nil, d.fail(path, raw, "expected string", nil)
		}
		return s, nil
	case unimodel.TypeBinary:
		s, ok := raw.(string)
		if !ok {
			return nil, d.fail(path, raw, "expected base64 string", nil)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, d.fail(path, raw, "invalid base64", err)
		}
		return b, nil
	case unimodel.TypeUUID:
		s, ok := raw.(string)
		if !ok {
			return nil, d.fail(path, raw, "expected UUID string", nil)
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, d.fail(path, raw, "invalid UUID", err)
		}
		return id, nil
	case unimodel.TypeJSON:
		return raw, nil
	case unimodel.TypeEnum:
		s, ok := raw.(string)
		if !ok {
			return nil, d.fail(path, raw, "expected enum name", nil)
		}
		key, ok := t.(*unimodel.EnumType).Key(s)
		if !ok {
			return nil, d.fail(path, raw, fmt.Sprintf("%q is not a member of %s", s, t), nil)
		}
		return key, nil
	case unimodel.TypeStruct:
		return d.readStruct(t.(*unimodel.StructType).Descriptor(), raw, path)
	case unimodel.TypeList, unimodel.TypeSet:
		xs, ok := raw.([]any)
		if !ok {
			return nil, d.fail(path, raw, "expected array", nil)
		}
		elem := t.Params()[0]
		out := make([]any, len(xs))
		for i, x := range xs {
			v, err := d.readValue(elem, x, path.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case unimodel.TypeTuple:
		elems := t.Params()
		xs, ok := raw.([]any)
		if !ok || len(xs) != len(elems) {
			return nil, d.fail(path, raw, fmt.Sprintf("expected array of %d elements", len(elems)), nil)
		}
		out := make([]any, len(xs))
		for i, x := range xs {
			v, err := d.readValue(elems[i], x, path.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case unimodel.TypeMap:
		return d.readMap(t.(*unimodel.MapType), raw, path)
	}
	return nil, d.fail(path, raw, "unsupported type "+t.String(), nil)
}

func (d *decoder) readMap(t *unimodel.MapType, raw any, path unimodel.Path) (any, error) {
	if !jsonKey(t.Key()) {
		return nil, &unimodel.SerializationError{
			Struct:  d.cur,
			Path:    path,
			Message: fmt.Sprintf("map key type %s cannot be a JSON object key", t.Key()),
		}
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, d.fail(path, raw, "expected object", nil)
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[any]any, len(obj))
	for _, k := range keys {
		var key any = k
		if t.Key().ID().IsInteger() {
			n, err := d.parseInt(t.Key(), k, k, path.Key(k))
			if err != nil {
				return nil, err
			}
			key = n
		}
		v, err := d.readValue(t.Value(), obj[k], path.Key(key))
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func (d *decoder) parseInt(t unimodel.Type, s string, raw any, path unimodel.Path) (any, error) {
	bits := map[unimodel.TypeID]int{
		unimodel.TypeI8: 8, unimodel.TypeI16: 16, unimodel.TypeI32: 32, unimodel.TypeI64: 64,
	}[t.ID()]
	n, err := strconv.ParseInt(s, 10, bits)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return nil, d.fail(path, raw, fmt.Sprintf("out of range for %s", t), err)
		}
		return nil, d.fail(path, raw, "expected integer", err)
	}
	switch bits {
	case 8:
		return int8(n), nil
	case 16:
		return int16(n), nil
	case 32:
		return int32(n), nil
	}
	return n, nil
}

func (d *decoder) parseDouble(raw any, path unimodel.Path) (any, error) {
	switch x := raw.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return nil, d.fail(path, raw, "expected number", err)
		}
		return f, nil
	case string:
		switch x {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
	}
	return nil, d.fail(path, raw, "expected number", nil)
}
