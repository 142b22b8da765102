package rules

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/reoring/unimodel"
)

// Op defines simple comparison operators for If(...).Then(...)
type Op int

const (
	Eq Op = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

// Rule is a struct-level check.
type Rule = unimodel.StructValidator

// Conditional composes conditional execution of rules.
type Conditional struct {
	path string
	op   Op
	want any
	all  []Conditional // composite AND
	any  []Conditional // composite OR
}

// If builds a conditional that evaluates a path against a value using an operator.
// The path is a JSON Pointer over field names, e.g. "/status" or "/items/0/kind".
func If(path string, op Op, want any) Conditional {
	return Conditional{path: normalizePath(path), op: op, want: want}
}

// IfAll builds a conditional that requires all conditions to hold.
func IfAll(conds ...Conditional) Conditional { return Conditional{all: conds} }

// IfAny builds a conditional that requires any condition to hold.
func IfAny(conds ...Conditional) Conditional { return Conditional{any: conds} }

func (c Conditional) And(others ...Conditional) Conditional {
	return IfAll(append([]Conditional{c}, others...)...)
}

func (c Conditional) Or(others ...Conditional) Conditional {
	return IfAny(append([]Conditional{c}, others...)...)
}

// Then attaches rules to run when the condition is satisfied. The first
// failing rule is reported.
func (c Conditional) Then(rules ...Rule) Rule {
	return unimodel.StructValidatorFunc(func(inst *unimodel.Instance) error {
		if !c.eval(inst) {
			return nil
		}
		return And(rules...).ValidateStruct(inst)
	})
}

// Require checks that the field at path is set.
func Require(path string) Rule {
	p := normalizePath(path)
	return unimodel.StructValidatorFunc(func(inst *unimodel.Instance) error {
		if _, ok := valueAt(inst, p); ok {
			return nil
		}
		return &unimodel.ValidationError{Path: pathOf(p), Code: unimodel.CodeRequired, Message: "required"}
	})
}

// AtLeastOne ensures the collection at collectionPath has at least 1 element.
func AtLeastOne(collectionPath string) Rule {
	p := normalizePath(collectionPath)
	return unimodel.StructValidatorFunc(func(inst *unimodel.Instance) error {
		val, ok := valueAt(inst, p)
		if !ok {
			return nil
		}
		if n, ok := length(val); ok && n == 0 {
			return &unimodel.ValidationError{
				Path:    pathOf(p),
				Code:    unimodel.CodeTooShort,
				Message: "at least 1 item is required",
				Value:   val,
			}
		}
		return nil
	})
}

// UniqueBy ensures elements in a collection have unique key values.
// collectionPath points to a list of structs and keyPath is relative to
// each element (e.g. "sku" or "/sku").
func UniqueBy(collectionPath, keyPath string) Rule {
	cp := normalizePath(collectionPath)
	kp := strings.TrimPrefix(keyPath, "/")
	return unimodel.StructValidatorFunc(func(inst *unimodel.Instance) error {
		val, ok := valueAt(inst, cp)
		if !ok {
			return nil
		}
		xs, ok := val.([]any)
		if !ok {
			return nil
		}
		seen := map[string]int{}
		for i, elem := range xs {
			kv, ok := valueWithin(elem, kp)
			if !ok {
				continue
			}
			key := fmt.Sprint(kv)
			if j, dup := seen[key]; dup {
				path := append(pathOf(cp), unimodel.IndexSegment(i))
				path = append(path, pathOf("/"+kp)...)
				return &unimodel.ValidationError{
					Path:    path,
					Code:    unimodel.CodeDuplicateElement,
					Message: fmt.Sprintf("duplicate value %s (first at %d)", key, j),
					Value:   kv,
				}
			}
			seen[key] = i
		}
		return nil
	})
}

// And runs every rule and reports the first failure.
func And(rules ...Rule) Rule {
	return unimodel.StructValidatorFunc(func(inst *unimodel.Instance) error {
		for _, r := range rules {
			if r == nil {
				continue
			}
			if err := r.ValidateStruct(inst); err != nil {
				return err
			}
		}
		return nil
	})
}

// Or succeeds if any rule passes; otherwise it reports the first failure.
func Or(rules ...Rule) Rule {
	return unimodel.StructValidatorFunc(func(inst *unimodel.Instance) error {
		var first error
		for _, r := range rules {
			if r == nil {
				continue
			}
			err := r.ValidateStruct(inst)
			if err == nil {
				return nil
			}
			if first == nil {
				first = err
			}
		}
		return first
	})
}

// ------- helpers -------

func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	if p[0] != '/' {
		return "/" + p
	}
	return p
}

func pathOf(pointer string) unimodel.Path {
	var path unimodel.Path
	for _, seg := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		if seg == "" {
			continue
		}
		if i, err := strconv.Atoi(seg); err == nil {
			path = path.Index(i)
			continue
		}
		path = path.Field(seg)
	}
	return path
}

func (c Conditional) eval(inst *unimodel.Instance) bool {
	if len(c.all) > 0 {
		for _, it := range c.all {
			if !it.eval(inst) {
				return false
			}
		}
		return true
	}
	if len(c.any) > 0 {
		for _, it := range c.any {
			if it.eval(inst) {
				return true
			}
		}
		return false
	}
	cur, ok := valueAt(inst, c.path)
	if !ok {
		return false
	}
	return compare(cur, c.op, c.want)
}

func valueAt(inst *unimodel.Instance, pointer string) (any, bool) {
	return valueWithin(inst, strings.TrimPrefix(pointer, "/"))
}

// valueWithin navigates instances by field name, sequences by index and
// maps by the printed key.
func valueWithin(v any, rel string) (any, bool) {
	if rel == "" {
		return v, true
	}
	cur := v
	for _, seg := range strings.Split(rel, "/") {
		switch x := cur.(type) {
		case *unimodel.Instance:
			next, ok := x.Get(seg)
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(x) {
				return nil, false
			}
			cur = x[i]
		case map[any]any:
			found := false
			for k, mv := range x {
				if fmt.Sprint(k) == seg {
					cur, found = mv, true
					break
				}
			}
			if !found {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return cur, true
}

func compare(cur any, op Op, want any) bool {
	a, aok := number(cur)
	b, bok := number(want)
	numeric := aok && bok
	switch op {
	case Eq:
		return (numeric && a == b) || reflect.DeepEqual(cur, want)
	case Ne:
		return !((numeric && a == b) || reflect.DeepEqual(cur, want))
	}
	if !numeric {
		return false
	}
	switch op {
	case Lt:
		return a < b
	case Le:
		return a <= b
	case Gt:
		return a > b
	case Ge:
		return a >= b
	}
	return false
}
