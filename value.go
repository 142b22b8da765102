package unimodel

import (
	"bytes"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Equal compares two values of type t. Sets compare without regard to order
// and JSON values by their canonical encoding.
func Equal(t Type, a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch t.ID() {
	case TypeBinary:
		x, ok1 := a.([]byte)
		y, ok2 := b.([]byte)
		return ok1 && ok2 && bytes.Equal(x, y)
	case TypeBigInt:
		x, ok1 := a.(*big.Int)
		y, ok2 := b.(*big.Int)
		return ok1 && ok2 && x.Cmp(y) == 0
	case TypeDouble:
		x, ok1 := a.(float64)
		y, ok2 := b.(float64)
		return ok1 && ok2 && (x == y || math.IsNaN(x) && math.IsNaN(y))
	case TypeJSON:
		x, err1 := json.Marshal(a)
		y, err2 := json.Marshal(b)
		return err1 == nil && err2 == nil && bytes.Equal(x, y)
	case TypeStruct:
		x, ok1 := a.(*Instance)
		y, ok2 := b.(*Instance)
		return ok1 && ok2 && x.Equal(y)
	case TypeList:
		return equalSeq(func(int) Type { return t.Params()[0] }, a, b)
	case TypeTuple:
		ps := t.Params()
		return equalSeq(func(i int) Type {
			if i < len(ps) {
				return ps[i]
			}
			return JSON
		}, a, b)
	case TypeSet:
		return equalSet(t.Params()[0], a, b)
	case TypeMap:
		x, ok1 := a.(map[any]any)
		y, ok2 := b.(map[any]any)
		if !ok1 || !ok2 || len(x) != len(y) {
			return false
		}
		vt := t.Params()[1]
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(vt, xv, yv) {
				return false
			}
		}
		return true
	}
	return scalarEqual(a, b)
}

func scalarEqual(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func equalSeq(elem func(int) Type, a, b any) bool {
	x, ok1 := a.([]any)
	y, ok2 := b.([]any)
	if !ok1 || !ok2 || len(x) != len(y) {
		return false
	}
	for i := range x {
		if !Equal(elem(i), x[i], y[i]) {
			return false
		}
	}
	return true
}

func equalSet(elem Type, a, b any) bool {
	x, ok1 := a.([]any)
	y, ok2 := b.([]any)
	if !ok1 || !ok2 || len(x) != len(y) {
		return false
	}
	used := make([]bool, len(y))
outer:
	for _, xv := range x {
		for j, yv := range y {
			if !used[j] && Equal(elem, xv, yv) {
				used[j] = true
				continue outer
			}
		}
		return false
	}
	return true
}

// SortedKeys returns the keys of m in a deterministic order: numbers
// numerically, strings lexically, UUIDs bytewise, mixed kinds by type name.
func SortedKeys(m map[any]any) []any {
	keys := make([]any, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
	return keys
}

func keyLess(a, b any) bool {
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return x < y
		}
	case float64:
		if y, ok := b.(float64); ok {
			return x < y
		}
	case bool:
		if y, ok := b.(bool); ok {
			return !x && y
		}
	case uuid.UUID:
		if y, ok := b.(uuid.UUID); ok {
			return bytes.Compare(x[:], y[:]) < 0
		}
	}
	if x, ok := asInt64(a); ok {
		if y, ok := asInt64(b); ok {
			return x < y
		}
	}
	ta, tb := fmt.Sprintf("%T", a), fmt.Sprintf("%T", b)
	if ta != tb {
		return ta < tb
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
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
	case int:
		return int64(x), true
	}
	return 0, false
}
