// Package rules provides reusable validators: field predicates such as
// Range and Pattern, and struct rules that relate several fields.
package rules

import (
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"unicode/utf8"

	"github.com/reoring/unimodel"
)

func fail(code, msg string, v any) error {
	return &unimodel.ValidationError{Code: code, Message: msg, Value: v}
}

// Range checks that a numeric value lies within [min, max]. It accepts the
// fixed width integers, *big.Int and float64.
func Range(min, max float64) unimodel.Validator {
	return unimodel.ValidatorFunc(func(v any) error {
		f, ok := number(v)
		if !ok {
			return fail(unimodel.CodeInvalidType, fmt.Sprintf("expected a number, got %T", v), v)
		}
		if f < min {
			return fail(unimodel.CodeTooSmall, fmt.Sprintf("must be >= %v", min), v)
		}
		if f > max {
			return fail(unimodel.CodeTooBig, fmt.Sprintf("must be <= %v", max), v)
		}
		return nil
	})
}

// MinLen checks the length of strings (in runes), binary values, sequences
// and maps.
func MinLen(n int) unimodel.Validator {
	return unimodel.ValidatorFunc(func(v any) error {
		l, ok := length(v)
		if !ok {
			return fail(unimodel.CodeInvalidType, fmt.Sprintf("%T has no length", v), v)
		}
		if l < n {
			return fail(unimodel.CodeTooShort, fmt.Sprintf("length must be >= %d", n), v)
		}
		return nil
	})
}

func MaxLen(n int) unimodel.Validator {
	return unimodel.ValidatorFunc(func(v any) error {
		l, ok := length(v)
		if !ok {
			return fail(unimodel.CodeInvalidType, fmt.Sprintf("%T has no length", v), v)
		}
		if l > n {
			return fail(unimodel.CodeTooLong, fmt.Sprintf("length must be <= %d", n), v)
		}
		return nil
	})
}

// NonEmpty is MinLen(1).
func NonEmpty() unimodel.Validator { return MinLen(1) }

// Pattern checks strings against a regular expression. It panics if expr
// does not compile.
func Pattern(expr string) unimodel.Validator {
	re := regexp.MustCompile(expr)
	return unimodel.ValidatorFunc(func(v any) error {
		s, ok := v.(string)
		if !ok {
			return fail(unimodel.CodeInvalidType, fmt.Sprintf("expected string, got %T", v), v)
		}
		if !re.MatchString(s) {
			return fail(unimodel.CodePattern, fmt.Sprintf("must match %s", expr), v)
		}
		return nil
	})
}

// OneOf checks that the value equals one of allowed.
func OneOf(allowed ...any) unimodel.Validator {
	return unimodel.ValidatorFunc(func(v any) error {
		for _, a := range allowed {
			if reflect.DeepEqual(a, v) {
				return nil
			}
		}
		return fail(unimodel.CodeInvalidEnum, fmt.Sprintf("must be one of %v", allowed), v)
	})
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case *big.Int:
		if x == nil {
			return 0, false
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return f, true
	}
	return 0, false
}

func length(v any) (int, bool) {
	switch x := v.(type) {
	case string:
		return utf8.RuneCountInString(x), true
	case []byte:
		return len(x), true
	case []any:
		return len(x), true
	case map[any]any:
		return len(x), true
	}
	return 0, false
}
