package unimodel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reoring/unimodel/i18n"
)

// Issue codes.
const (
	CodeInvalidType      = "invalid_type"
	CodeRequired         = "required"
	CodeUnknownKey       = "unknown_key"
	CodeDuplicateKey     = "duplicate_key"
	CodeDuplicateField   = "duplicate_field"
	CodeDuplicateElement = "duplicate_element"
	CodeFieldMerge       = "field_merge"
	CodeTooSmall         = "too_small"
	CodeTooBig           = "too_big"
	CodeTooShort         = "too_short"
	CodeTooLong          = "too_long"
	CodePattern          = "pattern"
	CodeInvalidEnum      = "invalid_enum"
	CodeInvalidFormat    = "invalid_format"
	CodeUnionAmbiguous   = "union_ambiguous"
	CodeParseError       = "parse_error"
	CodeOverflow         = "overflow"
	CodeTruncated        = "truncated"
	CodeInvalid          = "invalid"
	CodeUnsupported      = "unsupported"
	CodeProtocol         = "protocol_error"
)

// Issue is the flat rendering of a failure: a JSON Pointer, a code and a message.
type Issue struct {
	Path    string // JSON Pointer (for example: /items/2/price).
	Code    string
	Message string
	Cause   error
	// Params carries structured context such as the struct and field names.
	Params map[string]any
}

// Issues is a collection of issues that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

type issuer interface{ Issues() Issues }

// IssuesOf renders any error returned by this module as Issues. Joined errors
// are flattened; unknown errors become a single issue at the root.
func IssuesOf(err error) Issues {
	if err == nil {
		return nil
	}
	if iss, ok := AsIssues(err); ok {
		return iss
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out Issues
		for _, e := range j.Unwrap() {
			out = AppendIssues(out, IssuesOf(e)...)
		}
		return out
	}
	var is issuer
	if errors.As(err, &is) {
		return is.Issues()
	}
	return Issues{{Path: "/", Code: CodeInvalid, Message: err.Error(), Cause: err}}
}

// DuplicateFieldError reports two fields sharing a tag or a name after merge.
type DuplicateFieldError struct {
	Struct string
	Tag    int16  // set for tag collisions
	Name   string // set for name collisions
	First  string
	Second string
}

func (e *DuplicateFieldError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("unimodel: struct %s: duplicate field name %q", e.Struct, e.Name)
	}
	return fmt.Sprintf("unimodel: struct %s: fields %s and %s share tag %d", e.Struct, e.First, e.Second, e.Tag)
}

func (e *DuplicateFieldError) Issues() Issues {
	return Issues{{Path: "/", Code: CodeDuplicateField, Message: e.Error(), Params: map[string]any{"struct": e.Struct, "tag": e.Tag, "name": e.Name}}}
}

// FieldMergeError names both sides of an illegal field merge.
type FieldMergeError struct {
	Original *Field
	Merge    *Field
}

func (e *FieldMergeError) Error() string {
	return fmt.Sprintf("unimodel: cannot merge field %s with %s", e.Original, e.Merge)
}

func (e *FieldMergeError) Issues() Issues {
	return Issues{{Path: "/" + e.Original.Name, Code: CodeFieldMerge, Message: e.Error()}}
}

// ValueTypeError reports a value whose native representation does not match
// its declared type. It is usually found wrapped in a ValidationError.
type ValueTypeError struct {
	Type  Type
	Value any
}

func (e *ValueTypeError) Error() string {
	return fmt.Sprintf("expected %s, got %T", e.Type, e.Value)
}

// ValidationError is a value, field or struct level validation failure.
// Path is relative to the instance Validate was called on.
type ValidationError struct {
	Struct  string
	Field   string
	Tag     int16
	Path    Path
	Code    string
	Message string
	Value   any
	Err     error
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = i18n.T(e.Code, nil)
	}
	b := &strings.Builder{}
	if e.Struct != "" {
		b.WriteString(e.Struct)
		b.WriteString(": ")
	}
	if len(e.Path) > 0 {
		b.WriteString(e.Path.String())
		b.WriteString(": ")
	}
	b.WriteString(msg)
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Issues() Issues {
	msg := e.Message
	if msg == "" {
		msg = i18n.T(e.Code, nil)
	}
	return Issues{{
		Path:    e.Path.Pointer(),
		Code:    e.Code,
		Message: msg,
		Cause:   e.Err,
		Params:  map[string]any{"struct": e.Struct, "field": e.Field, "tag": e.Tag},
	}}
}

// ReadValidationError is returned by wire decoding when a struct fails
// validation after it was fully read.
type ReadValidationError struct {
	Struct string
	Fields []string
	Err    error
}

func (e *ReadValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("unimodel: read %s: %v", e.Struct, e.Err)
	}
	return fmt.Sprintf("unimodel: read %s: invalid fields %s: %v", e.Struct, strings.Join(e.Fields, ", "), e.Err)
}

func (e *ReadValidationError) Unwrap() error { return e.Err }

func (e *ReadValidationError) Issues() Issues {
	if iss := IssuesOf(e.Err); len(iss) > 0 {
		return iss
	}
	return Issues{{Path: "/", Code: CodeInvalid, Message: e.Error()}}
}

// JSONValidationError locates a JSON decoding failure: the JSON path, the raw
// value found there and the struct being read.
type JSONValidationError struct {
	Path   Path
	Value  any
	Struct string
	// Code is the issue code; CodeInvalid when empty.
	Code    string
	Message string
	Err     error
}

func (e *JSONValidationError) Error() string {
	b := &strings.Builder{}
	b.WriteString("unimodel: json")
	if e.Struct != "" {
		b.WriteString(" ")
		b.WriteString(e.Struct)
	}
	if len(e.Path) > 0 {
		fmt.Fprintf(b, " at %s", e.Path)
	}
	b.WriteString(": ")
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	}
	if e.Value != nil {
		fmt.Fprintf(b, " (value %v)", e.Value)
	}
	return b.String()
}

func (e *JSONValidationError) Unwrap() error { return e.Err }

func (e *JSONValidationError) Issues() Issues {
	var inner *ValidationError
	if errors.As(e.Err, &inner) {
		iss := inner.Issues()
		iss[0].Path = joinPointers(e.Path.Pointer(), iss[0].Path)
		return iss
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	code := e.Code
	if code == "" {
		code = CodeInvalid
	}
	return Issues{{Path: e.Path.Pointer(), Code: code, Message: msg, Cause: e.Err, Params: map[string]any{"struct": e.Struct, "value": e.Value}}}
}

// SerializationError is an encode-time structural violation.
type SerializationError struct {
	Struct  string
	Field   string
	Path    Path
	Message string
	Err     error
}

func (e *SerializationError) Error() string {
	b := &strings.Builder{}
	b.WriteString("unimodel: serialize")
	if e.Struct != "" {
		b.WriteString(" ")
		b.WriteString(e.Struct)
	}
	if e.Field != "" {
		b.WriteString(".")
		b.WriteString(e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		if e.Message != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *SerializationError) Unwrap() error { return e.Err }

func (e *SerializationError) Issues() Issues {
	return Issues{{Path: e.Path.Pointer(), Code: CodeUnsupported, Message: e.Error(), Cause: e.Err}}
}

// ProtocolError reports malformed or truncated wire bytes.
type ProtocolError struct {
	Protocol string
	Err      error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unimodel: %s protocol: %v", e.Protocol, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Issues() Issues {
	return Issues{{Path: "/", Code: CodeProtocol, Message: e.Error(), Cause: e.Err}}
}

// typeMismatch builds the ValidationError wrapping a ValueTypeError.
func typeMismatch(t Type, v any) error {
	vte := &ValueTypeError{Type: t, Value: v}
	return &ValidationError{Code: CodeInvalidType, Message: vte.Error(), Value: v, Err: vte}
}

// prefixPath prepends seg to the path of a ValidationError, wrapping other
// errors first.
func prefixPath(err error, seg PathSegment) error {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return &ValidationError{Path: Path{seg}, Code: CodeInvalid, Message: err.Error(), Err: err}
	}
	cp := *ve
	cp.Path = append(Path{seg}, ve.Path...)
	return &cp
}

func joinPointers(base, rel string) string {
	if base == "/" || base == "" {
		return rel
	}
	if rel == "/" || rel == "" {
		return base
	}
	return base + rel
}
