package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// DuplicateStrictness controls duplicate key handling.
type DuplicateStrictness int

const (
	DupIgnore DuplicateStrictness = iota
	DupError
)

// EnforceOptions controls runtime enforcement behavior.
type EnforceOptions struct {
	OnDuplicate DuplicateStrictness
	MaxDepth    int
	MaxBytes    int64
}

// IssueError reports an enforcement failure at a location inside the
// document. Path elements are object keys (string) or array indexes (int).
type IssueError struct {
	Code    string
	Path    []any
	Message string
}

func (e *IssueError) Error() string {
	if len(e.Path) == 0 {
		return e.Message
	}
	parts := make([]string, len(e.Path))
	for i, p := range e.Path {
		parts[i] = fmt.Sprint(p)
	}
	return e.Message + " at /" + strings.Join(parts, "/")
}

type containerKind int

const (
	kindObject containerKind = iota
	kindArray
)

type frame struct {
	kind      containerKind
	keys      map[string]struct{}
	key       string // last key read in an object
	nextIndex int
}

// WrapWithEnforcement returns a TokenSource that enforces duplicate key policy,
// maximum nesting depth, and maximum consumed bytes.
func WrapWithEnforcement(inner TokenSource, opt EnforceOptions) TokenSource {
	return &enforcingTokenSource{inner: inner, opt: opt}
}

type enforcingTokenSource struct {
	inner TokenSource
	opt   EnforceOptions
	stack []frame
}

func (e *enforcingTokenSource) NextToken() (Token, error) {
	tok, err := e.inner.NextToken()
	if err != nil {
		return Token{}, err
	}

	switch tok.Kind {
	case KindBeginObject, KindBeginArray:
		path := e.valuePath()
		f := frame{kind: kindArray}
		if tok.Kind == KindBeginObject {
			f = frame{kind: kindObject, keys: map[string]struct{}{}}
		}
		e.stack = append(e.stack, f)
		if e.opt.MaxDepth > 0 && len(e.stack) > e.opt.MaxDepth {
			return Token{}, &IssueError{Code: "parse_error", Path: path, Message: "max depth exceeded"}
		}
	case KindEndObject, KindEndArray:
		if n := len(e.stack); n > 0 {
			e.stack = e.stack[:n-1]
		}
	case KindKey:
		if n := len(e.stack); n > 0 && e.stack[n-1].kind == kindObject {
			top := &e.stack[n-1]
			if _, dup := top.keys[tok.String]; dup && e.opt.OnDuplicate == DupError {
				return Token{}, &IssueError{
					Code:    "duplicate_key",
					Path:    append(e.containerPath(), tok.String),
					Message: "key " + strconv.Quote(tok.String) + " duplicated",
				}
			}
			top.keys[tok.String] = struct{}{}
			top.key = tok.String
		}
	default:
		e.valuePath()
	}

	if e.opt.MaxBytes > 0 {
		if off := e.Location(); off >= 0 && off > e.opt.MaxBytes {
			return Token{}, &IssueError{Code: "truncated", Path: e.containerPath(), Message: "max bytes exceeded"}
		}
	}
	return tok, nil
}

// valuePath returns the location of the value about to be read and advances
// the array index when inside an array.
func (e *enforcingTokenSource) valuePath() []any {
	path := e.containerPath()
	if n := len(e.stack); n > 0 {
		top := &e.stack[n-1]
		if top.kind == kindArray {
			path = append(path, top.nextIndex)
			top.nextIndex++
		} else {
			path = append(path, top.key)
		}
	}
	return path
}

// containerPath is the location of the innermost open container.
func (e *enforcingTokenSource) containerPath() []any {
	if len(e.stack) <= 1 {
		return []any{}
	}
	path := make([]any, 0, len(e.stack))
	for _, f := range e.stack[:len(e.stack)-1] {
		if f.kind == kindArray {
			path = append(path, f.nextIndex-1)
		} else {
			path = append(path, f.key)
		}
	}
	return path
}

func (e *enforcingTokenSource) Location() int64 { return e.inner.Location() }
