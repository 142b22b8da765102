package unimodel

import (
	"fmt"
	"strconv"
	"strings"
)

type segmentKind uint8

const (
	segField segmentKind = iota
	segIndex
	segKey
)

// PathSegment is one step of a Path: a field or property name, a list index
// or a map key.
type PathSegment struct {
	Name  string
	Index int
	Key   any
	kind  segmentKind
}

// FieldSegment names a struct field or JSON property.
func FieldSegment(name string) PathSegment { return PathSegment{Name: name, kind: segField} }

// IndexSegment addresses a list, set or tuple element.
func IndexSegment(i int) PathSegment { return PathSegment{Index: i, kind: segIndex} }

// KeySegment addresses a map entry.
func KeySegment(k any) PathSegment { return PathSegment{Key: k, kind: segKey} }

// Path locates a value inside an instance or a JSON document. It renders as
// u[0].name or m["k"]; Pointer gives the RFC 6901 form.
type Path []PathSegment

// Field returns a copy of p extended with a field segment.
func (p Path) Field(name string) Path { return p.with(FieldSegment(name)) }

// Index returns a copy of p extended with an index segment.
func (p Path) Index(i int) Path { return p.with(IndexSegment(i)) }

// Key returns a copy of p extended with a map key segment.
func (p Path) Key(k any) Path { return p.with(KeySegment(k)) }

func (p Path) with(seg PathSegment) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}

func (p Path) String() string {
	b := &strings.Builder{}
	for i, s := range p {
		switch s.kind {
		case segField:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(s.Name)
		case segIndex:
			fmt.Fprintf(b, "[%d]", s.Index)
		case segKey:
			if str, ok := s.Key.(string); ok {
				fmt.Fprintf(b, "[%s]", strconv.Quote(str))
			} else {
				fmt.Fprintf(b, "[%v]", s.Key)
			}
		}
	}
	return b.String()
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// Pointer renders p as a JSON Pointer.
func (p Path) Pointer() string {
	if len(p) == 0 {
		return "/"
	}
	b := &strings.Builder{}
	for _, s := range p {
		b.WriteByte('/')
		switch s.kind {
		case segField:
			b.WriteString(pointerEscaper.Replace(s.Name))
		case segIndex:
			b.WriteString(strconv.Itoa(s.Index))
		case segKey:
			b.WriteString(pointerEscaper.Replace(fmt.Sprint(s.Key)))
		}
	}
	return b.String()
}
