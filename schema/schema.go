// Package schema converts struct descriptors to and from plain data.
//
// A Document lists struct definitions whose fields refer to types by name,
// so it can be stored as YAML or JSON and compiled back into descriptors.
// Validators are code and do not survive the conversion.
package schema

import (
	"fmt"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/reoring/unimodel"
)

// Document is a set of struct definitions.
type Document struct {
	Structs []StructDef `json:"structs" yaml:"structs"`
}

// StructDef describes one struct. Fields lists the fields the struct
// declares itself; inherited fields come from Extends.
type StructDef struct {
	Name    string     `json:"name" yaml:"name"`
	Union   bool       `json:"union,omitempty" yaml:"union,omitempty"`
	Extends []string   `json:"extends,omitempty" yaml:"extends,omitempty"`
	Fields  []FieldDef `json:"fields" yaml:"fields"`
}

type FieldDef struct {
	Name        string                `json:"name" yaml:"name"`
	WireName    string                `json:"wireName,omitempty" yaml:"wireName,omitempty"`
	Tag         int16                 `json:"tag,omitempty" yaml:"tag,omitempty"`
	Required    bool                  `json:"required,omitempty" yaml:"required,omitempty"`
	Default     any                   `json:"default,omitempty" yaml:"default,omitempty"`
	Type        TypeRef               `json:"type" yaml:"type"`
	JSON        *unimodel.JSONOptions `json:"json,omitempty" yaml:"json,omitempty"`
	Annotations map[string]string     `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// TypeRef names a type. Kind is a primitive name ("i32", "string", ...) or
// one of enum, struct, list, set, map and tuple. Name is the struct or enum
// name; Values holds the members of an enum; Params the type parameters of
// containers.
type TypeRef struct {
	Kind   string               `json:"kind" yaml:"kind"`
	Name   string               `json:"name,omitempty" yaml:"name,omitempty"`
	Values []unimodel.EnumValue `json:"values,omitempty" yaml:"values,omitempty"`
	Params []TypeRef            `json:"params,omitempty" yaml:"params,omitempty"`
}

func (t TypeRef) String() string {
	if t.Name != "" {
		return t.Name
	}
	if len(t.Params) == 0 {
		return t.Kind
	}
	s := t.Kind + "<"
	for i, p := range t.Params {
		if i > 0 {
			s += ","
		}
		s += p.String()
	}
	return s + ">"
}

// ParseYAML decodes a Document from YAML.
func ParseYAML(data []byte) (*Document, error) {
	doc := &Document{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("schema: yaml: %w", err)
	}
	return doc, nil
}

// ParseJSON decodes a Document from JSON.
func ParseJSON(data []byte) (*Document, error) {
	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("schema: json: %w", err)
	}
	return doc, nil
}

func (d *Document) YAML() ([]byte, error) { return yaml.Marshal(d) }

func (d *Document) JSON() ([]byte, error) { return json.MarshalIndent(d, "", "  ") }
