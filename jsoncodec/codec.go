// Package jsoncodec encodes struct instances as plain JSON objects.
//
// It is independent of the Thrift wire formats. Properties are written in
// field declaration order under the field's JSON property name; unboxed
// struct fields are flattened into their parent; enums are written by name,
// binary as base64 and tuples as arrays. Decoding tracks the JSON path of
// every value so failures name the exact location, e.g. "u[0]".
package jsoncodec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/reoring/unimodel"
	eng "github.com/reoring/unimodel/internal/engine"
	"github.com/reoring/unimodel/source/gojson"
)

// DuplicateKeys selects how repeated object keys are treated on read.
type DuplicateKeys string

const (
	DuplicateError  DuplicateKeys = "error"
	DuplicateIgnore DuplicateKeys = "ignore" // last value wins
)

// DefaultMaxDepth bounds nesting when Options.MaxDepth is zero.
const DefaultMaxDepth = 512

// Options configures a Codec. The zero value skips unknown properties,
// rejects duplicate keys and does not validate before writing.
type Options struct {
	// SkipUnknownFields ignores properties no field maps to. Defaults to true.
	SkipUnknownFields   *bool         `json:"skipUnknownFields,omitempty" yaml:"skipUnknownFields,omitempty"`
	ValidateBeforeWrite bool          `json:"validateBeforeWrite,omitempty" yaml:"validateBeforeWrite,omitempty"`
	DuplicateKeys       DuplicateKeys `json:"duplicateKeys,omitempty" yaml:"duplicateKeys,omitempty"`
	// MaxDepth limits nesting on read and write; negative disables the limit.
	MaxDepth int `json:"maxDepth,omitempty" yaml:"maxDepth,omitempty"`
	// MaxBytes limits the input size on read; zero disables the limit.
	MaxBytes int64 `json:"maxBytes,omitempty" yaml:"maxBytes,omitempty"`

	Registry *unimodel.ModelRegistry `json:"-" yaml:"-"`
	Logger   *zap.Logger             `json:"-" yaml:"-"`
}

// Bool returns a pointer to b, for Options.SkipUnknownFields.
func Bool(b bool) *bool { return &b }

// Codec is safe for concurrent use.
type Codec struct {
	skipUnknown bool
	validate    bool
	maxDepth    int
	enforce     eng.EnforceOptions
	registry    *unimodel.ModelRegistry
	log         *zap.Logger

	layouts sync.Map // *unimodel.StructDescriptor -> *layout
}

func New(opt Options) *Codec {
	c := &Codec{
		skipUnknown: opt.SkipUnknownFields == nil || *opt.SkipUnknownFields,
		validate:    opt.ValidateBeforeWrite,
		maxDepth:    opt.MaxDepth,
		registry:    opt.Registry,
		log:         opt.Logger,
	}
	if c.maxDepth == 0 {
		c.maxDepth = DefaultMaxDepth
	}
	if c.log == nil {
		c.log = unimodel.Logger()
	}
	c.enforce = eng.EnforceOptions{OnDuplicate: eng.DupError, MaxBytes: opt.MaxBytes}
	if opt.DuplicateKeys == DuplicateIgnore {
		c.enforce.OnDuplicate = eng.DupIgnore
	}
	if c.maxDepth > 0 {
		c.enforce.MaxDepth = c.maxDepth
	}
	return c
}

// Marshal encodes inst as one JSON object.
func (c *Codec) Marshal(ctx context.Context, inst *unimodel.Instance) ([]byte, error) {
	if inst == nil {
		return nil, &unimodel.SerializationError{Message: "nil instance"}
	}
	if c.validate {
		if err := inst.Validate(); err != nil {
			return nil, err
		}
	}
	e := &encoder{ctx: ctx, c: c}
	if err := e.writeStruct(inst, nil); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

// Encode writes the JSON encoding of inst to w.
func (c *Codec) Encode(ctx context.Context, w io.Writer, inst *unimodel.Instance) error {
	b, err := c.Marshal(ctx, inst)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Unmarshal decodes one JSON object into an instance of the implementation
// registered for desc.
func (c *Codec) Unmarshal(ctx context.Context, desc *unimodel.StructDescriptor, data []byte) (*unimodel.Instance, error) {
	return c.decode(ctx, desc, gojson.NewBytes(data))
}

// Decode reads one JSON object from r.
func (c *Codec) Decode(ctx context.Context, desc *unimodel.StructDescriptor, r io.Reader) (*unimodel.Instance, error) {
	return c.decode(ctx, desc, gojson.NewReader(r))
}

func (c *Codec) decode(ctx context.Context, desc *unimodel.StructDescriptor, src eng.TokenSource) (*unimodel.Instance, error) {
	if desc == nil || !desc.Defined() {
		return nil, fmt.Errorf("jsoncodec: struct %s is not defined", desc.Name())
	}
	raw, err := eng.DecodeDocument(eng.WrapWithEnforcement(src, c.enforce))
	if err != nil {
		return nil, sourceError(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := &decoder{ctx: ctx, c: c}
	return d.readStruct(desc, raw, nil)
}

func sourceError(err error) error {
	var ie *eng.IssueError
	if errors.As(err, &ie) {
		path := make(unimodel.Path, 0, len(ie.Path))
		for _, p := range ie.Path {
			switch x := p.(type) {
			case int:
				path = path.Index(x)
			case string:
				path = path.Field(x)
			}
		}
		return &unimodel.JSONValidationError{Path: path, Code: ie.Code, Message: ie.Message, Err: err}
	}
	return &unimodel.ProtocolError{Protocol: "json", Err: err}
}
