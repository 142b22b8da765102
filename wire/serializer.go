package wire

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/apache/thrift/lib/go/thrift"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reoring/unimodel"
	eng "github.com/reoring/unimodel/internal/engine"
	"github.com/reoring/unimodel/source/gojson"
)

// maxPrealloc caps capacity hints taken from untrusted container headers.
const maxPrealloc = 4096

// DefaultMaxDepth bounds struct and container nesting when Options.MaxDepth
// is zero.
const DefaultMaxDepth = 512

// ErrMaxDepth is reported when nesting exceeds the configured depth.
var ErrMaxDepth = errors.New("max depth exceeded")

// Options configures a Serializer. The zero value writes Thrift binary and
// does not validate before writing.
type Options struct {
	Protocol            Protocol `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	ValidateBeforeWrite bool     `json:"validateBeforeWrite,omitempty" yaml:"validateBeforeWrite,omitempty"`
	// MaxDepth limits nesting of structs and containers; negative disables it.
	MaxDepth int `json:"maxDepth,omitempty" yaml:"maxDepth,omitempty"`

	Registry *unimodel.ModelRegistry `json:"-" yaml:"-"`
	// Config carries Thrift limits such as MaxMessageSize.
	Config *thrift.TConfiguration `json:"-" yaml:"-"`
	// Resolver shares plans between serializers; one is created when nil.
	Resolver *Resolver   `json:"-" yaml:"-"`
	Logger   *zap.Logger `json:"-" yaml:"-"`
}

// Serializer encodes instances with one Thrift protocol. It is safe for
// concurrent use.
type Serializer struct {
	protocol Protocol
	factory  thrift.TProtocolFactory
	resolver *Resolver
	validate bool
	maxDepth int
	log      *zap.Logger
}

func NewSerializer(opt Options) (*Serializer, error) {
	if opt.Protocol == "" {
		opt.Protocol = Binary
	}
	factory, err := opt.Protocol.Factory(opt.Config)
	if err != nil {
		return nil, err
	}
	log := opt.Logger
	if log == nil {
		log = unimodel.Logger()
	}
	res := opt.Resolver
	if res == nil {
		res = NewResolver(opt.Registry, log)
	}
	depth := opt.MaxDepth
	if depth == 0 {
		depth = DefaultMaxDepth
	}
	return &Serializer{
		protocol: opt.Protocol,
		factory:  factory,
		resolver: res,
		validate: opt.ValidateBeforeWrite,
		maxDepth: depth,
		log:      log,
	}, nil
}

func (s *Serializer) Protocol() Protocol  { return s.protocol }
func (s *Serializer) Resolver() *Resolver { return s.resolver }

// Serialize encodes inst as one struct.
func (s *Serializer) Serialize(ctx context.Context, inst *unimodel.Instance) ([]byte, error) {
	buf := thrift.NewTMemoryBuffer()
	p := s.factory.GetProtocol(buf)
	if err := s.Write(ctx, p, inst); err != nil {
		return nil, err
	}
	if err := p.Flush(ctx); err != nil {
		return nil, s.protoErr(err)
	}
	return append([]byte(nil), buf.Bytes()...), nil
}

// Deserialize decodes one struct of type desc, instantiating the registered
// implementation.
func (s *Serializer) Deserialize(ctx context.Context, desc *unimodel.StructDescriptor, data []byte) (*unimodel.Instance, error) {
	buf := thrift.NewTMemoryBufferLen(len(data))
	if _, err := buf.Write(data); err != nil {
		return nil, s.protoErr(err)
	}
	return s.Read(ctx, s.factory.GetProtocol(buf), desc)
}

// Write encodes inst onto an existing protocol.
func (s *Serializer) Write(ctx context.Context, p thrift.TProtocol, inst *unimodel.Instance) error {
	if inst == nil {
		return &unimodel.SerializationError{Message: "nil instance"}
	}
	if s.validate {
		if err := inst.Validate(); err != nil {
			return err
		}
	}
	spec, err := s.resolver.Resolve(inst.Descriptor())
	if err != nil {
		return err
	}
	w := &writer{ctx: ctx, p: p, s: s}
	return w.writeStruct(spec, inst, nil)
}

// Read decodes one struct of type desc from an existing protocol.
func (s *Serializer) Read(ctx context.Context, p thrift.TProtocol, desc *unimodel.StructDescriptor) (*unimodel.Instance, error) {
	spec, err := s.resolver.Resolve(desc)
	if err != nil {
		return nil, err
	}
	r := &reader{ctx: ctx, p: p, s: s}
	return r.readStruct(spec)
}

func (s *Serializer) protoErr(err error) error {
	var (
		pe *unimodel.ProtocolError
		re *unimodel.ReadValidationError
		se *unimodel.SerializationError
	)
	if errors.As(err, &pe) || errors.As(err, &re) || errors.As(err, &se) {
		return err
	}
	return &unimodel.ProtocolError{Protocol: string(s.protocol), Err: err}
}

type writer struct {
	ctx   context.Context
	p     thrift.TProtocol
	s     *Serializer
	cur   string // struct being written
	depth int
}

func (w *writer) enter(path unimodel.Path) error {
	w.depth++
	if w.s.maxDepth > 0 && w.depth > w.s.maxDepth {
		return &unimodel.SerializationError{Struct: w.cur, Path: path, Message: ErrMaxDepth.Error(), Err: ErrMaxDepth}
	}
	return nil
}

func (w *writer) mismatch(path unimodel.Path, ts *TypeSpec, v any) error {
	return &unimodel.SerializationError{
		Struct:  w.cur,
		Path:    path,
		Message: fmt.Sprintf("at %s", path),
		Err:     &unimodel.ValueTypeError{Type: ts.Type, Value: v},
	}
}

func (w *writer) writeStruct(spec *StructSpec, inst *unimodel.Instance, path unimodel.Path) error {
	if err := w.enter(path); err != nil {
		return err
	}
	defer func() { w.depth-- }()
	prev := w.cur
	w.cur = spec.Name
	defer func() { w.cur = prev }()

	if spec.Union && inst.Len() > 1 {
		return &unimodel.SerializationError{
			Struct:  spec.Name,
			Path:    path,
			Message: fmt.Sprintf("union has %d fields set", inst.Len()),
		}
	}
	if err := w.p.WriteStructBegin(w.ctx, spec.Name); err != nil {
		return w.s.protoErr(err)
	}
	for _, fs := range spec.Fields {
		v, ok := inst.GetTag(fs.Tag)
		if !ok {
			continue
		}
		if err := w.p.WriteFieldBegin(w.ctx, fs.Name, fs.TType, fs.Tag); err != nil {
			return w.s.protoErr(err)
		}
		if err := w.writeValue(fs.TypeSpec, v, path.Field(fs.Field.Name)); err != nil {
			return err
		}
		if err := w.p.WriteFieldEnd(w.ctx); err != nil {
			return w.s.protoErr(err)
		}
	}
	if err := w.p.WriteFieldStop(w.ctx); err != nil {
		return w.s.protoErr(err)
	}
	if err := w.p.WriteStructEnd(w.ctx); err != nil {
		return w.s.protoErr(err)
	}
	return nil
}

func (w *writer) writeTuple(spec *StructSpec, xs []any, path unimodel.Path) error {
	if err := w.enter(path); err != nil {
		return err
	}
	defer func() { w.depth-- }()
	if err := w.p.WriteStructBegin(w.ctx, spec.Name); err != nil {
		return w.s.protoErr(err)
	}
	for i, fs := range spec.Fields {
		if err := w.p.WriteFieldBegin(w.ctx, fs.Name, fs.TType, fs.Tag); err != nil {
			return w.s.protoErr(err)
		}
		if err := w.writeValue(fs.TypeSpec, xs[i], path.Index(i)); err != nil {
			return err
		}
		if err := w.p.WriteFieldEnd(w.ctx); err != nil {
			return w.s.protoErr(err)
		}
	}
	if err := w.p.WriteFieldStop(w.ctx); err != nil {
		return w.s.protoErr(err)
	}
	return w.s.protoErrOrNil(w.p.WriteStructEnd(w.ctx))
}

func (s *Serializer) protoErrOrNil(err error) error {
	if err == nil {
		return nil
	}
	return s.protoErr(err)
}

func (w *writer) writeValue(ts *TypeSpec, v any, path unimodel.Path) error {
	ctx, p := w.ctx, w.p
	var err error
	switch ts.TypeID {
	case unimodel.TypeBool:
		x, ok := v.(bool)
		if !ok {
			return w.mismatch(path, ts, v)
		}
		err = p.WriteBool(ctx, x)
	case unimodel.TypeI8:
		x, ok := v.(int8)
		if !ok {
			return w.mismatch(path, ts, v)
		}
		err = p.WriteByte(ctx, x)
	case unimodel.TypeI16:
		x, ok := v.(int16)
		if !ok {
			return w.mismatch(path, ts, v)
		}
		err = p.WriteI16(ctx, x)
	case unimodel.TypeI32, unimodel.TypeEnum:
		x, ok := v.(int32)
		if !ok {
			return w.mismatch(path, ts, v)
		}
		err = p.WriteI32(ctx, x)
	case unimodel.TypeI64:
		x, ok := v.(int64)
		if !ok {
			return w.mismatch(path, ts, v)
		}
		err = p.WriteI64(ctx, x)
	case unimodel.TypeDouble:
		x, ok := v.(float64)
		if !ok {
			return w.mismatch(path, ts, v)
		}
		err = p.WriteDouble(ctx, x)
	case unimodel.TypeUTF8:
		x, ok := v.(string)
		if !ok {
			return w.mismatch(path, ts, v)
		}
		err = p.WriteString(ctx, x)
	case unimodel.TypeBinary:
		x, ok := v.([]byte)
		if !ok {
			return w.mismatch(path, ts, v)
		}
		err = p.WriteBinary(ctx, x)
	case unimodel.TypeBigInt:
		x, ok := v.(*big.Int)
		if !ok || x == nil {
			return w.mismatch(path, ts, v)
		}
		err = p.WriteString(ctx, x.String())
	case unimodel.TypeJSON:
		blob, merr := json.Marshal(v)
		if merr != nil {
			return &unimodel.SerializationError{Struct: w.cur, Path: path, Message: "json value", Err: merr}
		}
		err = p.WriteString(ctx, string(blob))
	case unimodel.TypeUUID:
		x, ok := v.(uuid.UUID)
		if !ok {
			return w.mismatch(path, ts, v)
		}
		err = p.WriteUUID(ctx, thrift.Tuuid(x))
	case unimodel.TypeStruct:
		x, ok := v.(*unimodel.Instance)
		if !ok || x == nil {
			return w.mismatch(path, ts, v)
		}
		return w.writeStruct(ts.Struct, x, path)
	case unimodel.TypeTuple:
		xs, ok := v.([]any)
		if !ok || len(xs) != len(ts.Struct.Fields) {
			return w.mismatch(path, ts, v)
		}
		return w.writeTuple(ts.Struct, xs, path)
	case unimodel.TypeList, unimodel.TypeSet:
		xs, ok := v.([]any)
		if !ok {
			return w.mismatch(path, ts, v)
		}
		if err := w.enter(path); err != nil {
			return err
		}
		defer func() { w.depth-- }()
		if ts.TypeID == unimodel.TypeList {
			err = p.WriteListBegin(ctx, ts.Elem.TType, len(xs))
		} else {
			err = p.WriteSetBegin(ctx, ts.Elem.TType, len(xs))
		}
		if err != nil {
			return w.s.protoErr(err)
		}
		for i, x := range xs {
			if err := w.writeValue(ts.Elem, x, path.Index(i)); err != nil {
				return err
			}
		}
		if ts.TypeID == unimodel.TypeList {
			err = p.WriteListEnd(ctx)
		} else {
			err = p.WriteSetEnd(ctx)
		}
	case unimodel.TypeMap:
		m, ok := v.(map[any]any)
		if !ok {
			return w.mismatch(path, ts, v)
		}
		if err := w.enter(path); err != nil {
			return err
		}
		defer func() { w.depth-- }()
		if err := p.WriteMapBegin(ctx, ts.Key.TType, ts.Value.TType, len(m)); err != nil {
			return w.s.protoErr(err)
		}
		for _, k := range unimodel.SortedKeys(m) {
			if err := w.writeValue(ts.Key, k, path.Key(k)); err != nil {
				return err
			}
			if err := w.writeValue(ts.Value, m[k], path.Key(k)); err != nil {
				return err
			}
		}
		err = p.WriteMapEnd(ctx)
	default:
		return w.mismatch(path, ts, v)
	}
	return w.s.protoErrOrNil(err)
}

type reader struct {
	ctx   context.Context
	p     thrift.TProtocol
	s     *Serializer
	depth int
}

// enter counts one level of nesting; callers decrement depth on return.
func (r *reader) enter() error {
	r.depth++
	if r.s.maxDepth > 0 && r.depth > r.s.maxDepth {
		return &unimodel.ProtocolError{Protocol: string(r.s.protocol), Err: ErrMaxDepth}
	}
	return nil
}

func (r *reader) readStruct(spec *StructSpec) (*unimodel.Instance, error) {
	if err := r.enter(); err != nil {
		return nil, err
	}
	defer func() { r.depth-- }()
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}
	ctx, p := r.ctx, r.p
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return nil, r.s.protoErr(err)
	}
	inst := spec.Impl.New()
	for {
		_, ttype, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return nil, r.s.protoErr(err)
		}
		if ttype == thrift.STOP {
			break
		}
		fs, ok := spec.byTag[id]
		if !ok || fs.TType != ttype {
			r.s.log.Debug("skipping field",
				zap.String("struct", spec.Name),
				zap.Int16("tag", id),
				zap.Stringer("type", ttype))
			if err := p.Skip(ctx, ttype); err != nil {
				return nil, r.s.protoErr(err)
			}
		} else {
			v, err := r.readValue(fs.TypeSpec)
			if err != nil {
				return nil, err
			}
			if err := inst.SetTag(id, v); err != nil {
				return nil, r.s.protoErr(err)
			}
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return nil, r.s.protoErr(err)
		}
	}
	if err := p.ReadStructEnd(ctx); err != nil {
		return nil, r.s.protoErr(err)
	}
	if err := checkRead(spec, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// checkRead runs the required-field check, then full validation.
func checkRead(spec *StructSpec, inst *unimodel.Instance) error {
	var missing []string
	for _, fs := range spec.Fields {
		if fs.Field.Required {
			if _, ok := inst.GetTag(fs.Tag); !ok {
				missing = append(missing, fs.Field.Name)
			}
		}
	}
	err := inst.Validate()
	if len(missing) == 0 && err == nil {
		return nil
	}
	if len(missing) == 0 {
		var ve *unimodel.ValidationError
		if errors.As(err, &ve) && ve.Field != "" {
			missing = []string{ve.Field}
		}
	}
	return &unimodel.ReadValidationError{Struct: spec.Name, Fields: missing, Err: err}
}

func (r *reader) containerHeader(kind string, want thrift.TType, got thrift.TType, size int) error {
	if size < 0 {
		return r.s.protoErr(fmt.Errorf("negative %s size %d", kind, size))
	}
	if size > 0 && got != want {
		return r.s.protoErr(fmt.Errorf("%s element type %v, want %v", kind, got, want))
	}
	return nil
}

func (r *reader) readValue(ts *TypeSpec) (any, error) {
	ctx, p := r.ctx, r.p
	var (
		v   any
		err error
	)
	switch ts.TypeID {
	case unimodel.TypeBool:
		v, err = p.ReadBool(ctx)
	case unimodel.TypeI8:
		v, err = p.ReadByte(ctx)
	case unimodel.TypeI16:
		v, err = p.ReadI16(ctx)
	case unimodel.TypeI32, unimodel.TypeEnum:
		v, err = p.ReadI32(ctx)
	case unimodel.TypeI64:
		v, err = p.ReadI64(ctx)
	case unimodel.TypeDouble:
		v, err = p.ReadDouble(ctx)
	case unimodel.TypeUTF8:
		var s string
		if s, err = p.ReadString(ctx); err == nil && !utf8.ValidString(s) {
			err = errors.New("invalid UTF-8 string")
		}
		v = s
	case unimodel.TypeBinary:
		v, err = p.ReadBinary(ctx)
	case unimodel.TypeBigInt:
		var s string
		if s, err = p.ReadString(ctx); err == nil {
			n, ok := new(big.Int).SetString(s, 10)
			if !ok {
				err = fmt.Errorf("invalid decimal integer %q", s)
			}
			v = n
		}
	case unimodel.TypeJSON:
		var s string
		if s, err = p.ReadString(ctx); err == nil {
			v, err = decodeJSONBlob(s)
		}
	case unimodel.TypeUUID:
		var u thrift.Tuuid
		u, err = p.ReadUUID(ctx)
		v = uuid.UUID(u)
	case unimodel.TypeStruct:
		return r.readStruct(ts.Struct)
	case unimodel.TypeTuple:
		inst, err := r.readStruct(ts.Struct)
		if err != nil {
			return nil, err
		}
		xs := make([]any, len(ts.Struct.Fields))
		for i, fs := range ts.Struct.Fields {
			xs[i], _ = inst.GetTag(fs.Tag)
		}
		return xs, nil
	case unimodel.TypeList, unimodel.TypeSet:
		return r.readSeq(ts)
	case unimodel.TypeMap:
		return r.readMap(ts)
	default:
		err = fmt.Errorf("no wire encoding for %s", ts.Type)
	}
	if err != nil {
		return nil, r.s.protoErr(err)
	}
	return v, nil
}

func (r *reader) readSeq(ts *TypeSpec) (any, error) {
	if err := r.enter(); err != nil {
		return nil, err
	}
	defer func() { r.depth-- }()
	var (
		et   thrift.TType
		size int
		err  error
	)
	kind := "list"
	if ts.TypeID == unimodel.TypeList {
		et, size, err = r.p.ReadListBegin(r.ctx)
	} else {
		kind = "set"
		et, size, err = r.p.ReadSetBegin(r.ctx)
	}
	if err != nil {
		return nil, r.s.protoErr(err)
	}
	if err := r.containerHeader(kind, ts.Elem.TType, et, size); err != nil {
		return nil, err
	}
	xs := make([]any, 0, min(size, maxPrealloc))
	for i := 0; i < size; i++ {
		x, err := r.readValue(ts.Elem)
		if err != nil {
			return nil, err
		}
		xs = append(xs, x)
	}
	if ts.TypeID == unimodel.TypeList {
		err = r.p.ReadListEnd(r.ctx)
	} else {
		err = r.p.ReadSetEnd(r.ctx)
	}
	if err != nil {
		return nil, r.s.protoErr(err)
	}
	return xs, nil
}

func (r *reader) readMap(ts *TypeSpec) (any, error) {
	if err := r.enter(); err != nil {
		return nil, err
	}
	defer func() { r.depth-- }()
	kt, vt, size, err := r.p.ReadMapBegin(r.ctx)
	if err != nil {
		return nil, r.s.protoErr(err)
	}
	if err := r.containerHeader("map key", ts.Key.TType, kt, size); err != nil {
		return nil, err
	}
	if err := r.containerHeader("map value", ts.Value.TType, vt, size); err != nil {
		return nil, err
	}
	m := make(map[any]any, min(size, maxPrealloc))
	for i := 0; i < size; i++ {
		k, err := r.readValue(ts.Key)
		if err != nil {
			return nil, err
		}
		v, err := r.readValue(ts.Value)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	if err := r.p.ReadMapEnd(r.ctx); err != nil {
		return nil, r.s.protoErr(err)
	}
	return m, nil
}

// decodeJSONBlob reads exactly one JSON value; numbers stay json.Number.
func decodeJSONBlob(s string) (any, error) {
	return eng.DecodeDocument(gojson.NewBytes([]byte(s)))
}
