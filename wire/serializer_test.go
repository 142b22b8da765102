package wire_test

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/stretchr/testify/require"

	"github.com/reoring/unimodel"
	"github.com/reoring/unimodel/wire"
)

func newSerializer(t *testing.T, opt wire.Options) *wire.Serializer {
	t.Helper()
	s, err := wire.NewSerializer(opt)
	require.NoError(t, err)
	return s
}

func TestRoundTrip_AllProtocols(t *testing.T) {
	ctx := context.Background()
	fx := newFixtures()
	in := fx.sampleKitchen()
	require.NoError(t, in.Validate())

	for _, p := range wire.Protocols() {
		t.Run(string(p), func(t *testing.T) {
			s := newSerializer(t, wire.Options{Protocol: p, ValidateBeforeWrite: true})
			b, err := s.Serialize(ctx, in)
			require.NoError(t, err)
			out, err := s.Deserialize(ctx, fx.kitchen, b)
			require.NoError(t, err)
			require.True(t, in.Equal(out), "got %v", out)
		})
	}
}

func TestRoundTrip_EmptyStruct(t *testing.T) {
	ctx := context.Background()
	fx := newFixtures()
	s := newSerializer(t, wire.Options{Protocol: wire.Compact})
	b, err := s.Serialize(ctx, fx.kitchen.New())
	require.NoError(t, err)
	out, err := s.Deserialize(ctx, fx.kitchen, b)
	require.NoError(t, err)
	require.Equal(t, 0, out.Len())
}

func TestBinaryLayout(t *testing.T) {
	ctx := context.Background()
	d := unimodel.NewStruct("One").Field("n", unimodel.I32).MustBuild()
	s := newSerializer(t, wire.Options{})
	b, err := s.Serialize(ctx, d.New().MustSet("n", int32(1)))
	require.NoError(t, err)
	// field header (type 8, id 1), value 1, stop
	require.Equal(t, []byte{0x08, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x00}, b)
}

func TestThriftSerializerInterop(t *testing.T) {
	ctx := context.Background()
	fx := newFixtures()
	s := newSerializer(t, wire.Options{Protocol: wire.Binary})
	in := fx.sampleTree()

	ours, err := s.Serialize(ctx, in)
	require.NoError(t, err)
	theirs, err := thrift.NewTSerializer().Write(ctx, s.TStruct(in))
	require.NoError(t, err)
	require.Equal(t, ours, theirs)

	back := s.EmptyTStruct(fx.tree)
	require.NoError(t, thrift.NewTDeserializer().Read(ctx, back, theirs))
	require.True(t, in.Equal(back.Instance))
}

func TestResolve_RecursivePlanHasBackReference(t *testing.T) {
	fx := newFixtures()
	r := wire.NewResolver(nil, nil)
	spec, err := r.Resolve(fx.tree)
	require.NoError(t, err)
	require.Len(t, spec.Fields, 2)

	children, ok := spec.Field(1)
	require.True(t, ok)
	require.Equal(t, unimodel.TypeList, children.TypeID)
	require.Equal(t, thrift.TType(thrift.LIST), children.TType)
	require.Same(t, spec, children.Elem.Struct)

	again, err := r.Resolve(fx.tree)
	require.NoError(t, err)
	require.Same(t, spec, again)
}

func TestResolve_MutualRecursion(t *testing.T) {
	a := unimodel.Declare("A")
	b := unimodel.NewStruct("B").Field("a", unimodel.Struct(a)).MustBuild()
	require.NoError(t, unimodel.Define(a, []*unimodel.Field{
		unimodel.NewField("b", unimodel.Map(unimodel.UTF8, unimodel.Struct(b))),
	}))

	r := wire.NewResolver(nil, nil)
	sa, err := r.Resolve(a)
	require.NoError(t, err)
	fb, _ := sa.Field(1)
	sb := fb.Value.Struct
	fa, _ := sb.Field(1)
	require.Same(t, sa, fa.Struct)

	direct, err := r.Resolve(b)
	require.NoError(t, err)
	require.Same(t, sb, direct)
}

func TestResolve_Concurrent(t *testing.T) {
	fx := newFixtures()
	r := wire.NewResolver(nil, nil)
	var wg sync.WaitGroup
	specs := make([]*wire.StructSpec, 16)
	for i := range specs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.Resolve(fx.kitchen)
			if err == nil {
				specs[i] = s
			}
		}(i)
	}
	wg.Wait()
	for _, s := range specs {
		require.Same(t, specs[0], s)
	}
}

func TestResolve_UndefinedStruct(t *testing.T) {
	_, err := wire.NewResolver(nil, nil).Resolve(unimodel.Declare("Ghost"))
	require.Error(t, err)
}

func TestTupleTravelsAsSlotStruct(t *testing.T) {
	ctx := context.Background()
	withTuple := unimodel.NewStruct("WithTuple").
		Field("pair", unimodel.Tuple(unimodel.I64, unimodel.UTF8)).
		MustBuild()
	asStruct := unimodel.NewStruct("Pair").
		Field("slot_0", unimodel.I64).
		Field("slot_1", unimodel.UTF8).
		MustBuild()
	withStruct := unimodel.NewStruct("WithStruct").
		Field("pair", unimodel.Struct(asStruct)).
		MustBuild()

	s := newSerializer(t, wire.Options{})
	b, err := s.Serialize(ctx, withTuple.New().MustSet("pair", []any{int64(7), "seven"}))
	require.NoError(t, err)

	out, err := s.Deserialize(ctx, withStruct, b)
	require.NoError(t, err)
	pair, _ := out.Get("pair")
	v0, _ := pair.(*unimodel.Instance).Get("slot_0")
	v1, _ := pair.(*unimodel.Instance).Get("slot_1")
	require.Equal(t, int64(7), v0)
	require.Equal(t, "seven", v1)
}

func TestRequiredFieldReadValidation(t *testing.T) {
	ctx := context.Background()
	fx := newFixtures()
	s := newSerializer(t, wire.Options{})

	b, err := s.Serialize(ctx, fx.data.New().MustSet("weight", 1.0))
	require.NoError(t, err)
	_, err = s.Deserialize(ctx, fx.data, b)
	var rve *unimodel.ReadValidationError
	require.ErrorAs(t, err, &rve)
	require.Equal(t, "NodeData", rve.Struct)
	require.Equal(t, []string{"name"}, rve.Fields)

	b, err = s.Serialize(ctx, fx.data.New().MustSet("weight", 1.0).MustSet("name", "n"))
	require.NoError(t, err)
	_, err = s.Deserialize(ctx, fx.data, b)
	require.NoError(t, err)
}

func TestValidateBeforeWrite(t *testing.T) {
	fx := newFixtures()
	s := newSerializer(t, wire.Options{ValidateBeforeWrite: true})
	_, err := s.Serialize(context.Background(), fx.data.New())
	var ve *unimodel.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, unimodel.CodeRequired, ve.Code)
}

func TestUnion(t *testing.T) {
	ctx := context.Background()
	u := unimodel.NewStruct("Choice").
		Field("num", unimodel.I64).
		Field("text", unimodel.UTF8).
		Union().
		MustBuild()
	s := newSerializer(t, wire.Options{Protocol: wire.Compact})

	_, err := s.Serialize(ctx, u.New().MustSet("num", int64(1)).MustSet("text", "x"))
	var se *unimodel.SerializationError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "Choice", se.Struct)

	for _, in := range []*unimodel.Instance{u.New(), u.New().MustSet("text", "x")} {
		b, err := s.Serialize(ctx, in)
		require.NoError(t, err)
		out, err := s.Deserialize(ctx, u, b)
		require.NoError(t, err)
		require.True(t, in.Equal(out))
	}
}

func TestWriteTypeMismatch(t *testing.T) {
	fx := newFixtures()
	s := newSerializer(t, wire.Options{})
	in := fx.kitchen.New().MustSet("scores", map[any]any{"a": []any{"not-an-int"}})
	_, err := s.Serialize(context.Background(), in)
	var se *unimodel.SerializationError
	require.ErrorAs(t, err, &se)
	require.Equal(t, `scores["a"][0]`, se.Path.String())
	var vte *unimodel.ValueTypeError
	require.ErrorAs(t, err, &vte)
}

func TestTruncatedInput(t *testing.T) {
	ctx := context.Background()
	fx := newFixtures()
	for _, p := range []wire.Protocol{wire.Binary, wire.Compact, wire.JSON} {
		s := newSerializer(t, wire.Options{Protocol: p})
		b, err := s.Serialize(ctx, fx.sampleKitchen())
		require.NoError(t, err)
		_, err = s.Deserialize(ctx, fx.kitchen, b[:len(b)/2])
		var pe *unimodel.ProtocolError
		require.ErrorAs(t, err, &pe, "protocol %s", p)
	}
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	ctx := context.Background()
	v2 := unimodel.NewStruct("Rec").
		Field("id", unimodel.I64).
		Field("extra", unimodel.List(unimodel.UTF8)).
		Field("name", unimodel.UTF8).
		MustBuild()
	v1 := unimodel.NewStruct("Rec").
		Field("id", unimodel.I64).
		Field("name", unimodel.UTF8).Tag(3).
		MustBuild()
	s := newSerializer(t, wire.Options{})
	b, err := s.Serialize(ctx, v2.New().MustSet("id", int64(1)).MustSet("extra", []any{"x"}).MustSet("name", "n"))
	require.NoError(t, err)
	out, err := s.Deserialize(ctx, v1, b)
	require.NoError(t, err)
	name, _ := out.Get("name")
	require.Equal(t, "n", name)
	require.Equal(t, 2, out.Len())
}

func TestRegistrySubstitutesImplementations(t *testing.T) {
	ctx := context.Background()
	inner := unimodel.NewStruct("Inner").Field("v", unimodel.I32).MustBuild()
	innerImpl := unimodel.NewStruct("InnerImpl").Extends(inner).MustBuild()
	outer := unimodel.NewStruct("Outer").Field("items", unimodel.List(unimodel.Struct(inner))).MustBuild()
	outerImpl := unimodel.NewStruct("OuterImpl").Extends(outer).MustBuild()
	reg, err := unimodel.NewModelRegistry(unimodel.Bind(inner, innerImpl), unimodel.Bind(outer, outerImpl))
	require.NoError(t, err)

	s := newSerializer(t, wire.Options{Registry: reg})
	b, err := s.Serialize(ctx, outer.New().MustSet("items", []any{inner.New().MustSet("v", int32(1))}))
	require.NoError(t, err)
	out, err := s.Deserialize(ctx, outer, b)
	require.NoError(t, err)
	require.Same(t, outerImpl, out.Descriptor())
	items, _ := out.Get("items")
	require.Same(t, innerImpl, items.([]any)[0].(*unimodel.Instance).Descriptor())
}

func TestMapWithDoubleKeys(t *testing.T) {
	ctx := context.Background()
	d := unimodel.NewStruct("M").Field("m", unimodel.Map(unimodel.Double, unimodel.I64)).MustBuild()
	in := d.New().MustSet("m", map[any]any{1.5: int64(1), -2.25: int64(2)})
	s := newSerializer(t, wire.Options{Protocol: wire.Binary})
	b, err := s.Serialize(ctx, in)
	require.NoError(t, err)
	out, err := s.Deserialize(ctx, d, b)
	require.NoError(t, err)
	require.True(t, in.Equal(out))
}

func TestEnvelope(t *testing.T) {
	ctx := context.Background()
	fx := newFixtures()
	lookup := lookupMap{"TreeNode": fx.tree, "NodeData": fx.data}
	in := fx.sampleTree()

	for _, p := range wire.Protocols() {
		b, err := wire.Pack(ctx, in, wire.Options{Protocol: p})
		require.NoError(t, err)
		out, err := wire.Unpack(ctx, b, lookup, wire.Options{})
		require.NoError(t, err)
		require.True(t, in.Equal(out))
	}

	b, err := wire.Pack(ctx, in, wire.Options{})
	require.NoError(t, err)
	_, err = wire.Unpack(ctx, b, lookupMap{}, wire.Options{})
	require.Error(t, err)

	changed := unimodel.NewStruct("TreeNode").Field("other", unimodel.Bool).MustBuild()
	_, err = wire.Unpack(ctx, b, lookupMap{"TreeNode": changed}, wire.Options{})
	require.Error(t, err)
}

func TestProtocolLookup(t *testing.T) {
	for _, p := range wire.Protocols() {
		got, err := wire.ParseProtocol(string(p))
		require.NoError(t, err)
		require.Equal(t, p, got)
		byID, err := wire.ProtocolByID(p.ID())
		require.NoError(t, err)
		require.Equal(t, p, byID)
	}
	_, err := wire.ParseProtocol("smoke-signals")
	require.Error(t, err)
	_, err = wire.NewSerializer(wire.Options{Protocol: "smoke-signals"})
	require.Error(t, err)
}

func chainStruct() *unimodel.StructDescriptor {
	b := unimodel.NewStruct("Chain")
	b.Field("child", unimodel.Struct(b.Descriptor()))
	return b.MustBuild()
}

func TestDeeplyNestedInputIsRejected(t *testing.T) {
	ctx := context.Background()
	chain := chainStruct()
	// struct field header (type 12, id 1), repeated without ever closing
	data := bytes.Repeat([]byte{0x0c, 0x00, 0x01}, 10_000)

	_, err := newSerializer(t, wire.Options{}).Deserialize(ctx, chain, data)
	var pe *unimodel.ProtocolError
	require.ErrorAs(t, err, &pe)
	require.ErrorIs(t, err, wire.ErrMaxDepth)
}

func TestMaxDepth(t *testing.T) {
	ctx := context.Background()
	chain := chainStruct()
	nest := func(n int) *unimodel.Instance {
		inst := chain.New()
		for i := 1; i < n; i++ {
			inst = chain.New().MustSet("child", inst)
		}
		return inst
	}

	s := newSerializer(t, wire.Options{MaxDepth: 3})
	b, err := s.Serialize(ctx, nest(3))
	require.NoError(t, err)
	_, err = s.Deserialize(ctx, chain, b)
	require.NoError(t, err)

	_, err = s.Serialize(ctx, nest(4))
	var se *unimodel.SerializationError
	require.ErrorAs(t, err, &se)
	require.ErrorIs(t, err, wire.ErrMaxDepth)

	deep, err := newSerializer(t, wire.Options{}).Serialize(ctx, nest(4))
	require.NoError(t, err)
	_, err = s.Deserialize(ctx, chain, deep)
	var pe *unimodel.ProtocolError
	require.ErrorAs(t, err, &pe)

	lists := unimodel.NewStruct("Lists").
		Field("xs", unimodel.List(unimodel.List(unimodel.I64))).
		MustBuild()
	_, err = newSerializer(t, wire.Options{MaxDepth: 2}).Serialize(ctx,
		lists.New().MustSet("xs", []any{[]any{int64(1)}}))
	require.ErrorIs(t, err, wire.ErrMaxDepth)
}

func TestJSONBlobRejectsTrailingData(t *testing.T) {
	ctx := context.Background()
	d := unimodel.NewStruct("Blob").Field("doc", unimodel.JSON).MustBuild()
	s := newSerializer(t, wire.Options{})

	// string field header (type 11, id 1), length 3, "1 2", stop
	data := []byte{0x0b, 0x00, 0x01, 0x00, 0x00, 0x00, 0x03, '1', ' ', '2', 0x00}
	_, err := s.Deserialize(ctx, d, data)
	var pe *unimodel.ProtocolError
	require.ErrorAs(t, err, &pe)

	data[8], data[9] = ' ', ' '
	out, err := s.Deserialize(ctx, d, data)
	require.NoError(t, err)
	doc, ok := out.Get("doc")
	require.True(t, ok)
	require.EqualValues(t, "1", doc)
}
