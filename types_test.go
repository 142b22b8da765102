package unimodel_test

import (
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/reoring/unimodel"
)

func TestPrimitiveValidate(t *testing.T) {
	cases := []struct {
		typ  unimodel.Type
		good any
		bad  any
	}{
		{unimodel.Bool, true, 1},
		{unimodel.I8, int8(1), int16(1)},
		{unimodel.I16, int16(1), int32(1)},
		{unimodel.I32, int32(1), int64(1)},
		{unimodel.I64, int64(1), 1},
		{unimodel.BigInt, big.NewInt(1), int64(1)},
		{unimodel.Double, 1.5, float32(1.5)},
		{unimodel.UTF8, "x", []byte("x")},
		{unimodel.Binary, []byte("x"), "x"},
		{unimodel.UUID, uuid.New(), "not-a-uuid"},
		{unimodel.JSON, map[string]any{"a": []any{1, "b"}}, make(chan int)},
	}
	for _, c := range cases {
		t.Run(c.typ.String(), func(t *testing.T) {
			require.NoError(t, c.typ.Validate(c.good))
			err := c.typ.Validate(c.bad)
			var vte *unimodel.ValueTypeError
			require.ErrorAs(t, err, &vte)
			require.Equal(t, c.typ, vte.Type)
		})
	}
}

func TestPrimitiveByName(t *testing.T) {
	typ, ok := unimodel.PrimitiveByName("i64")
	require.True(t, ok)
	require.Equal(t, unimodel.TypeI64, typ.ID())
	_, ok = unimodel.PrimitiveByName("list")
	require.False(t, ok)
}

func TestInvalidUTF8(t *testing.T) {
	err := unimodel.UTF8.Validate(string([]byte{0xff, 0xfe}))
	var ve *unimodel.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, unimodel.CodeInvalidFormat, ve.Code)
}

func TestEnum(t *testing.T) {
	color := unimodel.Enum("Color",
		unimodel.EnumValue{Key: 2, Name: "GREEN"},
		unimodel.EnumValue{Key: 1, Name: "RED"},
	)
	require.NoError(t, color.Validate(int32(1)))
	name, ok := color.Name(2)
	require.True(t, ok)
	require.Equal(t, "GREEN", name)
	key, ok := color.Key("RED")
	require.True(t, ok)
	require.Equal(t, int32(1), key)
	require.Equal(t, "RED", color.Values()[0].Name)

	var ve *unimodel.ValidationError
	require.ErrorAs(t, color.Validate(int32(7)), &ve)
	require.Equal(t, unimodel.CodeInvalidEnum, ve.Code)

	require.Panics(t, func() {
		unimodel.Enum("Bad", unimodel.EnumValue{Key: 1, Name: "A"}, unimodel.EnumValue{Key: 1, Name: "B"})
	})
}

func TestContainerValidatePaths(t *testing.T) {
	err := unimodel.List(unimodel.I64).Validate([]any{int64(1), "two"})
	var ve *unimodel.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "[1]", ve.Path.String())

	err = unimodel.Map(unimodel.UTF8, unimodel.List(unimodel.I32)).Validate(map[any]any{
		"ok":  []any{int32(1)},
		"bad": []any{int32(1), int32(2), "x"},
	})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, `["bad"][2]`, ve.Path.String())
	require.Equal(t, "/bad/2", ve.Path.Pointer())

	err = unimodel.Tuple(unimodel.I64, unimodel.UTF8).Validate([]any{int64(1)})
	require.Error(t, err)
	require.NoError(t, unimodel.Tuple(unimodel.I64, unimodel.UTF8).Validate([]any{int64(1), "a"}))

	err = unimodel.Set(unimodel.UTF8).Validate([]any{"a", "b", "a"})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, unimodel.CodeDuplicateElement, ve.Code)
}

func TestTypeStrings(t *testing.T) {
	typ := unimodel.Map(unimodel.UTF8, unimodel.Tuple(unimodel.I64, unimodel.Set(unimodel.Double)))
	require.Equal(t, "map<string,tuple<i64,set<double>>>", typ.String())
	require.Len(t, typ.Params(), 2)
}

func TestEqual(t *testing.T) {
	require.True(t, unimodel.Equal(unimodel.BigInt, big.NewInt(42), new(big.Int).SetInt64(42)))
	require.True(t, unimodel.Equal(unimodel.Binary, []byte("ab"), []byte("ab")))
	require.True(t, unimodel.Equal(unimodel.Set(unimodel.I64), []any{int64(1), int64(2)}, []any{int64(2), int64(1)}))
	require.False(t, unimodel.Equal(unimodel.List(unimodel.I64), []any{int64(1), int64(2)}, []any{int64(2), int64(1)}))
	require.True(t, unimodel.Equal(unimodel.JSON, map[string]any{"a": 1.0}, map[string]any{"a": 1.0}))
	require.True(t, unimodel.Equal(unimodel.Map(unimodel.Double, unimodel.UTF8), map[any]any{1.5: "x"}, map[any]any{1.5: "x"}))
	require.False(t, unimodel.Equal(unimodel.I64, int64(1), int32(1)))
	require.False(t, unimodel.Equal(unimodel.I64, []byte("x"), []byte("x")))
}

func TestSortedKeys(t *testing.T) {
	keys := unimodel.SortedKeys(map[any]any{int64(10): nil, int64(-1): nil, int64(3): nil})
	require.Equal(t, []any{int64(-1), int64(3), int64(10)}, keys)
	keys = unimodel.SortedKeys(map[any]any{"b": nil, "a": nil})
	require.Equal(t, []any{"a", "b"}, keys)
}
