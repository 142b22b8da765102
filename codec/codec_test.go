package codec_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reoring/unimodel"
	"github.com/reoring/unimodel/codec"
)

var ctx = context.Background()

func TestNames(t *testing.T) {
	require.Equal(t, []string{"binary", "compact", "fastbinary", "json", "verbose_json"}, codec.Names())
	_, err := codec.New("xml", codec.Options{})
	require.Error(t, err)
}

func TestRoundTripEveryFormat(t *testing.T) {
	point := unimodel.NewStruct("Point").
		Field("x", unimodel.I32).Required().
		Field("y", unimodel.I32).Required().
		Field("label", unimodel.UTF8).
		MustBuild()
	inst := point.New().MustSet("x", int32(3)).MustSet("y", int32(-4)).MustSet("label", "p")

	for _, name := range codec.Names() {
		t.Run(name, func(t *testing.T) {
			s, err := codec.New(name, codec.Options{ValidateBeforeWrite: true})
			require.NoError(t, err)
			require.Equal(t, name, s.Name())

			b, err := s.Marshal(ctx, inst)
			require.NoError(t, err)
			back, err := s.Unmarshal(ctx, point, b)
			require.NoError(t, err)
			require.True(t, inst.Equal(back), "got %s", back)

			_, err = s.Marshal(ctx, point.New().MustSet("x", int32(1)))
			require.Error(t, err)
		})
	}
}

func TestDoubleKeyedMap(t *testing.T) {
	desc := unimodel.NewStruct("Weights").
		Field("w", unimodel.Map(unimodel.Double, unimodel.UTF8)).
		MustBuild()
	inst := desc.New().MustSet("w", map[any]any{0.5: "half", 2.0: "double"})

	bin, err := codec.New(codec.Binary, codec.Options{})
	require.NoError(t, err)
	b, err := bin.Marshal(ctx, inst)
	require.NoError(t, err)
	back, err := bin.Unmarshal(ctx, desc, b)
	require.NoError(t, err)
	require.True(t, inst.Equal(back))

	js, err := codec.New(codec.JSON, codec.Options{})
	require.NoError(t, err)
	_, err = js.Marshal(ctx, inst)
	var se *unimodel.SerializationError
	require.True(t, errors.As(err, &se))
}

func TestLoadOptions(t *testing.T) {
	opt, err := codec.LoadOptions([]byte(`
validateBeforeWrite: true
json:
  skipUnknownFields: false
  duplicateKeys: ignore
  maxDepth: 16
`))
	require.NoError(t, err)
	require.True(t, opt.ValidateBeforeWrite)
	require.NotNil(t, opt.JSON.SkipUnknownFields)
	require.False(t, *opt.JSON.SkipUnknownFields)
	require.Equal(t, 16, opt.JSON.MaxDepth)

	desc := unimodel.NewStruct("Only").Field("a", unimodel.I64).MustBuild()
	s, err := codec.New(codec.JSON, opt)
	require.NoError(t, err)
	_, err = s.Unmarshal(ctx, desc, []byte(`{"a":1,"b":2}`))
	require.ErrorContains(t, err, "unknown fields: b")

	_, err = codec.LoadOptions([]byte("json: [1"))
	require.Error(t, err)
}
