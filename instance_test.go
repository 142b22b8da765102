package unimodel_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reoring/unimodel"
)

func newNodeTypes(t *testing.T) (tree, data *unimodel.StructDescriptor) {
	t.Helper()
	data = unimodel.NewStruct("NodeData").
		Field("name", unimodel.UTF8).Required().
		Field("age", unimodel.I32).
		MustBuild()
	node := unimodel.NewStruct("TreeNode")
	node.Field("children", unimodel.List(unimodel.Struct(node.Descriptor()))).
		Field("data", unimodel.Struct(data)).Required()
	return node.MustBuild(), data
}

func TestInstance_GetSet(t *testing.T) {
	_, data := newNodeTypes(t)
	d := data.New()

	_, ok := d.Get("name")
	require.False(t, ok)
	require.NoError(t, d.Set("name", "ann"))
	v, ok := d.Get("name")
	require.True(t, ok)
	require.Equal(t, "ann", v)
	require.Equal(t, []int16{1}, d.Tags())

	err := d.Set("nope", 1)
	require.True(t, errors.Is(err, unimodel.ErrUnknownField))

	require.NoError(t, d.Set("age", int32(0)))
	require.True(t, d.Has("age"))
	require.NoError(t, d.Set("age", nil))
	require.False(t, d.Has("age"))

	require.NoError(t, d.SetTag(2, int32(3)))
	require.Error(t, d.SetTag(99, int32(3)))
	require.NoError(t, d.Delete("age"))
	require.Equal(t, 1, d.Len())
}

func TestInstance_GetOrDefault(t *testing.T) {
	s := unimodel.NewStruct("Defaults").
		Field("retries", unimodel.I32).Default(int32(3)).
		MustBuild()
	i := s.New()
	require.Equal(t, int32(3), i.GetOrDefault("retries"))
	_, ok := i.Get("retries")
	require.False(t, ok)
	i.MustSet("retries", int32(5))
	require.Equal(t, int32(5), i.GetOrDefault("retries"))
}

func TestInstance_Equal(t *testing.T) {
	tree, data := newNodeTypes(t)
	mk := func(name string) *unimodel.Instance {
		leaf := tree.New().MustSet("data", data.New().MustSet("name", name+"-leaf"))
		return tree.New().
			MustSet("data", data.New().MustSet("name", name)).
			MustSet("children", []any{leaf})
	}
	require.True(t, mk("a").Equal(mk("a")))
	require.False(t, mk("a").Equal(mk("b")))
	require.False(t, data.New().Equal(tree.New()))

	zero := data.New().MustSet("age", int32(0))
	require.False(t, zero.Equal(data.New()))
}

func TestInstance_ValidateRequired(t *testing.T) {
	tree, data := newNodeTypes(t)
	n := tree.New()

	err := n.Validate()
	var ve *unimodel.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, unimodel.CodeRequired, ve.Code)
	require.Equal(t, "data", ve.Field)
	require.Contains(t, ve.Error(), "Required field data (id 2) not set")

	n.MustSet("data", data.New())
	err = n.Validate()
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "NodeData", ve.Struct)
	require.Equal(t, "data.name", ve.Path.String())

	n.MustSet("data", data.New().MustSet("name", "x"))
	require.NoError(t, n.Validate())
}

func TestInstance_ValidateNestedPath(t *testing.T) {
	tree, data := newNodeTypes(t)
	bad := tree.New().MustSet("data", data.New().MustSet("name", "leaf").MustSet("age", "old"))
	root := tree.New().
		MustSet("data", data.New().MustSet("name", "root")).
		MustSet("children", []any{bad})

	err := root.Validate()
	var ve *unimodel.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "children[0].data.age", ve.Path.String())
	var vte *unimodel.ValueTypeError
	require.ErrorAs(t, err, &vte)

	iss := unimodel.IssuesOf(err)
	require.Len(t, iss, 1)
	require.Equal(t, "/children/0/data/age", iss[0].Path)
	require.Equal(t, unimodel.CodeInvalidType, iss[0].Code)
}

func TestInstance_CustomValidators(t *testing.T) {
	positive := unimodel.ValidatorFunc(func(v any) error {
		if v.(int64) <= 0 {
			return fmt.Errorf("must be positive")
		}
		return nil
	})
	rangeCheck := unimodel.StructValidatorFunc(func(i *unimodel.Instance) error {
		lo, _ := i.Get("lo")
		hi, _ := i.Get("hi")
		if lo.(int64) > hi.(int64) {
			return errors.New("lo exceeds hi")
		}
		return nil
	})
	s := unimodel.NewStruct("Range").
		Field("lo", unimodel.I64).Required().Validate(positive).
		Field("hi", unimodel.I64).Required().
		Validators(rangeCheck).
		MustBuild()

	i := s.New().MustSet("lo", int64(-1)).MustSet("hi", int64(5))
	err := i.Validate()
	var ve *unimodel.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "lo", ve.Field)
	require.Contains(t, err.Error(), "must be positive")

	i.MustSet("lo", int64(9))
	err = i.Validate()
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "Range", ve.Struct)
	require.Contains(t, err.Error(), "lo exceeds hi")

	i.MustSet("lo", int64(2))
	require.NoError(t, i.Validate())
}

func TestInstance_Union(t *testing.T) {
	u := unimodel.NewStruct("Choice").
		Field("num", unimodel.I64).
		Field("text", unimodel.UTF8).
		Union().
		MustBuild()
	require.True(t, u.IsUnion())

	i := u.New()
	f, v, err := i.CurrentField()
	require.NoError(t, err)
	require.Nil(t, f)
	require.Nil(t, v)

	i.MustSet("text", "hi")
	f, v, err = i.CurrentField()
	require.NoError(t, err)
	require.Equal(t, "text", f.Name)
	require.Equal(t, "hi", v)
	require.NoError(t, i.Validate())

	i.MustSet("num", int64(1))
	_, _, err = i.CurrentField()
	require.Error(t, err)
	var ve *unimodel.ValidationError
	require.ErrorAs(t, i.Validate(), &ve)
	require.Equal(t, unimodel.CodeUnionAmbiguous, ve.Code)
}

func TestInstance_String(t *testing.T) {
	_, data := newNodeTypes(t)
	i := data.New().MustSet("age", int32(4)).MustSet("name", "ann")
	require.Equal(t, `NodeData(name="ann", age=4)`, i.String())
}
