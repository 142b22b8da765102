package wire_test

import (
	"math/big"

	"github.com/google/uuid"

	"github.com/reoring/unimodel"
)

var color = unimodel.Enum("Color",
	unimodel.EnumValue{Key: 1, Name: "RED"},
	unimodel.EnumValue{Key: 2, Name: "GREEN"},
)

type fixtures struct {
	data, tree, kitchen *unimodel.StructDescriptor
}

func newFixtures() fixtures {
	data := unimodel.NewStruct("NodeData").
		Field("name", unimodel.UTF8).Required().
		Field("weight", unimodel.Double).
		MustBuild()
	node := unimodel.NewStruct("TreeNode")
	node.Field("children", unimodel.List(unimodel.Struct(node.Descriptor()))).
		Field("data", unimodel.Struct(data)).Required()
	tree := node.MustBuild()

	kitchen := unimodel.NewStruct("Kitchen").
		Field("flag", unimodel.Bool).
		Field("tiny", unimodel.I8).
		Field("small", unimodel.I16).
		Field("mid", unimodel.I32).
		Field("big", unimodel.I64).
		Field("huge", unimodel.BigInt).
		Field("ratio", unimodel.Double).
		Field("text", unimodel.UTF8).
		Field("blob", unimodel.Binary).
		Field("id", unimodel.UUID).
		Field("doc", unimodel.JSON).
		Field("color", color).
		Field("tree", unimodel.Struct(tree)).
		Field("tags", unimodel.Set(unimodel.UTF8)).
		Field("scores", unimodel.Map(unimodel.UTF8, unimodel.List(unimodel.I64))).
		Field("weights", unimodel.Map(unimodel.Double, unimodel.UTF8)).
		Field("pair", unimodel.Tuple(unimodel.I64, unimodel.UTF8, unimodel.I64)).
		MustBuild()
	return fixtures{data: data, tree: tree, kitchen: kitchen}
}

func (fx fixtures) sampleTree() *unimodel.Instance {
	leaf := func(name string) *unimodel.Instance {
		return fx.tree.New().MustSet("data", fx.data.New().MustSet("name", name).MustSet("weight", 0.5))
	}
	return fx.tree.New().
		MustSet("data", fx.data.New().MustSet("name", "root")).
		MustSet("children", []any{leaf("a"), leaf("b").MustSet("children", []any{leaf("c")})})
}

func (fx fixtures) sampleKitchen() *unimodel.Instance {
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	return fx.kitchen.New().
		MustSet("flag", true).
		MustSet("tiny", int8(-8)).
		MustSet("small", int16(1600)).
		MustSet("mid", int32(-320000)).
		MustSet("big", int64(1)<<40).
		MustSet("huge", huge).
		MustSet("ratio", 3.25).
		MustSet("text", "héllo").
		MustSet("blob", []byte{0, 1, 2, 0xff}).
		MustSet("id", uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")).
		MustSet("doc", map[string]any{"k": []any{"v", true}}).
		MustSet("color", int32(2)).
		MustSet("tree", fx.sampleTree()).
		MustSet("tags", []any{"x", "y"}).
		MustSet("scores", map[any]any{"a": []any{int64(1), int64(2)}, "b": []any{}}).
		MustSet("weights", map[any]any{0.5: "half", 2.0: "double"}).
		MustSet("pair", []any{int64(1), "two", int64(3)})
}

type lookupMap map[string]*unimodel.StructDescriptor

func (m lookupMap) Lookup(name string) (*unimodel.StructDescriptor, bool) {
	d, ok := m[name]
	return d, ok
}
