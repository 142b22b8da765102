package unimodel_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/reoring/unimodel"
)

func TestModelRegistry(t *testing.T) {
	shape := unimodel.NewStruct("Shape").Field("name", unimodel.UTF8).MustBuild()
	polygon := unimodel.NewStruct("Polygon").Extends(shape).Field("sides", unimodel.I32).MustBuild()
	square := unimodel.NewStruct("Square").Extends(polygon).MustBuild()
	other := unimodel.NewStruct("Other").Field("name", unimodel.UTF8).MustBuild()

	reg, err := unimodel.NewModelRegistry(
		unimodel.Bind(shape, square),
		unimodel.Bind(polygon, square),
	)
	require.NoError(t, err)

	require.Same(t, square, reg.Lookup(shape))
	require.Same(t, square, reg.Lookup(polygon))
	require.Same(t, other, reg.Lookup(other))

	require.Same(t, polygon, reg.LookupInterface(square))
	require.Same(t, other, reg.LookupInterface(other))
	require.Len(t, reg.Bindings(), 2)

	var nilReg *unimodel.ModelRegistry
	require.Same(t, shape, nilReg.Lookup(shape))
}

func TestModelRegistry_RejectsUnrelatedImplementation(t *testing.T) {
	a := unimodel.NewStruct("A").Field("x", unimodel.I8).MustBuild()
	b := unimodel.NewStruct("B").Field("x", unimodel.I8).MustBuild()
	_, err := unimodel.NewModelRegistry(unimodel.Bind(a, b))
	require.Error(t, err)
}

func TestModelRegistry_LogsBindings(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	unimodel.SetLogger(zap.New(core))
	defer unimodel.SetLogger(nil)

	iface := unimodel.NewStruct("Iface").Field("x", unimodel.I8).MustBuild()
	impl := unimodel.NewStruct("Impl").Extends(iface).MustBuild()
	_, err := unimodel.NewModelRegistry(unimodel.Bind(iface, impl))
	require.NoError(t, err)

	bound := logs.FilterMessage("model bound").All()
	require.Len(t, bound, 1)
	require.Equal(t, "Impl", bound[0].ContextMap()["implementation"])
	require.Equal(t, 2, logs.FilterMessage("struct defined").Len())
}
