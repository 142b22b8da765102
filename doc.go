// Package unimodel declares data structures once, as typed and tagged
// fields, and encodes instances of them to Thrift-compatible wires and JSON.
//
// The root package holds the model:
//
// - Types (primitives, enums, struct references, List/Set/Map/Tuple)
// - Fields and struct descriptors with deterministic tag assignment and inheritance
// - Instances: sparse tag to value storage with equality and validation
// - The ModelRegistry substituting implementation structs on decode
// - A typed error taxonomy that renders to Issues (JSON Pointer, code, message)
//
// Design policy:
// - Keep only public APIs in the root package; put detailed implementations under internal/.
// - Wire protocols live under wire/, the JSON codec under jsoncodec/, protocol selection under codec/.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	point := unimodel.NewStruct("Point").
//		Field("x", unimodel.I64).Required().
//		Field("y", unimodel.I64).Required().
//		MustBuild()
//
//	p := point.New().MustSet("x", int64(1)).MustSet("y", int64(2))
//	s, _ := codec.New("compact", codec.Options{})
//	b, err := s.Marshal(ctx, p)
//	q, err := s.Unmarshal(ctx, point, b)
package unimodel
