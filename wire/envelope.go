package wire

import (
	"context"
	"fmt"

	"github.com/reoring/unimodel"
)

var envelopeStruct = unimodel.NewStruct("Envelope").
	Field("protocol", unimodel.I16).Tag(1).Required().
	Field("struct_name", unimodel.UTF8).Tag(2).Required().
	Field("fingerprint", unimodel.I64).Tag(3).
	Field("data", unimodel.Binary).Tag(4).Required().
	MustBuild()

// EnvelopeStruct describes the envelope layout, itself written with Binary.
func EnvelopeStruct() *unimodel.StructDescriptor { return envelopeStruct }

// StructLookup resolves struct names found in envelopes.
type StructLookup interface {
	Lookup(name string) (*unimodel.StructDescriptor, bool)
}

// Pack encodes inst with opt.Protocol and wraps the payload in a
// self-describing envelope carrying the protocol id, the struct name and the
// struct fingerprint.
func Pack(ctx context.Context, inst *unimodel.Instance, opt Options) ([]byte, error) {
	inner, err := NewSerializer(opt)
	if err != nil {
		return nil, err
	}
	payload, err := inner.Serialize(ctx, inst)
	if err != nil {
		return nil, err
	}
	env := envelopeStruct.New().
		MustSet("protocol", inner.Protocol().ID()).
		MustSet("struct_name", inst.Descriptor().Name()).
		MustSet("fingerprint", int64(inst.Descriptor().Fingerprint())).
		MustSet("data", payload)
	outer, err := NewSerializer(Options{Protocol: Binary, Config: opt.Config, Logger: opt.Logger})
	if err != nil {
		return nil, err
	}
	return outer.Serialize(ctx, env)
}

// Unpack reverses Pack. The struct named in the envelope is resolved through
// lookup and must have the fingerprint it was packed with. opt.Protocol is
// ignored in favor of the envelope's.
func Unpack(ctx context.Context, data []byte, lookup StructLookup, opt Options) (*unimodel.Instance, error) {
	outer, err := NewSerializer(Options{Protocol: Binary, Config: opt.Config, Logger: opt.Logger})
	if err != nil {
		return nil, err
	}
	env, err := outer.Deserialize(ctx, envelopeStruct, data)
	if err != nil {
		return nil, err
	}
	id, _ := env.Get("protocol")
	name, _ := env.Get("struct_name")
	payload, _ := env.Get("data")

	proto, err := ProtocolByID(id.(int16))
	if err != nil {
		return nil, err
	}
	desc, ok := lookup.Lookup(name.(string))
	if !ok {
		return nil, fmt.Errorf("wire: envelope names unknown struct %q", name)
	}
	if fp, ok := env.Get("fingerprint"); ok && uint64(fp.(int64)) != desc.Fingerprint() {
		return nil, fmt.Errorf("wire: envelope for %s was packed with a different layout", desc.Name())
	}
	opt.Protocol = proto
	inner, err := NewSerializer(opt)
	if err != nil {
		return nil, err
	}
	return inner.Deserialize(ctx, desc, payload.([]byte))
}
