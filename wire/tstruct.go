package wire

import (
	"context"

	"github.com/apache/thrift/lib/go/thrift"

	"github.com/reoring/unimodel"
)

// TStruct adapts an instance to thrift.TStruct so it can travel through
// thrift.TSerializer, thrift.TDeserializer or generated service code.
type TStruct struct {
	Instance *unimodel.Instance

	s    *Serializer
	desc *unimodel.StructDescriptor
}

var _ thrift.TStruct = (*TStruct)(nil)

// TStruct wraps inst for writing.
func (s *Serializer) TStruct(inst *unimodel.Instance) *TStruct {
	return &TStruct{Instance: inst, s: s, desc: inst.Descriptor()}
}

// EmptyTStruct returns an adapter that reads a desc into Instance.
func (s *Serializer) EmptyTStruct(desc *unimodel.StructDescriptor) *TStruct {
	return &TStruct{s: s, desc: desc}
}

func (t *TStruct) Write(ctx context.Context, p thrift.TProtocol) error {
	return t.s.Write(ctx, p, t.Instance)
}

func (t *TStruct) Read(ctx context.Context, p thrift.TProtocol) error {
	inst, err := t.s.Read(ctx, p, t.desc)
	if err != nil {
		return err
	}
	t.Instance = inst
	return nil
}
