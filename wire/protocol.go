package wire

import (
	"fmt"

	"github.com/apache/thrift/lib/go/thrift"
)

// Protocol names a Thrift-family wire format.
type Protocol string

const (
	Binary  Protocol = "binary"
	Compact Protocol = "compact"
	// JSON is Thrift's verbose JSON protocol, not the jsoncodec format.
	JSON Protocol = "json"
	// FastBinary produces the same bytes as Binary.
	FastBinary Protocol = "fastbinary"
)

var protocolIDs = []struct {
	id int16
	p  Protocol
}{
	{0, Binary},
	{1, JSON},
	{2, Compact},
	{3, FastBinary},
}

// Protocols lists the supported protocols in id order.
func Protocols() []Protocol {
	out := make([]Protocol, len(protocolIDs))
	for i, e := range protocolIDs {
		out[i] = e.p
	}
	return out
}

// ParseProtocol resolves a protocol by name.
func ParseProtocol(name string) (Protocol, error) {
	for _, e := range protocolIDs {
		if string(e.p) == name {
			return e.p, nil
		}
	}
	return "", fmt.Errorf("wire: unknown protocol %q", name)
}

// ProtocolByID resolves the numeric id stored in envelopes.
func ProtocolByID(id int16) (Protocol, error) {
	for _, e := range protocolIDs {
		if e.id == id {
			return e.p, nil
		}
	}
	return "", fmt.Errorf("wire: unknown protocol id %d", id)
}

// ID returns the numeric protocol id, or -1.
func (p Protocol) ID() int16 {
	for _, e := range protocolIDs {
		if e.p == p {
			return e.id
		}
	}
	return -1
}

// Factory returns the Thrift protocol factory for p. conf may be nil.
func (p Protocol) Factory(conf *thrift.TConfiguration) (thrift.TProtocolFactory, error) {
	if conf == nil {
		conf = &thrift.TConfiguration{}
	}
	switch p {
	case Binary, FastBinary:
		return thrift.NewTBinaryProtocolFactoryConf(conf), nil
	case Compact:
		return thrift.NewTCompactProtocolFactoryConf(conf), nil
	case JSON:
		return thrift.NewTJSONProtocolFactory(), nil
	}
	return nil, fmt.Errorf("wire: unknown protocol %q", string(p))
}
