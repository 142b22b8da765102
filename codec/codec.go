// Package codec selects a serializer by name.
//
// The Thrift-family protocols come from package wire; "json" is the plain
// JSON format of package jsoncodec. Thrift's own JSON protocol is registered
// as "verbose_json".
package codec

import (
	"context"
	"fmt"
	"sort"

	"github.com/apache/thrift/lib/go/thrift"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/reoring/unimodel"
	"github.com/reoring/unimodel/jsoncodec"
	"github.com/reoring/unimodel/wire"
)

// Serializer encodes and decodes struct instances in one format.
type Serializer interface {
	Name() string
	Marshal(ctx context.Context, inst *unimodel.Instance) ([]byte, error)
	Unmarshal(ctx context.Context, desc *unimodel.StructDescriptor, data []byte) (*unimodel.Instance, error)
}

const (
	Binary      = "binary"
	Compact     = "compact"
	VerboseJSON = "verbose_json"
	FastBinary  = "fastbinary"
	JSON        = "json"
)

var thriftNames = map[string]wire.Protocol{
	Binary:      wire.Binary,
	Compact:     wire.Compact,
	VerboseJSON: wire.JSON,
	FastBinary:  wire.FastBinary,
}

// Options is shared by every format; settings a format does not use are
// ignored.
type Options struct {
	ValidateBeforeWrite bool `json:"validateBeforeWrite,omitempty" yaml:"validateBeforeWrite,omitempty"`
	// JSON holds the settings specific to the "json" format.
	JSON jsoncodec.Options `json:"json,omitempty" yaml:"json,omitempty"`

	Registry     *unimodel.ModelRegistry `json:"-" yaml:"-"`
	ThriftConfig *thrift.TConfiguration  `json:"-" yaml:"-"`
	Logger       *zap.Logger             `json:"-" yaml:"-"`
}

// LoadOptions reads Options from YAML. Fields tagged "-" keep their zero value.
func LoadOptions(data []byte) (Options, error) {
	var opt Options
	if err := yaml.Unmarshal(data, &opt); err != nil {
		return Options{}, fmt.Errorf("codec: options: %w", err)
	}
	return opt, nil
}

// Names lists the registered formats.
func Names() []string {
	names := []string{JSON}
	for n := range thriftNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New returns the serializer registered under name.
func New(name string, opt Options) (Serializer, error) {
	if name == JSON {
		jo := opt.JSON
		jo.ValidateBeforeWrite = jo.ValidateBeforeWrite || opt.ValidateBeforeWrite
		if jo.Registry == nil {
			jo.Registry = opt.Registry
		}
		if jo.Logger == nil {
			jo.Logger = opt.Logger
		}
		return jsonSerializer{jsoncodec.New(jo)}, nil
	}
	p, ok := thriftNames[name]
	if !ok {
		return nil, fmt.Errorf("codec: unknown format %q", name)
	}
	s, err := wire.NewSerializer(wire.Options{
		Protocol:            p,
		ValidateBeforeWrite: opt.ValidateBeforeWrite,
		Registry:            opt.Registry,
		Config:              opt.ThriftConfig,
		Logger:              opt.Logger,
	})
	if err != nil {
		return nil, err
	}
	return thriftSerializer{name: name, s: s}, nil
}

type thriftSerializer struct {
	name string
	s    *wire.Serializer
}

func (t thriftSerializer) Name() string { return t.name }

func (t thriftSerializer) Marshal(ctx context.Context, inst *unimodel.Instance) ([]byte, error) {
	return t.s.Serialize(ctx, inst)
}

func (t thriftSerializer) Unmarshal(ctx context.Context, desc *unimodel.StructDescriptor, data []byte) (*unimodel.Instance, error) {
	return t.s.Deserialize(ctx, desc, data)
}

type jsonSerializer struct{ c *jsoncodec.Codec }

func (jsonSerializer) Name() string { return JSON }

func (j jsonSerializer) Marshal(ctx context.Context, inst *unimodel.Instance) ([]byte, error) {
	return j.c.Marshal(ctx, inst)
}

func (j jsonSerializer) Unmarshal(ctx context.Context, desc *unimodel.StructDescriptor, data []byte) (*unimodel.Instance, error) {
	return j.c.Unmarshal(ctx, desc, data)
}
