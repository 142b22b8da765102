package unimodel_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/reoring/unimodel"
	"github.com/reoring/unimodel/codec"
)

// ---- Helpers ----

type userModel struct {
	user, group *unimodel.StructDescriptor
}

func newUserModel(tb testing.TB) userModel {
	tb.Helper()
	user, err := unimodel.NewStruct("User").
		Field("id", unimodel.UTF8).Required().
		Field("name", unimodel.UTF8).
		Field("age", unimodel.I32).
		Field("active", unimodel.Bool).
		Field("scores", unimodel.Map(unimodel.UTF8, unimodel.Double)).
		Build()
	if err != nil {
		tb.Fatalf("struct build failed: %v", err)
	}
	group, err := unimodel.NewStruct("Group").
		Field("members", unimodel.List(unimodel.Struct(user))).
		Build()
	if err != nil {
		tb.Fatalf("struct build failed: %v", err)
	}
	return userModel{user: user, group: group}
}

func (m userModel) sampleGroup(n int) *unimodel.Instance {
	members := make([]any, n)
	for i := range members {
		members[i] = m.user.New().
			MustSet("id", fmt.Sprintf("u_%d", i)).
			MustSet("name", fmt.Sprintf("n%d", i)).
			MustSet("age", int32(i)).
			MustSet("active", i%2 == 0).
			MustSet("scores", map[any]any{"math": float64(i), "art": 0.5})
	}
	return m.group.New().MustSet("members", members)
}

// ---- Benchmarks ----

func benchmarkFormats(b *testing.B, n int) {
	ctx := context.Background()
	m := newUserModel(b)
	inst := m.sampleGroup(n)
	for _, name := range codec.Names() {
		s, err := codec.New(name, codec.Options{})
		if err != nil {
			b.Fatal(err)
		}
		data, err := s.Marshal(ctx, inst)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(name+"/marshal", func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(data)))
			for i := 0; i < b.N; i++ {
				if _, err := s.Marshal(ctx, inst); err != nil {
					b.Fatal(err)
				}
			}
		})
		b.Run(name+"/unmarshal", func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(data)))
			for i := 0; i < b.N; i++ {
				if _, err := s.Unmarshal(ctx, m.group, data); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func Benchmark_Serialize_Small(b *testing.B) { benchmarkFormats(b, 1) }

func Benchmark_Serialize_Large(b *testing.B) { benchmarkFormats(b, 1000) }
