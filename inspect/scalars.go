package inspect

import (
	"fmt"

	"memview/layout"
	"memview/process"
	"memview/stl"
)

// containerOps decodes containers of one element type. Go generics are
// resolved at compile time, so the schema's element names are mapped onto
// instantiations here.
type containerOps struct {
	vector  func(d *stl.Decoder, hdr layout.Vector) (any, error)
	list    func(d *stl.Decoder, hdr layout.List) (any, error)
	buckets func(d *stl.Decoder, hdr layout.Buckets) (any, error)
	// tree is indexed by the value type.
	tree func(value layout.FieldType) (func(d *stl.Decoder, hdr layout.Map) (any, error), bool)
}

func opsFor[T any]() containerOps {
	return containerOps{
		vector: func(d *stl.Decoder, hdr layout.Vector) (any, error) {
			return stl.Vector[T](d, hdr)
		},
		list: func(d *stl.Decoder, hdr layout.List) (any, error) {
			return stl.List[T](d, hdr)
		},
		buckets: func(d *stl.Decoder, hdr layout.Buckets) (any, error) {
			return stl.Buckets[T](d, hdr)
		},
		tree: treesKeyedBy[T],
	}
}

func treeFor[K, V any](d *stl.Decoder, hdr layout.Map) (any, error) {
	return stl.Tree[K, V](d, hdr, stl.TreeOptions[K]{})
}

func treesKeyedBy[K any](value layout.FieldType) (func(*stl.Decoder, layout.Map) (any, error), bool) {
	switch value {
	case layout.U8:
		return treeFor[K, uint8], true
	case layout.U16:
		return treeFor[K, uint16], true
	case layout.U32:
		return treeFor[K, uint32], true
	case layout.U64:
		return treeFor[K, uint64], true
	case layout.I32:
		return treeFor[K, int32], true
	case layout.I64:
		return treeFor[K, int64], true
	case layout.F32:
		return treeFor[K, float32], true
	case layout.F64:
		return treeFor[K, float64], true
	case layout.Pointer:
		return treeFor[K, process.ProcessMemoryAddress], true
	}
	return nil, false
}

var elementOps = map[layout.FieldType]containerOps{
	layout.U8:      opsFor[uint8](),
	layout.U16:     opsFor[uint16](),
	layout.U32:     opsFor[uint32](),
	layout.U64:     opsFor[uint64](),
	layout.I32:     opsFor[int32](),
	layout.I64:     opsFor[int64](),
	layout.F32:     opsFor[float32](),
	layout.F64:     opsFor[float64](),
	layout.Pointer: opsFor[process.ProcessMemoryAddress](),
}

func opsOf(elem layout.FieldType) (containerOps, error) {
	ops, ok := elementOps[elem]
	if !ok {
		return containerOps{}, fmt.Errorf("unsupported element type %q", elem)
	}
	return ops, nil
}
