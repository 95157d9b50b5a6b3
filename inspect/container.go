package inspect

import (
	"fmt"

	"memview/config"
	"memview/layout"
	"memview/pod"
	"memview/process"
	"memview/stl"
	"memview/view"
)

// ContainerState holds the decoded elements of a container or string root.
type ContainerState struct {
	Value any
}

type decodeContainer func(d *stl.Decoder, addr process.ProcessMemoryAddress) (any, error)

// ContainerView is a root whose address points at a container header or a
// string header.
type ContainerView struct {
	name string
	kind string
	obj  *view.Object[ContainerState]
}

// NewContainerView returns an unbound view of a container of scalar
// elements, or of a string when kind is string or wstring. key is only used
// by maps.
func NewContainerView(env *Env, name, kind string, key, element layout.FieldType, alwaysRefresh bool) (*ContainerView, error) {
	decode, err := containerDecoder(kind, key, element)
	if err != nil {
		return nil, fmt.Errorf("root %q: %w", name, err)
	}

	var options []view.Option[ContainerState]
	if alwaysRefresh {
		options = append(options, view.AlwaysRefresh[ContainerState]())
	}
	d := env.Decoder
	obj := view.New(env.Reader(), func(_ *pod.Reader, addr process.ProcessMemoryAddress, state *ContainerState, _ bool) error {
		v, err := decode(d, addr)
		if err != nil {
			return err
		}
		state.Value = v
		return nil
	}, options...)

	return &ContainerView{name: name, kind: kind, obj: obj}, nil
}

func containerDecoder(kind string, key, element layout.FieldType) (decodeContainer, error) {
	switch kind {
	case config.KindString, config.KindWString:
		width := 1
		if kind == config.KindWString {
			width = 2
		}
		return func(d *stl.Decoder, addr process.ProcessMemoryAddress) (any, error) {
			return stl.StringAt(d, addr, width)
		}, nil
	}

	ops, err := opsOf(element)
	if err != nil {
		return nil, err
	}
	switch kind {
	case config.KindVector:
		return withHeader(ops.vector), nil
	case config.KindList:
		return withHeader(ops.list), nil
	case config.KindBuckets:
		return withHeader(ops.buckets), nil
	case config.KindMap:
		keyOps, err := opsOf(key)
		if err != nil {
			return nil, err
		}
		tree, ok := keyOps.tree(element)
		if !ok {
			return nil, fmt.Errorf("unsupported map value type %q", element)
		}
		return withHeader(tree), nil
	}
	return nil, fmt.Errorf("unknown container kind %q", kind)
}

// withHeader reads the native header at the root address before decoding.
func withHeader[H any](fn func(*stl.Decoder, H) (any, error)) decodeContainer {
	return func(d *stl.Decoder, addr process.ProcessMemoryAddress) (any, error) {
		hdr, err := pod.ReadStruct[H](d.Reader(), addr)
		if err != nil {
			return nil, err
		}
		return fn(d, hdr)
	}
}

func (cv *ContainerView) Name() string {
	return cv.name
}

func (cv *ContainerView) Kind() string {
	return cv.kind
}

func (cv *ContainerView) SetAddress(addr process.ProcessMemoryAddress) error {
	return cv.obj.SetAddress(addr)
}

func (cv *ContainerView) Refresh() error {
	return cv.obj.Refresh()
}

func (cv *ContainerView) Address() process.ProcessMemoryAddress {
	return cv.obj.Address()
}

func (cv *ContainerView) Err() error {
	return cv.obj.Err()
}

func (cv *ContainerView) Decodes() uint64 {
	return cv.obj.Decodes()
}

// Value returns the decoded elements: a slice for vectors, lists and
// buckets, a slice of layout.Pair for maps, a string for strings. It is nil
// while unbound.
func (cv *ContainerView) Value() any {
	return cv.obj.Snapshot().Value
}

func (cv *ContainerView) Snapshot() any {
	return cv.Value()
}

// New builds the view of a configured root.
func New(env *Env, root config.Root) (View, error) {
	if root.Kind == config.KindStruct {
		sv, err := NewStructView(env, root.Name, root.Layout, StructOptions{
			AlwaysRefresh: root.AlwaysRefresh,
			Strict:        root.Strict,
		})
		if err != nil {
			return nil, err
		}
		return sv, nil
	}
	cv, err := NewContainerView(env, root.Name, root.Kind, root.Key, root.Element, root.AlwaysRefresh)
	if err != nil {
		return nil, err
	}
	return cv, nil
}
