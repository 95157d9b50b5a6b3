package inspect

import (
	"fmt"

	"memview/layout"
	"memview/pod"
	"memview/process"
	"memview/process_blob"
	"memview/stl"
	"memview/view"
)

// StructState is the decoded content of one remote struct.
type StructState struct {
	Fields map[string]any
}

// StructView decodes a struct described by the schema. The struct is fetched
// with one read of its full size and the fields are picked out of that blob.
// Identity fields are decoded only when the address changes. Pointer and
// vector-of-pointer fields with a child layout own a keyed collection of
// child StructViews, reconciled after the parent's own fields. A child whose
// address did not change still refreshes its own children.
type StructView struct {
	name   string
	env    *Env
	layout layout.Struct
	strict bool

	obj      *view.Object[StructState]
	children map[string]*childSet
}

// childSet is the collection behind one child field, keyed by slot index.
type childSet struct {
	coll *view.Collection[int, *StructView]
}

// StructOptions configures a StructView.
type StructOptions struct {
	// AlwaysRefresh re-reads the struct on every refresh. A layout marked
	// always_refresh forces it as well.
	AlwaysRefresh bool
	// Strict turns unknown enum variants into decode errors.
	Strict bool
}

// MaxChildDepth bounds how deep child layouts are followed. Fields below it
// keep their raw pointer values, which stops self-referencing layouts.
const MaxChildDepth = 8

// NewStructView returns an unbound view of the named layout.
func NewStructView(env *Env, name, layoutName string, opts StructOptions) (*StructView, error) {
	return newStructView(env, name, layoutName, opts, 0)
}

func newStructView(env *Env, name, layoutName string, opts StructOptions, depth int) (*StructView, error) {
	st, err := env.Schema.Lookup(layoutName)
	if err != nil {
		return nil, err
	}

	sv := &StructView{
		name:     name,
		env:      env,
		layout:   st,
		strict:   opts.Strict,
		children: make(map[string]*childSet),
	}

	for fieldName, f := range st.Fields {
		if f.Child == "" || depth >= MaxChildDepth {
			continue
		}
		childLayout := f.Child
		childName := name + "." + fieldName
		sv.children[fieldName] = &childSet{
			coll: view.NewCollection(func(key int) *StructView {
				// the schema was validated, so the child layout exists
				child, _ := newStructView(env, fmt.Sprintf("%s[%d]", childName, key), childLayout, StructOptions{Strict: opts.Strict}, depth+1)
				return child
			}, env.Parallel),
		}
	}

	options := []view.Option[StructState]{}
	if opts.AlwaysRefresh || st.AlwaysRefresh {
		options = append(options, view.AlwaysRefresh[StructState]())
	}
	sv.obj = view.New(env.Reader(), sv.decode, options...)
	return sv, nil
}

func (sv *StructView) Name() string {
	return sv.name
}

func (sv *StructView) SetAddress(addr process.ProcessMemoryAddress) error {
	before := sv.obj.Decodes()
	err := sv.obj.SetAddress(addr)
	if addr == 0 {
		sv.unbindChildren()
	} else if sv.obj.Decodes() == before {
		sv.refreshChildren()
	}
	return err
}

// Refresh re-applies the current address. When the struct itself is not
// re-read its children are still refreshed, so always-refreshing children
// below a static parent stay current.
func (sv *StructView) Refresh() error {
	return sv.SetAddress(sv.obj.Address())
}

func (sv *StructView) Address() process.ProcessMemoryAddress {
	return sv.obj.Address()
}

func (sv *StructView) Err() error {
	return sv.obj.Err()
}

// Decodes returns how many times the struct itself has been decoded.
func (sv *StructView) Decodes() uint64 {
	return sv.obj.Decodes()
}

// Child returns the child view at key of a child field.
func (sv *StructView) Child(field string, key int) (*StructView, bool) {
	cs, ok := sv.children[field]
	if !ok {
		return nil, false
	}
	return cs.coll.Get(key)
}

// Fields returns a copy of the decoded field values.
func (sv *StructView) Fields() map[string]any {
	state := sv.obj.Snapshot()
	out := make(map[string]any, len(state.Fields))
	for k, v := range state.Fields {
		out[k] = v
	}
	return out
}

// Snapshot returns the decoded fields with "_addr" and, for child fields,
// the snapshots of the children in key order.
func (sv *StructView) Snapshot() any {
	out := sv.Fields()
	out["_addr"] = sv.obj.Address()
	if err := sv.obj.Err(); err != nil {
		out["_error"] = err.Error()
	}
	for fieldName, cs := range sv.children {
		f := sv.layout.Fields[fieldName]
		keys := cs.coll.Keys()
		if f.Type == layout.Pointer {
			out[fieldName] = nil
			if len(keys) > 0 {
				if child, ok := sv.Child(fieldName, keys[0]); ok {
					out[fieldName] = child.Snapshot()
				}
			}
			continue
		}
		list := make([]any, 0, len(keys))
		for _, key := range keys {
			if child, ok := sv.Child(fieldName, key); ok {
				list = append(list, child.Snapshot())
			}
		}
		out[fieldName] = list
	}
	return out
}

func (sv *StructView) decode(r *pod.Reader, addr process.ProcessMemoryAddress, state *StructState, addressChanged bool) error {
	blob, err := r.ReadBlob(addr, process.ProcessMemorySize(sv.layout.Size))
	if err != nil {
		return err
	}

	fields := make(map[string]any, len(sv.layout.Fields))
	childAddrs := make(map[string]map[int]process.ProcessMemoryAddress)
	for _, name := range sv.layout.FieldNames() {
		f := sv.layout.Fields[name]
		if f.Identity && !addressChanged {
			if v, ok := state.Fields[name]; ok {
				fields[name] = v
				continue
			}
		}

		v, err := sv.decodeField(blob, name, f)
		if err != nil {
			return fmt.Errorf("%s.%s at %s: %w", sv.name, name, addr.Add(process.ProcessMemorySize(f.Offset)), err)
		}
		fields[name] = v

		if _, ok := sv.children[name]; !ok {
			continue
		}
		switch ptrs := v.(type) {
		case process.ProcessMemoryAddress:
			childAddrs[name] = map[int]process.ProcessMemoryAddress{0: ptrs}
		case []process.ProcessMemoryAddress:
			m := make(map[int]process.ProcessMemoryAddress, len(ptrs))
			for i, p := range ptrs {
				m[i] = p
			}
			childAddrs[name] = m
		}
	}
	state.Fields = fields

	for name, addrs := range childAddrs {
		cs := sv.children[name]
		if err := cs.coll.Reconcile(addrs); err != nil {
			sv.env.log.Debugln(sv.name, ".", name, ": ", err)
		}
	}
	return nil
}

func (sv *StructView) decodeField(blob *process_blob.ProcessBlob, name string, f layout.Field) (any, error) {
	off := process.ProcessMemorySize(f.Offset)
	switch f.Type {
	case layout.U8:
		return blob.OffsetUINT8(off)
	case layout.U16:
		return blob.OffsetUINT16(off)
	case layout.U32:
		return blob.OffsetUINT32(off)
	case layout.U64:
		return blob.OffsetUINT64(off)
	case layout.I32:
		return blob.OffsetINT32(off)
	case layout.I64:
		return blob.OffsetINT64(off)
	case layout.F32:
		return blob.OffsetFLOAT32(off)
	case layout.F64:
		return blob.OffsetFLOAT64(off)
	case layout.Bool:
		b, err := blob.OffsetUINT8(off)
		return b != 0, err
	case layout.Pointer:
		return blob.OffsetPOINTER(off)
	case layout.NameRef, layout.WNameRef:
		ptr, err := blob.OffsetPOINTER(off)
		if err != nil {
			return nil, err
		}
		return sv.env.name(ptr, f.Type == layout.WNameRef)
	case layout.StdString, layout.StdWString:
		hdr, err := headerAt[layout.String](blob, off)
		if err != nil {
			return nil, err
		}
		if f.Type == layout.StdWString {
			return stl.WString(sv.env.Decoder, hdr)
		}
		return stl.String(sv.env.Decoder, hdr)
	case layout.StdVector:
		hdr, err := headerAt[layout.Vector](blob, off)
		if err != nil {
			return nil, err
		}
		ops, err := opsOf(f.Element)
		if err != nil {
			return nil, err
		}
		return ops.vector(sv.env.Decoder, hdr)
	case layout.Enum:
		return sv.decodeEnum(blob, name, f)
	}
	return nil, fmt.Errorf("unsupported field type %q", f.Type)
}

func (sv *StructView) decodeEnum(blob *process_blob.ProcessBlob, name string, f layout.Field) (string, error) {
	off := process.ProcessMemorySize(f.Offset)
	var value int64
	switch f.EnumType() {
	case layout.U8:
		v, err := blob.OffsetUINT8(off)
		if err != nil {
			return "", err
		}
		value = int64(v)
	case layout.U16:
		v, err := blob.OffsetUINT16(off)
		if err != nil {
			return "", err
		}
		value = int64(v)
	case layout.I32:
		v, err := blob.OffsetINT32(off)
		if err != nil {
			return "", err
		}
		value = int64(v)
	default:
		v, err := blob.OffsetUINT32(off)
		if err != nil {
			return "", err
		}
		value = int64(v)
	}

	variant, err := f.Variant(value)
	if err != nil {
		if sv.strict {
			return "", err
		}
		sv.env.log.Warn(sv.name, ".", name, ": ", err)
	}
	return variant, nil
}

// headerAt copies a native header out of a blob.
func headerAt[T any](blob *process_blob.ProcessBlob, off process.ProcessMemorySize) (T, error) {
	sub, err := blob.OffsetBlob(off, layout.SizeOf[T]())
	if err != nil {
		var zero T
		return zero, err
	}
	return pod.Decode[T](sub.Data()), nil
}

func (sv *StructView) refreshChildren() {
	for name, cs := range sv.children {
		for _, key := range cs.coll.Keys() {
			child, ok := cs.coll.Get(key)
			if !ok {
				continue
			}
			if err := child.Refresh(); err != nil {
				sv.env.log.Debugln(sv.name, ".", name, ": ", err)
			}
		}
	}
}

func (sv *StructView) unbindChildren() {
	for _, cs := range sv.children {
		cs.coll.Reconcile(nil)
	}
}
