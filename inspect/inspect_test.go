package inspect

import (
	"errors"
	"testing"

	"memview/config"
	"memview/layout"
	"memview/pod"
	"memview/process"
	"memview/process_blob"
	"memview/stl"

	"github.com/google/go-cmp/cmp"
)

const base = process.ProcessMemoryAddress(0x140000000)

func at(off uint64) uint64 {
	return uint64(base) + off
}

func put[T any](data []byte, off uint64, v T) {
	copy(data[off:], pod.Encode(v))
}

func inline(s string) layout.String {
	var h layout.String
	copy(h.Buffer[:], s)
	h.Length = uint64(len(s))
	h.Capacity = 15
	return h
}

var schema = layout.Schema{
	"world": {Size: 0x20, Fields: map[string]layout.Field{
		"tick":  {Offset: 0x00, Type: layout.U64},
		"units": {Offset: 0x08, Type: layout.StdVector, Element: layout.Pointer, Child: "unit"},
	}},
	"unit": {Size: 0x40, Fields: map[string]layout.Field{
		"id":    {Offset: 0x00, Type: layout.U32},
		"hp":    {Offset: 0x04, Type: layout.F32},
		"alive": {Offset: 0x08, Type: layout.Bool},
		"state": {Offset: 0x09, Type: layout.Enum, Element: layout.U8, Variants: map[string]int64{"idle": 0, "moving": 1}},
		"kind":  {Offset: 0x10, Type: layout.NameRef},
		"name":  {Offset: 0x18, Type: layout.StdString, Identity: true},
	}},
}

// fixture lays out a world at 0x000 holding two units (0x100, 0x200) through
// a pointer array at 0x400, a u32 vector header at 0x500, and a one-node
// map<u32,u32> whose header is at 0xA00.
func fixture(t *testing.T) (*process_blob.ProcessDump, *Env) {
	t.Helper()
	if err := schema.Validate(); err != nil {
		t.Fatal(err)
	}

	data := make([]byte, 0x1000)
	put(data, 0x000, uint64(42))
	put(data, 0x008, layout.Vector{First: at(0x400), Last: at(0x410), End: at(0x410)})
	put(data, 0x400, [2]uint64{at(0x100), at(0x200)})

	put(data, 0x100, uint32(1))
	put(data, 0x104, float32(10.5))
	put(data, 0x108, uint8(1))
	put(data, 0x109, uint8(1))
	put(data, 0x110, at(0x800))
	put(data, 0x118, inline("Grunt"))

	put(data, 0x200, uint32(2))
	put(data, 0x204, float32(3))
	put(data, 0x210, at(0x800))
	put(data, 0x218, inline("Peon"))

	copy(data[0x800:], "orc\x00")

	put(data, 0x500, layout.Vector{First: at(0x600), Last: at(0x60C), End: at(0x60C)})
	put(data, 0x600, [3]uint32{5, 6, 7})

	put(data, 0x900, layout.TreeNode[uint32, uint32]{Left: at(0x980), Parent: at(0x980), Right: at(0x980), IsNil: 1})
	put(data, 0x980, layout.TreeNode[uint32, uint32]{Left: at(0x900), Parent: at(0x900), Right: at(0x900), Pair: layout.Pair[uint32, uint32]{Key: 7, Value: 70}})
	put(data, 0xA00, layout.Map{Head: at(0x900), Size: 1})

	dump := process_blob.NewProcessDump()
	dump.AddRegion(base, data, "rw-p")
	d := stl.NewDecoder(pod.NewReader(dump, pod.Limits{}), stl.Limits{})
	return dump, NewEnv(d, schema, 2)
}

func TestStructViewWithChildren(t *testing.T) {
	_, env := fixture(t)
	world, err := NewStructView(env, "world", "world", StructOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := world.SetAddress(base); err != nil {
		t.Fatalf("SetAddress: %v", err)
	}

	if got := world.Fields()["tick"]; got != uint64(42) {
		t.Errorf("tick = %v", got)
	}

	wantUnits := []map[string]any{
		{"id": uint32(1), "hp": float32(10.5), "alive": true, "state": "moving", "kind": "orc", "name": "Grunt"},
		{"id": uint32(2), "hp": float32(3), "alive": false, "state": "idle", "kind": "orc", "name": "Peon"},
	}
	for i, want := range wantUnits {
		child, ok := world.Child("units", i)
		if !ok {
			t.Fatalf("unit %d missing", i)
		}
		if diff := cmp.Diff(want, child.Fields()); diff != "" {
			t.Errorf("unit %d (-want +got):\n%s", i, diff)
		}
	}
	if env.Names.Len() != 1 {
		t.Errorf("name cache holds %d entries, want 1", env.Names.Len())
	}

	snap := world.Snapshot().(map[string]any)
	if units, ok := snap["units"].([]any); !ok || len(units) != 2 {
		t.Errorf("snapshot units = %#v", snap["units"])
	}
	if snap["_addr"] != base {
		t.Errorf("snapshot _addr = %v", snap["_addr"])
	}
}

func TestStructViewReconcilesChildren(t *testing.T) {
	dump, env := fixture(t)
	world, _ := NewStructView(env, "world", "world", StructOptions{AlwaysRefresh: true})
	world.SetAddress(base)
	first, _ := world.Child("units", 0)

	// slot 0 now holds the second unit and slot 1 is gone
	dump.Patch(base+0x008, pod.Encode(layout.Vector{First: at(0x400), Last: at(0x408), End: at(0x410)}))
	dump.Patch(base+0x400, pod.Encode(at(0x200)))
	if err := world.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	again, ok := world.Child("units", 0)
	if !ok || again != first {
		t.Fatal("slot 0 was recreated instead of re-addressed")
	}
	if got := again.Fields()["name"]; got != "Peon" {
		t.Errorf("slot 0 name = %v", got)
	}
	if _, ok := world.Child("units", 1); ok {
		t.Error("slot 1 survived")
	}

	world.SetAddress(0)
	if _, ok := world.Child("units", 0); ok {
		t.Error("children survived unbinding the parent")
	}
}

func TestAlwaysRefreshGrandchildBelowStaticChild(t *testing.T) {
	nested := layout.Schema{
		"realm": {Size: 0x10, AlwaysRefresh: true, Fields: map[string]layout.Field{
			"tick":  {Offset: 0x0, Type: layout.U32},
			"squad": {Offset: 0x8, Type: layout.Pointer, Child: "squad"},
		}},
		"squad": {Size: 0x8, Fields: map[string]layout.Field{
			"leader": {Offset: 0x0, Type: layout.Pointer, Child: "stat"},
		}},
		"stat": {Size: 0x8, AlwaysRefresh: true, Fields: map[string]layout.Field{
			"hp": {Offset: 0x0, Type: layout.U32},
		}},
	}
	if err := nested.Validate(); err != nil {
		t.Fatal(err)
	}

	data := make([]byte, 0x300)
	put(data, 0x008, at(0x100))
	put(data, 0x100, at(0x200))
	put(data, 0x200, uint32(100))
	dump := process_blob.NewProcessDump()
	dump.AddRegion(base, data, "rw-p")
	env := NewEnv(stl.NewDecoder(pod.NewReader(dump, pod.Limits{}), stl.Limits{}), nested, 1)

	realm, err := NewStructView(env, "realm", "realm", StructOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := realm.SetAddress(base); err != nil {
		t.Fatalf("SetAddress: %v", err)
	}
	squad, ok := realm.Child("squad", 0)
	if !ok {
		t.Fatal("squad missing")
	}
	stat, ok := squad.Child("leader", 0)
	if !ok {
		t.Fatal("leader missing")
	}

	dump.Patch(base+0x200, pod.Encode(uint32(5)))
	if err := realm.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if got := stat.Fields()["hp"]; got != uint32(5) {
		t.Errorf("hp = %v after refresh, want 5", got)
	}
	if realm.Decodes() != 2 || squad.Decodes() != 1 || stat.Decodes() != 2 {
		t.Errorf("decodes realm %d squad %d stat %d, want 2 1 2", realm.Decodes(), squad.Decodes(), stat.Decodes())
	}
}

func TestIdentityFieldsReadOncePerAddress(t *testing.T) {
	dump, env := fixture(t)
	unit, _ := NewStructView(env, "unit", "unit", StructOptions{AlwaysRefresh: true})
	unit.SetAddress(base + 0x100)

	dump.Patch(base+0x118, pod.Encode(inline("Boss")))
	dump.Patch(base+0x104, pod.Encode(float32(1)))
	if err := unit.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	fields := unit.Fields()
	if fields["name"] != "Grunt" || fields["hp"] != float32(1) {
		t.Errorf("after refresh name = %v hp = %v", fields["name"], fields["hp"])
	}

	unit.SetAddress(base + 0x200)
	unit.SetAddress(base + 0x100)
	if got := unit.Fields()["name"]; got != "Boss" {
		t.Errorf("name after re-address = %v", got)
	}
}

func TestUnknownVariant(t *testing.T) {
	dump, env := fixture(t)
	dump.Patch(base+0x109, []byte{7})

	strict, _ := NewStructView(env, "unit", "unit", StructOptions{Strict: true})
	if err := strict.SetAddress(base + 0x100); !errors.Is(err, process.ErrUnknownVariant) {
		t.Errorf("strict error = %v", err)
	}
	if got := strict.Fields()["state"]; got != nil {
		t.Errorf("strict view kept a partial decode: %v", got)
	}

	lenient, _ := NewStructView(env, "unit", "unit", StructOptions{})
	if err := lenient.SetAddress(base + 0x100); err != nil {
		t.Fatalf("lenient: %v", err)
	}
	if got := lenient.Fields()["state"]; got != "unknown(0x7)" {
		t.Errorf("lenient state = %v", got)
	}
}

func TestRootViews(t *testing.T) {
	_, env := fixture(t)
	tests := []struct {
		root config.Root
		addr uint64
		want any
	}{
		{config.Root{Name: "ids", Kind: config.KindVector, Element: layout.U32}, 0x500, []uint32{5, 6, 7}},
		{config.Root{Name: "units", Kind: config.KindVector, Element: layout.Pointer}, 0x008,
			[]process.ProcessMemoryAddress{base + 0x100, base + 0x200}},
		{config.Root{Name: "name", Kind: config.KindString}, 0x118, "Grunt"},
		{config.Root{Name: "lookup", Kind: config.KindMap, Key: layout.U32, Element: layout.U32}, 0xA00,
			[]layout.Pair[uint32, uint32]{{Key: 7, Value: 70}}},
	}
	for _, tt := range tests {
		v, err := New(env, tt.root)
		if err != nil {
			t.Fatalf("%s: New: %v", tt.root.Name, err)
		}
		if err := v.SetAddress(process.ProcessMemoryAddress(at(tt.addr))); err != nil {
			t.Errorf("%s: SetAddress: %v", tt.root.Name, err)
			continue
		}
		if diff := cmp.Diff(tt.want, v.Snapshot()); diff != "" {
			t.Errorf("%s (-want +got):\n%s", tt.root.Name, diff)
		}
	}
}

func TestRootViewErrors(t *testing.T) {
	_, env := fixture(t)
	if _, err := New(env, config.Root{Name: "x", Kind: config.KindStruct, Layout: "missing"}); err == nil {
		t.Error("missing layout accepted")
	}
	if _, err := New(env, config.Root{Name: "x", Kind: config.KindMap, Key: layout.StdString, Element: layout.U32}); err == nil {
		t.Error("string map key accepted")
	}

	v, _ := New(env, config.Root{Name: "ids", Kind: config.KindVector, Element: layout.U32})
	if err := v.SetAddress(base + 0x5000); err == nil || v.Err() == nil {
		t.Errorf("read outside the image: %v", err)
	}
}
