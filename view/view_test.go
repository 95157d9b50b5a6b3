package view

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"memview/pod"
	"memview/process"
	"memview/process_blob"

	"github.com/google/go-cmp/cmp"
)

const base = process.ProcessMemoryAddress(0x140000000)

type entity struct {
	Name     string
	Health   uint32
	Resolved bool
}

func entityDefaults(e *entity) {
	e.Name = "<none>"
}

// fixture holds two entities: {id 1, health 50} at base and {id 2, health 75} at base+0x10.
func fixture() (*process_blob.ProcessDump, *pod.Reader) {
	data := make([]byte, 0x20)
	copy(data[0x00:], pod.Encode([2]uint32{1, 50}))
	copy(data[0x10:], pod.Encode([2]uint32{2, 75}))
	dump := process_blob.NewProcessDump()
	dump.AddRegion(base, data, "rw-p")
	return dump, pod.NewReader(dump, pod.Limits{})
}

// decodeEntity reads the name only on address change.
func decodeEntity(nameReads *atomic.Int64) DecodeFunc[entity] {
	return func(r *pod.Reader, addr process.ProcessMemoryAddress, e *entity, addressChanged bool) error {
		raw, err := pod.ReadStruct[[2]uint32](r, addr)
		if err != nil {
			return err
		}
		if addressChanged {
			nameReads.Add(1)
			e.Name = map[uint32]string{1: "alpha", 2: "beta"}[raw[0]]
		}
		e.Health = raw[1]
		e.Resolved = true
		return nil
	}
}

func TestSetAddressDecodesOncePerAddress(t *testing.T) {
	_, r := fixture()
	var names atomic.Int64
	obj := New(r, decodeEntity(&names), WithReset(entityDefaults))

	if diff := cmp.Diff(entity{Name: "<none>"}, obj.Snapshot()); diff != "" {
		t.Errorf("unbound state (-want +got):\n%s", diff)
	}

	for range 2 {
		if err := obj.SetAddress(base); err != nil {
			t.Fatalf("SetAddress: %v", err)
		}
	}
	if obj.Decodes() != 1 {
		t.Errorf("decodes = %d after setting the same address twice, want 1", obj.Decodes())
	}
	if diff := cmp.Diff(entity{Name: "alpha", Health: 50, Resolved: true}, obj.Snapshot()); diff != "" {
		t.Errorf("bound state (-want +got):\n%s", diff)
	}

	if err := obj.SetAddress(base + 0x10); err != nil {
		t.Fatalf("SetAddress: %v", err)
	}
	if got := obj.Snapshot(); got.Name != "beta" || got.Health != 75 {
		t.Errorf("after re-address = %+v", got)
	}
	if names.Load() != 2 {
		t.Errorf("name reads = %d, want 2", names.Load())
	}

	if err := obj.SetAddress(0); err != nil {
		t.Fatalf("SetAddress(0): %v", err)
	}
	if obj.Bound() {
		t.Error("object still bound after SetAddress(0)")
	}
	if diff := cmp.Diff(entity{Name: "<none>"}, obj.Snapshot()); diff != "" {
		t.Errorf("state after unbind (-want +got):\n%s", diff)
	}
}

func TestAlwaysRefresh(t *testing.T) {
	dump, r := fixture()
	var names atomic.Int64
	obj := New(r, decodeEntity(&names), AlwaysRefresh[entity]())

	obj.SetAddress(base)
	if err := dump.Patch(base+4, pod.Encode(uint32(10))); err != nil {
		t.Fatal(err)
	}
	if err := obj.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if obj.Decodes() != 2 {
		t.Errorf("decodes = %d, want 2", obj.Decodes())
	}
	if got := obj.Snapshot(); got.Health != 10 || got.Name != "alpha" {
		t.Errorf("refreshed state = %+v", got)
	}
	if names.Load() != 1 {
		t.Errorf("identity re-read on refresh: %d reads", names.Load())
	}
}

func TestRefreshWithoutChangeIsCheap(t *testing.T) {
	dump, r := fixture()
	var names atomic.Int64
	obj := New(r, decodeEntity(&names))

	obj.SetAddress(base)
	dump.Patch(base+4, pod.Encode(uint32(10)))
	obj.Refresh()

	if obj.Decodes() != 1 || obj.Snapshot().Health != 50 {
		t.Errorf("decodes = %d health = %d, want one decode and stale health", obj.Decodes(), obj.Snapshot().Health)
	}
}

func TestDecodeFailureKeepsLastKnownGood(t *testing.T) {
	_, r := fixture()
	var names atomic.Int64
	var fail atomic.Bool
	decode := decodeEntity(&names)
	obj := New(r, func(r *pod.Reader, addr process.ProcessMemoryAddress, e *entity, changed bool) error {
		if fail.Load() {
			e.Health = 999
			return r.ReportCorrupt(addr, "forced")
		}
		return decode(r, addr, e, changed)
	}, AlwaysRefresh[entity]())

	obj.SetAddress(base)
	fail.Store(true)
	err := obj.Refresh()
	if !errors.Is(err, process.ErrCorruptData) {
		t.Fatalf("Refresh error = %v", err)
	}
	if got := obj.Snapshot(); got.Health != 50 || got.Name != "alpha" {
		t.Errorf("state after failed decode = %+v, want last known good", got)
	}
	if obj.Err() == nil || obj.Address() != base {
		t.Errorf("Err = %v Address = %s", obj.Err(), obj.Address())
	}

	fail.Store(false)
	if err := obj.Refresh(); err != nil || obj.Err() != nil {
		t.Errorf("recovery: %v / %v", err, obj.Err())
	}
}

func TestFailedAddressChangeIsRetried(t *testing.T) {
	_, r := fixture()
	var names atomic.Int64
	obj := New(r, decodeEntity(&names))

	// nothing is mapped at base+0x1000
	if err := obj.SetAddress(base + 0x1000); err == nil {
		t.Fatal("decode at unmapped address succeeded")
	}
	if obj.Address() != base+0x1000 {
		t.Errorf("Address = %s", obj.Address())
	}

	// same address again: retried because the last decode failed
	obj.SetAddress(base + 0x1000)
	if obj.Decodes() != 2 {
		t.Errorf("decodes = %d, want 2", obj.Decodes())
	}
}

func TestCollectionReconcile(t *testing.T) {
	_, r := fixture()
	var names atomic.Int64
	var created []string
	var mu sync.Mutex

	for _, parallel := range []int{0, 4} {
		created = nil
		c := NewCollection(func(key string) *Object[entity] {
			mu.Lock()
			created = append(created, key)
			mu.Unlock()
			return New(r, decodeEntity(&names))
		}, parallel)

		if err := c.Reconcile(map[string]process.ProcessMemoryAddress{"a": base, "b": base + 0x10}); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		a, _ := c.Get("a")

		// b vanishes, a moves, c is new and zero-addressed
		if err := c.Reconcile(map[string]process.ProcessMemoryAddress{"a": base + 0x10, "c": 0}); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}

		if diff := cmp.Diff([]string{"a"}, c.Keys()); diff != "" {
			t.Errorf("parallel %d: keys (-want +got):\n%s", parallel, diff)
		}
		if again, _ := c.Get("a"); again != a {
			t.Errorf("parallel %d: survivor was recreated", parallel)
		}
		if a.Snapshot().Name != "beta" {
			t.Errorf("parallel %d: survivor not re-addressed: %+v", parallel, a.Snapshot())
		}
		if len(created) != 2 {
			t.Errorf("parallel %d: created = %v", parallel, created)
		}

		err := c.Reconcile(map[string]process.ProcessMemoryAddress{"a": base, "bad": base + 0x1000})
		if err == nil || c.Len() != 2 {
			t.Errorf("parallel %d: failing child: err %v len %d", parallel, err, c.Len())
		}
		if snap := Snapshot(c); snap["a"].Name != "alpha" {
			t.Errorf("parallel %d: sibling of failing child = %+v", parallel, snap["a"])
		}
	}
}

func TestCache(t *testing.T) {
	c := NewCache[process.ProcessMemoryAddress, string]()
	loads := 0
	load := func(addr process.ProcessMemoryAddress) (string, error) {
		loads++
		if addr == 0 {
			return "", process.ErrInvalidAddress
		}
		return addr.String(), nil
	}

	for range 3 {
		if v, err := c.GetOrLoad(base, load); err != nil || v != "0x140000000" {
			t.Fatalf("GetOrLoad = %q, %v", v, err)
		}
	}
	if _, err := c.GetOrLoad(0, load); err == nil {
		t.Error("failing load returned no error")
	}
	if loads != 2 || c.Len() != 1 {
		t.Errorf("loads = %d len = %d", loads, c.Len())
	}

	c.Clear()
	if _, ok := c.Get(base); ok || c.Len() != 0 {
		t.Error("Clear left entries")
	}
}

func TestGuardSkipsOverlap(t *testing.T) {
	var g Guard
	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		g.Do(func() error {
			close(inside)
			<-release
			return nil
		})
		close(done)
	}()

	<-inside
	ran, _ := g.Do(func() error { return nil })
	if ran {
		t.Error("overlapping Do ran")
	}
	close(release)
	<-done

	ran, err := g.Do(func() error { return errors.New("boom") })
	if !ran || err == nil {
		t.Errorf("Do after release = %v, %v", ran, err)
	}
	if g.Skipped() != 1 {
		t.Errorf("Skipped = %d", g.Skipped())
	}
}
