package search

import (
	"testing"

	"memview/pod"
	"memview/process"
	"memview/process_blob"

	"github.com/google/go-cmp/cmp"
)

const base = process.ProcessMemoryAddress(0x140000000)

func fixture() (*process_blob.ProcessDump, *pod.Reader) {
	data := make([]byte, 0x1000)
	copy(data[0x008:], pod.Encode(uint32(0xCAFE)))
	copy(data[0x010:], pod.Encode(uint64(base+0x100)))
	copy(data[0x124:], pod.Encode(uint32(0xCAFE)))
	// back pointer from the child to the base must not loop
	copy(data[0x100:], pod.Encode(uint64(base)))

	dump := process_blob.NewProcessDump()
	dump.AddRegion(base, data, "rw-p")
	return dump, pod.NewReader(dump, pod.Limits{})
}

func TestSearch(t *testing.T) {
	_, r := fixture()
	results, err := Search(r, base, ForValue(uint32(0xCAFE)))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	want := []Result{
		{Path: []process.ProcessMemorySize{0x8}, Address: base + 0x8},
		{Path: []process.ProcessMemorySize{0x10, 0x24}, Address: base + 0x124},
	}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Fatalf("results (-want +got):\n%s", diff)
	}

	for _, res := range results {
		addr, err := r.ResolvePath(base, res.Path...)
		if err != nil || addr != res.Address {
			t.Errorf("path %v resolves to %s, %v; want %s", res.Path, addr, err, res.Address)
		}
	}
}

func TestSearchOptions(t *testing.T) {
	_, r := fixture()

	shallow, _ := Search(r, base, ForValue(uint32(0xCAFE)), WithMaxDepth(0))
	if len(shallow) != 1 {
		t.Errorf("depth 0: %d results", len(shallow))
	}

	limited, _ := Search(r, base, ForValue(uint32(0xCAFE)), WithMaxResults(1))
	if len(limited) != 1 {
		t.Errorf("max results 1: %d results", len(limited))
	}

	if _, err := Search(r, base); err == nil {
		t.Error("search without a value succeeded")
	}
}
