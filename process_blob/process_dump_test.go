package process_blob

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"memview/process"
	"memview/process/memory_map"

	"github.com/google/go-cmp/cmp"
)

const base = process.ProcessMemoryAddress(0x140000000)

func TestProcessDumpReadMemory(t *testing.T) {
	dump := NewProcessDump()
	dump.AddRegion(base, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}, "r--p")
	dump.AddRegion(base+0x1000, []byte{0xAA, 0xBB}, "---p")

	tests := []struct {
		name    string
		addr    process.ProcessMemoryAddress
		size    process.ProcessMemorySize
		want    []byte
		wantErr error
	}{
		{name: "read from start", addr: base, size: 4, want: []byte{0x01, 0x02, 0x03, 0x04}},
		{name: "read to end", addr: base + 6, size: 2, want: []byte{0x07, 0x08}},
		{name: "partial read beyond end", addr: base + 7, size: 4, want: []byte{0x08}, wantErr: process.ErrPartialRead},
		{name: "null address", addr: 0, size: 4, wantErr: process.ErrInvalidAddress},
		{name: "unmapped", addr: base + 0x100, size: 4, wantErr: process.ErrAddressNotMapped},
		{name: "protected region", addr: base + 0x1000, size: 1, wantErr: process.ErrOsReadFailure},
		{name: "zero size", addr: base, size: 0, want: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dump.ReadMemory(tt.addr, tt.size)
			if !errors.Is(err, tt.wantErr) || (err != nil && tt.wantErr == nil) {
				t.Fatalf("ReadMemory error = %v, want %v", err, tt.wantErr)
			}
			if tt.want != nil {
				if diff := cmp.Diff(tt.want, got); diff != "" {
					t.Errorf("ReadMemory mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestProcessDumpPatch(t *testing.T) {
	dump := NewProcessDump()
	dump.AddRegion(base, make([]byte, 8), "rw-p")

	if err := dump.Patch(base+2, []byte{0xDE, 0xAD}); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	got, _ := dump.ReadMemory(base, 4)
	if diff := cmp.Diff([]byte{0, 0, 0xDE, 0xAD}, got); diff != "" {
		t.Errorf("after Patch (-want +got):\n%s", diff)
	}

	if err := dump.Patch(base+7, []byte{1, 2}); err == nil {
		t.Error("Patch across the region end succeeded")
	}
}

func TestProcessDumpLoad(t *testing.T) {
	dir := t.TempDir()

	region := memory_map.MemoryMapItem{Address: uint64(base), Size: 4, Perms: "r-xp"}
	missing := memory_map.MemoryMapItem{Address: uint64(base) + 0x1000, Size: 4, Perms: "rw-p"}

	writeJSON := func(name string, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	writeJSON(MetadataFile, DumpMetadata{PID: 42, Name: "game.exe", ModuleBase: uint64(base), ModuleSize: 4})
	writeJSON(MemoryMapFile, []memory_map.MemoryMapItem{missing, region})
	if err := os.WriteFile(filepath.Join(dir, BlobFileName(region)), []byte{9, 8, 7, 6}, 0644); err != nil {
		t.Fatal(err)
	}

	dump := NewProcessDump()
	if err := dump.Load(dir); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if dump.GetPID() != 42 || dump.Name != "game.exe" {
		t.Errorf("metadata = pid %d name %q", dump.GetPID(), dump.Name)
	}
	mod, err := dump.MainModule()
	if err != nil || mod.Address != uint64(base) || mod.Size != 4 {
		t.Errorf("MainModule = %+v, %v", mod, err)
	}

	got, err := dump.ReadMemory(base+1, 2)
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	if diff := cmp.Diff([]byte{8, 7}, got); diff != "" {
		t.Errorf("ReadMemory mismatch (-want +got):\n%s", diff)
	}

	if _, err := dump.ReadMemory(base+0x1000, 1); !errors.Is(err, process.ErrOsReadFailure) {
		t.Errorf("read of unsaved region error = %v, want ErrOsReadFailure", err)
	}
}

func TestProcessBlobOffsets(t *testing.T) {
	data := []byte{
		0x78, 0x56, 0x34, 0x12, // u32
		0x00, 0x00, 0x80, 0x3F, // f32 1.0
		0x00, 0x00, 0x00, 0x40, 0x01, 0x00, 0x00, 0x00, // pointer 0x140000000
	}
	blob := NewProcessBlob(base, data)

	if v, err := blob.OffsetUINT32(0); err != nil || v != 0x12345678 {
		t.Errorf("OffsetUINT32 = 0x%x, %v", v, err)
	}
	if v, err := blob.OffsetFLOAT32(4); err != nil || v != 1.0 {
		t.Errorf("OffsetFLOAT32 = %v, %v", v, err)
	}
	if v := blob.OffsetPOINTER2(8); v != base {
		t.Errorf("OffsetPOINTER2 = %s", v)
	}
	if v := blob.OffsetPOINTER2(12); v != 0 {
		t.Errorf("OffsetPOINTER2 past the end = %s, want 0", v)
	}

	sub, err := blob.OffsetBlob(4, 4)
	if err != nil {
		t.Fatalf("OffsetBlob: %v", err)
	}
	if sub.Address() != base+4 || sub.Len() != 4 {
		t.Errorf("OffsetBlob = %s len %d", sub.Address(), sub.Len())
	}
	if _, err := blob.OffsetUINT64(12); !errors.Is(err, process.ErrPartialRead) {
		t.Errorf("OffsetUINT64 past the end error = %v", err)
	}
}
