package scanner

import (
	"context"
	"errors"
	"testing"

	"memview/pod"
	"memview/process"
	"memview/process_blob"

	"github.com/google/go-cmp/cmp"
)

const base = process.ProcessMemoryAddress(0x140000000)

func reader(data []byte) *pod.Reader {
	dump := process_blob.NewProcessDump()
	dump.AddRegion(base, data, "r-xp")
	return pod.NewReader(dump, pod.Limits{})
}

// filler returns a buffer that contains none of the test signatures.
func filler(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 7)
	}
	return data
}

func TestParsePattern(t *testing.T) {
	tests := []struct {
		text     string
		skip     int
		wantHex  []byte
		wantMask []bool
		wantSkip int
		wantErr  bool
	}{
		{text: "48 8B 05", wantHex: []byte{0x48, 0x8B, 0x05}, wantMask: []bool{true, true, true}},
		{text: "48,??,?,c3", wantHex: []byte{0x48, 0, 0, 0xC3}, wantMask: []bool{true, false, false, true}},
		{text: "48 8B 05 ^ ?? ?? ?? ??", wantHex: []byte{0x48, 0x8B, 0x05, 0, 0, 0, 0}, wantMask: []bool{true, true, true, false, false, false, false}, wantSkip: 3},
		{text: "48 ^ 8B", skip: 1, wantHex: []byte{0x48, 0x8B}, wantMask: []bool{true, true}, wantSkip: 1},
		{text: "48 ^ 8B", skip: 2, wantErr: true},
		{text: "48 ^ 8B ^ 05", wantErr: true},
		{text: "48 GG", wantErr: true},
		{text: "?? ??", wantErr: true},
		{text: "", wantErr: true},
	}

	for _, tt := range tests {
		p, err := ParsePattern("p", tt.text, tt.skip)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParsePattern(%q) succeeded", tt.text)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePattern(%q): %v", tt.text, err)
			continue
		}
		if diff := cmp.Diff(tt.wantHex, p.Bytes); diff != "" {
			t.Errorf("ParsePattern(%q) bytes (-want +got):\n%s", tt.text, diff)
		}
		if diff := cmp.Diff(tt.wantMask, p.Mask); diff != "" {
			t.Errorf("ParsePattern(%q) mask (-want +got):\n%s", tt.text, diff)
		}
		if p.Skip != tt.wantSkip {
			t.Errorf("ParsePattern(%q) skip = %d, want %d", tt.text, p.Skip, tt.wantSkip)
		}
	}
}

func TestPatternString(t *testing.T) {
	p := MustParsePattern("p", "48 8b ?? c3", 0)
	if got := p.String(); got != "48 8B ?? C3" {
		t.Errorf("String = %q", got)
	}
}

func TestMatchAt(t *testing.T) {
	data := []byte{0x00, 0x48, 0x8B, 0x05, 0x11, 0xC3, 0x00}
	tests := []struct {
		pattern string
		pos     int
		want    bool
	}{
		{"48 8B 05", 1, true},     // odd, middle byte tested first
		{"48 ?? 05", 1, true},     // odd, middle byte wildcard
		{"48 8B 06", 1, false},    // mismatch at the back
		{"47 8B 05", 1, false},    // mismatch at the front
		{"48 8C 05", 1, false},    // mismatch in the middle
		{"48 8B 05 ?? C3", 1, true},
		{"8B 05 11 C3", 2, true},  // even
		{"8B 05 12 C3", 2, false}, // even, inner mismatch
	}
	for _, tt := range tests {
		p := MustParsePattern("p", tt.pattern, 0)
		if got := p.matchAt(data, tt.pos); got != tt.want {
			t.Errorf("%q at %d = %v, want %v", tt.pattern, tt.pos, got, tt.want)
		}
	}
}

func TestScanFindsEveryPattern(t *testing.T) {
	data := filler(0x3000)
	copy(data[0x0100:], []byte{0xDE, 0xAD, 0xBE, 0xEF})
	copy(data[0x1234:], []byte{0x48, 0x8B, 0x05, 0x10, 0x20, 0x30, 0x40, 0xC3})
	copy(data[0x2FFD:], []byte{0xAA, 0xBB, 0xCC})

	patterns := []Pattern{
		MustParsePattern("head", "DE AD BE EF", 0),
		MustParsePattern("global", "48 8B 05 ^ ?? ?? ?? ?? C3", 0),
		MustParsePattern("tail", "AA BB CC", 1),
	}
	want := map[string]process.ProcessMemorySize{
		"head":   0x0100,
		"global": 0x1237,
		"tail":   0x2FFE,
	}

	for _, verify := range []bool{false, true} {
		s := New(WithChunkSize(0x400), WithParallelism(3, 4), WithVerifyUnique(verify))
		table, err := s.Scan(context.Background(), reader(data), base, process.ProcessMemorySize(len(data)), patterns)
		if err != nil {
			t.Fatalf("verify=%v: Scan: %v", verify, err)
		}
		if diff := cmp.Diff(want, table.Offsets); diff != "" {
			t.Errorf("verify=%v: offsets (-want +got):\n%s", verify, diff)
		}
		if addr, _ := table.Address("global"); addr != base+0x1237 {
			t.Errorf("verify=%v: Address(global) = %s", verify, addr)
		}
	}
}

func TestScanMatchAcrossChunkBoundary(t *testing.T) {
	data := filler(0x1000)
	// straddles the 0x400 chunk boundary
	copy(data[0x3FE:], []byte{0x11, 0x22, 0x33, 0x44, 0x55})

	s := New(WithChunkSize(0x400), WithParallelism(2, 2), WithVerifyUnique(true))
	table, err := s.Scan(context.Background(), reader(data), base, 0x1000, []Pattern{
		MustParsePattern("straddle", "11 22 33 44 55", 0),
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if off, _ := table.Offset("straddle"); off != 0x3FE {
		t.Errorf("offset = 0x%x, want 0x3FE", off)
	}
}

func TestScanModuleOfSeveralRegions(t *testing.T) {
	text, rdata := filler(0x1000), filler(0x1000)
	guard, data := make([]byte, 0x1000), filler(0x1000)
	copy(rdata[0x100:], []byte{0xDE, 0xAD, 0xBE, 0xEF})
	// straddles the text/rdata boundary
	copy(text[0xFFE:], []byte{0x11, 0x22})
	copy(rdata[0x000:], []byte{0x33, 0x44})
	copy(data[0x010:], []byte{0xCA, 0xFE, 0xBA, 0xBE})
	// inaccessible mapping carrying a second copy
	copy(guard[0x020:], []byte{0xCA, 0xFE, 0xBA, 0xBE})

	dump := process_blob.NewProcessDump()
	dump.AddRegion(base, text, "r-xp")
	dump.AddRegion(base+0x1000, rdata, "r--p")
	// 0x2000..0x3000 is not mapped
	dump.AddRegion(base+0x3000, guard, "---p")
	dump.AddRegion(base+0x4000, data, "rw-p")

	patterns := []Pattern{
		MustParsePattern("rdata", "DE AD BE EF", 0),
		MustParsePattern("straddle", "11 22 33 44", 0),
		MustParsePattern("data", "CA FE BA BE", 0),
	}
	want := map[string]process.ProcessMemorySize{
		"rdata":    0x1100,
		"straddle": 0xFFE,
		"data":     0x4010,
	}

	tests := []struct {
		name    string
		scanner *Scanner
	}{
		{"defaults", New()},
		{"small chunks", New(WithChunkSize(0x300), WithParallelism(2, 3))},
		{"verify unique", New(WithVerifyUnique(true))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := pod.NewReader(dump, pod.Limits{})
			table, err := tt.scanner.Scan(context.Background(), r, base, 0x5000, patterns)
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if diff := cmp.Diff(want, table.Offsets); diff != "" {
				t.Errorf("offsets (-want +got):\n%s", diff)
			}
			if failures := r.Stats().Failures(); failures != 0 {
				t.Errorf("%d failed reads, want none", failures)
			}
		})
	}
}

func TestScanAmbiguous(t *testing.T) {
	data := filler(0x2000)
	copy(data[0x0200:], []byte{0xDE, 0xAD, 0xBE, 0xEF})
	copy(data[0x1800:], []byte{0xDE, 0xAD, 0xBE, 0xEF})
	copy(data[0x0900:], []byte{0xCA, 0xFE})

	s := New(WithChunkSize(0x400), WithVerifyUnique(true))
	table, err := s.Scan(context.Background(), reader(data), base, 0x2000, []Pattern{
		MustParsePattern("dup", "DE AD BE EF", 0),
		MustParsePattern("unique", "CA FE", 0),
	})
	if table != nil {
		t.Errorf("ambiguous scan returned a table: %+v", table)
	}
	if !errors.Is(err, process.ErrPatternAmbiguous) {
		t.Fatalf("error = %v, want ErrPatternAmbiguous", err)
	}
	var se *ScanError
	if !errors.As(err, &se) || len(se.Ambiguous) != 1 || se.Ambiguous[0] != "dup" {
		t.Errorf("ScanError = %+v", se)
	}
}

func TestScanMissing(t *testing.T) {
	data := filler(0x800)
	copy(data[0x10:], []byte{0xCA, 0xFE})

	s := New(WithChunkSize(0x100))
	table, err := s.Scan(context.Background(), reader(data), base, 0x800, []Pattern{
		MustParsePattern("present", "CA FE", 0),
		MustParsePattern("absent", "DE AD BE EF", 0),
	})
	if table != nil {
		t.Errorf("failed scan returned a table: %+v", table)
	}
	if !errors.Is(err, process.ErrPatternNotFound) || errors.Is(err, process.ErrPatternAmbiguous) {
		t.Fatalf("error = %v, want only ErrPatternNotFound", err)
	}
	var se *ScanError
	if !errors.As(err, &se) || len(se.Missing) != 1 || se.Missing[0] != "absent" {
		t.Errorf("ScanError = %+v", se)
	}
}

func TestScanRejectsBadTables(t *testing.T) {
	s := New()
	r := reader(filler(0x100))
	p := MustParsePattern("a", "01 02", 0)

	if _, err := s.Scan(context.Background(), r, base, 0x100, []Pattern{p, p}); err == nil {
		t.Error("duplicate names accepted")
	}
	bad := Pattern{Name: "bad", Bytes: []byte{1, 2}, Mask: []bool{true}}
	if _, err := s.Scan(context.Background(), r, base, 0x100, []Pattern{bad}); err == nil {
		t.Error("mask length mismatch accepted")
	}
}

func TestScanHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Scan(ctx, reader(filler(0x1000)), base, 0x1000, []Pattern{MustParsePattern("a", "01 02", 0)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestResolveRIP32(t *testing.T) {
	data := filler(0x100)
	// disp32 = -0x10 at offset 0x40
	copy(data[0x40:], pod.Encode(int32(-0x10)))
	copy(data[0x80:], pod.Encode(int32(0x1000)))
	r := reader(data)

	got, err := ResolveRIP32(r, base+0x40)
	if err != nil || got != base+0x40+4-0x10 {
		t.Errorf("ResolveRIP32(negative) = %s, %v", got, err)
	}
	got, err = ResolveRIP32(r, base+0x80)
	if err != nil || got != base+0x80+4+0x1000 {
		t.Errorf("ResolveRIP32(positive) = %s, %v", got, err)
	}
}
