// Package scanner locates named byte signatures inside a region of a foreign
// process, such as the main module image, and produces a name to offset table.
package scanner

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"memview/pod"
	"memview/process"
	"memview/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultChunkSize keeps each read buffer well below 85 KB.
	DefaultChunkSize     = 64 << 10
	DefaultMaxParallel   = 4
	DefaultInnerParallel = 4

	// cancelCheckInterval is how many positions a stripe scans between
	// checks for early exit.
	cancelCheckInterval = 4096
)

// Scanner holds the scan configuration. The zero value is not usable; use New.
type Scanner struct {
	ChunkSize     int
	MaxParallel   int
	InnerParallel int
	// VerifyUnique scans the whole region even after every pattern is found,
	// so that a second occurrence is reported as ErrPatternAmbiguous.
	VerifyUnique bool

	log *logger.Logger
}

// Option is a function that configures a Scanner
type Option func(*Scanner)

func WithChunkSize(size int) Option {
	return func(s *Scanner) {
		s.ChunkSize = size
	}
}

// WithParallelism bounds the number of chunks in flight and the number of
// stripes each chunk is split into.
func WithParallelism(chunks, stripes int) Option {
	return func(s *Scanner) {
		s.MaxParallel = chunks
		s.InnerParallel = stripes
	}
}

func WithVerifyUnique(verify bool) Option {
	return func(s *Scanner) {
		s.VerifyUnique = verify
	}
}

// New returns a Scanner with defaults overridden by options.
func New(options ...Option) *Scanner {
	s := &Scanner{
		ChunkSize:     DefaultChunkSize,
		MaxParallel:   DefaultMaxParallel,
		InnerParallel: DefaultInnerParallel,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.ChunkSize <= 0 {
		s.ChunkSize = DefaultChunkSize
	}
	if s.MaxParallel <= 0 {
		s.MaxParallel = 1
	}
	if s.InnerParallel <= 0 {
		s.InnerParallel = 1
	}
	s.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "scanner"))
	return s
}

// patternState is shared by every goroutine of one scan.
type patternState struct {
	Pattern
	offset    atomic.Int64 // -1 until found
	ambiguous atomic.Bool
}

type scan struct {
	*Scanner
	states    []*patternState
	remaining atomic.Int64
	maxLen    int
	done      context.CancelFunc
}

// Scan searches size bytes starting at base for every pattern and returns
// their offsets from base. Only the readable regions of the process's memory
// map are read. A pattern that is never found, or (with
// VerifyUnique) found at two locations, fails the whole scan with a
// *ScanError: a stale pattern table must not produce a partial result.
func (s *Scanner) Scan(ctx context.Context, r *pod.Reader, base process.ProcessMemoryAddress, size process.ProcessMemorySize, patterns []Pattern) (*OffsetTable, error) {
	if len(patterns) == 0 {
		return &OffsetTable{Base: base, Offsets: map[string]process.ProcessMemorySize{}}, nil
	}

	sc := &scan{Scanner: s}
	seen := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("pattern %q defined twice", p.Name)
		}
		seen[p.Name] = true

		st := &patternState{Pattern: p}
		st.offset.Store(-1)
		sc.states = append(sc.states, st)
		sc.maxLen = max(sc.maxLen, len(p.Bytes))
	}
	sc.remaining.Store(int64(len(patterns)))

	start := time.Now()
	s.log.Infoln("Scanning", humanize.IBytes(uint64(size)), "at", base.String(), "for", len(patterns), "patterns")

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sc.done = cancel

	g, gctx := errgroup.WithContext(scanCtx)
	g.SetLimit(s.MaxParallel)
spans:
	for _, sp := range readableSpans(r.Process(), base, size) {
		first, end := sp.bounds(base)
		for chunk := first; chunk < end; chunk += uint64(s.ChunkSize) {
			if gctx.Err() != nil {
				break spans
			}
			g.Go(func() error {
				sc.scanChunk(gctx, r, base, sp, chunk, end)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table := &OffsetTable{Base: base, Offsets: make(map[string]process.ProcessMemorySize, len(patterns))}
	var scanErr ScanError
	for _, st := range sc.states {
		off := st.offset.Load()
		switch {
		case st.ambiguous.Load():
			scanErr.Ambiguous = append(scanErr.Ambiguous, st.Name)
		case off < 0:
			scanErr.Missing = append(scanErr.Missing, st.Name)
		default:
			table.Offsets[st.Name] = process.ProcessMemorySize(off + int64(st.Skip))
		}
	}
	if len(scanErr.Missing) > 0 || len(scanErr.Ambiguous) > 0 {
		return nil, &scanErr
	}

	s.log.Infoln("Scan complete,", len(table.Offsets), "patterns resolved in", time.Since(start).Round(time.Millisecond))
	return table, nil
}

// span is a run of adjacent readable regions clipped to the scanned range.
type span []memory_map.MemoryMapItem

// bounds returns the span's start and end as offsets from base.
func (sp span) bounds(base process.ProcessMemoryAddress) (uint64, uint64) {
	return sp[0].Address - uint64(base), sp[len(sp)-1].End() - uint64(base)
}

// readableSpans clips the readable regions of the memory map to
// [base, base+size) and groups the adjacent ones. Gaps and unreadable
// mappings inside a module are left out. Without a memory map the whole
// range is a single span.
func readableSpans(proc process.Process, base process.ProcessMemoryAddress, size process.ProcessMemorySize) []span {
	start, end := uint64(base), uint64(base)+uint64(size)
	mm, err := proc.GetMemoryMap()
	if err != nil || len(mm) == 0 {
		return []span{{{Address: start, Size: uint(size), Perms: "r"}}}
	}
	mm = slices.Clone(mm)
	memory_map.Sort(mm)

	var spans []span
	for _, item := range mm {
		if !item.IsReadable() || item.End() <= start || item.Address >= end {
			continue
		}
		lo, hi := max(item.Address, start), min(item.End(), end)
		clipped := memory_map.MemoryMapItem{Address: lo, Size: uint(hi - lo), Perms: item.Perms, Path: item.Path}
		if n := len(spans); n > 0 && spans[n-1][len(spans[n-1])-1].End() == lo {
			spans[n-1] = append(spans[n-1], clipped)
			continue
		}
		spans = append(spans, span{clipped})
	}
	return spans
}

// read returns length bytes at offset off from base, issuing one read per
// region so that no read crosses a mapping boundary. It stops at the first
// failed read and returns what it has.
func (sp span) read(r *pod.Reader, base process.ProcessMemoryAddress, off, length uint64) []byte {
	data := make([]byte, 0, length)
	addr, end := uint64(base)+off, uint64(base)+off+length
	for _, region := range sp {
		if addr >= end {
			break
		}
		if region.End() <= addr {
			continue
		}
		n := min(region.End(), end) - addr
		piece, err := r.ReadBytes(process.ProcessMemoryAddress(addr), process.ProcessMemorySize(n))
		data = append(data, piece...)
		if err != nil {
			break
		}
		addr += n
	}
	return data
}

// scanChunk reads one chunk of a span plus enough overlap for the longest
// pattern and tests every start position that belongs to the chunk. Offsets
// are relative to base; end is the span's end offset.
func (sc *scan) scanChunk(ctx context.Context, r *pod.Reader, base process.ProcessMemoryAddress, sp span, chunk, end uint64) {
	positions := min(uint64(sc.ChunkSize), end-chunk)
	length := min(positions+uint64(sc.maxLen-1), end-chunk)

	data := sp.read(r, base, chunk, length)
	if len(data) == 0 {
		sc.log.Debugln("Skipping unreadable chunk at", base.Add(process.ProcessMemorySize(chunk)).String())
		return
	}

	stripes := max(1, min(sc.InnerParallel, int(positions)))
	stride := (int(positions) + stripes - 1) / stripes

	var g errgroup.Group
	for lo := 0; lo < int(positions); lo += stride {
		hi := min(lo+stride, int(positions))
		g.Go(func() error {
			sc.scanStripe(ctx, data, int64(chunk), lo, hi)
			return nil
		})
	}
	g.Wait()
}

func (sc *scan) scanStripe(ctx context.Context, data []byte, chunk int64, lo, hi int) {
	for pos := lo; pos < hi; pos++ {
		if (pos-lo)%cancelCheckInterval == 0 && ctx.Err() != nil {
			return
		}
		for _, st := range sc.states {
			if pos+len(st.Bytes) > len(data) {
				continue
			}
			if st.ambiguous.Load() {
				continue
			}
			if !sc.VerifyUnique && st.offset.Load() >= 0 {
				continue
			}
			if st.matchAt(data, pos) {
				sc.record(st, chunk+int64(pos))
			}
		}
	}
}

// record stores a match. The first writer wins; a different second match
// marks the pattern ambiguous.
func (sc *scan) record(st *patternState, offset int64) {
	if st.offset.CompareAndSwap(-1, offset) {
		if sc.remaining.Add(-1) == 0 && !sc.VerifyUnique {
			sc.done()
		}
		return
	}
	if st.offset.Load() != offset {
		if !st.ambiguous.Swap(true) {
			sc.log.Warn("Pattern ", st.Name, " matches more than once")
		}
	}
}
