// Package pod reads plain-data values out of a foreign process.
//
// A Reader never panics and never caches. Every failed read is classified,
// counted and logged at debug level; the caller gets a *ReadError and is
// expected to treat it as "no data this cycle".
package pod

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"memview/process"
	"memview/process_blob"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// DefaultMaxReadBytes bounds a single read when Limits leaves it unset.
const DefaultMaxReadBytes process.ProcessMemorySize = 64 << 20

// Limits bounds the reads a Reader will issue.
type Limits struct {
	// MaxReadBytes is the largest single read. Larger requests are CorruptData.
	MaxReadBytes process.ProcessMemorySize
}

// Stats is a snapshot of a Reader's counters.
type Stats struct {
	Reads          uint64
	BytesRead      uint64
	InvalidAddress uint64
	OsReadFailure  uint64
	PartialRead    uint64
	CorruptData    uint64
}

// Failures returns the total number of failed reads.
func (s Stats) Failures() uint64 {
	return s.InvalidAddress + s.OsReadFailure + s.PartialRead + s.CorruptData
}

// Reader performs bounded, validated reads against one process handle.
// It is safe for concurrent use.
type Reader struct {
	proc   process.Process
	limits Limits
	log    *logger.Logger

	reads    atomic.Uint64
	bytes    atomic.Uint64
	failures [numKinds]atomic.Uint64
}

// NewReader wraps proc. Zero limits are replaced by their defaults.
func NewReader(proc process.Process, limits Limits) *Reader {
	if limits.MaxReadBytes == 0 {
		limits.MaxReadBytes = DefaultMaxReadBytes
	}
	return &Reader{
		proc:   proc,
		limits: limits,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "reader")),
	}
}

func (r *Reader) Process() process.Process {
	return r.proc
}

func (r *Reader) Limits() Limits {
	return r.limits
}

// Stats returns the current counters.
func (r *Reader) Stats() Stats {
	return Stats{
		Reads:          r.reads.Load(),
		BytesRead:      r.bytes.Load(),
		InvalidAddress: r.failures[InvalidAddress].Load(),
		OsReadFailure:  r.failures[OsReadFailure].Load(),
		PartialRead:    r.failures[PartialRead].Load(),
		CorruptData:    r.failures[CorruptData].Load(),
	}
}

func (r *Reader) fail(kind Kind, addr process.ProcessMemoryAddress, size process.ProcessMemorySize, err error) *ReadError {
	r.failures[kind].Add(1)
	re := &ReadError{Kind: kind, Address: addr, Size: size, Err: err}
	r.log.Debugln(re.Error())
	return re
}

// ReportCorrupt records a bound violation found by a decoder, such as a
// container count that exceeds its limit, and returns the error to pass on.
func (r *Reader) ReportCorrupt(addr process.ProcessMemoryAddress, format string, args ...any) error {
	return r.fail(CorruptData, addr, 0, fmt.Errorf(format, args...))
}

// ReadBytes reads exactly size bytes at addr. On a PartialRead the bytes the
// OS did return are passed back together with the error.
func (r *Reader) ReadBytes(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	if !process.Plausible(addr) || addr+process.ProcessMemoryAddress(size) < addr {
		return nil, r.fail(InvalidAddress, addr, size, nil)
	}
	if size > r.limits.MaxReadBytes {
		return nil, r.fail(CorruptData, addr, size, fmt.Errorf("read exceeds limit of %d bytes", r.limits.MaxReadBytes))
	}

	r.reads.Add(1)
	data, err := r.proc.ReadMemory(addr, size)
	r.bytes.Add(uint64(len(data)))
	if err != nil {
		kind, ok := KindOf(err)
		if !ok {
			kind = OsReadFailure
		}
		return data, r.fail(kind, addr, size, err)
	}
	if process.ProcessMemorySize(len(data)) < size {
		return data, r.fail(PartialRead, addr, size, fmt.Errorf("got %d bytes", len(data)))
	}
	return data[:size], nil
}

// ReadBlob reads size bytes at addr into a blob for offset-based field access.
func (r *Reader) ReadBlob(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) (*process_blob.ProcessBlob, error) {
	data, err := r.ReadBytes(addr, size)
	if err != nil {
		return nil, err
	}
	return process_blob.NewProcessBlob(addr, data), nil
}

// ReadPointer reads one target pointer at addr.
func (r *Reader) ReadPointer(addr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	data, err := r.ReadBytes(addr, process.PointerSize)
	if err != nil {
		return 0, err
	}
	return process.ProcessMemoryAddress(binary.LittleEndian.Uint64(data)), nil
}
