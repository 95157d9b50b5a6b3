package process_blob

import (
	"encoding/binary"
	"fmt"
	"math"

	"memview/process"
)

// ProcessBlob is an immutable copy of a span of remote memory.
// Offset accessors read relative to the span's remote base address, so a
// struct can be fetched in one read and its fields picked out afterwards.
type ProcessBlob struct {
	baseaddress process.ProcessMemoryAddress
	data        []byte
}

func NewProcessBlob(baseAddress process.ProcessMemoryAddress, data []byte) *ProcessBlob {
	return &ProcessBlob{
		baseaddress: baseAddress,
		data:        data,
	}
}

// Address returns the remote address the blob was read from.
func (p *ProcessBlob) Address() process.ProcessMemoryAddress {
	return p.baseaddress
}

func (p *ProcessBlob) Data() []byte {
	return p.data
}

func (p *ProcessBlob) Len() int {
	return len(p.data)
}

func (p *ProcessBlob) span(offset process.ProcessMemorySize, size process.ProcessMemorySize) ([]byte, error) {
	end := uint64(offset) + uint64(size)
	if end > uint64(len(p.data)) {
		return nil, fmt.Errorf("offset 0x%x+%d outside blob of %d bytes at %s: %w",
			uint64(offset), size, len(p.data), p.baseaddress.ToString(), process.ErrPartialRead)
	}
	return p.data[offset:end], nil
}

// OffsetUINT8 returns an unsigned 8-bit integer at offset
func (p *ProcessBlob) OffsetUINT8(offset process.ProcessMemorySize) (uint8, error) {
	b, err := p.span(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// OffsetUINT16 returns an unsigned 16-bit integer at offset
func (p *ProcessBlob) OffsetUINT16(offset process.ProcessMemorySize) (uint16, error) {
	b, err := p.span(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// OffsetUINT32 returns an unsigned 32-bit integer at offset
func (p *ProcessBlob) OffsetUINT32(offset process.ProcessMemorySize) (uint32, error) {
	b, err := p.span(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// OffsetUINT64 returns an unsigned 64-bit integer at offset
func (p *ProcessBlob) OffsetUINT64(offset process.ProcessMemorySize) (uint64, error) {
	b, err := p.span(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// OffsetINT32 returns a signed 32-bit integer at offset
func (p *ProcessBlob) OffsetINT32(offset process.ProcessMemorySize) (int32, error) {
	v, err := p.OffsetUINT32(offset)
	return int32(v), err
}

// OffsetINT64 returns a signed 64-bit integer at offset
func (p *ProcessBlob) OffsetINT64(offset process.ProcessMemorySize) (int64, error) {
	v, err := p.OffsetUINT64(offset)
	return int64(v), err
}

// OffsetFLOAT32 returns a 32-bit floating point number at offset
func (p *ProcessBlob) OffsetFLOAT32(offset process.ProcessMemorySize) (float32, error) {
	v, err := p.OffsetUINT32(offset)
	return math.Float32frombits(v), err
}

// OffsetFLOAT64 returns a 64-bit floating point number at offset
func (p *ProcessBlob) OffsetFLOAT64(offset process.ProcessMemorySize) (float64, error) {
	v, err := p.OffsetUINT64(offset)
	return math.Float64frombits(v), err
}

// OffsetPOINTER returns a pointer value at offset
func (p *ProcessBlob) OffsetPOINTER(offset process.ProcessMemorySize) (process.ProcessMemoryAddress, error) {
	v, err := p.OffsetUINT64(offset)
	return process.ProcessMemoryAddress(v), err
}

// OffsetPOINTER2 returns a pointer value at offset, zero on error
func (p *ProcessBlob) OffsetPOINTER2(offset process.ProcessMemorySize) process.ProcessMemoryAddress {
	v, err := p.OffsetPOINTER(offset)
	if err != nil {
		return 0
	}
	return v
}

// OffsetBlob returns a sub-blob of size bytes at offset, sharing the backing array.
func (p *ProcessBlob) OffsetBlob(offset process.ProcessMemorySize, size process.ProcessMemorySize) (*ProcessBlob, error) {
	b, err := p.span(offset, size)
	if err != nil {
		return nil, err
	}
	return NewProcessBlob(p.baseaddress.Add(offset), b), nil
}
