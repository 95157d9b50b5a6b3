package process_blob

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"memview/process"
	"memview/process/memory_map"
)

const (
	MetadataFile  = "metadata.json"
	MemoryMapFile = "process_memory_map.json"
)

// DumpMetadata is the metadata.json written next to a dump's region blobs.
type DumpMetadata struct {
	PID        process.ProcessID `json:"pid"`
	Name       string            `json:"name"`
	ModuleBase uint64            `json:"module_base,omitempty"`
	ModuleSize uint              `json:"module_size,omitempty"`
}

// BlobFileName is the file a region's bytes are stored in.
func BlobFileName(region memory_map.MemoryMapItem) string {
	return fmt.Sprintf("blob_0x%x_%d.bin", region.Address, region.Size)
}

// ProcessDump implements process.Process over an in-memory image: either a
// dump loaded from disk or regions assembled by hand.
type ProcessDump struct {
	PID    process.ProcessID
	Name   string
	Module memory_map.Module

	mu        sync.RWMutex
	memoryMap []memory_map.MemoryMapItem
	blobs     map[uint64][]byte // Address -> Data
}

var _ process.Process = (*ProcessDump)(nil)

// NewProcessDump creates a new ProcessDump instance
func NewProcessDump() *ProcessDump {
	return &ProcessDump{
		blobs: make(map[uint64][]byte),
	}
}

// AddRegion maps data at addr with the given permissions. The slice is owned by the dump afterwards.
func (p *ProcessDump) AddRegion(addr process.ProcessMemoryAddress, data []byte, perms string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.memoryMap = append(p.memoryMap, memory_map.MemoryMapItem{
		Address: uint64(addr),
		Size:    uint(len(data)),
		Perms:   perms,
	})
	memory_map.Sort(p.memoryMap)
	p.blobs[uint64(addr)] = data
}

// SetModule records which span MainModule reports.
func (p *ProcessDump) SetModule(name string, addr process.ProcessMemoryAddress, size process.ProcessMemorySize) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Module = memory_map.Module{Name: name, Address: uint64(addr), Size: uint(size)}
}

// Patch overwrites bytes of an existing region, standing in for the target mutating its own memory.
func (p *ProcessDump) Patch(addr process.ProcessMemoryAddress, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	region := memory_map.IsValidAddress2(uint64(addr), p.memoryMap)
	if region == nil {
		return process.ErrAddressNotMapped
	}
	blob := p.blobs[region.Address]
	offset := uint64(addr) - region.Address
	if offset+uint64(len(data)) > uint64(len(blob)) {
		return fmt.Errorf("patch of %d bytes at 0x%x crosses region end", len(data), uint64(addr))
	}
	copy(blob[offset:], data)
	return nil
}

func (p *ProcessDump) Open(pid process.ProcessID) error {
	return fmt.Errorf("Open not supported for ProcessDump, use Load")
}

func (p *ProcessDump) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blobs = make(map[uint64][]byte)
	p.memoryMap = nil
	return nil
}

func (p *ProcessDump) GetPID() process.ProcessID {
	return p.PID
}

func (p *ProcessDump) UpdateMemoryMap() error {
	return nil // Memory map is static in a dump
}

func (p *ProcessDump) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	item := memory_map.IsValidAddress2(uint64(addr), p.memoryMap)
	return item != nil && item.IsReadable()
}

func (p *ProcessDump) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]memory_map.MemoryMapItem, len(p.memoryMap))
	copy(result, p.memoryMap)
	return result, nil
}

func (p *ProcessDump) MainModule() (memory_map.Module, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.Module.Size == 0 {
		return memory_map.Module{}, fmt.Errorf("dump has no module span: %w", process.ErrAddressNotMapped)
	}
	return p.Module, nil
}

// ReadMemory copies size bytes at addr. A read running off the end of its
// region returns the bytes that exist together with process.ErrPartialRead,
// the same contract the OS readers follow.
func (p *ProcessDump) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if !process.Plausible(addr) {
		return nil, fmt.Errorf("%w: 0x%x", process.ErrInvalidAddress, uint64(addr))
	}
	if size == 0 {
		return []byte{}, nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	region := memory_map.IsValidAddress2(uint64(addr), p.memoryMap)
	if region == nil {
		return nil, fmt.Errorf("%w: 0x%x", process.ErrAddressNotMapped, uint64(addr))
	}
	if !region.IsReadable() {
		return nil, fmt.Errorf("%w: region 0x%x is %s", process.ErrOsReadFailure, region.Address, region.Perms)
	}

	data, ok := p.blobs[region.Address]
	if !ok {
		return nil, fmt.Errorf("%w: no data for region 0x%x", process.ErrOsReadFailure, region.Address)
	}

	offset := uint64(addr) - region.Address
	if offset >= uint64(len(data)) {
		return nil, fmt.Errorf("%w: 0x%x beyond saved data", process.ErrOsReadFailure, uint64(addr))
	}

	end := offset + uint64(size)
	if end > uint64(len(data)) {
		result := make([]byte, uint64(len(data))-offset)
		copy(result, data[offset:])
		return result, fmt.Errorf("%w: %d of %d bytes at 0x%x", process.ErrPartialRead, len(result), size, uint64(addr))
	}

	result := make([]byte, size)
	copy(result, data[offset:end])
	return result, nil
}

// Load reads a dump written by process_linux.LinuxProcess.Save.
func (p *ProcessDump) Load(dirname string) error {
	metadataBytes, err := os.ReadFile(filepath.Join(dirname, MetadataFile))
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata DumpMetadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	mmBytes, err := os.ReadFile(filepath.Join(dirname, MemoryMapFile))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	var memoryMap []memory_map.MemoryMapItem
	if err := json.Unmarshal(mmBytes, &memoryMap); err != nil {
		return fmt.Errorf("failed to unmarshal memory map: %w", err)
	}
	memory_map.Sort(memoryMap)

	blobs := make(map[uint64][]byte)
	for _, region := range memoryMap {
		filename := filepath.Join(dirname, BlobFileName(region))
		data, err := os.ReadFile(filename)
		if os.IsNotExist(err) {
			continue // Blob not saved (e.g. too large or not readable)
		}
		if err != nil {
			return fmt.Errorf("failed to read blob %s: %w", filename, err)
		}
		blobs[region.Address] = data
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.PID = metadata.PID
	p.Name = metadata.Name
	p.Module = memory_map.Module{Name: metadata.Name, Address: metadata.ModuleBase, Size: metadata.ModuleSize}
	p.memoryMap = memoryMap
	p.blobs = blobs
	return nil
}
