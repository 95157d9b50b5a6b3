package process

import (
	"memview/process/memory_map"
)

// Process is the interface that defines read-only operations on a system process.
// ReadMemory may be called concurrently from many goroutines.
type Process interface {
	// Open opens a process with the given PID for memory operations
	Open(pid ProcessID) error

	// Close closes the process and releases resources
	Close() error

	// GetPID returns the process ID
	GetPID() ProcessID

	// UpdateMemoryMap refreshes the memory map for the process
	UpdateMemoryMap() error

	// IsValidAddress checks if the given memory address is valid and readable
	IsValidAddress(addr ProcessMemoryAddress) bool

	// GetMemoryMap returns a copy of the current memory map
	GetMemoryMap() ([]memory_map.MemoryMapItem, error)

	// ReadMemory reads memory from the process at the specified address.
	// A short read returns ErrPartialRead, a failed syscall ErrOsReadFailure.
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)

	// MainModule returns the mapped span of the process executable
	MainModule() (memory_map.Module, error)
}
