package process

import (
	"fmt"
)

// ProcessMemoryAddress represents a memory address within a process.
// Zero is the unbound sentinel and is never readable.
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

func (pma ProcessMemoryAddress) String() string {
	return pma.ToString()
}

// MarshalText renders the address in hex, so JSON snapshots show 0x... strings.
func (pma ProcessMemoryAddress) MarshalText() ([]byte, error) {
	return []byte(pma.ToString()), nil
}

// Add returns the address offset bytes past pma.
func (pma ProcessMemoryAddress) Add(offset ProcessMemorySize) ProcessMemoryAddress {
	return pma + ProcessMemoryAddress(offset)
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint

func (pms ProcessMemorySize) ToString() string {
	return fmt.Sprintf("%d bytes", uint(pms))
}

// PointerSize is the width of a pointer in the target. Only 64-bit targets are supported.
const PointerSize ProcessMemorySize = 8

// MinimumAddress is the lowest address ever considered readable; the first
// 64 KiB are never mapped on the supported targets.
const MinimumAddress ProcessMemoryAddress = 0x10000

// MaximumAddress is the top of the user-mode canonical range.
const MaximumAddress ProcessMemoryAddress = 0x7FFFFFFFFFFF

// Plausible reports whether addr could be a user-mode pointer at all.
func Plausible(addr ProcessMemoryAddress) bool {
	return addr >= MinimumAddress && addr <= MaximumAddress
}
