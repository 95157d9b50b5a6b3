package pod

import (
	"fmt"

	"memview/process"
)

// ResolvePath walks a pointer path and returns the final address without
// reading it. Every offset but the last is added to the current address and
// the pointer stored there becomes the new current address; the last offset
// is only added. With no offsets base is returned unchanged.
//
//	// base -> [ +0 ]ptrA -> [ +0x18 ]ptrB, result ptrB + 0x90
//	addr, err := r.ResolvePath(base, 0, 0x18, 0x90)
//
// A null link fails with process.ErrNullPointer. Read failures along the way
// are counted like any other read.
func (r *Reader) ResolvePath(base process.ProcessMemoryAddress, offsets ...process.ProcessMemorySize) (process.ProcessMemoryAddress, error) {
	current := base
	for i := 0; i < len(offsets)-1; i++ {
		addr := current.Add(offsets[i])
		ptr, err := r.ReadPointer(addr)
		if err != nil {
			return 0, fmt.Errorf("path step %d at %s: %w", i, addr, err)
		}
		if ptr == 0 {
			return 0, fmt.Errorf("path step %d at %s: %w", i, addr, process.ErrNullPointer)
		}
		current = ptr
	}
	if len(offsets) > 0 {
		current = current.Add(offsets[len(offsets)-1])
	}
	return current, nil
}
