//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"unsafe"

	"memview/process"

	"golang.org/x/sys/unix"
)

// process_vm_readv reads bytesToRead bytes at remoteAddr in pid into a fresh buffer.
// A short transfer returns the bytes that did arrive together with process.ErrPartialRead.
func process_vm_readv(
	pid process.ProcessID,
	remoteAddr process.ProcessMemoryAddress,
	bytesToRead process.ProcessMemorySize,
) ([]byte, error) {
	localBuf := make([]byte, bytesToRead)

	localIov := unix.Iovec{
		Base: &localBuf[0],
		Len:  uint64(bytesToRead),
	}

	remoteIov := unix.RemoteIovec{
		Base: uintptr(remoteAddr),
		Len:  int(bytesToRead),
	}

	n, _, errno := unix.Syscall6(
		unix.SYS_PROCESS_VM_READV,
		uintptr(pid),                        // Remote process PID
		uintptr(unsafe.Pointer(&localIov)),  // Local iovec
		uintptr(1),                          // Number of local iovecs
		uintptr(unsafe.Pointer(&remoteIov)), // Remote iovec
		uintptr(1),                          // Number of remote iovecs
		uintptr(0),                          // Flags (reserved for future use)
	)

	if errno != 0 {
		return nil, fmt.Errorf("%w: process_vm_readv at 0x%x: %s (errno: %d)", process.ErrOsReadFailure, uint64(remoteAddr), errno.Error(), errno)
	}

	if int(n) != int(bytesToRead) {
		return localBuf[:n], fmt.Errorf("%w: %d of %d bytes at 0x%x", process.ErrPartialRead, n, bytesToRead, uint64(remoteAddr))
	}

	return localBuf, nil
}

// ReadMemory reads memory from the process at the specified address.
// Only address plausibility is checked up front; the kernel is the authority on
// whether the page is mapped, which keeps reads of freshly allocated heap working
// without refreshing the cached memory map.
func (p *LinuxProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	p.mu.Lock()
	pid := p.pid
	open := p.open
	p.mu.Unlock()

	if !open {
		return nil, process.ErrProcessNotOpen
	}
	if !process.Plausible(addr) {
		return nil, fmt.Errorf("%w: 0x%x", process.ErrInvalidAddress, uint64(addr))
	}
	if size == 0 {
		return []byte{}, nil
	}

	data, err := process_vm_readv(pid, addr, size)
	if err != nil && !errors.Is(err, process.ErrPartialRead) {
		return nil, err
	}
	return data, err
}
