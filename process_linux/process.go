//go:build linux

package process_linux

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"memview/process"
	"memview/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// LinuxProcess implements the process.Process interface for Linux systems
type LinuxProcess struct {
	pid  process.ProcessID
	exe  string
	log  *logger.Logger
	mm   []memory_map.MemoryMapItem
	mu   sync.Mutex
	open bool
}

var _ process.Process = (*LinuxProcess)(nil)

// New creates a new LinuxProcess instance
func New() *LinuxProcess {
	return &LinuxProcess{
		log: logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
	}
}

// NewWithPID creates a new LinuxProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (*LinuxProcess, error) {
	p := New()
	if err := p.Open(pid); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *LinuxProcess) Open(pid process.ProcessID) error {
	procPath := fmt.Sprintf("/proc/%d", pid)
	if _, err := os.Stat(procPath); os.IsNotExist(err) {
		return fmt.Errorf("process with PID %d does not exist: %w", pid, process.ErrProcessNotFound)
	}

	// exe can be unreadable for processes we may still read through ptrace access rules
	exe, _ := os.Readlink(filepath.Join(procPath, "exe"))

	p.mu.Lock()
	p.pid = pid
	p.exe = exe
	p.open = true
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))
	p.mu.Unlock()

	if err := p.UpdateMemoryMap(); err != nil {
		return fmt.Errorf("failed to initialize memory map: %w", err)
	}

	p.log.Infoln("Process opened", exe)

	return nil
}

func (p *LinuxProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pid = 0
	p.exe = ""
	p.mm = nil
	p.open = false

	p.log.Infoln("Process closed")
	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))

	return nil
}

// GetPID returns the process ID
func (p *LinuxProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

func (p *LinuxProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	pid := p.pid
	open := p.open
	p.mu.Unlock()

	if !open {
		return process.ErrProcessNotOpen
	}

	mm, err := memory_map.ReadMemoryMap(int(pid))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	p.mu.Lock()
	p.mm = mm
	p.mu.Unlock()
	return nil
}

func (p *LinuxProcess) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	if !process.Plausible(addr) {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	item := memory_map.IsValidAddress2(uint64(addr), p.mm)
	return item != nil && item.IsReadable()
}

func (p *LinuxProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return nil, process.ErrProcessNotOpen
	}

	// Make a copy of the memory map to prevent external modification
	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)
	return result, nil
}

// MainModule returns the span mapped from the process executable.
func (p *LinuxProcess) MainModule() (memory_map.Module, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return memory_map.Module{}, process.ErrProcessNotOpen
	}
	if p.exe == "" {
		return memory_map.Module{}, fmt.Errorf("executable path of pid %d is unknown", p.pid)
	}

	mod, ok := memory_map.ModuleRegion(p.mm, filepath.Base(p.exe))
	if !ok {
		return memory_map.Module{}, fmt.Errorf("%s is not mapped in pid %d: %w", p.exe, p.pid, process.ErrAddressNotMapped)
	}
	return mod, nil
}
