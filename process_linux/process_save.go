//go:build linux

package process_linux

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"memview/process"
	"memview/process_blob"
)

// maxSavedRegion bounds a single region written to a dump.
const maxSavedRegion = 100 * 1024 * 1024

// Save writes the readable regions of the process to dirname in the layout
// process_blob.ProcessDump.Load reads back.
func (p *LinuxProcess) Save(dirname string) error {
	if err := os.MkdirAll(dirname, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := p.UpdateMemoryMap(); err != nil {
		return fmt.Errorf("failed to update memory map: %w", err)
	}

	mm, err := p.GetMemoryMap()
	if err != nil {
		return err
	}

	p.mu.Lock()
	pid := p.pid
	exe := p.exe
	p.mu.Unlock()

	metadata := process_blob.DumpMetadata{
		PID:  pid,
		Name: filepath.Base(exe),
	}
	if mod, err := p.MainModule(); err == nil {
		metadata.ModuleBase = mod.Address
		metadata.ModuleSize = mod.Size
	}

	if err := writeJSON(filepath.Join(dirname, process_blob.MetadataFile), metadata); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dirname, process_blob.MemoryMapFile), mm); err != nil {
		return err
	}

	saved, failed, skipped := 0, 0, 0
	for _, region := range mm {
		if !region.IsReadable() || region.Size > maxSavedRegion {
			skipped++
			continue
		}

		data, err := p.ReadMemory(process.ProcessMemoryAddress(region.Address), process.ProcessMemorySize(region.Size))
		if err != nil {
			p.log.Debugln("Failed to read memory region at", fmt.Sprintf("%x", region.Address), err)
			failed++
			continue
		}

		if err := os.WriteFile(filepath.Join(dirname, process_blob.BlobFileName(region)), data, 0644); err != nil {
			return fmt.Errorf("failed to write region 0x%x: %w", region.Address, err)
		}
		saved++
	}

	p.log.Infoln("Process dump saved:", saved, "regions saved,", failed, "read errors,", skipped, "skipped")
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
