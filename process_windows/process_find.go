//go:build windows

package process_windows

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unsafe"

	"memview/process"

	"golang.org/x/sys/windows"
)

// WindowsProcessFinder implements process.ProcessFinder over a toolhelp snapshot
type WindowsProcessFinder struct{}

// NewProcessFinder creates a new WindowsProcessFinder
func NewProcessFinder() *WindowsProcessFinder {
	return &WindowsProcessFinder{}
}

func (f *WindowsProcessFinder) FindProcessByPID(pid process.ProcessID) (*process.ProcessInfo, error) {
	all, err := snapshot()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].PID == pid {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("process with PID %d does not exist: %w", pid, process.ErrProcessNotFound)
}

// FindProcessByName matches executable names case-insensitively.
func (f *WindowsProcessFinder) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	all, err := snapshot()
	if err != nil {
		return nil, err
	}
	var results []process.ProcessInfo
	for _, info := range all {
		if strings.EqualFold(info.Name, name) {
			results = append(results, info)
		}
	}
	return results, nil
}

func (f *WindowsProcessFinder) FindProcessByNamePattern(pattern string) ([]process.ProcessInfo, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	all, err := snapshot()
	if err != nil {
		return nil, err
	}
	var results []process.ProcessInfo
	for _, info := range all {
		if re.MatchString(info.Name) {
			results = append(results, info)
		}
	}
	return results, nil
}

func snapshot() ([]process.ProcessInfo, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot failed: %w", err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var results []process.ProcessInfo
	for err = windows.Process32First(snap, &entry); err == nil; err = windows.Process32Next(snap, &entry) {
		results = append(results, process.ProcessInfo{
			PID:   process.ProcessID(entry.ProcessID),
			PPID:  process.ProcessID(entry.ParentProcessID),
			Name:  windows.UTF16ToString(entry.ExeFile[:]),
			State: process.ProcessRunning,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].PID < results[j].PID
	})
	return results, nil
}
