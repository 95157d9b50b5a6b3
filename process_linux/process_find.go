//go:build linux

package process_linux

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"memview/process"
)

// LinuxProcessFinder implements the process.ProcessFinder interface over /proc
type LinuxProcessFinder struct {
	// Root is the procfs mount point, "/proc" unless a test points it elsewhere.
	Root string
}

// NewProcessFinder creates a new LinuxProcessFinder
func NewProcessFinder() *LinuxProcessFinder {
	return &LinuxProcessFinder{Root: "/proc"}
}

// FindProcessByPID finds a process by its PID
func (f *LinuxProcessFinder) FindProcessByPID(pid process.ProcessID) (*process.ProcessInfo, error) {
	procPath := filepath.Join(f.Root, strconv.Itoa(int(pid)))

	if _, err := os.Stat(procPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("process with PID %d does not exist: %w", pid, process.ErrProcessNotFound)
	}

	return f.getProcessInfo(pid)
}

// FindProcessByName finds processes whose comm or executable base name equals name,
// the same rule pidof uses. The calling process is never returned.
func (f *LinuxProcessFinder) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("empty process name")
	}
	return f.find(func(info *process.ProcessInfo) bool {
		return info.Name == name || (info.Exe != "" && filepath.Base(info.Exe) == name)
	})
}

// FindProcessByNamePattern finds processes by their name (pattern match)
func (f *LinuxProcessFinder) FindProcessByNamePattern(pattern string) ([]process.ProcessInfo, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return f.find(func(info *process.ProcessInfo) bool {
		return re.MatchString(info.Name)
	})
}

func (f *LinuxProcessFinder) find(match func(*process.ProcessInfo) bool) ([]process.ProcessInfo, error) {
	entries, err := os.ReadDir(f.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Root, err)
	}

	selfPID := os.Getpid()
	var results []process.ProcessInfo

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 0 || pid == selfPID {
			continue
		}

		info, err := f.getProcessInfo(process.ProcessID(pid))
		if err != nil {
			// Process may have terminated while we were reading
			continue
		}

		if match(info) {
			results = append(results, *info)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].PID < results[j].PID
	})
	return results, nil
}

func (f *LinuxProcessFinder) getProcessInfo(pid process.ProcessID) (*process.ProcessInfo, error) {
	procPath := filepath.Join(f.Root, strconv.Itoa(int(pid)))

	nameBytes, err := os.ReadFile(filepath.Join(procPath, "comm"))
	if err != nil {
		return nil, fmt.Errorf("failed to read process name: %w", err)
	}

	info := &process.ProcessInfo{
		PID:  pid,
		Name: strings.TrimSpace(string(nameBytes)),
	}

	// Some processes don't have an exe (e.g., kernel threads)
	info.Exe, _ = os.Readlink(filepath.Join(procPath, "exe"))

	if cmdlineBytes, err := os.ReadFile(filepath.Join(procPath, "cmdline")); err == nil && len(cmdlineBytes) > 0 {
		cmdlineBytes = bytes.TrimSuffix(cmdlineBytes, []byte{0})
		for _, arg := range bytes.Split(cmdlineBytes, []byte{0}) {
			info.Cmdline = append(info.Cmdline, string(arg))
		}
	}

	if statusBytes, err := os.ReadFile(filepath.Join(procPath, "status")); err == nil {
		for _, line := range strings.Split(string(statusBytes), "\n") {
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			value = strings.TrimSpace(value)

			switch strings.TrimSpace(key) {
			case "PPid":
				if ppid, err := strconv.Atoi(value); err == nil {
					info.PPID = process.ProcessID(ppid)
				}
			case "State":
				if len(value) > 0 {
					info.State = process.ProcessState(value[0:1])
				}
			}
		}
	}

	return info, nil
}
