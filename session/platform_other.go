//go:build !linux && !windows

package session

import (
	"fmt"
	"runtime"

	"memview/process"
)

type unsupportedFinder struct{}

func (unsupportedFinder) FindProcessByPID(pid process.ProcessID) (*process.ProcessInfo, error) {
	return nil, fmt.Errorf("process lookup is not supported on %s", runtime.GOOS)
}

func (unsupportedFinder) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	return nil, fmt.Errorf("process lookup is not supported on %s", runtime.GOOS)
}

func (unsupportedFinder) FindProcessByNamePattern(pattern string) ([]process.ProcessInfo, error) {
	return nil, fmt.Errorf("process lookup is not supported on %s", runtime.GOOS)
}

// Native returns a platform whose operations fail on this OS.
func Native() Platform {
	return Platform{
		Finder: unsupportedFinder{},
		Open: func(pid process.ProcessID) (process.Process, error) {
			return nil, fmt.Errorf("reading process memory is not supported on %s", runtime.GOOS)
		},
	}
}
