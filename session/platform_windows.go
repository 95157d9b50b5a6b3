//go:build windows

package session

import (
	"memview/process"
	"memview/process_windows"
)

// Native returns the platform for the running OS.
func Native() Platform {
	return Platform{
		Finder: process_windows.NewProcessFinder(),
		Open: func(pid process.ProcessID) (process.Process, error) {
			p, err := process_windows.NewWithPID(pid)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
	}
}
