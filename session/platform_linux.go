//go:build linux

package session

import (
	"memview/process"
	"memview/process_linux"
)

// Native returns the platform for the running OS.
func Native() Platform {
	return Platform{
		Finder: process_linux.NewProcessFinder(),
		Open: func(pid process.ProcessID) (process.Process, error) {
			p, err := process_linux.NewWithPID(pid)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
	}
}
