//go:build linux

package main

import (
	"memview/process"
	"memview/process_linux"
)

func save(pid process.ProcessID, dir string) error {
	proc, err := process_linux.NewWithPID(pid)
	if err != nil {
		return err
	}
	defer proc.Close()
	return proc.Save(dir)
}
