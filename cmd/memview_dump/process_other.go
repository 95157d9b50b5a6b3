//go:build !linux

package main

import (
	"fmt"
	"runtime"

	"memview/process"
)

func save(pid process.ProcessID, dir string) error {
	return fmt.Errorf("saving dumps is not supported on %s", runtime.GOOS)
}
