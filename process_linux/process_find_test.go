//go:build linux

package process_linux

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"memview/process"
)

func fakeProc(t *testing.T, procs map[int]string) string {
	t.Helper()
	root := t.TempDir()
	for pid, comm := range procs {
		dir := filepath.Join(root, strconv.Itoa(pid))
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "comm"), []byte(comm+"\n"), 0644); err != nil {
			t.Fatal(err)
		}
		status := "Name:\t" + comm + "\nState:\tS (sleeping)\nPPid:\t1\n"
		if err := os.WriteFile(filepath.Join(dir, "status"), []byte(status), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "cmdline"), []byte(comm+"\x00--flag\x00"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	// non-PID entries are ignored
	if err := os.MkdirAll(filepath.Join(root, "sys"), 0755); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestFindProcessByName(t *testing.T) {
	finder := &LinuxProcessFinder{Root: fakeProc(t, map[int]string{
		101: "game",
		202: "launcher",
		303: "game",
	})}

	matches, err := finder.FindProcessByName("game")
	if err != nil {
		t.Fatalf("FindProcessByName: %v", err)
	}
	if len(matches) != 2 || matches[0].PID != 101 || matches[1].PID != 303 {
		t.Fatalf("matches = %+v, want pids 101 and 303", matches)
	}
	if matches[0].State != process.ProcessSleeping || matches[0].PPID != 1 {
		t.Errorf("status not parsed: %+v", matches[0])
	}
	if len(matches[0].Cmdline) != 2 || matches[0].Cmdline[1] != "--flag" {
		t.Errorf("Cmdline = %q", matches[0].Cmdline)
	}
}

func TestFindOneSurfacesAmbiguity(t *testing.T) {
	finder := &LinuxProcessFinder{Root: fakeProc(t, map[int]string{
		101: "game",
		202: "launcher",
		303: "game",
	})}

	_, err := process.FindOne(finder, "game")
	if !errors.Is(err, process.ErrAmbiguousProcess) {
		t.Fatalf("FindOne(game) error = %v, want ErrAmbiguousProcess", err)
	}
	var amb *process.AmbiguousProcessError
	if !errors.As(err, &amb) || len(amb.Matches) != 2 {
		t.Fatalf("error does not carry both matches: %v", err)
	}

	info, err := process.FindOne(finder, "launcher")
	if err != nil || info.PID != 202 {
		t.Fatalf("FindOne(launcher) = %+v, %v", info, err)
	}

	_, err = process.FindOne(finder, "absent")
	if !errors.Is(err, process.ErrProcessNotFound) {
		t.Fatalf("FindOne(absent) error = %v, want ErrProcessNotFound", err)
	}
}
