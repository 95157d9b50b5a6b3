package process

import "fmt"

// ProcessID represents a unique identifier for a process
type ProcessID int

// ProcessInfo contains basic information about a process
type ProcessInfo struct {
	PID     ProcessID    // Process ID
	PPID    ProcessID    // Parent Process ID
	Name    string       // Process name from /proc/[pid]/comm
	Exe     string       // Path to the executable
	Cmdline []string     // Command line arguments
	State   ProcessState // Process state (R, S, D, Z, etc.)
}

// AmbiguousProcessError lists every process that matched a selector.
type AmbiguousProcessError struct {
	Name    string
	Matches []ProcessInfo
}

func (e *AmbiguousProcessError) Error() string {
	pids := make([]ProcessID, len(e.Matches))
	for i, m := range e.Matches {
		pids[i] = m.PID
	}
	return fmt.Sprintf("%d processes named %q: pids %v", len(e.Matches), e.Name, pids)
}

func (e *AmbiguousProcessError) Unwrap() error {
	return ErrAmbiguousProcess
}

// SelectOne returns the single entry of matches, or an error describing why there is not exactly one.
func SelectOne(name string, matches []ProcessInfo) (ProcessInfo, error) {
	switch len(matches) {
	case 0:
		return ProcessInfo{}, fmt.Errorf("%w: %q", ErrProcessNotFound, name)
	case 1:
		return matches[0], nil
	default:
		return ProcessInfo{}, &AmbiguousProcessError{Name: name, Matches: matches}
	}
}
