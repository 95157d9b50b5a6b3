package process

// ProcessState is the single-letter scheduler state from /proc/<pid>/stat
type ProcessState string

const (
	ProcessRunning  ProcessState = "R"
	ProcessSleeping ProcessState = "S"
	ProcessWaiting  ProcessState = "D"
	ProcessZombie   ProcessState = "Z"
	ProcessStopped  ProcessState = "T"
	ProcessDead     ProcessState = "X"
)

// Readable reports whether memory of a process in this state can still be read.
// Zombie and dead processes have already released their address space.
func (s ProcessState) Readable() bool {
	return s != ProcessZombie && s != ProcessDead
}
