// Package process defines the handle to a foreign process and the error
// taxonomy shared by every layer that reads from it.
package process

import "errors"

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	// ErrProcessNotFound is returned when no running process matches a selector.
	ErrProcessNotFound = errors.New("process not found")

	// ErrAmbiguousProcess is returned when more than one running process matches a selector.
	// Selection is never resolved automatically.
	ErrAmbiguousProcess = errors.New("more than one process matches")
)

// Read failures. These are transient: callers treat them as "no data this cycle".
var (
	// ErrInvalidAddress is returned for reads at the zero address or below the first mappable page.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrOsReadFailure is returned when the read syscall itself fails (process exited, protected page).
	ErrOsReadFailure = errors.New("os read failure")

	// ErrPartialRead is returned when the OS returned fewer bytes than requested.
	ErrPartialRead = errors.New("partial read")

	// ErrCorruptData is returned when a size, length or count decoded from remote memory fails its bound.
	ErrCorruptData = errors.New("corrupt data")
)

// Configuration failures. These are fatal: the target binary no longer matches the pattern table.
var (
	ErrPatternNotFound  = errors.New("pattern not found")
	ErrPatternAmbiguous = errors.New("pattern not unique")
)

// ErrNullPointer is returned when a pointer path reaches a null link. It is not
// a read failure: the object the path leads to does not exist right now.
var ErrNullPointer = errors.New("null pointer")

// ErrUnknownVariant is returned when an enum-like field holds a value that is not in its table.
// Callers decide whether it is fatal.
var ErrUnknownVariant = errors.New("unknown variant")
