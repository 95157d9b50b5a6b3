package pod

import (
	"errors"
	"fmt"

	"memview/process"
)

// Kind classifies a read failure.
type Kind int

const (
	InvalidAddress Kind = iota
	OsReadFailure
	PartialRead
	CorruptData

	numKinds
)

func (k Kind) String() string {
	switch k {
	case InvalidAddress:
		return "InvalidAddress"
	case OsReadFailure:
		return "OsReadFailure"
	case PartialRead:
		return "PartialRead"
	case CorruptData:
		return "CorruptData"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) sentinel() error {
	switch k {
	case InvalidAddress:
		return process.ErrInvalidAddress
	case PartialRead:
		return process.ErrPartialRead
	case CorruptData:
		return process.ErrCorruptData
	}
	return process.ErrOsReadFailure
}

// ReadError describes one failed read. It matches the process sentinel of its
// Kind with errors.Is, as well as anything Err wraps.
type ReadError struct {
	Kind    Kind
	Address process.ProcessMemoryAddress
	Size    process.ProcessMemorySize
	Err     error
}

func (e *ReadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s reading %d bytes at %s: %v", e.Kind, e.Size, e.Address, e.Err)
	}
	return fmt.Sprintf("%s reading %d bytes at %s", e.Kind, e.Size, e.Address)
}

func (e *ReadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// KindOf returns the failure kind of err, or false if err is not a read failure.
func KindOf(err error) (Kind, bool) {
	var re *ReadError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	switch {
	case errors.Is(err, process.ErrPartialRead):
		return PartialRead, true
	case errors.Is(err, process.ErrCorruptData):
		return CorruptData, true
	case errors.Is(err, process.ErrInvalidAddress), errors.Is(err, process.ErrAddressNotMapped):
		return InvalidAddress, true
	case errors.Is(err, process.ErrOsReadFailure), errors.Is(err, process.ErrProcessNotOpen):
		return OsReadFailure, true
	}
	return 0, false
}

// Transient reports whether err is one of the read failures a caller should
// treat as "no data this cycle".
func Transient(err error) bool {
	_, ok := KindOf(err)
	return ok
}
