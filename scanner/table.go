package scanner

import (
	"fmt"
	"sort"
	"strings"

	"memview/process"
)

// OffsetTable is the result of a scan: each pattern's offset from the start
// of the scanned region, with its skip applied.
type OffsetTable struct {
	Base    process.ProcessMemoryAddress
	Offsets map[string]process.ProcessMemorySize
}

// Offset returns the offset recorded for name.
func (t *OffsetTable) Offset(name string) (process.ProcessMemorySize, bool) {
	off, ok := t.Offsets[name]
	return off, ok
}

// Address returns Base plus the offset recorded for name.
func (t *OffsetTable) Address(name string) (process.ProcessMemoryAddress, error) {
	off, ok := t.Offsets[name]
	if !ok {
		return 0, fmt.Errorf("%q: %w", name, process.ErrPatternNotFound)
	}
	return t.Base.Add(off), nil
}

// Names returns the pattern names in the table, sorted.
func (t *OffsetTable) Names() []string {
	names := make([]string, 0, len(t.Offsets))
	for name := range t.Offsets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScanError reports the patterns that did not resolve to exactly one
// location. It unwraps to process.ErrPatternNotFound and/or
// process.ErrPatternAmbiguous.
type ScanError struct {
	Missing   []string
	Ambiguous []string
}

func (e *ScanError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("%v: %s", process.ErrPatternNotFound, strings.Join(e.Missing, ", ")))
	}
	if len(e.Ambiguous) > 0 {
		parts = append(parts, fmt.Sprintf("%v: %s", process.ErrPatternAmbiguous, strings.Join(e.Ambiguous, ", ")))
	}
	return "scan failed: " + strings.Join(parts, "; ")
}

func (e *ScanError) Unwrap() []error {
	var errs []error
	if len(e.Missing) > 0 {
		errs = append(errs, process.ErrPatternNotFound)
	}
	if len(e.Ambiguous) > 0 {
		errs = append(errs, process.ErrPatternAmbiguous)
	}
	return errs
}
