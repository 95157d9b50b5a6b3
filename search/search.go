// Package search looks for a known value in the object graph below an
// address, producing pointer paths that can be pasted into a root's path.
package search

import (
	"encoding/binary"
	"errors"
	"fmt"

	"memview/pod"
	"memview/process"
)

// Searcher walks structs and the pointers inside them.
type Searcher struct {
	MaxStructSize process.ProcessMemorySize
	MaxDepth      int
	Alignment     int
	MaxResults    int
	match         func([]byte) bool
}

type Option func(*Searcher)

// WithMaxStructSize sets how many bytes of each visited object are examined.
func WithMaxStructSize(size process.ProcessMemorySize) Option {
	return func(s *Searcher) {
		s.MaxStructSize = size
	}
}

// WithMaxDepth sets how many pointers may be followed from the base.
func WithMaxDepth(depth int) Option {
	return func(s *Searcher) {
		s.MaxDepth = depth
	}
}

func WithAlignment(align int) Option {
	return func(s *Searcher) {
		s.Alignment = align
	}
}

func WithMaxResults(n int) Option {
	return func(s *Searcher) {
		s.MaxResults = n
	}
}

// ForValue searches for the in-memory bytes of v.
func ForValue[T any](v T) Option {
	want := pod.Encode(v)
	return func(s *Searcher) {
		s.match = func(data []byte) bool {
			if len(data) < len(want) {
				return false
			}
			for i := range want {
				if data[i] != want[i] {
					return false
				}
			}
			return true
		}
	}
}

// Result is one place the value was found. Path follows the convention of
// pod.Reader.ResolvePath: every offset but the last is dereferenced.
type Result struct {
	Path    []process.ProcessMemorySize
	Address process.ProcessMemoryAddress
}

// Search returns every location of the value reachable from base, shallowest first per branch.
func Search(r *pod.Reader, base process.ProcessMemoryAddress, options ...Option) ([]Result, error) {
	s := &Searcher{
		MaxStructSize: 256,
		MaxDepth:      3,
		Alignment:     4,
		MaxResults:    100,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.match == nil {
		return nil, fmt.Errorf("no search value specified")
	}
	if s.Alignment <= 0 {
		s.Alignment = 1
	}

	var results []Result
	visited := make(map[process.ProcessMemoryAddress]bool)

	var walk func(addr process.ProcessMemoryAddress, depth int, path []process.ProcessMemorySize)
	walk = func(addr process.ProcessMemoryAddress, depth int, path []process.ProcessMemorySize) {
		if visited[addr] || len(results) >= s.MaxResults {
			return
		}
		visited[addr] = true

		data, err := r.ReadBytes(addr, s.MaxStructSize)
		if err != nil && !errors.Is(err, process.ErrPartialRead) {
			return
		}

		with := func(off int) []process.ProcessMemorySize {
			p := make([]process.ProcessMemorySize, len(path), len(path)+1)
			copy(p, path)
			return append(p, process.ProcessMemorySize(off))
		}

		for off := 0; off < len(data); off += s.Alignment {
			if len(results) >= s.MaxResults {
				return
			}
			if s.match(data[off:]) {
				results = append(results, Result{Path: with(off), Address: addr.Add(process.ProcessMemorySize(off))})
			}
			if depth >= s.MaxDepth || off%8 != 0 || off+8 > len(data) {
				continue
			}
			ptr := process.ProcessMemoryAddress(binary.LittleEndian.Uint64(data[off:]))
			if process.Plausible(ptr) && r.Process().IsValidAddress(ptr) {
				walk(ptr, depth+1, with(off))
			}
		}
	}
	walk(base, 0, nil)
	return results, nil
}
