// Package config handles memview.toml session configuration: the target
// process, scanner and decoder limits, the pattern table, the roots wired
// from it, and the field-layout schema.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"memview/layout"
	"memview/pod"
	"memview/process"
	"memview/scanner"
	"memview/stl"

	"github.com/BurntSushi/toml"
)

// Config represents a memview.toml file.
type Config struct {
	Target   Target        `toml:"target"`
	Scanner  Scanner       `toml:"scanner"`
	Limits   Limits        `toml:"limits"`
	Refresh  Refresh       `toml:"refresh"`
	Patterns []Pattern     `toml:"pattern"`
	Roots    []Root        `toml:"root"`
	Layouts  layout.Schema `toml:"layout"`

	// Path is the file the configuration was loaded from, if any.
	Path string `toml:"-"`
}

// Target selects the process to attach to.
type Target struct {
	Process string `toml:"process"`
	// Module is the mapped image to scan; it defaults to Process.
	Module string `toml:"module"`
	// PID, when set, skips selection by name.
	PID int `toml:"pid"`
}

// Scanner configures the pattern scan.
type Scanner struct {
	ChunkSize     int   `toml:"chunk_size"`
	MaxParallel   int   `toml:"max_parallel"`
	InnerParallel int   `toml:"inner_parallel"`
	VerifyUnique  *bool `toml:"verify_unique"`
}

// Limits bounds reads and decoded containers.
type Limits struct {
	MaxElements    int   `toml:"max_elements"`
	MaxStringBytes int   `toml:"max_string_bytes"`
	MaxReadBytes   int64 `toml:"max_read_bytes"`
	TreeMargin     int   `toml:"tree_margin"`
}

// Refresh configures the refresh loop.
type Refresh struct {
	Interval time.Duration `toml:"interval"`
	// Parallel bounds concurrent child re-addressing within one collection.
	Parallel int `toml:"parallel"`
}

// Pattern is one entry of the pattern table.
type Pattern struct {
	Name  string `toml:"name"`
	Bytes string `toml:"bytes"`
	Skip  int    `toml:"skip"`
}

// Resolve modes turn a pattern match into a root address.
const (
	ResolveDirect = "direct"
	ResolveRIP32  = "rip32"
)

// Root kinds.
const (
	KindStruct  = "struct"
	KindVector  = "vector"
	KindList    = "list"
	KindMap     = "map"
	KindBuckets = "buckets"
	KindString  = "string"
	KindWString = "wstring"
)

// Root wires one top-level view to an address derived from the pattern table.
type Root struct {
	Name    string `toml:"name"`
	Pattern string `toml:"pattern"`
	Resolve string `toml:"resolve"`
	// Path is a pointer path walked from the resolved address.
	Path []uint64 `toml:"path"`

	Kind string `toml:"kind"`
	// Layout names the struct schema of a struct root.
	Layout string `toml:"layout"`
	// Element is the element (or map value) type of a container root.
	Element layout.FieldType `toml:"element"`
	// Key is the key type of a map root.
	Key layout.FieldType `toml:"key"`

	AlwaysRefresh bool `toml:"always_refresh"`
	// Strict makes unknown enum variants a decode error.
	Strict bool `toml:"strict"`
}

// Offsets returns the pointer path as memory sizes.
func (r Root) Offsets() []process.ProcessMemorySize {
	out := make([]process.ProcessMemorySize, len(r.Path))
	for i, off := range r.Path {
		out[i] = process.ProcessMemorySize(off)
	}
	return out
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg.Path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a configuration, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys: %v", undecoded)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Target.Module == "" {
		c.Target.Module = c.Target.Process
	}
	if c.Scanner.ChunkSize <= 0 {
		c.Scanner.ChunkSize = scanner.DefaultChunkSize
	}
	if c.Scanner.MaxParallel <= 0 {
		c.Scanner.MaxParallel = scanner.DefaultMaxParallel
	}
	if c.Scanner.InnerParallel <= 0 {
		c.Scanner.InnerParallel = scanner.DefaultInnerParallel
	}
	if c.Scanner.VerifyUnique == nil {
		verify := true
		c.Scanner.VerifyUnique = &verify
	}
	if c.Limits.MaxElements <= 0 {
		c.Limits.MaxElements = stl.DefaultMaxElements
	}
	if c.Limits.MaxStringBytes <= 0 {
		c.Limits.MaxStringBytes = stl.DefaultMaxStringBytes
	}
	if c.Limits.MaxReadBytes <= 0 {
		c.Limits.MaxReadBytes = int64(pod.DefaultMaxReadBytes)
	}
	if c.Limits.TreeMargin <= 0 {
		c.Limits.TreeMargin = stl.DefaultTreeMargin
	}
	if c.Refresh.Interval <= 0 {
		c.Refresh.Interval = 100 * time.Millisecond
	}
	if c.Refresh.Parallel <= 0 {
		c.Refresh.Parallel = 4
	}
	for i := range c.Roots {
		if c.Roots[i].Resolve == "" {
			c.Roots[i].Resolve = ResolveDirect
		}
	}
}

// Validate checks cross references between patterns, roots and layouts.
func (c *Config) Validate() error {
	if c.Target.Process == "" && c.Target.PID == 0 {
		return fmt.Errorf("target: process or pid is required")
	}
	if err := c.Layouts.Validate(); err != nil {
		return err
	}

	patterns := make(map[string]bool, len(c.Patterns))
	for _, p := range c.Patterns {
		if patterns[p.Name] {
			return fmt.Errorf("pattern %q defined twice", p.Name)
		}
		patterns[p.Name] = true
	}

	roots := make(map[string]bool, len(c.Roots))
	for _, r := range c.Roots {
		if r.Name == "" {
			return fmt.Errorf("root without a name")
		}
		if roots[r.Name] {
			return fmt.Errorf("root %q defined twice", r.Name)
		}
		roots[r.Name] = true

		if !patterns[r.Pattern] {
			return fmt.Errorf("root %q: pattern %q is not defined", r.Name, r.Pattern)
		}
		if r.Resolve != ResolveDirect && r.Resolve != ResolveRIP32 {
			return fmt.Errorf("root %q: unknown resolve mode %q", r.Name, r.Resolve)
		}
		if err := r.validateKind(c.Layouts); err != nil {
			return fmt.Errorf("root %q: %w", r.Name, err)
		}
	}
	return nil
}

func (r Root) validateKind(schema layout.Schema) error {
	switch r.Kind {
	case KindStruct:
		_, err := schema.Lookup(r.Layout)
		return err
	case KindVector, KindList, KindBuckets:
		if !r.Element.Scalar() {
			return fmt.Errorf("%s element %q is not a scalar type", r.Kind, r.Element)
		}
	case KindMap:
		if !r.Key.Scalar() || !r.Element.Scalar() {
			return fmt.Errorf("map key %q / value %q must be scalar types", r.Key, r.Element)
		}
	case KindString, KindWString:
	default:
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	return nil
}

// CompilePatterns parses the pattern table.
func (c *Config) CompilePatterns() ([]scanner.Pattern, error) {
	out := make([]scanner.Pattern, 0, len(c.Patterns))
	for _, p := range c.Patterns {
		compiled, err := scanner.ParsePattern(p.Name, p.Bytes, p.Skip)
		if err != nil {
			return nil, err
		}
		out = append(out, compiled)
	}
	return out, nil
}

// NewScanner returns a scanner configured from the [scanner] section.
func (c *Config) NewScanner() *scanner.Scanner {
	return scanner.New(
		scanner.WithChunkSize(c.Scanner.ChunkSize),
		scanner.WithParallelism(c.Scanner.MaxParallel, c.Scanner.InnerParallel),
		scanner.WithVerifyUnique(c.Scanner.VerifyUnique == nil || *c.Scanner.VerifyUnique),
	)
}

func (c *Config) ReaderLimits() pod.Limits {
	return pod.Limits{MaxReadBytes: process.ProcessMemorySize(c.Limits.MaxReadBytes)}
}

func (c *Config) DecoderLimits() stl.Limits {
	return stl.Limits{
		MaxElements:    c.Limits.MaxElements,
		MaxStringBytes: c.Limits.MaxStringBytes,
		TreeMargin:     c.Limits.TreeMargin,
	}
}
