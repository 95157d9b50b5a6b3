package scanner

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Pattern is a named byte signature. Mask[i] false makes Bytes[i] a wildcard.
// Skip is added to the match location to give the recorded offset.
type Pattern struct {
	Name  string
	Bytes []byte
	Mask  []bool
	Skip  int
}

// ParsePattern parses a signature such as "48 8B 05 ^ ?? ?? ?? ?? 48 85 C0".
// Bytes are hex, "??" or "?" is a wildcard, and a "^" marks the skip
// position. A "^" and a non-zero skip argument must agree.
func ParsePattern(name, text string, skip int) (Pattern, error) {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	p := Pattern{Name: name, Skip: skip}
	marker := -1
	for _, part := range parts {
		switch part {
		case "??", "?":
			p.Bytes = append(p.Bytes, 0)
			p.Mask = append(p.Mask, false)
			continue
		case "^":
			if marker >= 0 {
				return Pattern{}, fmt.Errorf("pattern %q: more than one skip marker", name)
			}
			marker = len(p.Bytes)
			continue
		}

		val, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return Pattern{}, fmt.Errorf("pattern %q: invalid hex byte %q", name, part)
		}
		p.Bytes = append(p.Bytes, byte(val))
		p.Mask = append(p.Mask, true)
	}

	if marker >= 0 {
		if skip != 0 && skip != marker {
			return Pattern{}, fmt.Errorf("pattern %q: skip %d disagrees with marker at %d", name, skip, marker)
		}
		p.Skip = marker
	}
	return p, p.Validate()
}

// MustParsePattern is ParsePattern for patterns known at compile time.
func MustParsePattern(name, text string, skip int) Pattern {
	p, err := ParsePattern(name, text, skip)
	if err != nil {
		panic(err)
	}
	return p
}

// Validate checks the pattern invariants.
func (p Pattern) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("pattern has no name")
	case len(p.Bytes) == 0:
		return fmt.Errorf("pattern %q is empty", p.Name)
	case len(p.Bytes) != len(p.Mask):
		return fmt.Errorf("pattern %q: mask length (%d) doesn't match pattern length (%d)", p.Name, len(p.Mask), len(p.Bytes))
	case p.Skip < 0:
		return fmt.Errorf("pattern %q: negative skip %d", p.Name, p.Skip)
	}
	for _, m := range p.Mask {
		if m {
			return nil
		}
	}
	return fmt.Errorf("pattern %q is all wildcards", p.Name)
}

func (p Pattern) String() string {
	var sb strings.Builder
	for i, b := range p.Bytes {
		if i > 0 {
			sb.WriteString(" ")
		}
		if i == p.Skip && p.Skip > 0 {
			sb.WriteString("^ ")
		}
		if !p.Mask[i] {
			sb.WriteString("??")
		} else {
			sb.WriteString(strings.ToUpper(hex.EncodeToString([]byte{b})))
		}
	}
	return sb.String()
}

// matchAt reports whether p matches data at pos. data[pos:] must hold at
// least len(p.Bytes) bytes. Odd-length patterns test the middle byte first;
// the rest is compared from both ends toward the middle.
func (p *Pattern) matchAt(data []byte, pos int) bool {
	n := len(p.Bytes)
	window := data[pos : pos+n]
	if n%2 == 1 {
		m := n / 2
		if p.Mask[m] && window[m] != p.Bytes[m] {
			return false
		}
	}
	for l := 0; l < n/2; l++ {
		r := n - 1 - l
		if p.Mask[l] && window[l] != p.Bytes[l] {
			return false
		}
		if p.Mask[r] && window[r] != p.Bytes[r] {
			return false
		}
	}
	return true
}
