package report

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"memview/process/memory_map"
)

// HexDump formats memory as offset, hex and ASCII columns.
type HexDump struct {
	// Address is the remote address of the first byte.
	Address uint64
	// BytesPerLine defaults to 16.
	BytesPerLine int
	// Highlight marks bytes [Highlight, Highlight+HighlightLen) relative to Address.
	Highlight    int
	HighlightLen int
	// MemoryMap, when set, underlines aligned 8-byte values that point into
	// a readable region.
	MemoryMap []memory_map.MemoryMapItem
	// Color enables ANSI colors.
	Color bool
}

// Write dumps data to w.
func (h HexDump) Write(w io.Writer, data []byte) error {
	perLine := h.BytesPerLine
	if perLine <= 0 {
		perLine = 16
	}
	pointers := h.pointerBytes(data)

	for off := 0; off < len(data); off += perLine {
		end := min(off+perLine, len(data))
		var sb strings.Builder

		addr := fmt.Sprintf("%016x", h.Address+uint64(off))
		if h.Color {
			addr = Cyan(addr)
		}
		sb.WriteString(addr)
		sb.WriteString("  ")

		for i := off; i < off+perLine; i++ {
			if i < end {
				sb.WriteString(h.colorByte(i, data[i], pointers[i], fmt.Sprintf("%02x", data[i])))
				sb.WriteByte(' ')
			} else {
				sb.WriteString("   ")
			}
			if (i-off)%8 == 7 {
				sb.WriteByte(' ')
			}
		}

		sb.WriteString("|")
		for i := off; i < end; i++ {
			c := "."
			if data[i] >= 0x20 && data[i] < 0x7f {
				c = string(data[i])
			}
			sb.WriteString(h.colorByte(i, data[i], false, c))
		}
		sb.WriteString("|")

		if _, err := fmt.Fprintln(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

// String returns the dump of data as text.
func (h HexDump) String(data []byte) string {
	var sb strings.Builder
	h.Write(&sb, data)
	return sb.String()
}

func (h HexDump) colorByte(i int, b byte, pointer bool, s string) string {
	if !h.Color {
		return s
	}
	switch {
	case i >= h.Highlight && i < h.Highlight+h.HighlightLen:
		return Yellow(s)
	case pointer:
		return Green(s)
	case b == 0:
		return Gray(s)
	}
	return s
}

// pointerBytes flags the bytes of aligned values that point into a readable region.
func (h HexDump) pointerBytes(data []byte) []bool {
	flags := make([]bool, len(data))
	if len(h.MemoryMap) == 0 {
		return flags
	}
	start := int((8 - h.Address%8) % 8)
	for i := start; i+8 <= len(data); i += 8 {
		v := binary.LittleEndian.Uint64(data[i:])
		region := memory_map.IsValidAddress2(v, h.MemoryMap)
		if region != nil && region.IsReadable() {
			for j := i; j < i+8; j++ {
				flags[j] = true
			}
		}
	}
	return flags
}
