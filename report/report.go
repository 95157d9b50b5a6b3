package report

import (
	"fmt"
	"strconv"

	"memview/pod"
	"memview/process/memory_map"
	"memview/scanner"

	"github.com/dustin/go-humanize"
)

// Offsets lists every resolved pattern with its offset and absolute address.
func Offsets(t *scanner.OffsetTable) *Table {
	table := NewTable(
		Column{Header: "PATTERN"},
		Column{Header: "OFFSET", Right: true},
		Column{Header: "ADDRESS", Right: true},
	)
	for _, name := range t.Names() {
		off, _ := t.Offset(name)
		table.AddRow(name, fmt.Sprintf("0x%x", uint64(off)), t.Base.Add(off).String())
	}
	return table
}

// Stats summarizes a reader's accounting.
func Stats(s pod.Stats) *Table {
	table := NewTable(
		Column{Header: "METRIC"},
		Column{Header: "VALUE", Right: true, Format: ZeroGray},
	)
	table.AddRow("reads", humanize.Comma(int64(s.Reads)))
	table.AddRow("bytes read", humanize.IBytes(s.BytesRead))
	table.AddRow("invalid address", strconv.FormatUint(s.InvalidAddress, 10))
	table.AddRow("os read failure", strconv.FormatUint(s.OsReadFailure, 10))
	table.AddRow("partial read", strconv.FormatUint(s.PartialRead, 10))
	table.AddRow("corrupt data", strconv.FormatUint(s.CorruptData, 10))
	return table
}

// Regions lists a memory map.
func Regions(regions []memory_map.MemoryMapItem) *Table {
	table := NewTable(
		Column{Header: "START"},
		Column{Header: "END"},
		Column{Header: "PERMS"},
		Column{Header: "SIZE", Right: true},
		Column{Header: "PATH"},
	)
	for _, r := range regions {
		table.AddRow(
			fmt.Sprintf("%016x", r.Address),
			fmt.Sprintf("%016x", r.End()),
			r.Perms,
			humanize.IBytes(uint64(r.Size)),
			r.Path,
		)
	}
	return table
}
