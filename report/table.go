// Package report renders scan results, read statistics and memory excerpts
// for the command line tools.
package report

import (
	"fmt"
	"io"
	"strings"
)

// FormatFunc colors or decorates a cell after its width has been measured.
type FormatFunc func(value string) string

// Column describes one column of a Table.
type Column struct {
	Header string
	// Blank replaces empty cells; it defaults to "-".
	Blank  string
	Format FormatFunc
	// Right aligns the column to the right, for numbers.
	Right    bool
	MinWidth int
}

// Table is a plain text table with a header row.
type Table struct {
	columns []Column
	rows    [][]string
	widths  []int
}

func NewTable(cols ...Column) *Table {
	t := &Table{
		columns: cols,
		widths:  make([]int, len(cols)),
	}
	for i := range t.columns {
		if t.columns[i].Blank == "" {
			t.columns[i].Blank = "-"
		}
		t.widths[i] = max(t.columns[i].MinWidth, visibleLength(t.columns[i].Header))
	}
	return t
}

// AddRow appends a row. Missing trailing cells are blank; extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.columns))
	for i := range row {
		if i < len(cells) && cells[i] != "" {
			row[i] = cells[i]
		} else {
			row[i] = t.columns[i].Blank
		}
		t.widths[i] = max(t.widths[i], visibleLength(row[i]))
	}
	t.rows = append(t.rows, row)
}

func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the header, a rule and every row to w.
func (t *Table) Render(w io.Writer) error {
	headers := make([]string, len(t.columns))
	rule := make([]string, len(t.columns))
	for i, col := range t.columns {
		headers[i] = t.pad(i, col.Header)
		rule[i] = strings.Repeat("-", t.widths[i])
	}
	if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(headers, "  "), " ")); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Join(rule, "  ")); err != nil {
		return err
	}

	for _, row := range t.rows {
		cells := make([]string, len(row))
		for i, val := range row {
			cells[i] = t.pad(i, val)
			if f := t.columns[i].Format; f != nil {
				cells[i] = strings.Replace(cells[i], val, f(val), 1)
			}
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " ")); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) pad(col int, s string) string {
	n := t.widths[col] - visibleLength(s)
	if n <= 0 {
		return s
	}
	if t.columns[col].Right {
		return strings.Repeat(" ", n) + s
	}
	return s + strings.Repeat(" ", n)
}

// visibleLength counts runes outside ANSI escape sequences.
func visibleLength(s string) int {
	length := 0
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\033':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			length++
		}
	}
	return length
}

func ansi(code int, s string) string {
	return fmt.Sprintf("\033[%dm%s\033[0m", code, s)
}

func Red(s string) string    { return ansi(31, s) }
func Green(s string) string  { return ansi(32, s) }
func Yellow(s string) string { return ansi(33, s) }
func Cyan(s string) string   { return ansi(36, s) }
func Gray(s string) string   { return ansi(90, s) }

// Plain returns s unchanged, for Format when color is disabled.
func Plain(s string) string { return s }

// ZeroGray grays out blank and zero cells.
func ZeroGray(s string) string {
	if s == "-" || s == "0" || s == "0x0" {
		return Gray(s)
	}
	return s
}
