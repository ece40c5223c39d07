// Package table holds the combined in-memory table built from the CSV files
// of an archive, and the loader that builds it.
package table

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Table is a rectangular string table. A row's position is its index;
// every row has exactly len(Columns) cells and "" means missing.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// New returns an empty table with the given columns.
func New(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Append adds a row, padding or truncating it to the column count.
func (t *Table) Append(row []string) {
	r := make([]string, len(t.Columns))
	copy(r, row)
	t.Rows = append(t.Rows, r)
}

// ColumnIndex returns the position of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column's values.
func (t *Table) Column(name string) ([]string, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out, true
}

// Head returns a table sharing the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

// String renders the table as fixed-width text with a leading row index,
// right-aligned like a dataframe printout.
func (t *Table) String() string {
	if t == nil {
		return ""
	}
	if len(t.Columns) == 0 {
		return "Empty table\nColumns: []\nIndex: []"
	}
	if len(t.Rows) == 0 {
		return fmt.Sprintf("Empty table\nColumns: [%s]\nIndex: []", strings.Join(t.Columns, ", "))
	}
	idxWidth := len(strconv.Itoa(len(t.Rows) - 1))
	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = utf8.RuneCountInString(c)
	}
	for _, r := range t.Rows {
		for i, v := range r {
			if n := utf8.RuneCountInString(displayCell(v)); n > widths[i] {
				widths[i] = n
			}
		}
	}
	var b strings.Builder
	b.WriteString(strings.Repeat(" ", idxWidth))
	for i, c := range t.Columns {
		b.WriteString("  ")
		b.WriteString(padLeft(c, widths[i]))
	}
	b.WriteString("\n")
	for ri, r := range t.Rows {
		b.WriteString(padLeft(strconv.Itoa(ri), idxWidth))
		for i, v := range r {
			b.WriteString("  ")
			b.WriteString(padLeft(displayCell(v), widths[i]))
		}
		if ri < len(t.Rows)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func displayCell(v string) string {
	if v == "" {
		return "NaN"
	}
	v = strings.ReplaceAll(v, "\n", " ")
	if utf8.RuneCountInString(v) > 50 {
		r := []rune(v)
		return string(r[:47]) + "..."
	}
	return v
}

func padLeft(s string, w int) string {
	n := utf8.RuneCountInString(s)
	if n >= w {
		return s
	}
	return strings.Repeat(" ", w-n) + s
}
