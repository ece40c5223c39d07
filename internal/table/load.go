package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/csvoracle-cli/internal/archive"
)

// Delimiters tried by the sniffer, in tie-break order.
var Delimiters = []rune{',', ';', '\t', '|'}

const sniffBytes = 64 * 1024

// LoadOptions controls how CSV files are parsed and combined.
type LoadOptions struct {
	// Delimiter forces a separator; zero means sniff per file.
	Delimiter rune
	// SourceColumn, when set, appends a column with this name holding each row's file name.
	SourceColumn string
	// Open overrides how files are opened; defaults to archive.OpenCSV.
	Open func(dir, name string) (io.ReadCloser, error)
}

// Warning describes a row that was skipped while reading a file.
type Warning struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s:%d: %s", w.File, w.Line, w.Reason)
}

var (
	// ErrNoColumns is wrapped when a file has no header row at all.
	ErrNoColumns = errors.New("no columns to parse from file")
	// ErrSourceColumnExists is wrapped when the source column name is already a header.
	ErrSourceColumnExists = errors.New("source column clashes with an existing column")
)

// Load reads each named file under dir and concatenates them in order into
// one table. Columns are the ordered union of all headers; cells a file does
// not have are left empty. An empty file list yields a nil table and no error.
func Load(dir string, files []string, opts LoadOptions) (*Table, []Warning, error) {
	if len(files) == 0 {
		return nil, nil, nil
	}
	open := opts.Open
	if open == nil {
		open = archive.OpenCSV
	}

	var (
		parts    []*Table
		warnings []Warning
	)
	for _, name := range files {
		part, warns, err := loadFile(dir, name, opts.Delimiter, open)
		if err != nil {
			return nil, warnings, fmt.Errorf("read file %s: %w", name, err)
		}
		if opts.SourceColumn != "" {
			if part.ColumnIndex(opts.SourceColumn) >= 0 {
				return nil, warnings, fmt.Errorf("read file %s: %w: %q", name, ErrSourceColumnExists, opts.SourceColumn)
			}
			part.Columns = append(part.Columns, opts.SourceColumn)
			for i := range part.Rows {
				part.Rows[i] = append(part.Rows[i], name)
			}
		}
		parts = append(parts, part)
		warnings = append(warnings, warns...)
	}
	return Concat(parts...), warnings, nil
}

// Concat stacks tables vertically, aligning cells by column name.
func Concat(parts ...*Table) *Table {
	out := &Table{}
	pos := map[string]int{}
	for _, p := range parts {
		for _, c := range p.Columns {
			if _, ok := pos[c]; !ok {
				pos[c] = len(out.Columns)
				out.Columns = append(out.Columns, c)
			}
		}
	}
	for _, p := range parts {
		idx := make([]int, len(p.Columns))
		for i, c := range p.Columns {
			idx[i] = pos[c]
		}
		for _, r := range p.Rows {
			row := make([]string, len(out.Columns))
			for i, v := range r {
				row[idx[i]] = v
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

func loadFile(dir, name string, delim rune, open func(string, string) (io.ReadCloser, error)) (*Table, []Warning, error) {
	rc, err := open(dir, name)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()
	return Read(name, rc, delim)
}

// Read parses one CSV stream. The first record is the header. Rows with more
// fields than the header or with broken quoting are skipped and reported;
// shorter rows are padded with empty cells. After a quoting error, parsing
// resumes on the line following the broken record, or on the line after its
// start when an unterminated quote swallowed the rest of the input.
func Read(name string, r io.Reader, delim rune) (*Table, []Warning, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	if len(bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\ufeff")))) == 0 {
		return nil, nil, ErrNoColumns
	}
	if delim == 0 {
		delim = Sniff(data[:min(len(data), sniffBytes)])
	}

	starts := lineStarts(data)
	lines := len(starts)
	if starts[lines-1] == len(data) {
		lines--
	}
	newReader := func(line int) *csv.Reader {
		cr := csv.NewReader(bytes.NewReader(data[starts[line-1]:]))
		cr.Comma = delim
		cr.FieldsPerRecord = -1
		return cr
	}

	// base is the absolute line number of the current reader's first line.
	base := 1
	cr := newReader(base)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrNoColumns
		}
		return nil, nil, err
	}
	t := &Table{Columns: normalizeHeader(header)}

	var warnings []Warning
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, warnings, err
			}
			first, last := base+pe.StartLine-1, base+pe.Line-1
			warnings = append(warnings, Warning{File: name, Line: first, Reason: pe.Err.Error()})
			resume := last + 1
			if resume > lines && last > first {
				resume = first + 1
			}
			if resume > lines {
				break
			}
			base = resume
			cr = newReader(base)
			continue
		}
		if len(rec) > len(t.Columns) {
			line, _ := cr.FieldPos(0)
			warnings = append(warnings, Warning{
				File:   name,
				Line:   base + line - 1,
				Reason: fmt.Sprintf("expected %d fields, saw %d", len(t.Columns), len(rec)),
			})
			continue
		}
		t.Append(rec)
	}
	return t, warnings, nil
}

// lineStarts returns the byte offset of every line in data; the last entry
// equals len(data) when data ends with a newline.
func lineStarts(data []byte) []int {
	starts := []int{0}
	for i, b := range data {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// normalizeHeader strips a BOM, names blank columns and de-duplicates names.
func normalizeHeader(header []string) []string {
	cols := make([]string, len(header))
	used := map[string]bool{}
	dups := map[string]int{}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		name := h
		for used[name] {
			dups[h]++
			name = fmt.Sprintf("%s.%d", h, dups[h])
		}
		used[name] = true
		cols[i] = name
	}
	return cols
}

// Sniff guesses the delimiter from the first lines of a file. A candidate
// scores by how many lines share the header's field count; ties go to the
// earlier entry in Delimiters. Falls back to ','.
func Sniff(sample []byte) rune {
	sample = bytes.TrimPrefix(sample, []byte("\ufeff"))
	// drop a trailing partial line when the sample was cut short
	if i := bytes.LastIndexByte(sample, '\n'); i > 0 && i < len(sample)-1 && len(sample) >= sniffBytes {
		sample = sample[:i+1]
	}
	best, bestScore := ',', -1
	for _, d := range Delimiters {
		cr := csv.NewReader(bytes.NewReader(sample))
		cr.Comma = d
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = true
		header, err := cr.Read()
		if err != nil || len(header) < 2 {
			continue
		}
		score := 0
		for lines := 0; lines < 20; lines++ {
			rec, err := cr.Read()
			if err != nil {
				break
			}
			if len(rec) == len(header) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}
