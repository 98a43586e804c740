package ingest

import (
	"github.com/dvloznov/budget-tracker/internal/parse"
)

// Table is a decoded export: a header row plus data rows of equal width.
type Table struct {
	Headers []string
	Rows    [][]string

	// Encoding and Delimiter describe how a delimited file was decoded.
	Encoding  string
	Delimiter rune
	// Sheet is set for spreadsheets; cells then hold raw values and dates may
	// be serial numbers.
	Sheet string
}

// IsSpreadsheet reports whether the table came from a workbook.
func (t *Table) IsSpreadsheet() bool {
	return t.Sheet != ""
}

// Empty reports whether the table has no data rows.
func (t *Table) Empty() bool {
	return t == nil || len(t.Headers) == 0 || len(t.Rows) == 0
}

// newTable takes the first record as header, pads ragged rows and drops
// empty rows and columns.
func newTable(records [][]string) *Table {
	records = dropEmptyRows(records)
	if len(records) == 0 {
		return &Table{}
	}

	width := 0
	for _, r := range records {
		width = max(width, len(r))
	}
	for i, r := range records {
		if len(r) < width {
			padded := make([]string, width)
			copy(padded, r)
			records[i] = padded
		}
	}

	t := &Table{Headers: records[0], Rows: records[1:]}
	t.dropEmptyColumns()
	return t
}

// Reheader promotes data row idx to the header row and drops everything above it.
func (t *Table) Reheader(idx int) *Table {
	if idx < 0 || idx >= len(t.Rows) {
		return t
	}
	out := *t
	out.Headers = t.Rows[idx]
	out.Rows = t.Rows[idx+1:]
	out.dropEmptyColumns()
	return &out
}

// Sample returns up to n data rows.
func (t *Table) Sample(n int) [][]string {
	if len(t.Rows) < n {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}

// ColumnIndex returns the position of an exact header, or -1.
func (t *Table) ColumnIndex(header string) int {
	if header == "" {
		return -1
	}
	for i, h := range t.Headers {
		if h == header {
			return i
		}
	}
	return -1
}

func dropEmptyRows(records [][]string) [][]string {
	out := records[:0]
	for _, r := range records {
		if !blankRow(r) {
			out = append(out, r)
		}
	}
	return out
}

// dropEmptyColumns removes columns whose header and values are all blank.
// A named column without values is kept so that split debit/credit layouts
// still match when one side is unused.
func (t *Table) dropEmptyColumns() {
	keep := make([]int, 0, len(t.Headers))
	for c := range t.Headers {
		if parse.Text(t.Headers[c]) != "" {
			keep = append(keep, c)
			continue
		}
		for _, r := range t.Rows {
			if c < len(r) && parse.Text(r[c]) != "" {
				keep = append(keep, c)
				break
			}
		}
	}
	if len(keep) == len(t.Headers) {
		return
	}

	t.Headers = pick(t.Headers, keep)
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = pick(r, keep)
	}
	t.Rows = rows
}

func pick(row []string, cols []int) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		if c < len(row) {
			out[i] = row[c]
		}
	}
	return out
}

func blankRow(r []string) bool {
	for _, c := range r {
		if parse.Text(c) != "" {
			return false
		}
	}
	return true
}
