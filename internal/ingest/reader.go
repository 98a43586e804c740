package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Encodings are tried in this order for delimited text.
var Encodings = []string{"utf-8", "latin-1", "iso-8859-1", "cp1252"}

// Delimiters are the candidates considered by delimiter sniffing, in
// tie-break order.
var Delimiters = []rune{',', ';', '\t', '|'}

const sniffLines = 5

var zipMagic = []byte("PK\x03\x04")

// oleMagic opens a compound document, the container of BIFF .xls workbooks.
var oleMagic = []byte("\xd0\xcf\x11\xe0\xa1\xb1\x1a\xe1")

// ErrLegacyWorkbook is returned for BIFF .xls workbooks, which have no reader.
var ErrLegacyWorkbook = errors.New("legacy .xls workbooks are not supported, save the file as .xlsx or .csv")

var spreadsheetExts = map[string]bool{".xlsx": true, ".xlsm": true, ".xls": true}

// IsSpreadsheet reports whether the data should be read as a workbook. The
// filename extension is a hint; zip content is detected regardless of name.
func IsSpreadsheet(data []byte, filename string) bool {
	return spreadsheetExts[strings.ToLower(filepath.Ext(filename))] || bytes.HasPrefix(data, zipMagic)
}

// ReadTable decodes raw bytes into a table. Workbooks are read from their
// first sheet; everything else is treated as delimited text.
func ReadTable(data []byte, filename string) (*Table, []string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, fmt.Errorf("ReadTable: file is empty")
	}
	if bytes.HasPrefix(data, oleMagic) {
		return nil, nil, fmt.Errorf("ReadTable: %w", ErrLegacyWorkbook)
	}

	if IsSpreadsheet(data, filename) {
		t, err := readWorkbook(data)
		if err == nil && !t.Empty() {
			return t, nil, nil
		}
		// Mislabelled text falls through to the text path.
		if bytes.HasPrefix(data, zipMagic) {
			if err == nil {
				err = errors.New("first sheet has no data rows")
			}
			return nil, []string{"xlsx"}, fmt.Errorf("ReadTable: reading workbook: %w", err)
		}
	}

	return readDelimited(data)
}

func readWorkbook(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	t := newTable(rows)
	t.Sheet = sheets[0]
	return t, nil
}

func readDelimited(data []byte) (*Table, []string, error) {
	return ReadDelimited(data, Encodings, 0)
}

// ReadDelimited decodes data as delimited text, trying encodings in order. A
// zero delim is sniffed per encoding.
func ReadDelimited(data []byte, encodings []string, delim rune) (*Table, []string, error) {
	var attempted []string
	for _, enc := range encodings {
		attempted = append(attempted, enc)

		text, err := decode(data, enc)
		if err != nil {
			continue
		}
		comma := delim
		if comma == 0 {
			comma = SniffDelimiter(text)
		}
		records, err := readRecords(text, comma)
		if err != nil {
			continue
		}
		t := newTable(records)
		if t.Empty() {
			continue
		}
		t.Encoding = enc
		t.Delimiter = comma
		return t, attempted, nil
	}
	return nil, attempted, errors.New("no encoding and delimiter produced a non-empty table")
}

func decode(data []byte, enc string) (string, error) {
	var dec *encoding.Decoder
	switch enc {
	case "utf-8":
		data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
		if !utf8.Valid(data) {
			return "", errors.New("invalid utf-8")
		}
		return string(data), nil
	case "latin-1", "iso-8859-1":
		dec = charmap.ISO8859_1.NewDecoder()
	case "cp1252":
		dec = charmap.Windows1252.NewDecoder()
	default:
		return "", fmt.Errorf("unsupported encoding %q", enc)
	}
	out, err := dec.Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// SniffDelimiter picks the candidate delimiter occurring most often in the
// first lines of text. Ties go to the earlier candidate; ',' is the default.
func SniffDelimiter(text string) rune {
	lines := strings.SplitN(text, "\n", sniffLines+1)
	if len(lines) > sniffLines {
		lines = lines[:sniffLines]
	}
	sample := strings.Join(lines, "\n")

	best, bestCount := Delimiters[0], 0
	for _, d := range Delimiters {
		if n := strings.Count(sample, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// readRecords parses delimited text. Malformed lines are skipped.
func readRecords(text string, delim rune) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
