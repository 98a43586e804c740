// Package ingest turns raw bank exports into canonical transactions.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/budget-tracker/internal/columnmap"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/fingerprint"
	"github.com/dvloznov/budget-tracker/internal/parse"
)

// headerScanRows is how many leading rows are searched for a header row when
// the first row is not one.
const headerScanRows = 10

// RowResult is the outcome of one data row: a transaction or a parse error.
type RowResult struct {
	Row         int
	Transaction *domain.Transaction
	Err         *domain.RowParseError
}

// Result is the structured outcome of ingesting one file. File-level failures
// are reported in Err with no transactions.
type Result struct {
	Transactions []*domain.Transaction
	Rows         []RowResult
	// Warnings has one entry per skipped row.
	Warnings []string
	// Info carries the detected format and mapping summary.
	Info    []string
	Mapping columnmap.Mapping
	Err     error
}

// Skipped returns the row-level parse errors.
func (r *Result) Skipped() []*domain.RowParseError {
	var out []*domain.RowParseError
	for _, row := range r.Rows {
		if row.Err != nil {
			out = append(out, row.Err)
		}
	}
	return out
}

// Ingestor reads files, maps their columns and converts rows.
type Ingestor struct {
	mapper   columnmap.Mapper
	registry *columnmap.Registry
	log      zerolog.Logger
}

// New returns an ingestor. registry is used to recover header rows that are
// preceded by preamble lines; nil selects the embedded formats.
func New(mapper columnmap.Mapper, registry *columnmap.Registry, log zerolog.Logger) *Ingestor {
	if registry == nil {
		registry = columnmap.DefaultRegistry()
	}
	return &Ingestor{mapper: mapper, registry: registry, log: log}
}

// Ingest reads data (with filename as a container hint) and returns the
// parsed transactions with per-row warnings. It never panics on bad input.
func (i *Ingestor) Ingest(ctx context.Context, data []byte, filename string) Result {
	log := i.log.With().Str("file", filename).Logger()

	table, attempted, err := ReadTable(data, filename)
	if err != nil {
		log.Warn().Err(err).Strs("encodings", attempted).Msg("unreadable file")
		return Result{Err: &domain.UnreadableFileError{Filename: filename, Attempted: attempted, Reason: err.Error()}}
	}

	var res Result
	if !table.IsSpreadsheet() && !i.recognised(table) {
		if t, name, ok := i.rereadAsKnown(data, table.Delimiter); ok {
			log.Debug().Str("format", name).Str("delimiter", string(t.Delimiter)).Msg("re-read with known layout")
			table = t
			res.Info = append(res.Info, fmt.Sprintf("sniffed delimiter gave no known header, re-read with the %s layout", name))
		}
	}
	if table.IsSpreadsheet() {
		res.Info = append(res.Info, fmt.Sprintf("read sheet %q", table.Sheet))
	} else {
		res.Info = append(res.Info, fmt.Sprintf("read as %s text delimited by %q", table.Encoding, table.Delimiter))
	}

	if idx, ok := i.locateHeader(table); ok {
		table = table.Reheader(idx)
		res.Info = append(res.Info, fmt.Sprintf("header row found after %d preamble rows", idx+1))
	}

	mapping, err := i.mapper.Map(ctx, table.Headers, table.Sample(5))
	if err != nil {
		log.Warn().Err(err).Strs("headers", table.Headers).Msg("column mapping failed")
		res.Err = err
		if !errors.Is(err, domain.ErrColumnMappingFailed) {
			res.Err = fmt.Errorf("Ingest: mapping columns: %w", err)
		}
		return res
	}
	res.Mapping = mapping
	if mapping.Source == columnmap.SourceOracle {
		res.Info = append(res.Info, "columns recognised by the assistant: "+mapping.Summary())
	} else {
		res.Info = append(res.Info, "detected format: "+mapping.Source)
	}

	conv := newConverter(table, mapping)
	for n, row := range table.Rows {
		rr := conv.row(n+1, row)
		res.Rows = append(res.Rows, rr)
		if rr.Err != nil {
			res.Warnings = append(res.Warnings, rr.Err.Error())
			continue
		}
		res.Transactions = append(res.Transactions, rr.Transaction)
	}

	if len(res.Transactions) == 0 && len(table.Rows) > 0 {
		res.Info = append(res.Info, "columns were recognised but no row held a valid date and amount")
	}
	log.Info().
		Str("format", mapping.Source).
		Int("parsed", len(res.Transactions)).
		Int("skipped", len(res.Warnings)).
		Msg("file ingested")
	return res
}

// recognised reports whether a known format matches the header row or one of
// the rows below it.
func (i *Ingestor) recognised(t *Table) bool {
	if _, _, ok := i.registry.Detect(t.Headers); ok {
		return true
	}
	_, ok := i.locateHeader(t)
	return ok
}

// rereadAsKnown decodes data with each known format's delimiter and encodings
// in registry order and returns the first table a format recognises. Formats
// sharing the sniffed delimiter are skipped.
func (i *Ingestor) rereadAsKnown(data []byte, sniffed rune) (*Table, string, bool) {
	for _, f := range i.registry.Formats() {
		comma, ok := f.Comma()
		if !ok || comma == sniffed {
			continue
		}
		encodings := f.Encodings
		if len(encodings) == 0 {
			encodings = Encodings
		}
		t, _, err := ReadDelimited(data, encodings, comma)
		if err != nil {
			continue
		}
		if _, _, ok := i.registry.Detect(t.Headers); ok {
			return t, f.Name, true
		}
		if _, ok := i.locateHeader(t); ok {
			return t, f.Name, true
		}
	}
	return nil, "", false
}

// locateHeader returns the data row to promote to header when the current
// header row matches no known format but one of the first rows does.
func (i *Ingestor) locateHeader(t *Table) (int, bool) {
	if _, _, ok := i.registry.Detect(t.Headers); ok {
		return 0, false
	}
	for idx, row := range t.Sample(headerScanRows) {
		if _, _, ok := i.registry.Detect(row); ok {
			return idx, true
		}
	}
	return 0, false
}

type converter struct {
	dates       *parse.Dates
	spreadsheet bool

	date, amount, income, expense, counterparty, description int
}

func newConverter(t *Table, m columnmap.Mapping) *converter {
	return &converter{
		dates:        parse.NewDates(m.DateLayouts...),
		spreadsheet:  t.IsSpreadsheet(),
		date:         t.ColumnIndex(m.Column(columnmap.FieldDate)),
		amount:       t.ColumnIndex(m.Column(columnmap.FieldAmount)),
		income:       t.ColumnIndex(m.Column(columnmap.FieldIncome)),
		expense:      t.ColumnIndex(m.Column(columnmap.FieldExpense)),
		counterparty: t.ColumnIndex(m.Column(columnmap.FieldCounterparty)),
		description:  t.ColumnIndex(m.Column(columnmap.FieldDescription)),
	}
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func (c *converter) row(n int, row []string) RowResult {
	fail := func(format string, args ...any) RowResult {
		return RowResult{Row: n, Err: &domain.RowParseError{Row: n, Reason: fmt.Sprintf(format, args...)}}
	}

	rawDate := cell(row, c.date)
	date, ok := c.parseDate(rawDate)
	if !ok {
		return fail("invalid date %q", rawDate)
	}

	amount, err := c.parseAmount(row)
	if err != nil {
		return fail("%v", err)
	}

	tx := &domain.Transaction{
		Date:         date,
		Amount:       amount,
		Counterparty: strings.Join(strings.Fields(parse.Text(cell(row, c.counterparty))), " "),
		Description:  parse.Description(cell(row, c.description)),
	}
	tx.Fingerprint = fingerprint.Of(tx)
	return RowResult{Row: n, Transaction: tx}
}

func (c *converter) parseDate(raw string) (time.Time, bool) {
	if d, ok := c.dates.Parse(raw); ok {
		return d, true
	}
	if !c.spreadsheet {
		return time.Time{}, false
	}
	// Raw workbook cells hold dates as serial day numbers.
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || serial <= 0 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return domain.Date(t), true
}

func (c *converter) parseAmount(row []string) (decimal.Decimal, error) {
	split := c.income >= 0 || c.expense >= 0

	if c.amount >= 0 {
		raw := cell(row, c.amount)
		if parse.Text(raw) != "" {
			v, ok := parse.Amount(raw)
			if !ok {
				return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
			}
			return v, nil
		}
		if !split {
			return decimal.Zero, errors.New("missing amount")
		}
	}

	return parse.SplitAmount(cell(row, c.income), cell(row, c.expense))
}
