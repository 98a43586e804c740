package columnmap

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/oracle"
)

// maxSampleRows bounds the rows sent to the oracle.
const maxSampleRows = 5

// Oracle asks a text-completion oracle for the mapping of unknown layouts.
type Oracle struct {
	oracle oracle.Oracle
	log    zerolog.Logger
}

// NewOracle returns an oracle-backed mapper.
func NewOracle(o oracle.Oracle, log zerolog.Logger) *Oracle {
	return &Oracle{oracle: o, log: log}
}

// Map implements Mapper. Headers named in the reply are validated
// case-insensitively against the real headers; unknown ones are dropped.
func (m *Oracle) Map(ctx context.Context, headers []string, sample [][]string) (Mapping, error) {
	if !oracle.IsEnabled(m.oracle) {
		return Mapping{}, newMappingError(headers, Mapping{})
	}

	raw, err := m.oracle.Complete(ctx, buildPrompt(headers, sample))
	if err != nil {
		m.log.Warn().Err(err).Msg("column mapping oracle unavailable")
		return Mapping{}, fmt.Errorf("Oracle.Map: %w", newMappingError(headers, Mapping{}))
	}

	var reply map[string]any
	if err := oracle.Decode(raw, &reply); err != nil {
		m.log.Warn().Err(err).Str("response", raw).Msg("column mapping reply is not JSON")
		return Mapping{}, newMappingError(headers, Mapping{})
	}

	mapping := Mapping{Columns: make(map[Field]string), Source: SourceOracle}
	for _, f := range Fields {
		name, ok := reply[string(f)].(string)
		if !ok {
			continue
		}
		if actual, ok := resolve(headers, name); ok {
			mapping.Columns[f] = actual
		} else if strings.TrimSpace(name) != "" {
			m.log.Debug().Str("field", string(f)).Str("column", name).Msg("oracle named a column that does not exist")
		}
	}

	if !mapping.Valid() {
		return Mapping{}, newMappingError(headers, mapping)
	}
	m.log.Info().Str("mapping", mapping.Summary()).Msg("columns mapped by oracle")
	return mapping, nil
}

func buildPrompt(headers []string, sample [][]string) string {
	quoted := make([]string, len(headers))
	for i, h := range headers {
		quoted[i] = "'" + h + "'"
	}

	rows := make([]map[string]string, 0, maxSampleRows)
	for i, row := range sample {
		if i == maxSampleRows {
			break
		}
		rec := make(map[string]string, len(headers))
		for j, h := range headers {
			if j < len(row) {
				rec[h] = row[j]
			}
		}
		rows = append(rows, rec)
	}
	sampleJSON, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		sampleJSON = []byte("[]")
	}

	var b strings.Builder
	b.WriteString("You are an expert at analyzing bank transaction files. Given the following column headers and a few sample rows, identify which columns map to our database fields.\n\n")
	b.WriteString("COLUMNS IN FILE:\n")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString("\n\nSAMPLE DATA (first rows):\n")
	b.Write(sampleJSON)
	b.WriteString("\n\nTASK: Map the file's columns to these standardized fields:\n" +
		"- \"date\": The transaction date column (e.g., \"Date\", \"Datum\", \"Completed\"). REQUIRED.\n" +
		"- \"amount\": The single column containing money values (e.g., \"Amount\", \"Value\", \"Bedrag\").\n" +
		"- \"income\": The column for incoming funds/deposits (e.g., \"Credit\", \"Income\", \"Deposits\", \"Bij\", \"Cr\").\n" +
		"- \"expense\": The column for outgoing funds/withdrawals (e.g., \"Debit\", \"Expense\", \"Withdrawals\", \"Af\", \"Dr\").\n" +
		"- \"counterparty\": The payee/merchant/recipient name.\n" +
		"- \"description\": The transaction description or notes.\n\n")
	b.WriteString("RULES:\n" +
		"1. You MUST use the EXACT spelling and casing of the column names listed under COLUMNS IN FILE.\n" +
		"2. If the file uses split columns (e.g. \"Debit\" and \"Credit\"), map both \"income\" and \"expense\".\n" +
		"3. Use the sample data to see which column holds signed numbers when there is a single amount column.\n\n")
	b.WriteString("Return ONLY a JSON object of this shape, using null for fields that have no column:\n" +
		"{\"date\": \"...\", \"amount\": \"...\", \"income\": \"...\", \"expense\": \"...\", \"counterparty\": \"...\", \"description\": \"...\"}\n")
	return b.String()
}
