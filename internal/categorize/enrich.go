package categorize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/oracle"
)

const (
	// DefaultBatchSize is how many transactions go into one oracle prompt.
	DefaultBatchSize = 100

	applyCategoryConfidence = 0.5
	renameConfidence        = 0.8
	defaultConfidence       = 0.5
)

// renameable are counterparty names the oracle may replace.
var renameable = map[string]bool{
	"":               true,
	"kbc ---":        true,
	"---":            true,
	"onbekend":       true,
	"overschrijving": true,
}

// Enricher asks the oracle for merchant names and categories. A failing or
// disabled oracle leaves transactions unchanged.
type Enricher struct {
	oracle    oracle.Oracle
	batchSize int
	log       zerolog.Logger
}

// NewEnricher returns an enricher with the default batch size.
func NewEnricher(o oracle.Oracle, log zerolog.Logger) *Enricher {
	return &Enricher{oracle: o, batchSize: DefaultBatchSize, log: log}
}

// EnrichResult summarises an enrichment pass.
type EnrichResult struct {
	Enriched    int
	Categorized int
	Renamed     int
	// Notices are non-fatal messages for the user, e.g. an unavailable oracle.
	Notices []string
}

type suggestion struct {
	Index      *int     `json:"index"`
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	Reasoning  string   `json:"reasoning"`
	Confidence *float64 `json:"confidence"`
}

type promptTx struct {
	Index       int     `json:"index"`
	RawName     string  `json:"raw_name"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
}

// Enrich annotates txs in place with the oracle's suggestions. The category
// is applied when confidence > 0.5 and it resolves to one of categories; the
// counterparty is replaced when confidence > 0.8 and the current name is vague.
func (e *Enricher) Enrich(ctx context.Context, txs []*domain.Transaction, categories []domain.Category) EnrichResult {
	var res EnrichResult
	if !oracle.IsEnabled(e.oracle) || len(txs) == 0 {
		return res
	}

	prompt := categoriesContext(categories)
	for start := 0; start < len(txs); start += e.batchSize {
		end := min(start+e.batchSize, len(txs))
		chunk := txs[start:end]

		raw, err := e.oracle.Complete(ctx, buildEnrichPrompt(prompt, chunk))
		if err != nil {
			e.log.Warn().Err(err).Int("batch_start", start).Msg("enrichment oracle unavailable, keeping rule-based categories")
			res.Notices = append(res.Notices, fmt.Sprintf("AI enrichment skipped for transactions %d-%d: %v", start+1, end, err))
			if ctx.Err() != nil {
				return res
			}
			continue
		}

		var items []suggestion
		if err := oracle.Decode(raw, &items); err != nil || len(items) == 0 {
			e.log.Warn().Err(err).Int("batch_start", start).Msg("enrichment reply unusable")
			res.Notices = append(res.Notices, fmt.Sprintf("AI enrichment returned no usable result for transactions %d-%d", start+1, end))
			continue
		}

		for pos, item := range items {
			idx := pos
			if item.Index != nil {
				idx = *item.Index
			}
			if idx < 0 || idx >= len(chunk) {
				continue
			}
			e.apply(chunk[idx], item, categories, &res)
		}
	}
	return res
}

func (e *Enricher) apply(tx *domain.Transaction, s suggestion, categories []domain.Category, res *EnrichResult) {
	conf := defaultConfidence
	if s.Confidence != nil {
		conf = *s.Confidence
	}

	name := strings.TrimSpace(s.Name)
	if name == "" {
		name = tx.Counterparty
	}
	tx.AISuggestedName = name
	tx.AIRationale = s.Reasoning
	tx.AIConfidence = &conf
	tx.AISuggestedCategory = s.Category
	res.Enriched++

	if s.Category != "" {
		matched, ok := resolveCategory(s.Category, categories)
		switch {
		case !ok:
			e.log.Debug().Str("category", s.Category).Msg("oracle suggested an unknown category")
		case conf > applyCategoryConfidence:
			tx.Category = matched.Name
			tx.CategoryID = matched.ID
			res.Categorized++
		}
	}

	if conf > renameConfidence && name != "" && renameable[strings.ToLower(strings.TrimSpace(tx.Counterparty))] {
		tx.Counterparty = name
		res.Renamed++
	}
}

// resolveCategory matches a suggested name exactly (case-insensitively) and
// then by substring in either direction.
func resolveCategory(name string, categories []domain.Category) (domain.Category, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, c := range categories {
		if strings.ToLower(c.Name) == lower {
			return c, true
		}
	}
	for _, c := range categories {
		cl := strings.ToLower(c.Name)
		if strings.Contains(cl, lower) || strings.Contains(lower, cl) {
			return c, true
		}
	}
	return domain.Category{}, false
}

func categoriesContext(categories []domain.Category) string {
	var b strings.Builder
	b.WriteString("Available categories and their typical matches:\n")
	for _, c := range categories {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, strings.Join(c.Keywords(), ", "))
	}
	return b.String()
}

func buildEnrichPrompt(categoryContext string, txs []*domain.Transaction) string {
	items := make([]promptTx, len(txs))
	for i, tx := range txs {
		amount, _ := tx.Amount.Float64()
		items[i] = promptTx{
			Index:       i,
			RawName:     tx.Counterparty,
			Description: tx.Description,
			Amount:      amount,
			Date:        tx.DateString(),
		}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		data = []byte("[]")
	}

	return "As an expert financial analyst for the Belgian and European market, analyze these bank transactions.\n" +
		"Enrich each transaction with the real merchant name and the most appropriate category.\n\n" +
		"# CATEGORIES\n" + categoryContext + "\n" +
		"# TASKS\n" +
		"1. MERCHANT: if 'raw_name' is generic (e.g. 'KBC ---', 'Overschrijving'), extract the real merchant from 'description'.\n" +
		"2. CATEGORY: pick the best category from the list above, using its exact name. Avoid the fallback category when another fits.\n" +
		"3. REASONING: explain the choice in at most 10 words.\n" +
		"4. CONFIDENCE: a score from 0.0 to 1.0.\n" +
		"Positive amounts are usually income. Transactions may be in Dutch, French or English.\n\n" +
		"# OUTPUT\n" +
		"Return ONLY a JSON array: [{\"index\": 0, \"name\": \"Merchant\", \"category\": \"Category\", \"reasoning\": \"...\", \"confidence\": 0.95}]\n\n" +
		"# TRANSACTIONS\n" + string(data) + "\n"
}
