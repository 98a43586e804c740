package categorize

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

const (
	// DefaultIncome is the category positive-only groups are proposed for.
	DefaultIncome = "Inkomen"

	unknownName      = "Onbekend"
	refundName       = "Inkomen / Teruggave"
	snippetLen       = 30
	minSnippetSource = 5
	minNameKeyword   = 3
	maxReasons       = 3
)

// vagueNames are counterparty values that carry no information.
var vagueNames = map[string]bool{
	"":                       true,
	"-":                      true,
	"--":                     true,
	"---":                    true,
	"onbekend":               true,
	"unknown":                true,
	"overschrijving":         true,
	"transfer":               true,
	"betaling":               true,
	"payment":                true,
	"mededeling":             true,
	"interne overschrijving": true,
}

// IsVagueName reports whether a counterparty name is blank or boilerplate.
func IsVagueName(name string) bool {
	return vagueNames[strings.ToLower(strings.TrimSpace(name))]
}

// Evidence supports a proposed category so a human can approve it.
type Evidence struct {
	Name             string          `json:"name"`
	Counterparties   []string        `json:"counterparties"`
	TransactionCount int             `json:"transaction_count"`
	AvgAmount        decimal.Decimal `json:"avg_amount"`
	Color            string          `json:"color"`
	Description      string          `json:"description"`
	Reasons          []string        `json:"reasons"`
	Keywords         []string        `json:"keywords"`

	total decimal.Decimal
}

func (ev *Evidence) add(counterparty string, txs []*domain.Transaction, reason string) {
	if counterparty != "" && !slices.Contains(ev.Counterparties, counterparty) {
		ev.Counterparties = append(ev.Counterparties, counterparty)
	}
	for _, tx := range txs {
		ev.total = ev.total.Add(tx.Amount)
	}
	ev.TransactionCount += len(txs)
	ev.AvgAmount = ev.total.Div(decimal.NewFromInt(int64(ev.TransactionCount)))
	if reason != "" && len(ev.Reasons) < maxReasons && !slices.Contains(ev.Reasons, reason) {
		ev.Reasons = append(ev.Reasons, reason)
	}
}

// Clusterer proposes categories for unlabeled transactions by grouping them
// on counterparty and matching the groups against a keyword table.
type Clusterer struct {
	keywords     []KeywordGroup
	colors       map[string]string
	descriptions map[string]string
	palette      []string
	income       string
	fallback     string
}

// ClustererOption configures a Clusterer.
type ClustererOption func(*Clusterer)

// WithCategoryNames overrides the income and fallback category names.
func WithCategoryNames(income, fallback string) ClustererOption {
	return func(c *Clusterer) {
		if income != "" {
			c.income = income
		}
		if fallback != "" {
			c.fallback = fallback
		}
	}
}

// NewClusterer builds a clusterer from the built-in keyword table merged
// with the contains-keywords of the user's categories.
func NewClusterer(user []domain.Category, opts ...ClustererOption) *Clusterer {
	d := SystemDefaults()
	c := &Clusterer{
		keywords:     mergeKeywords(d.Keywords, user),
		colors:       make(map[string]string),
		descriptions: d.Descriptions,
		palette:      d.Colors,
		income:       DefaultIncome,
		fallback:     DefaultFallback,
	}
	for _, def := range d.Categories {
		c.colors[def.Name] = def.Color
	}
	for _, u := range user {
		if u.Color != "" {
			c.colors[u.Name] = u.Color
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func mergeKeywords(base []KeywordGroup, user []domain.Category) []KeywordGroup {
	out := make([]KeywordGroup, len(base))
	for i, g := range base {
		out[i] = KeywordGroup{Category: g.Category, Keywords: slices.Clone(g.Keywords)}
	}

	for _, u := range user {
		kws := u.Keywords()
		if len(kws) == 0 {
			continue
		}
		idx := slices.IndexFunc(out, func(g KeywordGroup) bool { return g.Category == u.Name })
		if idx == -1 {
			out = append(out, KeywordGroup{Category: u.Name})
			idx = len(out) - 1
		}
		for _, kw := range kws {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && !slices.Contains(out[idx].Keywords, kw) {
				out[idx].Keywords = append(out[idx].Keywords, kw)
			}
		}
	}
	return out
}

type group struct {
	name string
	txs  []*domain.Transaction
}

// Suggest labels copies of txs and returns the proposals keyed by category
// name. The income and fallback categories are always present.
func (c *Clusterer) Suggest(txs []*domain.Transaction) (map[string]*Evidence, []*domain.Transaction) {
	labeled := make([]*domain.Transaction, len(txs))
	for i, tx := range txs {
		cp := *tx
		c.enrichName(&cp)
		labeled[i] = &cp
	}

	proposals := make(map[string]*Evidence)
	for _, g := range c.group(labeled) {
		category, reason, ok := c.match(g)
		if !ok {
			category = c.fallback
		}
		if ok {
			c.evidence(proposals, category).add(titleCase(g.name), g.txs, reason)
		}
		for _, tx := range g.txs {
			tx.Category = category
			tx.CategoryID = ""
		}
	}

	if _, ok := proposals[c.income]; !ok {
		var positives []*domain.Transaction
		for _, tx := range labeled {
			if tx.Amount.IsPositive() && tx.Category == c.fallback {
				positives = append(positives, tx)
			}
		}
		if len(positives) > 0 {
			ev := c.evidence(proposals, c.income)
			for _, tx := range positives {
				ev.add(titleCase(tx.Counterparty), []*domain.Transaction{tx}, "positive amounts (income)")
				tx.Category = c.income
			}
		}
	}

	if _, ok := proposals[c.fallback]; !ok {
		ev := c.evidence(proposals, c.fallback)
		ev.Reasons = append(ev.Reasons, "default threshold")
	}
	return proposals, labeled
}

func (c *Clusterer) evidence(proposals map[string]*Evidence, category string) *Evidence {
	if ev, ok := proposals[category]; ok {
		return ev
	}
	ev := &Evidence{
		Name:           category,
		Counterparties: []string{},
		Reasons:        []string{},
		Color:          c.colorFor(category),
		Description:    c.descriptions[category],
		Keywords:       c.keywordsFor(category),
	}
	proposals[category] = ev
	return ev
}

// group buckets transactions by normalized counterparty in first-seen order.
// Names are enriched beforehand, so every transaction has one and those with
// nothing usable share the "Onbekend" bucket.
func (c *Clusterer) group(txs []*domain.Transaction) []*group {
	var groups []*group
	index := make(map[string]*group)

	for _, tx := range txs {
		key := strings.ToLower(strings.TrimSpace(tx.Counterparty))
		g, ok := index[key]
		if !ok {
			g = &group{name: key}
			index[key] = g
			groups = append(groups, g)
		}
		g.txs = append(g.txs, tx)
	}
	return groups
}

// match returns the proposed category of a group: income when every amount
// is positive, otherwise the first keyword found in the counterparty or in a
// description.
func (c *Clusterer) match(g *group) (string, string, bool) {
	allPositive := len(g.txs) > 0
	for _, tx := range g.txs {
		if !tx.Amount.IsPositive() {
			allPositive = false
			break
		}
	}
	if allPositive {
		return c.income, "positive amount", true
	}

	for _, kg := range c.keywords {
		for _, kw := range kg.Keywords {
			if strings.Contains(g.name, kw) {
				return kg.Category, fmt.Sprintf("matched on '%s'", kw), true
			}
			for _, tx := range g.txs {
				if strings.Contains(strings.ToLower(tx.Description), kw) {
					return kg.Category, fmt.Sprintf("description contains '%s'", kw), true
				}
			}
		}
	}
	return "", "", false
}

// enrichName replaces vague counterparty names with something a human can
// group on, and normalizes the rest to a known merchant or title case.
func (c *Clusterer) enrichName(tx *domain.Transaction) {
	name := strings.TrimSpace(tx.Counterparty)
	desc := strings.ToLower(tx.Description)

	if IsVagueName(name) {
		if kw, ok := c.findKeyword(desc, 0); ok {
			tx.Counterparty = titleCase(kw)
			return
		}
		if tx.Amount.IsPositive() {
			tx.Counterparty = refundName
			return
		}
		if len([]rune(tx.Description)) > minSnippetSource {
			tx.Counterparty = snippet(tx.Description)
			return
		}
		tx.Counterparty = unknownName
		return
	}

	if kw, ok := c.findKeyword(strings.ToLower(name), minNameKeyword); ok {
		tx.Counterparty = titleCase(kw)
		return
	}
	tx.Counterparty = titleCase(name)
}

func (c *Clusterer) findKeyword(text string, minLen int) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, kg := range c.keywords {
		for _, kw := range kg.Keywords {
			if len(kw) > minLen && strings.Contains(text, kw) {
				return kw, true
			}
		}
	}
	return "", false
}

// titleCase builds a fresh Caser per call; Casers are not safe for concurrent use.
func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= snippetLen {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(r[:snippetLen])) + "..."
}

func (c *Clusterer) colorFor(category string) string {
	if color, ok := c.colors[category]; ok {
		return color
	}
	if len(c.palette) > 0 {
		return c.palette[0]
	}
	return domain.DefaultColor
}

func (c *Clusterer) keywordsFor(category string) []string {
	for _, kg := range c.keywords {
		if kg.Category == category {
			return slices.Clone(kg.Keywords)
		}
	}
	return []string{}
}
