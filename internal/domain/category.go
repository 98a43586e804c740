package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Field names a transaction field a keyword rule inspects.
type Field string

const (
	FieldCounterparty Field = "counterparty"
	FieldDescription  Field = "description"
	FieldAmount       Field = "amount"
)

// SignCondition is the predicate of a SignRule.
type SignCondition string

const (
	SignPositive SignCondition = "positive"
	SignNegative SignCondition = "negative"
)

// Rule is a single match rule of a category. It is one of KeywordRule or SignRule.
type Rule interface {
	Matches(tx *Transaction) bool
	Doc() RuleDoc
	isRule()
}

// KeywordRule matches when any keyword is a case-insensitive substring of Field.
type KeywordRule struct {
	Field    Field
	Keywords []string
}

// SignRule matches on the sign of the amount.
type SignRule struct {
	Condition SignCondition
}

func (KeywordRule) isRule() {}
func (SignRule) isRule()    {}

// Matches implements Rule.
func (r KeywordRule) Matches(tx *Transaction) bool {
	var value string
	switch r.Field {
	case FieldCounterparty:
		value = tx.Counterparty
	case FieldDescription:
		value = tx.Description
	case FieldAmount:
		value = tx.Amount.String()
	}
	if value == "" {
		return false
	}
	value = strings.ToLower(value)
	for _, kw := range r.Keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(value, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Matches implements Rule.
func (r SignRule) Matches(tx *Transaction) bool {
	switch r.Condition {
	case SignPositive:
		return tx.Amount.IsPositive()
	case SignNegative:
		return tx.Amount.IsNegative()
	}
	return false
}

// Doc implements Rule.
func (r KeywordRule) Doc() RuleDoc {
	return RuleDoc{Field: string(r.Field), Contains: slices.Clone(r.Keywords)}
}

// Doc implements Rule.
func (r SignRule) Doc() RuleDoc {
	return RuleDoc{Field: string(FieldAmount), Condition: string(r.Condition)}
}

// RuleDoc is the persisted shape of a rule:
// {"field": ..., "contains": [...]} or {"field": "amount", "condition": ...}.
type RuleDoc struct {
	Field     string   `json:"field" yaml:"field"`
	Contains  []string `json:"contains,omitempty" yaml:"contains,omitempty"`
	Condition string   `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// legacyFields maps the column names used by older persisted rules.
var legacyFields = map[string]Field{
	"naam_tegenpartij": FieldCounterparty,
	"omschrijving":     FieldDescription,
	"bedrag":           FieldAmount,
}

// Rule converts the persisted document into its typed variant.
func (d RuleDoc) Rule() (Rule, error) {
	field := Field(strings.ToLower(strings.TrimSpace(d.Field)))
	if f, ok := legacyFields[string(field)]; ok {
		field = f
	}

	if d.Condition != "" {
		cond := SignCondition(strings.ToLower(strings.TrimSpace(d.Condition)))
		if cond != SignPositive && cond != SignNegative {
			return nil, fmt.Errorf("RuleDoc.Rule: unknown sign condition %q", d.Condition)
		}
		return SignRule{Condition: cond}, nil
	}

	switch field {
	case FieldCounterparty, FieldDescription, FieldAmount:
	default:
		return nil, fmt.Errorf("RuleDoc.Rule: unknown field %q", d.Field)
	}
	if len(d.Contains) == 0 {
		return nil, fmt.Errorf("RuleDoc.Rule: keyword rule on %q has no keywords", d.Field)
	}
	return KeywordRule{Field: field, Keywords: slices.Clone(d.Contains)}, nil
}

// Rules is an ordered rule list. A category matches if any rule matches.
type Rules []Rule

// Matches reports whether any rule matches tx.
func (rs Rules) Matches(tx *Transaction) bool {
	for _, r := range rs {
		if r.Matches(tx) {
			return true
		}
	}
	return false
}

// Docs returns the persisted shape of the rules.
func (rs Rules) Docs() []RuleDoc {
	docs := make([]RuleDoc, 0, len(rs))
	for _, r := range rs {
		docs = append(docs, r.Doc())
	}
	return docs
}

// Contains reports whether an exactly equal rule is already present.
func (rs Rules) Contains(rule Rule) bool {
	for _, r := range rs {
		if RulesEqual(r, rule) {
			return true
		}
	}
	return false
}

// RulesFromDocs converts persisted rule documents.
func RulesFromDocs(docs []RuleDoc) (Rules, error) {
	rules := make(Rules, 0, len(docs))
	for i, d := range docs {
		r, err := d.Rule()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// RulesEqual is structural equality of two rules.
func RulesEqual(a, b Rule) bool {
	da, db := a.Doc(), b.Doc()
	return da.Field == db.Field && da.Condition == db.Condition && slices.Equal(da.Contains, db.Contains)
}

// MarshalJSON encodes the rules in their persisted shape.
func (rs Rules) MarshalJSON() ([]byte, error) {
	return json.Marshal(rs.Docs())
}

// UnmarshalJSON decodes persisted rule documents.
func (rs *Rules) UnmarshalJSON(data []byte) error {
	var docs []RuleDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return err
	}
	rules, err := RulesFromDocs(docs)
	if err != nil {
		return err
	}
	*rs = rules
	return nil
}

// Category is a classification target.
type Category struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id,omitempty"`
	Name             string          `json:"name"`
	Color            string          `json:"color"`
	BudgetPercentage decimal.Decimal `json:"budget_percentage"`
	Rules            Rules           `json:"rules"`
}

// DefaultColor is used when a category carries no display color.
const DefaultColor = "#9ca3af"

// Matches reports whether any of the category's rules match tx.
func (c *Category) Matches(tx *Transaction) bool {
	return c.Rules.Matches(tx)
}

// Keywords returns the contains-keywords of the category's counterparty and
// description rules, in rule order.
func (c *Category) Keywords() []string {
	var out []string
	for _, r := range c.Rules {
		kr, ok := r.(KeywordRule)
		if !ok || kr.Field == FieldAmount {
			continue
		}
		out = append(out, kr.Keywords...)
	}
	return out
}
