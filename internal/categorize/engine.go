// Package categorize assigns categories to transactions: a first-match-wins
// rule engine, a counterparty clusterer that proposes categories, learning
// from user corrections and oracle-backed enrichment.
package categorize

import (
	"strings"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// DefaultFallback is the sink category for transactions no rule matches.
const DefaultFallback = "Overig"

// Engine classifies transactions against an ordered category list. An Engine
// is an immutable snapshot; call Refresh after the stored categories change.
type Engine struct {
	defaults   []domain.Category
	categories []domain.Category
	fallback   string

	nameToID map[string]string
	colors   map[string]string
}

// Option configures an Engine.
type Option func(*Engine)

// WithFallback sets the fallback category name.
func WithFallback(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.fallback = name
		}
	}
}

// NewEngine merges user categories into defaults: a user category with the
// name of a default replaces it in place, new names are appended. The
// fallback category is appended when neither list has it.
func NewEngine(defaults, user []domain.Category, opts ...Option) *Engine {
	e := &Engine{
		defaults: cloneCategories(defaults),
		fallback: DefaultFallback,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.categories = Merge(defaults, user)
	if e.index(e.fallback) == -1 {
		e.categories = append(e.categories, domain.Category{Name: e.fallback, Color: domain.DefaultColor})
	}

	e.nameToID = make(map[string]string, len(e.categories))
	e.colors = make(map[string]string, len(e.categories))
	for _, c := range e.categories {
		if c.ID != "" {
			e.nameToID[c.Name] = c.ID
		}
		color := c.Color
		if color == "" {
			color = domain.DefaultColor
		}
		e.colors[c.Name] = color
	}
	return e
}

// NewDefaultEngine merges user categories into the embedded defaults.
func NewDefaultEngine(user []domain.Category, opts ...Option) *Engine {
	return NewEngine(SystemDefaults().Categories, user, opts...)
}

// Merge applies the override rules of NewEngine without building an engine.
func Merge(defaults, user []domain.Category) []domain.Category {
	merged := cloneCategories(defaults)
	for _, u := range cloneCategories(user) {
		replaced := false
		for i := range merged {
			if merged[i].Name == u.Name {
				merged[i] = u
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, u)
		}
	}
	return merged
}

// Refresh returns a new engine over the same defaults with new user categories.
func (e *Engine) Refresh(user []domain.Category) *Engine {
	return NewEngine(e.defaults, user, WithFallback(e.fallback))
}

// Fallback returns the fallback category name.
func (e *Engine) Fallback() string { return e.fallback }

// Categories returns a copy of the effective categories in classification order.
func (e *Engine) Categories() []domain.Category {
	return cloneCategories(e.categories)
}

// Category looks up an effective category by name, case-insensitively.
func (e *Engine) Category(name string) (domain.Category, bool) {
	if i := e.index(name); i >= 0 {
		return cloneCategories(e.categories[i : i+1])[0], true
	}
	return domain.Category{}, false
}

// Classify returns the name of the first category whose rules match tx, or
// the fallback.
func (e *Engine) Classify(tx *domain.Transaction) string {
	if name, ok := e.Suggest(tx); ok {
		return name
	}
	return e.fallback
}

// Suggest returns the first matching category without applying it.
func (e *Engine) Suggest(tx *domain.Transaction) (string, bool) {
	for i := range e.categories {
		if e.categories[i].Matches(tx) {
			return e.categories[i].Name, true
		}
	}
	return "", false
}

// ClassifyBatch classifies every transaction that has no category or sits in
// the fallback; other classifications are left alone. It returns how many
// transactions were assigned a category.
func (e *Engine) ClassifyBatch(txs []*domain.Transaction) int {
	n := 0
	for _, tx := range txs {
		if !e.IsUncategorized(tx) {
			continue
		}
		name := e.Classify(tx)
		tx.Category = name
		tx.CategoryID = e.nameToID[name]
		n++
	}
	return n
}

// IsUncategorized reports whether tx has no category or the fallback one.
func (e *Engine) IsUncategorized(tx *domain.Transaction) bool {
	if !tx.HasCategory() {
		return true
	}
	if tx.Category != "" {
		return strings.EqualFold(tx.Category, e.fallback)
	}
	id, ok := e.nameToID[e.fallback]
	return ok && tx.CategoryID == id
}

// Uncategorized returns the transactions IsUncategorized selects.
func (e *Engine) Uncategorized(txs []*domain.Transaction) []*domain.Transaction {
	var out []*domain.Transaction
	for _, tx := range txs {
		if e.IsUncategorized(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// CategoryNames returns the effective category names in order.
func (e *Engine) CategoryNames() []string {
	names := make([]string, len(e.categories))
	for i, c := range e.categories {
		names[i] = c.Name
	}
	return names
}

// CategoryColors returns name -> display color.
func (e *Engine) CategoryColors() map[string]string {
	out := make(map[string]string, len(e.colors))
	for k, v := range e.colors {
		out[k] = v
	}
	return out
}

// NameToID returns name -> stored id for categories that have been persisted.
func (e *Engine) NameToID() map[string]string {
	out := make(map[string]string, len(e.nameToID))
	for k, v := range e.nameToID {
		out[k] = v
	}
	return out
}

// ResolveNames fills Category from CategoryID for transactions read from a store.
func (e *Engine) ResolveNames(txs []*domain.Transaction) {
	idToName := make(map[string]string, len(e.nameToID))
	for name, id := range e.nameToID {
		idToName[id] = name
	}
	for _, tx := range txs {
		if tx.Category == "" && tx.CategoryID != "" {
			tx.Category = idToName[tx.CategoryID]
		}
	}
}

func (e *Engine) index(name string) int {
	for i, c := range e.categories {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}
