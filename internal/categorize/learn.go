package categorize

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// descriptionTokens is how many leading words of a description a learned
// rule keeps.
const descriptionTokens = 3

// Correction is a learned rule for a category.
type Correction struct {
	Category string
	Rule     domain.Rule
}

// Learn derives a keyword rule from a user's correction. The counterparty is
// preferred; otherwise the first words of the description are used. It
// reports false when the transaction has neither.
func Learn(tx *domain.Transaction, category string) (Correction, bool) {
	if cp := strings.TrimSpace(tx.Counterparty); cp != "" {
		return Correction{
			Category: category,
			Rule:     domain.KeywordRule{Field: domain.FieldCounterparty, Keywords: []string{cp}},
		}, true
	}

	words := strings.Fields(tx.Description)
	if len(words) == 0 {
		return Correction{}, false
	}
	if len(words) > descriptionTokens {
		words = words[:descriptionTokens]
	}
	return Correction{
		Category: category,
		Rule:     domain.KeywordRule{Field: domain.FieldDescription, Keywords: words},
	}, true
}

// AppendRule appends rule unless a structurally equal rule is present. It
// reports whether the list changed.
func AppendRule(rules domain.Rules, rule domain.Rule) (domain.Rules, bool) {
	if rule == nil || rules.Contains(rule) {
		return rules, false
	}
	out := make(domain.Rules, 0, len(rules)+1)
	out = append(out, rules...)
	return append(out, rule), true
}

// CategoryStore is the part of the store learning and quick-add need.
type CategoryStore interface {
	ListCategories(ctx context.Context, userID string) ([]domain.Category, error)
	UpsertCategory(ctx context.Context, c *domain.Category) (string, error)
	UpdateCategoryRules(ctx context.Context, userID, id string, rules domain.Rules) error
}

// Learner persists corrections as rules of the user's categories.
type Learner struct {
	store    CategoryStore
	defaults []domain.Category
}

// NewLearner returns a learner. defaults seed a user copy when a correction
// targets a built-in category that the user has not stored yet.
func NewLearner(store CategoryStore, defaults []domain.Category) *Learner {
	return &Learner{store: store, defaults: cloneCategories(defaults)}
}

// LearnAndPersist derives a rule from the correction and appends it to the
// target category. It returns the learned rule, or nil when nothing could be
// learned or the rule already existed.
func (l *Learner) LearnAndPersist(ctx context.Context, userID string, tx *domain.Transaction, category string) (domain.Rule, error) {
	corr, ok := Learn(tx, category)
	if !ok {
		return nil, nil
	}

	stored, err := l.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("LearnAndPersist: listing categories: %w", err)
	}

	for _, c := range stored {
		if !strings.EqualFold(c.Name, category) {
			continue
		}
		rules, changed := AppendRule(c.Rules, corr.Rule)
		if !changed {
			return nil, nil
		}
		if err := l.store.UpdateCategoryRules(ctx, userID, c.ID, rules); err != nil {
			return nil, fmt.Errorf("LearnAndPersist: updating rules of %q: %w", c.Name, err)
		}
		return corr.Rule, nil
	}

	// Not stored yet: start from the built-in definition if there is one, so
	// the user copy keeps the default rules once it overrides them.
	cat := domain.Category{UserID: userID, Name: category, Color: domain.DefaultColor}
	for _, d := range l.defaults {
		if strings.EqualFold(d.Name, category) {
			cat = d
			cat.UserID = userID
			break
		}
	}
	rules, changed := AppendRule(cat.Rules, corr.Rule)
	if !changed {
		return nil, nil
	}
	cat.Rules = rules
	if _, err := l.store.UpsertCategory(ctx, &cat); err != nil {
		return nil, fmt.Errorf("LearnAndPersist: creating %q: %w", category, err)
	}
	return corr.Rule, nil
}

// QuickAdd creates a category with no rules. When a category of that name
// already exists its id is returned unchanged.
func QuickAdd(ctx context.Context, store CategoryStore, userID, name, color string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("QuickAdd: category name is empty")
	}

	existing, err := store.ListCategories(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("QuickAdd: listing categories: %w", err)
	}
	for _, c := range existing {
		if strings.EqualFold(c.Name, name) {
			return c.ID, nil
		}
	}

	if color == "" {
		color = domain.DefaultColor
	}
	id, err := store.UpsertCategory(ctx, &domain.Category{UserID: userID, Name: name, Color: color})
	if err != nil {
		return "", fmt.Errorf("QuickAdd: creating %q: %w", name, err)
	}
	return id, nil
}
