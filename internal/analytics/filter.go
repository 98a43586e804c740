package analytics

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// Criteria selects the transactions of a derived view. Zero values mean no
// constraint, except that recurring holds are excluded unless asked for.
type Criteria struct {
	From                  *time.Time
	To                    *time.Time
	Categories            []string
	Confirmed             *bool
	IncludeRecurringHolds bool
}

// key identifies the criteria inside the cache scope.
func (c Criteria) key() string {
	var b strings.Builder
	if c.From != nil {
		fmt.Fprintf(&b, "from=%s;", c.From.Format(domain.DateLayout))
	}
	if c.To != nil {
		fmt.Fprintf(&b, "to=%s;", c.To.Format(domain.DateLayout))
	}
	if len(c.Categories) > 0 {
		cats := slices.Clone(c.Categories)
		slices.Sort(cats)
		fmt.Fprintf(&b, "cats=%s;", strings.Join(cats, ","))
	}
	if c.Confirmed != nil {
		fmt.Fprintf(&b, "confirmed=%t;", *c.Confirmed)
	}
	fmt.Fprintf(&b, "holds=%t", c.IncludeRecurringHolds)
	return b.String()
}

func (c Criteria) match(a *Aggregator, tx *domain.Transaction) bool {
	if tx.RecurringHold && !c.IncludeRecurringHolds {
		return false
	}
	if c.From != nil && tx.Date.Before(domain.Date(*c.From)) {
		return false
	}
	if c.To != nil && tx.Date.After(domain.Date(*c.To)) {
		return false
	}
	if len(c.Categories) > 0 && !slices.Contains(c.Categories, a.categoryOf(tx)) {
		return false
	}
	if c.Confirmed != nil && tx.Confirmed != *c.Confirmed {
		return false
	}
	return true
}

// Filter returns a new view holding the transactions that match c.
// The receiver is left untouched.
func (a *Aggregator) Filter(c Criteria) *Aggregator {
	var kept []*domain.Transaction
	for i := range a.txs {
		if c.match(a, &a.txs[i]) {
			kept = append(kept, &a.txs[i])
		}
	}
	return a.derive(kept, c.key())
}

// Dashboard is the default view: everything except recurring holds.
func (a *Aggregator) Dashboard() *Aggregator {
	return a.Filter(Criteria{})
}
