package parse

import (
	"strings"
	"time"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// DefaultDateLayouts is the fixed, ordered list tried for date strings:
// day/month/year first, then ISO, month/day/year and textual months.
var DefaultDateLayouts = []string{
	"2/1/2006",
	"2006-1-2",
	"2-1-2006",
	"1/2/2006",
	"2-Jan-2006",
	"2 Jan 2006",
	"2 January 2006",
	"20060102",
	"2006/1/2",
	"2.1.2006",
	// timestamps written by spreadsheet exports
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Dates parses date strings with a configurable layout order.
type Dates struct {
	layouts []string
}

// NewDates returns a parser that tries preferred layouts first and then the
// defaults that are not already listed.
func NewDates(preferred ...string) *Dates {
	layouts := make([]string, 0, len(preferred)+len(DefaultDateLayouts))
	seen := make(map[string]bool)
	for _, l := range append(preferred, DefaultDateLayouts...) {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		layouts = append(layouts, l)
	}
	return &Dates{layouts: layouts}
}

// Parse returns the calendar date for raw or false if no layout matches.
func (d *Dates) Parse(raw string) (time.Time, bool) {
	s := strings.Join(strings.Fields(raw), " ")
	if isBlank(s) {
		return time.Time{}, false
	}
	for _, layout := range d.layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.Date(t), true
		}
	}
	return time.Time{}, false
}

// Value passes native dates through (dropping the time of day) and parses strings.
func (d *Dates) Value(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return domain.Date(x), true
	case *time.Time:
		if x == nil || x.IsZero() {
			return time.Time{}, false
		}
		return domain.Date(*x), true
	case string:
		return d.Parse(x)
	}
	return time.Time{}, false
}

var defaultDates = NewDates()

// Date parses raw with the default layout order.
func Date(raw string) (time.Time, bool) {
	return defaultDates.Parse(raw)
}

// ConvertLayout translates a strftime pattern ("%d/%m/%Y") to a Go layout.
// Bank format files use strftime patterns.
func ConvertLayout(strftime string) string {
	r := strings.NewReplacer(
		"%d", "2",
		"%m", "1",
		"%Y", "2006",
		"%y", "06",
		"%b", "Jan",
		"%B", "January",
		"%H", "15",
		"%M", "04",
		"%S", "05",
	)
	return r.Replace(strftime)
}
