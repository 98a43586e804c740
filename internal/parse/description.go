package parse

import (
	"regexp"
	"strings"
)

// boilerplatePrefixes are payment-method prefixes banks put in front of the
// actual memo. Matched case-insensitively at the start, with an optional " -".
var boilerplatePrefixes = []string{
	`Betaling via bancontact`,
	`Betaling via debit mastercard`,
	`Betaling via maestro`,
	`Overschrijving naar`,
	`Overschrijving van`,
	`Domiciliëring`,
	`Europese overschrijving`,
	`SEPA domiciliëring`,
	`SEPA overschrijving`,
	`Terugbetaling`,
	`Storting`,
	`Opname`,
	`Payment via debit card`,
	`Card payment`,
	`Transfer to`,
	`Transfer from`,
	`Direct debit`,
	`SEPA direct debit`,
	`SEPA transfer`,
}

var boilerplatePatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(boilerplatePrefixes))
	for _, p := range boilerplatePrefixes {
		out = append(out, regexp.MustCompile(`(?i)^`+regexp.QuoteMeta(p)+`\s*-?\s*`))
	}
	return out
}()

// Description strips payment boilerplate and collapses internal whitespace.
func Description(raw string) string {
	s := Text(raw)
	if s == "" {
		return ""
	}
	for _, re := range boilerplatePatterns {
		s = re.ReplaceAllString(s, "")
	}
	return strings.Join(strings.Fields(s), " ")
}
