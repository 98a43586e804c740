package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when a completion contains no well-formed JSON value.
var ErrNoJSON = errors.New("no JSON value in completion")

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// ExtractJSON returns the first well-formed JSON object or array in raw. Code
// fences and surrounding prose are ignored and trailing commas are removed.
// A balanced span that is not valid JSON, such as "[Datum, Bedrag]" in prose,
// is skipped and the scan resumes at the next opening bracket inside it.
func ExtractJSON(raw string) (string, bool) {
	s := stripFences(raw)

	for start := strings.IndexAny(s, "{["); start != -1; {
		if end := balancedEnd(s, start); end != -1 {
			candidate := trailingComma.ReplaceAllString(s[start:end+1], "$1")
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexAny(s[start+1:], "{[")
		if next == -1 {
			break
		}
		start += next + 1
	}
	return "", false
}

// balancedEnd returns the index of the bracket closing the one at start, or
// -1 when the input ends first.
func balancedEnd(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Decode extracts the first JSON value from raw and unmarshals it into v.
func Decode(raw string, v any) error {
	clean, ok := ExtractJSON(raw)
	if !ok {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(clean), v); err != nil {
		return fmt.Errorf("Decode: unmarshal completion: %w", err)
	}
	return nil
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
