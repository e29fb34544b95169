// Package search implements the ranked full-text search engine over a
// message store: query parsing, candidate retrieval, and result scoring.
package search

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/olafkfreund/comunicado-sub000/internal/store"
)

// Mode is a closed set of ways a user query is interpreted.
type Mode int

const (
	FullText Mode = iota
	Subject
	From
	Body
	Advanced
)

func (m Mode) String() string {
	switch m {
	case Subject:
		return "subject"
	case From:
		return "from"
	case Body:
		return "body"
	case Advanced:
		return "advanced"
	default:
		return "full_text"
	}
}

// advancedFieldAliases maps the recognized field prefixes of Advanced mode
// tokens to the store column family they target.
var advancedFieldAliases = map[string]string{
	"subject": "subject",
	"s":       "subject",
	"from":    "sender",
	"f":       "sender",
	"body":    "body",
	"b":       "body",
}

// Query is a parsed, sanitized search request ready for execution.
type Query struct {
	Mode Mode
	// Terms holds every lower-cased search term extracted from the query,
	// bare or field-scoped, used for substring matching and snippet
	// highlighting regardless of mode.
	Terms []string
	// FieldFilters holds Advanced-mode field:value pairs, keyed by the
	// canonical column family ("subject", "sender", "body").
	FieldFilters map[string][]string
	// FullTextTerms holds bare (unscoped) terms: the whole sanitized query
	// for FullText/Subject/From/Body modes, or the bare tokens of an
	// Advanced query.
	FullTextTerms []string
}

// ParseQuery validates and parses a raw user query string under mode.
// Queries shorter than two characters (after trimming) are rejected with
// a TooShort error; everything else always parses, even to an empty
// result set at execution time.
func ParseQuery(mode Mode, raw string) (Query, error) {
	trimmed := strings.TrimSpace(raw)
	if utf8.RuneCountInString(trimmed) < 2 {
		return Query{}, store.NewError("ParseQuery", store.KindTooShort, fmt.Errorf("query %q shorter than 2 characters", raw))
	}

	if mode == Advanced {
		return parseAdvanced(trimmed), nil
	}

	sanitized := sanitize(trimmed)
	q := Query{
		Mode:          mode,
		FullTextTerms: []string{sanitized},
		FieldFilters:  map[string][]string{},
	}
	q.Terms = splitTerms(sanitized)
	return q, nil
}

// sanitize strips characters that would break an FTS5 MATCH expression and
// wraps multi-word input as a single phrase.
func sanitize(raw string) string {
	stripped := strings.ReplaceAll(raw, `"`, "")
	stripped = strings.ReplaceAll(stripped, "*", "")
	stripped = strings.TrimSpace(stripped)
	if strings.ContainsAny(stripped, " \t\n") {
		return `"` + stripped + `"`
	}
	return stripped
}

func splitTerms(sanitized string) []string {
	unquoted := strings.Trim(sanitized, `"`)
	fields := strings.Fields(unquoted)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		terms = append(terms, strings.ToLower(f))
	}
	return terms
}

func parseAdvanced(trimmed string) Query {
	q := Query{
		Mode:         Advanced,
		FieldFilters: map[string][]string{},
	}
	for _, token := range strings.Fields(trimmed) {
		field, value, ok := strings.Cut(token, ":")
		if !ok || value == "" {
			q.FullTextTerms = append(q.FullTextTerms, sanitize(token))
			q.Terms = append(q.Terms, strings.ToLower(token))
			continue
		}
		canonical, recognized := advancedFieldAliases[strings.ToLower(field)]
		if !recognized {
			// Unknown field prefixes are dropped entirely, per mode contract.
			continue
		}
		sanitizedValue := sanitize(value)
		q.FieldFilters[canonical] = append(q.FieldFilters[canonical], sanitizedValue)
		q.Terms = append(q.Terms, strings.ToLower(strings.Trim(sanitizedValue, `"`)))
	}
	return q
}
