package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/olafkfreund/comunicado-sub000/internal/store"
	"github.com/olafkfreund/comunicado-sub000/pkg/pool"
)

const (
	defaultLimit  = 100
	snippetBefore = 50
	snippetAfter  = 150
	weekMillis    = 7 * dayMillis
	monthMillis   = 30 * dayMillis
	dayMillis     = 86_400_000
)

// Snippet is a clipped window of a matched field with highlight offsets
// relative to the clipped substring, not the source field.
type Snippet struct {
	Field      string
	Text       string
	Highlights [][2]int
}

// Result is a transient, owning-nothing view onto a ranked Message.
type Result struct {
	Message       store.Message
	Score         float64
	Snippets      []Snippet
	MatchedFields []string
}

// Engine runs ranked search over a message store.
type Engine struct {
	s *store.Store
}

// NewEngine constructs an Engine over s.
func NewEngine(s *store.Store) *Engine {
	return &Engine{s: s}
}

// Search executes q against the store, returning at most limit (default
// 100) ranked results. A syntactically impossible query yields an empty
// slice, never an error; engine failures surface as a store.KindEngine
// error.
func (e *Engine) Search(ctx context.Context, q Query, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	matchExpr := buildMatchExpr(q, e.s.FTSAvailable())
	if matchExpr == "" {
		return nil, nil
	}

	candidates, err := e.s.SearchCandidates(ctx, matchExpr, limit)
	if err != nil {
		// Input that FTS5 cannot parse is an impossible query, not a failure.
		if msg := err.Error(); strings.Contains(msg, "fts5: syntax error") || strings.Contains(msg, "no such column") {
			return nil, nil
		}
		return nil, err
	}

	now := time.Now().UnixMilli()
	results := make([]Result, 0, len(candidates))
	for _, msg := range candidates {
		matched, snippets := matchFields(q.Terms, msg)
		if len(matched) == 0 {
			continue
		}
		score := rankScore(matched, len(q.Terms), now-msg.SentAt)
		results = append(results, Result{
			Message:       msg,
			Score:         score,
			Snippets:      snippets,
			MatchedFields: matched,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Message.SentAt != results[j].Message.SentAt {
			return results[i].Message.SentAt > results[j].Message.SentAt
		}
		return results[i].Message.ID < results[j].Message.ID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// buildMatchExpr turns a parsed Query into either an FTS5 MATCH expression
// (when the build's driver supports FTS5) or a plain substring for the
// LIKE-based fallback scan.
func buildMatchExpr(q Query, ftsAvailable bool) string {
	if !ftsAvailable {
		for _, t := range q.Terms {
			if t != "" {
				return t
			}
		}
		return ""
	}

	var clauses []string
	switch q.Mode {
	case Subject:
		clauses = append(clauses, ftsClause("subject", q.FullTextTerms))
	case From:
		clauses = append(clauses, ftsClause("from_addr", q.FullTextTerms), ftsClause("from_name", q.FullTextTerms))
	case Body:
		clauses = append(clauses, ftsClause("body", q.FullTextTerms))
	case Advanced:
		for _, v := range q.FieldFilters["subject"] {
			clauses = append(clauses, ftsClause("subject", []string{v}))
		}
		for _, v := range q.FieldFilters["sender"] {
			clauses = append(clauses, fmt.Sprintf("(%s OR %s)", ftsClause("from_addr", []string{v}), ftsClause("from_name", []string{v})))
		}
		for _, v := range q.FieldFilters["body"] {
			clauses = append(clauses, ftsClause("body", []string{v}))
		}
		if len(q.FullTextTerms) > 0 {
			clauses = append(clauses, strings.Join(q.FullTextTerms, " "))
		}
	default:
		clauses = append(clauses, strings.Join(q.FullTextTerms, " "))
	}

	nonEmpty := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if strings.TrimSpace(c) != "" {
			nonEmpty = append(nonEmpty, c)
		}
	}
	return strings.Join(nonEmpty, " AND ")
}

func ftsClause(column string, values []string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:%s", column, v))
	}
	return strings.Join(parts, " AND ")
}

// matchFields tests msg's subject, body, and sender fields against terms,
// returning matched field categories and at most one snippet per category.
func matchFields(terms []string, msg store.Message) ([]string, []Snippet) {
	scratch := pool.GetStringSlice()
	defer pool.PutStringSlice(scratch)

	var snippets []Snippet

	if idx, term := firstMatch(msg.Subject, terms); idx >= 0 {
		scratch = append(scratch, "subject")
		snippets = append(snippets, buildSnippet("subject", msg.Subject, idx, term, terms))
	}
	if idx, term := firstMatch(msg.Body, terms); idx >= 0 {
		scratch = append(scratch, "body")
		snippets = append(snippets, buildSnippet("body", msg.Body, idx, term, terms))
	}

	senderText := msg.SenderName + " " + msg.SenderAddress
	if idx, term := firstMatch(senderText, terms); idx >= 0 {
		scratch = append(scratch, "sender")
		snippets = append(snippets, buildSnippet("sender", senderText, idx, term, terms))
	}

	if len(scratch) == 0 {
		return nil, snippets
	}
	matched := make([]string, len(scratch))
	copy(matched, scratch)
	return matched, snippets
}

// firstMatch returns the byte offset and term of the earliest
// case-insensitive occurrence of any term in field, or (-1, "") if none
// match.
func firstMatch(field string, terms []string) (int, string) {
	lower := strings.ToLower(field)
	best := -1
	bestTerm := ""
	for _, t := range terms {
		if t == "" {
			continue
		}
		if idx := strings.Index(lower, t); idx >= 0 && (best == -1 || idx < best) {
			best = idx
			bestTerm = t
		}
	}
	return best, bestTerm
}

// buildSnippet clips a ±50/+150 character window around idx (clamped to
// field bounds) and records every matching term's highlight offsets
// relative to the clipped substring.
func buildSnippet(field, text string, idx int, _ string, terms []string) Snippet {
	runes := []rune(text)
	runeIdx := byteOffsetToRuneIndex(text, idx)

	start := runeIdx - snippetBefore
	if start < 0 {
		start = 0
	}
	end := runeIdx + snippetAfter
	if end > len(runes) {
		end = len(runes)
	}

	b := getBuilder()
	defer putBuilder(b)
	for _, r := range runes[start:end] {
		b.WriteRune(r)
	}
	clipped := b.String()

	lowerClipped := strings.ToLower(clipped)
	var highlights [][2]int
	for _, t := range terms {
		if t == "" {
			continue
		}
		from := 0
		for {
			pos := strings.Index(lowerClipped[from:], t)
			if pos < 0 {
				break
			}
			abs := from + pos
			startRune := len([]rune(lowerClipped[:abs]))
			endRune := startRune + len([]rune(t))
			highlights = append(highlights, [2]int{startRune, endRune})
			from = abs + len(t)
		}
	}

	return Snippet{Field: field, Text: clipped, Highlights: highlights}
}

func byteOffsetToRuneIndex(s string, byteOffset int) int {
	return len([]rune(s[:byteOffset]))
}

// rankScore implements the closed-form ranking function: field-count and
// per-field bonuses, a recency bonus, and a query-breadth bonus.
func rankScore(matchedFields []string, termCount int, ageMillis int64) float64 {
	score := 10.0 * float64(len(matchedFields))
	for _, f := range matchedFields {
		switch f {
		case "subject":
			score += 20
		case "sender":
			score += 15
		case "body":
			score += 5
		}
	}
	switch {
	case ageMillis < weekMillis:
		score += 10
	case ageMillis < monthMillis:
		score += 5
	}
	score += 2 * float64(termCount)
	return score
}
