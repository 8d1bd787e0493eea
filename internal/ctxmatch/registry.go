// Package ctxmatch indexes loaded context entries and scores them against a
// goal string plus hints.
package ctxmatch

import (
	"sort"
	"strings"
)

// LoadedContext is a context-pack instance registered for matching.
// Immutable after registration; queried, never consumed.
type LoadedContext struct {
	PackID      string
	Source      string
	Content     string
	ContentType string
	Priority    int
	Keywords    []string
	Condition   *Condition
}

// MatchResult is one ranked match from a query.
type MatchResult struct {
	PackID string
	Score  int
	Entry  *LoadedContext
}

// Registry holds context entries keyed by pack id.
type Registry struct {
	entries map[string]*LoadedContext
}

// NewRegistry creates an empty context registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*LoadedContext)}
}

// Add inserts a LoadedContext. Duplicate pack ids replace the prior entry:
// last-write-wins is the explicit policy here.
func (r *Registry) Add(entry LoadedContext) {
	r.entries[entry.PackID] = &entry
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Query returns ranked matches for the goal text plus hints. Entries whose
// condition evaluates false are excluded regardless of keyword score.
// Ordering: priority desc, keyword score desc, pack id asc. No matches
// yields an empty slice, never an error.
func (r *Registry) Query(goal string, hints []string, ec EvalContext) []MatchResult {
	tokens := make(map[string]bool)
	for _, t := range Tokenize(goal) {
		tokens[t] = true
	}
	for _, h := range hints {
		for _, t := range Tokenize(h) {
			tokens[t] = true
		}
	}

	var results []MatchResult
	for _, entry := range r.entries {
		if !entry.Condition.Eval(ec) {
			continue
		}
		score := keywordScore(entry.Keywords, tokens)
		// Keywordless entries are eligible on condition alone; everything
		// else needs at least one overlapping token.
		if score == 0 && len(entry.Keywords) > 0 {
			continue
		}
		results = append(results, MatchResult{PackID: entry.PackID, Score: score, Entry: entry})
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Entry.Priority != b.Entry.Priority {
			return a.Entry.Priority > b.Entry.Priority
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.PackID < b.PackID
	})
	return results
}

// keywordScore counts keywords present in the token set.
func keywordScore(keywords []string, tokens map[string]bool) int {
	score := 0
	for _, kw := range keywords {
		if tokens[strings.ToLower(kw)] {
			score++
		}
	}
	return score
}

// Tokenize lowercases s and splits it on non-alphanumeric runes.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}
