package engine

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/icebox-app/icebox/internal/store"
)

// searchLimit caps substring search results.
const searchLimit = 20

// contextRadius is the number of characters shown on each side of a match.
const contextRadius = 40

// SearchMatch is one search hit with the matched substring isolated so the
// front-end can highlight it literally.
type SearchMatch struct {
	Idea    store.Idea `json:"idea"`
	Before  string     `json:"before"`
	Match   string     `json:"match"`
	After   string     `json:"after"`
	Preview string     `json:"preview"`
}

// Search finds the user's ideas containing the query substring, newest first,
// each with a 40-character context window around the first occurrence.
func (e *Engine) Search(userID int64, query string) ([]SearchMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	ideas, err := e.DB.SearchIdeas(userID, query, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("search ideas: %w", err)
	}

	matches := make([]SearchMatch, 0, len(ideas))
	for _, idea := range ideas {
		m := SearchMatch{Idea: idea}
		m.Before, m.Match, m.After = contextWindow(idea.Content, query)
		m.Preview = m.Before + "**" + m.Match + "**" + m.After
		matches = append(matches, m)
	}
	return matches, nil
}

// contextWindow extracts the literal match (preserving the original casing)
// with up to contextRadius runes on each side, ellipsized when truncated.
func contextWindow(content, query string) (before, match, after string) {
	runes := []rune(content)
	start := indexFold(runes, []rune(query))
	if start < 0 {
		// LIKE matched but the substring scan did not (shouldn't happen for
		// plain queries); fall back to a plain head preview.
		if len(runes) > 2*contextRadius {
			return "", string(runes[:2*contextRadius]), "..."
		}
		return "", content, ""
	}
	end := start + len([]rune(query))

	from := start - contextRadius
	if from < 0 {
		from = 0
	}
	to := end + contextRadius
	if to > len(runes) {
		to = len(runes)
	}

	before = string(runes[from:start])
	match = string(runes[start:end])
	after = string(runes[end:to])
	if from > 0 {
		before = "..." + before
	}
	if to < len(runes) {
		after = after + "..."
	}
	return before, match, after
}

// indexFold finds the first case-insensitive occurrence of q in s, rune by
// rune. Scanning runes keeps the offset valid for slicing the original text
// even where lowercasing would change a rune's byte length.
func indexFold(s, q []rune) int {
	if len(q) == 0 || len(q) > len(s) {
		return -1
	}
	for i := 0; i+len(q) <= len(s); i++ {
		match := true
		for j := range q {
			if unicode.ToLower(s[i+j]) != unicode.ToLower(q[j]) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
