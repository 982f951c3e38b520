package engine

import (
	"fmt"
	"strings"

	"github.com/icebox-app/icebox/internal/store"
)

// SimilarityThreshold is the duplicate gate: a new capture matching a recent
// idea above this ratio prompts for confirmation instead of saving silently.
const SimilarityThreshold = 0.7

// similarityWindow caps how many recent ideas the gate scans.
const similarityWindow = 50

// Ratio computes a case-insensitive sequence-similarity ratio in [0,1]:
// 2*LCS(a,b) / (len(a)+len(b)) over runes. Symmetric, and 1.0 for identical
// non-empty strings. This is a heuristic gate, not exact matching.
func Ratio(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	lcs := lcsLength(ra, rb)
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

// lcsLength computes the longest-common-subsequence length with two rolling
// rows, O(len(a)*len(b)) time and O(len(b)) space.
func lcsLength(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// FindSimilar scans the user's most recent ideas (newest first) and returns
// the first whose content exceeds the similarity threshold against the new
// content, or nil if none does. Pairs with an empty side are skipped, not
// scored as zero.
func (e *Engine) FindSimilar(userID int64, content string) (*store.Idea, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	recent, err := e.DB.Recent(userID, similarityWindow)
	if err != nil {
		return nil, fmt.Errorf("recent ideas for similarity: %w", err)
	}
	for i := range recent {
		if recent[i].Content == "" {
			continue
		}
		if Ratio(content, recent[i].Content) > SimilarityThreshold {
			return &recent[i], nil
		}
	}
	return nil, nil
}
