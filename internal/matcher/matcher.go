// Package matcher pairs markets across the two venues by title similarity.
package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/alanyoungcy/polyscan/internal/domain"
)

// DefaultThreshold is the minimum similarity accepted when the caller does
// not supply one.
const DefaultThreshold = 0.6

// Similarity returns a normalized, case-insensitive string similarity in
// [0, 1]: 1 minus the Levenshtein distance over the longer length. Two empty
// strings are identical.
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// Match greedily pairs each Polymarket market with the not-yet-used Opinion
// market whose title is most similar, accepting the pair only when the best
// similarity reaches threshold. Each Opinion market is consumed by at most
// one pair; output follows Polymarket iteration order. The result is locally
// greedy, not globally optimal.
func Match(polymarkets, opinionMarkets []domain.Market, threshold float64) []domain.MatchedPair {
	var pairs []domain.MatchedPair
	used := make(map[string]bool, len(opinionMarkets))

	for _, pm := range polymarkets {
		bestScore := -1.0
		bestIdx := -1
		for i, op := range opinionMarkets {
			if used[op.ID] {
				continue
			}
			score := Similarity(pm.Title, op.Title)
			if score >= threshold && score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			continue
		}
		op := opinionMarkets[bestIdx]
		used[op.ID] = true
		pairs = append(pairs, domain.MatchedPair{
			Polymarket: pm,
			Opinion:    op,
			Similarity: bestScore,
		})
	}
	return pairs
}
