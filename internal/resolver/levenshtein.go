package resolver

import (
	"math"
	"strings"
)

// LevenshteinScorer scores names by normalized edit distance,
// case-insensitive. 1.0 is an exact match, 0.0 shares nothing.
type LevenshteinScorer struct{}

var _ Scorer = LevenshteinScorer{}

func (LevenshteinScorer) Score(a, b string) float64 {
	if a == b {
		return 1.0
	}

	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1.0
	}

	ra, rb := []rune(a), []rune(b)
	maxLen := math.Max(float64(len(ra)), float64(len(rb)))
	if maxLen == 0 {
		return 0.0
	}

	return 1.0 - (float64(levenshteinDistance(ra, rb)) / maxLen)
}

func levenshteinDistance(r1, r2 []rune) int {
	column := make([]int, len(r1)+1)

	for y := 1; y <= len(r1); y++ {
		column[y] = y
	}

	for x := 1; x <= len(r2); x++ {
		column[0] = x
		lastDiag := x - 1
		for y := 1; y <= len(r1); y++ {
			oldDiag := column[y]
			cost := 0
			if r1[y-1] != r2[x-1] {
				cost = 1
			}
			column[y] = minOf(column[y]+1, column[y-1]+1, lastDiag+cost)
			lastDiag = oldDiag
		}
	}

	return column[len(r1)]
}

func minOf(a, b, c int) int {
	if a < b && a < c {
		return a
	}
	if b < c {
		return b
	}
	return c
}
