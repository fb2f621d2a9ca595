package usecase

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// bestMatch finds the canonical vocabulary value closest to the extracted
// one. Case-insensitive exact matches score 1; otherwise similarity is the
// normalized edit distance. Returns the best candidate and its score.
func bestMatch(value string, known []string) (string, float64) {
	needle := strings.ToLower(strings.TrimSpace(value))
	if needle == "" || len(known) == 0 {
		return "", 0
	}

	best := ""
	bestScore := 0.0
	for _, candidate := range known {
		haystack := strings.ToLower(strings.TrimSpace(candidate))
		if haystack == needle {
			return candidate, 1
		}
		score := similarity(needle, haystack)
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best, bestScore
}

func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}
