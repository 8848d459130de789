// Package directory resolves human device labels against the cached
// name-to-identifier directory. Matching is intentionally lossy: a wrong
// device silently returns wrong data, so below-threshold candidates are
// rejected rather than guessed at.
package directory

import (
	"github.com/pmezard/go-difflib/difflib"
)

// MatchThreshold is the minimum similarity ratio accepted for a fuzzy match.
const MatchThreshold = 0.7

// Match is a single fuzzy-match candidate with its similarity score.
type Match struct {
	Candidate string
	Score     float64
}

// BestMatch returns the single best candidate for name. An exact match always
// wins with score 1. Otherwise the highest-ratio candidate is returned, and
// only when its ratio reaches MatchThreshold.
func BestMatch(name string, candidates []string) (Match, bool) {
	for _, c := range candidates {
		if c == name {
			return Match{Candidate: c, Score: 1}, true
		}
	}

	best := Match{}
	for _, c := range candidates {
		score := similarity(name, c)
		if score > best.Score {
			best = Match{Candidate: c, Score: score}
		}
	}

	if best.Candidate == "" || best.Score < MatchThreshold {
		return Match{}, false
	}
	return best, true
}

// similarity is the Ratcliff/Obershelp ratio computed over characters.
func similarity(a, b string) float64 {
	return difflib.NewMatcher(splitChars(a), splitChars(b)).Ratio()
}

func splitChars(s string) []string {
	chars := make([]string, 0, len(s))
	for _, r := range s {
		chars = append(chars, string(r))
	}
	return chars
}
