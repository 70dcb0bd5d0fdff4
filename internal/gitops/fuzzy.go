package gitops

import (
	"github.com/pmezard/go-difflib/difflib"
)

// findFuzzyMatch locates the best-matching window of len(pattern) (roughly)
// within text using difflib's SequenceMatcher, the same Ratcliff/Obershelp
// algorithm Python's difflib (and this repo's corpus sibling vjache-cie,
// which pulls in go-difflib) uses for approximate string matching.
//
// It anchors on the single longest common substring between text and
// pattern, then grows a window around it until the similarity ratio against
// pattern stops improving, returning that window's bounds and ratio.
func findFuzzyMatch(text, pattern string) (start, end int, ratio float64) {
	textRunes := []rune(text)
	m := difflib.NewMatcher(splitRunes(text), splitRunes(pattern))
	match := m.FindLongestMatch(0, len(textRunes), 0, len([]rune(pattern)))
	if match.Size == 0 {
		return 0, 0, 0
	}

	lo, hi := match.A, match.A+match.Size
	bestRatio := windowRatio(textRunes, lo, hi, pattern)
	patLen := len([]rune(pattern))

	for {
		improved := false
		if lo > 0 {
			r := windowRatio(textRunes, lo-1, hi, pattern)
			if r > bestRatio {
				bestRatio, lo, improved = r, lo-1, true
			}
		}
		if hi < len(textRunes) {
			r := windowRatio(textRunes, lo, hi+1, pattern)
			if r > bestRatio {
				bestRatio, hi, improved = r, hi+1, true
			}
		}
		if hi-lo > patLen*3+64 {
			break // Guard against pathological growth on degenerate input.
		}
		if !improved {
			break
		}
	}
	return lo, hi, bestRatio
}

func windowRatio(textRunes []rune, lo, hi int, pattern string) float64 {
	window := string(textRunes[lo:hi])
	return difflib.NewMatcher(splitRunes(window), splitRunes(pattern)).Ratio()
}

func splitRunes(s string) []string {
	rs := []rune(s)
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}
