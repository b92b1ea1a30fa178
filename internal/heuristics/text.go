package heuristics

import (
	"regexp"
	"strings"

	"github.com/arbovm/levenshtein"
)

var (
	reInvisible  = regexp.MustCompile("[\u200B-\u200D\uFEFF]")
	reWhitespace = regexp.MustCompile(`\s+`)
	rePunctSep   = regexp.MustCompile(`[:.\-]`)
)

// NormalizeText normalizes OCR text aggressively: dash variants, weird
// spaces, zero-width noise, collapsed whitespace.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "–", "-")
	s = strings.ReplaceAll(s, "—", "-")
	s = strings.ReplaceAll(s, " ", " ")
	s = reInvisible.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

// ratio is a 0-100 normalized edit-distance similarity.
func ratio(a, b string) float64 {
	if a == b {
		return 100
	}
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 || lb == 0 {
		return 0
	}
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	d := levenshtein.Distance(a, b)
	return 100 * (1 - float64(d)/float64(maxLen))
}

// partialRatio slides the shorter string across the longer and returns
// the best window similarity on the 0-100 scale.
func partialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(rb) == 0 {
		return 0
	}
	best := 0.0
	for i := 0; i+len(rb) <= len(ra); i++ {
		if r := ratio(string(ra[i:i+len(rb)]), string(rb)); r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

// LabelMatches reports whether label matches text by exact contiguous
// token match or fuzzy similarity at or above threshold (0-100).
func LabelMatches(text, label string, threshold float64) bool {
	t := rePunctSep.ReplaceAllString(strings.ToLower(text), " ")
	t = strings.Join(strings.Fields(t), " ")
	l := strings.Join(strings.Fields(strings.ToLower(label)), " ")
	if l == "" || t == "" {
		return false
	}
	if strings.Contains(t, l) {
		return true
	}
	return partialRatio(t, l) >= threshold
}

// SimilarityRatio exposes the 0-1 normalized similarity used by the
// near-duplicate engine and vendor canonicalizer.
func SimilarityRatio(a, b string) float64 {
	return ratio(a, b) / 100
}

// TokenSortRatio compares two strings with their tokens sorted, which
// makes "ACME Corp" and "Corp ACME" equivalent.
func TokenSortRatio(a, b string) float64 {
	return ratio(sortTokens(a), sortTokens(b))
}

func sortTokens(s string) string {
	tokens := strings.Fields(strings.ToLower(s))
	// insertion sort, token counts are tiny
	for i := 1; i < len(tokens); i++ {
		for j := i; j > 0 && tokens[j] < tokens[j-1]; j-- {
			tokens[j], tokens[j-1] = tokens[j-1], tokens[j]
		}
	}
	return strings.Join(tokens, " ")
}
