// Package match scores candidate releases against a wanted artist/title pair.
package match

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// AcceptThreshold is the minimum combined score for a candidate to be
// accepted as a match. Deliberately lower than two perfect field matches so
// that noisy source metadata ("feat." credits, deluxe-edition suffixes)
// still resolves.
const AcceptThreshold = 12

// Normalize prepares a string for comparison: Unicode NFC, lowercase,
// non-alphanumeric characters dropped, whitespace collapsed and trimmed
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = norm.NFC.String(s)
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		} else if r == '\t' || r == '\n' {
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeArtist normalizes an artist name, additionally undoing the
// "Artist, The" sort-name convention so that "Beatles, The" and
// "The Beatles" compare equal
func NormalizeArtist(artist string) string {
	trimmed := strings.TrimSpace(artist)
	if strings.HasSuffix(strings.ToLower(trimmed), ", the") {
		trimmed = "the " + trimmed[:len(trimmed)-len(", the")]
	}
	return Normalize(trimmed)
}

// Levenshtein computes the classic edit distance between two strings
// (insert/delete/substitute, unit cost)
func Levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// Similarity returns (maxLen - distance) / maxLen for two strings.
// 1.0 means identical, 0.0 means nothing in common.
func Similarity(a, b string) float64 {
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	return float64(maxLen-Levenshtein(a, b)) / float64(maxLen)
}

// fieldScore scores one already-normalized field pair.
// The weaker 0.6 similarity tier applies to titles only; artist strings are
// short enough that it produces too many false positives.
func fieldScore(want, got string, isTitle bool) int {
	if want == "" || got == "" {
		return 0
	}

	if want == got {
		return 20
	}
	if strings.Contains(want, got) || strings.Contains(got, want) {
		return 15
	}

	sim := Similarity(want, got)
	if sim > 0.8 {
		return 12
	}
	if isTitle && sim > 0.6 {
		return 8
	}

	return 0
}

// Score rates a candidate release against the wanted title/artist pair.
// Inputs are raw strings; normalization happens here.
func Score(wantTitle, wantArtist, candTitle, candArtist string) int {
	title := fieldScore(Normalize(wantTitle), Normalize(candTitle), true)
	artist := fieldScore(NormalizeArtist(wantArtist), NormalizeArtist(candArtist), false)
	return title + artist
}

// Accepted reports whether a combined score is strong enough evidence
func Accepted(score int) bool {
	return score >= AcceptThreshold
}
