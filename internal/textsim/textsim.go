// Package textsim normalizes and compares free-text merchant and
// description strings. It is the foundation for all confidence scoring.
package textsim

import (
	"strings"
	"unicode"
)

// Similarity thresholds. SimilarThreshold is the soft signal used by
// scoring; HighlySimilarThreshold is the crisp cutoff used for display.
const (
	SimilarThreshold       = 0.3
	HighlySimilarThreshold = 0.6
)

// Tokens that carry no merchant identity and only add noise to comparisons.
var noiseTokens = map[string]bool{
	"pos":      true,
	"debit":    true,
	"credit":   true,
	"purchase": true,
	"payment":  true,
	"card":     true,
	"ach":      true,
	"web":      true,
	"pmt":      true,
	"the":      true,
	"of":       true,
	"inc":      true,
	"llc":      true,
	"co":       true,
}

// Normalize lowercases a description, strips punctuation, and drops noise
// tokens such as store numbers and card suffixes.
func Normalize(s string) string {
	return strings.Join(Tokenize(s), " ")
}

// Tokenize splits a description into normalized tokens, dropping
// punctuation, digit-only tokens and known noise words.
func Tokenize(s string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if noiseTokens[f] || isDigits(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

// Similarity returns a score in [0,1] for two descriptions. Token overlap
// (Dice coefficient) is used when both sides tokenize to multiple words;
// short strings fall back to normalized edit distance, which handles
// single-word merchant names with minor spelling variants.
func Similarity(a, b string) float64 {
	ta, tb := Tokenize(a), Tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	if len(ta) == 1 && len(tb) == 1 {
		return editSimilarity(ta[0], tb[0])
	}

	seen := make(map[string]bool, len(ta))
	for _, t := range ta {
		seen[t] = true
	}
	common := 0
	for _, t := range tb {
		if seen[t] {
			common++
			delete(seen, t) // Count each shared token once
		}
	}
	return 2 * float64(common) / float64(len(ta)+len(tb))
}

// Similar reports whether two descriptions clear the soft similarity cutoff.
func Similar(a, b string) bool {
	return Similarity(a, b) >= SimilarThreshold
}

// HighlySimilar reports whether two descriptions clear the display cutoff.
func HighlySimilar(a, b string) bool {
	return Similarity(a, b) >= HighlySimilarThreshold
}

// Signature returns the leading-token signature of a description, used to
// group transactions from the same merchant during suggestion mining.
func Signature(s string, n int) string {
	tokens := Tokenize(s)
	if len(tokens) > n {
		tokens = tokens[:n]
	}
	return strings.Join(tokens, " ")
}

// editSimilarity converts Levenshtein distance to a [0,1] similarity.
func editSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	dist := levenshtein(a, b)
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(dist)/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
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
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
