package grading

import (
	"strings"
	"unicode"
)

// normalizeText collapses whitespace and, unless caseSensitive, folds case.
func normalizeText(s string, caseSensitive bool) string {
	collapsed := strings.Join(strings.Fields(s), " ")
	if caseSensitive {
		return collapsed
	}
	return strings.ToLower(collapsed)
}

// stripPunctuation drops punctuation so fuzzy comparison ignores trailing dots and commas.
func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return r
	}, s)
}

// levenshtein computes edit distance (insertion, deletion, substitution cost 1).
func levenshtein(a, b string) int {
	ar := []rune(a)
	br := []rune(b)
	n, m := len(ar), len(br)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}
	dp := make([]int, m+1)
	for j := 0; j <= m; j++ {
		dp[j] = j
	}
	for i := 1; i <= n; i++ {
		prev := dp[0]
		dp[0] = i
		for j := 1; j <= m; j++ {
			tmp := dp[j]
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			dp[j] = min(dp[j]+1, dp[j-1]+1, prev+cost)
			prev = tmp
		}
	}
	return dp[m]
}
