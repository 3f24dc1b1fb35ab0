// Package textproc provides deterministic text utilities for answer
// classification and reply post-processing: normalization, the evasive
// predicate, grammatical gender agreement, and sentence trimming.
//
// The lexicons are Italian; swapping data is the supported localization path.
package textproc

import "strings"

// Normalize lowercases and trims an answer for keyword matching.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ContainsAny reports whether the normalized text contains at least one
// of the given keywords (substring match, matching stemmed lexicon entries).
func ContainsAny(text string, keywords []string) bool {
	normalized := Normalize(text)
	for _, kw := range keywords {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// Tokens splits normalized text on whitespace.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}
