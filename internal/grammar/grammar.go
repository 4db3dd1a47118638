// Package grammar turns free-form chat text into candidate name fragments.
package grammar

import (
	"regexp"
	"strings"
)

var multiSpaceRE = regexp.MustCompile(`\s+`)

// Normalize lowercases text, strips everything except word characters,
// underscores and spaces, and collapses runs of whitespace.
func Normalize(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n', r == '\r':
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(multiSpaceRE.ReplaceAllString(b.String(), " "))
}

// Tokenize splits normalized text on whitespace.
func Tokenize(raw string) []string {
	norm := Normalize(raw)
	if norm == "" {
		return nil
	}
	return strings.Fields(norm)
}

// Omnigrams returns every contiguous token subsequence of the input,
// space-joined and lowercase, including the full normalized string itself.
// Order is not significant; callers re-rank.
func Omnigrams(raw string) []string {
	tokens := Tokenize(raw)
	if len(tokens) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for i := 0; i < len(tokens); i++ {
		for j := i + 1; j <= len(tokens); j++ {
			gram := strings.Join(tokens[i:j], " ")
			if _, ok := seen[gram]; ok {
				continue
			}
			seen[gram] = struct{}{}
			out = append(out, gram)
		}
	}
	return out
}
