// Package store owns the indexed representation of a codebase: the BM25
// inverted index, the SQLite chunk store, and the in-memory vector store.
// Indexes are built once per indexing run and are read-only afterwards.
package store

import (
	"regexp"
	"strings"
	"unicode"
)

// tokenRegex matches identifier-like runs: letters, digits, underscores.
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// minTokenLength drops one-character fragments that only add index noise.
// The cut applies to indexed content and queries alike, so a
// single-character query term can never match: it is absent from both
// sides of the scoring.
const minTokenLength = 2

// TokenizeCode splits text with code-aware rules. Identifiers are split at
// camelCase and snake_case boundaries and the original compound is kept
// alongside its parts, so both whole-identifier and partial queries match.
// All tokens are lowercased. Nothing is dropped as a stopword: code terms
// like "if" and "return" are legitimate index content.
func TokenizeCode(text string) []string {
	var tokens []string

	for _, word := range tokenRegex.FindAllString(text, -1) {
		parts := SplitIdentifier(word)
		compound := strings.ToLower(word)

		if len(parts) > 1 && len(compound) >= minTokenLength {
			tokens = append(tokens, compound)
		}
		for _, p := range parts {
			lower := strings.ToLower(p)
			if len(lower) >= minTokenLength {
				tokens = append(tokens, lower)
			}
		}
	}

	return tokens
}

// TokenizeQuery tokenizes a natural-language query like TokenizeCode but
// additionally drops stopwords. Stopword filtering applies to queries
// only, never to indexed code content.
func TokenizeQuery(text string, stopWords map[string]struct{}) []string {
	tokens := TokenizeCode(text)
	if len(stopWords) == 0 {
		return tokens
	}

	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// SplitIdentifier splits camelCase, PascalCase and snake_case identifiers
// into their parts. Acronym runs stay together ("HTTPHandler" -> "HTTP",
// "Handler").
func SplitIdentifier(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamel(part)...)
			}
		}
		return result
	}
	return splitCamel(token)
}

func splitCamel(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

// DefaultQueryStopWords are natural-language filler terms removed from
// queries before scoring.
var DefaultQueryStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "do", "does",
	"for", "from", "how", "in", "into", "is", "it", "of", "on", "or",
	"should", "that", "the", "this", "to", "what", "when", "where",
	"which", "with",
}

// BuildStopWordMap converts a stopword list into a lookup set.
func BuildStopWordMap(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}
