package embed

import (
	"context"
	"strings"
	"unicode"

	"github.com/patchrag/patchrag/internal/store"
)

// StaticEmbedder generates embeddings by hashing tokens and character
// n-grams into a fixed-size vector. It needs no network or model files
// and is fully deterministic, which makes it the default backend for
// evaluation runs where reproducibility matters more than semantic depth.
type StaticEmbedder struct{}

// keywordStopWords are language keywords that carry no retrieval signal.
var keywordStopWords = map[string]bool{
	"func": true, "function": true, "def": true, "class": true,
	"return": true, "import": true, "const": true, "var": true,
	"let": true, "int": true, "string": true, "bool": true,
	"void": true, "true": true, "false": true, "nil": true,
	"null": true, "this": true, "self": true, "new": true,
}

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// NewStaticEmbedder creates a static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

var _ Embedder = (*StaticEmbedder)(nil)

// Embed generates the embedding for a single text.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}

	vector := make([]float32, StaticDimensions)

	// Identifier-aware tokens carry most of the weight.
	for _, token := range store.TokenizeCode(trimmed) {
		if keywordStopWords[token] {
			continue
		}
		vector[hashToIndex(token)] += tokenWeight
	}

	// Character trigrams catch partial matches the tokenizer misses.
	for _, ngram := range extractNgrams(normalizeForNgrams(trimmed), ngramSize) {
		vector[hashToIndex(ngram)] += ngramWeight
	}

	return normalizeVector(vector), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return StaticDimensions
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return "static-hash-256"
}

// Available always reports true: the static embedder has no backend.
func (e *StaticEmbedder) Available(ctx context.Context) bool {
	return true
}

// Close is a no-op.
func (e *StaticEmbedder) Close() error {
	return nil
}

// hashToIndex maps a string to a vector slot with FNV-1a.
func hashToIndex(s string) int {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	var h uint64 = offset64
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return int(h % uint64(StaticDimensions))
}

// normalizeForNgrams lowercases and strips everything but letters and
// digits so n-grams are insensitive to formatting.
func normalizeForNgrams(text string) string {
	var result strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// extractNgrams returns n-character sliding windows over text.
func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return nil
	}
	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}
