package store

import "github.com/patchrag/patchrag/internal/chunk"

// BM25Config holds the scoring parameters. K1 controls term-frequency
// saturation, B controls document-length normalization.
type BM25Config struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
}

// DefaultBM25Config returns the standard parameter values.
func DefaultBM25Config() BM25Config {
	return BM25Config{K1: 1.5, B: 0.75}
}

// Hit is a scored chunk returned from an index lookup.
type Hit struct {
	Chunk *chunk.Chunk
	Score float64
}

// IndexStats summarizes a built BM25 index.
type IndexStats struct {
	DocCount     int     `json:"doc_count"`
	TermCount    int     `json:"term_count"`
	AvgDocLength float64 `json:"avg_doc_length"`
}
