// Package chunk splits source files into retrievable chunks.
// Three strategies are supported: fixed line windows, AST declaration
// boundaries (tree-sitter), and a hybrid of both. Structural parse
// failures degrade deterministically to fixed windows.
package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// Strategy selects how a file is split into chunks.
type Strategy string

const (
	StrategyFixed  Strategy = "fixed"
	StrategyAST    Strategy = "ast"
	StrategyHybrid Strategy = "hybrid"
)

// Provenance records which code path produced a chunk. Retrieval-quality
// audits use it to distinguish degraded inputs from first-class ones.
type Provenance string

const (
	ProvenanceFixed  Provenance = "fixed"
	ProvenanceAST    Provenance = "ast"
	ProvenanceHybrid Provenance = "hybrid"

	// ProvenanceFixedFallback marks chunks produced by the fixed strategy
	// after a structural parse failure.
	ProvenanceFixedFallback Provenance = "fixed-fallback"
)

// Window defaults for fixed chunking.
const (
	DefaultWindowSize = 60
	DefaultOverlap    = 10
)

// Chunk is a contiguous span of one source file, the unit of retrieval.
// Chunks are created at index-build time and immutable thereafter.
type Chunk struct {
	ID          string     // FilePath + ":" + StartLine, stable across rebuilds
	FilePath    string     // Relative, forward-slash normalized
	StartLine   int        // 1-indexed
	EndLine     int        // Inclusive, >= StartLine
	Content     string     // Raw text of the covered lines
	ContentHash string     // Truncated SHA-256 of Content
	Language    string     // Detected from file extension
	Symbols     []string   // Declared names, insertion order, deduped
	Imports     []string   // Import targets, in file order
	Provenance  Provenance // fixed, ast, hybrid, fixed-fallback
}

// FileInput is one file handed to the Chunker.
type FileInput struct {
	Path    string // Relative path, forward slashes
	Content []byte
}

// Chunker converts file content into an ordered chunk sequence.
type Chunker interface {
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)
}

// ChunkID builds the stable chunk identifier from its location.
func ChunkID(filePath string, startLine int) string {
	return fmt.Sprintf("%s:%d", filePath, startLine)
}

// HashContent returns the truncated hex SHA-256 digest used for change
// detection and dedupe.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// DetectLanguage maps a file extension to a language name. Files with an
// unrecognized extension report "text" and are only eligible for fixed
// chunking.
func DetectLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".ts":
		return "typescript"
	case ".tsx":
		return "tsx"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".jsx":
		return "jsx"
	case ".py":
		return "python"
	default:
		return "text"
	}
}

// NormalizePath converts OS-specific separators to forward slashes.
func NormalizePath(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}
