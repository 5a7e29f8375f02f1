package chunk

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrBinaryFile is returned for files that cannot be decoded as text.
// Callers skip the file and report it; the index build continues.
var ErrBinaryFile = errors.New("binary file content")

// Options configures the chunker.
type Options struct {
	Strategy   Strategy
	WindowSize int // Fixed-window size in lines (default 60)
	Overlap    int // Fixed-window overlap in lines (default 10)
}

// CodeChunker converts a file's text into an ordered sequence of chunks.
// It owns chunk creation; chunks are immutable once returned. Safe for
// concurrent use: each Chunk call checks a parser out of an internal
// pool for the duration of the parse.
type CodeChunker struct {
	parsers  *parserPool
	registry *LanguageRegistry
	opts     Options
}

// NewCodeChunker creates a chunker with the given options, falling back to
// defaults for unset fields.
func NewCodeChunker(opts Options) *CodeChunker {
	if opts.Strategy == "" {
		opts.Strategy = StrategyFixed
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = DefaultWindowSize
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.WindowSize {
		opts.Overlap = DefaultOverlap
	}

	registry := DefaultRegistry()
	return &CodeChunker{
		parsers:  newParserPool(registry, 0),
		registry: registry,
		opts:     opts,
	}
}

// Close releases pooled parser resources.
func (c *CodeChunker) Close() {
	if c.parsers != nil {
		c.parsers.Close()
	}
}

// Chunk splits one file according to the configured strategy. Empty files
// produce no chunks. Undecodable content returns ErrBinaryFile.
func (c *CodeChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	if !utf8.Valid(file.Content) || strings.ContainsRune(string(file.Content), 0) {
		return nil, fmt.Errorf("%s: %w", file.Path, ErrBinaryFile)
	}

	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	path := NormalizePath(file.Path)
	language := DetectLanguage(path)
	lines := splitLines(content)

	switch c.opts.Strategy {
	case StrategyAST:
		return c.chunkAST(ctx, path, language, lines, file.Content)
	case StrategyHybrid:
		return c.chunkHybrid(ctx, path, language, lines, file.Content)
	default:
		return c.chunkFixed(path, language, lines, 1, ProvenanceFixed, true), nil
	}
}

// splitLines splits content into lines, dropping the phantom empty line a
// trailing newline would otherwise produce.
func splitLines(content string) []string {
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

// chunkFixed slides a window of WindowSize lines advancing by
// WindowSize-Overlap. Every line is covered; overlap regions are covered by
// exactly two adjacent chunks; the last chunk may be shorter.
//
// startLine is the 1-indexed file line of lines[0], so the same routine
// chunks whole files and residual regions. wholeFileImports controls the
// first-chunk import rule.
func (c *CodeChunker) chunkFixed(path, language string, lines []string, startLine int, prov Provenance, wholeFileImports bool) []*Chunk {
	if len(lines) == 0 {
		return nil
	}

	allContent := strings.Join(lines, "\n")
	var chunks []*Chunk

	start := 0
	for start < len(lines) {
		end := start + c.opts.WindowSize
		if end > len(lines) {
			end = len(lines)
		}

		content := strings.Join(lines[start:end], "\n")
		imports := ScanImports(language, content)
		if wholeFileImports && len(chunks) == 0 {
			imports = ScanImports(language, allContent)
		}

		chunks = append(chunks, &Chunk{
			ID:          ChunkID(path, startLine+start),
			FilePath:    path,
			StartLine:   startLine + start,
			EndLine:     startLine + end - 1,
			Content:     content,
			ContentHash: HashContent(content),
			Language:    language,
			Symbols:     ScanSymbols(language, content),
			Imports:     imports,
			Provenance:  prov,
		})

		if end >= len(lines) {
			break
		}
		start = end - c.opts.Overlap
	}

	return chunks
}

// chunkAST chunks at top-level declaration boundaries. Parse failure and
// declaration-free files fall back to fixed windows with fixed-fallback
// provenance.
func (c *CodeChunker) chunkAST(ctx context.Context, path, language string, lines []string, source []byte) ([]*Chunk, error) {
	outcome := c.analyze(ctx, language, source)
	if outcome.State == ParseStateUnparseable {
		return c.chunkFixed(path, language, lines, 1, ProvenanceFixedFallback, true), nil
	}
	return c.declarationChunks(path, language, lines, outcome.Declarations), nil
}

// chunkHybrid runs AST chunking, then fixed-chunks any residual line
// regions so the whole file stays covered.
func (c *CodeChunker) chunkHybrid(ctx context.Context, path, language string, lines []string, source []byte) ([]*Chunk, error) {
	outcome := c.analyze(ctx, language, source)
	if outcome.State == ParseStateUnparseable {
		return c.chunkFixed(path, language, lines, 1, ProvenanceFixedFallback, true), nil
	}

	chunks := c.declarationChunks(path, language, lines, outcome.Declarations)
	chunks = c.fillResiduals(path, language, lines, chunks)

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].StartLine < chunks[j].StartLine })
	return chunks, nil
}

// analyze parses the file and extracts declaration boundaries as an
// explicit outcome. Unsupported languages and parser errors are
// Unparseable, never a hard failure.
func (c *CodeChunker) analyze(ctx context.Context, language string, source []byte) ParseOutcome {
	cfg, ok := c.registry.GetByName(language)
	if !ok {
		return ParseOutcome{State: ParseStateUnparseable}
	}

	parser := c.parsers.get()
	defer c.parsers.put(parser)

	tree, err := parser.Parse(ctx, source, language)
	if err != nil {
		return ParseOutcome{State: ParseStateUnparseable}
	}

	return Analyze(tree, cfg)
}

// declarationChunks builds one chunk per top-level declaration, expanded to
// the immediately adjacent doc comment, plus a preamble chunk for
// file-level code before the first declaration.
func (c *CodeChunker) declarationChunks(path, language string, lines []string, decls []Declaration) []*Chunk {
	cfg, _ := c.registry.GetByName(language)

	sort.Slice(decls, func(i, j int) bool { return decls[i].StartLine < decls[j].StartLine })

	var chunks []*Chunk
	prevEnd := 0 // last line claimed by an earlier chunk

	// Preamble: imports, package clause, top-level constants before the
	// first declaration (its doc comment excluded).
	firstStart := docStartLine(lines, decls[0], cfg)
	if firstStart > 1 {
		content := strings.Join(lines[:firstStart-1], "\n")
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, &Chunk{
				ID:          ChunkID(path, 1),
				FilePath:    path,
				StartLine:   1,
				EndLine:     firstStart - 1,
				Content:     content,
				ContentHash: HashContent(content),
				Language:    language,
				Symbols:     ScanSymbols(language, content),
				Imports:     ScanImports(language, content),
				Provenance:  ProvenanceAST,
			})
			prevEnd = firstStart - 1
		}
	}

	for _, decl := range decls {
		start := docStartLine(lines, decl, cfg)
		if start <= prevEnd {
			start = prevEnd + 1
		}
		end := decl.EndLine
		if end > len(lines) {
			end = len(lines)
		}
		if start > end {
			continue
		}

		content := strings.Join(lines[start-1:end], "\n")
		if strings.TrimSpace(content) == "" {
			continue
		}

		symbols := make([]string, 0, 1+len(decl.Nested))
		symbols = append(symbols, decl.Name)
		symbols = append(symbols, decl.Nested...)

		chunks = append(chunks, &Chunk{
			ID:          ChunkID(path, start),
			FilePath:    path,
			StartLine:   start,
			EndLine:     end,
			Content:     content,
			ContentHash: HashContent(content),
			Language:    language,
			Symbols:     dedupeOrdered(symbols),
			Imports:     ScanImports(language, content),
			Provenance:  ProvenanceAST,
		})
		prevEnd = end
	}

	return chunks
}

// fillResiduals covers line regions no declaration chunk claimed. Regions
// with code get fixed windows; whitespace-only gaps are folded into the
// neighboring chunk so no chunk ends up with blank-only content.
func (c *CodeChunker) fillResiduals(path, language string, lines []string, chunks []*Chunk) []*Chunk {
	if len(chunks) == 0 {
		return c.chunkFixed(path, language, lines, 1, ProvenanceHybrid, true)
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].StartLine < chunks[j].StartLine })

	covered := make([]bool, len(lines)+1) // 1-indexed
	for _, ch := range chunks {
		for l := ch.StartLine; l <= ch.EndLine && l <= len(lines); l++ {
			covered[l] = true
		}
	}

	out := chunks
	gapStart := 0
	flush := func(gapEnd int) {
		if gapStart == 0 {
			return
		}
		region := lines[gapStart-1 : gapEnd]
		if strings.TrimSpace(strings.Join(region, "\n")) != "" {
			out = append(out, c.chunkFixed(path, language, region, gapStart, ProvenanceHybrid, false)...)
		} else {
			foldBlankGap(out, gapStart, gapEnd, lines)
		}
		gapStart = 0
	}

	for l := 1; l <= len(lines); l++ {
		if !covered[l] {
			if gapStart == 0 {
				gapStart = l
			}
			continue
		}
		flush(l - 1)
	}
	flush(len(lines))

	return out
}

// foldBlankGap extends the chunk preceding a whitespace-only gap to cover
// it (or the following chunk when the gap opens the file).
func foldBlankGap(chunks []*Chunk, gapStart, gapEnd int, lines []string) {
	blank := strings.Join(lines[gapStart-1:gapEnd], "\n")

	var prev *Chunk
	for _, ch := range chunks {
		if ch.EndLine == gapStart-1 {
			prev = ch
			break
		}
	}
	if prev != nil {
		prev.EndLine = gapEnd
		prev.Content = prev.Content + "\n" + blank
		prev.ContentHash = HashContent(prev.Content)
		return
	}

	for _, ch := range chunks {
		if ch.StartLine == gapEnd+1 {
			ch.StartLine = gapStart
			ch.ID = ChunkID(ch.FilePath, ch.StartLine)
			ch.Content = blank + "\n" + ch.Content
			ch.ContentHash = HashContent(ch.Content)
			return
		}
	}
}

// docStartLine walks upward from a declaration through immediately
// adjacent comment lines. A blank line or code stops the walk.
func docStartLine(lines []string, decl Declaration, cfg *LanguageConfig) int {
	start := decl.StartLine
	for start > 1 {
		prev := strings.TrimSpace(lines[start-2])
		if prev == "" || !hasCommentPrefix(prev, cfg) {
			break
		}
		start--
	}
	return start
}

func hasCommentPrefix(line string, cfg *LanguageConfig) bool {
	for _, prefix := range cfg.CommentPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func dedupeOrdered(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
