package store

import (
	"context"
	"math"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/patchrag/patchrag/internal/chunk"
)

// BM25Index is a hand-rolled in-memory inverted index. It is built once
// from a chunk set and is immutable afterwards, so concurrent Retrieve
// calls need no locking.
type BM25Index struct {
	config    BM25Config
	stopWords map[string]struct{}

	chunks   []*chunk.Chunk
	termFreq []map[string]int // per-doc token counts, parallel to chunks
	docLen   []int            // per-doc token totals, parallel to chunks
	docFreq  map[string]int   // term -> number of docs containing it
	postings map[string][]int // term -> sorted doc indices
	avgdl    float64
}

// NewBM25Index builds the index over the given chunks. Chunks are ordered
// by (file path, start line) before assigning document ids, so the same
// input always yields the same index regardless of input order. Token
// counting runs in parallel; the merge into shared maps is sequential.
func NewBM25Index(ctx context.Context, chunks []*chunk.Chunk, config BM25Config) (*BM25Index, error) {
	docs := make([]*chunk.Chunk, len(chunks))
	copy(docs, chunks)
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].FilePath != docs[j].FilePath {
			return docs[i].FilePath < docs[j].FilePath
		}
		return docs[i].StartLine < docs[j].StartLine
	})

	idx := &BM25Index{
		config:    config,
		stopWords: BuildStopWordMap(DefaultQueryStopWords),
		chunks:    docs,
		termFreq:  make([]map[string]int, len(docs)),
		docLen:    make([]int, len(docs)),
		docFreq:   make(map[string]int),
		postings:  make(map[string][]int),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, c := range docs {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Only chunk content is indexed. Symbols and paths stay
			// out of the term counts so identical content always
			// scores identically and the tie-break rules decide.
			freq := make(map[string]int)
			for _, tok := range TokenizeCode(c.Content) {
				freq[tok]++
			}

			total := 0
			for _, n := range freq {
				total += n
			}
			idx.termFreq[i] = freq
			idx.docLen[i] = total
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	totalLen := 0
	for i := range docs {
		totalLen += idx.docLen[i]
		for term := range idx.termFreq[i] {
			idx.docFreq[term]++
			idx.postings[term] = append(idx.postings[term], i)
		}
	}
	if len(docs) > 0 {
		idx.avgdl = float64(totalLen) / float64(len(docs))
	}

	return idx, nil
}

// IDF computes the smoothed inverse document frequency for a term:
// ln(1 + (N - df + 0.5) / (df + 0.5)). Always positive, even for terms
// present in every document.
func (idx *BM25Index) IDF(term string) float64 {
	df := idx.docFreq[term]
	n := len(idx.chunks)
	return math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
}

// Retrieve scores the query against the index and returns the top k hits
// in descending score order. Chunks sharing no query term are excluded
// outright. Ties break by exact symbol match, then shorter file path,
// then lexicographic path, then lower start line.
func (idx *BM25Index) Retrieve(query string, k int) []Hit {
	if k <= 0 || len(idx.chunks) == 0 {
		return nil
	}

	terms := TokenizeQuery(query, idx.stopWords)
	if len(terms) == 0 {
		return nil
	}

	// Collapse duplicate query terms; each distinct term contributes once
	// per its per-document frequency.
	seen := make(map[string]struct{}, len(terms))
	scores := make(map[int]float64)
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		docs, ok := idx.postings[term]
		if !ok {
			continue
		}
		idf := idx.IDF(term)
		for _, doc := range docs {
			f := float64(idx.termFreq[doc][term])
			dl := float64(idx.docLen[doc])
			norm := 1 - idx.config.B + idx.config.B*dl/idx.avgdl
			scores[doc] += idf * f * (idx.config.K1 + 1) / (f + idx.config.K1*norm)
		}
	}
	if len(scores) == 0 {
		return nil
	}

	hits := make([]Hit, 0, len(scores))
	for doc, score := range scores {
		hits = append(hits, Hit{Chunk: idx.chunks[doc], Score: score})
	}

	symbolHit := func(c *chunk.Chunk) bool {
		for _, sym := range c.Symbols {
			lower := strings.ToLower(sym)
			if _, ok := seen[lower]; ok {
				return true
			}
		}
		return false
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		si, sj := symbolHit(hits[i].Chunk), symbolHit(hits[j].Chunk)
		if si != sj {
			return si
		}
		pi, pj := hits[i].Chunk.FilePath, hits[j].Chunk.FilePath
		if len(pi) != len(pj) {
			return len(pi) < len(pj)
		}
		if pi != pj {
			return pi < pj
		}
		return hits[i].Chunk.StartLine < hits[j].Chunk.StartLine
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Chunks returns the indexed chunks in document-id order.
func (idx *BM25Index) Chunks() []*chunk.Chunk {
	return idx.chunks
}

// Stats reports index-level counters.
func (idx *BM25Index) Stats() IndexStats {
	return IndexStats{
		DocCount:     len(idx.chunks),
		TermCount:    len(idx.postings),
		AvgDocLength: idx.avgdl,
	}
}
