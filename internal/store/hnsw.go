package store

import (
	"context"
	"math"
	"strconv"
	"sync"

	"github.com/coder/hnsw"

	apperrors "github.com/patchrag/patchrag/internal/errors"
)

// VectorStoreConfig configures the in-memory vector store.
type VectorStoreConfig struct {
	// Dimensions is the expected embedding dimensionality.
	Dimensions int
	// M is the HNSW connectivity parameter.
	M int
	// EfSearch is the HNSW search beam width.
	EfSearch int
}

// DefaultVectorStoreConfig returns the default HNSW parameters.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{Dimensions: dimensions, M: 16, EfSearch: 20}
}

// VectorResult is a nearest-neighbor hit.
type VectorResult struct {
	ID    string
	Score float32 // cosine similarity mapped to [0, 1]
}

// VectorStore is an in-memory HNSW index over chunk embeddings keyed by
// chunk ID. It lives only for the duration of a run: embeddings are
// recomputed (or served from cache) on each index build, so there is no
// on-disk format to version.
type VectorStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorStoreConfig

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

// NewVectorStore creates an empty vector store using cosine distance.
func NewVectorStore(cfg VectorStoreConfig) *VectorStore {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &VectorStore{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// Add inserts vectors with their chunk IDs. Re-adding an existing ID
// replaces it: the old graph node is orphaned rather than deleted, which
// sidesteps coder/hnsw's delete-last-node breakage.
func (s *VectorStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return apperrors.ValidationError("ids and vectors length mismatch", nil)
	}
	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return apperrors.New(apperrors.ErrCodeDimensionMismatch, "embedding dimension mismatch", nil).
				WithDetail("expected", strconv.Itoa(s.config.Dimensions)).
				WithDetail("got", strconv.Itoa(len(v)))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if oldKey, exists := s.idMap[id]; exists {
			delete(s.keyMap, oldKey)
			delete(s.idMap, id)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeInPlace(vec)

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[id] = key
		s.keyMap[key] = id
	}
	return nil
}

// Search returns up to k nearest neighbors of the query vector, best
// first. Orphaned graph nodes are skipped.
func (s *VectorStore) Search(ctx context.Context, query []float32, k int) ([]VectorResult, error) {
	if len(query) != s.config.Dimensions {
		return nil, apperrors.New(apperrors.ErrCodeDimensionMismatch, "query dimension mismatch", nil).
			WithDetail("expected", strconv.Itoa(s.config.Dimensions)).
			WithDetail("got", strconv.Itoa(len(query)))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.graph.Len() == 0 {
		return nil, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	nodes := s.graph.Search(normalized, k)

	results := make([]VectorResult, 0, len(nodes))
	for _, node := range nodes {
		id, ok := s.keyMap[node.Key]
		if !ok {
			continue
		}
		distance := s.graph.Distance(normalized, node.Value)
		// Cosine distance spans [0, 2]; map to a [0, 1] similarity.
		results = append(results, VectorResult{ID: id, Score: 1 - distance/2})
	}
	return results, nil
}

// Contains reports whether the ID has a vector in the store.
func (s *VectorStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.idMap[id]
	return ok
}

// Count returns the number of live vectors.
func (s *VectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idMap)
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
