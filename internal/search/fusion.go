package search

import (
	"sort"
	"strings"
)

// DefaultRRFConstant is the standard RRF smoothing parameter,
// empirically validated across domains.
const DefaultRRFConstant = 60

// FusionMode selects the combination function. The two modes are
// mutually exclusive; they do not compose within one fused query.
type FusionMode string

const (
	// FusionRRF combines lists by reciprocal rank.
	FusionRRF FusionMode = "rrf"
	// FusionWeighted combines min-max-normalized scores by weight.
	FusionWeighted FusionMode = "weighted"
)

// FusionConfig configures the fusion engine.
type FusionConfig struct {
	Mode FusionMode
	// KRRF is the RRF smoothing constant (default 60).
	KRRF int
	// Weights maps strategy name to its weight in weighted mode. A
	// strategy without an entry gets weight 1. Weights need not sum
	// to 1.
	Weights map[string]float64
}

// DefaultFusionConfig returns RRF with the standard constant.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{Mode: FusionRRF, KRRF: DefaultRRFConstant}
}

// Fuser merges per-strategy ranked lists into one fused ranking.
type Fuser struct {
	config  FusionConfig
	resolve ChunkResolver
}

// NewFuser creates a fuser. The resolver supplies chunk metadata for
// deterministic tie-breaking.
func NewFuser(config FusionConfig, resolve ChunkResolver) *Fuser {
	if config.KRRF <= 0 {
		config.KRRF = DefaultRRFConstant
	}
	if config.Mode == "" {
		config.Mode = FusionRRF
	}
	return &Fuser{config: config, resolve: resolve}
}

// Fuse combines the per-strategy lists. Each fused result records which
// strategies contributed it. Ties break by exact symbol match against
// the query, then shorter path, then lexicographic path, then start
// line.
func (f *Fuser) Fuse(query string, lists map[string]RankedList) []FusedResult {
	if len(lists) == 0 {
		return nil
	}

	type accum struct {
		score      float64
		strategies []string
	}
	scores := make(map[string]*accum)

	add := func(chunkID, strategy string, contribution float64) {
		a, ok := scores[chunkID]
		if !ok {
			a = &accum{}
			scores[chunkID] = a
		}
		a.score += contribution
		a.strategies = append(a.strategies, strategy)
	}

	// Iterate strategies in sorted order so contributing_strategies and
	// floating-point accumulation are reproducible.
	strategies := make([]string, 0, len(lists))
	for name := range lists {
		strategies = append(strategies, name)
	}
	sort.Strings(strategies)

	for _, strategy := range strategies {
		list := lists[strategy]
		switch f.config.Mode {
		case FusionWeighted:
			weight := 1.0
			if w, ok := f.config.Weights[strategy]; ok {
				weight = w
			}
			for _, r := range list {
				add(r.ChunkID, strategy, weight*minMaxNormalize(r.Score, list))
			}
		default: // FusionRRF
			// A chunk absent from a strategy's list contributes
			// nothing for that strategy; RRF rewards ranking highly
			// somewhere, not mere presence everywhere.
			for _, r := range list {
				add(r.ChunkID, strategy, 1.0/float64(f.config.KRRF+r.Rank))
			}
		}
	}

	queryTerms := queryTermSet(query)
	fused := make([]FusedResult, 0, len(scores))
	for chunkID, a := range scores {
		sort.Strings(a.strategies)
		fused = append(fused, FusedResult{ChunkID: chunkID, Score: a.score, Strategies: a.strategies})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return lessTied(fused[i].ChunkID, fused[j].ChunkID, queryTerms, f.resolve)
	})
	return fused
}

// minMaxNormalize scales a score into [0,1] over its own strategy list.
// A list where every score ties normalizes to 1 for all entries.
func minMaxNormalize(score float64, list RankedList) float64 {
	if len(list) == 0 {
		return 0
	}
	lo, hi := list[0].Score, list[0].Score
	for _, r := range list[1:] {
		if r.Score < lo {
			lo = r.Score
		}
		if r.Score > hi {
			hi = r.Score
		}
	}
	if hi == lo {
		return 1
	}
	return (score - lo) / (hi - lo)
}

// queryTermSet lowercases and splits the query into word terms for the
// symbol tie-break.
func queryTermSet(query string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, term := range wordRegex.FindAllString(strings.ToLower(query), -1) {
		terms[term] = struct{}{}
	}
	return terms
}
