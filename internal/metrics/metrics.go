// Package metrics scores ranked retrieval results against gold
// relevance judgments: precision@k, recall@k, MRR, NDCG@k, and hit
// rate, per task and aggregated over an evaluation run.
package metrics

import (
	"math"
	"sort"
)

// GoldSet maps a relevant chunk or file identifier to its relevance
// grade. Binary judgments use grade 1; graded judgments feed NDCG.
type GoldSet map[string]float64

// PrecisionAtK is |top-k ∩ gold| / k. Missing slots count as
// non-relevant: the divisor is always k, not the returned count.
func PrecisionAtK(retrieved []string, gold GoldSet, k int) float64 {
	if k <= 0 {
		return 0
	}
	topK := dedupePreserveOrder(retrieved, k)
	if len(topK) == 0 {
		return 0
	}
	hits := 0
	for _, id := range topK {
		if gold[id] > 0 {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// RecallAtK is |top-k ∩ gold| / |gold|, and 0 when the gold set is
// empty.
func RecallAtK(retrieved []string, gold GoldSet, k int) float64 {
	if len(gold) == 0 {
		return 0
	}
	hits := 0
	for _, id := range dedupePreserveOrder(retrieved, k) {
		if gold[id] > 0 {
			hits++
		}
	}
	return float64(hits) / float64(len(gold))
}

// MRR is 1 / rank of the first relevant result, and 0 when no relevant
// result appears at any rank.
func MRR(retrieved []string, gold GoldSet) float64 {
	for i, id := range dedupePreserveOrder(retrieved, len(retrieved)) {
		if gold[id] > 0 {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// NDCGAtK is DCG over the top k normalized by the ideal DCG of sorting
// all gold items by grade. It is 1 exactly when the ranking matches the
// ideal gold ordering.
func NDCGAtK(retrieved []string, gold GoldSet, k int) float64 {
	if len(gold) == 0 || k <= 0 {
		return 0
	}

	dcg := 0.0
	for i, id := range dedupePreserveOrder(retrieved, k) {
		if grade := gold[id]; grade > 0 {
			dcg += grade / math.Log2(float64(i+2))
		}
	}

	grades := make([]float64, 0, len(gold))
	for _, grade := range gold {
		grades = append(grades, grade)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(grades)))
	if len(grades) > k {
		grades = grades[:k]
	}

	ideal := 0.0
	for i, grade := range grades {
		ideal += grade / math.Log2(float64(i+2))
	}
	if ideal == 0 {
		return 0
	}
	return dcg / ideal
}

// HitRateAtK is 1 if any of the top k is relevant, else 0. The task
// average of this is the aggregate hit rate.
func HitRateAtK(retrieved []string, gold GoldSet, k int) float64 {
	for _, id := range dedupePreserveOrder(retrieved, k) {
		if gold[id] > 0 {
			return 1
		}
	}
	return 0
}

// dedupePreserveOrder drops repeated ids, keeping first occurrence, and
// truncates to k. A chunk retrieved twice must not count twice.
func dedupePreserveOrder(items []string, k int) []string {
	if k <= 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, item := range items {
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
		if len(out) == k {
			break
		}
	}
	return out
}
