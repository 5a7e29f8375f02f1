package metrics

import "sort"

// TaskMetrics holds the metric values for a single task at one cutoff.
type TaskMetrics struct {
	TaskID    string  `json:"task_id"`
	K         int     `json:"k"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	MRR       float64 `json:"mrr"`
	NDCG      float64 `json:"ndcg"`
	HitRate   float64 `json:"hit_rate"`
	Retrieved int     `json:"retrieved"`
	GoldSize  int     `json:"gold_size"`
}

// Report is one evaluation run: per-task metrics plus equal-weight
// averages. Immutable once built.
type Report struct {
	K         int           `json:"k"`
	TaskCount int           `json:"task_count"`
	Tasks     []TaskMetrics `json:"tasks"`
	Aggregate TaskMetrics   `json:"aggregate"`
}

// EvaluateTask scores one ranked list against one gold set.
func EvaluateTask(taskID string, retrieved []string, gold GoldSet, k int) TaskMetrics {
	return TaskMetrics{
		TaskID:    taskID,
		K:         k,
		Precision: PrecisionAtK(retrieved, gold, k),
		Recall:    RecallAtK(retrieved, gold, k),
		MRR:       MRR(retrieved, gold),
		NDCG:      NDCGAtK(retrieved, gold, k),
		HitRate:   HitRateAtK(retrieved, gold, k),
		Retrieved: len(retrieved),
		GoldSize:  len(gold),
	}
}

// Evaluate scores every task's ranked list against the gold labels and
// aggregates with equal task weight. Tasks without gold judgments score
// zero rather than erroring, so partially labeled runs stay computable.
func Evaluate(results map[string][]string, labels *GoldLabels, k int) *Report {
	taskIDs := make([]string, 0, len(results))
	for taskID := range results {
		taskIDs = append(taskIDs, taskID)
	}
	sort.Strings(taskIDs)

	report := &Report{K: k, TaskCount: len(taskIDs)}
	for _, taskID := range taskIDs {
		gold := labels.GoldSetFor(taskID)
		tm := EvaluateTask(taskID, results[taskID], gold, k)
		report.Tasks = append(report.Tasks, tm)

		report.Aggregate.Precision += tm.Precision
		report.Aggregate.Recall += tm.Recall
		report.Aggregate.MRR += tm.MRR
		report.Aggregate.NDCG += tm.NDCG
		report.Aggregate.HitRate += tm.HitRate
	}

	if n := float64(len(taskIDs)); n > 0 {
		report.Aggregate.Precision /= n
		report.Aggregate.Recall /= n
		report.Aggregate.MRR /= n
		report.Aggregate.NDCG /= n
		report.Aggregate.HitRate /= n
	}
	report.Aggregate.TaskID = "aggregate"
	report.Aggregate.K = k
	return report
}
