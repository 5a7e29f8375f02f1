package metrics

import (
	"os"

	"gopkg.in/yaml.v3"

	apperrors "github.com/patchrag/patchrag/internal/errors"
)

// GoldEntry is one relevance judgment. In YAML it is either a bare id
// string (grade 1) or a mapping with an explicit grade:
//
//	relevant:
//	  - src/systems/input.ts:1
//	  - id: src/core/gameState.ts:40
//	    grade: 2
type GoldEntry struct {
	ID    string  `yaml:"id"`
	Grade float64 `yaml:"grade"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (e *GoldEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		e.ID = node.Value
		e.Grade = 1
		return nil
	}
	type rawEntry GoldEntry
	var raw rawEntry
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*e = GoldEntry(raw)
	if e.Grade == 0 {
		e.Grade = 1
	}
	return nil
}

// GoldTask holds the query and relevance judgments for one evaluation
// task.
type GoldTask struct {
	Query    string      `yaml:"query"`
	Relevant []GoldEntry `yaml:"relevant"`
}

// GoldLabels maps task id to its judgments. Consumed read-only by the
// evaluator.
type GoldLabels struct {
	Tasks map[string]GoldTask `yaml:"tasks"`
}

// LoadGoldLabels reads and validates a gold label file.
func LoadGoldLabels(path string) (*GoldLabels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCodeGoldInvalid, err, "read gold labels %s", path)
	}
	return ParseGoldLabels(data)
}

// ParseGoldLabels decodes gold labels from YAML.
func ParseGoldLabels(data []byte) (*GoldLabels, error) {
	var labels GoldLabels
	if err := yaml.Unmarshal(data, &labels); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCodeGoldInvalid, err, "parse gold labels")
	}
	for taskID, task := range labels.Tasks {
		for _, entry := range task.Relevant {
			if entry.ID == "" {
				return nil, apperrors.New(apperrors.ErrCodeGoldInvalid,
					"gold entry with empty id in task "+taskID, nil)
			}
			if entry.Grade < 0 {
				return nil, apperrors.New(apperrors.ErrCodeGoldInvalid,
					"negative relevance grade in task "+taskID, nil)
			}
		}
	}
	return &labels, nil
}

// GoldSetFor returns the task's judgments as a GoldSet. A task with no
// judgments returns an empty set, never nil lookup errors; the metric
// functions define that case as zero.
func (g *GoldLabels) GoldSetFor(taskID string) GoldSet {
	set := make(GoldSet)
	task, ok := g.Tasks[taskID]
	if !ok {
		return set
	}
	for _, entry := range task.Relevant {
		if entry.Grade > set[entry.ID] {
			set[entry.ID] = entry.Grade
		}
	}
	return set
}
