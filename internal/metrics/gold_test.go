package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/patchrag/patchrag/internal/errors"
)

func TestParseGoldLabelsScalarAndMappingEntries(t *testing.T) {
	// Given a file mixing bare ids and graded mappings
	data := []byte(`
tasks:
  task_01:
    query: "toggle pause on escape"
    relevant:
      - src/systems/input.ts:1
      - id: src/core/gameState.ts:40
        grade: 2
  task_02:
    query: "score combo"
    relevant: []
`)

	// When parsing
	labels, err := ParseGoldLabels(data)
	require.NoError(t, err)

	// Then scalar entries default to grade 1
	gold := labels.GoldSetFor("task_01")
	assert.Equal(t, 1.0, gold["src/systems/input.ts:1"])
	assert.Equal(t, 2.0, gold["src/core/gameState.ts:40"])
	assert.Equal(t, "toggle pause on escape", labels.Tasks["task_01"].Query)

	assert.Empty(t, labels.GoldSetFor("task_02"))
	assert.Empty(t, labels.GoldSetFor("no_such_task"))
}

func TestParseGoldLabelsRejectsEmptyID(t *testing.T) {
	data := []byte(`
tasks:
  task_01:
    relevant:
      - grade: 2
`)

	_, err := ParseGoldLabels(data)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeGoldInvalid, apperrors.GetCode(err))
}

func TestParseGoldLabelsRejectsNegativeGrade(t *testing.T) {
	data := []byte(`
tasks:
  task_01:
    relevant:
      - id: game.go:1
        grade: -1
`)

	_, err := ParseGoldLabels(data)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeGoldInvalid, apperrors.GetCode(err))
}

func TestParseGoldLabelsRejectsMalformedYAML(t *testing.T) {
	_, err := ParseGoldLabels([]byte("tasks: [not: a: mapping"))

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeGoldInvalid, apperrors.GetCode(err))
}

func TestGoldSetForKeepsHighestGradeOnDuplicate(t *testing.T) {
	labels := &GoldLabels{Tasks: map[string]GoldTask{
		"t": {Relevant: []GoldEntry{
			{ID: "a", Grade: 1},
			{ID: "a", Grade: 3},
		}},
	}}

	assert.Equal(t, 3.0, labels.GoldSetFor("t")["a"])
}
