package reconcile

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-planner/internal/model"
)

func threeTasks() []model.Task {
	return []model.Task{
		task("a", "Breakfast", "08:00", "08:30"),
		task("b", "Walk", "09:00", "09:45"),
		task("c", "Lunch", "12:00", "12:30"),
	}
}

func TestTranslateTasks_DeleteOrderDoesNotMatter(t *testing.T) {
	r := newTestReconciler()
	for _, rows := range [][]int{{0, 2}, {2, 0}, {2, 0, 2}} {
		changes, err := TranslateTasks(threeTasks(), RowBatch{DeletedRows: rows})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a"}, changes.Deleted, "rows %v", rows)

		got, err := r.Tasks(threeTasks(), changes)
		require.NoError(t, err)
		require.Len(t, got, 1, "rows %v", rows)
		assert.Equal(t, "b", got[0].ID)
	}
}

func TestTranslateTasks_EditsAddressTheRenderedRows(t *testing.T) {
	batch := RowBatch{
		DeletedRows: []int{0},
		EditedRows:  map[int]RowEdit{2: {Status: boolp(true)}},
	}
	changes, err := TranslateTasks(threeTasks(), batch)
	require.NoError(t, err)

	got, err := newTestReconciler().Tasks(threeTasks(), changes)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[0].Status)
	assert.Equal(t, "c", got[1].ID)
	assert.True(t, got[1].Status)
}

func TestTranslateTasks_EmptyStateEditBecomesAppend(t *testing.T) {
	batch := RowBatch{EditedRows: map[int]RowEdit{0: {Content: str("Give medication")}}}
	changes, err := TranslateTasks(nil, batch)
	require.NoError(t, err)
	assert.Empty(t, changes.Edited)
	require.Len(t, changes.Added, 1)

	got, err := newTestReconciler().Tasks(nil, changes)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Give medication", got[0].Content)
}

func TestTranslateTasks_EmptyStateIgnoresNonContentEdits(t *testing.T) {
	changes, err := TranslateTasks(nil, RowBatch{
		EditedRows:  map[int]RowEdit{0: {Status: boolp(true)}},
		DeletedRows: []int{0},
	})
	require.NoError(t, err)
	assert.Empty(t, changes.Added)
	assert.Empty(t, changes.Deleted)
}

func TestTranslateTasks_OutOfRange(t *testing.T) {
	for _, batch := range []RowBatch{
		{DeletedRows: []int{3}},
		{DeletedRows: []int{-1}},
		{EditedRows: map[int]RowEdit{5: {Status: boolp(true)}}},
	} {
		_, err := TranslateTasks(threeTasks(), batch)
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr), "batch %+v", batch)
	}

	_, err := TranslateTasks(nil, RowBatch{EditedRows: map[int]RowEdit{1: {Content: str("x")}}})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestTranslateQuestions(t *testing.T) {
	current := []model.Question{{ID: "q1", Question: "Eat?"}, {ID: "q2", Question: "Sleep?"}}

	changes, err := TranslateQuestions(current, RowBatch{
		DeletedRows: []int{1},
		EditedRows:  map[int]RowEdit{0: {Answer: str("yes")}},
		AddedRows:   []RowAdd{{Question: "Pain?"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"q2"}, changes.Deleted)
	assert.Equal(t, "yes", *changes.Edited["q1"].Answer)
	assert.Equal(t, []NewQuestion{{Question: "Pain?"}}, changes.Added)

	empty, err := TranslateQuestions(nil, RowBatch{EditedRows: map[int]RowEdit{0: {Question: str("First?")}}})
	require.NoError(t, err)
	assert.Equal(t, []NewQuestion{{Question: "First?"}}, empty.Added)
}

func TestRowBatch_DecodesWireShape(t *testing.T) {
	raw := `{
		"deleted_rows": [2, 0],
		"edited_rows": {"1": {"start_time": "10:40:00", "status": true}},
		"added_rows": [{"content": "Give medication", "start_time": "08:15:00"}]
	}`
	var batch RowBatch
	require.NoError(t, json.Unmarshal([]byte(raw), &batch))

	assert.Equal(t, []int{2, 0}, batch.DeletedRows)
	require.Contains(t, batch.EditedRows, 1)
	assert.Equal(t, "10:40:00", *batch.EditedRows[1].StartTime)
	assert.True(t, *batch.EditedRows[1].Status)
	assert.Nil(t, batch.EditedRows[1].Content)
	assert.Equal(t, []RowAdd{{Content: "Give medication", StartTime: "08:15:00"}}, batch.AddedRows)
	assert.False(t, batch.Empty())
	assert.True(t, RowBatch{}.Empty())
}
