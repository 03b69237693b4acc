package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-planner/internal/reconcile"
)

func TestParseAddTask(t *testing.T) {
	tests := []struct {
		name string
		args string
		want reconcile.RowAdd
	}{
		{name: "start only", args: "08:15 Give medication", want: reconcile.RowAdd{Content: "Give medication", StartTime: "08:15"}},
		{name: "range", args: "08:00-09:30 Morning walk", want: reconcile.RowAdd{Content: "Morning walk", StartTime: "08:00", EndTime: "09:30"}},
		{name: "untimed", args: "Call the pharmacy", want: reconcile.RowAdd{Content: "Call the pharmacy"}},
		{name: "malformed time passes through", args: "25:99 Lunch", want: reconcile.RowAdd{Content: "Lunch", StartTime: "25:99"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAddTask(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseAddTask("08:15")
	assert.ErrorIs(t, err, errNoContent)
	_, err = parseAddTask("  ")
	assert.ErrorIs(t, err, errNoContent)
}

func TestParseEditTask(t *testing.T) {
	batch, err := parseEditTask("2 start=10:40")
	require.NoError(t, err)
	require.Contains(t, batch.EditedRows, 1)
	edit := batch.EditedRows[1]
	require.NotNil(t, edit.StartTime)
	assert.Equal(t, "10:40", *edit.StartTime)
	assert.Nil(t, edit.EndTime)
	assert.Nil(t, edit.Content)

	batch, err = parseEditTask("1 content=Give meds with food end=09:00")
	require.NoError(t, err)
	edit = batch.EditedRows[0]
	require.NotNil(t, edit.Content)
	assert.Equal(t, "Give meds with food", *edit.Content)
	assert.Equal(t, "09:00", *edit.EndTime)

	batch, err = parseEditTask("3 end=")
	require.NoError(t, err)
	edit = batch.EditedRows[2]
	require.NotNil(t, edit.EndTime)
	assert.Equal(t, "", *edit.EndTime)

	_, err = parseEditTask("2")
	assert.Error(t, err)
	_, err = parseEditTask("0 start=10:00")
	assert.Error(t, err)
	_, err = parseEditTask("2 colour=red")
	assert.Error(t, err)
}

func TestParseRowNumbers(t *testing.T) {
	rows, err := parseRowNumbers([]string{"3", "1,", "3"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 2}, rows)

	_, err = parseRowNumbers(nil)
	assert.ErrorIs(t, err, errNoRows)
	_, err = parseRowNumbers([]string{"two"})
	assert.Error(t, err)
}

func TestParseAnswer(t *testing.T) {
	row, text, err := parseAnswer("2 Yes, after lunch")
	require.NoError(t, err)
	assert.Equal(t, 1, row)
	assert.Equal(t, "Yes, after lunch", text)

	row, text, err = parseAnswer("1")
	require.NoError(t, err)
	assert.Equal(t, 0, row)
	assert.Empty(t, text)

	_, _, err = parseAnswer("")
	assert.Error(t, err)
}

func TestStatusBatch(t *testing.T) {
	batch := statusBatch(4, true)
	require.Contains(t, batch.EditedRows, 4)
	assert.True(t, *batch.EditedRows[4].Status)
}

func TestCheckRows(t *testing.T) {
	assert.NoError(t, checkRows([]int{0, 2}, 3))
	assert.EqualError(t, checkRows([]int{3}, 3), "there is no row 4, the list has 3")
	assert.EqualError(t, checkRows([]int{0}, 0), "the list is empty")
}
