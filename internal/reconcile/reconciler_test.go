package reconcile

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-planner/internal/model"
	"care-planner/internal/timeofday"
)

var fixedNow = time.Date(2026, 5, 4, 9, 12, 0, 0, time.UTC)

func newTestReconciler() *Reconciler {
	n := 0
	return New(
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("new-%d", n)
		}),
	)
}

func tod(s string) *timeofday.Time {
	t, err := timeofday.Parse(s)
	if err != nil {
		panic(err)
	}
	return &t
}

func str(s string) *string { return &s }
func boolp(b bool) *bool   { return &b }

func task(id, content, start, end string) model.Task {
	t := model.Task{ID: id, Content: content}
	if start != "" {
		t.StartTime = tod(start)
	}
	if end != "" {
		t.EndTime = tod(end)
	}
	return t
}

func TestTasks_AddSnapsStartAndImpliesEnd(t *testing.T) {
	r := newTestReconciler()

	got, err := r.Tasks(nil, TaskChanges{Added: []NewTask{{Content: "Give medication", StartTime: "08:15:00"}}})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "new-1", got[0].ID)
	assert.Equal(t, "Give medication", got[0].Content)
	assert.Equal(t, "08:00:00", got[0].StartTime.String())
	assert.Equal(t, "08:30:00", got[0].EndTime.String())
	assert.False(t, got[0].Status)
	assert.Equal(t, fixedNow, got[0].UpdatedAt)
}

func TestTasks_EditStartPreservesDuration(t *testing.T) {
	r := newTestReconciler()
	current := []model.Task{task("a", "Walk", "09:00", "09:45")}

	got, err := r.Tasks(current, TaskChanges{Edited: map[string]TaskPatch{"a": {StartTime: str("10:40:00")}}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "10:30:00", got[0].StartTime.String())
	assert.Equal(t, "11:15:00", got[0].EndTime.String())
	assert.Equal(t, fixedNow, got[0].UpdatedAt)
}

func TestTasks_EditStartWithoutEndDefaultsToHalfHour(t *testing.T) {
	r := newTestReconciler()
	current := []model.Task{task("a", "Lunch", "", "")}

	got, err := r.Tasks(current, TaskChanges{Edited: map[string]TaskPatch{"a": {StartTime: str("12:10")}}})
	require.NoError(t, err)
	assert.Equal(t, "12:00:00", got[0].StartTime.String())
	assert.Equal(t, "12:30:00", got[0].EndTime.String())
}

func TestTasks_ExplicitEndOverridesPreservedDuration(t *testing.T) {
	r := newTestReconciler()
	current := []model.Task{task("a", "Walk", "09:00", "09:45")}

	got, err := r.Tasks(current, TaskChanges{Edited: map[string]TaskPatch{
		"a": {StartTime: str("10:00:00"), EndTime: str("12:00:00")},
	}})
	require.NoError(t, err)
	assert.Equal(t, "10:00:00", got[0].StartTime.String())
	assert.Equal(t, "12:00:00", got[0].EndTime.String())
}

func TestTasks_DerivedEndClampsAtEndOfDay(t *testing.T) {
	r := newTestReconciler()
	current := []model.Task{task("a", "Bedtime", "20:00", "22:00")}

	got, err := r.Tasks(current, TaskChanges{Edited: map[string]TaskPatch{"a": {StartTime: str("23:15")}}})
	require.NoError(t, err)
	assert.Equal(t, "23:00:00", got[0].StartTime.String())
	assert.Equal(t, "23:59:00", got[0].EndTime.String())
}

func TestTasks_EndNotAfterStart(t *testing.T) {
	r := newTestReconciler()
	current := []model.Task{task("a", "Walk", "09:00", "09:45")}

	_, err := r.Tasks(current, TaskChanges{Edited: map[string]TaskPatch{"a": {EndTime: str("08:30")}}})
	var rangeErr *timeofday.InvalidRangeError
	require.True(t, errors.As(err, &rangeErr), "error = %v", err)

	var fieldErr *FieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "end_time", fieldErr.Field)
	assert.Equal(t, 0, fieldErr.Row)
}

func TestTasks_StatusAndContentEdits(t *testing.T) {
	r := newTestReconciler()
	current := []model.Task{task("a", "Walk", "09:00", "09:45"), task("b", "Read", "", "")}

	got, err := r.Tasks(current, TaskChanges{Edited: map[string]TaskPatch{
		"a": {Status: boolp(true)},
		"b": {Content: str("  Read a chapter ")},
	}})
	require.NoError(t, err)
	assert.True(t, got[0].Status)
	assert.Equal(t, "09:00:00", got[0].StartTime.String(), "status edits leave times alone")
	assert.Equal(t, "Read a chapter", got[1].Content)
	assert.Equal(t, fixedNow, got[1].UpdatedAt)
}

func TestTasks_EmptyContentEditIsValidationError(t *testing.T) {
	r := newTestReconciler()
	current := []model.Task{task("a", "Walk", "", "")}

	_, err := r.Tasks(current, TaskChanges{Edited: map[string]TaskPatch{"a": {Content: str("   ")}}})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "error = %v", err)
}

func TestTasks_AddDropsBlankContent(t *testing.T) {
	r := newTestReconciler()
	current := []model.Task{task("a", "Walk", "", "")}

	got, err := r.Tasks(current, TaskChanges{Added: []NewTask{
		{Content: ""},
		{Content: "   \t", StartTime: "not a time"},
	}})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestTasks_MalformedTimeIsAtomic(t *testing.T) {
	r := newTestReconciler()
	current := []model.Task{task("a", "Walk", "09:00", "09:45"), task("b", "Read", "", "")}
	before := append([]model.Task(nil), current...)

	got, err := r.Tasks(current, TaskChanges{
		Deleted: []string{"a"},
		Edited:  map[string]TaskPatch{"b": {StartTime: str("25:99")}},
		Added:   []NewTask{{Content: "Nap"}},
	})
	require.Error(t, err)
	assert.Nil(t, got)

	var perr *timeofday.ParseError
	require.True(t, errors.As(err, &perr))
	var ferr *FieldError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, "start_time", ferr.Field)
	assert.Equal(t, 1, ferr.Row)
	assert.Equal(t, before, current)
}

func TestTasks_MalformedAddedTime(t *testing.T) {
	r := newTestReconciler()

	_, err := r.Tasks(nil, TaskChanges{Added: []NewTask{{Content: "Nap", EndTime: "half past"}}})
	var ferr *FieldError
	require.True(t, errors.As(err, &ferr))
	assert.True(t, ferr.Added)
	assert.Equal(t, "end_time", ferr.Field)
}

func TestTasks_DeleteWinsOverEdit(t *testing.T) {
	r := newTestReconciler()
	current := []model.Task{task("a", "Walk", "", ""), task("b", "Read", "", "")}

	got, err := r.Tasks(current, TaskChanges{
		Deleted: []string{"a"},
		Edited:  map[string]TaskPatch{"a": {Content: str("")}},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func TestTasks_UnknownID(t *testing.T) {
	r := newTestReconciler()

	_, err := r.Tasks([]model.Task{task("a", "Walk", "", "")}, TaskChanges{Deleted: []string{"zzz"}})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestQuestions(t *testing.T) {
	r := newTestReconciler()
	current := []model.Question{
		{ID: "q1", Question: "Did she eat?"},
		{ID: "q2", Question: "Any pain?", Answer: "No"},
	}

	got, err := r.Questions(current, QuestionChanges{
		Deleted: []string{"q2"},
		Edited:  map[string]QuestionPatch{"q1": {Answer: str("Yes, all of it")}},
		Added:   []NewQuestion{{Question: " "}, {Question: "Bedtime?"}},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Yes, all of it", got[0].Answer)
	assert.Equal(t, fixedNow, got[0].UpdatedAt)
	assert.Equal(t, model.Question{ID: "new-1", Question: "Bedtime?", UpdatedAt: fixedNow}, got[1])

	_, err = r.Questions(current, QuestionChanges{Edited: map[string]QuestionPatch{"q1": {Question: str("")}}})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}
