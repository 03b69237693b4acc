package bot

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-planner/internal/model"
	"care-planner/internal/reconcile"
	"care-planner/internal/repository"
	"care-planner/internal/service"
	"care-planner/internal/timeofday"
)

func samplePlan() model.CarePlan {
	eight := timeofday.MustNew(8, 0)
	half := timeofday.MustNew(8, 30)
	noon := timeofday.MustNew(12, 0)
	uid := uint(2)
	return model.CarePlan{
		ID:          "p1",
		GuardianID:  1,
		Date:        "2026-05-04",
		PatientName: "Rose <3",
		Tasks: []model.Task{
			{ID: "t-noon", Content: "Lunch", StartTime: &noon},
			{ID: "t-eight", Content: "Give medication", StartTime: &eight, EndTime: &half, Status: true},
		},
		Questions: []model.Question{
			{ID: "q1", Question: "Did she sleep?", Answer: "Yes"},
			{ID: "q2", Question: "Any pain?"},
		},
		Caregivers: []model.Caregiver{
			{Name: "Carl", UserID: &uid, Status: model.CaregiverAccepted, Notes: []model.CaregiverNote{{Note: "Ate well"}}},
		},
	}
}

func TestPlanView_NumbersRowsInStoredOrder(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	view := planView(samplePlan(), model.RoleGuardian, now)

	lunch := strings.Index(view, "1. ⬜ 12:00 Lunch")
	meds := strings.Index(view, "2. ✅ 08:00–08:30 Give medication")
	require.NotEqual(t, -1, lunch, view)
	require.NotEqual(t, -1, meds, view)
	assert.Less(t, lunch, meds)

	assert.Contains(t, view, "Rose &lt;3")
	assert.Contains(t, view, "2. Any pain?")
	assert.Contains(t, view, "↳ <i>Yes</i>")
	assert.Contains(t, view, "📝 Carl: Ate well")
	assert.Contains(t, view, "/addtask")
	assert.NotContains(t, view, "read-only")
}

func TestPlanView_PastPlan(t *testing.T) {
	now := time.Date(2026, 5, 5, 9, 0, 0, 0, time.UTC)
	view := planView(samplePlan(), model.RoleCaregiver, now)
	assert.Contains(t, view, "read-only")
	assert.NotContains(t, view, "/answer")
}

func TestTaskKeyboard(t *testing.T) {
	plan := samplePlan()
	today := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	assert.Nil(t, taskKeyboard(plan, model.RoleGuardian, today))
	assert.Nil(t, taskKeyboard(plan, model.RoleCaregiver, today.AddDate(0, 0, 1)))

	markup := taskKeyboard(plan, model.RoleCaregiver, today)
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 2)
	first := markup.InlineKeyboard[0][0]
	require.NotNil(t, first.CallbackData)
	assert.Equal(t, cbDonePrefix+"t-noon", *first.CallbackData)
	assert.True(t, strings.HasPrefix(markup.InlineKeyboard[1][0].Text, "↩️ 2"))
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"locked plan", reconcile.ErrPlanLocked, "read-only"},
		{"caregiver content", &reconcile.FieldLockedError{Role: model.RoleCaregiver, Field: "content"}, "Only the guardian can edit task text."},
		{"guardian status", &reconcile.FieldLockedError{Role: model.RoleGuardian, Field: "status"}, "Only caregivers can tick tasks."},
		{"caregiver add", &reconcile.FieldLockedError{Role: model.RoleCaregiver, Field: "add"}, "Only the guardian can add rows."},
		{"caregiver delete", &reconcile.FieldLockedError{Role: model.RoleCaregiver, Field: "delete"}, "Only the guardian can delete rows."},
		{"caregiver start", &reconcile.FieldLockedError{Role: model.RoleCaregiver, Field: "start_time"}, "Only the guardian can change start times."},
		{"guardian answer", &reconcile.FieldLockedError{Role: model.RoleGuardian, Field: "answer"}, "Only caregivers can answer questions."},
		{"unknown key", &reconcile.FieldLockedError{Role: model.RoleCaregiver, Field: "due_date"}, "Only the guardian can change due date."},
		{"field", &reconcile.FieldError{Row: 1, Field: "start_time", Err: &timeofday.ParseError{Value: "25:99"}}, "Row 2, start time"},
		{"added field", &reconcile.FieldError{Row: 0, Added: true, Field: "content", Err: errors.New("content is required")}, "New row, content"},
		{"backend", &service.ExternalServiceError{Op: "update", Err: errors.New("disk")}, "try again"},
		{"voice off", &service.ExternalServiceError{Op: "transcribe", Err: service.ErrTranscriptionDisabled}, "not enabled"},
		{"not found", fmt.Errorf("load: %w", repository.ErrNotFound), "Not found"},
		{"forbidden", service.ErrForbidden, "not allowed"},
		{"other", errors.New("boom"), "Something went wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, describeError(tt.err), tt.want)
		})
	}
}

func TestShortTitle(t *testing.T) {
	assert.Equal(t, "Walk", shortTitle(" Walk ", 10))
	assert.Equal(t, "Give me…", shortTitle("Give medication", 8))
}
