package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"care-planner/internal/model"
	"care-planner/internal/repository"
	"care-planner/internal/timeofday"
)

// Notification is a message addressed to one user about one plan.
type Notification struct {
	UserID uint
	PlanID string
	Text   string
}

// ReminderService builds human-readable summaries for caregiver notifications.
type ReminderService struct {
	planRepo      *repository.CarePlanRepository
	caregiverRepo *repository.CaregiverRepository
}

func NewReminderService(planRepo *repository.CarePlanRepository, caregiverRepo *repository.CaregiverRepository) *ReminderService {
	return &ReminderService{planRepo: planRepo, caregiverRepo: caregiverRepo}
}

// Digests returns today's plan summary for every accepted caregiver.
func (s *ReminderService) Digests(ctx context.Context, now time.Time) ([]Notification, error) {
	plans, caregivers, err := s.todays(ctx, now)
	if err != nil {
		return nil, err
	}
	var out []Notification
	for _, cg := range caregivers {
		plan, ok := plans[cg.CarePlanID]
		if !ok || cg.UserID == nil {
			continue
		}
		out = append(out, Notification{UserID: *cg.UserID, PlanID: plan.ID, Text: PlanSummary(plan, now)})
	}
	return out, nil
}

// Reminders returns a reminder for every accepted caregiver of a plan with
// open tasks starting within lead of now.
func (s *ReminderService) Reminders(ctx context.Context, now time.Time, lead time.Duration) ([]Notification, error) {
	plans, caregivers, err := s.todays(ctx, now)
	if err != nil {
		return nil, err
	}
	var out []Notification
	for _, cg := range caregivers {
		plan, ok := plans[cg.CarePlanID]
		if !ok || cg.UserID == nil {
			continue
		}
		upcoming := UpcomingTasks(plan, now, lead)
		if len(upcoming) == 0 {
			continue
		}
		out = append(out, Notification{UserID: *cg.UserID, PlanID: plan.ID, Text: formatReminder(plan, upcoming)})
	}
	return out, nil
}

func (s *ReminderService) todays(ctx context.Context, now time.Time) (map[string]model.CarePlan, []model.Caregiver, error) {
	date := now.Format(model.DateLayout)
	list, err := s.planRepo.ListByDate(ctx, date)
	if err != nil {
		return nil, nil, fmt.Errorf("list plans for %s: %w", date, err)
	}
	caregivers, err := s.caregiverRepo.ListAcceptedForDate(ctx, date)
	if err != nil {
		return nil, nil, fmt.Errorf("list caregivers for %s: %w", date, err)
	}
	plans := make(map[string]model.CarePlan, len(list))
	for _, plan := range list {
		plans[plan.ID] = plan
	}
	return plans, caregivers, nil
}

// PlanSummary renders the plan as Telegram HTML: tasks by start time,
// unanswered questions and caregiver notes.
func PlanSummary(plan model.CarePlan, now time.Time) string {
	var builder strings.Builder
	builder.WriteString("📋 <b>Care plan</b>")
	if plan.PatientName != "" {
		builder.WriteString(fmt.Sprintf(" for %s", html.EscapeString(plan.PatientName)))
	}
	builder.WriteString(fmt.Sprintf("\n🗓 %s", plan.Date))
	if plan.IsPast(now) {
		builder.WriteString(" · 🔒 read-only")
	}
	builder.WriteString("\n\n")

	builder.WriteString("🕒 <b>Tasks</b>\n")
	tasks := SortedTasks(plan.Tasks)
	if len(tasks) == 0 {
		builder.WriteString("— no tasks yet\n")
	}
	for _, task := range tasks {
		builder.WriteString(FormatTask(task))
	}

	var open []model.Question
	for _, q := range plan.Questions {
		if !q.Answered() {
			open = append(open, q)
		}
	}
	builder.WriteString("\n❓ <b>Open questions</b>\n")
	if len(open) == 0 {
		builder.WriteString("— none\n")
	}
	for _, q := range open {
		builder.WriteString(fmt.Sprintf("• %s\n", html.EscapeString(q.Question)))
	}

	var notes []string
	for _, cg := range plan.Caregivers {
		for _, note := range cg.Notes {
			notes = append(notes, fmt.Sprintf("📝 %s: %s\n", html.EscapeString(cg.Name), html.EscapeString(note.Note)))
		}
	}
	if len(notes) > 0 {
		builder.WriteString("\n<b>Notes</b>\n")
		builder.WriteString(strings.Join(notes, ""))
	}

	return strings.TrimSpace(builder.String())
}

// UpcomingTasks returns open tasks of a plan dated today whose start falls in
// [now, now+lead).
func UpcomingTasks(plan model.CarePlan, now time.Time, lead time.Duration) []model.Task {
	if plan.Date != now.Format(model.DateLayout) {
		return nil
	}
	from := timeofday.FromClock(now).Minutes()
	to := from + int(lead/time.Minute)

	var upcoming []model.Task
	for _, task := range SortedTasks(plan.Tasks) {
		if task.Status || task.StartTime == nil {
			continue
		}
		if m := task.StartTime.Minutes(); m >= from && m < to {
			upcoming = append(upcoming, task)
		}
	}
	return upcoming
}

// SortedTasks orders tasks by start time; untimed tasks keep their order and
// go last.
func SortedTasks(tasks []model.Task) []model.Task {
	sorted := append([]model.Task(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].StartTime, sorted[j].StartTime
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return sorted
}

// FormatTask renders one task line.
func FormatTask(task model.Task) string {
	icon := "⬜"
	if task.Status {
		icon = "✅"
	}
	var when string
	switch {
	case task.StartTime != nil && task.EndTime != nil:
		when = fmt.Sprintf("%s–%s ", task.StartTime.Short(), task.EndTime.Short())
	case task.StartTime != nil:
		when = task.StartTime.Short() + " "
	case task.EndTime != nil:
		when = "until " + task.EndTime.Short() + " "
	}
	return fmt.Sprintf("%s %s%s\n", icon, when, html.EscapeString(strings.TrimSpace(task.Content)))
}

func formatReminder(plan model.CarePlan, tasks []model.Task) string {
	var sb strings.Builder
	sb.WriteString("⏰ <b>Coming up</b>")
	if plan.PatientName != "" {
		sb.WriteString(fmt.Sprintf(" for %s", html.EscapeString(plan.PatientName)))
	}
	sb.WriteByte('\n')
	for _, task := range tasks {
		sb.WriteString(FormatTask(task))
	}
	return strings.TrimSpace(sb.String())
}
