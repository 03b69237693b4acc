package bot

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"care-planner/internal/model"
	"care-planner/internal/reconcile"
	"care-planner/internal/repository"
	"care-planner/internal/service"
	"care-planner/internal/timeofday"
)

// planView renders the plan with the row numbers commands refer to. Rows are
// numbered in stored order, which is the order the row batch addresses.
func planView(plan model.CarePlan, role model.Role, now time.Time) string {
	var builder strings.Builder
	builder.WriteString("📋 <b>Care plan</b>")
	if plan.PatientName != "" {
		builder.WriteString(fmt.Sprintf(" for %s", escape(plan.PatientName)))
	}
	builder.WriteString(fmt.Sprintf("\n🗓 %s · you are the %s", plan.Date, strings.ToLower(string(role))))
	locked := plan.IsPast(now)
	if locked {
		builder.WriteString("\n🔒 This day has passed, the plan is read-only.")
	}

	builder.WriteString("\n\n🕒 <b>Tasks</b>\n")
	if len(plan.Tasks) == 0 {
		builder.WriteString("— no tasks yet\n")
	}
	for i, task := range plan.Tasks {
		builder.WriteString(fmt.Sprintf("%d. %s", i+1, service.FormatTask(task)))
	}

	builder.WriteString("\n❓ <b>Questions</b>\n")
	if len(plan.Questions) == 0 {
		builder.WriteString("— no questions yet\n")
	}
	for i, q := range plan.Questions {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, escape(q.Question)))
		if q.Answered() {
			builder.WriteString(fmt.Sprintf("   ↳ <i>%s</i>\n", escape(q.Answer)))
		}
	}

	var notes []string
	for _, cg := range plan.Caregivers {
		for _, note := range cg.Notes {
			notes = append(notes, fmt.Sprintf("📝 %s: %s", escape(cg.Name), escape(note.Note)))
		}
	}
	if len(notes) > 0 {
		builder.WriteString("\n<b>Notes</b>\n")
		builder.WriteString(strings.Join(notes, "\n"))
		builder.WriteByte('\n')
	}

	if !locked {
		builder.WriteByte('\n')
		if role == model.RoleGuardian {
			builder.WriteString("<i>/addtask 08:15 text · /edittask 2 start=10:40 · /deltask 2 · /ask text · /invite name</i>")
		} else {
			builder.WriteString("<i>Tap a task to tick it · /answer 1 text · /note text</i>")
		}
	}
	return strings.TrimSpace(builder.String())
}

// taskKeyboard offers one tick button per task to caregivers of an open plan.
func taskKeyboard(plan model.CarePlan, role model.Role, now time.Time) *tgbotapi.InlineKeyboardMarkup {
	if role != model.RoleCaregiver || plan.IsPast(now) || len(plan.Tasks) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(plan.Tasks))
	for i, task := range plan.Tasks {
		label := fmt.Sprintf("✅ %d · %s", i+1, shortTitle(task.Content, 24))
		if task.Status {
			label = fmt.Sprintf("↩️ %d · %s", i+1, shortTitle(task.Content, 24))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbDonePrefix+task.ID),
		))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// describeError turns a service error into a message for the chat.
func describeError(err error) string {
	var (
		fieldErr   *reconcile.FieldError
		lockedErr  *reconcile.FieldLockedError
		validErr   *reconcile.ValidationError
		parseErr   *timeofday.ParseError
		rangeErr   *timeofday.InvalidRangeError
		backendErr *service.ExternalServiceError
	)
	switch {
	case errors.As(err, &backendErr):
		if errors.Is(err, service.ErrTranscriptionDisabled) {
			return "🎙 Voice messages are not enabled on this bot."
		}
		return "⚠️ The service is unavailable right now, nothing was changed. Please try again."
	case errors.Is(err, reconcile.ErrPlanLocked):
		return "🔒 This plan's day has passed, it is read-only."
	case errors.As(err, &lockedErr):
		if lockedErr.Role == model.RoleGuardian {
			return fmt.Sprintf("⛔ Only caregivers can %s.", lockedAction(lockedErr.Field))
		}
		return fmt.Sprintf("⛔ Only the guardian can %s.", lockedAction(lockedErr.Field))
	case errors.Is(err, service.ErrForbidden):
		return "⛔ You are not allowed to do that on this plan."
	case errors.Is(err, service.ErrInviteUsed):
		return "This invite code was already used by someone else."
	case errors.Is(err, repository.ErrNotFound):
		return "Not found. It may have been deleted."
	case errors.As(err, &fieldErr):
		where := fmt.Sprintf("Row %d", fieldErr.Row+1)
		if fieldErr.Added {
			where = "New row"
		}
		return fmt.Sprintf("%s, %s: %s. Nothing was changed.", where, escape(strings.ReplaceAll(fieldErr.Field, "_", " ")), escape(fieldErr.Err.Error()))
	case errors.As(err, &validErr), errors.As(err, &parseErr), errors.As(err, &rangeErr):
		return escape(err.Error())
	default:
		return "Something went wrong, please try again."
	}
}

// lockedActions phrases the policy keys of FieldLockedError.
var lockedActions = map[string]string{
	"add":        "add rows",
	"delete":     "delete rows",
	"content":    "edit task text",
	"status":     "tick tasks",
	"start_time": "change start times",
	"end_time":   "change end times",
	"question":   "edit questions",
	"answer":     "answer questions",
}

func lockedAction(field string) string {
	if action, ok := lockedActions[field]; ok {
		return action
	}
	return "change " + escape(strings.ReplaceAll(field, "_", " "))
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}
