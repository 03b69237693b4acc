package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"care-planner/internal/model"
	"care-planner/internal/reconcile"
	"care-planner/internal/repository"
	"care-planner/internal/service"
)

const (
	cbOpenPrefix       = "open:"
	cbDonePrefix       = "done:"
	cbDeletePlanPrefix = "delplan:"
	cbCancelPrefix     = "cancel:"
)

const (
	menuLabelPlans = "📋 My plans"
	menuLabelToday = "🗓 Current plan"
	menuLabelHelp  = "ℹ️ Help"
)

const maxVoiceBytes = 20 << 20

// pendingAnswer is a question waiting for a voice answer.
type pendingAnswer struct {
	planID     string
	questionID string
}

// Bot aggregates Telegram API with services. Each chat has one active care
// plan that row commands apply to.
type Bot struct {
	api        *tgbotapi.BotAPI
	users      *repository.UserRepository
	plans      *service.CarePlanService
	caregivers *service.CaregiverService
	reminders  *service.ReminderService
	log        *zap.SugaredLogger
	httpClient *http.Client
	lead       time.Duration

	active        map[int64]string
	answers       map[int64]pendingAnswer
	confirmations map[int64]string
	mu            sync.Mutex
}

// New connects to Telegram. lead is how far ahead task reminders look.
func New(token string, users *repository.UserRepository, plans *service.CarePlanService, caregivers *service.CaregiverService, reminders *service.ReminderService, lead time.Duration, log *zap.SugaredLogger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Infow("bot authorized", "account", api.Self.UserName)

	return &Bot{
		api:           api,
		users:         users,
		plans:         plans,
		caregivers:    caregivers,
		reminders:     reminders,
		log:           log,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		lead:          lead,
		active:        make(map[int64]string),
		answers:       make(map[int64]pendingAnswer),
		confirmations: make(map[int64]string),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Infow("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Errorw("handle callback", "error", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Errorw("handle message", "chat_id", update.Message.Chat.ID, "error", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		b.log.Infow("command", "from", msg.From.ID, "command", msg.Command(), "args", msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if msg.Voice != nil || msg.Audio != nil {
		return b.handleVoice(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	if pending, ok := b.getAnswer(msg.From.ID); ok && strings.TrimSpace(msg.Text) != "" {
		b.clearAnswer(msg.From.ID)
		return b.answerQuestion(ctx, msg, pending, strings.TrimSpace(msg.Text))
	}

	return b.sendText(msg.Chat.ID, "I did not understand that. Send /help for the list of commands.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "newplan":
		return b.handleNewPlan(ctx, msg, args)
	case "plans":
		return b.handlePlans(ctx, msg)
	case "open":
		return b.handleOpen(ctx, msg, args)
	case "plan":
		return b.handleShowPlan(ctx, msg)
	case "addtask":
		return b.handleAddTask(ctx, msg, args)
	case "edittask":
		return b.handleEditTask(ctx, msg, args)
	case "deltask":
		return b.handleDeleteTasks(ctx, msg, args)
	case "done":
		return b.handleDone(ctx, msg, args)
	case "ask":
		return b.handleAsk(ctx, msg, args)
	case "delquestion":
		return b.handleDeleteQuestions(ctx, msg, args)
	case "answer":
		return b.handleAnswer(ctx, msg, args)
	case "invite":
		return b.handleInvite(ctx, msg, args)
	case "accept":
		return b.handleAccept(ctx, msg, args)
	case "note":
		return b.handleNote(ctx, msg, args)
	case "deleteplan":
		return b.handleDeletePlan(ctx, msg)
	case "cancel":
		b.clearAnswer(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "↩️ Cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I keep a shared day plan for the person you care for.</b>\n\n"+
			"• /newplan today Grandma — start a plan\n"+
			"• /plans — your plans\n"+
			"• /accept &lt;code&gt; — join a plan you were invited to\n"+
			"• /help — all commands",
		escape(name),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"<b>Plans</b>\n" +
		"• /newplan YYYY-MM-DD [patient] — new plan (or <code>today</code>)\n" +
		"• /plans, /open &lt;n&gt;, /plan — list, open and show plans\n" +
		"• /deleteplan — delete the open plan\n" +
		"<b>Guardian</b>\n" +
		"• /addtask [HH:MM[-HH:MM]] text\n" +
		"• /edittask &lt;n&gt; start=HH:MM end=HH:MM content=text\n" +
		"• /deltask &lt;n&gt; [n...] · /ask text · /delquestion &lt;n&gt; [n...]\n" +
		"• /invite name — invite a caregiver\n" +
		"• 🎙 a voice message adds the tasks and questions you mention\n" +
		"<b>Caregiver</b>\n" +
		"• /accept code · /done &lt;n&gt; · /note text\n" +
		"• /answer &lt;n&gt; text, or /answer &lt;n&gt; and then a voice message\n" +
		"• /cancel — drop a pending answer"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleNewPlan(ctx context.Context, msg *tgbotapi.Message, args string) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	date, patient, _ := strings.Cut(args, " ")
	switch strings.ToLower(date) {
	case "", "today":
		date = b.plans.Today().Format(model.DateLayout)
	case "tomorrow":
		date = b.plans.Today().AddDate(0, 0, 1).Format(model.DateLayout)
	}

	plan, err := b.plans.Create(ctx, user, date, patient)
	if err != nil {
		return b.sendText(msg.Chat.ID, describeError(err))
	}
	b.setActive(msg.From.ID, plan.ID)
	return b.sendPlan(msg.Chat.ID, user, plan)
}

func (b *Bot) handlePlans(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	plans, err := b.plans.ListForUser(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, describeError(err))
	}
	if len(plans) == 0 {
		return b.sendText(msg.Chat.ID, "You have no care plans yet. Start one with /newplan today.")
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Your care plans</b>\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for i, plan := range plans {
		role, _ := plan.RoleOf(user.ID)
		label := plan.Date
		if plan.PatientName != "" {
			label += " · " + plan.PatientName
		}
		builder.WriteString(fmt.Sprintf("%d. %s <i>(%s)</i>\n", i+1, escape(label), strings.ToLower(string(role))))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d · %s", i+1, shortTitle(label, 28)), cbOpenPrefix+plan.ID),
		))
	}
	return b.sendWithReplyMarkup(msg.Chat.ID, strings.TrimSpace(builder.String()), tgbotapi.NewInlineKeyboardMarkup(buttons...))
}

func (b *Bot) handleOpen(ctx context.Context, msg *tgbotapi.Message, args string) error {
	rows, err := parseRowNumbers(strings.Fields(args))
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /open &lt;n&gt; with a number from /plans.")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	plans, err := b.plans.ListForUser(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, describeError(err))
	}
	if err := checkRows(rows[:1], len(plans)); err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	plan := plans[rows[0]]
	b.setActive(msg.From.ID, plan.ID)
	return b.sendPlan(msg.Chat.ID, user, &plan)
}

func (b *Bot) handleShowPlan(ctx context.Context, msg *tgbotapi.Message) error {
	user, plan, ok, err := b.activePlan(ctx, msg)
	if !ok {
		return err
	}
	return b.sendPlan(msg.Chat.ID, user, plan)
}

func (b *Bot) handleAddTask(ctx context.Context, msg *tgbotapi.Message, args string) error {
	add, err := parseAddTask(args)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /addtask [HH:MM[-HH:MM]] text, e.g. /addtask 08:15 Give medication")
	}
	user, plan, ok, err := b.activePlan(ctx, msg)
	if !ok {
		return err
	}
	return b.applyTasks(ctx, msg.Chat.ID, user, plan.ID, reconcile.RowBatch{AddedRows: []reconcile.RowAdd{add}})
}

func (b *Bot) handleEditTask(ctx context.Context, msg *tgbotapi.Message, args string) error {
	batch, err := parseEditTask(args)
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	user, plan, ok, err := b.activePlan(ctx, msg)
	if !ok {
		return err
	}
	// The first row of an empty list is the empty-state row and may be edited.
	for row := range batch.EditedRows {
		if len(plan.Tasks) == 0 && row == 0 {
			continue
		}
		if err := checkRows([]int{row}, len(plan.Tasks)); err != nil {
			return b.sendText(msg.Chat.ID, escape(err.Error()))
		}
	}
	return b.applyTasks(ctx, msg.Chat.ID, user, plan.ID, batch)
}

func (b *Bot) handleDeleteTasks(ctx context.Context, msg *tgbotapi.Message, args string) error {
	rows, err := parseRowNumbers(strings.Fields(args))
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /deltask &lt;n&gt; [n...]")
	}
	user, plan, ok, err := b.activePlan(ctx, msg)
	if !ok {
		return err
	}
	if err := checkRows(rows, len(plan.Tasks)); err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	return b.applyTasks(ctx, msg.Chat.ID, user, plan.ID, reconcile.RowBatch{DeletedRows: rows})
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message, args string) error {
	rows, err := parseRowNumbers(strings.Fields(args))
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /done &lt;n&gt;")
	}
	user, plan, ok, err := b.activePlan(ctx, msg)
	if !ok {
		return err
	}
	if err := checkRows(rows, len(plan.Tasks)); err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	batch := reconcile.RowBatch{EditedRows: make(map[int]reconcile.RowEdit, len(rows))}
	for _, row := range rows {
		batch.EditedRows[row] = statusBatch(row, true).EditedRows[row]
	}
	return b.applyTasks(ctx, msg.Chat.ID, user, plan.ID, batch)
}

func (b *Bot) handleAsk(ctx context.Context, msg *tgbotapi.Message, args string) error {
	if args == "" {
		return b.sendText(msg.Chat.ID, "Usage: /ask Did she sleep well?")
	}
	user, plan, ok, err := b.activePlan(ctx, msg)
	if !ok {
		return err
	}
	return b.applyQuestions(ctx, msg.Chat.ID, user, plan.ID, reconcile.RowBatch{AddedRows: []reconcile.RowAdd{{Question: args}}})
}

func (b *Bot) handleDeleteQuestions(ctx context.Context, msg *tgbotapi.Message, args string) error {
	rows, err := parseRowNumbers(strings.Fields(args))
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /delquestion &lt;n&gt; [n...]")
	}
	user, plan, ok, err := b.activePlan(ctx, msg)
	if !ok {
		return err
	}
	if err := checkRows(rows, len(plan.Questions)); err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	return b.applyQuestions(ctx, msg.Chat.ID, user, plan.ID, reconcile.RowBatch{DeletedRows: rows})
}

func (b *Bot) handleAnswer(ctx context.Context, msg *tgbotapi.Message, args string) error {
	row, text, err := parseAnswer(args)
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	user, plan, ok, err := b.activePlan(ctx, msg)
	if !ok {
		return err
	}
	if err := checkRows([]int{row}, len(plan.Questions)); err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	if text == "" {
		question := plan.Questions[row]
		b.setAnswer(msg.From.ID, pendingAnswer{planID: plan.ID, questionID: question.ID})
		return b.sendText(msg.Chat.ID, fmt.Sprintf("🎙 Send your answer to «%s» as a voice or text message. /cancel to stop.", escape(question.Question)))
	}
	batch := reconcile.RowBatch{EditedRows: map[int]reconcile.RowEdit{row: {Answer: &text}}}
	return b.applyQuestions(ctx, msg.Chat.ID, user, plan.ID, batch)
}

func (b *Bot) handleInvite(ctx context.Context, msg *tgbotapi.Message, args string) error {
	if args == "" {
		return b.sendText(msg.Chat.ID, "Usage: /invite Carl")
	}
	user, plan, ok, err := b.activePlan(ctx, msg)
	if !ok {
		return err
	}
	caregiver, err := b.caregivers.Invite(ctx, user, plan.ID, args)
	if err != nil {
		return b.sendText(msg.Chat.ID, describeError(err))
	}
	text := fmt.Sprintf("✉️ Invite for <b>%s</b> created.\nAsk them to send this to the bot:\n<code>/accept %s</code>",
		escape(caregiver.Name), escape(caregiver.InviteCode))
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleAccept(ctx context.Context, msg *tgbotapi.Message, args string) error {
	if args == "" {
		return b.sendText(msg.Chat.ID, "Usage: /accept &lt;code&gt;")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	caregiver, err := b.caregivers.Accept(ctx, user, args)
	if err != nil {
		return b.sendText(msg.Chat.ID, describeError(err))
	}
	b.setActive(msg.From.ID, caregiver.CarePlanID)
	plan, _, err := b.plans.Get(ctx, user, caregiver.CarePlanID)
	if err != nil {
		return b.sendText(msg.Chat.ID, describeError(err))
	}
	if err := b.sendText(msg.Chat.ID, "🤝 You joined the care plan."); err != nil {
		return err
	}
	return b.sendPlan(msg.Chat.ID, user, plan)
}

func (b *Bot) handleNote(ctx context.Context, msg *tgbotapi.Message, args string) error {
	if args == "" {
		return b.sendText(msg.Chat.ID, "Usage: /note She ate all of her lunch")
	}
	user, plan, ok, err := b.activePlan(ctx, msg)
	if !ok {
		return err
	}
	if _, err := b.caregivers.AddNote(ctx, user, plan.ID, args); err != nil {
		return b.sendText(msg.Chat.ID, describeError(err))
	}
	return b.sendText(msg.Chat.ID, "📝 Note saved.")
}

func (b *Bot) handleDeletePlan(ctx context.Context, msg *tgbotapi.Message) error {
	user, plan, ok, err := b.activePlan(ctx, msg)
	if !ok {
		return err
	}
	if plan.GuardianID != user.ID {
		return b.sendText(msg.Chat.ID, describeError(service.ErrForbidden))
	}
	b.setConfirmation(msg.From.ID, plan.ID)
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", cbDeletePlanPrefix+plan.ID),
		tgbotapi.NewInlineKeyboardButtonData("↩️ Keep", cbCancelPrefix+plan.ID),
	))
	return b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("Delete the plan for %s? This cannot be undone.", plan.Date), markup)
}

func (b *Bot) handleVoice(ctx context.Context, msg *tgbotapi.Message) error {
	fileID, mime := "", "audio/ogg"
	switch {
	case msg.Voice != nil:
		fileID = msg.Voice.FileID
		if msg.Voice.MimeType != "" {
			mime = msg.Voice.MimeType
		}
	case msg.Audio != nil:
		fileID = msg.Audio.FileID
		if msg.Audio.MimeType != "" {
			mime = msg.Audio.MimeType
		}
	}

	if pending, ok := b.getAnswer(msg.From.ID); ok {
		b.clearAnswer(msg.From.ID)
		user, err := b.ensureUser(ctx, msg.From)
		if err != nil {
			return err
		}
		audio, err := b.downloadFile(ctx, fileID)
		if err != nil {
			b.log.Warnw("download voice", "file_id", fileID, "error", err)
			return b.sendText(msg.Chat.ID, "⚠️ Could not download the voice message, please send it again.")
		}
		plan, err := b.plans.AnswerByVoice(ctx, user, pending.planID, pending.questionID, audio, mime)
		if err != nil {
			return b.sendText(msg.Chat.ID, describeError(err))
		}
		return b.sendPlan(msg.Chat.ID, user, plan)
	}

	user, plan, ok, err := b.activePlan(ctx, msg)
	if !ok {
		return err
	}
	audio, err := b.downloadFile(ctx, fileID)
	if err != nil {
		b.log.Warnw("download voice", "file_id", fileID, "error", err)
		return b.sendText(msg.Chat.ID, "⚠️ Could not download the voice message, please send it again.")
	}
	if err := b.sendText(msg.Chat.ID, "🎧 Listening…"); err != nil {
		return err
	}
	updated, err := b.plans.ImportVoiceMemo(ctx, user, plan.ID, audio, mime)
	if err != nil {
		return b.sendText(msg.Chat.ID, describeError(err))
	}
	return b.sendPlan(msg.Chat.ID, user, updated)
}

func (b *Bot) answerQuestion(ctx context.Context, msg *tgbotapi.Message, pending pendingAnswer, text string) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	plan, _, err := b.plans.Get(ctx, user, pending.planID)
	if err != nil {
		return b.sendText(msg.Chat.ID, describeError(err))
	}
	for row, q := range plan.Questions {
		if q.ID == pending.questionID {
			batch := reconcile.RowBatch{EditedRows: map[int]reconcile.RowEdit{row: {Answer: &text}}}
			return b.applyQuestions(ctx, msg.Chat.ID, user, plan.ID, batch)
		}
	}
	return b.sendText(msg.Chat.ID, "That question was removed in the meantime.")
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warnw("callback ack", "error", err)
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data

	switch {
	case strings.HasPrefix(data, cbOpenPrefix):
		user, err := b.ensureUser(ctx, cb.From)
		if err != nil {
			return err
		}
		plan, _, err := b.plans.Get(ctx, user, strings.TrimPrefix(data, cbOpenPrefix))
		if err != nil {
			return b.sendText(chatID, describeError(err))
		}
		b.setActive(cb.From.ID, plan.ID)
		return b.sendPlan(chatID, user, plan)
	case strings.HasPrefix(data, cbDonePrefix):
		return b.toggleTask(ctx, chatID, cb.From, strings.TrimPrefix(data, cbDonePrefix))
	case strings.HasPrefix(data, cbDeletePlanPrefix):
		planID := strings.TrimPrefix(data, cbDeletePlanPrefix)
		if pending, ok := b.getConfirmation(cb.From.ID); !ok || pending != planID {
			return nil
		}
		b.clearConfirmation(cb.From.ID)
		user, err := b.ensureUser(ctx, cb.From)
		if err != nil {
			return err
		}
		if err := b.plans.Delete(ctx, user, planID); err != nil {
			return b.sendText(chatID, describeError(err))
		}
		b.clearActive(cb.From.ID, planID)
		return b.sendText(chatID, "🗑 Care plan deleted.")
	case strings.HasPrefix(data, cbCancelPrefix):
		b.clearConfirmation(cb.From.ID)
		return nil
	default:
		return nil
	}
}

// toggleTask flips a task's status by ID, so a stale keyboard still ticks the
// task the button was drawn for.
func (b *Bot) toggleTask(ctx context.Context, chatID int64, from *tgbotapi.User, taskID string) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	planID, ok := b.getActive(from.ID)
	if !ok {
		return b.sendText(chatID, "Open a plan first with /plans.")
	}
	plan, _, err := b.plans.Get(ctx, user, planID)
	if err != nil {
		return b.sendText(chatID, describeError(err))
	}
	for row, task := range plan.Tasks {
		if task.ID == taskID {
			return b.applyTasks(ctx, chatID, user, planID, statusBatch(row, !task.Status))
		}
	}
	return b.sendText(chatID, "That task was removed in the meantime.")
}

func (b *Bot) applyTasks(ctx context.Context, chatID int64, user *model.User, planID string, batch reconcile.RowBatch) error {
	plan, err := b.plans.ApplyTaskRows(ctx, user, planID, batch)
	if err != nil {
		b.log.Infow("task batch rejected", "plan_id", planID, "user_id", user.ID, "error", err)
		return b.sendText(chatID, describeError(err))
	}
	return b.sendPlan(chatID, user, plan)
}

func (b *Bot) applyQuestions(ctx context.Context, chatID int64, user *model.User, planID string, batch reconcile.RowBatch) error {
	plan, err := b.plans.ApplyQuestionRows(ctx, user, planID, batch)
	if err != nil {
		b.log.Infow("question batch rejected", "plan_id", planID, "user_id", user.ID, "error", err)
		return b.sendText(chatID, describeError(err))
	}
	return b.sendPlan(chatID, user, plan)
}

// activePlan loads the chat's open plan. When ok is false a reply was already
// sent, and err is the send error if any.
func (b *Bot) activePlan(ctx context.Context, msg *tgbotapi.Message) (*model.User, *model.CarePlan, bool, error) {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return nil, nil, false, err
	}
	planID, ok := b.getActive(msg.From.ID)
	if !ok {
		return nil, nil, false, b.sendText(msg.Chat.ID, "Open a plan first with /plans, or start one with /newplan today.")
	}
	plan, _, err := b.plans.Get(ctx, user, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			b.clearActive(msg.From.ID, planID)
		}
		return nil, nil, false, b.sendText(msg.Chat.ID, describeError(err))
	}
	return user, plan, true, nil
}

// SendDigests sends today's plan summary to every accepted caregiver.
func (b *Bot) SendDigests(ctx context.Context) error {
	notes, err := b.reminders.Digests(ctx, b.plans.Today())
	if err != nil {
		return err
	}
	return b.deliver(ctx, notes)
}

// SendReminders notifies caregivers of tasks starting within the lead time.
func (b *Bot) SendReminders(ctx context.Context) error {
	notes, err := b.reminders.Reminders(ctx, b.plans.Today(), b.lead)
	if err != nil {
		return err
	}
	return b.deliver(ctx, notes)
}

func (b *Bot) deliver(ctx context.Context, notes []service.Notification) error {
	for _, note := range notes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		user, err := b.users.FindByID(ctx, note.UserID)
		if err != nil {
			b.log.Warnw("find notification recipient", "user_id", note.UserID, "error", err)
			continue
		}
		if user.TelegramID == nil {
			continue
		}
		if err := b.sendText(*user.TelegramID, note.Text); err != nil {
			b.log.Warnw("send notification", "user_id", note.UserID, "plan_id", note.PlanID, "error", err)
		}
	}
	return nil
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxVoiceBytes))
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(msg.Text) {
	case menuLabelPlans:
		return true, b.handlePlans(ctx, msg)
	case menuLabelToday:
		return true, b.handleShowPlan(ctx, msg)
	case menuLabelHelp:
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.users.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendPlan(chatID int64, user *model.User, plan *model.CarePlan) error {
	role, _ := plan.RoleOf(user.ID)
	now := b.plans.Today()
	text := planView(*plan, role, now)
	if markup := taskKeyboard(*plan, role, now); markup != nil {
		return b.sendWithReplyMarkup(chatID, text, *markup)
	}
	return b.sendText(chatID, text)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) setActive(userID int64, planID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active[userID] = planID
}

func (b *Bot) getActive(userID int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	planID, ok := b.active[userID]
	return planID, ok
}

func (b *Bot) clearActive(userID int64, planID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active[userID] == planID {
		delete(b.active, userID)
	}
}

func (b *Bot) setAnswer(userID int64, pending pendingAnswer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.answers[userID] = pending
}

func (b *Bot) getAnswer(userID int64) (pendingAnswer, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pending, ok := b.answers[userID]
	return pending, ok
}

func (b *Bot) clearAnswer(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.answers, userID)
}

func (b *Bot) setConfirmation(userID int64, planID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = planID
}

func (b *Bot) getConfirmation(userID int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	planID, ok := b.confirmations[userID]
	return planID, ok
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelPlans),
			tgbotapi.NewKeyboardButton(menuLabelToday),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}
