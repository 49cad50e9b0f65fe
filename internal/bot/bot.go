package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/datatypes"

	"care-scheduler/internal/model"
	"care-scheduler/internal/repository"
	"care-scheduler/internal/service"
)

const cbTogglePrefix = "toggle:"

const (
	iconUpcoming  = "🟢"
	iconDue       = "⏳"
	iconOverdue   = "⚠️"
	iconCompleted = "✅"
	iconMed       = "💊"
)

// Bot is the Telegram surface of the scheduler and a push channel for reminders.
type Bot struct {
	api      *tgbotapi.BotAPI
	users    *repository.UserRepository
	settings *repository.SettingsRepository
	tasks    *service.TaskService
	sessions *service.SessionService
	limiter  *rate.Limiter
	loc      *time.Location
	log      *zap.Logger
}

func New(
	token string,
	users *repository.UserRepository,
	settings *repository.SettingsRepository,
	tasks *service.TaskService,
	sessions *service.SessionService,
	pushPerSecond int,
	loc *time.Location,
	log *zap.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Info("bot authorized", zap.String("account", api.Self.UserName))

	return &Bot{
		api:      api,
		users:    users,
		settings: settings,
		tasks:    tasks,
		sessions: sessions,
		limiter:  rate.NewLimiter(rate.Limit(pushPerSecond), pushPerSecond),
		loc:      loc,
		log:      log,
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Warn("handle callback", zap.Error(err))
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Warn("handle message", zap.Error(err))
			}
		}
	}

	return ctx.Err()
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if !msg.IsCommand() {
		return b.sendText(msg.Chat.ID, "Send /help to see what I can do.")
	}

	b.log.Debug("command", zap.Int64("from", msg.From.ID), zap.String("command", msg.Command()))
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.sendText(msg.Chat.ID, helpText)
	case "tasks":
		return b.handleTasks(ctx, msg, args)
	case "done":
		return b.handleDone(ctx, msg, args)
	case "addmed":
		return b.handleAddMedication(ctx, msg, args)
	case "addevent":
		return b.handleAddEvent(ctx, msg, args)
	case "leadtimes":
		return b.handleLeadTimes(ctx, msg, args)
	case "join":
		return b.handleJoin(ctx, msg, args)
	case "stop":
		return b.handleStop(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /tasks [all|medication|personal_care|appointment|task] — today's care tasks\n" +
	"• /done &lt;id&gt; — mark a task done or undo it\n" +
	"• /addmed name | dosage | 08:00,20:00 — add a medication\n" +
	"• /addevent category | 2025-11-30 14:00 | title — add an event\n" +
	"• /leadtimes 15,60 — reminder lead times in minutes\n" +
	"• /join &lt;circle-id&gt; — get reminders for a care circle\n" +
	"• /stop — pause reminders, /start resumes them"

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	if _, err := b.sessions.Resume(ctx, user.ID); err != nil {
		return fmt.Errorf("start reminder session: %w", err)
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("👋 Hi, %s! Reminders are on.\n\n%s", escape(name), helpText))
}

func (b *Bot) handleStop(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	running, err := b.sessions.Pause(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("pause reminders: %w", err)
	}
	if !running {
		return b.sendText(msg.Chat.ID, "Reminders were already paused.")
	}
	return b.sendText(msg.Chat.ID, "⏸ Reminders paused. Send /start to resume.")
}

func (b *Bot) handleTasks(ctx context.Context, msg *tgbotapi.Message, args string) error {
	filter, ok := service.ParseTaskFilter(args)
	if !ok {
		return b.sendText(msg.Chat.ID, "Unknown filter. Use all, medication, personal_care, appointment or task.")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user, filter)
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message, args string) error {
	if args == "" {
		return b.sendText(msg.Chat.ID, "Pass the task id: /done med-…-08:00")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.toggleAndReport(ctx, msg.Chat.ID, user, args)
}

func (b *Bot) toggleAndReport(ctx context.Context, chatID int64, user *model.User, instanceID string) error {
	inst, err := b.tasks.ToggleTask(ctx, user.ID, "", instanceID, b.now())
	switch {
	case errors.Is(err, service.ErrTaskNotFound), errors.Is(err, service.ErrInvalidTaskInstance), errors.Is(err, service.ErrUnknownTaskKind):
		return b.sendText(chatID, "Task not found.")
	case err != nil:
		return b.sendText(chatID, fmt.Sprintf("Could not update the task: %s", escape(err.Error())))
	}
	if inst.IsCompleted {
		return b.sendText(chatID, fmt.Sprintf("%s «%s» marked done.", iconCompleted, escape(inst.Name)))
	}
	return b.sendText(chatID, fmt.Sprintf("↩️ «%s» is open again.", escape(inst.Name)))
}

func (b *Bot) handleAddMedication(ctx context.Context, msg *tgbotapi.Message, args string) error {
	parts := splitArgs(args, 3)
	if parts == nil {
		return b.sendText(msg.Chat.ID, "Format: /addmed name | dosage | 08:00,20:00")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	med, err := b.tasks.CreateMedication(ctx, user.ID, service.MedicationInput{
		Name:            parts[0],
		Dosage:          parts[1],
		Times:           strings.Split(parts[2], ","),
		ReminderEnabled: true,
		StartDate:       b.now(),
	})
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not save the medication: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("%s <b>%s</b> saved for %s.", iconMed, escape(med.Name), strings.Join(med.Times, ", ")))
}

func (b *Bot) handleAddEvent(ctx context.Context, msg *tgbotapi.Message, args string) error {
	parts := splitArgs(args, 3)
	if parts == nil {
		return b.sendText(msg.Chat.ID, "Format: /addevent appointment | 2025-11-30 14:00 | title")
	}
	start, err := time.Parse("2006-01-02 15:04", parts[1])
	if err != nil {
		return b.sendText(msg.Chat.ID, "Use the date format <code>2025-11-30 14:00</code>.")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	event, err := b.tasks.CreateEvent(ctx, user.ID, service.EventInput{
		TaskCategory: strings.ToLower(parts[0]),
		StartTime:    start,
		Title:        parts[2],
	})
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not save the event: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("📅 <b>%s</b> saved for %s.", escape(event.Title), event.StartTime.Format("2006-01-02 15:04")))
}

func (b *Bot) handleLeadTimes(ctx context.Context, msg *tgbotapi.Message, args string) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	current, err := b.settings.GetNotificationSettings(ctx, user.ID)
	if err != nil {
		return err
	}
	if current == nil {
		def := model.DefaultNotificationSettings(user.ID)
		current = &def
	}

	if args == "" {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Reminders fire %s minutes before each task. Change with /leadtimes 15,60", joinInts(current.LeadTimes())))
	}

	var minutes []int
	for _, raw := range strings.Split(args, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n <= 0 || n > 24*60 {
			return b.sendText(msg.Chat.ID, "Lead times are minutes between 1 and 1440, e.g. /leadtimes 15,60")
		}
		if !slices.Contains(minutes, n) {
			minutes = append(minutes, n)
		}
	}
	slices.Sort(minutes)
	current.CareTaskReminderMinutes = datatypes.JSONSlice[int](minutes)
	if err := b.settings.Save(ctx, current); err != nil {
		return err
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("⏰ Reminders will fire %s minutes before each task.", joinInts(minutes)))
}

func (b *Bot) handleJoin(ctx context.Context, msg *tgbotapi.Message, args string) error {
	if args == "" || strings.ContainsAny(args, " \t") {
		return b.sendText(msg.Chat.ID, "Pass the circle id: /join &lt;circle-id&gt;")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	if err := b.users.AddCircleMember(ctx, args, user.ID); err != nil {
		return err
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("👥 You joined circle <code>%s</code>.", escape(args)))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Debug("callback ack", zap.Error(err))
	}
	if cb.From == nil || cb.Message == nil || !strings.HasPrefix(cb.Data, cbTogglePrefix) {
		return nil
	}
	user, err := b.ensureUser(ctx, cb.From)
	if err != nil {
		return err
	}
	return b.toggleAndReport(ctx, cb.Message.Chat.ID, user, strings.TrimPrefix(cb.Data, cbTogglePrefix))
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User, filter service.TaskFilter) error {
	now := b.now()
	list, err := b.tasks.Timeline(ctx, user.ID, "", filter, now)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	if len(list) == 0 {
		return b.sendText(chatID, "Nothing scheduled. Add a medication with /addmed.")
	}

	msg := tgbotapi.NewMessage(chatID, formatAgenda(service.BucketTaskInstances(list), now))
	msg.ParseMode = tgbotapi.ModeHTML
	if kb, ok := toggleKeyboard(list); ok {
		msg.ReplyMarkup = kb
	}
	_, err = b.api.Send(msg)
	return err
}

// SendDailyAgenda sends today's buckets to every user with a linked chat.
func (b *Bot) SendDailyAgenda(ctx context.Context) error {
	users, err := b.users.ListAll(ctx)
	if err != nil {
		return err
	}
	now := b.now()
	for _, user := range users {
		if user.TelegramID == 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		list, err := b.tasks.Timeline(ctx, user.ID, "", service.FilterAll, now)
		if err != nil {
			b.log.Warn("build agenda", zap.String("user", user.ID), zap.Error(err))
			continue
		}
		if len(list) == 0 {
			continue
		}
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := b.sendText(user.TelegramID, formatAgenda(service.BucketTaskInstances(list), now)); err != nil {
			b.log.Warn("send agenda", zap.Int64("chat", user.TelegramID), zap.Error(err))
		}
	}
	return nil
}

// Push delivers a reminder to the user's chat.
func (b *Bot) Push(ctx context.Context, req service.NotificationRequest) error {
	user, err := b.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if user.TelegramID == 0 {
		return nil
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	return b.sendText(user.TelegramID, fmt.Sprintf("🔔 <b>%s</b>\n%s", escape(req.Title), escape(req.Message)))
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	name := strings.TrimSpace(strings.Join([]string{from.FirstName, from.LastName}, " "))
	if name == "" {
		name = from.UserName
	}
	return b.users.UpsertFromTelegram(ctx, from.ID, name)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) now() time.Time {
	return time.Now().In(b.loc)
}
