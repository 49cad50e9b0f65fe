package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"care-scheduler/internal/model"
	"care-scheduler/internal/service"
)

const maxButtons = 8

func formatAgenda(b service.TaskBuckets, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("📋 <b>Care tasks</b>\n")
	sb.WriteString(fmt.Sprintf("🗓 %s\n", model.WallClock(now).Format("02.01.2006")))

	writeSection(&sb, "Overdue", b.Overdue, now)
	writeSection(&sb, "Upcoming", b.Upcoming, now)
	writeSection(&sb, "Done", b.Completed, now)

	return strings.TrimSpace(sb.String())
}

func writeSection(sb *strings.Builder, title string, list []service.TaskInstance, now time.Time) {
	if len(list) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("\n<b>%s</b>\n", title))
	for _, inst := range list {
		sb.WriteString(formatInstance(inst, now))
	}
}

func formatInstance(inst service.TaskInstance, now time.Time) string {
	icon := iconUpcoming
	switch {
	case inst.IsCompleted:
		icon = iconCompleted
	case inst.IsPast:
		icon = iconOverdue
	default:
		if at, err := inst.ScheduledAt(); err == nil && at.Sub(model.WallClock(now)) <= time.Hour {
			icon = iconDue
		}
	}

	when := inst.ScheduledTime
	if inst.Date != model.WallClock(now).Format(model.DateLayout) {
		when = inst.Date + " " + inst.ScheduledTime
	}

	line := fmt.Sprintf("%s %s %s", icon, when, escape(strings.TrimSpace(inst.Name)))
	if inst.Kind == service.TaskKindMedication && inst.Medication != nil && inst.Medication.Dosage != "" {
		line += fmt.Sprintf(" <i>(%s)</i>", escape(inst.Medication.Dosage))
	}
	return line + fmt.Sprintf("\n   <code>%s</code>\n", escape(inst.ID))
}

// toggleKeyboard offers one button per open task, capped to keep the message readable.
func toggleKeyboard(list []service.TaskInstance) (tgbotapi.InlineKeyboardMarkup, bool) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, inst := range list {
		if inst.IsCompleted || len(rows) == maxButtons {
			continue
		}
		label := fmt.Sprintf("%s %s %s", iconCompleted, inst.ScheduledTime, shortTitle(inst.Name, 24))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbTogglePrefix+inst.ID),
		))
	}
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

func shortTitle(title string, maxLen int) string {
	title = strings.TrimSpace(title)
	runes := []rune(title)
	if len(runes) <= maxLen {
		return title
	}
	return string(runes[:maxLen-1]) + "…"
}

// splitArgs splits "a | b | c" into exactly n trimmed, non-empty parts.
func splitArgs(args string, n int) []string {
	parts := strings.Split(args, "|")
	if len(parts) != n {
		return nil
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return nil
		}
	}
	return parts
}

func joinInts(values []int) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	return strings.Join(out, ", ")
}

func escape(s string) string {
	return html.EscapeString(s)
}
