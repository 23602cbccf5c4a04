package reminders

import (
	"fmt"
	"strings"
	"time"
)

// MessageText renders the reminder body for an appointment at start, which
// should already be in the clinic timezone.
func MessageText(t Type, procedure string, start time.Time) string {
	switch t {
	case TypeDayBefore:
		return fmt.Sprintf(`📅 НАПОМИНАНИЕ О ЗАПИСИ

Завтра у вас запись на процедуру:
🎯 %s
⏰ %s

📍 Не забудьте прийти за 10 минут до начала!

🔸 Если нужно перенести - звоните заранее

Ждем вас!`, procedure, start.Format("02.01.2006 в 15:04"))
	case TypeHourBefore:
		return fmt.Sprintf(`⏰ НАПОМИНАНИЕ

Через 2 часа у вас запись:
🎯 %s
⏰ %s

📍 Не забудьте выехать вовремя!
🚗 Учтите время на дорогу и парковку

До встречи!`, procedure, start.Format("15:04"))
	default:
		return fmt.Sprintf("🔔 Напоминание о записи: %s, %s", procedure, start.Format("02.01.2006 15:04"))
	}
}

var statusLabels = map[Status]string{
	StatusPending:   "⏳ Ожидает",
	StatusSent:      "✅ Отправлено",
	StatusFailed:    "❌ Ошибка",
	StatusCancelled: "🚫 Отменено",
}

var typeLabels = map[Type]string{
	TypeDayBefore:  "За день до визита",
	TypeHourBefore: "За 2 часа до визита",
}

const listLimit = 5

// FormatList renders the "my reminders" overview, showing at most five
// entries in loc.
func FormatList(list []Reminder, loc *time.Location) string {
	if len(list) == 0 {
		return "📭 У вас пока нет напоминаний."
	}
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	b.WriteString("📋 ВАШИ НАПОМИНАНИЯ:\n\n")
	for i, r := range list {
		if i == listLimit {
			break
		}
		status, ok := statusLabels[r.Status]
		if !ok {
			status = "❓ Неизвестно"
		}
		kind, ok := typeLabels[r.Type]
		if !ok {
			kind = string(r.Type)
		}
		fmt.Fprintf(&b, "📅 %s\n🔔 %s\n", r.ScheduledTime.In(loc).Format("02.01.2006 15:04"), kind)
		if r.Procedure != "" {
			fmt.Fprintf(&b, "🎯 %s\n", r.Procedure)
		}
		fmt.Fprintf(&b, "📊 %s\n\n", status)
	}
	if len(list) > listLimit {
		fmt.Fprintf(&b, "... и еще %d напоминаний", len(list)-listLimit)
	}
	return strings.TrimRight(b.String(), "\n")
}
