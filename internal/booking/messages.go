package booking

import (
	"fmt"
	"strings"

	"github.com/wolfman30/cosmetology-assistant/internal/availability"
	"github.com/wolfman30/cosmetology-assistant/internal/chat"
	"github.com/wolfman30/cosmetology-assistant/internal/clinic"
)

var procedureEmoji = map[string]string{
	"cleaning":      "🧼",
	"carboxy":       "💨",
	"microneedling": "🎯",
	"massage":       "👐",
	"mesopeel":      "🔄",
	"consultation":  "💬",
}

const slotsPerRow = 3

var (
	cancelButton     = chat.Button{Text: "❌ Отменить запись", Action: ActionCancel}
	mainMenuButton   = chat.Button{Text: "🏠 Главное меню", Action: ActionMainMenu}
	restartButton    = chat.Button{Text: "📅 Выбрать процедуру", Action: ActionRestart}
	myBookingsButton = chat.Button{Text: "📋 Мои записи", Action: ActionMyBookings}
)

// ProcedureMenu lists the catalog as booking buttons.
func ProcedureMenu(text string) chat.Reply {
	if text == "" {
		text = "Пожалуйста, выберите процедуру, на которую вы хотите записаться:"
	}
	var buttons []chat.Button
	for _, p := range clinic.Procedures() {
		buttons = append(buttons, chat.Button{Text: procedureEmoji[p.Code] + " " + p.Name, Action: BookAction(p.Code)})
	}
	return chat.WithButtons(text, buttons...)
}

// ContactMenu is attached to replies that send the user to the clinic.
func ContactMenu(text string) chat.Reply {
	return chat.WithButtons(text, restartButton, mainMenuButton)
}

func procedureConfirmation(name, description string) chat.Reply {
	var b strings.Builder
	fmt.Fprintf(&b, "Вы выбрали запись на: %s\n\n", name)
	if description = strings.TrimSpace(description); description != "" {
		fmt.Fprintf(&b, "🔍 Краткая информация о процедуре:\n%s\n\n", description)
	}
	b.WriteString("Пожалуйста, подтвердите ваш выбор, чтобы перейти к выбору времени.")
	return chat.Reply{Text: b.String()}.Row(
		chat.Button{Text: "✅ Подтвердить", Action: ActionConfirm},
		chat.Button{Text: "❌ Отменить", Action: ActionCancel},
	)
}

func notConfiguredReply(info clinic.Info, procedure string) chat.Reply {
	return ContactMenu(fmt.Sprintf(`📅 Для записи на %s свяжитесь с администратором:

📞 Телефон: %s
🕐 Режим работы: %s

Администратор подберет удобное время и проконсультирует по процедуре.`, procedure, info.Phone, info.WorkingHours))
}

func noSlotsReply(info clinic.Info, procedure string, days int) chat.Reply {
	return ContactMenu(fmt.Sprintf(`😔 К сожалению, на ближайшие %d дней нет свободного времени для записи на %s.

📞 Пожалуйста, свяжитесь с администратором для записи на более поздние даты:
%s
🕐 Режим работы: %s`, days, procedure, info.Phone, info.WorkingHours))
}

func scheduleErrorReply(info clinic.Info) chat.Reply {
	return ContactMenu(fmt.Sprintf(`😔 Произошла ошибка при загрузке расписания.

📞 Пожалуйста, свяжитесь с администратором для записи:
%s
🕐 Режим работы: %s`, info.Phone, info.WorkingHours))
}

// slotPicker renders one page of dates. Buttons carry the index into the
// full slot list.
func slotPicker(procedure string, slots []availability.Slot, page, perPage int, intro bool) chat.Reply {
	view := availability.Paginate(slots, page, perPage)
	var b strings.Builder
	fmt.Fprintf(&b, "📅 Выберите удобное время для записи на %s:\n\n", procedure)
	if intro {
		fmt.Fprintf(&b, "📊 Найдено времени: %d слотов на %d дней\n", len(slots), len(availability.GroupByDate(slots)))
	}
	b.WriteString("⏰ Выберите дату и время:")

	reply := chat.Reply{Text: b.String()}
	for _, g := range view.Groups {
		reply = reply.Row(chat.Button{Text: fmt.Sprintf("📅 %s (%s)", g.DateLabel, g.WeekdayLabel), Action: ActionNoop})
		for i := 0; i < len(g.Slots); i += slotsPerRow {
			end := i + slotsPerRow
			if end > len(g.Slots) {
				end = len(g.Slots)
			}
			row := make([]chat.Button, 0, slotsPerRow)
			for _, s := range g.Slots[i:end] {
				row = append(row, chat.Button{Text: "⏰ " + s.Slot.TimeLabel, Action: TimeAction(s.Index)})
			}
			reply = reply.Row(row...)
		}
	}
	var nav []chat.Button
	if view.HasPrev {
		nav = append(nav, chat.Button{Text: "⬅️ Пред. даты", Action: PageAction(view.Page - 1)})
	}
	if view.HasNext {
		nav = append(nav, chat.Button{Text: "След. даты ➡️", Action: PageAction(view.Page + 1)})
	}
	return reply.Row(nav...).Row(cancelButton)
}

func badSlotReply(procedure string, slots []availability.Slot, page, perPage int) []chat.Reply {
	return []chat.Reply{
		chat.Text("Ошибка выбора времени. Попробуйте снова."),
		slotPicker(procedure, slots, page, perPage, false),
	}
}

func contactPrompt(procedure string, slot availability.Slot) chat.Reply {
	return chat.Reply{Text: fmt.Sprintf(`✅ Выбрано время: %s
🎯 Процедура: %s

📝 Теперь укажите ваши контактные данные.

Напишите одним сообщением:
1. Ваше имя и фамилия
2. Номер телефона
3. Дополнительные пожелания (по желанию)

Пример:
Анна Петрова
+375 29 345-67-89
Предпочитаю утром, есть аллергия на йод`, slot.Display, procedure)}.Row(
		chat.Button{Text: "🔄 Изменить время", Action: ActionChangeTime},
	).Row(cancelButton)
}

func finalCheck(procedure string, slot availability.Slot, contact string) chat.Reply {
	return chat.Reply{Text: fmt.Sprintf(`📋 ПРОВЕРЬТЕ ДАННЫЕ ЗАПИСИ:

🎯 Процедура: %s
📅 Дата и время: %s
👤 Контактные данные:
%s

⚠️ Внимание: после подтверждения время будет забронировано в календаре косметолога.

Все данные верны?`, procedure, slot.Display, contact)}.Row(
		chat.Button{Text: "✅ Подтвердить запись", Action: ActionFinalConfirm},
		chat.Button{Text: "🔄 Изменить время", Action: ActionChangeTime},
	).Row(chat.Button{Text: "❌ Отменить", Action: ActionCancel})
}

func commitSuccess(info clinic.Info, procedure string, slot availability.Slot, res CommitResult) chat.Reply {
	status := "📞 Администратор свяжется с вами для подтверждения времени."
	if res.Outcome == OutcomeConfirmed {
		status = "🗓️ Запись добавлена в календарь косметолога!"
	}
	return chat.WithButtons(fmt.Sprintf(`✅ ЗАЯВКА НА ЗАПИСЬ ПРИНЯТА!

📋 ДЕТАЛИ ЗАЯВКИ:
🆔 Номер: #%d
🎯 Процедура: %s
📅 Дата и время: %s
%s

⏰ ЧТО ДАЛЬШЕ:
1. %s
2. Если нужно изменить или отменить запись, свяжитесь с нами.

📞 КОНТАКТЫ:
%s`, res.BookingID, procedure, slot.Display, status, nextStep(res), info.Phone), myBookingsButton, mainMenuButton)
}

// nextStep promises only the reminders that were actually scheduled.
func nextStep(res CommitResult) string {
	switch {
	case res.Outcome != OutcomeConfirmed:
		return "Администратор подтвердит время и свяжется с вами."
	case res.Duplicate:
		return "Эта заявка уже была принята ранее."
	case res.Reminders >= 2:
		return "Мы пришлем напоминания за день и за 2 часа до процедуры."
	case res.Reminders == 1:
		return "Мы пришлем напоминание за 2 часа до процедуры."
	default:
		return "Ждем вас в назначенное время."
	}
}

func slotOccupiedReply() chat.Reply {
	return ProcedureMenu("😔 К сожалению, это время только что было занято. Пожалуйста, начните процесс записи заново и выберите другой слот.")
}

func slotExpiredReply(slot availability.Slot) chat.Reply {
	return chat.Text(fmt.Sprintf("⌛ Время %s уже недоступно для записи. Загружаю актуальное расписание...", slot.Display))
}

func commitFailedReply(info clinic.Info, procedure string, slot availability.Slot, user string) chat.Reply {
	if user == "" {
		user = "не указано"
	}
	return ContactMenu(fmt.Sprintf(`😔 ОШИБКА ПРИ СОЗДАНИИ ЗАПИСИ
Произошла техническая ошибка. Ваша запись не была создана.

📞 Пожалуйста, свяжитесь с администратором:
%s

Сообщите следующие данные:
• Желаемое время: %s
• Процедура: %s
• Ваше имя: %s

Приносим извинения за неудобства!`, info.Phone, slot.Display, procedure, user))
}

func cancelledReply() chat.Reply {
	return chat.WithButtons("Запись отменена. Что вы хотели бы сделать дальше?", restartButton, mainMenuButton)
}

func staleReply() chat.Reply {
	return ProcedureMenu("⌛ Сессия записи устарела. Пожалуйста, выберите процедуру заново:")
}

func corruptReply() chat.Reply {
	return ProcedureMenu("⚠️ Не удалось восстановить данные записи. Пожалуйста, начните запись заново:")
}

func techErrorReply(info clinic.Info) chat.Reply {
	return ContactMenu(fmt.Sprintf("😔 Произошла техническая ошибка. Попробуйте еще раз через минуту или позвоните нам: %s", info.Phone))
}
