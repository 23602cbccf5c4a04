package dispatch

import (
	"fmt"

	"github.com/wolfman30/cosmetology-assistant/internal/booking"
	"github.com/wolfman30/cosmetology-assistant/internal/chat"
	"github.com/wolfman30/cosmetology-assistant/internal/clinic"
)

const (
	welcomeText = `👋 Добро пожаловать в %s!

Я - ваш AI-ассистент. Помогу с:
💬 Консультациями по процедурам
📅 Записью на прием
💰 Информацией о ценах
🆘 Экстренными вопросами

Просто напишите ваш вопрос или выберите в меню 👇`
	mainMenuText       = "Вы в главном меню. Воспользуйтесь кнопками ниже 👇"
	textLimitedText    = "⏳ Вы отправляете сообщения слишком часто. Пожалуйста, подождите минуту."
	bookingLimitedText = "⏳ Слишком много попыток записи. Пожалуйста, попробуйте через несколько минут."
)

func mainMenu(text string) chat.Reply {
	return chat.Reply{Text: text}.
		Row(chat.Button{Text: "📅 Записаться", Action: booking.ActionRestart}).
		Row(
			chat.Button{Text: "📋 Мои записи", Action: booking.ActionMyBookings},
			chat.Button{Text: "🔔 Мои напоминания", Action: booking.ActionMyReminders},
		)
}

func contactsReply(info clinic.Info) chat.Reply {
	text := fmt.Sprintf(`КОНТАКТЫ КЛИНИКИ:

📞 Телефон: %s
📍 Адрес: %s
🕐 Режим: %s`, info.Phone, info.Address, info.WorkingHours)
	return mainMenu(text)
}
