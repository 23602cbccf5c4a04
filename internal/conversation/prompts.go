package conversation

import (
	"fmt"
	"strings"

	"github.com/wolfman30/cosmetology-assistant/internal/clinic"
	"github.com/wolfman30/cosmetology-assistant/internal/intent"
)

const basePromptTemplate = `Ты - вежливый ассистент клиники косметологии «%s».
Отвечай по-русски, кратко и по делу, без markdown-разметки.
Опирайся на контекст из базы знаний. Если информации нет, честно скажи об этом и предложи связаться с клиникой.
Не ставь диагнозы и не назначай лечение: окончательные рекомендации дает косметолог на консультации.
Контакты клиники: телефон %s, адрес %s, режим работы %s.`

var intentPrompts = map[intent.Intent]string{
	intent.Emergency: `СИТУАЦИЯ МОЖЕТ БЫТЬ ЭКСТРЕННОЙ.
Сначала посоветуй немедленно связаться с клиникой или вызвать скорую помощь (103) при сильной боли, отеке, затрудненном дыхании, кровотечении.
Дай только безопасные общие рекомендации до осмотра врачом. Не успокаивай клиента без оснований.`,
	intent.Consultation: `Клиент просит совет по процедурам или уходу.
Объясни, какие процедуры могут подойти и почему, упомяни противопоказания и предложи записаться на консультацию косметолога.`,
	intent.Booking: `Клиент хочет записаться.
Кратко опиши процедуру, если она названа, и подскажи, что записаться можно через кнопку «Записаться» или по телефону клиники.`,
	intent.Pricing: `Клиент спрашивает о стоимости.
Называй цены только из контекста. Если цены в контексте нет, скажи, что точную стоимость подскажет администратор, и дай телефон.`,
	intent.Aftercare: `Клиент спрашивает об уходе после процедуры.
Перечисли, что можно и чего нельзя делать, сроки восстановления и тревожные признаки, при которых нужно обратиться в клинику.`,
}

// Profile is what the assistant knows about the client.
type Profile struct {
	SkinType           string
	AgeGroup           string
	PreviousProcedures string
}

func (p *Profile) empty() bool {
	return p == nil || (p.SkinType == "" && p.AgeGroup == "" && p.PreviousProcedures == "")
}

func systemPrompt(info clinic.Info, in intent.Intent, profile *Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, basePromptTemplate, info.Name, info.Phone, valueOr(info.Address, "уточняйте по телефону"), info.WorkingHours)
	if extra, ok := intentPrompts[in]; ok {
		b.WriteString("\n\n")
		b.WriteString(extra)
	}
	if !profile.empty() {
		fmt.Fprintf(&b, "\n\nПРОФИЛЬ КЛИЕНТА:\nТип кожи: %s\nВозраст: %s\nПредыдущие процедуры: %s",
			valueOr(profile.SkinType, "не указан"),
			valueOr(profile.AgeGroup, "не указан"),
			valueOr(profile.PreviousProcedures, "нет данных"))
	}
	return b.String()
}

func userPrompt(message, context, quality string, in intent.Intent) string {
	if strings.TrimSpace(context) == "" {
		context = "Релевантная информация в базе знаний не найдена."
	}
	return fmt.Sprintf(`КАЧЕСТВО НАЙДЕННОЙ ИНФОРМАЦИИ: %s
КОНТЕКСТ ИЗ БАЗЫ ЗНАНИЙ:
%s

ВОПРОС КЛИЕНТА: %s
ВАЖНО: Если контекст пустой или нерелевантный, используй указания для намерения (%s) из системного промпта.`,
		quality, context, message, in)
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
