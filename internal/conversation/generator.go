package conversation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/wolfman30/cosmetology-assistant/internal/clinic"
	"github.com/wolfman30/cosmetology-assistant/internal/intent"
	"github.com/wolfman30/cosmetology-assistant/internal/llm"
	"github.com/wolfman30/cosmetology-assistant/internal/observability/metrics"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

// Context quality grades shown to the model.
const (
	QualityMissing = "ОТСУТСТВУЕТ"
	QualityLow     = "НИЗКОЕ"
	QualityMedium  = "СРЕДНЕЕ"
	QualityHigh    = "ВЫСОКОЕ"
)

// NotFoundMarker is embedded in the context when search returns nothing.
const NotFoundMarker = "не найдено релевантной информации"

// Models names the full and fast model ids.
type Models struct {
	Full string
	Fast string
}

// GenerateRequest is one answer-generation call.
type GenerateRequest struct {
	UserMessage string
	Context     string
	Intent      intent.Intent
	Profile     *Profile
	// Fast selects the cheaper model.
	Fast bool
}

// Generator produces grounded answers. It never fails: when the model is
// unavailable after retries it returns a canned reply for the intent.
type Generator struct {
	client  llm.Client
	models  Models
	retry   llm.RetryPolicy
	clinic  clinic.Info
	metrics *metrics.BotMetrics
	logger  *logging.Logger
}

func NewGenerator(client llm.Client, models Models, retry llm.RetryPolicy, info clinic.Info, m *metrics.BotMetrics, logger *logging.Logger) *Generator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Generator{client: client, models: models, retry: retry, clinic: info, metrics: m, logger: logger}
}

func (g *Generator) Generate(ctx context.Context, req GenerateRequest) string {
	model := g.models.Full
	if req.Fast && g.models.Fast != "" {
		model = g.models.Fast
	}
	maxTokens := int32(600)
	if req.Intent == intent.Emergency {
		maxTokens = 800
	}
	llmReq := llm.Request{
		Model:  model,
		System: []string{systemPrompt(g.clinic, req.Intent, req.Profile)},
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: userPrompt(req.UserMessage, req.Context, ContextQuality(req.Context, req.UserMessage), req.Intent),
		}},
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	}

	start := time.Now()
	var resp llm.Response
	err := g.retry.Do(ctx, "conversation: generate", func(ctx context.Context) error {
		var err error
		resp, err = g.client.Complete(ctx, llmReq)
		return err
	})
	g.metrics.ObserveLLMLatency("generate", time.Since(start).Seconds(), err)
	if err != nil {
		g.logger.Error("conversation: generation failed, using fallback", "intent", req.Intent, "error", err)
		return FallbackReply(g.clinic, req.Intent, req.UserMessage)
	}
	text := strings.TrimSpace(StripMarkdown(resp.Text))
	if text == "" {
		g.logger.Warn("conversation: model returned empty text", "intent", req.Intent)
		return FallbackReply(g.clinic, req.Intent, req.UserMessage)
	}
	return text
}

// ContextQuality grades context by word overlap with the question.
func ContextQuality(context, message string) string {
	if strings.TrimSpace(context) == "" || strings.Contains(context, NotFoundMarker) {
		return QualityMissing
	}
	contextWords := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(context)) {
		contextWords[w] = struct{}{}
	}
	overlap := 0
	seen := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(message)) {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := contextWords[w]; ok {
			overlap++
		}
	}
	switch {
	case overlap >= 3:
		return QualityHigh
	case overlap >= 1:
		return QualityMedium
	default:
		return QualityLow
	}
}

var headingPrefix = regexp.MustCompile(`(?m)^#+\s+`)

// StripMarkdown removes emphasis markers and heading prefixes.
func StripMarkdown(text string) string {
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "*", "")
	return headingPrefix.ReplaceAllString(text, "")
}

// FallbackReply picks a canned answer. Emergencies always get the
// emergency reply; other messages are matched by topic first, then intent.
func FallbackReply(info clinic.Info, in intent.Intent, message string) string {
	lower := strings.ToLower(message)
	switch {
	case in == intent.Emergency:
		return fmt.Sprintf(`🚨 ТЕХНИЧЕСКИЙ СБОЙ, НО ВАША СИТУАЦИЯ ТРЕБУЕТ ВНИМАНИЯ!

📞 ОБРАЩАЙТЕСЬ НЕМЕДЛЕННО:
Клиника: %s
Скорая помощь: 103

⚠️ При экстренных проблемах после косметологических процедур звоните в клинику или обращайтесь к врачу лично!`,
			info.Phone)
	case containsAny(lower, "цена", "стоимость", "сколько"):
		return fmt.Sprintf(`💰 Произошла техническая ошибка при получении информации о ценах.

📞 Актуальные цены уточняйте:
Телефон: %s
🕐 Режим работы: %s

💡 Также можете записаться на бесплатную консультацию, где врач подберет процедуры и озвучит стоимость.`,
			info.Phone, info.WorkingHours)
	case containsAny(lower, "запись", "записаться", "время"):
		return fmt.Sprintf(`📅 Произошла техническая ошибка системы записи.

📞 Для записи звоните напрямую:
Телефон: %s

🕐 Режим работы: %s
📍 Адрес: %s

Администратор подберет удобное время и подготовит к визиту.`,
			info.Phone, info.WorkingHours, info.Address)
	case containsAny(lower, "процедур", "косметолог", "консультация"):
		return fmt.Sprintf(`💬 Технический сбой при поиске информации о процедурах.

📞 Для детальной консультации:
Телефон: %s

👩‍⚕️ Наши косметологи подберут процедуры для вашего типа кожи и ответят на все вопросы.

🕐 Режим: %s`,
			info.Phone, info.WorkingHours)
	default:
		return fmt.Sprintf(`😔 Произошла техническая ошибка при обработке вашего запроса.

📞 Для получения помощи:
Телефон: %s
🕐 Режим работы: %s

Попробуйте переформулировать вопрос или обратитесь по телефону.`,
			info.Phone, info.WorkingHours)
	}
}

func containsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
