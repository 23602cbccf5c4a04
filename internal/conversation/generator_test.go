package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/cosmetology-assistant/internal/clinic"
	"github.com/wolfman30/cosmetology-assistant/internal/intent"
	"github.com/wolfman30/cosmetology-assistant/internal/llm"
)

var testClinic = clinic.Info{
	Name:         "Эстетика",
	Phone:        "+375 29 111-22-33",
	Address:      "Минск, ул. Примерная, 1",
	WorkingHours: "Пн-Сб 09:00-18:00",
}

func noRetry() llm.RetryPolicy { return llm.RetryPolicy{MaxAttempts: 1} }

func TestGeneratorBuildsRequest(t *testing.T) {
	var captured llm.Request
	client := llm.ClientFunc(func(_ context.Context, req llm.Request) (llm.Response, error) {
		captured = req
		return llm.Response{Text: "## Ответ\n**Чистка** длится *час*"}, nil
	})
	g := NewGenerator(client, Models{Full: "full", Fast: "fast"}, noRetry(), testClinic, nil, nil)

	out := g.Generate(context.Background(), GenerateRequest{
		UserMessage: "сколько длится чистка",
		Context:     "Документ 1: Чистка\nчистка длится час",
		Intent:      intent.Emergency,
		Profile:     &Profile{SkinType: "dry"},
	})

	assert.Equal(t, "Ответ\nЧистка длится час", out)
	assert.Equal(t, "full", captured.Model)
	assert.Equal(t, int32(800), captured.MaxTokens)
	assert.InDelta(t, 0.7, captured.Temperature, 1e-6)
	require.Len(t, captured.System, 1)
	assert.Contains(t, captured.System[0], "Тип кожи: dry")
	assert.Contains(t, captured.System[0], "103")
	require.Len(t, captured.Messages, 1)
	assert.Contains(t, captured.Messages[0].Content, "КАЧЕСТВО НАЙДЕННОЙ ИНФОРМАЦИИ: СРЕДНЕЕ")
	assert.Contains(t, captured.Messages[0].Content, "ВОПРОС КЛИЕНТА: сколько длится чистка")
}

func TestGeneratorFastModelAndDefaultTokens(t *testing.T) {
	var captured llm.Request
	client := llm.ClientFunc(func(_ context.Context, req llm.Request) (llm.Response, error) {
		captured = req
		return llm.Response{Text: "ok"}, nil
	})
	g := NewGenerator(client, Models{Full: "full", Fast: "fast"}, noRetry(), testClinic, nil, nil)

	g.Generate(context.Background(), GenerateRequest{UserMessage: "цена", Intent: intent.Pricing, Fast: true})
	assert.Equal(t, "fast", captured.Model)
	assert.Equal(t, int32(600), captured.MaxTokens)
	assert.NotContains(t, captured.System[0], "ПРОФИЛЬ КЛИЕНТА")
	assert.Contains(t, captured.Messages[0].Content, "Релевантная информация в базе знаний не найдена.")
}

func TestGeneratorFallsBack(t *testing.T) {
	failing := llm.ClientFunc(func(context.Context, llm.Request) (llm.Response, error) {
		return llm.Response{}, errors.New("503")
	})
	g := NewGenerator(failing, Models{Full: "full"}, noRetry(), testClinic, nil, nil)

	out := g.Generate(context.Background(), GenerateRequest{UserMessage: "мне плохо", Intent: intent.Emergency})
	assert.Contains(t, out, "Скорая помощь: 103")
	assert.Contains(t, out, testClinic.Phone)

	empty := llm.ClientFunc(func(context.Context, llm.Request) (llm.Response, error) {
		return llm.Response{Text: "**"}, nil
	})
	out = NewGenerator(empty, Models{Full: "full"}, noRetry(), testClinic, nil, nil).
		Generate(context.Background(), GenerateRequest{UserMessage: "привет", Intent: intent.General})
	assert.Contains(t, out, "техническая ошибка")
}

func TestContextQuality(t *testing.T) {
	assert.Equal(t, QualityMissing, ContextQuality("  ", "вопрос"))
	assert.Equal(t, QualityMissing, ContextQuality(noResultsContext, "вопрос"))
	assert.Equal(t, QualityLow, ContextQuality("массаж лица", "цена пилинга"))
	assert.Equal(t, QualityMedium, ContextQuality("массаж лица", "массаж"))
	assert.Equal(t, QualityHigh, ContextQuality("чистка лица длится час", "чистка лица час"))
}

func TestFallbackReplyTopics(t *testing.T) {
	tests := []struct {
		message string
		in      intent.Intent
		want    string
	}{
		{"Сколько стоит пилинг", intent.General, "о ценах"},
		{"хочу записаться", intent.Booking, testClinic.Address},
		{"отек", intent.Emergency, "Скорая помощь: 103"},
		{"сильный отек, сколько ждать", intent.Emergency, "Скорая помощь: 103"},
		{"кровь не останавливается уже долгое время", intent.Emergency, "Скорая помощь: 103"},
		{"какая процедура нужна", intent.Consultation, "о процедурах"},
		{"привет", intent.General, "Попробуйте переформулировать"},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Contains(t, FallbackReply(testClinic, tt.in, tt.message), tt.want)
		})
	}
}

func TestStripMarkdown(t *testing.T) {
	assert.Equal(t, "Заголовок\nтекст жирный", StripMarkdown("### Заголовок\nтекст **жирный**"))
	assert.False(t, strings.Contains(StripMarkdown("*a*"), "*"))
}
