package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRulesClassify(t *testing.T) {
	rules := NewRules()

	tests := []struct {
		name string
		text string
		want Intent
	}{
		{"pricing exclusion falls through to consultation", "Цена не важна, что посоветуете?", Consultation},
		{"emergency wins over booking", "Хочу записаться, у меня болит щека", Emergency},
		{"emergency wins over pricing", "сколько стоит, если сыпь после чистки", Emergency},
		{"pricing keyword", "Сколько стоит чистка лица?", Pricing},
		{"booking keyword", "Есть свободное время в пятницу?", Booking},
		{"emergency negation allows booking", "Больше не болит, можно записаться?", Booking},
		{"aftercare pattern", "Что можно делать после чистки?", Aftercare},
		{"aftercare uppercase", "УХОД ПОСЛЕ ПИЛИНГА", Aftercare},
		{"consultation pattern", "Какой уход нужен для кожи", Consultation},
		{"default consultation", "Привет", Consultation},
		{"yo folded", "Отёк после процедуры", Emergency},
		{"empty is general", "   ", General},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := rules.Classify(tt.text)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRulesConfidence(t *testing.T) {
	rules := NewRules()

	tests := []struct {
		name   string
		text   string
		intent Intent
		want   float64
	}{
		{"standalone keyword", "цена", Pricing, 0.7},
		{"standalone phrase", "сколько стоит чистка", Pricing, 0.7},
		{"substring only", "стоимостью", Pricing, 0.5},
		{"capped", "цена стоимость прайс", Pricing, 1.0},
		{"single pattern", "что нельзя после", Aftercare, 0.6},
		{"no match", "добрый день", Booking, 0},
		{"empty", "", Emergency, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, rules.Confidence(tt.text, tt.intent), 1e-9)
		})
	}
}

func TestEmergencyPriorityAcrossKeywords(t *testing.T) {
	rules := NewRules()
	others := append(append([]string{}, keywords[Booking]...), keywords[Pricing]...)

	for _, emergency := range keywords[Emergency] {
		for _, other := range others {
			text := other + " " + emergency
			got, confidence := rules.Classify(text)
			if !assert.Equal(t, Emergency, got, "text %q", text) {
				return
			}
			assert.GreaterOrEqual(t, confidence, Emergency.Threshold())
		}
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "отек после чистки", Normalize("  ОТЁК \n\t после   чистки "))
}

func TestParse(t *testing.T) {
	assert.Equal(t, Booking, Parse(" Booking.\n"))
	assert.Equal(t, Aftercare, Parse("aftercare"))
	assert.Equal(t, General, Parse("не знаю"))
	assert.Equal(t, General, Parse(""))
}
