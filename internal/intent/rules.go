package intent

import (
	"regexp"
	"strings"
)

var keywords = map[Intent][]string{
	Pricing: {
		"цена", "стоимость", "прайс", "тариф", "расценка", "оплата", "сколько стоит", "прайслист",
		"сколько обойдется", "сколько будет стоить", "во сколько обойдется", "дорого ли", "цены на",
		"стоимость процедур", "сколько за", "цену на",
	},
	Booking: {
		"запись", "записаться", "назначить", "расписание", "прием", "окно", "время", "хочу прийти",
		"хочу записаться", "хочу на прием", "можно записаться", "когда можно прийти",
		"есть время", "свободное время", "график работы", "хочу попасть", "нужно попасть", "записать меня",
	},
	Emergency: {
		"кровь", "болит", "температура", "аллергия", "болеть", "боль", "покраснение", "сыпь",
		"шишка", "тошнить", "кровотечение", "отек", "опухло", "воспаление",
		"воспалилось", "жжение", "плохо себя чувствую", "уплотнение", "гной", "нагноение",
	},
}

// exclusions suppress the keyword match of a single intent.
var exclusions = map[Intent][]string{
	Pricing:   {"не важна цена", "цена не важна"},
	Emergency: {"не болит", "больше не болит"},
}

// keywordOrder puts emergency first so safety keywords are never shadowed.
var keywordOrder = []Intent{Emergency, Booking, Pricing}

// Word boundaries are spelled out because \b only understands ASCII.
const (
	wordStart = `(?:^|[^\p{L}\p{N}_])`
	wordEnd   = `(?:$|[^\p{L}\p{N}_])`
)

var patternSources = []struct {
	intent   Intent
	patterns []string
}{
	{Aftercare, []string{
		wordStart + `после\s+(?:процедур|чистк|пилинг|мезо|инъекц|ботокс|филлер)`,
		wordStart + `уход\s+после` + wordEnd,
		wordStart + `что\s+(?:можно|нельзя|делать)\s+после` + wordEnd,
		wordStart + `после\s+(?:сеанса|визита)\s+что` + wordEnd,
		wordStart + `реабилитация\s+после` + wordEnd,
		wordStart + `ограничения\s+после` + wordEnd,
		wordStart + `восстановление\s+после` + wordEnd,
		wordStart + `после\s+лазер`,
		wordStart + `после\s+шлифовк`,
	}},
	{Consultation, []string{
		wordStart + `какая\s+процедура\s+(?:лучше|подойдет|нужна)` + wordEnd,
		wordStart + `что\s+делать\s+с\s+(?:кожей|лицом|морщинами)` + wordEnd,
		wordStart + `как\s+избавиться\s+от` + wordEnd,
		wordStart + `что\s+посоветуете` + wordEnd,
		wordStart + `какой\s+уход` + wordEnd,
	}},
}

type compiledPatterns struct {
	intent   Intent
	patterns []*regexp.Regexp
}

var whitespace = regexp.MustCompile(`\s+`)

// Normalize lowercases, collapses whitespace and folds ё to е.
func Normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = whitespace.ReplaceAllString(text, " ")
	return strings.ReplaceAll(text, "ё", "е")
}

// Rules is the keyword and pattern classifier. It is safe for concurrent use.
type Rules struct {
	patterns []compiledPatterns
}

func NewRules() *Rules {
	r := &Rules{}
	for _, src := range patternSources {
		cp := compiledPatterns{intent: src.intent}
		for _, p := range src.patterns {
			cp.patterns = append(cp.patterns, regexp.MustCompile(`(?i)`+p))
		}
		r.patterns = append(r.patterns, cp)
	}
	return r
}

// Classify returns the rule-based intent and its confidence.
func (r *Rules) Classify(text string) (Intent, float64) {
	normalized := Normalize(text)
	if normalized == "" {
		return General, 0
	}
	got := r.match(normalized)
	return got, r.confidence(normalized, got)
}

func (r *Rules) match(text string) Intent {
	for _, candidate := range keywordOrder {
		if excluded(text, candidate) {
			continue
		}
		if containsAny(text, keywords[candidate]) {
			return candidate
		}
	}
	for _, cp := range r.patterns {
		for _, re := range cp.patterns {
			if re.MatchString(text) {
				return cp.intent
			}
		}
	}
	return Consultation
}

// Confidence scores text against one intent: 0.5 per keyword, +0.2 when the
// keyword stands alone, 0.6 per pattern, capped at 1.
func (r *Rules) Confidence(text string, target Intent) float64 {
	normalized := Normalize(text)
	if normalized == "" {
		return 0
	}
	return r.confidence(normalized, target)
}

func (r *Rules) confidence(text string, target Intent) float64 {
	score := 0.0
	padded := " " + text + " "
	for _, kw := range keywords[target] {
		if strings.Contains(text, kw) {
			score += 0.5
			if strings.Contains(padded, " "+kw+" ") {
				score += 0.2
			}
		}
	}
	for _, cp := range r.patterns {
		if cp.intent != target {
			continue
		}
		for _, re := range cp.patterns {
			if re.MatchString(text) {
				score += 0.6
			}
		}
	}
	if score > 1 {
		return 1
	}
	return score
}

func excluded(text string, candidate Intent) bool {
	return containsAny(text, exclusions[candidate])
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
