package conversation

import (
	"strings"
	"unicode"
)

const (
	maxModelInput   = 2000
	maxDisplayInput = 500
)

// SanitizeForModel collapses whitespace and caps the text at 2000 runes.
func SanitizeForModel(text string) string {
	return truncateRunes(strings.Join(strings.Fields(text), " "), maxModelInput)
}

// SanitizeForDisplay also drops control characters and caps at 500 runes.
func SanitizeForDisplay(text string) string {
	printable := strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, text)
	return truncateRunes(strings.Join(strings.Fields(printable), " "), maxDisplayInput)
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
