package conversation

import (
	"strings"
	"time"

	"github.com/wolfman30/cosmetology-assistant/internal/intent"
)

// Turn is one logged exchange.
type Turn struct {
	UserID        int64
	Message       string
	Response      string
	Intent        intent.Intent
	SearchResults int
	CreatedAt     time.Time
}

// FormatHistory renders turns (given newest first) oldest first. When the
// result exceeds maxRunes the oldest part is dropped at a line boundary.
func FormatHistory(newestFirst []Turn, maxRunes int) string {
	if len(newestFirst) == 0 {
		return ""
	}
	lines := make([]string, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		t := newestFirst[i]
		lines = append(lines, "Пользователь: "+t.Message+"\nБот: "+t.Response)
	}
	text := strings.Join(lines, "\n")

	runes := []rune(text)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return text
	}
	tail := string(runes[len(runes)-maxRunes:])
	if idx := strings.Index(tail, "\n"); idx >= 0 {
		tail = tail[idx+1:]
	}
	return tail
}
