package booking

import (
	"strconv"
	"strings"
)

// Button actions understood by the booking flow.
const (
	ActionConfirm       = "confirm_booking"
	ActionCancel        = "cancel_booking"
	ActionRestart       = "restart_booking"
	ActionFinalConfirm  = "final_confirm_booking"
	ActionChangeTime    = "change_time"
	ActionMainMenu      = "main_menu"
	ActionMyBookings    = "my_bookings"
	ActionMyReminders   = "my_reminders"
	ActionNoop          = "noop"
	prefixBook          = "book:"
	prefixTimePage      = "time_page:"
	prefixTime          = "time:"
	prefixCancelEvent   = "cancel_event:"
	prefixConfirmCancel = "confirm_cancel:"
)

// ActionKind classifies a raw action string.
type ActionKind int

const (
	KindUnknown ActionKind = iota
	KindBook
	KindConfirm
	KindCancel
	KindRestart
	KindPage
	KindTime
	KindFinalConfirm
	KindChangeTime
	KindMainMenu
	KindMyBookings
	KindMyReminders
	KindCancelEvent
	KindConfirmCancel
	KindNoop
)

// Action is a parsed button action. Index is -1 when a numeric argument
// could not be parsed.
type Action struct {
	Kind    ActionKind
	Code    string
	Index   int
	EventID string
}

func BookAction(code string) string        { return prefixBook + code }
func PageAction(page int) string           { return prefixTimePage + strconv.Itoa(page) }
func TimeAction(index int) string          { return prefixTime + strconv.Itoa(index) }
func CancelEventAction(id string) string   { return prefixCancelEvent + id }
func ConfirmCancelAction(id string) string { return prefixConfirmCancel + id }

var fixedActions = map[string]ActionKind{
	ActionConfirm:      KindConfirm,
	ActionCancel:       KindCancel,
	ActionRestart:      KindRestart,
	ActionFinalConfirm: KindFinalConfirm,
	ActionChangeTime:   KindChangeTime,
	ActionMainMenu:     KindMainMenu,
	ActionMyBookings:   KindMyBookings,
	ActionMyReminders:  KindMyReminders,
	ActionNoop:         KindNoop,
}

// ParseAction decodes a button action.
func ParseAction(raw string) Action {
	raw = strings.TrimSpace(raw)
	if kind, ok := fixedActions[raw]; ok {
		return Action{Kind: kind, Index: -1}
	}
	switch {
	case strings.HasPrefix(raw, prefixBook):
		return Action{Kind: KindBook, Code: strings.TrimPrefix(raw, prefixBook), Index: -1}
	case strings.HasPrefix(raw, prefixTimePage):
		return Action{Kind: KindPage, Index: atoiOr(strings.TrimPrefix(raw, prefixTimePage), -1)}
	case strings.HasPrefix(raw, prefixTime):
		return Action{Kind: KindTime, Index: atoiOr(strings.TrimPrefix(raw, prefixTime), -1)}
	case strings.HasPrefix(raw, prefixCancelEvent):
		return Action{Kind: KindCancelEvent, EventID: strings.TrimPrefix(raw, prefixCancelEvent), Index: -1}
	case strings.HasPrefix(raw, prefixConfirmCancel):
		return Action{Kind: KindConfirmCancel, EventID: strings.TrimPrefix(raw, prefixConfirmCancel), Index: -1}
	}
	return Action{Kind: KindUnknown, Index: -1}
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
