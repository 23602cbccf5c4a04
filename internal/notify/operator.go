// Package notify delivers operator alerts about bookings over chat and email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/cosmetology-assistant/internal/chat"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

// ManualConfirmationNote marks bookings the operator has to confirm by hand.
const ManualConfirmationNote = "⚠️ Требует ручного подтверждения времени! (Ошибка календаря)"

// ChatSender delivers a reply to a chat user.
type ChatSender interface {
	SendText(ctx context.Context, userID int64, reply chat.Reply) error
}

// Config selects where operator alerts go. Zero values disable a channel.
type Config struct {
	OperatorChatID int64
	OperatorEmail  string
}

// BookingNotice describes a stored booking.
type BookingNotice struct {
	BookingID int64
	Confirmed bool
	User      chat.User
	Procedure string
	Slot      string
	Contact   string
	EventID   string
}

// FailureNotice describes a booking that could not be stored.
type FailureNotice struct {
	User      chat.User
	Procedure string
	Slot      string
	Err       error
}

// CancelNotice describes a booking cancelled by the user.
type CancelNotice struct {
	User      chat.User
	EventID   string
	Summary   string
	Start     time.Time
	Cancelled int64
}

// PendingItem is one row of the pending-bookings digest.
type PendingItem struct {
	BookingID int64
	UserID    int64
	Procedure string
	Slot      string
	Contact   string
	CreatedAt time.Time
}

// Service sends operator alerts. Every method is best effort for the
// caller: failures are logged and returned, never panicking on a missing
// channel.
type Service struct {
	chat   ChatSender
	email  EmailSender
	cfg    Config
	logger *logging.Logger
}

// NewService creates an operator notification service.
func NewService(chatSender ChatSender, email EmailSender, cfg Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{chat: chatSender, email: email, cfg: cfg, logger: logger}
}

// BookingCreated alerts the operator about a new booking request.
func (s *Service) BookingCreated(ctx context.Context, n BookingNotice) error {
	calendarInfo := ManualConfirmationNote
	if n.Confirmed {
		calendarInfo = "🗓️ ID события: " + n.EventID
	}
	text := fmt.Sprintf(`📅 НОВАЯ ЗАЯВКА #%d

👤 Клиент: %s
🎯 Процедура: %s
📅 Время: %s
📞 Контакты: %s
%s`, n.BookingID, userLabel(n.User), n.Procedure, n.Slot, n.Contact, calendarInfo)

	subject := fmt.Sprintf("Новая заявка #%d: %s", n.BookingID, n.Procedure)
	if !n.Confirmed {
		subject += " (требует подтверждения)"
	}
	return s.deliver(ctx, "booking_created", subject, text)
}

// BookingFailed alerts the operator about a booking that crashed mid-commit.
func (s *Service) BookingFailed(ctx context.Context, n FailureNotice) error {
	errText := "unknown"
	if n.Err != nil {
		errText = n.Err.Error()
	}
	text := fmt.Sprintf(`🚨 Критическая ошибка у пользователя при записи!

• Пользователь: %s (ID: %d)
• Процедура: %s
• Время: %s
• Ошибка: %s

Пожалуйста, проверьте логи. Возможно, стоит связаться с клиентом.`, userLabel(n.User), n.User.ID, n.Procedure, n.Slot, errText)
	return s.deliver(ctx, "booking_failed", "Ошибка при создании записи", text)
}

// BookingCancelled alerts the operator that a user cancelled a booking.
func (s *Service) BookingCancelled(ctx context.Context, n CancelNotice) error {
	text := fmt.Sprintf(`❌ ОТМЕНА ЗАПИСИ

👤 Клиент: %s (ID: %d)
📋 %s
📅 %s
🗓️ ID события: %s`, userLabel(n.User), n.User.ID, n.Summary, n.Start.Format("02.01.2006 15:04"), n.EventID)
	return s.deliver(ctx, "booking_cancelled", "Отмена записи", text)
}

// PendingDigest sends the list of bookings still awaiting confirmation.
// An empty list sends nothing.
func (s *Service) PendingDigest(ctx context.Context, items []PendingItem) error {
	if len(items) == 0 {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Заявки без подтверждения: %d\n", len(items))
	for _, it := range items {
		fmt.Fprintf(&b, "\n#%d • %s • %s\n📞 %s\n", it.BookingID, it.Procedure, it.Slot, strings.ReplaceAll(it.Contact, "\n", ", "))
	}
	return s.deliver(ctx, "pending_digest", fmt.Sprintf("Заявки без подтверждения (%d)", len(items)), strings.TrimRight(b.String(), "\n"))
}

func (s *Service) deliver(ctx context.Context, kind, subject, text string) error {
	var errs []error
	sent := false
	if s.chat != nil && s.cfg.OperatorChatID != 0 {
		if err := s.chat.SendText(ctx, s.cfg.OperatorChatID, chat.Text(text)); err != nil {
			s.logger.Error("operator chat alert failed", "kind", kind, "error", err)
			errs = append(errs, fmt.Errorf("chat: %w", err))
		} else {
			sent = true
		}
	}
	if s.email != nil && s.cfg.OperatorEmail != "" {
		msg := EmailMessage{
			To:      s.cfg.OperatorEmail,
			Subject: subject,
			Body:    text,
			HTML:    "<pre>" + html.EscapeString(text) + "</pre>",
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("operator email alert failed", "kind", kind, "error", err)
			errs = append(errs, fmt.Errorf("email: %w", err))
		} else {
			sent = true
		}
	}
	if !sent && len(errs) == 0 {
		s.logger.Warn("no operator channel configured", "kind", kind)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %s: %w", kind, errors.Join(errs...))
	}
	return nil
}

func userLabel(u chat.User) string {
	name := u.DisplayName()
	if name == "" {
		name = fmt.Sprintf("ID %d", u.ID)
	}
	if u.Username != "" && !strings.HasPrefix(name, "@") {
		name += " (@" + u.Username + ")"
	}
	return name
}
