package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/cosmetology-assistant/internal/calendar"
	"github.com/wolfman30/cosmetology-assistant/internal/chat"
	"github.com/wolfman30/cosmetology-assistant/internal/clinic"
	"github.com/wolfman30/cosmetology-assistant/internal/events"
	"github.com/wolfman30/cosmetology-assistant/internal/notify"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

// EventCanceller cancels stored rows tied to a calendar event.
type EventCanceller interface {
	CancelByEvent(ctx context.Context, eventID string) (int64, error)
}

// CancelNotifier alerts the operator about a cancellation.
type CancelNotifier interface {
	BookingCancelled(ctx context.Context, n notify.CancelNotice) error
}

// Appointments lists and cancels a user's upcoming calendar bookings.
type Appointments struct {
	calendar  calendar.Client
	bookings  EventCanceller
	reminders EventCanceller
	notifier  CancelNotifier
	publisher events.Publisher
	info      clinic.Info
	logger    *logging.Logger
	now       func() time.Time
}

// NewAppointments wires the my-bookings menu. A nil calendar disables it.
func NewAppointments(cal calendar.Client, bookingStore, reminderStore EventCanceller, notifier CancelNotifier, publisher events.Publisher, info clinic.Info, logger *logging.Logger) *Appointments {
	if logger == nil {
		logger = logging.Default()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Appointments{
		calendar:  cal,
		bookings:  bookingStore,
		reminders: reminderStore,
		notifier:  notifier,
		publisher: publisher,
		info:      info,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source.
func (a *Appointments) WithClock(now func() time.Time) *Appointments {
	if now != nil {
		a.now = now
	}
	return a
}

func (a *Appointments) location() *time.Location {
	if a.info.Location != nil {
		return a.info.Location
	}
	return time.UTC
}

func (a *Appointments) findEvent(ctx context.Context, userID int64, eventID string) (*calendar.Event, error) {
	list, err := a.calendar.ListEventsForUser(ctx, userID, a.now())
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID == eventID {
			return &list[i], nil
		}
	}
	return nil, nil
}

// List shows upcoming bookings with a cancel button for each.
func (a *Appointments) List(ctx context.Context, user chat.User) []chat.Reply {
	if a.calendar == nil {
		return []chat.Reply{ContactMenu(fmt.Sprintf("📋 Чтобы узнать о ваших записях, свяжитесь с администратором: %s", a.info.Phone))}
	}
	list, err := a.calendar.ListEventsForUser(ctx, user.ID, a.now())
	if err != nil {
		a.logger.ForUser(user.ID).Error("booking: list user events failed", "error", err)
		return []chat.Reply{techErrorReply(a.info)}
	}
	if len(list) == 0 {
		return []chat.Reply{chat.WithButtons("📭 У вас нет предстоящих записей.", restartButton, mainMenuButton)}
	}

	loc := a.location()
	var b strings.Builder
	b.WriteString("📋 Ваши предстоящие записи:\n")
	reply := chat.Reply{}
	for i, ev := range list {
		when := ev.Start.In(loc).Format("02.01.2006 15:04")
		fmt.Fprintf(&b, "\n%d. %s\n   📅 %s", i+1, ev.Procedure, when)
		reply = reply.Row(chat.Button{Text: fmt.Sprintf("❌ Отменить %s", when), Action: CancelEventAction(ev.ID)})
	}
	reply.Text = b.String()
	return []chat.Reply{reply.Row(mainMenuButton)}
}

// AskCancel asks the user to confirm cancelling one booking.
func (a *Appointments) AskCancel(ctx context.Context, user chat.User, eventID string) []chat.Reply {
	if a.calendar == nil {
		return a.List(ctx, user)
	}
	ev, err := a.findEvent(ctx, user.ID, eventID)
	if err != nil {
		a.logger.ForUser(user.ID).Error("booking: lookup event failed", "event_id", eventID, "error", err)
		return []chat.Reply{techErrorReply(a.info)}
	}
	if ev == nil {
		return []chat.Reply{chat.WithButtons("ℹ️ Запись не найдена или уже отменена.", myBookingsButton, mainMenuButton)}
	}
	text := fmt.Sprintf("Отменить запись?\n\n🎯 %s\n📅 %s", ev.Procedure, ev.Start.In(a.location()).Format("02.01.2006 15:04"))
	return []chat.Reply{chat.Reply{Text: text}.Row(
		chat.Button{Text: "✅ Да, отменить", Action: ConfirmCancelAction(ev.ID)},
		chat.Button{Text: "↩️ Назад", Action: ActionMyBookings},
	)}
}

// ConfirmCancel deletes the calendar event and cancels the stored booking
// and its pending reminders. Repeating it is harmless.
func (a *Appointments) ConfirmCancel(ctx context.Context, user chat.User, eventID string) []chat.Reply {
	if a.calendar == nil {
		return a.List(ctx, user)
	}
	logger := a.logger.ForUser(user.ID).With("event_id", eventID)
	ev, err := a.findEvent(ctx, user.ID, eventID)
	if err != nil {
		logger.Error("booking: lookup event failed", "error", err)
		return []chat.Reply{techErrorReply(a.info)}
	}
	if ev == nil {
		return []chat.Reply{chat.WithButtons("ℹ️ Запись не найдена или уже отменена.", myBookingsButton, mainMenuButton)}
	}
	if err := a.calendar.DeleteEvent(ctx, eventID); err != nil {
		logger.Error("booking: delete event failed", "error", err)
		return []chat.Reply{techErrorReply(a.info)}
	}
	// The event is gone: the bookkeeping below must finish even if the
	// caller goes away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultCommitTimeout)
	defer cancel()

	var cancelled, remindersCancelled int64
	if a.bookings != nil {
		if cancelled, err = a.bookings.CancelByEvent(ctx, eventID); err != nil {
			logger.Error("booking: cancel stored booking failed", "error", err)
		}
	}
	if a.reminders != nil {
		if remindersCancelled, err = a.reminders.CancelByEvent(ctx, eventID); err != nil {
			logger.Error("booking: cancel reminders failed", "error", err)
		}
	}
	if a.notifier != nil {
		if err := a.notifier.BookingCancelled(ctx, notify.CancelNotice{
			User:      user,
			EventID:   eventID,
			Summary:   ev.Procedure,
			Start:     ev.Start,
			Cancelled: cancelled,
		}); err != nil {
			logger.Warn("booking: cancel alert failed", "error", err)
		}
	}
	if err := a.publisher.Publish(ctx, events.BookingCancelledV1{
		UserID:             user.ID,
		CalendarEventID:    eventID,
		BookingsCancelled:  cancelled,
		RemindersCancelled: remindersCancelled,
		OccurredAt:         a.now().UTC(),
	}); err != nil {
		logger.Warn("booking: publish cancel event failed", "error", err)
	}
	logger.Info("booking: cancelled by user", "bookings", cancelled, "reminders", remindersCancelled)

	text := fmt.Sprintf("✅ Запись на %s (%s) отменена.", ev.Procedure, ev.Start.In(a.location()).Format("02.01.2006 15:04"))
	return []chat.Reply{chat.WithButtons(text, myBookingsButton, mainMenuButton)}
}
