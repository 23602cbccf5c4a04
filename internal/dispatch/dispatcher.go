// Package dispatch routes chat updates to the booking flow, the my-bookings
// menu and the conversation pipeline.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/cosmetology-assistant/internal/booking"
	"github.com/wolfman30/cosmetology-assistant/internal/bookings"
	"github.com/wolfman30/cosmetology-assistant/internal/chat"
	"github.com/wolfman30/cosmetology-assistant/internal/clinic"
	"github.com/wolfman30/cosmetology-assistant/internal/conversation"
	"github.com/wolfman30/cosmetology-assistant/internal/intent"
	"github.com/wolfman30/cosmetology-assistant/internal/observability/metrics"
	"github.com/wolfman30/cosmetology-assistant/internal/ratelimit"
	"github.com/wolfman30/cosmetology-assistant/internal/reminders"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

// UserStore keeps chat user profiles.
type UserStore interface {
	UpsertUser(ctx context.Context, u chat.User) error
	GetUser(ctx context.Context, userID int64) (*bookings.User, error)
	PreviousProcedures(ctx context.Context, userID int64) ([]string, error)
}

// Conversation answers free text.
type Conversation interface {
	ProcessMessage(ctx context.Context, in conversation.Input) conversation.Result
}

// Limiter throttles users per category.
type Limiter interface {
	Allow(ctx context.Context, userID int64, cat ratelimit.Category) ratelimit.Result
}

// BookingFlow is the guided booking state machine.
type BookingFlow interface {
	Start(ctx context.Context, user chat.User, code string, profile *conversation.Profile) []chat.Reply
	ConfirmProcedure(ctx context.Context, user chat.User) []chat.Reply
	ShowPage(ctx context.Context, user chat.User, page int) []chat.Reply
	PickSlot(ctx context.Context, user chat.User, index int) []chat.Reply
	SubmitContact(ctx context.Context, user chat.User, text string) ([]chat.Reply, bool)
	ChangeTime(ctx context.Context, user chat.User) []chat.Reply
	FinalConfirm(ctx context.Context, user chat.User) []chat.Reply
	Cancel(ctx context.Context, user chat.User) []chat.Reply
	Restart(ctx context.Context, user chat.User) []chat.Reply
}

// Appointments lists and cancels upcoming bookings.
type Appointments interface {
	List(ctx context.Context, user chat.User) []chat.Reply
	AskCancel(ctx context.Context, user chat.User, eventID string) []chat.Reply
	ConfirmCancel(ctx context.Context, user chat.User, eventID string) []chat.Reply
}

// ReminderLister lists a user's reminders.
type ReminderLister interface {
	ListForUser(ctx context.Context, userID int64, limit int) ([]reminders.Reminder, error)
}

// Deps groups the dispatcher collaborators. Users, Limiter and Reminders
// may be nil.
type Deps struct {
	Users        UserStore
	Conversation Conversation
	Flow         BookingFlow
	Appointments Appointments
	Reminders    ReminderLister
	Limiter      Limiter
	Metrics      *metrics.BotMetrics
	Info         clinic.Info
}

// Dispatcher turns one update into replies.
type Dispatcher struct {
	deps   Deps
	logger *logging.Logger
}

// New panics when the conversation or booking flow is missing.
func New(deps Deps, logger *logging.Logger) *Dispatcher {
	if deps.Conversation == nil || deps.Flow == nil {
		panic("dispatch: conversation and booking flow are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{deps: deps, logger: logger}
}

// Handle processes one update from channel.
func (d *Dispatcher) Handle(ctx context.Context, channel string, u chat.Update) []chat.Reply {
	kind := "text"
	if u.IsAction() {
		kind = "action"
	}
	d.deps.Metrics.ObserveUpdate(kind, channel)

	if d.deps.Users != nil {
		if err := d.deps.Users.UpsertUser(ctx, u.User); err != nil {
			d.logger.ForUser(u.ID).Warn("dispatch: failed to store user", "error", err)
		}
	}
	if u.IsAction() {
		return d.handleAction(ctx, u.User, booking.ParseAction(u.Action))
	}
	return d.handleText(ctx, u.User, u.Text)
}

func (d *Dispatcher) allow(ctx context.Context, userID int64, cat ratelimit.Category) bool {
	if d.deps.Limiter == nil {
		return true
	}
	return d.deps.Limiter.Allow(ctx, userID, cat).Allowed
}

func (d *Dispatcher) handleAction(ctx context.Context, user chat.User, a booking.Action) []chat.Reply {
	flow := d.deps.Flow
	switch a.Kind {
	case booking.KindBook:
		if !d.allow(ctx, user.ID, ratelimit.CategoryBooking) {
			return []chat.Reply{chat.Text(bookingLimitedText)}
		}
		return flow.Start(ctx, user, a.Code, d.profile(ctx, user.ID))
	case booking.KindConfirm:
		return flow.ConfirmProcedure(ctx, user)
	case booking.KindPage:
		return flow.ShowPage(ctx, user, a.Index)
	case booking.KindTime:
		return flow.PickSlot(ctx, user, a.Index)
	case booking.KindChangeTime:
		return flow.ChangeTime(ctx, user)
	case booking.KindFinalConfirm:
		return flow.FinalConfirm(ctx, user)
	case booking.KindCancel:
		return flow.Cancel(ctx, user)
	case booking.KindRestart:
		return flow.Restart(ctx, user)
	case booking.KindMainMenu:
		return []chat.Reply{mainMenu(mainMenuText)}
	case booking.KindMyBookings:
		if d.deps.Appointments == nil {
			return []chat.Reply{contactsReply(d.deps.Info)}
		}
		return d.deps.Appointments.List(ctx, user)
	case booking.KindCancelEvent:
		if d.deps.Appointments == nil {
			return []chat.Reply{contactsReply(d.deps.Info)}
		}
		return d.deps.Appointments.AskCancel(ctx, user, a.EventID)
	case booking.KindConfirmCancel:
		if d.deps.Appointments == nil {
			return []chat.Reply{contactsReply(d.deps.Info)}
		}
		return d.deps.Appointments.ConfirmCancel(ctx, user, a.EventID)
	case booking.KindMyReminders:
		return d.listReminders(ctx, user.ID)
	case booking.KindNoop:
		return nil
	}
	d.logger.ForUser(user.ID).Warn("dispatch: unknown action")
	return []chat.Reply{mainMenu("🤔 Неизвестная команда. Воспользуйтесь меню 👇")}
}

func (d *Dispatcher) handleText(ctx context.Context, user chat.User, text string) []chat.Reply {
	switch strings.TrimSpace(text) {
	case "/start":
		return []chat.Reply{mainMenu(fmt.Sprintf(welcomeText, d.deps.Info.Name))}
	case "/menu":
		return []chat.Reply{mainMenu(mainMenuText)}
	case "/contacts":
		return []chat.Reply{contactsReply(d.deps.Info)}
	}

	if !d.allow(ctx, user.ID, ratelimit.CategoryText) {
		return []chat.Reply{chat.Text(textLimitedText)}
	}
	if replies, handled := d.deps.Flow.SubmitContact(ctx, user, text); handled {
		return replies
	}

	res := d.deps.Conversation.ProcessMessage(ctx, conversation.Input{
		UserID:  user.ID,
		Text:    text,
		Profile: d.profile(ctx, user.ID),
	})
	return d.withKeyboard(res)
}

// withKeyboard attaches the buttons matching the detected intent.
func (d *Dispatcher) withKeyboard(res conversation.Result) []chat.Reply {
	switch res.Intent {
	case intent.Booking:
		return []chat.Reply{chat.Text(res.Text), booking.ProcedureMenu("")}
	case intent.Emergency:
		return []chat.Reply{chat.Text(res.Text), contactsReply(d.deps.Info)}
	case intent.Consultation, intent.Pricing:
		return []chat.Reply{chat.WithButtons(res.Text,
			chat.Button{Text: "📅 Записаться", Action: booking.ActionRestart},
			chat.Button{Text: "🏠 Главное меню", Action: booking.ActionMainMenu},
		)}
	}
	return []chat.Reply{chat.WithButtons(res.Text, chat.Button{Text: "🏠 Главное меню", Action: booking.ActionMainMenu})}
}

// profile loads personalization hints. Lookup failures yield nil.
func (d *Dispatcher) profile(ctx context.Context, userID int64) *conversation.Profile {
	if d.deps.Users == nil {
		return nil
	}
	logger := d.logger.ForUser(userID)
	u, err := d.deps.Users.GetUser(ctx, userID)
	if err != nil {
		logger.Warn("dispatch: failed to load profile", "error", err)
		return nil
	}
	previous, err := d.deps.Users.PreviousProcedures(ctx, userID)
	if err != nil {
		logger.Warn("dispatch: failed to load previous procedures", "error", err)
	}
	if u == nil && len(previous) == 0 {
		return nil
	}
	p := &conversation.Profile{PreviousProcedures: strings.Join(previous, ", ")}
	if u != nil {
		p.SkinType, p.AgeGroup = u.SkinType, u.AgeGroup
	}
	return p
}

func (d *Dispatcher) listReminders(ctx context.Context, userID int64) []chat.Reply {
	if d.deps.Reminders == nil {
		return []chat.Reply{mainMenu(reminders.FormatList(nil, d.deps.Info.Location))}
	}
	list, err := d.deps.Reminders.ListForUser(ctx, userID, 20)
	if err != nil {
		d.logger.ForUser(userID).Error("dispatch: failed to list reminders", "error", err)
		return []chat.Reply{mainMenu("😔 Не удалось загрузить напоминания. Попробуйте позже.")}
	}
	return []chat.Reply{mainMenu(reminders.FormatList(list, d.deps.Info.Location))}
}
