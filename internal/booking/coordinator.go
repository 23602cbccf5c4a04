package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/cosmetology-assistant/internal/apperr"
	"github.com/wolfman30/cosmetology-assistant/internal/availability"
	"github.com/wolfman30/cosmetology-assistant/internal/bookings"
	"github.com/wolfman30/cosmetology-assistant/internal/calendar"
	"github.com/wolfman30/cosmetology-assistant/internal/chat"
	"github.com/wolfman30/cosmetology-assistant/internal/events"
	"github.com/wolfman30/cosmetology-assistant/internal/notify"
	"github.com/wolfman30/cosmetology-assistant/internal/observability/metrics"
	"github.com/wolfman30/cosmetology-assistant/internal/reminders"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

// Outcome is the result of a commit attempt.
type Outcome string

const (
	OutcomeConfirmed    Outcome = "confirmed"
	OutcomePending      Outcome = "pending"
	OutcomeSlotOccupied Outcome = "slot_occupied"
	// OutcomeSlotExpired means the slot now starts inside the booking lead
	// time and the user must pick again from fresh availability.
	OutcomeSlotExpired Outcome = "slot_expired"
)

const (
	defaultCommitTimeout = 30 * time.Second
	defaultCommitLead    = 2 * time.Hour
)

// CommitRequest is everything needed to store one booking.
type CommitRequest struct {
	FlowID    string
	User      chat.User
	Procedure Procedure
	Slot      availability.Slot
	Contact   string
}

// CommitResult describes a committed booking. BookingID is zero for
// OutcomeSlotOccupied.
type CommitResult struct {
	Outcome   Outcome
	BookingID int64
	EventID   string
	Reminders int
	// Duplicate is set when the flow had already been committed.
	Duplicate bool
}

// BookingStore persists bookings exactly once per flow.
type BookingStore interface {
	FindByIdempotencyKey(ctx context.Context, key string) (*bookings.Booking, error)
	CreateBooking(ctx context.Context, nb bookings.NewBooking) (bookings.Booking, bool, error)
}

// ReminderScheduler creates reminders for a confirmed booking.
type ReminderScheduler interface {
	ScheduleForBooking(ctx context.Context, a reminders.Appointment) (int, error)
}

// OperatorNotifier alerts clinic staff.
type OperatorNotifier interface {
	BookingCreated(ctx context.Context, n notify.BookingNotice) error
	BookingFailed(ctx context.Context, n notify.FailureNotice) error
}

// Coordinator commits a finished flow: calendar event, booking row,
// operator alert, booking event and reminders, in that order.
type Coordinator struct {
	calendar  calendar.Client
	store     BookingStore
	reminders ReminderScheduler
	notifier  OperatorNotifier
	publisher events.Publisher
	metrics   *metrics.BotMetrics
	logger    *logging.Logger
	tracer    trace.Tracer
	now       func() time.Time
	timeout   time.Duration
	lead      time.Duration

	slotLocks sync.Map
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithCommitClock overrides the time source used for event timestamps.
func WithCommitClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCommitTimeout bounds one commit, which runs detached from the
// caller's cancellation.
func WithCommitTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCommitLeadTime sets how far ahead of now a slot must start to be
// booked. Zero allows any slot that has not started yet.
func WithCommitLeadTime(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d >= 0 {
			c.lead = d
		}
	}
}

// WithCommitMetrics records commit outcomes.
func WithCommitMetrics(m *metrics.BotMetrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// NewCoordinator wires the commit dependencies. A nil calendar makes every
// booking pending; a nil publisher disables events.
func NewCoordinator(cal calendar.Client, store BookingStore, sched ReminderScheduler, notifier OperatorNotifier, publisher events.Publisher, logger *logging.Logger, opts ...CoordinatorOption) *Coordinator {
	if store == nil {
		panic("booking: booking store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	c := &Coordinator{
		calendar:  cal,
		store:     store,
		reminders: sched,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer("cosmetology.internal.booking.commit"),
		now:       time.Now,
		timeout:   defaultCommitTimeout,
		lead:      defaultCommitLead,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) lockForSlot(start time.Time) *sync.Mutex {
	v, _ := c.slotLocks.LoadOrStore(start.UTC().Unix(), &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Commit stores the booking of one finished flow. Losing the slot race or
// the slot expiring is an outcome, not an error. Errors are categorized as
// fatal and the operator has already been alerted when one is returned.
//
// The flow state is gone by the time Commit runs, so it ignores the
// caller's cancellation and is bounded by the commit timeout instead.
func (c *Coordinator) Commit(ctx context.Context, req CommitRequest) (CommitResult, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "booking.commit")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("cosmetology.user_id", req.User.ID),
		attribute.String("cosmetology.procedure", req.Procedure.Code),
		attribute.String("cosmetology.slot_start", req.Slot.Start.UTC().Format(time.RFC3339)),
	)
	logger := c.logger.ForUser(req.User.ID).With("flow_id", req.FlowID)

	lock := c.lockForSlot(req.Slot.Start)
	lock.Lock()
	defer lock.Unlock()

	existing, err := c.store.FindByIdempotencyKey(ctx, req.FlowID)
	if err != nil {
		span.RecordError(err)
		return CommitResult{}, c.fail(ctx, req, logger, err)
	}
	if existing != nil {
		logger.Info("booking: flow already committed", "booking_id", existing.ID)
		return duplicateResult(*existing), nil
	}

	if earliest := c.now().Add(c.lead); req.Slot.Start.Before(earliest) {
		logger.Info("booking: slot no longer bookable", "slot", req.Slot.Display)
		c.metrics.ObserveCommit(string(OutcomeSlotExpired))
		return CommitResult{Outcome: OutcomeSlotExpired}, nil
	}

	eventID, calErr := c.createEvent(ctx, req)
	if errors.Is(calErr, calendar.ErrSlotOccupied) {
		logger.Info("booking: slot taken before commit", "slot", req.Slot.Display)
		c.metrics.ObserveCommit(string(OutcomeSlotOccupied))
		return CommitResult{Outcome: OutcomeSlotOccupied}, nil
	}
	if calErr != nil {
		logger.Warn("booking: calendar unavailable, booking left pending", "error", calErr)
	}

	status, outcome, notes := bookings.StatusConfirmed, OutcomeConfirmed, ""
	if eventID == "" {
		status, outcome, notes = bookings.StatusPending, OutcomePending, notify.ManualConfirmationNote
	}

	stored, created, err := c.store.CreateBooking(ctx, bookings.NewBooking{
		UserID:          req.User.ID,
		Procedure:       req.Procedure.Name,
		ContactInfo:     req.Contact,
		PreferredTime:   req.Slot.Display,
		Status:          status,
		Notes:           notes,
		CalendarEventID: eventID,
		CalendarSlot:    req.Slot.Start,
		IdempotencyKey:  req.FlowID,
	})
	if err != nil {
		span.RecordError(err)
		c.releaseEvent(ctx, logger, eventID)
		return CommitResult{}, c.fail(ctx, req, logger, err)
	}
	if !created {
		if stored.CalendarEventID == nil || *stored.CalendarEventID != eventID {
			c.releaseEvent(ctx, logger, eventID)
		}
		logger.Info("booking: flow committed concurrently", "booking_id", stored.ID)
		return duplicateResult(stored), nil
	}
	logger = logger.With("booking_id", stored.ID)

	if c.notifier != nil {
		if err := c.notifier.BookingCreated(ctx, notify.BookingNotice{
			BookingID: stored.ID,
			Confirmed: outcome == OutcomeConfirmed,
			User:      req.User,
			Procedure: req.Procedure.Name,
			Slot:      req.Slot.Display,
			Contact:   req.Contact,
			EventID:   eventID,
		}); err != nil {
			logger.Warn("booking: operator alert failed", "error", err)
		}
	}

	if err := c.publisher.Publish(ctx, events.BookingCreatedV1{
		BookingID:  stored.ID,
		UserID:     req.User.ID,
		Procedure:  req.Procedure.Code,
		Status:     string(status),
		SlotStart:  req.Slot.Start.UTC(),
		SlotEnd:    req.Slot.End.UTC(),
		CalendarID: eventID,
		FlowID:     req.FlowID,
		OccurredAt: c.now().UTC(),
	}); err != nil {
		logger.Warn("booking: publish event failed", "error", err)
	}

	result := CommitResult{Outcome: outcome, BookingID: stored.ID, EventID: eventID}
	if outcome == OutcomeConfirmed && c.reminders != nil {
		n, err := c.reminders.ScheduleForBooking(ctx, reminders.Appointment{
			UserID:    req.User.ID,
			BookingID: stored.ID,
			Procedure: req.Procedure.Name,
			Start:     req.Slot.Start,
		})
		if err != nil {
			logger.Warn("booking: schedule reminders failed", "error", err)
		}
		result.Reminders = n
	}

	c.metrics.ObserveCommit(string(outcome))
	logger.Info("booking: committed", "outcome", outcome, "event_id", eventID, "reminders", result.Reminders)
	return result, nil
}

func (c *Coordinator) createEvent(ctx context.Context, req CommitRequest) (string, error) {
	if c.calendar == nil {
		return "", calendar.ErrNotConfigured
	}
	name, phone := ParseContact(req.Contact)
	return c.calendar.CreateEvent(ctx, calendar.EventRequest{
		Start:       req.Slot.Start,
		End:         req.Slot.End,
		UserID:      req.User.ID,
		Username:    req.User.Username,
		ClientName:  name,
		ClientPhone: phone,
		Procedure:   req.Procedure.Name,
		Notes:       req.Contact,
	})
}

// releaseEvent removes an event whose booking row was not written.
func (c *Coordinator) releaseEvent(ctx context.Context, logger *logging.Logger, eventID string) {
	if eventID == "" || c.calendar == nil {
		return
	}
	if err := c.calendar.DeleteEvent(ctx, eventID); err != nil {
		logger.Error("booking: failed to release calendar event", "event_id", eventID, "error", err)
	}
}

func (c *Coordinator) fail(ctx context.Context, req CommitRequest, logger *logging.Logger, cause error) error {
	logger.Error("booking: commit failed", "error", cause)
	c.metrics.ObserveCommit("failed")
	if c.notifier != nil {
		if err := c.notifier.BookingFailed(ctx, notify.FailureNotice{
			User:      req.User,
			Procedure: req.Procedure.Name,
			Slot:      req.Slot.Display,
			Err:       cause,
		}); err != nil {
			logger.Warn("booking: failure alert not delivered", "error", err)
		}
	}
	return apperr.Fatal("booking: commit", fmt.Errorf("flow %s: %w", req.FlowID, cause))
}

func duplicateResult(b bookings.Booking) CommitResult {
	res := CommitResult{Outcome: OutcomePending, BookingID: b.ID, Duplicate: true}
	if b.Status == bookings.StatusConfirmed {
		res.Outcome = OutcomeConfirmed
	}
	if b.CalendarEventID != nil {
		res.EventID = *b.CalendarEventID
	}
	return res
}
