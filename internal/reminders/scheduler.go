package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

// Creator persists new reminders.
type Creator interface {
	Create(ctx context.Context, r *Reminder) error
}

// Appointment is the confirmed booking reminders are scheduled for.
type Appointment struct {
	UserID    int64
	BookingID int64
	Procedure string
	Start     time.Time
}

// Scheduler creates the day-before and two-hours-before reminders of a
// confirmed booking. Reminders whose fire time is not in the future are
// skipped.
type Scheduler struct {
	store  Creator
	loc    *time.Location
	now    func() time.Time
	types  []Type
	logger *logging.Logger
}

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock overrides the time source.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScheduler creates a scheduler rendering times in loc.
func NewScheduler(store Creator, loc *time.Location, logger *logging.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		store:  store,
		loc:    loc,
		now:    time.Now,
		types:  []Type{TypeDayBefore, TypeHourBefore},
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plan returns the reminders that would be created for a, without storing them.
func (s *Scheduler) Plan(a Appointment) []Reminder {
	now := s.now().UTC()
	start := a.Start.In(s.loc)
	var out []Reminder
	for _, t := range s.types {
		fireAt := a.Start.UTC().Add(-t.Lead())
		if !fireAt.After(now) {
			continue
		}
		out = append(out, Reminder{
			UserID:        a.UserID,
			BookingID:     a.BookingID,
			Type:          t,
			ScheduledTime: fireAt,
			MessageText:   MessageText(t, a.Procedure, start),
			Status:        StatusPending,
		})
	}
	return out
}

// ScheduleForBooking stores the planned reminders and returns how many were created.
func (s *Scheduler) ScheduleForBooking(ctx context.Context, a Appointment) (int, error) {
	if s.store == nil {
		return 0, fmt.Errorf("reminders: schedule: store not configured")
	}
	planned := s.Plan(a)
	created := 0
	for i := range planned {
		if err := s.store.Create(ctx, &planned[i]); err != nil {
			return created, fmt.Errorf("reminders: schedule %s: %w", planned[i].Type, err)
		}
		created++
	}
	s.logger.ForUser(a.UserID).Info("reminders scheduled", "booking_id", a.BookingID, "count", created)
	return created, nil
}
