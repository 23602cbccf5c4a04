package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/cosmetology-assistant/internal/apperr"
	"github.com/wolfman30/cosmetology-assistant/internal/calendar"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// BusySource is the part of calendar.Client the engine needs.
type BusySource interface {
	ListBusy(ctx context.Context, start, end time.Time) ([]calendar.Interval, error)
}

// Schedule is the clinic's working-hours grid.
type Schedule struct {
	WorkStartHour int
	WorkEndHour   int
	WorkDays      map[time.Weekday]bool
	Interval      time.Duration
	LeadTime      time.Duration
	// CutoffHour moves the window to the next working morning once the
	// local clock passes it.
	CutoffHour int
	MaxSlots   int
}

// DefaultSchedule is Monday to Saturday, 09:00 to 18:00, hourly slots.
func DefaultSchedule() Schedule {
	return Schedule{
		WorkStartHour: 9,
		WorkEndHour:   18,
		WorkDays: map[time.Weekday]bool{
			time.Monday:    true,
			time.Tuesday:   true,
			time.Wednesday: true,
			time.Thursday:  true,
			time.Friday:    true,
			time.Saturday:  true,
		},
		Interval:   time.Hour,
		LeadTime:   2 * time.Hour,
		CutoffHour: 18,
		MaxSlots:   50,
	}
}

// Engine computes open slots against live calendar busy time.
type Engine struct {
	busy     BusySource
	loc      *time.Location
	schedule Schedule
	now      func() time.Time
	tracer   trace.Tracer
	logger   *logging.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithSchedule overrides the working-hours grid.
func WithSchedule(s Schedule) Option {
	return func(e *Engine) { e.schedule = s }
}

// NewEngine creates an engine. busy may be nil when no calendar is wired, in
// which case GetAvailableSlots reports calendar.ErrNotConfigured.
func NewEngine(busy BusySource, loc *time.Location, logger *logging.Logger, opts ...Option) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		busy:     busy,
		loc:      loc,
		schedule: DefaultSchedule(),
		now:      time.Now,
		tracer:   otel.Tracer("cosmetology.internal.availability"),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.schedule.Interval <= 0 {
		e.schedule.Interval = time.Hour
	}
	return e
}

// Location returns the clinic timezone.
func (e *Engine) Location() *time.Location { return e.loc }

// GetAvailableSlots returns chronologically ordered free slots for the next
// daysAhead calendar days. Busy time is fetched once for the whole window.
func (e *Engine) GetAvailableSlots(ctx context.Context, daysAhead int, duration time.Duration) ([]Slot, error) {
	ctx, span := e.tracer.Start(ctx, "availability.get_slots")
	defer span.End()

	if e.busy == nil {
		return nil, apperr.Transient("availability: get slots", calendar.ErrNotConfigured)
	}
	if daysAhead <= 0 {
		return nil, nil
	}
	if duration <= 0 {
		duration = e.schedule.Interval
	}

	now := e.now().In(e.loc)
	start, end := e.Window(now, daysAhead)
	busy, err := e.busy.ListBusy(ctx, start, end)
	if err != nil {
		span.RecordError(err)
		if apperr.Category(err) == apperr.ErrFatal && !errors.Is(err, apperr.ErrFatal) {
			err = apperr.Transient("availability: list busy", err)
		}
		return nil, fmt.Errorf("availability: get slots: %w", err)
	}

	slots := e.Generate(now, busy, daysAhead, duration)
	span.SetAttributes(
		attribute.Int("availability.busy_count", len(busy)),
		attribute.Int("availability.slot_count", len(slots)),
	)
	e.logger.Debug("availability: slots computed", "busy", len(busy), "slots", len(slots), "window_start", start)
	return slots, nil
}

// Window returns the search window for now. Past the cutoff hour it starts at
// the next day's opening; otherwise at max(now+lead, today's opening).
func (e *Engine) Window(now time.Time, daysAhead int) (time.Time, time.Time) {
	now = now.In(e.loc)
	today := startOfDay(now)
	var start time.Time
	if now.Hour() >= e.schedule.CutoffHour {
		start = today.AddDate(0, 0, 1).Add(time.Duration(e.schedule.WorkStartHour) * time.Hour)
	} else {
		opening := today.Add(time.Duration(e.schedule.WorkStartHour) * time.Hour)
		start = now.Add(e.schedule.LeadTime)
		if start.Before(opening) {
			start = opening
		}
	}
	end := startOfDay(start).AddDate(0, 0, daysAhead)
	return start, end
}

// Generate lays the working grid over the window and drops candidates that
// overlap busy time or start before the lead-time floor. It does no I/O.
func (e *Engine) Generate(now time.Time, busy []calendar.Interval, daysAhead int, duration time.Duration) []Slot {
	now = now.In(e.loc)
	windowStart, windowEnd := e.Window(now, daysAhead)
	floor := now.Add(e.schedule.LeadTime)
	if windowStart.After(floor) {
		floor = windowStart
	}

	var slots []Slot
	for day := startOfDay(windowStart); day.Before(windowEnd); day = day.AddDate(0, 0, 1) {
		if !e.schedule.WorkDays[day.Weekday()] {
			continue
		}
		opening := day.Add(time.Duration(e.schedule.WorkStartHour) * time.Hour)
		closing := day.Add(time.Duration(e.schedule.WorkEndHour) * time.Hour)

		cur := opening
		if floor.After(cur) {
			cur = alignUp(opening, floor, e.schedule.Interval)
		}
		for !cur.Add(duration).After(closing) {
			if !calendar.AnyOverlap(busy, cur, cur.Add(duration)) {
				slots = append(slots, NewSlot(cur, duration, e.loc))
				if e.schedule.MaxSlots > 0 && len(slots) >= e.schedule.MaxSlots {
					return slots
				}
			}
			cur = cur.Add(e.schedule.Interval)
		}
	}
	return slots
}

// alignUp returns the first grid point anchored at origin that is >= t.
func alignUp(origin, t time.Time, step time.Duration) time.Time {
	offset := t.Sub(origin)
	steps := offset / step
	if offset%step != 0 {
		steps++
	}
	return origin.Add(steps * step)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
