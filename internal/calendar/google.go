package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/cosmetology-assistant/internal/apperr"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const userIDProperty = "chat_user_id"

// GoogleConfig configures the Google Calendar adapter.
type GoogleConfig struct {
	CalendarID      string
	CredentialsFile string
	Location        *time.Location
}

// Google implements Client on top of the Google Calendar v3 API.
type Google struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
	tracer     trace.Tracer
	logger     *logging.Logger
}

// NewGoogle builds a service-account authenticated calendar client.
func NewGoogle(ctx context.Context, cfg GoogleConfig, logger *logging.Logger, opts ...option.ClientOption) (*Google, error) {
	if strings.TrimSpace(cfg.CalendarID) == "" {
		return nil, errors.New("calendar: calendar id is required")
	}
	if cfg.CredentialsFile != "" {
		opts = append([]option.ClientOption{
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(gcal.CalendarScope),
		}, opts...)
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create google service: %w", err)
	}
	return NewGoogleWithService(svc, cfg.CalendarID, cfg.Location, logger), nil
}

// NewGoogleWithService wraps an existing calendar service.
func NewGoogleWithService(svc *gcal.Service, calendarID string, loc *time.Location, logger *logging.Logger) *Google {
	if svc == nil {
		panic("calendar: google service cannot be nil")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Google{
		svc:        svc,
		calendarID: calendarID,
		loc:        loc,
		tracer:     otel.Tracer("cosmetology.internal.calendar"),
		logger:     logger,
	}
}

// ListBusy returns the busy intervals between start and end in one query.
func (g *Google) ListBusy(ctx context.Context, start, end time.Time) ([]Interval, error) {
	ctx, span := g.tracer.Start(ctx, "calendar.list_busy")
	defer span.End()

	var busy []Interval
	call := g.svc.Events.List(g.calendarID).
		TimeMin(start.UTC().Format(time.RFC3339)).
		TimeMax(end.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			if item.Status == "cancelled" || item.Transparency == "transparent" {
				continue
			}
			interval, ok := g.eventInterval(item)
			if !ok {
				g.logger.Warn("calendar: skipping unparseable event", "event_id", item.Id)
				continue
			}
			busy = append(busy, interval)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, translate("calendar: list busy", err)
	}
	span.SetAttributes(attribute.Int("calendar.busy_count", len(busy)))
	return busy, nil
}

// CreateEvent inserts a booking event after re-validating the interval.
func (g *Google) CreateEvent(ctx context.Context, req EventRequest) (string, error) {
	ctx, span := g.tracer.Start(ctx, "calendar.create_event")
	defer span.End()

	busy, err := g.ListBusy(ctx, req.Start, req.End)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if AnyOverlap(busy, req.Start, req.End) {
		g.logger.Info("calendar: slot taken before insert", "start", req.Start, "user_id", req.UserID)
		return "", apperr.Race("calendar: create event", ErrSlotOccupied)
	}

	created, err := g.svc.Events.Insert(g.calendarID, g.buildEvent(req)).Context(ctx).Do()
	if err != nil {
		span.RecordError(err)
		return "", translate("calendar: create event", err)
	}
	g.logger.Info("calendar: event created", "event_id", created.Id, "start", req.Start, "user_id", req.UserID)
	return created.Id, nil
}

// DeleteEvent removes an event; an already missing event is not an error.
func (g *Google) DeleteEvent(ctx context.Context, eventID string) error {
	ctx, span := g.tracer.Start(ctx, "calendar.delete_event")
	defer span.End()

	err := g.svc.Events.Delete(g.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
			return nil
		}
		span.RecordError(err)
		return translate("calendar: delete event", err)
	}
	return nil
}

// ListEventsForUser returns upcoming events tagged with the chat user id.
func (g *Google) ListEventsForUser(ctx context.Context, userID int64, from time.Time) ([]Event, error) {
	ctx, span := g.tracer.Start(ctx, "calendar.list_user_events")
	defer span.End()

	out, err := g.svc.Events.List(g.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%d", userIDProperty, userID)).
		TimeMin(from.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		span.RecordError(err)
		return nil, translate("calendar: list user events", err)
	}

	events := make([]Event, 0, len(out.Items))
	for _, item := range out.Items {
		if item.Status == "cancelled" {
			continue
		}
		interval, ok := g.eventInterval(item)
		if !ok {
			continue
		}
		ev := Event{
			ID:      item.Id,
			Summary: item.Summary,
			Start:   interval.Start,
			End:     interval.End,
			UserID:  userID,
		}
		if item.ExtendedProperties != nil {
			ev.Procedure = item.ExtendedProperties.Private["procedure"]
		}
		events = append(events, ev)
	}
	return events, nil
}

func (g *Google) buildEvent(req EventRequest) *gcal.Event {
	start := req.Start.In(g.loc)
	end := req.End.In(g.loc)
	description := fmt.Sprintf("Клиент: %s\nТелефон: %s\nПроцедура: %s\nЗаметки: %s\n\nЗапись создана через чат-ассистента",
		req.ClientName, req.ClientPhone, req.Procedure, req.Notes)
	return &gcal.Event{
		Summary:     req.Procedure,
		Description: description,
		Start:       &gcal.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: g.loc.String()},
		End:         &gcal.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: g.loc.String()},
		ColorId:     "2",
		Reminders: &gcal.EventReminders{
			UseDefault:      false,
			ForceSendFields: []string{"UseDefault"},
			Overrides: []*gcal.EventReminder{
				{Method: "popup", Minutes: 60},
				{Method: "popup", Minutes: 10},
			},
		},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{
				userIDProperty: strconv.FormatInt(req.UserID, 10),
				"procedure":    req.Procedure,
				"username":     req.Username,
			},
		},
	}
}

// eventInterval converts timed and all-day events to absolute intervals.
func (g *Google) eventInterval(item *gcal.Event) (Interval, bool) {
	if item.Start == nil || item.End == nil {
		return Interval{}, false
	}
	if item.Start.DateTime != "" && item.End.DateTime != "" {
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return Interval{}, false
		}
		end, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			return Interval{}, false
		}
		return Interval{Start: start.In(g.loc), End: end.In(g.loc)}, true
	}
	if item.Start.Date != "" && item.End.Date != "" {
		start, err := time.ParseInLocation(time.DateOnly, item.Start.Date, g.loc)
		if err != nil {
			return Interval{}, false
		}
		end, err := time.ParseInLocation(time.DateOnly, item.End.Date, g.loc)
		if err != nil {
			return Interval{}, false
		}
		return Interval{Start: start, End: end}, true
	}
	return Interval{}, false
}

func translate(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Transient(op, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusConflict {
		return apperr.Race(op, err)
	}
	return apperr.Transient(op, err)
}

var _ Client = (*Google)(nil)
