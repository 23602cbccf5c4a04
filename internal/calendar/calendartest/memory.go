// Package calendartest provides an in-memory calendar.Client for tests.
package calendartest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wolfman30/cosmetology-assistant/internal/apperr"
	"github.com/wolfman30/cosmetology-assistant/internal/calendar"
)

// Memory is a thread-safe calendar fake. The race check and insert in
// CreateEvent happen under one lock.
type Memory struct {
	mu     sync.Mutex
	busy   []calendar.Interval
	events map[string]calendar.Event
	seq    int

	// ListErr and CreateErr, when set, are returned by the matching calls.
	ListErr   error
	CreateErr error
	DeleteErr error

	Created []calendar.EventRequest
	Deleted []string
}

// NewMemory returns an empty calendar.
func NewMemory() *Memory {
	return &Memory{events: make(map[string]calendar.Event)}
}

// AddBusy marks [start, end) as taken by an external event.
func (m *Memory) AddBusy(start, end time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = append(m.busy, calendar.Interval{Start: start, End: end})
}

// AddEvent stores a user event as if it had been created earlier.
func (m *Memory) AddEvent(ev calendar.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.ID] = ev
}

func (m *Memory) ListBusy(_ context.Context, start, end time.Time) ([]calendar.Interval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.busyLocked(start, end), nil
}

func (m *Memory) busyLocked(start, end time.Time) []calendar.Interval {
	var out []calendar.Interval
	for _, b := range m.busy {
		if b.Overlaps(start, end) {
			out = append(out, b)
		}
	}
	for _, ev := range m.events {
		if ev.Start.Before(end) && ev.End.After(start) {
			out = append(out, calendar.Interval{Start: ev.Start, End: ev.End})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (m *Memory) CreateEvent(_ context.Context, req calendar.EventRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	if calendar.AnyOverlap(m.busyLocked(req.Start, req.End), req.Start, req.End) {
		return "", apperr.Race("calendartest: create event", calendar.ErrSlotOccupied)
	}
	m.seq++
	id := fmt.Sprintf("evt-%d", m.seq)
	m.events[id] = calendar.Event{
		ID:        id,
		Summary:   req.Procedure,
		Procedure: req.Procedure,
		Start:     req.Start,
		End:       req.End,
		UserID:    req.UserID,
	}
	m.Created = append(m.Created, req)
	return id, nil
}

func (m *Memory) DeleteEvent(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.events, eventID)
	m.Deleted = append(m.Deleted, eventID)
	return nil
}

func (m *Memory) ListEventsForUser(_ context.Context, userID int64, from time.Time) ([]calendar.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []calendar.Event
	for _, ev := range m.events {
		if ev.UserID == userID && !ev.Start.Before(from) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// Events returns a snapshot of stored events.
func (m *Memory) Events() []calendar.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]calendar.Event, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

var _ calendar.Client = (*Memory)(nil)
