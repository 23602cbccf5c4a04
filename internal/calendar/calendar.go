// Package calendar adapts the clinic's external calendar: busy-time lookup,
// race-checked event creation, deletion and per-user event listing.
package calendar

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSlotOccupied is returned by CreateEvent when the requested interval
	// was taken after it had been offered to the user.
	ErrSlotOccupied = errors.New("calendar: slot occupied")
	// ErrNotConfigured is returned when no calendar backend is wired.
	ErrNotConfigured = errors.New("calendar: integration not configured")
)

// Interval is a half-open busy range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps applies the strict interval test start < i.End && end > i.Start.
func (i Interval) Overlaps(start, end time.Time) bool {
	return start.Before(i.End) && end.After(i.Start)
}

// AnyOverlap reports whether [start, end) intersects any interval in busy.
func AnyOverlap(busy []Interval, start, end time.Time) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// EventRequest describes a booking to be written to the calendar.
type EventRequest struct {
	Start       time.Time
	End         time.Time
	UserID      int64
	Username    string
	ClientName  string
	ClientPhone string
	Procedure   string
	Notes       string
}

// Event is a calendar entry created for a chat user.
type Event struct {
	ID        string
	Summary   string
	Procedure string
	Start     time.Time
	End       time.Time
	UserID    int64
}

// Client is the calendar port consumed by availability and booking.
type Client interface {
	ListBusy(ctx context.Context, start, end time.Time) ([]Interval, error)
	// CreateEvent re-checks the interval against current busy time before
	// inserting and returns ErrSlotOccupied when it is no longer free.
	CreateEvent(ctx context.Context, req EventRequest) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
	ListEventsForUser(ctx context.Context, userID int64, from time.Time) ([]Event, error)
}
