// Package events publishes booking domain events to NATS.
package events

import "time"

// Event is a versioned domain event.
type Event interface {
	EventType() string
}

// BookingCreatedV1 is emitted once per stored booking.
type BookingCreatedV1 struct {
	BookingID  int64     `json:"booking_id"`
	UserID     int64     `json:"user_id"`
	Procedure  string    `json:"procedure"`
	Status     string    `json:"status"`
	SlotStart  time.Time `json:"slot_start"`
	SlotEnd    time.Time `json:"slot_end"`
	CalendarID string    `json:"calendar_event_id,omitempty"`
	FlowID     string    `json:"flow_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (BookingCreatedV1) EventType() string { return "booking.created.v1" }

// BookingCancelledV1 is emitted when a user cancels an upcoming booking.
type BookingCancelledV1 struct {
	UserID             int64     `json:"user_id"`
	CalendarEventID    string    `json:"calendar_event_id"`
	BookingsCancelled  int64     `json:"bookings_cancelled"`
	RemindersCancelled int64     `json:"reminders_cancelled"`
	OccurredAt         time.Time `json:"occurred_at"`
}

func (BookingCancelledV1) EventType() string { return "booking.cancelled.v1" }
