// Package reminders schedules, stores and delivers appointment reminders.
package reminders

import "time"

// Type identifies which lead time a reminder was scheduled for.
type Type string

const (
	TypeDayBefore Type = "day_before"
	// TypeHourBefore fires two hours ahead; the name is kept for stored rows.
	TypeHourBefore Type = "hour_before"
)

// Status tracks the lifecycle of a reminder.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// MaxAttempts is the number of delivery attempts before a reminder is
// marked failed for good.
const MaxAttempts = 3

// Reminder is a scheduled outbound message tied to a confirmed booking.
type Reminder struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	BookingID     int64      `json:"booking_id"`
	Type          Type       `json:"type"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	MessageText   string     `json:"message_text"`
	Status        Status     `json:"status"`
	Attempts      int        `json:"attempts"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	// Procedure is filled by ListForUser from the parent booking.
	Procedure string `json:"procedure,omitempty"`
}

// Lead returns how long before the appointment a reminder of type t fires.
func (t Type) Lead() time.Duration {
	switch t {
	case TypeDayBefore:
		return 24 * time.Hour
	case TypeHourBefore:
		return 2 * time.Hour
	default:
		return 0
	}
}
