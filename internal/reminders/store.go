package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides CRUD operations for reminders.
type Store struct {
	db DB
}

// NewStore creates a new reminder store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Create inserts a pending reminder and fills ID and CreatedAt.
func (s *Store) Create(ctx context.Context, r *Reminder) error {
	if r.Status == "" {
		r.Status = StatusPending
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO reminders (user_id, booking_id, type, scheduled_time, message_text, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		r.UserID, r.BookingID, string(r.Type), r.ScheduledTime.UTC(), r.MessageText, string(r.Status),
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("reminders: create: %w", err)
	}
	return nil
}

// FetchDue returns pending reminders that are due and still have attempts
// left, oldest first.
func (s *Store) FetchDue(ctx context.Context, now time.Time, limit int) ([]Reminder, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, booking_id, type, scheduled_time, message_text, status, attempts, sent_at, created_at
		FROM reminders
		WHERE status = 'pending' AND attempts < $1 AND scheduled_time <= $2
		ORDER BY scheduled_time ASC
		LIMIT $3`, MaxAttempts, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("reminders: fetch due: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		var typ, status string
		if err := rows.Scan(&r.ID, &r.UserID, &r.BookingID, &typ, &r.ScheduledTime, &r.MessageText, &status, &r.Attempts, &r.SentAt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("reminders: scan due: %w", err)
		}
		r.Type = Type(typ)
		r.Status = Status(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reminders: fetch due rows: %w", err)
	}
	return out, nil
}

// MarkSent transitions a reminder from pending to sent.
func (s *Store) MarkSent(ctx context.Context, id int64, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE reminders SET status = 'sent', sent_at = $1
		WHERE id = $2 AND status = 'pending'`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("reminders: mark sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reminders: mark sent: no pending reminder with id %d", id)
	}
	return nil
}

// MarkFailed records a failed attempt; the reminder becomes failed once
// attempts reach MaxAttempts and stays pending otherwise.
func (s *Store) MarkFailed(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE reminders
		SET attempts = attempts + 1,
		    status = CASE WHEN attempts + 1 >= $1 THEN 'failed' ELSE status END
		WHERE id = $2 AND status = 'pending'`, MaxAttempts, id)
	if err != nil {
		return fmt.Errorf("reminders: mark failed: %w", err)
	}
	return nil
}

// CancelByBooking cancels every pending reminder of a booking.
func (s *Store) CancelByBooking(ctx context.Context, bookingID int64) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE reminders SET status = 'cancelled'
		WHERE booking_id = $1 AND status = 'pending'`, bookingID)
	if err != nil {
		return 0, fmt.Errorf("reminders: cancel by booking: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CancelByEvent cancels every pending reminder whose booking is tied to the
// calendar event.
func (s *Store) CancelByEvent(ctx context.Context, eventID string) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE reminders SET status = 'cancelled'
		WHERE status = 'pending'
		  AND booking_id IN (SELECT id FROM bookings WHERE calendar_event_id = $1)`, eventID)
	if err != nil {
		return 0, fmt.Errorf("reminders: cancel by event: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListForUser returns a user's most recent reminders with the procedure name.
func (s *Store) ListForUser(ctx context.Context, userID int64, limit int) ([]Reminder, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.user_id, r.booking_id, r.type, r.scheduled_time, r.message_text, r.status, r.attempts, r.sent_at, r.created_at, COALESCE(b.procedure, '')
		FROM reminders r
		LEFT JOIN bookings b ON b.id = r.booking_id
		WHERE r.user_id = $1
		ORDER BY r.scheduled_time DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("reminders: list for user: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		var typ, status string
		if err := rows.Scan(&r.ID, &r.UserID, &r.BookingID, &typ, &r.ScheduledTime, &r.MessageText, &status, &r.Attempts, &r.SentAt, &r.CreatedAt, &r.Procedure); err != nil {
			return nil, fmt.Errorf("reminders: scan user reminder: %w", err)
		}
		r.Type = Type(typ)
		r.Status = Status(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reminders: list rows: %w", err)
	}
	return out, nil
}
