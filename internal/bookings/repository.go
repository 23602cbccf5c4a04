// Package bookings persists clinic users and their bookings in Postgres.
package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/cosmetology-assistant/internal/chat"
)

var bookingsTracer = otel.Tracer("cosmetology.internal.bookings")

// Status is the lifecycle state of a booking row.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Booking is a stored appointment request.
type Booking struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Procedure       string    `json:"procedure"`
	ContactInfo     string    `json:"contact_info"`
	PreferredTime   string    `json:"preferred_time"`
	Status          Status    `json:"status"`
	Notes           string    `json:"notes,omitempty"`
	CalendarEventID *string   `json:"calendar_event_id,omitempty"`
	CalendarSlot    time.Time `json:"calendar_slot"`
	IdempotencyKey  string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewBooking is the input of CreateBooking.
type NewBooking struct {
	UserID          int64
	Procedure       string
	ContactInfo     string
	PreferredTime   string
	Status          Status
	Notes           string
	CalendarEventID string
	CalendarSlot    time.Time
	IdempotencyKey  string
}

// User is the stored profile of a chat user.
type User struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	SkinType  string    `json:"skin_type,omitempty"`
	AgeGroup  string    `json:"age_group,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const bookingColumns = `id, user_id, procedure, contact_info, preferred_time, status, notes, calendar_event_id, calendar_slot, idempotency_key, created_at`

// Repository provides persistence helpers for users and bookings.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by a pgx pool or connection.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("bookings: db required")
	}
	return &Repository{db: db}
}

// UpsertUser records the latest names seen for a user.
func (r *Repository) UpsertUser(ctx context.Context, u chat.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (user_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    updated_at = now()`,
		u.ID, u.Username, u.FirstName, u.LastName,
	)
	if err != nil {
		return fmt.Errorf("bookings: upsert user: %w", err)
	}
	return nil
}

// GetUser returns nil, nil when the user has never been seen.
func (r *Repository) GetUser(ctx context.Context, userID int64) (*User, error) {
	var u User
	err := r.db.QueryRow(ctx, `
		SELECT user_id, username, first_name, last_name,
		       COALESCE(skin_type, ''), COALESCE(age_group, ''), COALESCE(phone, ''),
		       created_at, updated_at
		FROM users WHERE user_id = $1`, userID,
	).Scan(&u.UserID, &u.Username, &u.FirstName, &u.LastName, &u.SkinType, &u.AgeGroup, &u.Phone, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: get user: %w", err)
	}
	return &u, nil
}

// PreviousProcedures lists the distinct procedures a user booked before.
func (r *Repository) PreviousProcedures(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT procedure FROM bookings
		WHERE user_id = $1 AND status <> 'cancelled'
		ORDER BY procedure`, userID)
	if err != nil {
		return nil, fmt.Errorf("bookings: previous procedures: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("bookings: scan procedure: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FindByIdempotencyKey returns nil, nil when no booking exists for key.
func (r *Repository) FindByIdempotencyKey(ctx context.Context, key string) (*Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE idempotency_key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: find by idempotency key: %w", err)
	}
	return &b, nil
}

// CreateBooking inserts a booking once per idempotency key. When the key
// already exists the stored row is returned with created=false.
func (r *Repository) CreateBooking(ctx context.Context, nb NewBooking) (Booking, bool, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.create")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("cosmetology.user_id", nb.UserID),
		attribute.String("cosmetology.booking_status", string(nb.Status)),
	)

	if strings.TrimSpace(nb.IdempotencyKey) == "" {
		return Booking{}, false, errors.New("bookings: create: idempotency key required")
	}
	if nb.Status == "" {
		nb.Status = StatusPending
	}
	var eventID *string
	if nb.CalendarEventID != "" {
		id := nb.CalendarEventID
		eventID = &id
	}

	b, err := scanBooking(r.db.QueryRow(ctx, `
		INSERT INTO bookings (user_id, procedure, contact_info, preferred_time, status, notes, calendar_event_id, calendar_slot, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING `+bookingColumns,
		nb.UserID, nb.Procedure, nb.ContactInfo, nb.PreferredTime, string(nb.Status), nb.Notes, eventID, nb.CalendarSlot.UTC(), nb.IdempotencyKey,
	))
	if err == nil {
		return b, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)
		return Booking{}, false, fmt.Errorf("bookings: insert: %w", err)
	}

	existing, err := r.FindByIdempotencyKey(ctx, nb.IdempotencyKey)
	if err != nil {
		span.RecordError(err)
		return Booking{}, false, err
	}
	if existing == nil {
		return Booking{}, false, fmt.Errorf("bookings: insert: conflict on %q but no row found", nb.IdempotencyKey)
	}
	return *existing, false, nil
}

// ListPending returns bookings still waiting for manual confirmation, oldest first.
func (r *Repository) ListPending(ctx context.Context, limit int) ([]Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status = 'pending'
		ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("bookings: list pending: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

// ListUpcomingForUser returns the user's non-cancelled bookings after now.
func (r *Repository) ListUpcomingForUser(ctx context.Context, userID int64, now time.Time) ([]Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE user_id = $1 AND status <> 'cancelled' AND calendar_slot > $2
		ORDER BY calendar_slot ASC`, userID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("bookings: list upcoming: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

// CancelByEvent marks every booking tied to a calendar event as cancelled.
// Cancelling twice is a no-op.
func (r *Repository) CancelByEvent(ctx context.Context, eventID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings SET status = 'cancelled'
		WHERE calendar_event_id = $1 AND status <> 'cancelled'`, eventID)
	if err != nil {
		return 0, fmt.Errorf("bookings: cancel by event: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("bookings: ping: %w", err)
	}
	return nil
}

func scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	var status string
	err := row.Scan(
		&b.ID, &b.UserID, &b.Procedure, &b.ContactInfo, &b.PreferredTime,
		&status, &b.Notes, &b.CalendarEventID, &b.CalendarSlot, &b.IdempotencyKey, &b.CreatedAt,
	)
	if err != nil {
		return Booking{}, err
	}
	b.Status = Status(status)
	return b, nil
}

func scanBookings(rows pgx.Rows) ([]Booking, error) {
	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("bookings: scan: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: rows: %w", err)
	}
	return out, nil
}
