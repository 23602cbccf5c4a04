package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/cosmetology-assistant/internal/bookings"
	"github.com/wolfman30/cosmetology-assistant/internal/notify"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

type stubPending struct {
	list []bookings.Booking
	err  error
}

func (s stubPending) ListPending(context.Context, int) ([]bookings.Booking, error) {
	return s.list, s.err
}

type digestInbox struct {
	items []notify.PendingItem
	calls int
}

func (d *digestInbox) PendingDigest(_ context.Context, items []notify.PendingItem) error {
	d.calls++
	d.items = items
	return nil
}

func TestSendPendingDigest(t *testing.T) {
	minsk, err := time.LoadLocation("Europe/Minsk")
	require.NoError(t, err)
	store := stubPending{list: []bookings.Booking{
		{ID: 7, UserID: 42, Procedure: "Чистка лица", ContactInfo: "Анна\n+375291112233", PreferredTime: "16.12.2024 14:00",
			CalendarSlot: time.Date(2024, 12, 16, 11, 0, 0, 0, time.UTC)},
		{ID: 8, UserID: 43, Procedure: "Массаж лица", PreferredTime: "17.12.2024 10:00"},
	}}
	inbox := &digestInbox{}

	require.NoError(t, sendPendingDigest(context.Background(), store, inbox, minsk, logging.New("error")))
	require.Len(t, inbox.items, 2)
	assert.Equal(t, "16.12.2024 14:00", inbox.items[0].Slot)
	assert.Equal(t, int64(7), inbox.items[0].BookingID)
	assert.Equal(t, "17.12.2024 10:00", inbox.items[1].Slot)
}

func TestSendPendingDigestSkipsEmptyAndErrors(t *testing.T) {
	inbox := &digestInbox{}
	logger := logging.New("error")

	require.NoError(t, sendPendingDigest(context.Background(), stubPending{}, inbox, time.UTC, logger))
	assert.Zero(t, inbox.calls)

	err := sendPendingDigest(context.Background(), stubPending{err: errors.New("db down")}, inbox, time.UTC, logger)
	assert.ErrorContains(t, err, "list pending")
}
