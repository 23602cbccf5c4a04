package main

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/cosmetology-assistant/internal/bookings"
	"github.com/wolfman30/cosmetology-assistant/internal/notify"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

const digestLimit = 50

type pendingLister interface {
	ListPending(ctx context.Context, limit int) ([]bookings.Booking, error)
}

type digestNotifier interface {
	PendingDigest(ctx context.Context, items []notify.PendingItem) error
}

// sendPendingDigest tells the operator which booking requests still wait
// for manual confirmation.
func sendPendingDigest(ctx context.Context, store pendingLister, notifier digestNotifier, loc *time.Location, logger *logging.Logger) error {
	pending, err := store.ListPending(ctx, digestLimit)
	if err != nil {
		return fmt.Errorf("digest: list pending: %w", err)
	}
	if len(pending) == 0 {
		logger.Debug("no pending bookings for digest")
		return nil
	}
	items := make([]notify.PendingItem, 0, len(pending))
	for _, b := range pending {
		slot := b.PreferredTime
		if !b.CalendarSlot.IsZero() {
			slot = b.CalendarSlot.In(loc).Format("02.01.2006 15:04")
		}
		items = append(items, notify.PendingItem{
			BookingID: b.ID,
			UserID:    b.UserID,
			Procedure: b.Procedure,
			Slot:      slot,
			Contact:   b.ContactInfo,
			CreatedAt: b.CreatedAt,
		})
	}
	if err := notifier.PendingDigest(ctx, items); err != nil {
		return fmt.Errorf("digest: notify: %w", err)
	}
	logger.Info("pending bookings digest sent", "count", len(items))
	return nil
}
