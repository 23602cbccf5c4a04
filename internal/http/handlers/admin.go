package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/cosmetology-assistant/internal/bookings"
	"github.com/wolfman30/cosmetology-assistant/internal/reminders"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// PendingLister lists bookings awaiting manual confirmation.
type PendingLister interface {
	ListPending(ctx context.Context, limit int) ([]bookings.Booking, error)
}

// ReminderLister lists a user's reminders.
type ReminderLister interface {
	ListForUser(ctx context.Context, userID int64, limit int) ([]reminders.Reminder, error)
}

// AdminHandler serves the operator endpoints.
type AdminHandler struct {
	bookings  PendingLister
	reminders ReminderLister
	logger    *logging.Logger
}

func NewAdminHandler(pending PendingLister, rem ReminderLister, logger *logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{bookings: pending, reminders: rem, logger: logger}
}

// ListPendingBookings serves GET /admin/bookings/pending?limit=N.
func (h *AdminHandler) ListPendingBookings(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	list, err := h.bookings.ListPending(r.Context(), limit)
	if err != nil {
		h.logger.Error("admin: failed to list pending bookings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}
	if list == nil {
		list = []bookings.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": list, "count": len(list)})
}

// ListUserReminders serves GET /admin/users/{userID}/reminders.
func (h *AdminHandler) ListUserReminders(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	list, err := h.reminders.ListForUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.ForUser(userID).Error("admin: failed to list reminders", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list reminders")
		return
	}
	if list == nil {
		list = []reminders.Reminder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": list, "count": len(list)})
}

func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return min(n, maxListLimit), true
}
