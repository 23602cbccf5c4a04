package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/cosmetology-assistant/internal/bookings"
	"github.com/wolfman30/cosmetology-assistant/internal/chat"
	"github.com/wolfman30/cosmetology-assistant/internal/reminders"
)

type echoProcessor struct {
	channel string
	got     chat.Update
}

func (p *echoProcessor) Handle(_ context.Context, channel string, u chat.Update) []chat.Reply {
	p.channel, p.got = channel, u
	if u.Action == "noop" {
		return nil
	}
	return []chat.Reply{chat.WithButtons("echo: "+u.Text+u.Action, chat.Button{Text: "Меню", Action: "main_menu"})}
}

func TestHandleUpdate(t *testing.T) {
	p := &echoProcessor{}
	h := NewUpdatesHandler(p, nil)

	body := `{"user_id": 42, "username": "anna", "first_name": "Анна", "text": "привет"}`
	rec := httptest.NewRecorder()
	h.HandleUpdate(rec, httptest.NewRequest(http.MethodPost, "/v1/updates", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, UpdatesChannel, p.channel)
	assert.Equal(t, int64(42), p.got.ID)
	assert.Equal(t, "Анна", p.got.FirstName)

	var resp UpdateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Replies, 1)
	assert.Equal(t, "echo: привет", resp.Replies[0].Text)
	assert.Equal(t, "main_menu", resp.Replies[0].Buttons[0][0].Action)
}

func TestHandleUpdateEmptyRepliesIsArray(t *testing.T) {
	h := NewUpdatesHandler(&echoProcessor{}, nil)
	rec := httptest.NewRecorder()
	h.HandleUpdate(rec, httptest.NewRequest(http.MethodPost, "/v1/updates", strings.NewReader(`{"user_id": 1, "action": "noop"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"replies": []}`, rec.Body.String())
}

func TestHandleUpdateRejectsBadInput(t *testing.T) {
	tests := map[string]string{
		"malformed":    `{"user_id":`,
		"missing user": `{"text": "hi"}`,
		"empty update": `{"user_id": 7, "text": "   "}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			p := &echoProcessor{}
			rec := httptest.NewRecorder()
			NewUpdatesHandler(p, nil).HandleUpdate(rec, httptest.NewRequest(http.MethodPost, "/v1/updates", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, p.got.ID)
		})
	}
}

type stubPending struct {
	list  []bookings.Booking
	err   error
	limit int
}

func (s *stubPending) ListPending(_ context.Context, limit int) ([]bookings.Booking, error) {
	s.limit = limit
	return s.list, s.err
}

type stubReminders struct {
	list   []reminders.Reminder
	err    error
	userID int64
}

func (s *stubReminders) ListForUser(_ context.Context, userID int64, _ int) ([]reminders.Reminder, error) {
	s.userID = userID
	return s.list, s.err
}

func adminRouter(h *AdminHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/admin/bookings/pending", h.ListPendingBookings)
	r.Get("/admin/users/{userID}/reminders", h.ListUserReminders)
	return r
}

func TestListPendingBookings(t *testing.T) {
	pending := &stubPending{list: []bookings.Booking{{ID: 1, UserID: 42, Procedure: "Чистка лица", Status: bookings.StatusPending}}}
	router := adminRouter(NewAdminHandler(pending, &stubReminders{}, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/bookings/pending?limit=500", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxListLimit, pending.limit)
	var resp struct {
		Bookings []bookings.Booking `json:"bookings"`
		Count    int                `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "Чистка лица", resp.Bookings[0].Procedure)
}

func TestListPendingBookingsErrors(t *testing.T) {
	router := adminRouter(NewAdminHandler(&stubPending{err: errors.New("db down")}, &stubReminders{}, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/bookings/pending", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/bookings/pending?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListUserReminders(t *testing.T) {
	rem := &stubReminders{list: []reminders.Reminder{{ID: 5, UserID: 42, Type: reminders.TypeHourBefore, Status: reminders.StatusPending, ScheduledTime: time.Date(2024, 12, 16, 12, 0, 0, 0, time.UTC)}}}
	router := adminRouter(NewAdminHandler(&stubPending{}, rem, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/users/42/reminders", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), rem.userID)
	assert.Contains(t, rec.Body.String(), `"hour_before"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/users/abc/reminders", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndReady(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
		"redis":    PingFunc(func(context.Context) error { return errors.New("connection refused") }),
		"nats":     nil,
	}, nil)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"not_ready","checks":{"postgres":"ok","redis":"down"}}`, rec.Body.String())
}
