package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/cosmetology-assistant/internal/apperr"
	"github.com/wolfman30/cosmetology-assistant/internal/chat"
)

func TestGatewaySenderPostsReply(t *testing.T) {
	var got gatewayRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	g := NewGatewaySender(server.URL+"/", "tok", nil)
	reply := chat.WithButtons("⏰ Напоминание", chat.Button{Text: "Меню", Action: "main_menu"})
	require.NoError(t, g.SendText(context.Background(), 42, reply))

	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, "⏰ Напоминание", got.Text)
	assert.Equal(t, reply.Buttons, got.Buttons)
}

func TestGatewaySenderStatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusBadGateway, true},
		{http.StatusTooManyRequests, true},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.status)
		}))
		err := NewGatewaySender(server.URL, "", nil).SendText(context.Background(), 1, chat.Text("x"))
		server.Close()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "nope")
		assert.Equal(t, tt.transient, errors.Is(err, apperr.ErrTransient), "status %d", tt.status)
	}
}

func TestNewGatewaySenderWithoutURL(t *testing.T) {
	assert.Nil(t, NewGatewaySender("  ", "tok", nil))
}

type stubSender struct {
	err   error
	calls int
}

func (s *stubSender) SendText(context.Context, int64, chat.Reply) error {
	s.calls++
	return s.err
}

func TestMultiSenderFallsThrough(t *testing.T) {
	first := &stubSender{err: errors.New("not connected")}
	second := &stubSender{}
	third := &stubSender{}
	m := NewMultiSender(nil, first, nil, NewGatewaySender("", "", nil), second, third)

	require.NoError(t, m.SendText(context.Background(), 1, chat.Text("x")))
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Zero(t, third.calls)
}

func TestMultiSenderAllFail(t *testing.T) {
	m := NewMultiSender(nil, &stubSender{err: errors.New("a")}, &stubSender{err: errors.New("b")})
	err := m.SendText(context.Background(), 1, chat.Text("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")

	assert.ErrorIs(t, NewMultiSender(nil).SendText(context.Background(), 1, chat.Text("x")), ErrNoSender)
}
