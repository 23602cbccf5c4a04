// Package transport delivers replies to users outside of a request, such
// as reminders and operator alerts.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/cosmetology-assistant/internal/apperr"
	"github.com/wolfman30/cosmetology-assistant/internal/chat"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

const defaultHTTPTimeout = 10 * time.Second

// Sender delivers one reply to a user.
type Sender interface {
	SendText(ctx context.Context, userID int64, reply chat.Reply) error
}

// GatewaySender posts replies to the messenger gateway that owns the user
// conversations.
type GatewaySender struct {
	url        string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

type gatewayRequest struct {
	UserID  int64           `json:"user_id"`
	Text    string          `json:"text"`
	Buttons [][]chat.Button `json:"buttons,omitempty"`
}

// NewGatewaySender returns nil when url is empty.
func NewGatewaySender(url, token string, logger *logging.Logger) *GatewaySender {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GatewaySender{
		url:        strings.TrimRight(url, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     logger,
	}
}

// SetHTTPClient overrides the client (useful for testing).
func (g *GatewaySender) SetHTTPClient(c *http.Client) {
	if c != nil {
		g.httpClient = c
	}
}

func (g *GatewaySender) SendText(ctx context.Context, userID int64, reply chat.Reply) error {
	body, err := json.Marshal(gatewayRequest{UserID: userID, Text: reply.Text, Buttons: reply.Buttons})
	if err != nil {
		return fmt.Errorf("transport: marshal gateway request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("transport: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return apperr.Transient("transport: gateway send", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return apperr.Transient("transport: gateway send", err)
		}
		return fmt.Errorf("transport: gateway send: %w", err)
	}
	g.logger.ForUser(userID).Debug("transport: gateway delivered", "length", len(reply.Text))
	return nil
}

// MultiSender tries each sender in order and stops at the first success.
type MultiSender struct {
	senders []Sender
	logger  *logging.Logger
}

// ErrNoSender is returned by an empty MultiSender.
var ErrNoSender = errors.New("transport: no sender configured")

// NewMultiSender skips nil senders.
func NewMultiSender(logger *logging.Logger, senders ...Sender) *MultiSender {
	if logger == nil {
		logger = logging.Default()
	}
	m := &MultiSender{logger: logger}
	for _, s := range senders {
		if s == nil || isNilSender(s) {
			continue
		}
		m.senders = append(m.senders, s)
	}
	return m
}

func isNilSender(s Sender) bool {
	g, ok := s.(*GatewaySender)
	return ok && g == nil
}

func (m *MultiSender) SendText(ctx context.Context, userID int64, reply chat.Reply) error {
	if len(m.senders) == 0 {
		return ErrNoSender
	}
	var errs []error
	for _, s := range m.senders {
		err := s.SendText(ctx, userID, reply)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	err := errors.Join(errs...)
	m.logger.ForUser(userID).Warn("transport: all senders failed", "error", err)
	return fmt.Errorf("transport: send: %w", err)
}

var (
	_ Sender = (*GatewaySender)(nil)
	_ Sender = (*MultiSender)(nil)
)
