package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

// Publisher emits domain events. Publishing is best effort for callers.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Envelope carries transport metadata around an event payload.
type Envelope struct {
	EventID         uuid.UUID       `json:"event_id"`
	EventType       string          `json:"event_type"`
	TimestampMicros int64           `json:"timestamp"`
	Payload         json.RawMessage `json:"payload"`
}

var (
	errNilEvent = errors.New("events: event required")
	nowFunc     = time.Now
)

// NewEnvelope wraps evt with a fresh id and timestamp.
func NewEnvelope(evt Event) (Envelope, error) {
	if evt == nil {
		return Envelope{}, errNilEvent
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal payload: %w", err)
	}
	return Envelope{
		EventID:         uuid.New(),
		EventType:       evt.EventType(),
		TimestampMicros: nowFunc().UTC().UnixMicro(),
		Payload:         payload,
	}, nil
}

// Subject maps an event type like "booking.created.v1" onto prefix, giving
// "clinic.booking.created".
func Subject(prefix, eventType string) string {
	name := strings.TrimPrefix(eventType, "booking.")
	if i := strings.LastIndex(name, ".v"); i > 0 {
		name = name[:i]
	}
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

type natsConn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSPublisher publishes enveloped events on core NATS subjects.
type NATSPublisher struct {
	conn   natsConn
	prefix string
	logger *logging.Logger
}

// NewNATSPublisher connects to url, retrying in the background on failure.
func NewNATSPublisher(url, token, prefix string, logger *logging.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = logging.Default()
	}
	opts := []nats.Option{
		nats.Name("cosmetology-assistant"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("events: nats connect: %w", err)
	}
	return newNATSPublisher(nc, prefix, logger), nil
}

func newNATSPublisher(conn natsConn, prefix string, logger *logging.Logger) *NATSPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &NATSPublisher{conn: conn, prefix: prefix, logger: logger}
}

func (p *NATSPublisher) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env, err := NewEnvelope(evt)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}
	subject := Subject(p.prefix, env.EventType)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("events: publish %s: %w", subject, err)
	}
	p.logger.Debug("event published", "subject", subject, "event_id", env.EventID.String())
	return nil
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// NoopPublisher drops events; used when NATS is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

var (
	_ Publisher = (*NATSPublisher)(nil)
	_ Publisher = NoopPublisher{}
)
