package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs   []published
	err    error
	closed bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject: subject, data: data})
	return nil
}

func (f *fakeConn) Close() { f.closed = true }

func TestSubject(t *testing.T) {
	assert.Equal(t, "clinic.booking.created", Subject("clinic.booking", "booking.created.v1"))
	assert.Equal(t, "clinic.booking.cancelled", Subject("clinic.booking.", "booking.cancelled.v1"))
	assert.Equal(t, "created", Subject("", "booking.created.v1"))
}

func TestNATSPublisherPublishesEnvelope(t *testing.T) {
	fixed := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	orig := nowFunc
	nowFunc = func() time.Time { return fixed }
	t.Cleanup(func() { nowFunc = orig })

	conn := &fakeConn{}
	pub := newNATSPublisher(conn, "clinic.booking", nil)
	err := pub.Publish(context.Background(), BookingCreatedV1{BookingID: 7, UserID: 42, Status: "confirmed", Procedure: "Чистка лица"})
	require.NoError(t, err)
	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "clinic.booking.created", conn.msgs[0].subject)

	var env Envelope
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &env))
	assert.Equal(t, "booking.created.v1", env.EventType)
	assert.Equal(t, fixed.UnixMicro(), env.TimestampMicros)

	var payload BookingCreatedV1
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, int64(7), payload.BookingID)
	assert.Equal(t, "confirmed", payload.Status)

	pub.Close()
	assert.True(t, conn.closed)
}

func TestNATSPublisherErrors(t *testing.T) {
	pub := newNATSPublisher(&fakeConn{err: errors.New("nats: connection closed")}, "clinic.booking", nil)
	assert.Error(t, pub.Publish(context.Background(), BookingCancelledV1{UserID: 1}))
	assert.ErrorIs(t, pub.Publish(context.Background(), nil), errNilEvent)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pub.Publish(ctx, BookingCancelledV1{}), context.Canceled)
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NoopPublisher{}.Publish(context.Background(), BookingCreatedV1{}))
}
