package reminders

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/cosmetology-assistant/internal/chat"
	"github.com/wolfman30/cosmetology-assistant/internal/observability/metrics"
)

var minsk = time.FixedZone("+03", 3*60*60)

type memoryCreator struct {
	mu      sync.Mutex
	created []Reminder
	err     error
}

func (m *memoryCreator) Create(_ context.Context, r *Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	r.ID = int64(len(m.created) + 1)
	m.created = append(m.created, *r)
	return nil
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestSchedulerCreatesBothRemindersForDistantAppointment(t *testing.T) {
	now := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	store := &memoryCreator{}
	s := NewScheduler(store, minsk, nil, WithSchedulerClock(fixedClock(now)))

	start := time.Date(2024, 12, 16, 14, 0, 0, 0, minsk)
	n, err := s.ScheduleForBooking(context.Background(), Appointment{UserID: 42, BookingID: 7, Procedure: "Чистка лица", Start: start})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, store.created, 2)

	assert.Equal(t, TypeDayBefore, store.created[0].Type)
	assert.True(t, store.created[0].ScheduledTime.Equal(start.Add(-24*time.Hour)))
	assert.Equal(t, time.UTC, store.created[0].ScheduledTime.Location())
	assert.Contains(t, store.created[0].MessageText, "16.12.2024 в 14:00")
	assert.Contains(t, store.created[0].MessageText, "Чистка лица")

	assert.Equal(t, TypeHourBefore, store.created[1].Type)
	assert.True(t, store.created[1].ScheduledTime.Equal(start.Add(-2*time.Hour)))
	assert.Contains(t, store.created[1].MessageText, "14:00")
}

func TestSchedulerSkipsRemindersNotInFuture(t *testing.T) {
	now := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	s := NewScheduler(&memoryCreator{}, minsk, nil, WithSchedulerClock(fixedClock(now)))

	tests := []struct {
		name  string
		start time.Time
		want  []Type
	}{
		{"tomorrow noon", now.Add(25 * time.Hour), []Type{TypeDayBefore, TypeHourBefore}},
		{"later today", now.Add(3 * time.Hour), []Type{TypeHourBefore}},
		{"exactly two hours", now.Add(2 * time.Hour), nil},
		{"in one hour", now.Add(time.Hour), nil},
		{"in the past", now.Add(-time.Hour), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planned := s.Plan(Appointment{UserID: 1, BookingID: 1, Procedure: "Массаж лица", Start: tt.start})
			var got []Type
			for _, r := range planned {
				assert.True(t, r.ScheduledTime.After(now))
				got = append(got, r.Type)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchedulerStoreError(t *testing.T) {
	now := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	s := NewScheduler(&memoryCreator{err: errors.New("db down")}, minsk, nil, WithSchedulerClock(fixedClock(now)))
	n, err := s.ScheduleForBooking(context.Background(), Appointment{UserID: 1, Start: now.Add(48 * time.Hour)})
	require.Error(t, err)
	assert.Zero(t, n)
}

type fakeDueStore struct {
	due    []Reminder
	sent   []int64
	failed []int64
	limit  int
}

func (f *fakeDueStore) FetchDue(_ context.Context, _ time.Time, limit int) ([]Reminder, error) {
	f.limit = limit
	return f.due, nil
}

func (f *fakeDueStore) MarkSent(_ context.Context, id int64, _ time.Time) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeDueStore) MarkFailed(_ context.Context, id int64) error {
	f.failed = append(f.failed, id)
	return nil
}

type recordingSender struct {
	failFor map[int64]bool
	got     []chat.Reply
}

func (s *recordingSender) SendText(_ context.Context, userID int64, reply chat.Reply) error {
	if s.failFor[userID] {
		return errors.New("blocked by user")
	}
	s.got = append(s.got, reply)
	return nil
}

func TestPollerProcessDue(t *testing.T) {
	store := &fakeDueStore{due: []Reminder{
		{ID: 1, UserID: 10, Type: TypeDayBefore, MessageText: "завтра"},
		{ID: 2, UserID: 11, Type: TypeHourBefore, MessageText: "через 2 часа", Attempts: 2},
		{ID: 3, UserID: 12, Type: TypeHourBefore, MessageText: "через 2 часа"},
	}}
	sender := &recordingSender{failFor: map[int64]bool{11: true}}
	reg := prometheus.NewRegistry()
	m := metrics.NewBotMetrics(reg)

	p := NewPoller(store, sender, m, nil).WithBatchSize(10)
	n, err := p.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 10, store.limit)
	assert.Equal(t, []int64{1, 3}, store.sent)
	assert.Equal(t, []int64{2}, store.failed)
	require.Len(t, sender.got, 2)
	assert.Equal(t, "завтра", sender.got[0].Text)

	expected := `
# HELP cosmetology_reminders_dispatched_total Reminder dispatch results by type
# TYPE cosmetology_reminders_dispatched_total counter
cosmetology_reminders_dispatched_total{status="failed",type="hour_before"} 1
cosmetology_reminders_dispatched_total{status="sent",type="day_before"} 1
cosmetology_reminders_dispatched_total{status="sent",type="hour_before"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "cosmetology_reminders_dispatched_total"))
}

func TestPollerRunStopsOnCancel(t *testing.T) {
	store := &fakeDueStore{}
	p := NewPoller(store, &recordingSender{}, nil, nil).WithInterval(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestStoreQueries(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewStore(mock)
	ctx := context.Background()
	now := time.Date(2024, 12, 15, 11, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO reminders`).
		WithArgs(int64(42), int64(7), "day_before", now, "текст", "pending").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), now))
	r := &Reminder{UserID: 42, BookingID: 7, Type: TypeDayBefore, ScheduledTime: now, MessageText: "текст"}
	require.NoError(t, store.Create(ctx, r))
	assert.Equal(t, int64(1), r.ID)

	mock.ExpectQuery(`WHERE status = 'pending' AND attempts < \$1 AND scheduled_time <= \$2`).
		WithArgs(MaxAttempts, now, 50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "booking_id", "type", "scheduled_time", "message_text", "status", "attempts", "sent_at", "created_at"}).
			AddRow(int64(1), int64(42), int64(7), "day_before", now, "текст", "pending", 0, nil, now))
	due, err := store.FetchDue(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, TypeDayBefore, due[0].Type)
	assert.Nil(t, due[0].SentAt)

	mock.ExpectExec(`UPDATE reminders SET status = 'sent'`).WithArgs(now, int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.MarkSent(ctx, 1, now))

	mock.ExpectExec(`UPDATE reminders SET status = 'sent'`).WithArgs(now, int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.Error(t, store.MarkSent(ctx, 1, now))

	mock.ExpectExec(`attempts = attempts \+ 1`).WithArgs(MaxAttempts, int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.MarkFailed(ctx, 2))

	mock.ExpectExec(`WHERE booking_id = \$1 AND status = 'pending'`).WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	n, err := store.CancelByBooking(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	mock.ExpectExec(`SELECT id FROM bookings WHERE calendar_event_id = \$1`).WithArgs("evt-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	n, err = store.CancelByEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFormatList(t *testing.T) {
	assert.Equal(t, "📭 У вас пока нет напоминаний.", FormatList(nil, minsk))

	at := time.Date(2024, 12, 15, 11, 0, 0, 0, time.UTC)
	var list []Reminder
	for i := 0; i < 7; i++ {
		list = append(list, Reminder{Type: TypeDayBefore, Status: StatusPending, ScheduledTime: at, Procedure: "Мезопилинг"})
	}
	list[0].Status = StatusSent
	out := FormatList(list, minsk)
	assert.Contains(t, out, "15.12.2024 14:00")
	assert.Contains(t, out, "✅ Отправлено")
	assert.Contains(t, out, "За день до визита")
	assert.Contains(t, out, "🎯 Мезопилинг")
	assert.Contains(t, out, "... и еще 2 напоминаний")
}
