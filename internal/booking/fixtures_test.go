package booking

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wolfman30/cosmetology-assistant/internal/availability"
	"github.com/wolfman30/cosmetology-assistant/internal/bookings"
	"github.com/wolfman30/cosmetology-assistant/internal/calendar/calendartest"
	"github.com/wolfman30/cosmetology-assistant/internal/chat"
	"github.com/wolfman30/cosmetology-assistant/internal/clinic"
	"github.com/wolfman30/cosmetology-assistant/internal/conversation"
	"github.com/wolfman30/cosmetology-assistant/internal/events"
	"github.com/wolfman30/cosmetology-assistant/internal/notify"
	"github.com/wolfman30/cosmetology-assistant/internal/reminders"
)

var (
	clinicZone = availability.ClinicLocation
	testNow    = time.Date(2024, 12, 1, 10, 0, 0, 0, clinicZone)
	testInfo   = clinic.Info{
		Name:         "Тестовая клиника",
		Phone:        "+375 29 111-22-33",
		WorkingHours: "Пн-Сб 09:00-18:00",
		Location:     clinicZone,
	}
	testUser = chat.User{ID: 42, Username: "anna", FirstName: "Анна"}
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

// slotsOnDays returns one 14:00 slot per day starting at 2024-12-16.
func slotsOnDays(days int) []availability.Slot {
	out := make([]availability.Slot, 0, days)
	for d := 0; d < days; d++ {
		start := time.Date(2024, 12, 16+d, 14, 0, 0, 0, clinicZone)
		out = append(out, availability.NewSlot(start, time.Hour, clinicZone))
	}
	return out
}

type stubDescriber struct{ text string }

func (d stubDescriber) DescribeProcedure(context.Context, string, *conversation.Profile) string {
	return d.text
}

type stubSlots struct {
	slots  []availability.Slot
	err    error
	during func()
}

func (s *stubSlots) GetAvailableSlots(context.Context, int, time.Duration) ([]availability.Slot, error) {
	if s.during != nil {
		s.during()
	}
	return s.slots, s.err
}

type memoryBookings struct {
	mu        sync.Mutex
	byKey     map[string]bookings.Booking
	seq       int64
	createErr error
	findErr   error
	cancelled map[string]int
}

func newMemoryBookings() *memoryBookings {
	return &memoryBookings{byKey: make(map[string]bookings.Booking), cancelled: make(map[string]int)}
}

func (m *memoryBookings) FindByIdempotencyKey(_ context.Context, key string) (*bookings.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	b, ok := m.byKey[key]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *memoryBookings) CreateBooking(ctx context.Context, nb bookings.NewBooking) (bookings.Booking, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return bookings.Booking{}, false, err
	}
	if m.createErr != nil {
		return bookings.Booking{}, false, m.createErr
	}
	if b, ok := m.byKey[nb.IdempotencyKey]; ok {
		return b, false, nil
	}
	m.seq++
	b := bookings.Booking{
		ID:             m.seq,
		UserID:         nb.UserID,
		Procedure:      nb.Procedure,
		ContactInfo:    nb.ContactInfo,
		PreferredTime:  nb.PreferredTime,
		Status:         nb.Status,
		Notes:          nb.Notes,
		CalendarSlot:   nb.CalendarSlot,
		IdempotencyKey: nb.IdempotencyKey,
	}
	if nb.CalendarEventID != "" {
		id := nb.CalendarEventID
		b.CalendarEventID = &id
	}
	m.byKey[nb.IdempotencyKey] = b
	return b, true, nil
}

func (m *memoryBookings) CancelByEvent(ctx context.Context, eventID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.cancelled[eventID]++
	var n int64
	for k, b := range m.byKey {
		if b.CalendarEventID != nil && *b.CalendarEventID == eventID && b.Status != bookings.StatusCancelled {
			b.Status = bookings.StatusCancelled
			m.byKey[k] = b
			n++
		}
	}
	return n, nil
}

func (m *memoryBookings) all() []bookings.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bookings.Booking, 0, len(m.byKey))
	for _, b := range m.byKey {
		out = append(out, b)
	}
	return out
}

type memoryReminders struct {
	mu        sync.Mutex
	created   []reminders.Reminder
	cancelled []string
}

func (m *memoryReminders) Create(ctx context.Context, r *reminders.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	r.ID = int64(len(m.created) + 1)
	m.created = append(m.created, *r)
	return nil
}

func (m *memoryReminders) CancelByEvent(ctx context.Context, eventID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.cancelled = append(m.cancelled, eventID)
	return 2, nil
}

// operatorInbox captures operator chat alerts sent through notify.Service.
type operatorInbox struct {
	mu       sync.Mutex
	messages []string
}

func (o *operatorInbox) SendText(ctx context.Context, _ int64, reply chat.Reply) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	o.messages = append(o.messages, reply.Text)
	return nil
}

func (o *operatorInbox) all() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.messages...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

type harness struct {
	calendar  *calendartest.Memory
	bookings  *memoryBookings
	reminders *memoryReminders
	inbox     *operatorInbox
	publisher *recordingPublisher
	states    *MemoryStateStore
	slots     *stubSlots
	coord     *Coordinator
	machine   *Machine
	// now is the commit clock; tests move it to let offered slots age.
	now time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		calendar:  calendartest.NewMemory(),
		bookings:  newMemoryBookings(),
		reminders: &memoryReminders{},
		inbox:     &operatorInbox{},
		publisher: &recordingPublisher{},
		states:    NewMemoryStateStore(fixedClock(testNow)),
		slots:     &stubSlots{slots: slotsOnDays(5)},
		now:       testNow,
	}
	sched := reminders.NewScheduler(h.reminders, clinicZone, nil, reminders.WithSchedulerClock(fixedClock(testNow)))
	operator := notify.NewService(h.inbox, nil, notify.Config{OperatorChatID: 999}, nil)
	h.coord = NewCoordinator(h.calendar, h.bookings, sched, operator, h.publisher, nil,
		WithCommitClock(func() time.Time { return h.now }))

	var seq atomic.Int64
	ids := func() string {
		return fmt.Sprintf("id-%d", seq.Add(1))
	}
	h.machine = NewMachine(h.states, stubDescriber{text: "Описание процедуры"}, h.slots, h.coord, testInfo, Config{}, nil, WithIDGenerator(ids))
	return h
}

// toContact drives a user from procedure selection to the final check.
func (h *harness) toContact(t *testing.T, user chat.User, slotIndex int) {
	t.Helper()
	ctx := context.Background()
	h.machine.Start(ctx, user, "cleaning", nil)
	h.machine.ConfirmProcedure(ctx, user)
	h.machine.PickSlot(ctx, user, slotIndex)
	if _, handled := h.machine.SubmitContact(ctx, user, "Анна Петрова\n+375 29 345-67-89"); !handled {
		t.Fatalf("contact not consumed by the flow")
	}
}
