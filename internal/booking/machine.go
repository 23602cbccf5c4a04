package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/cosmetology-assistant/internal/apperr"
	"github.com/wolfman30/cosmetology-assistant/internal/availability"
	"github.com/wolfman30/cosmetology-assistant/internal/calendar"
	"github.com/wolfman30/cosmetology-assistant/internal/chat"
	"github.com/wolfman30/cosmetology-assistant/internal/clinic"
	"github.com/wolfman30/cosmetology-assistant/internal/conversation"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

// Describer explains a procedure before the user confirms it.
type Describer interface {
	DescribeProcedure(ctx context.Context, query string, profile *conversation.Profile) string
}

// SlotFinder lists free appointment slots.
type SlotFinder interface {
	GetAvailableSlots(ctx context.Context, daysAhead int, duration time.Duration) ([]availability.Slot, error)
}

// Committer stores a finished flow.
type Committer interface {
	Commit(ctx context.Context, req CommitRequest) (CommitResult, error)
}

// Config tunes the booking window.
type Config struct {
	DaysAhead    int
	SlotDuration time.Duration
	DatesPerPage int
}

func (c Config) withDefaults() Config {
	if c.DaysAhead <= 0 {
		c.DaysAhead = 14
	}
	if c.SlotDuration <= 0 {
		c.SlotDuration = time.Hour
	}
	if c.DatesPerPage <= 0 {
		c.DatesPerPage = availability.DatesPerPage
	}
	return c
}

// Machine drives each user's booking flow. Every transition runs under a
// per-user lock; the availability fetch runs outside it.
type Machine struct {
	store     StateStore
	describer Describer
	slots     SlotFinder
	committer Committer
	info      clinic.Info
	cfg       Config
	logger    *logging.Logger
	newID     func() string

	userLocks sync.Map
}

// MachineOption customizes a Machine.
type MachineOption func(*Machine)

// WithIDGenerator overrides flow and fetch id generation.
func WithIDGenerator(gen func() string) MachineOption {
	return func(m *Machine) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// NewMachine builds the flow. A nil slot finder means no calendar is
// configured and users are sent to the administrator.
func NewMachine(store StateStore, describer Describer, slots SlotFinder, committer Committer, info clinic.Info, cfg Config, logger *logging.Logger, opts ...MachineOption) *Machine {
	if store == nil {
		panic("booking: state store cannot be nil")
	}
	if committer == nil {
		panic("booking: committer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	m := &Machine{
		store:     store,
		describer: describer,
		slots:     slots,
		committer: committer,
		info:      info,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) lockForUser(userID int64) *sync.Mutex {
	v, _ := m.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// load returns the stored payload. ok is false when replies were produced
// instead; corrupted state is cleared on the way.
func (m *Machine) load(ctx context.Context, userID int64) (p Payload, replies []chat.Reply, ok bool) {
	p, err := m.store.Load(ctx, userID)
	if err == nil {
		return p, nil, true
	}
	logger := m.logger.ForUser(userID)
	if errors.Is(err, apperr.ErrIntegrity) {
		logger.Warn("booking: corrupt state cleared", "error", err)
		if clearErr := m.store.Clear(ctx, userID); clearErr != nil {
			logger.Error("booking: failed to clear corrupt state", "error", clearErr)
		}
		return nil, []chat.Reply{corruptReply()}, false
	}
	logger.Error("booking: load state failed", "error", err)
	return nil, []chat.Reply{techErrorReply(m.info)}, false
}

func (m *Machine) save(ctx context.Context, userID int64, p Payload) []chat.Reply {
	if err := m.store.Save(ctx, userID, p); err != nil {
		m.logger.ForUser(userID).Error("booking: save state failed", "stage", p.Stage(), "error", err)
		return []chat.Reply{techErrorReply(m.info)}
	}
	return nil
}

func (m *Machine) clear(ctx context.Context, userID int64) {
	if err := m.store.Clear(ctx, userID); err != nil {
		m.logger.ForUser(userID).Warn("booking: clear state failed", "error", err)
	}
}

// Start begins a flow for the procedure code and shows its description.
// Any previous flow of the user is replaced.
func (m *Machine) Start(ctx context.Context, user chat.User, code string, profile *conversation.Profile) []chat.Reply {
	proc := clinic.LookupProcedure(code)
	description := ""
	if m.describer != nil {
		description = m.describer.DescribeProcedure(ctx, proc.KBQuery, profile)
	}

	lock := m.lockForUser(user.ID)
	lock.Lock()
	defer lock.Unlock()

	state := ProcedureSelected{Base: Base{FlowID: m.newID(), Procedure: procedureFrom(proc)}}
	if replies := m.save(ctx, user.ID, state); replies != nil {
		return replies
	}
	m.logger.ForUser(user.ID).Info("booking: procedure selected", "procedure", proc.Code, "flow_id", state.FlowID)
	return []chat.Reply{procedureConfirmation(proc.Name, description)}
}

// ConfirmProcedure fetches availability for the selected procedure. The
// result is applied only if the flow still waits for this very fetch.
func (m *Machine) ConfirmProcedure(ctx context.Context, user chat.User) []chat.Reply {
	logger := m.logger.ForUser(user.ID)
	lock := m.lockForUser(user.ID)

	lock.Lock()
	p, replies, ok := m.load(ctx, user.ID)
	if !ok {
		lock.Unlock()
		return replies
	}
	selected, isSelected := p.(ProcedureSelected)
	if !isSelected {
		lock.Unlock()
		if _, inFlight := p.(ProcedureConfirmed); inFlight {
			return []chat.Reply{chat.Text("⏳ Загружаю расписание, подождите немного...")}
		}
		return []chat.Reply{staleReply()}
	}
	pending := ProcedureConfirmed{Base: selected.Base, FetchID: m.newID()}
	if replies := m.save(ctx, user.ID, pending); replies != nil {
		lock.Unlock()
		return replies
	}
	lock.Unlock()

	var (
		slots []availability.Slot
		err   error
	)
	if m.slots == nil {
		err = calendar.ErrNotConfigured
	} else {
		slots, err = m.slots.GetAvailableSlots(ctx, m.cfg.DaysAhead, m.cfg.SlotDuration)
	}

	lock.Lock()
	defer lock.Unlock()

	p, replies, ok = m.load(ctx, user.ID)
	if !ok {
		return replies
	}
	current, isCurrent := p.(ProcedureConfirmed)
	if !isCurrent || current.FetchID != pending.FetchID || current.FlowID != pending.FlowID {
		logger.Info("booking: discarding stale availability result", "flow_id", pending.FlowID)
		return nil
	}

	name := pending.Procedure.Name
	switch {
	case errors.Is(err, calendar.ErrNotConfigured):
		m.clear(ctx, user.ID)
		return []chat.Reply{notConfiguredReply(m.info, name)}
	case err != nil:
		logger.Error("booking: availability lookup failed", "error", err)
		m.clear(ctx, user.ID)
		return []chat.Reply{scheduleErrorReply(m.info)}
	case len(slots) == 0:
		m.clear(ctx, user.ID)
		return []chat.Reply{noSlotsReply(m.info, name, m.cfg.DaysAhead)}
	}

	if replies := m.save(ctx, user.ID, TimeSelected{Base: pending.Base, Slots: slots}); replies != nil {
		return replies
	}
	logger.Info("booking: slots offered", "count", len(slots), "flow_id", pending.FlowID)
	return []chat.Reply{slotPicker(name, slots, 0, m.cfg.DatesPerPage, true)}
}

// ShowPage switches the slot picker to another page of dates.
func (m *Machine) ShowPage(ctx context.Context, user chat.User, page int) []chat.Reply {
	lock := m.lockForUser(user.ID)
	lock.Lock()
	defer lock.Unlock()

	p, replies, ok := m.load(ctx, user.ID)
	if !ok {
		return replies
	}
	state, isTime := p.(TimeSelected)
	if !isTime {
		return []chat.Reply{staleReply()}
	}
	view := availability.Paginate(state.Slots, page, m.cfg.DatesPerPage)
	state.Page = view.Page
	if replies := m.save(ctx, user.ID, state); replies != nil {
		return replies
	}
	return []chat.Reply{slotPicker(state.Procedure.Name, state.Slots, state.Page, m.cfg.DatesPerPage, false)}
}

// PickSlot selects the slot at index in the stored list.
func (m *Machine) PickSlot(ctx context.Context, user chat.User, index int) []chat.Reply {
	lock := m.lockForUser(user.ID)
	lock.Lock()
	defer lock.Unlock()

	p, replies, ok := m.load(ctx, user.ID)
	if !ok {
		return replies
	}
	state, isTime := p.(TimeSelected)
	if !isTime {
		return []chat.Reply{staleReply()}
	}
	if index < 0 || index >= len(state.Slots) {
		m.logger.ForUser(user.ID).Warn("booking: slot index out of range", "index", index, "slots", len(state.Slots))
		return badSlotReply(state.Procedure.Name, state.Slots, state.Page, m.cfg.DatesPerPage)
	}
	slot := state.Slots[index]
	if replies := m.save(ctx, user.ID, SlotPicked{Base: state.Base, Slots: state.Slots, Slot: slot}); replies != nil {
		return replies
	}
	return []chat.Reply{contactPrompt(state.Procedure.Name, slot)}
}

// SubmitContact consumes free text while the flow waits for contact
// details. handled is false when the text belongs to the conversation.
func (m *Machine) SubmitContact(ctx context.Context, user chat.User, text string) (replies []chat.Reply, handled bool) {
	lock := m.lockForUser(user.ID)
	lock.Lock()
	defer lock.Unlock()

	p, replies, ok := m.load(ctx, user.ID)
	if !ok {
		return replies, true
	}
	state, waiting := p.(SlotPicked)
	if !waiting {
		return nil, false
	}
	contact := cleanContact(text)
	if contact == "" {
		return []chat.Reply{contactPrompt(state.Procedure.Name, state.Slot)}, true
	}
	next := ContactProvided{Base: state.Base, Slots: state.Slots, Slot: state.Slot, Contact: contact}
	if replies := m.save(ctx, user.ID, next); replies != nil {
		return replies, true
	}
	return []chat.Reply{finalCheck(state.Procedure.Name, state.Slot, contact)}, true
}

// ChangeTime returns to the slot picker, keeping the offered slots.
func (m *Machine) ChangeTime(ctx context.Context, user chat.User) []chat.Reply {
	lock := m.lockForUser(user.ID)
	lock.Lock()
	defer lock.Unlock()

	p, replies, ok := m.load(ctx, user.ID)
	if !ok {
		return replies
	}
	var (
		base  Base
		slots []availability.Slot
	)
	switch s := p.(type) {
	case SlotPicked:
		base, slots = s.Base, s.Slots
	case ContactProvided:
		base, slots = s.Base, s.Slots
	case TimeSelected:
		base, slots = s.Base, s.Slots
	default:
		return []chat.Reply{staleReply()}
	}
	if replies := m.save(ctx, user.ID, TimeSelected{Base: base, Slots: slots}); replies != nil {
		return replies
	}
	return []chat.Reply{slotPicker(base.Procedure.Name, slots, 0, m.cfg.DatesPerPage, false)}
}

// FinalConfirm commits the flow. State is cleared before the commit so a
// repeated confirmation finds no flow. A slot that is no longer bookable
// restarts time selection with fresh availability.
func (m *Machine) FinalConfirm(ctx context.Context, user chat.User) []chat.Reply {
	replies, refetch := m.finalConfirm(ctx, user)
	if !refetch {
		return replies
	}
	return append(replies, m.ConfirmProcedure(ctx, user)...)
}

func (m *Machine) finalConfirm(ctx context.Context, user chat.User) ([]chat.Reply, bool) {
	lock := m.lockForUser(user.ID)
	lock.Lock()
	defer lock.Unlock()

	p, replies, ok := m.load(ctx, user.ID)
	if !ok {
		return replies, false
	}
	state, ready := p.(ContactProvided)
	if !ready {
		return []chat.Reply{staleReply()}, false
	}
	m.clear(ctx, user.ID)

	res, err := m.committer.Commit(ctx, CommitRequest{
		FlowID:    state.FlowID,
		User:      user,
		Procedure: state.Procedure,
		Slot:      state.Slot,
		Contact:   state.Contact,
	})
	if err != nil {
		m.logger.ForUser(user.ID).Error("booking: commit failed", "flow_id", state.FlowID, "error", err)
		return []chat.Reply{commitFailedReply(m.info, state.Procedure.Name, state.Slot, user.DisplayName())}, false
	}
	switch res.Outcome {
	case OutcomeSlotOccupied:
		return []chat.Reply{slotOccupiedReply()}, false
	case OutcomeSlotExpired:
		restart := ProcedureSelected{Base: Base{FlowID: m.newID(), Procedure: state.Procedure}}
		if replies := m.save(ctx, user.ID, restart); replies != nil {
			return replies, false
		}
		return []chat.Reply{slotExpiredReply(state.Slot)}, true
	}
	return []chat.Reply{commitSuccess(m.info, state.Procedure.Name, state.Slot, res)}, false
}

// Cancel drops the flow. Cancelling without a flow is not an error.
func (m *Machine) Cancel(ctx context.Context, user chat.User) []chat.Reply {
	lock := m.lockForUser(user.ID)
	lock.Lock()
	defer lock.Unlock()

	m.clear(ctx, user.ID)
	return []chat.Reply{cancelledReply()}
}

// Restart drops the flow and shows the procedure menu.
func (m *Machine) Restart(ctx context.Context, user chat.User) []chat.Reply {
	lock := m.lockForUser(user.ID)
	lock.Lock()
	defer lock.Unlock()

	m.clear(ctx, user.ID)
	return []chat.Reply{ProcedureMenu("")}
}

// Stage reports the stage of the user's flow, or "" when there is none.
func (m *Machine) Stage(ctx context.Context, userID int64) Stage {
	p, err := m.store.Load(ctx, userID)
	if err != nil || p == nil {
		return ""
	}
	return p.Stage()
}
