// Package booking runs the guided appointment flow: procedure choice, slot
// selection, contact capture and the final commit to calendar and storage.
package booking

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/cosmetology-assistant/internal/availability"
	"github.com/wolfman30/cosmetology-assistant/internal/clinic"
	"github.com/wolfman30/cosmetology-assistant/internal/conversation"
)

// Stage names a step of the booking flow.
type Stage string

const (
	StageProcedureSelected  Stage = "procedure_selected"
	StageProcedureConfirmed Stage = "procedure_confirmed"
	StageTimeSelected       Stage = "time_selected"
	StageContactProvided    Stage = "contact_provided"
	StageFinalized          Stage = "finalized"
)

// ErrCorruptState marks stored state that could not be decoded.
var ErrCorruptState = errors.New("booking: corrupt state")

// Procedure is the part of the catalog entry kept in flow state.
type Procedure struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func procedureFrom(p clinic.Procedure) Procedure {
	return Procedure{Code: p.Code, Name: p.Name}
}

// Base is embedded in every payload.
type Base struct {
	FlowID    string    `json:"flow_id"`
	Procedure Procedure `json:"procedure"`
}

func (b Base) base() Base { return b }

// Payload is the stored state of one user's flow. The concrete types below
// are the only implementations.
type Payload interface {
	Stage() Stage
	base() Base
}

// ProcedureSelected waits for the user to confirm the described procedure.
type ProcedureSelected struct {
	Base
}

// ProcedureConfirmed marks an availability fetch in flight. Only the fetch
// carrying FetchID may advance the flow.
type ProcedureConfirmed struct {
	Base
	FetchID string `json:"fetch_id"`
}

// TimeSelected holds the offered slots while the user picks one.
type TimeSelected struct {
	Base
	Slots []availability.Slot `json:"slots"`
	Page  int                 `json:"page"`
}

// SlotPicked holds the chosen slot while waiting for contact details.
type SlotPicked struct {
	Base
	Slots []availability.Slot `json:"slots"`
	Slot  availability.Slot   `json:"slot"`
}

// ContactProvided waits for the final confirmation.
type ContactProvided struct {
	Base
	Slots   []availability.Slot `json:"slots"`
	Slot    availability.Slot   `json:"slot"`
	Contact string              `json:"contact"`
}

func (ProcedureSelected) Stage() Stage  { return StageProcedureSelected }
func (ProcedureConfirmed) Stage() Stage { return StageProcedureConfirmed }
func (TimeSelected) Stage() Stage       { return StageTimeSelected }
func (SlotPicked) Stage() Stage         { return StageTimeSelected }
func (ContactProvided) Stage() Stage    { return StageContactProvided }

const (
	kindProcedureSelected  = "procedure_selected"
	kindProcedureConfirmed = "procedure_confirmed"
	kindTimeSelected       = "time_selected"
	kindSlotPicked         = "slot_picked"
	kindContactProvided    = "contact_provided"
)

type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func encodeState(p Payload) ([]byte, error) {
	var kind string
	switch p.(type) {
	case ProcedureSelected:
		kind = kindProcedureSelected
	case ProcedureConfirmed:
		kind = kindProcedureConfirmed
	case TimeSelected:
		kind = kindTimeSelected
	case SlotPicked:
		kind = kindSlotPicked
	case ContactProvided:
		kind = kindContactProvided
	default:
		return nil, fmt.Errorf("booking: encode state: unsupported payload %T", p)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("booking: encode state: %w", err)
	}
	return json.Marshal(envelope{Kind: kind, Data: data})
}

func decodeState(raw []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	var (
		p   Payload
		err error
	)
	switch env.Kind {
	case kindProcedureSelected:
		var v ProcedureSelected
		err = json.Unmarshal(env.Data, &v)
		p = v
	case kindProcedureConfirmed:
		var v ProcedureConfirmed
		err = json.Unmarshal(env.Data, &v)
		p = v
	case kindTimeSelected:
		var v TimeSelected
		err = json.Unmarshal(env.Data, &v)
		p = v
	case kindSlotPicked:
		var v SlotPicked
		err = json.Unmarshal(env.Data, &v)
		p = v
	case kindContactProvided:
		var v ContactProvided
		err = json.Unmarshal(env.Data, &v)
		p = v
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrCorruptState, env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if p.base().FlowID == "" {
		return nil, fmt.Errorf("%w: missing flow id", ErrCorruptState)
	}
	return p, nil
}

const (
	defaultClientName  = "Клиент"
	defaultClientPhone = "Не указан"
)

// ParseContact reads the name from the first line and the phone from the
// second.
func ParseContact(contact string) (name, phone string) {
	name, phone = defaultClientName, defaultClientPhone
	lines := strings.Split(strings.TrimSpace(contact), "\n")
	if v := strings.TrimSpace(lines[0]); v != "" {
		name = v
	}
	if len(lines) > 1 {
		if v := strings.TrimSpace(lines[1]); v != "" {
			phone = v
		}
	}
	return name, phone
}

// cleanContact sanitizes each line and drops empty ones.
func cleanContact(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if v := conversation.SanitizeForDisplay(line); v != "" {
			lines = append(lines, v)
		}
	}
	return strings.Join(lines, "\n")
}
