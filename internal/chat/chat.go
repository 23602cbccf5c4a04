// Package chat holds the transport-neutral update and reply shapes exchanged
// between chat channels and the assistant.
package chat

import "strings"

// User identifies the person behind an update.
type User struct {
	ID        int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayName returns "First Last", falling back to the username.
func (u User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return ""
}

// Update is one inbound event: either free text or a button action.
type Update struct {
	User
	Text   string `json:"text,omitempty"`
	Action string `json:"action,omitempty"`
}

// IsAction reports whether the update is a button press.
func (u Update) IsAction() bool {
	return strings.TrimSpace(u.Action) != ""
}

// Button is an inline action attached to a reply.
type Button struct {
	Text   string `json:"text"`
	Action string `json:"action"`
}

// Reply is one outbound message. Buttons are laid out row by row.
type Reply struct {
	Text    string     `json:"text"`
	Buttons [][]Button `json:"buttons,omitempty"`
}

// Text builds a reply without buttons.
func Text(text string) Reply {
	return Reply{Text: text}
}

// WithButtons builds a reply with one button per row.
func WithButtons(text string, buttons ...Button) Reply {
	rows := make([][]Button, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []Button{b})
	}
	return Reply{Text: text, Buttons: rows}
}

// Row appends a row of buttons.
func (r Reply) Row(buttons ...Button) Reply {
	if len(buttons) == 0 {
		return r
	}
	rows := make([][]Button, len(r.Buttons), len(r.Buttons)+1)
	copy(rows, r.Buttons)
	r.Buttons = append(rows, buttons)
	return r
}

// Actions flattens all button actions, in layout order.
func (r Reply) Actions() []string {
	var out []string
	for _, row := range r.Buttons {
		for _, b := range row {
			out = append(out, b.Action)
		}
	}
	return out
}
