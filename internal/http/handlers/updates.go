package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wolfman30/cosmetology-assistant/internal/chat"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

// UpdatesChannel labels updates posted to the HTTP endpoint.
const UpdatesChannel = "api"

const maxUpdateBytes = 64 << 10

// Processor turns one update into replies.
type Processor interface {
	Handle(ctx context.Context, channel string, u chat.Update) []chat.Reply
}

// UpdateResponse is the body returned for an accepted update.
type UpdateResponse struct {
	Replies []chat.Reply `json:"replies"`
}

// UpdatesHandler accepts chat updates from messenger bridges.
type UpdatesHandler struct {
	processor Processor
	logger    *logging.Logger
}

func NewUpdatesHandler(processor Processor, logger *logging.Logger) *UpdatesHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &UpdatesHandler{processor: processor, logger: logger}
}

// HandleUpdate serves POST /v1/updates.
func (h *UpdatesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var u chat.Update
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes))
	if err := dec.Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if u.ID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if strings.TrimSpace(u.Text) == "" && !u.IsAction() {
		writeError(w, http.StatusBadRequest, "text or action is required")
		return
	}

	replies := h.processor.Handle(r.Context(), UpdatesChannel, u)
	if replies == nil {
		replies = []chat.Reply{}
	}
	writeJSON(w, http.StatusOK, UpdateResponse{Replies: replies})
}
