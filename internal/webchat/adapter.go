package webchat

import (
	"context"

	"github.com/wolfman30/cosmetology-assistant/internal/chat"
)

// SendText pushes an out-of-band reply, such as a reminder or an operator
// alert, to the user's open websocket.
func (h *Handler) SendText(_ context.Context, userID int64, reply chat.Reply) error {
	h.mu.RLock()
	wsc, ok := h.conns[userID]
	h.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	if err := wsc.send(replyMessage(reply)); err != nil {
		return err
	}
	h.logger.ForUser(userID).Info("webchat: reply pushed", "length", len(reply.Text))
	return nil
}
