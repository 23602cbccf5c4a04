package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/cosmetology-assistant/internal/chat"
	"github.com/wolfman30/cosmetology-assistant/internal/observability/metrics"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

// Sender delivers a reply to a chat user.
type Sender interface {
	SendText(ctx context.Context, userID int64, reply chat.Reply) error
}

type dueStore interface {
	FetchDue(ctx context.Context, now time.Time, limit int) ([]Reminder, error)
	MarkSent(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64) error
}

// Poller periodically delivers due reminders.
type Poller struct {
	store    dueStore
	sender   Sender
	metrics  *metrics.BotMetrics
	logger   *logging.Logger
	now      func() time.Time
	interval time.Duration
	batch    int
}

// NewPoller creates a poller with a 30s interval and batches of 50.
func NewPoller(store dueStore, sender Sender, m *metrics.BotMetrics, logger *logging.Logger) *Poller {
	if logger == nil {
		logger = logging.Default()
	}
	return &Poller{
		store:    store,
		sender:   sender,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		interval: 30 * time.Second,
		batch:    50,
	}
}

func (p *Poller) WithInterval(d time.Duration) *Poller {
	if d > 0 {
		p.interval = d
	}
	return p
}

func (p *Poller) WithBatchSize(n int) *Poller {
	if n > 0 {
		p.batch = n
	}
	return p
}

func (p *Poller) WithClock(now func() time.Time) *Poller {
	if now != nil {
		p.now = now
	}
	return p
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("reminder poller started", "interval", p.interval, "batch", p.batch)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("reminder poller stopped")
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Poller) drain(ctx context.Context) {
	if _, err := p.ProcessDue(ctx); err != nil {
		p.logger.Error("reminder poll failed", "error", err)
	}
}

// ProcessDue sends every due reminder once and returns how many were sent.
func (p *Poller) ProcessDue(ctx context.Context) (int, error) {
	if p.store == nil || p.sender == nil {
		return 0, nil
	}
	due, err := p.store.FetchDue(ctx, p.now(), p.batch)
	if err != nil {
		return 0, fmt.Errorf("reminders: poll: %w", err)
	}
	sent := 0
	for _, r := range due {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		log := p.logger.ForUser(r.UserID).With("reminder_id", r.ID, "type", string(r.Type))
		if err := p.sender.SendText(ctx, r.UserID, chat.Text(r.MessageText)); err != nil {
			log.Warn("reminder delivery failed", "error", err, "attempt", r.Attempts+1)
			if markErr := p.store.MarkFailed(ctx, r.ID); markErr != nil {
				log.Error("reminder mark failed", "error", markErr)
			}
			status := "retry"
			if r.Attempts+1 >= MaxAttempts {
				status = string(StatusFailed)
			}
			p.metrics.ObserveReminder(string(r.Type), status)
			continue
		}
		if err := p.store.MarkSent(ctx, r.ID, p.now()); err != nil {
			log.Error("reminder mark sent failed", "error", err)
			continue
		}
		p.metrics.ObserveReminder(string(r.Type), string(StatusSent))
		log.Info("reminder sent")
		sent++
	}
	return sent, nil
}
