package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/wolfman30/cosmetology-assistant/internal/calendar"
	"github.com/wolfman30/cosmetology-assistant/internal/clinic"
	appconfig "github.com/wolfman30/cosmetology-assistant/internal/config"
	"github.com/wolfman30/cosmetology-assistant/internal/events"
	"github.com/wolfman30/cosmetology-assistant/internal/notify"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

// BuildCalendar returns the Google Calendar client, or nil when the
// integration is not configured. A nil client puts booking into manual
// confirmation mode.
func BuildCalendar(ctx context.Context, cfg *appconfig.Config, info clinic.Info, logger *logging.Logger) (calendar.Client, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if !cfg.CalendarEnabled() {
		logger.Warn("google calendar not configured; bookings need manual confirmation")
		return nil, nil
	}
	g, err := calendar.NewGoogle(ctx, calendar.GoogleConfig{
		CalendarID:      cfg.GoogleCalendarID,
		CredentialsFile: cfg.GoogleCredentialsFile,
		Location:        info.Location,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	logger.Info("google calendar enabled", "calendar_id", cfg.GoogleCalendarID)
	return g, nil
}

// BuildEmailSender picks the operator email provider. It returns nil when
// email alerts are off.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.OperatorEmail) == "" {
		return nil
	}
	provider := cfg.EmailProvider
	if provider == "" && cfg.SendGridAPIKey != "" {
		provider = "sendgrid"
	}
	switch provider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger); s != nil {
			return s
		}
		logger.Warn("sendgrid selected but SENDGRID_API_KEY is empty")
	case "ses":
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
	case "stub":
		return notify.NewStubEmailSender(logger)
	}
	logger.Warn("operator email configured without a provider", "provider", provider)
	return nil
}

// Publisher wraps the event publisher with its shutdown hook.
type Publisher struct {
	events.Publisher
	close func()
}

// Close drains the NATS connection when there is one.
func (p Publisher) Close() {
	if p.close != nil {
		p.close()
	}
}

// BuildPublisher connects to NATS, or returns a no-op publisher when
// NATS_URL is empty.
func BuildPublisher(cfg *appconfig.Config, logger *logging.Logger) (Publisher, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.NATSURL) == "" {
		return Publisher{Publisher: events.NoopPublisher{}}, nil
	}
	p, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSToken, cfg.EventSubjectPrefix, logger)
	if err != nil {
		return Publisher{}, fmt.Errorf("bootstrap: %w", err)
	}
	logger.Info("booking events enabled", "subject_prefix", cfg.EventSubjectPrefix)
	return Publisher{Publisher: p, close: p.Close}, nil
}
