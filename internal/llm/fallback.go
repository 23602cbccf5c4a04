package llm

import (
	"context"

	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

// Fallback tries the primary client and then the secondary one.
type Fallback struct {
	primary   Client
	secondary Client
	logger    *logging.Logger
}

// NewFallback returns primary alone when secondary is nil.
func NewFallback(primary, secondary Client, logger *logging.Logger) Client {
	if secondary == nil {
		return primary
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *Fallback) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := f.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return Response{}, err
	}
	f.logger.Warn("llm: primary failed, trying fallback", "error", err)

	resp, fbErr := f.secondary.Complete(ctx, req)
	if fbErr != nil {
		f.logger.Error("llm: fallback also failed", "primary_error", err, "fallback_error", fbErr)
		return Response{}, fbErr
	}
	return resp, nil
}
