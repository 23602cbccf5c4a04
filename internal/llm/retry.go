package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/cosmetology-assistant/internal/apperr"
)

// RetryPolicy is a bounded exponential backoff.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy makes three attempts, waiting 4s and then 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 4 * time.Second,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2,
	}
}

// Backoff returns the wait before attempt n+1, where n starts at 1.
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 || p.InitialBackoff <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialBackoff)
	for i := 1; i < n; i++ {
		d *= mult
	}
	if p.MaxBackoff > 0 && d > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds, the attempts run out, or ctx ends. The last
// error is returned wrapped as transient.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for n := 1; n <= attempts; n++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		if n == attempts {
			break
		}
		if sleepErr := sleep(ctx, p.Backoff(n)); sleepErr != nil {
			break
		}
	}
	return apperr.Transient(op, fmt.Errorf("after retries: %w", err))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retrying wraps a Client with a retry policy.
type Retrying struct {
	next   Client
	policy RetryPolicy
}

func NewRetrying(next Client, policy RetryPolicy) *Retrying {
	return &Retrying{next: next, policy: policy}
}

func (r *Retrying) Complete(ctx context.Context, req Request) (Response, error) {
	var resp Response
	err := r.policy.Do(ctx, "llm: complete", func(ctx context.Context) error {
		var err error
		resp, err = r.next.Complete(ctx, req)
		return err
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}
