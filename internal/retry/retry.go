// Package retry provides exponential backoff and a retry loop for calls to
// external services (ranking site, summarizer API, gateway reconnects).
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/Hongsc0125/donggle-bot/internal/logger"
)

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 1 * time.Second
	defaultMaxDelay     = 10 * time.Second
	defaultMultiplier   = 2.0
)

// ErrPermanent marks an error that must not be retried.
var ErrPermanent = errors.New("permanent error")

// Backoff describes the delay between attempts.
type Backoff struct {
	Initial    time.Duration // delay before the second attempt (default: 1s)
	Max        time.Duration // upper bound for a single delay (default: 10s)
	Multiplier float64       // growth factor; 1 gives a constant delay (default: 2)
}

// Delay returns the delay after the given zero-based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	b = b.withDefaults()
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(b.Initial)
	for i := 0; i < attempt; i++ {
		delay *= b.Multiplier
		if delay >= float64(b.Max) {
			return b.Max
		}
	}
	if delay > float64(b.Max) {
		return b.Max
	}
	return time.Duration(delay)
}

func (b Backoff) withDefaults() Backoff {
	if b.Initial <= 0 {
		b.Initial = defaultInitialDelay
	}
	if b.Max <= 0 {
		b.Max = defaultMaxDelay
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}
	if b.Multiplier < 1 {
		b.Multiplier = defaultMultiplier
	}
	return b
}

// Config represents retry configuration.
type Config struct {
	MaxAttempts int // Maximum number of attempts (default: 3)
	Backoff     Backoff
	Logger      *logger.Logger // optional
}

// Do executes fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted or ctx is done. Context cancellation is checked between attempts.
func Do[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := cfg.Backoff.Delay(attempt)
		log.DebugCtx(ctx, "retrying after error",
			logger.Field{Key: "attempt", Value: attempt + 1},
			logger.Field{Key: "max_attempts", Value: cfg.MaxAttempts},
			logger.Field{Key: "delay", Value: delay},
			logger.Field{Key: "error", Value: err})

		if err := Sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("all %d attempts failed: %w", cfg.MaxAttempts, lastErr)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Permanent wraps err so that Do stops immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// StatusError is returned by HTTP clients for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// IsRetryable reports whether err is worth another attempt: timeouts, network
// errors, 429 and 5xx responses. Cancellation and permanent errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanent) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == 429 || statusErr.Code >= 500
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
