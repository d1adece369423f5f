package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig describes an exponential back-off. Only start-up connections
// to outer services use it.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *Logger
}

// Do calls fn until it succeeds, the attempts run out or ctx is done. The
// delay doubles after every failure.
func (r *RetryConfig) Do(ctx context.Context, operationName string, fn func(context.Context) error) error {
	attempts := max(r.MaxAttempts, 1)
	delay := r.BaseDelay

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if r.Logger != nil {
			r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
				operationName, attempt, attempts, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w (last error: %v)", operationName, ctx.Err(), err)
		case <-timer.C:
		}
		delay *= 2
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operationName, attempts, err)
}
