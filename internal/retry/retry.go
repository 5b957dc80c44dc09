// Package retry provides the bounded backoff wrapper shared by every
// verification provider adapter. It performs no error classification:
// callers decide which failures to route through it. A provider's firm
// business-rule rejection must never be passed here.
package retry

import (
	"context"
	"time"
)

// Config defines the retry behaviour for a fallible operation
type Config struct {
	MaxRetries int           // retry attempts after the first call
	BaseDelay  time.Duration // delay before the first retry
}

// DefaultConfig matches the provider adapters' shared policy
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
	}
}

// Do invokes fn up to cfg.MaxRetries+1 times, sleeping BaseDelay multiplied
// by the attempt number between attempts (linear backoff: base, 2*base, ...).
// On exhaustion the last error is returned unchanged. Context cancellation
// aborts the wait and returns ctx.Err.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	var err error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := cfg.BaseDelay * time.Duration(attempt)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
