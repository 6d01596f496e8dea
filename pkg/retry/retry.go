package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Config controls the backoff schedule. Zero fields fall back to the
// profile the LLM client runs with.
type Config struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	JitterFraction  float64
	RetryableErrors []error // empty means every error is retryable
	Logger          *zap.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2.0
	}
	return cfg
}

// Do runs operation until it succeeds, the error turns out not to be
// retryable, the context ends, or the attempt budget is spent. On
// exhaustion the last error is returned.
func Do(ctx context.Context, cfg Config, operation func() error) error {
	cfg = cfg.withDefaults()
	delay := cfg.InitialDelay

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation()
		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.Info("Call recovered after retry", zap.Int("attempt", attempt))
			}
			return nil
		}

		if !retryable(err, cfg.RetryableErrors) || attempt == cfg.MaxAttempts {
			return err
		}

		if cfg.Logger != nil {
			cfg.Logger.Warn("Call failed, backing off",
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", cfg.MaxAttempts),
				zap.Duration("backoff", delay),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(addJitter(delay, cfg.JitterFraction)):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}

// DoWithResult is Do for operations that return a value alongside the
// error.
func DoWithResult[T any](ctx context.Context, cfg Config, operation func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var err error
		result, err = operation()
		return err
	})
	return result, err
}

func retryable(err error, allow []error) bool {
	if len(allow) == 0 {
		return true
	}

	for _, candidate := range allow {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}

// addJitter spreads the delay by up to ±fraction so clients retrying
// against the same backend don't fire in lockstep.
func addJitter(duration time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return duration
	}

	spread := (rand.Float64()*2 - 1) * fraction * float64(duration)
	return duration + time.Duration(spread)
}
