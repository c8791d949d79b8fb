package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// backoff returns the delay before retry n (0-based): base * multiplier^n,
// capped at BackoffMax.
func (s *Service) backoff(n int) time.Duration {
	base := float64(s.config.BackoffBase)
	mult := s.config.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	d := base * math.Pow(mult, float64(n))
	if limit := float64(s.config.BackoffMax); limit > 0 && d > limit {
		d = limit
	}
	return time.Duration(d)
}

// retry runs fn until it succeeds, fails permanently, exhausts MaxAttempts or
// ctx ends. Each attempt gets its own AnalyzeTimeout. It returns the number of
// retries issued.
func (s *Service) retry(ctx context.Context, fn func(ctx context.Context) error, onRetry func(attempt int, backoff time.Duration, err error)) (int, error) {
	maxAttempts := s.config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := s.attempt(ctx, fn)
		if err == nil {
			return attempt - 1, nil
		}
		if domain.IsPermanent(err) {
			return attempt - 1, fmt.Errorf("%w: %w", domain.ErrPermanentAnalysis, err)
		}
		if attempt >= maxAttempts {
			return attempt - 1, fmt.Errorf("%w: gave up after %d attempts: %w", domain.ErrTransientAnalysis, attempt, err)
		}

		delay := s.backoff(attempt - 1)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		if !sleepCtx(ctx, delay) {
			return attempt - 1, fmt.Errorf("%w: deadline reached after %d attempts: %w", domain.ErrTransientAnalysis, attempt, err)
		}
	}
}

func (s *Service) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.config.AnalyzeTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, s.config.AnalyzeTimeout)
	}
	defer cancel()

	err := fn(callCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return err
}

// sleepCtx sleeps for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
