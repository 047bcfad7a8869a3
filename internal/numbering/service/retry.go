package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"folio/internal/numbering/ports"
	"folio/pkg/platform/sentinel"
)

// RetryPolicy bounds how often an allocation is re-run after the store
// aborted it for a concurrent writer.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      5,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     200 * time.Millisecond,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(max(0, p.MaxRetries))), ctx)
}

// runInTx runs fn in one transaction. Administrative mutations run once and
// surface conflicts to the caller.
func (s *Service) runInTx(ctx context.Context, fn func(store ports.Store) error) error {
	return s.tx.RunInTx(ctx, fn)
}

// runInTxWithRetry re-runs the whole transaction while the store reports a
// serialization conflict. Business errors stop the loop immediately.
func (s *Service) runInTxWithRetry(ctx context.Context, fn func(store ports.Store) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := s.tx.RunInTx(ctx, fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, sentinel.ErrConflict) {
			if s.metrics != nil {
				s.metrics.IncrementRetries()
			}
			s.logger.DebugContext(ctx, "retrying numbering transaction", "attempt", attempt, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}
	return backoff.Retry(operation, s.retry.backOff(ctx))
}
