package review

import (
	"context"
	"time"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/github"
)

// RetryPolicy describes how GitHub writes are retried.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

// DefaultRetryPolicy makes 3 attempts; the pause doubles from 1s.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: time.Second}

// retry runs fn until it succeeds, the attempts are spent or the error is one that
// retrying cannot fix (permission, not found, forbidden).
func retry(ctx context.Context, p RetryPolicy, fn func(context.Context) error) error {
	attempts := max(p.Attempts, 1)
	delay := p.BaseDelay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !retryable(err) || attempt == attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

func retryable(err error) bool {
	return !github.IsForbidden(err) && !github.IsNotFound(err) && !core.IsKind(err, core.KindValidation)
}
