package runner

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
)

// FailureLogger logs failed iterations.
type FailureLogger interface {
	LogFailure(vu int, err error)
}

// ZapFailureLogger writes failed iterations to a zap logger at warn level.
type ZapFailureLogger struct {
	Logger *zap.Logger
}

func (l ZapFailureLogger) LogFailure(vu int, err error) {
	if err == nil || l.Logger == nil {
		return
	}
	l.Logger.Warn("iteration failed", zap.Int("vu", vu), zap.Error(err))
}

// RetryPolicy configures retry behavior.
type RetryPolicy struct {
	MaxAttempts int                                        // total attempts including initial try
	Delay       time.Duration                              // fixed delay between retries (used if DelayFunc nil)
	ShouldRetry func(error) bool                           // predicate; if nil, all errors retried
	DelayFunc   func(attempt int, err error) time.Duration // dynamic backoff; attempt is 1-based
}

// retryVUser wraps a VUser with retry logic.
type retryVUser struct {
	inner  VUser
	policy RetryPolicy
}

// WithRetry re-runs failed iterations of vu according to policy.
func WithRetry(vu VUser, policy RetryPolicy) VUser {
	if policy.MaxAttempts <= 1 {
		return vu // no retries needed
	}
	return &retryVUser{
		inner:  vu,
		policy: policy,
	}
}

func (r *retryVUser) Iterate(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = r.inner.Iterate(ctx)
		if lastErr == nil {
			return nil
		}

		// Don't delay after the last attempt.
		if attempt < r.policy.MaxAttempts {
			if r.policy.ShouldRetry != nil && !r.policy.ShouldRetry(lastErr) {
				return lastErr
			}
			var delay time.Duration
			if r.policy.DelayFunc != nil {
				delay = r.policy.DelayFunc(attempt, lastErr)
			} else {
				delay = r.policy.Delay
			}
			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}

func (r *retryVUser) Close() error { return closeVUser(r.inner) }

// loggingVUser wraps a VUser with failure logging.
type loggingVUser struct {
	inner  VUser
	id     int
	logger FailureLogger
}

// WithLogging wraps the virtual user with the given id to log failed iterations.
func WithLogging(vu VUser, id int, logger FailureLogger) VUser {
	if logger == nil {
		return vu
	}
	return &loggingVUser{
		inner:  vu,
		id:     id,
		logger: logger,
	}
}

func (l *loggingVUser) Iterate(ctx context.Context) error {
	err := l.inner.Iterate(ctx)
	if err != nil {
		l.logger.LogFailure(l.id, err)
	}
	return err
}

func (l *loggingVUser) Close() error { return closeVUser(l.inner) }

func closeVUser(vu VUser) error {
	if c, ok := vu.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
