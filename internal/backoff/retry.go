// Package backoff implements retry policies used by components that must
// tolerate transient failures (the persistent store, outbound notifications)
// without blocking the scheduler loop indefinitely.
package backoff

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

// Inspired by the retry policy implementation in Temporal (MIT License):
// https://github.com/temporalio/temporal/blob/main/common/backoff/retrypolicy.go

var (
	// ErrRetriesExhausted is returned when the maximum number of retries has been reached.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrOperationCanceled is returned when the retry operation is canceled via context.
	ErrOperationCanceled = errors.New("operation canceled")
)

// RetryPolicy computes the wait interval before the next retry attempt.
type RetryPolicy interface {
	// ComputeNextInterval returns the duration to wait before the next retry,
	// or an error if no more retries should be attempted.
	ComputeNextInterval(retryCount int, elapsedTime time.Duration, err error) (time.Duration, error)
}

// Retrier drives repeated attempts of an operation according to a RetryPolicy.
type Retrier interface {
	// Next blocks until the next retry interval elapses, or returns an error
	// if retries are exhausted or the context is canceled.
	Next(ctx context.Context, err error) error
	// Reset returns the retrier to its initial state.
	Reset()
}

var (
	noMaximumAttempts = 0

	defaultBackoffFactor = 2.0
	defaultMaxInterval   = 10 * time.Second
	defaultMaxRetries    = noMaximumAttempts
)

// ConstantBackoffPolicy retries at a fixed interval, up to MaxRetries times.
// Used for the Catalog Adapter's transient-error retry (§7): a short, bounded
// policy so a genuinely unavailable store surfaces as an error instead of
// hanging the caller.
type ConstantBackoffPolicy struct {
	Interval   time.Duration
	MaxRetries int
}

// NewConstantBackoffPolicy creates a policy with the given fixed interval and
// no retry limit; set MaxRetries on the returned value to bound it.
func NewConstantBackoffPolicy(interval time.Duration) *ConstantBackoffPolicy {
	return &ConstantBackoffPolicy{Interval: interval, MaxRetries: defaultMaxRetries}
}

// ComputeNextInterval implements RetryPolicy.
func (p *ConstantBackoffPolicy) ComputeNextInterval(retryCount int, _ time.Duration, _ error) (time.Duration, error) {
	if p.MaxRetries > 0 && retryCount >= p.MaxRetries {
		return 0, ErrRetriesExhausted
	}
	return p.Interval, nil
}

// ExponentialBackoffPolicy increases the interval after each attempt, capped
// at MaxInterval. Used by the Notifier's outbound send.
type ExponentialBackoffPolicy struct {
	InitialInterval time.Duration
	BackoffFactor   float64
	MaxInterval     time.Duration
	MaxRetries      int
}

// NewExponentialBackoffPolicy creates an exponential policy with sane defaults
// for BackoffFactor and MaxInterval.
func NewExponentialBackoffPolicy(initialInterval time.Duration) *ExponentialBackoffPolicy {
	return &ExponentialBackoffPolicy{
		InitialInterval: initialInterval,
		BackoffFactor:   defaultBackoffFactor,
		MaxInterval:     defaultMaxInterval,
		MaxRetries:      defaultMaxRetries,
	}
}

// ComputeNextInterval implements RetryPolicy.
func (p *ExponentialBackoffPolicy) ComputeNextInterval(retryCount int, _ time.Duration, _ error) (time.Duration, error) {
	if p.MaxRetries > 0 && retryCount >= p.MaxRetries {
		return 0, ErrRetriesExhausted
	}
	interval := float64(p.InitialInterval) * math.Pow(p.BackoffFactor, float64(retryCount))
	if interval > float64(p.MaxInterval) {
		interval = float64(p.MaxInterval)
	}
	return time.Duration(interval), nil
}

// NewRetrier creates a Retrier driven by the given policy.
func NewRetrier(policy RetryPolicy) Retrier {
	return &retrierImpl{policy: policy}
}

type retrierImpl struct {
	policy     RetryPolicy
	retryCount int
	startTime  time.Time
	mu         sync.Mutex
}

// Next implements Retrier.
func (r *retrierImpl) Next(ctx context.Context, err error) error {
	r.mu.Lock()
	if r.startTime.IsZero() {
		r.startTime = time.Now()
	}
	elapsed := time.Since(r.startTime)
	interval, computeErr := r.policy.ComputeNextInterval(r.retryCount, elapsed, err)
	if computeErr != nil {
		r.mu.Unlock()
		return computeErr
	}
	r.retryCount++
	r.mu.Unlock()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ErrOperationCanceled
	}
}

// Reset implements Retrier.
func (r *retrierImpl) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryCount = 0
	r.startTime = time.Time{}
}

// Do runs fn, retrying according to policy whenever fn returns a non-nil
// error, until it succeeds, the policy is exhausted, or ctx is canceled.
func Do(ctx context.Context, policy RetryPolicy, fn func() error) error {
	retrier := NewRetrier(policy)
	for {
		err := fn()
		if err == nil {
			return nil
		}
		if waitErr := retrier.Next(ctx, err); waitErr != nil {
			return err
		}
	}
}
