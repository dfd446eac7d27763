// Package retry wraps operations with bounded exponential backoff.
// Classification of errors into retryable and fatal is supplied per call
// site, keeping the policy orthogonal to call semantics.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrRetriesExhausted wraps the last observed error once the backoff budget
// is spent.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Class is the outcome of classifying an error.
type Class int

const (
	// Retryable errors are absorbed by the backoff loop up to its budget.
	Retryable Class = iota
	// Fatal errors abort immediately and surface to the caller.
	Fatal
)

// Classifier decides whether an error is worth another attempt.
type Classifier func(error) Class

// Policy bounds the backoff loop. The zero value is not usable; start from
// DefaultPolicy.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// RandomizationFactor spreads delays to avoid thundering herds.
	RandomizationFactor float64
	MaxRetries          uint64
	MaxElapsedTime      time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         30 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.25,
		MaxRetries:          10,
		MaxElapsedTime:      5 * time.Minute,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.InitialInterval),
		backoff.WithMaxInterval(p.MaxInterval),
		backoff.WithMultiplier(p.Multiplier),
		backoff.WithRandomizationFactor(p.RandomizationFactor),
		backoff.WithMaxElapsedTime(p.MaxElapsedTime),
	)

	return backoff.WithContext(backoff.WithMaxRetries(eb, p.MaxRetries), ctx)
}

// Do runs op under the policy until it succeeds, a fatal error occurs, the
// context is cancelled, or the budget is exhausted.
func Do(ctx context.Context, logger *slog.Logger, policy Policy, name string, classify Classifier, op func() error) error {
	_, err := DoWithData(ctx, logger, policy, name, classify, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// DoWithData is Do for operations that produce a value.
func DoWithData[T any](ctx context.Context, logger *slog.Logger, policy Policy, name string, classify Classifier, op func() (T, error)) (T, error) {
	attempts := 0

	operation := func() (T, error) {
		attempts++

		v, err := op()
		if err == nil {
			return v, nil
		}

		if classify != nil && classify(err) == Fatal {
			return v, backoff.Permanent(err)
		}

		return v, err
	}

	notify := func(err error, next time.Duration) {
		logger.Warn("operation failed, retrying",
			slog.String("operation", name),
			slog.Int("attempt", attempts),
			slog.Duration("next_try", next),
			slog.String("err", err.Error()),
		)
	}

	v, err := backoff.RetryNotifyWithData(operation, policy.backOff(ctx), notify)
	if err != nil {
		if classifiedRetryable(classify, err) && !errors.Is(err, context.Canceled) {
			return v, errors.Join(ErrRetriesExhausted, err)
		}
		return v, err
	}

	return v, nil
}

func classifiedRetryable(classify Classifier, err error) bool {
	if classify == nil {
		return true
	}
	return classify(err) == Retryable
}
