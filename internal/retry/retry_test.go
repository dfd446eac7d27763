package retry_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btc-parachain/chainrpc/internal/retry"
)

var errNetwork = errors.New("connection reset")

func testPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.InitialInterval = time.Millisecond
	p.MaxInterval = 5 * time.Millisecond
	p.MaxRetries = 3
	p.MaxElapsedTime = time.Second
	return p
}

func classifyAllRetryable(error) retry.Class { return retry.Retryable }

func TestDo(t *testing.T) {
	tt := []struct {
		name       string
		failures   int
		classify   retry.Classifier
		expectedFn func(t *testing.T, err error, attempts int)
	}{
		{
			name:     "success first try",
			failures: 0,
			classify: classifyAllRetryable,
			expectedFn: func(t *testing.T, err error, attempts int) {
				require.NoError(t, err)
				require.Equal(t, 1, attempts)
			},
		},
		{
			name:     "success after transient failures",
			failures: 2,
			classify: classifyAllRetryable,
			expectedFn: func(t *testing.T, err error, attempts int) {
				require.NoError(t, err)
				require.Equal(t, 3, attempts)
			},
		},
		{
			name:     "budget exhausted wraps last error",
			failures: 10,
			classify: classifyAllRetryable,
			expectedFn: func(t *testing.T, err error, attempts int) {
				require.ErrorIs(t, err, retry.ErrRetriesExhausted)
				require.ErrorIs(t, err, errNetwork)
				require.Equal(t, 4, attempts) // initial attempt + MaxRetries
			},
		},
		{
			name:     "fatal error aborts immediately",
			failures: 10,
			classify: func(error) retry.Class { return retry.Fatal },
			expectedFn: func(t *testing.T, err error, attempts int) {
				require.ErrorIs(t, err, errNetwork)
				require.NotErrorIs(t, err, retry.ErrRetriesExhausted)
				require.Equal(t, 1, attempts)
			},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			// Given
			attempts := 0
			op := func() error {
				attempts++
				if attempts <= tc.failures {
					return errNetwork
				}
				return nil
			}

			// When
			err := retry.Do(context.Background(), slog.Default(), testPolicy(), "test-op", tc.classify, op)

			// Then
			tc.expectedFn(t, err, attempts)
		})
	}
}

func TestDoWithData(t *testing.T) {
	// Given
	attempts := 0
	op := func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, errNetwork
		}
		return 42, nil
	}

	// When
	v, err := retry.DoWithData(context.Background(), slog.Default(), testPolicy(), "test-op", classifyAllRetryable, op)

	// Then
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestDo_ContextCancelled(t *testing.T) {
	// Given
	ctx, cancel := context.WithCancel(context.Background())

	op := func() error {
		cancel()
		return errNetwork
	}

	// When
	err := retry.Do(ctx, slog.Default(), testPolicy(), "test-op", classifyAllRetryable, op)

	// Then
	require.Error(t, err)
	require.NotErrorIs(t, err, retry.ErrRetriesExhausted)
}
