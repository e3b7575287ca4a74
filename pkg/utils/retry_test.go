package utils_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gatewarden/gatewarden/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTemporary = errors.New("temporary error")

func TestWithRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		operation     func() error
		expectedCalls int
		expectedErr   error
	}{
		{
			name: "succeeds first try",
			operation: func() error {
				return nil
			},
			expectedCalls: 1,
			expectedErr:   nil,
		},
		{
			name: "succeeds after retries",
			operation: func() func() error {
				count := 0
				return func() error {
					count++
					if count < 3 {
						return errTemporary
					}
					return nil
				}
			}(),
			expectedCalls: 3,
			expectedErr:   nil,
		},
		{
			name: "fails all retries",
			operation: func() error {
				return errTemporary
			},
			expectedCalls: 4, // Initial + 3 retries
			expectedErr:   errTemporary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()
			calls := 0
			wrappedOp := func() (struct{}, error) {
				calls++
				return struct{}{}, tt.operation()
			}

			opts := utils.RetryOptions{
				MaxElapsedTime:  time.Second,
				InitialInterval: time.Millisecond,
				MaxInterval:     10 * time.Millisecond,
				MaxRetries:      3,
			}

			_, err := utils.WithRetry(ctx, wrappedOp, opts)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.expectedCalls, calls)
		})
	}
}

func TestWithRetryCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	calls := 0
	_, err := utils.WithRetry(ctx, func() (struct{}, error) {
		calls++
		return struct{}{}, errTemporary
	}, utils.GetPlatformRetryOptions())

	require.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}
