// cmd/worker-manager/main_test.go
package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"coaching-workers/internal/common/logger"
)

func TestRetryWithBackoff(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		attempts := 0
		err := retryWithBackoff(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return errors.New("connection refused")
			}
			return nil
		}, 5, time.Millisecond, logger.NewTestLogger(t), "postgres")

		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		attempts := 0
		err := retryWithBackoff(context.Background(), func() error {
			attempts++
			return errors.New("no route to host")
		}, 3, time.Millisecond, logger.NewTestLogger(t), "redis")

		assert.EqualError(t, err, "redis failed after 3 attempts: no route to host")
		assert.Equal(t, 3, attempts)
	})

	t.Run("stops when cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		attempts := 0
		err := retryWithBackoff(ctx, func() error {
			attempts++
			cancel()
			return errors.New("timeout")
		}, 10, time.Hour, logger.NewTestLogger(t), "zeebe")

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	})
}
