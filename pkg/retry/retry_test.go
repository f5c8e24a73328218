package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxAttempts int) Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = maxAttempts
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func TestDo(t *testing.T) {
	t.Parallel()

	t.Run("succeeds first try", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := Do(context.Background(), fastConfig(3), func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries until success", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := Do(context.Background(), fastConfig(3), func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error when exhausted", func(t *testing.T) {
		t.Parallel()

		terminal := errors.New("still failing")
		calls := 0
		err := Do(context.Background(), fastConfig(3), func() error {
			calls++
			return terminal
		})
		assert.ErrorIs(t, err, terminal)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		err := Do(ctx, fastConfig(3), func() error {
			calls++
			return errors.New("transient")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, calls)
	})
}

func TestDoWithResult(t *testing.T) {
	t.Parallel()

	t.Run("returns the value on success", func(t *testing.T) {
		t.Parallel()

		calls := 0
		got, err := DoWithResult(context.Background(), fastConfig(3), func() (string, error) {
			calls++
			if calls == 1 {
				return "", errors.New("transient")
			}
			return "réponse", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "réponse", got)
	})

	t.Run("returns zero value on failure", func(t *testing.T) {
		t.Parallel()

		got, err := DoWithResult(context.Background(), fastConfig(2), func() (int, error) {
			return 0, errors.New("nope")
		})
		assert.Error(t, err)
		assert.Zero(t, got)
	})
}
