package retry

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/changeset/internal/testutil"
)

var errFlaky = errors.New("database is locked")

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, Delay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), nil, "apply", func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	rec := testutil.NewRecorder()
	calls := 0
	err := Do(context.Background(), fastPolicy(3), rec.Logger(), "apply", func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errFlaky)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"step failed", "step failed"}, rec.Messages(slog.LevelWarn))
	assert.Equal(t, []string{"step succeeded after retry"}, rec.Messages(slog.LevelInfo))
}

func TestDo_Exhausted(t *testing.T) {
	rec := testutil.NewRecorder()
	calls := 0
	err := Do(context.Background(), fastPolicy(3), rec.Logger(), "apply widgets.yaml", func(context.Context) error {
		calls++
		return Retryable(errFlaky)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errFlaky)
	assert.EqualError(t, err, "apply widgets.yaml: retries exhausted after 3 attempts: database is locked")
	assert.Equal(t, []string{"step gave up"}, rec.Messages(slog.LevelError))
}

func TestDo_NonRetryableStops(t *testing.T) {
	fatal := errors.New("no such table")
	calls := 0
	err := Do(context.Background(), fastPolicy(5), nil, "apply", func(context.Context) error {
		calls++
		return fatal
	})
	assert.Equal(t, 1, calls)
	assert.Same(t, fatal, err)
	assert.False(t, errors.Is(err, ErrExhausted))
}

func TestDo_NonRetryableAfterRetryable(t *testing.T) {
	fatal := errors.New("no such table")
	calls := 0
	err := Do(context.Background(), fastPolicy(5), nil, "apply", func(context.Context) error {
		calls++
		if calls == 1 {
			return Retryable(errFlaky)
		}
		return fatal
	})
	assert.Equal(t, 2, calls)
	assert.Same(t, fatal, err)
}

func TestDo_SingleAttempt(t *testing.T) {
	for _, attempts := range []int{0, 1} {
		calls := 0
		err := Do(context.Background(), fastPolicy(attempts), nil, "apply", func(context.Context) error {
			calls++
			return Retryable(errFlaky)
		})
		assert.Equal(t, 1, calls)
		assert.ErrorIs(t, err, ErrExhausted)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{Attempts: 5, Delay: time.Hour}, nil, "apply", func(context.Context) error {
		calls++
		cancel()
		return Retryable(errFlaky)
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryable(t *testing.T) {
	assert.NoError(t, Retryable(nil))

	err := Retryable(errFlaky)
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, errFlaky.Error(), err.Error())
	assert.False(t, IsRetryable(errFlaky))
}
