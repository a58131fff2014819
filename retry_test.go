package smklog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	warns, errors int
}

func (l *recordingLogger) Warn(string, ...interface{})  { l.warns++ }
func (l *recordingLogger) Error(string, ...interface{}) { l.errors++ }

func fastRetry() RetryOptions {
	return RetryOptions{
		Operation:   "save widget",
		UserMessage: "The widget could not be saved.",
		Context:     map[string]interface{}{"widget": 7},
		Delay:       time.Millisecond,
	}
}

func TestRetryBoundOnTransientFailure(t *testing.T) {
	calls := 0
	log := &recordingLogger{}
	opts := fastRetry()
	opts.Logger = log

	_, err := ExecuteWithRetry(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, NewError(ErrorTypeLocked, "database is locked")
	}, opts)

	assert.Equal(t, DefaultMaxAttempts, calls)
	require.True(t, IsPersistence(err))
	e, _ := AsError(err)
	assert.Equal(t, "The widget could not be saved.", e.DisplayMessage())
	assert.Equal(t, 7, e.Context["widget"])
	assert.Equal(t, 3, e.Context["attempts"])
	assert.True(t, errors.Is(err, NewError(ErrorTypeLocked, "")), "root cause stays in the chain")
	assert.Equal(t, 2, log.warns)
	assert.Equal(t, 1, log.errors)
}

func TestRetryStopsOnTerminalFailure(t *testing.T) {
	for _, terminal := range []error{
		InvalidInput("entity cannot be nil"),
		NotFound("widget", 3),
		MultipleResults("widget", 2),
		errors.New("plain failure"),
	} {
		calls := 0
		err := Execute(context.Background(), func(context.Context) error {
			calls++
			return terminal
		}, fastRetry())

		assert.Equal(t, 1, calls)
		assert.False(t, IsPersistence(err))
		e, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, "The widget could not be saved.", e.DisplayMessage())
		assert.Equal(t, "save widget", e.Context["operation"])
	}
}

func TestRetryRecoversAfterTransientFailure(t *testing.T) {
	calls := 0
	got, err := ExecuteWithRetry(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", NewError(ErrorTypeTimeout, "timeout")
		}
		return "ok", nil
	}, fastRetry())

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)
}

func TestRetryHonoursMaxAttempts(t *testing.T) {
	calls := 0
	opts := fastRetry()
	opts.MaxAttempts = 5
	opts.Backoff = BackoffLinear
	_ = Execute(context.Background(), func(context.Context) error {
		calls++
		return NewError(ErrorTypeConnection, "reset")
	}, opts)
	assert.Equal(t, 5, calls)
}

func TestRetryAbortsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	opts := fastRetry()
	opts.Delay = time.Hour

	err := Execute(ctx, func(context.Context) error {
		calls++
		cancel()
		return NewError(ErrorTypeTimeout, "slow")
	}, opts)

	assert.Equal(t, 1, calls)
	assert.True(t, IsErrorType(err, ErrorTypeTimeout))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryOptionDefaults(t *testing.T) {
	opts := RetryOptions{}.withDefaults()
	assert.Equal(t, 3, opts.MaxAttempts)
	assert.Equal(t, 800*time.Millisecond, opts.Delay)
	assert.Equal(t, 800*time.Millisecond, opts.delay(3))

	opts.Backoff = BackoffLinear
	assert.Equal(t, 2400*time.Millisecond, opts.delay(3))
}

func TestLinearBackOffGrowsPerAttempt(t *testing.T) {
	opts := RetryOptions{Delay: 10 * time.Millisecond, Backoff: BackoffLinear}.withDefaults()
	b := opts.backOff()
	assert.Equal(t, 10*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 20*time.Millisecond, b.NextBackOff())
	b.Reset()
	assert.Equal(t, 10*time.Millisecond, b.NextBackOff())
}

func TestRetryTerminalOnLastAttemptStaysUnwrapped(t *testing.T) {
	calls := 0
	opts := fastRetry()
	opts.MaxAttempts = 2
	err := Execute(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return NewError(ErrorTypeLocked, "busy")
		}
		return NotFound("widget", 3)
	}, opts)

	assert.Equal(t, 2, calls)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsPersistence(err))
}
