package smklog

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// =====================================
// Retry Wrapper
// =====================================

// Default retry bounds.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 800 * time.Millisecond
)

// Backoff selects how the delay between attempts grows.
type Backoff string

const (
	// BackoffFixed waits Delay between every attempt.
	BackoffFixed Backoff = "fixed"
	// BackoffLinear waits Delay times the attempt number.
	BackoffLinear Backoff = "linear"
)

// Logger receives retry diagnostics. *logger.Logger satisfies it.
type Logger interface {
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// RetryOptions configures ExecuteWithRetry.
type RetryOptions struct {
	// Operation names the logical operation in logs and error context.
	Operation string
	// UserMessage is attached as the display message of any returned error.
	UserMessage string
	// Context is merged into the context map of any returned error.
	Context map[string]interface{}
	// MaxAttempts defaults to DefaultMaxAttempts.
	MaxAttempts int
	// Delay defaults to DefaultRetryDelay.
	Delay   time.Duration
	Backoff Backoff
	Logger  Logger
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Delay <= 0 {
		o.Delay = DefaultRetryDelay
	}
	if o.Backoff == "" {
		o.Backoff = BackoffFixed
	}
	return o
}

func (o RetryOptions) delay(attempt int) time.Duration {
	if o.Backoff == BackoffLinear {
		return o.Delay * time.Duration(attempt)
	}
	return o.Delay
}

func (o RetryOptions) backOff() backoff.BackOff {
	if o.Backoff == BackoffLinear {
		return &linearBackOff{opts: o}
	}
	return backoff.NewConstantBackOff(o.Delay)
}

// linearBackOff waits Delay times the number of failed attempts so far.
type linearBackOff struct {
	opts    RetryOptions
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.opts.delay(b.attempt)
}

func (b *linearBackOff) Reset() { b.attempt = 0 }

// ExecuteWithRetry runs operation until it succeeds, fails terminally or
// runs out of attempts. Only transient failures (see IsTransient) are
// retried. Terminal failures are returned at once with the user message and
// context attached. Exhausting the attempts yields ErrorTypePersistence
// wrapping the last failure.
func ExecuteWithRetry[T any](ctx context.Context, operation func(ctx context.Context) (T, error), opts RetryOptions) (T, error) {
	opts = opts.withDefaults()
	var zero T
	var lastErr, terminal error
	attempt := 0

	result, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		result, err := operation(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsTransient(err) {
			terminal = err
			return zero, backoff.Permanent(err)
		}
		return zero, err
	},
		backoff.WithBackOff(opts.backOff()),
		backoff.WithMaxTries(uint(opts.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			if opts.Logger != nil {
				opts.Logger.Warn("transient failure, retrying", "operation", opts.Operation, "attempt", attempt, "error", err, "delay", next)
			}
		}),
	)

	switch {
	case err == nil:
		return result, nil
	case terminal != nil:
		if opts.Logger != nil {
			opts.Logger.Error("operation failed", "operation", opts.Operation, "attempt", attempt, "error", terminal)
		}
		return zero, decorate(terminal, opts, attempt)
	case ctx.Err() != nil:
		return zero, decorate(NewErrorWithCause(ErrorTypeTimeout, "retry aborted", context.Cause(ctx)), opts, attempt)
	}

	if opts.Logger != nil {
		opts.Logger.Error("retries exhausted", "operation", opts.Operation, "attempts", attempt, "error", lastErr)
	}
	exhausted := Persistence("operation failed after retries", lastErr)
	if opts.Operation != "" {
		exhausted.Message = opts.Operation + " failed after retries"
	}
	return zero, decorate(exhausted, opts, attempt)
}

// Execute is ExecuteWithRetry for operations without a result.
func Execute(ctx context.Context, operation func(ctx context.Context) error, opts RetryOptions) error {
	_, err := ExecuteWithRetry(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	}, opts)
	return err
}

func decorate(err error, opts RetryOptions, attempts int) error {
	kv := map[string]interface{}{"attempts": attempts}
	if opts.Operation != "" {
		kv["operation"] = opts.Operation
	}
	for k, v := range opts.Context {
		kv[k] = v
	}
	return WithDisplay(WithContext(err, kv), opts.UserMessage)
}
