// Package retry implements the bounded-attempt backoff contract used for
// remote calls. The wait between attempts is a blocking suspension on the
// caller's context, never a spin, so many repository loops can share a
// scheduler without one loop's backoff starving another.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WaitKind selects how the wait before each retry is computed.
type WaitKind string

const (
	// WaitFixed waits Seconds before every retry.
	WaitFixed WaitKind = "fixed"
	// WaitExponential waits clamp(Seconds * 2^k, MinSeconds, MaxSeconds)
	// before retry k (0-indexed over retries, i.e. before attempt k+2).
	WaitExponential WaitKind = "exponential"
)

// Policy parameterizes Execute. MaxAttempts must be >= 1.
type Policy struct {
	MaxAttempts int
	Wait        WaitKind
	Seconds     float64
	MinSeconds  float64 // exponential only
	MaxSeconds  float64 // exponential only
}

// ErrExhausted is wrapped into the error returned once all attempts fail.
// It is terminal for the call, not for the loop; the caller decides whether
// the iteration is abandoned or the run ends.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Exhausted reports whether err signals retry exhaustion.
func Exhausted(err error) bool {
	return errors.Is(err, ErrExhausted)
}

// Validate checks the policy parameters.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry: max_attempts must be >= 1, got %d", p.MaxAttempts)
	}
	switch p.Wait {
	case WaitFixed, WaitExponential:
	case "":
		// No wait between attempts.
	default:
		return fmt.Errorf("retry: unknown wait kind %q", p.Wait)
	}
	if p.Seconds < 0 || p.MinSeconds < 0 || p.MaxSeconds < 0 {
		return fmt.Errorf("retry: wait seconds must be >= 0")
	}
	return nil
}

// Delay returns the wait before retry k (0-indexed). Attempt 1 never waits.
func (p Policy) Delay(k int) time.Duration {
	switch p.Wait {
	case WaitFixed:
		return secondsToDuration(p.Seconds)
	case WaitExponential:
		s := p.Seconds * float64(int64(1)<<uint(k))
		if s < p.MinSeconds {
			s = p.MinSeconds
		}
		if p.MaxSeconds > 0 && s > p.MaxSeconds {
			s = p.MaxSeconds
		}
		return secondsToDuration(s)
	}
	return 0
}

// sleeper lets tests stub out real clock waits.
type sleeper func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Executor runs calls under a Policy.
type Executor struct {
	Policy Policy
	sleep  sleeper
}

// NewExecutor creates an Executor for the policy.
func NewExecutor(p Policy) *Executor {
	return &Executor{Policy: p, sleep: contextSleep}
}

// Execute invokes call up to MaxAttempts times, waiting per the policy
// between attempts. Attempts are strictly sequential. It returns nil on the
// first success; after the final failure it returns the last error wrapped
// with ErrExhausted. Context cancellation stops retrying immediately.
func (e *Executor) Execute(ctx context.Context, call func(ctx context.Context) error) error {
	maxAttempts := e.Policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := e.sleep
	if sleep == nil {
		sleep = contextSleep
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, e.Policy.Delay(attempt-1)); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = call(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, maxAttempts, lastErr)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
