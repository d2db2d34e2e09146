package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

const defaultMaxAttempts = 3

// RetryPolicy bounds retries of transient remote failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func newRetryPolicy(cfg Config) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
}

// Backoff is the delay before attempt+1, given that attempt (1-based) failed
// with resp. Delays double from BaseDelay and never exceed MaxDelay; a
// Retry-After header on resp takes precedence within that ceiling.
func (p RetryPolicy) Backoff(attempt int, resp *http.Response) time.Duration {
	d := retryablehttp.DefaultBackoff(p.BaseDelay, p.MaxDelay, attempt-1, resp)
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

type retryState int

const (
	stateAttempting retryState = iota
	stateSucceeded
	statePermanentlyFailed
)

func (s retryState) String() string {
	switch s {
	case stateAttempting:
		return "attempting"
	case stateSucceeded:
		return "succeeded"
	case statePermanentlyFailed:
		return "permanently_failed"
	default:
		return "unknown"
	}
}

// ErrRetriesExhausted wraps the last transient failure once every attempt
// has been used.
var ErrRetriesExhausted = errors.New("rate limit exceeded after retries")

// retryMachine drives one (file, tokenizer) call through
// Attempting(n) -> Succeeded | PermanentlyFailed.
type retryMachine struct {
	policy  RetryPolicy
	state   retryState
	attempt int // 1-based attempt currently in flight or last made
	count   int
	err     error
}

func newRetryMachine(policy RetryPolicy) *retryMachine {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	return &retryMachine{policy: policy, state: stateAttempting, attempt: 1}
}

// observe records the outcome of the current attempt and returns the delay
// to wait before the next one. The delay is only meaningful while the
// machine is still attempting.
func (m *retryMachine) observe(count int, err error) time.Duration {
	if m.state != stateAttempting {
		return 0
	}
	switch {
	case err == nil:
		m.state = stateSucceeded
		m.count = count
		return 0
	case !isTransient(err):
		m.state = statePermanentlyFailed
		m.err = err
		return 0
	case m.attempt >= m.policy.MaxAttempts:
		m.state = statePermanentlyFailed
		m.err = fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
		return 0
	}

	var resp *http.Response
	var te *TransientError
	if errors.As(err, &te) {
		resp = te.Resp
	}
	delay := m.policy.Backoff(m.attempt, resp)
	m.attempt++
	return delay
}

func (m *retryMachine) done() bool { return m.state != stateAttempting }

func (m *retryMachine) result() CountResult {
	if m.state == stateSucceeded {
		return CountResult{Count: m.count}
	}
	return CountResult{Err: m.err}
}

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
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

// runWithRetry calls fn until the machine settles. onRetry, if set, is told
// about every transient failure that will be retried.
func runWithRetry(ctx context.Context, policy RetryPolicy, sleep sleepFunc, fn func(context.Context) (int, error), onRetry func(attempt int, delay time.Duration, err error)) CountResult {
	m := newRetryMachine(policy)
	for !m.done() {
		count, err := fn(ctx)
		attempt := m.attempt
		delay := m.observe(count, err)
		if m.done() {
			break
		}
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			m.state = statePermanentlyFailed
			m.err = serr
		}
	}
	return m.result()
}
