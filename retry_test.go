package main

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

func rateLimited() error {
	return &TransientError{Err: errors.New("rate limited (HTTP 429)")}
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := testPolicy()
	assert.Equal(t, time.Second, p.Backoff(1, nil))
	assert.Equal(t, 2*time.Second, p.Backoff(2, nil))
	assert.Equal(t, 4*time.Second, p.Backoff(3, nil))
	assert.Equal(t, 30*time.Second, p.Backoff(10, nil))
}

func TestRetryPolicyHonoursRetryAfter(t *testing.T) {
	p := testPolicy()
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
	resp.Header.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, p.Backoff(1, resp))

	resp.Header.Set("Retry-After", "3600")
	assert.Equal(t, p.MaxDelay, p.Backoff(1, resp))
}

func TestRetryMachineTransitions(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		m := newRetryMachine(testPolicy())
		assert.Equal(t, stateAttempting, m.state)
		m.observe(42, nil)
		assert.Equal(t, stateSucceeded, m.state)
		assert.Equal(t, CountResult{Count: 42}, m.result())
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		m := newRetryMachine(testPolicy())
		apiErr := &APIError{Status: 400, Body: "bad"}
		m.observe(0, apiErr)
		assert.Equal(t, statePermanentlyFailed, m.state)
		assert.Equal(t, 1, m.attempt)
		assert.ErrorIs(t, m.result().Err, apiErr)
	})

	t.Run("transient errors advance the attempt counter", func(t *testing.T) {
		m := newRetryMachine(testPolicy())
		d1 := m.observe(0, rateLimited())
		assert.Equal(t, stateAttempting, m.state)
		assert.Equal(t, 2, m.attempt)
		d2 := m.observe(0, rateLimited())
		assert.Equal(t, 3, m.attempt)
		assert.Greater(t, d2, d1)

		m.observe(0, rateLimited())
		assert.Equal(t, statePermanentlyFailed, m.state)
		assert.ErrorIs(t, m.result().Err, ErrRetriesExhausted)
	})

	t.Run("settled machine ignores further outcomes", func(t *testing.T) {
		m := newRetryMachine(testPolicy())
		m.observe(1, nil)
		m.observe(0, rateLimited())
		assert.Equal(t, stateSucceeded, m.state)
	})
}

func TestRunWithRetry(t *testing.T) {
	var slept []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	t.Run("succeeds on third attempt", func(t *testing.T) {
		slept = nil
		calls := 0
		res := runWithRetry(context.Background(), testPolicy(), sleep, func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, rateLimited()
			}
			return 99, nil
		}, nil)
		assert.True(t, res.OK())
		assert.Equal(t, 99, res.Count)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
	})

	t.Run("no sleep after the final attempt", func(t *testing.T) {
		slept = nil
		calls := 0
		res := runWithRetry(context.Background(), testPolicy(), sleep, func(context.Context) (int, error) {
			calls++
			return 0, rateLimited()
		}, nil)
		assert.False(t, res.OK())
		assert.Equal(t, 3, calls)
		assert.Len(t, slept, 2)
	})

	t.Run("cancelled sleep fails the call", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res := runWithRetry(ctx, testPolicy(), sleepContext, func(context.Context) (int, error) {
			return 0, rateLimited()
		}, nil)
		require.Error(t, res.Err)
		assert.ErrorIs(t, res.Err, context.Canceled)
	})

	t.Run("onRetry sees every retried attempt", func(t *testing.T) {
		var attempts []int
		runWithRetry(context.Background(), testPolicy(), sleep, func(context.Context) (int, error) {
			return 0, rateLimited()
		}, func(attempt int, _ time.Duration, _ error) {
			attempts = append(attempts, attempt)
		})
		assert.Equal(t, []int{1, 2}, attempts)
	})
}
