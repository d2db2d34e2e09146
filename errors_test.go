package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{fmt.Errorf("%w: extra argument", ErrBadInvocation), exitUsage},
		{fmt.Errorf("%w: gpt9", ErrUnknownTokenizer), exitUsage},
		{ErrNoEligibleTokenizers, exitUsage},
		{fmt.Errorf("%w: hf", ErrTokenizerConfig), exitUsage},
		{fmt.Errorf("%w: ./missing", ErrPathNotFound), exitNoInput},
		{ErrNoAPIKey, exitUnavailable},
		{fmt.Errorf("claude: %w", ErrOfflineConflict), exitUnavailable},
		{fmt.Errorf("%w: writing output", ErrIO), exitIOErr},
		{errors.New("anything else"), exitUsage},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCodeFor(tt.err), "%v", tt.err)
	}
}

func TestTransientError(t *testing.T) {
	inner := errors.New("rate limited (HTTP 429)")
	err := fmt.Errorf("cell: %w", &TransientError{Err: inner})
	assert.True(t, isTransient(err))
	assert.ErrorIs(t, err, inner)

	assert.False(t, isTransient(&APIError{Status: 500, Body: "boom"}))
	assert.EqualError(t, &APIError{Status: 500, Body: "boom"}, "API error (HTTP 500): boom")
}
