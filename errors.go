package main

import (
	"errors"
	"fmt"
	"net/http"
)

// Exit codes follow sysexits(3).
const (
	exitOK          = 0
	exitUsage       = 64
	exitNoInput     = 66
	exitUnavailable = 69
	exitIOErr       = 74
)

var (
	ErrBadInvocation        = errors.New("bad invocation")
	ErrUnknownTokenizer     = errors.New("unknown tokenizer")
	ErrTokenizerConfig      = errors.New("tokenizer not configured")
	ErrNoAPIKey             = errors.New("API key not found (set TREETOK_API_KEY or ANTHROPIC_API_KEY, or use --offline)")
	ErrOfflineConflict      = errors.New("tokenizer requires network access but --offline is set")
	ErrNoEligibleTokenizers = errors.New("no eligible tokenizers")
	ErrPathNotFound         = errors.New("path not found")
	ErrIO                   = errors.New("I/O error")
)

// TransientError marks a remote failure worth retrying (rate limiting).
type TransientError struct {
	Resp *http.Response // Kept for Retry-After; body already drained
	Err  error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// APIError is a non-retryable HTTP failure from the remote tokenizer.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s", e.Status, e.Body)
}

// isTransient reports whether err should be retried.
func isTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// exitCodeFor maps a fatal error to its process exit code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, ErrPathNotFound):
		return exitNoInput
	case errors.Is(err, ErrNoAPIKey), errors.Is(err, ErrOfflineConflict):
		return exitUnavailable
	case errors.Is(err, ErrIO):
		return exitIOErr
	default:
		return exitUsage
	}
}
