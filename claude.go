package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	claudeTokenizerName = "claude"
	anthropicVersion    = "2023-06-01"
	countTokensPath     = "/v1/messages/count_tokens"
	maxErrorBody        = 4096
)

type countTokensRequest struct {
	Model    string          `json:"model"`
	Messages []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type countTokensResponse struct {
	InputTokens int `json:"input_tokens"`
}

type claudeErrorResp struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ClaudeTokenizer counts tokens with Anthropic's count_tokens endpoint. Each
// call is a single attempt; retries belong to the dispatcher.
type ClaudeTokenizer struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

func newClaudeTokenizer(apiKey, model, baseURL string, timeout time.Duration) *ClaudeTokenizer {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if baseURL == "" {
		baseURL = defaultClaudeURL
	}
	if model == "" {
		model = defaultClaudeModel
	}
	return &ClaudeTokenizer{
		apiKey:   apiKey,
		model:    model,
		endpoint: strings.TrimRight(baseURL, "/") + countTokensPath,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *ClaudeTokenizer) Descriptor() Descriptor {
	return Descriptor{Name: claudeTokenizerName, Availability: RequiresCredentialAndNetwork, Cost: CostRemote}
}

func (c *ClaudeTokenizer) buildHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

// CountTokens sends one count_tokens request. A 429 response is returned as
// a *TransientError; every other failure is permanent.
func (c *ClaudeTokenizer) CountTokens(ctx context.Context, text string) (int, error) {
	// The endpoint rejects empty content.
	if text == "" {
		return 0, nil
	}

	payload, err := json.Marshal(countTokensRequest{
		Model:    c.model,
		Messages: []claudeMessage{{Role: "user", Content: text}},
	})
	if err != nil {
		return 0, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	c.buildHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var parsed countTokensResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return 0, fmt.Errorf("decoding response: %w", err)
		}
		if parsed.InputTokens < 0 {
			return 0, fmt.Errorf("decoding response: negative input_tokens %d", parsed.InputTokens)
		}
		return parsed.InputTokens, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return 0, &TransientError{Resp: resp, Err: fmt.Errorf("rate limited (HTTP %d)", resp.StatusCode)}
	default:
		return 0, &APIError{Status: resp.StatusCode, Body: readClaudeErrMsg(resp.Body)}
	}
}

func (c *ClaudeTokenizer) Close() {
	c.client.CloseIdleConnections()
}

func readClaudeErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	var errResp claudeErrorResp
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
	}
	return strings.TrimSpace(string(data))
}
