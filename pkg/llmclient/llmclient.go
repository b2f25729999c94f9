// Package llmclient implements the LLMClient port against Anthropic's
// Messages API. No Anthropic SDK appears anywhere in the reference corpus
// (checked every go.mod in _examples), so this is a small hand-written
// net/http client rather than a wrapped third-party SDK — see DESIGN.md for
// the justification. The call shape (one user message per sub-call, model
// id from config, bounded by a per-call timeout) mirrors the original's
// services/analysis.py:AnalysisService, which wraps anthropic.Anthropic the
// same way: one blocking call per prompt, no streaming, no tool use.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultEndpoint = "https://api.anthropic.com/v1/messages"
const anthropicVersion = "2023-06-01"

// DefaultTimeout matches spec.md §5's 60s-per-LLM-call default.
const DefaultTimeout = 60 * time.Second

// ErrUnavailable is the sentinel kind for any failure reaching or parsing
// a response from the backend, per spec.md §4.4/§7.
var ErrUnavailable = errors.New("llm backend unavailable")

// Client calls the Anthropic Messages API.
type Client struct {
	apiKey   string
	model    string
	endpoint string
	http     *http.Client
	timeout  time.Duration
}

// New builds a Client. apiKey is normally resolved via
// config.Config.AnthropicKey; an empty key is accepted, and every Complete
// call then fails with the backend's error wrapped in ErrUnavailable. model is the
// Anthropic model identifier, e.g. "claude-3-5-sonnet-latest".
func New(apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		apiKey:   apiKey,
		model:    model,
		endpoint: defaultEndpoint,
		http:     &http.Client{Timeout: timeout},
		timeout:  timeout,
	}
}

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []messageItem `json:"messages"`
}

type messageItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends prompt as a single user message and returns the model's
// text response. promptName is carried only for diagnostics; it has no
// effect on the request.
func (c *Client) Complete(ctx context.Context, promptName, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: 4096,
		Messages:  []messageItem{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: rate limited", ErrUnavailable)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: unparsable response: %v", ErrUnavailable, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
