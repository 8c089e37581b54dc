// File: internal/llm/client.go
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/auspex/internal/config"
)

var jsonAPI = json.ConfigCompatibleWithStandardLibrary

// ErrTruncated marks a response cut off at max_completion_tokens. It is not
// retried; the loop surfaces token-limit guidance to the caller.
var ErrTruncated = errors.New("response truncated at max_completion_tokens; raise the completion token limit")

const (
	retryInitialInterval = 1 * time.Second
	maxRetries           = 3
)

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL          string
	apiKey           string
	model            string
	temperature      float64
	maxTokens        int
	topP             float64
	frequencyPenalty float64
	presencePenalty  float64

	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient builds a client from config. A zero RequestsPerSecond leaves the
// limiter off.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:           cfg.APIKey,
		model:            cfg.Model,
		temperature:      cfg.Temperature,
		maxTokens:        cfg.MaxTokens,
		topP:             cfg.TopP,
		frequencyPenalty: cfg.FrequencyPenalty,
		presencePenalty:  cfg.PresencePenalty,
		httpClient:       &http.Client{Timeout: timeout},
		limiter:          limiter,
		logger:           logger.Named("llm"),
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// DecideRequest carries one decision's inputs.
type DecideRequest struct {
	Task       string
	Snapshot   string
	History    []string
	SchemaDesc string
	Screenshot []byte
	Vision     bool
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model               string          `json:"model"`
	Messages            []chatMessage   `json:"messages"`
	Temperature         float64         `json:"temperature"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	TopP                float64         `json:"top_p,omitempty"`
	FrequencyPenalty    float64         `json:"frequency_penalty,omitempty"`
	PresencePenalty     float64         `json:"presence_penalty,omitempty"`
	ResponseFormat      *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Decide performs one chat completion and returns the model's JSON decision.
// Transient failures retry up to 3 times at 1s, 2s, 4s; everything else
// propagates immediately.
func (c *Client) Decide(ctx context.Context, req DecideRequest) (json.RawMessage, Usage, error) {
	body, err := c.buildRequestBody(req)
	if err != nil {
		return nil, Usage{}, fmt.Errorf("failed to encode request: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInitialInterval
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = 8 * time.Second

	var decision json.RawMessage
	var usage Usage
	operation := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		d, u, err := c.complete(ctx, body)
		if err != nil {
			if isTransient(err) {
				c.logger.Debug("Transient LLM failure, will retry", zap.Error(err))
				return err
			}
			return backoff.Permanent(err)
		}
		decision, usage = d, u
		return nil
	}

	err = backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx))
	if err != nil {
		return nil, Usage{}, err
	}
	return decision, usage, nil
}

func (c *Client) buildRequestBody(req DecideRequest) ([]byte, error) {
	userText := BuildUserMessage(req.Task, req.Snapshot, req.History, req.SchemaDesc)

	var userContent any = userText
	withImage := len(req.Screenshot) > 0
	if withImage {
		userContent = []contentPart{
			{Type: "text", Text: userText},
			{Type: "image_url", ImageURL: &imageURL{
				URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(req.Screenshot),
			}},
		}
	}

	wire := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: BuildSystemPrompt(req.Vision)},
			{Role: "user", Content: userContent},
		},
		Temperature:         c.temperature,
		MaxCompletionTokens: c.maxTokens,
		TopP:                c.topP,
		FrequencyPenalty:    c.frequencyPenalty,
		PresencePenalty:     c.presencePenalty,
	}
	// Providers widely mishandle JSON mode combined with image parts, so
	// response_format is requested only for text-only messages.
	if !withImage {
		wire.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return jsonAPI.Marshal(wire)
}

// httpStatusError distinguishes transport-level failures for retry policy.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("llm endpoint returned status %d: %s", e.status, e.body)
}

func (c *Client) complete(ctx context.Context, body []byte) (json.RawMessage, Usage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, Usage{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, Usage{}, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, Usage{}, fmt.Errorf("failed to read llm response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, Usage{}, &httpStatusError{status: resp.StatusCode, body: truncateBody(raw)}
	}

	var parsed chatResponse
	if err := jsonAPI.Unmarshal(raw, &parsed); err != nil {
		return nil, Usage{}, fmt.Errorf("failed to decode llm response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, Usage{}, errors.New("llm response contained no choices")
	}

	choice := parsed.Choices[0]
	usage := Usage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
		Calls:            1,
	}
	if choice.FinishReason == "length" {
		return nil, usage, ErrTruncated
	}
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return nil, usage, errors.New("llm response content was empty")
	}
	content = stripCodeFence(content)
	if !jsonAPI.Valid([]byte(content)) {
		return nil, usage, fmt.Errorf("llm response was not valid JSON: %s", truncateBody([]byte(content)))
	}
	return json.RawMessage(content), usage, nil
}

// stripCodeFence tolerates models that wrap JSON in a markdown fence despite
// instructions.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncateBody(b []byte) string {
	const max = 300
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}

var transientMessages = []string{
	"econnreset",
	"etimedout",
	"socket hang up",
	"fetch failed",
	"connection reset",
	"connection refused",
	"timeout",
	"unexpected eof",
}

// isTransient decides retry eligibility: 429, 408, or 5xx statuses, and
// low-level network errors.
func isTransient(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		s := statusErr.status
		return s == http.StatusTooManyRequests || s == http.StatusRequestTimeout || s >= 500
	}
	if errors.Is(err, ErrTruncated) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMessages {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
