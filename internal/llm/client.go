// Package llm wraps the completion backend behind a single text-in, text-out
// contract. The backend speaks the OpenAI-compatible HTTP API; chat models
// get a message-shaped request, legacy completion models a raw-text one, and
// callers never see the difference.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sqlscribe/sqlscribe/internal/observability"
)

// Options shape a single generation call. AssistantPrefix seeds the start of
// the model's reply ("word in mouth") to bias the continuation toward a
// desired output format; StopSequences bound generation.
type Options struct {
	StopSequences   []string
	AssistantPrefix string
}

type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

type Client struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
	tokens    *TokenSummary
}

func NewClient(cfg Config, tokens *TokenSummary) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8000
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if tokens == nil {
		tokens = &TokenSummary{}
	}
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:    strings.TrimSpace(cfg.APIKey),
		model:     model,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: timeout},
		tokens:    tokens,
	}, nil
}

func (c *Client) Tokens() *TokenSummary {
	return c.tokens
}

// Generate runs one completion at temperature 0. Transport failures, non-2xx
// statuses, and empty choices all come back as errors; the pipeline maps any
// of them to its sentinel rather than letting them escape.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	path := "/v1/chat/completions"
	payload := c.chatPayload(prompt, opts)
	if !usesChatShape(c.model) {
		path = "/v1/completions"
		payload = c.completionPayload(prompt, opts)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("completion failed status=%d body=%s", resp.StatusCode, string(rawRespBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Text string `json:"text"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int64 `json:"prompt_tokens"`
			CompletionTokens int64 `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty completion choices")
	}

	c.tokens.Add(parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)
	observability.AddLLMTokens(parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)

	if usesChatShape(c.model) {
		return parsed.Choices[0].Message.Content, nil
	}
	return parsed.Choices[0].Text, nil
}

func (c *Client) chatPayload(prompt string, opts Options) map[string]any {
	messages := []map[string]string{
		{"role": "user", "content": prompt},
	}
	if opts.AssistantPrefix != "" {
		messages = append(messages, map[string]string{
			"role":    "assistant",
			"content": opts.AssistantPrefix,
		})
	}
	payload := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": 0,
		"max_tokens":  c.maxTokens,
	}
	if len(opts.StopSequences) > 0 {
		payload["stop"] = opts.StopSequences
	}
	return payload
}

func (c *Client) completionPayload(prompt string, opts Options) map[string]any {
	// Raw-text models have no assistant turn; the prefix is appended to the
	// prompt so the continuation still starts from it.
	text := prompt
	if opts.AssistantPrefix != "" {
		text = prompt + "\n" + opts.AssistantPrefix
	}
	payload := map[string]any{
		"model":       c.model,
		"prompt":      text,
		"temperature": 0,
		"max_tokens":  c.maxTokens,
	}
	if len(opts.StopSequences) > 0 {
		payload["stop"] = opts.StopSequences
	}
	return payload
}

func usesChatShape(model string) bool {
	return !strings.HasPrefix(model, "text-")
}
