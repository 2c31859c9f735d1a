// Package llm talks to an OpenAI-compatible chat completion endpoint.
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

	"github.com/nijaru/yt-sentiment/config"
	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const defaultHTTPTimeout = 90 * time.Second

// Completer returns the raw model output for a prompt applied to one chunk of text.
// The output is untrusted and must be parsed defensively.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt, chunk string) (string, error)
}

// Client wraps the chat completion API.
type Client struct {
	cfg        config.LLMConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     retry.Policy
	logger     *logrus.Entry
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithLimiter overrides the request pacing limiter. A nil limiter disables pacing.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

func WithLogger(logger *logrus.Entry) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a client. Requests are paced to cfg.RequestsPerMinute.
func NewClient(cfg config.LLMConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		policy:     retry.DefaultPolicy(),
		logger:     logrus.NewEntry(logrus.StandardLogger()),
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute)/60, 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	c.policy.Logger = c.logger
	return c
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the system prompt, then the user prompt followed by the chunk.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt, chunk string) (string, error) {
	const op = "llm.Complete"

	if c.cfg.APIKey == "" {
		return "", errors.InvalidInput(op, nil, "llm api key required")
	}
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return "", errors.InvalidInput(op, nil, "user prompt required")
	}

	user := userPrompt
	if chunk = strings.TrimSpace(chunk); chunk != "" {
		user += "\n\nTranscript:\n" + chunk
	}

	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: strings.TrimSpace(systemPrompt)},
			{Role: "user", Content: user},
		},
		Temperature: 0,
	}

	return retry.Do(ctx, c.policy, op, func(ctx context.Context) (string, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}
		return c.send(ctx, payload)
	})
}

func (c *Client) send(ctx context.Context, payload chatCompletionRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "llm request: encode body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", errors.Wrap(err, "llm request: new request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "llm request: http error")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "llm request: read body")
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &retry.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", errors.Wrap(err, "llm request: decode response")
	}
	if completion.Error != nil {
		return "", fmt.Errorf("llm request: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	for _, choice := range completion.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
		if text := strings.TrimSpace(choice.Text); text != "" {
			return text, nil
		}
	}
	return "", retry.Transient(fmt.Errorf("llm request: empty content"))
}
