// Package groq talks to the Groq OpenAI-compatible chat completions
// API with a caller- or operator-supplied key.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yellowcircle/outreach-engine/internal/httpx"
	"github.com/yellowcircle/outreach-engine/pkg/outreach/core"
)

const defaultBaseURL = "https://api.groq.com/openai/v1"

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the API base URL. Useful for testing.
	BaseURL string
}

type Client struct {
	baseURL *url.URL
	apiKey  string
	model   string
	http    *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("groq api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("groq model is required")
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(base, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse groq base URL: %w", err)
	}
	return &Client{
		baseURL: u,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   strings.TrimSpace(cfg.Model),
		http:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (c *Client) Name() string { return "groq" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) Generate(ctx context.Context, prompt string, opts core.GenerateOptions) (core.GenerateResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return core.GenerateResult{}, errors.New("empty prompt")
	}

	key := c.apiKey
	if strings.TrimSpace(opts.APIKey) != "" {
		key = strings.TrimSpace(opts.APIKey)
	}

	msgs := make([]chatMessage, 0, 2)
	if strings.TrimSpace(opts.SystemPrompt) != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: opts.SystemPrompt})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: prompt})

	body := chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return core.GenerateResult{}, err
	}

	u := c.baseURL.ResolveReference(&url.URL{Path: "chat/completions"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(b))
	if err != nil {
		return core.GenerateResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return core.GenerateResult{}, &core.TransientError{Err: err}
		}
		return core.GenerateResult{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.GenerateResult{}, err
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5 {
		return core.GenerateResult{}, &core.TransientError{Err: httpx.NewError("chatCompletions", resp, rb)}
	}
	if resp.StatusCode/100 != 2 {
		return core.GenerateResult{}, httpx.NewError("chatCompletions", resp, rb)
	}

	var out chatResponse
	if err := json.Unmarshal(rb, &out); err != nil {
		return core.GenerateResult{}, fmt.Errorf("parse chat completions response: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return core.GenerateResult{}, &core.MalformedResponseError{
			Stage:  opts.Stage,
			Reason: "no choices in completion response",
		}
	}
	return core.GenerateResult{Text: strings.TrimSpace(out.Choices[0].Message.Content)}, nil
}
