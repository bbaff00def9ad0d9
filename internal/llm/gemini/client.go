// Package gemini talks directly to the Gemini API with a caller- or
// operator-supplied key. Used when the hosted proxy is bypassed.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/genai"

	"github.com/yellowcircle/outreach-engine/pkg/outreach/core"
)

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string
}

type Client struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("gemini model is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &Client{client: client, model: strings.TrimSpace(cfg.Model)}, nil
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Generate(ctx context.Context, prompt string, opts core.GenerateOptions) (core.GenerateResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return core.GenerateResult{}, errors.New("empty prompt")
	}

	gcc := &genai.GenerateContentConfig{
		CandidateCount: 1,
	}
	if opts.Temperature > 0 {
		t := float32(opts.Temperature)
		gcc.Temperature = &t
	}
	if opts.MaxTokens > 0 {
		gcc.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if strings.TrimSpace(opts.SystemPrompt) != "" {
		gcc.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: opts.SystemPrompt}},
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), gcc)
	if err != nil {
		return core.GenerateResult{}, classifyErr(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return core.GenerateResult{}, &core.MalformedResponseError{
			Stage:  opts.Stage,
			Reason: "model returned no text",
		}
	}
	return core.GenerateResult{Text: text}, nil
}

func classifyErr(err error) error {
	// Wrap transient failures so the worker pool will retry with backoff.
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return &core.TransientError{Err: err}
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && (ne.Timeout() || ne.Temporary()) {
		return &core.TransientError{Err: err}
	}
	return err
}
