// Package resend sends finished artifacts through the Resend email
// API. Sending is a separate, caller-initiated act: nothing in the
// generation path touches this package.
package resend

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

const defaultBaseURL = "https://api.resend.com"

type Config struct {
	APIKey string
	From   string

	// BaseURL overrides the API base URL. Useful for testing.
	BaseURL string
}

type Client struct {
	baseURL *url.URL
	apiKey  string
	from    string
	http    *http.Client
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(base, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse resend base URL: %w", err)
	}
	return &Client{
		baseURL: u,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		from:    strings.TrimSpace(cfg.From),
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// IsConfigured reports whether a default key is present. Callers can
// still send with their own key in SendRequest.APIKey.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

type tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text,omitempty"`
	ReplyTo string `json:"reply_to,omitempty"`
	Tags    []tag  `json:"tags,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

func (c *Client) SendEmail(ctx context.Context, req core.SendRequest) (core.SendResult, error) {
	key := c.apiKey
	if strings.TrimSpace(req.APIKey) != "" {
		key = strings.TrimSpace(req.APIKey)
	}
	if key == "" {
		return core.SendResult{Status: core.SendStatusError}, &core.ESPNotConfiguredError{}
	}
	if strings.TrimSpace(req.To) == "" {
		return core.SendResult{Status: core.SendStatusError}, fmt.Errorf("recipient is required")
	}
	if strings.TrimSpace(req.Subject) == "" {
		return core.SendResult{Status: core.SendStatusError}, fmt.Errorf("subject is required")
	}

	body := sendRequest{
		From:    c.from,
		To:      strings.TrimSpace(req.To),
		Subject: strings.TrimSpace(req.Subject),
		HTML:    req.HTML,
		Text:    req.Text,
		ReplyTo: strings.TrimSpace(req.ReplyTo),
		Tags:    buildTags(req.Tags),
	}
	b, err := json.Marshal(body)
	if err != nil {
		return core.SendResult{Status: core.SendStatusError}, err
	}

	u := c.baseURL.ResolveReference(&url.URL{Path: "emails"})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(b))
	if err != nil {
		return core.SendResult{Status: core.SendStatusError}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+key)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return core.SendResult{Status: core.SendStatusError}, &core.TransientError{Err: err}
		}
		return core.SendResult{Status: core.SendStatusError}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.SendResult{Status: core.SendStatusError}, err
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5 {
		return core.SendResult{Status: core.SendStatusError}, &core.TransientError{Err: httpx.NewError("sendEmail", resp, rb)}
	}
	if resp.StatusCode/100 != 2 {
		return core.SendResult{Status: core.SendStatusError}, httpx.NewError("sendEmail", resp, rb)
	}

	var out sendResponse
	if err := json.Unmarshal(rb, &out); err != nil {
		return core.SendResult{Status: core.SendStatusError}, fmt.Errorf("parse send response: %w", err)
	}
	return core.SendResult{ID: strings.TrimSpace(out.ID), Status: core.SendStatusSent}, nil
}

// buildTags converts "name=value" strings into Resend tag objects.
// Bare names get the value "true".
func buildTags(in []string) []tag {
	out := make([]tag, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		name, value, found := strings.Cut(s, "=")
		if !found {
			value = "true"
		}
		out = append(out, tag{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
