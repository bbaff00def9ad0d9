// Package proxy is the client for the hosted generation proxy, the
// path used when the caller has no API key and free credits remain.
// The proxy owns the model key and is authoritative for the free lane.
package proxy

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
	"strconv"
	"strings"
	"time"

	"github.com/yellowcircle/outreach-engine/internal/httpx"
	"github.com/yellowcircle/outreach-engine/pkg/outreach/core"
)

const remainingHeader = "X-RateLimit-Remaining"

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

func New(baseURL string) (*Client, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("proxy base URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse proxy base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("proxy base URL must include a host (got %q)", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func (c *Client) Name() string { return "proxy" }

type generateRequest struct {
	Prompt  string            `json:"prompt"`
	Stage   string            `json:"stage"`
	Context map[string]string `json:"context,omitempty"`
}

type generateResponse struct {
	Content          string `json:"content"`
	CreditsRemaining *int   `json:"creditsRemaining"`
}

// Generate posts the prompt to the proxy and returns the generated
// text plus the proxy's remaining-credit count. A JSON body count wins
// over the X-RateLimit-Remaining header when both are present.
func (c *Client) Generate(ctx context.Context, prompt string, opts core.GenerateOptions) (core.GenerateResult, error) {
	body := generateRequest{
		Prompt:  prompt,
		Stage:   string(opts.Stage),
		Context: opts.Context,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return core.GenerateResult{}, err
	}

	u := c.resolve("generate")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(b))
	if err != nil {
		return core.GenerateResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return core.GenerateResult{}, classifyNetErr(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.GenerateResult{}, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return core.GenerateResult{}, &core.RateLimitError{Err: httpx.NewError("generate", resp, rb)}
	}
	if resp.StatusCode/100 == 5 {
		return core.GenerateResult{}, &core.TransientError{Err: httpx.NewError("generate", resp, rb)}
	}
	if resp.StatusCode/100 != 2 {
		return core.GenerateResult{}, httpx.NewError("generate", resp, rb)
	}

	var out generateResponse
	if err := json.Unmarshal(rb, &out); err != nil {
		return core.GenerateResult{}, fmt.Errorf("parse proxy response: %w", err)
	}
	if strings.TrimSpace(out.Content) == "" {
		return core.GenerateResult{}, &core.MalformedResponseError{
			Stage:  opts.Stage,
			Reason: "proxy returned no content",
		}
	}

	res := core.GenerateResult{Text: strings.TrimSpace(out.Content)}
	res.QuotaRemaining = remaining(out, resp.Header)
	return res, nil
}

// Health reports whether the proxy is reachable and serving.
func (c *Client) Health(ctx context.Context) error {
	u := c.resolve("health")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &core.ProviderUnavailableError{Provider: "proxy", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return &core.ProviderUnavailableError{Provider: "proxy", Err: httpx.NewError("health", resp, rb)}
	}
	return nil
}

func remaining(out generateResponse, h http.Header) *int {
	if out.CreditsRemaining != nil {
		return out.CreditsRemaining
	}
	if v := strings.TrimSpace(h.Get(remainingHeader)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return &n
		}
	}
	return nil
}

func classifyNetErr(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &core.TransientError{Err: err}
	}
	return &core.ProviderUnavailableError{Provider: "proxy", Err: err}
}

func (c *Client) resolve(relPath string) *url.URL {
	relPath = strings.TrimPrefix(relPath, "/")
	rel := &url.URL{Path: relPath}
	return c.baseURL.ResolveReference(rel)
}
