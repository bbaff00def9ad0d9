package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yellowcircle/outreach-engine/pkg/outreach/core"
)

func TestGenerateParsesContentAndBodyCredits(t *testing.T) {
	t.Parallel()

	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/generate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		// Header disagrees with the body on purpose: the body must win.
		w.Header().Set(remainingHeader, "9")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content":          "Subject line\n\nBody text",
			"creditsRemaining": 2,
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.Generate(context.Background(), "write an email", core.GenerateOptions{
		Stage:   core.StageInitial,
		Context: map[string]string{"company": "Acme"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "Subject line\n\nBody text" {
		t.Fatalf("Text = %q", res.Text)
	}
	if res.QuotaRemaining == nil || *res.QuotaRemaining != 2 {
		t.Fatalf("QuotaRemaining = %v, want 2", res.QuotaRemaining)
	}
	if gotReq.Prompt != "write an email" || gotReq.Stage != string(core.StageInitial) {
		t.Fatalf("request body = %+v", gotReq)
	}
	if gotReq.Context["company"] != "Acme" {
		t.Fatalf("request context = %v", gotReq.Context)
	}
}

func TestGenerateFallsBackToRemainingHeader(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(remainingHeader, "1")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"content": "ok"})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.Generate(context.Background(), "p", core.GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.QuotaRemaining == nil || *res.QuotaRemaining != 1 {
		t.Fatalf("QuotaRemaining = %v, want 1 from header", res.QuotaRemaining)
	}
}

func TestGenerateRateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"free tier exhausted"}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Generate(context.Background(), "p", core.GenerateOptions{})
	var rle *core.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("err = %v, want RateLimitError", err)
	}
	// 429 must not look transient: the run fails once, it is not retried.
	var te *core.TransientError
	if errors.As(err, &te) {
		t.Fatalf("429 classified as transient: %v", err)
	}
}

func TestGenerateServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Generate(context.Background(), "p", core.GenerateOptions{})
	var te *core.TransientError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TransientError", err)
	}
}

func TestGenerateEmptyContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"content": "  "})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Generate(context.Background(), "p", core.GenerateOptions{Stage: core.StageFollowup1})
	var me *core.MalformedResponseError
	if !errors.As(err, &me) {
		t.Fatalf("err = %v, want MalformedResponseError", err)
	}
	if me.Stage != core.StageFollowup1 {
		t.Fatalf("Stage = %q", me.Stage)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}

	srv.Close()
	var pu *core.ProviderUnavailableError
	if err := c.Health(context.Background()); !errors.As(err, &pu) {
		t.Fatalf("Health after shutdown = %v, want ProviderUnavailableError", err)
	}
}
