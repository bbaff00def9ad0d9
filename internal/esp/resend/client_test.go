package resend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yellowcircle/outreach-engine/pkg/outreach/core"
)

func TestSendEmail(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotReq sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/emails" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "em_123"})
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "re_default", From: "hello@yellowcircle.io", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.SendEmail(context.Background(), core.SendRequest{
		To:      "jane@acme.com",
		Subject: "Quick question",
		HTML:    "<p>Hi Jane</p>",
		Text:    "Hi Jane",
		ReplyTo: "founders@yellowcircle.io",
		Tags:    []string{"campaign=outreach", "stage=initial"},
	})
	if err != nil {
		t.Fatalf("SendEmail: %v", err)
	}
	if res.ID != "em_123" || res.Status != core.SendStatusSent {
		t.Fatalf("result = %+v", res)
	}
	if gotAuth != "Bearer re_default" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotReq.From != "hello@yellowcircle.io" || gotReq.To != "jane@acme.com" {
		t.Fatalf("addresses = %+v", gotReq)
	}
	if len(gotReq.Tags) != 2 || gotReq.Tags[0] != (tag{Name: "campaign", Value: "outreach"}) {
		t.Fatalf("tags = %+v", gotReq.Tags)
	}
}

func TestSendEmailCallerKey(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "em_1"})
	}))
	defer srv.Close()

	c, err := New(Config{From: "hello@yellowcircle.io", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.IsConfigured() {
		t.Fatal("IsConfigured = true without a default key")
	}
	_, err = c.SendEmail(context.Background(), core.SendRequest{
		To: "a@b.co", Subject: "s", APIKey: "re_caller",
	})
	if err != nil {
		t.Fatalf("SendEmail with caller key: %v", err)
	}
	if gotAuth != "Bearer re_caller" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
}

func TestSendEmailNotConfigured(t *testing.T) {
	t.Parallel()

	c, err := New(Config{From: "hello@yellowcircle.io"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.SendEmail(context.Background(), core.SendRequest{To: "a@b.co", Subject: "s"})
	var nc *core.ESPNotConfiguredError
	if !errors.As(err, &nc) {
		t.Fatalf("err = %v, want ESPNotConfiguredError", err)
	}
}

func TestSendEmailErrorStatuses(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid to address","type":"validation_error"}}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "re_x", From: "hello@yellowcircle.io", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.SendEmail(context.Background(), core.SendRequest{To: "bad", Subject: "s"})
	if err == nil {
		t.Fatal("want error for 422")
	}
	if res.Status != core.SendStatusError {
		t.Fatalf("Status = %q, want %q", res.Status, core.SendStatusError)
	}
	var te *core.TransientError
	if errors.As(err, &te) {
		t.Fatalf("422 classified as transient: %v", err)
	}
}
