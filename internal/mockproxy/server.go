package mockproxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Call records a generation request made to the mock proxy.
type Call struct {
	Method  string
	Path    string
	Stage   string
	Context map[string]string
}

// Server implements a minimal hosted-proxy API surface: a metered
// /generate endpoint and a /health probe. It hands out canned
// artifacts and counts down a credit pool, returning 429 once the
// pool is empty, the same contract the production proxy exposes to
// keyless callers.
type Server struct {
	mu      sync.Mutex
	calls   []Call
	credits int

	expectedAuthorization string

	limiter   *rate.Limiter
	responder func(stage string, context map[string]string) string
}

// New constructs a mock proxy with the given starting credit pool.
func New(credits int) *Server {
	return &Server{
		credits:   credits,
		responder: defaultResponder,
	}
}

// RequireBearerToken enforces that requests include an Authorization
// header matching the token. An empty token disables enforcement.
func (s *Server) RequireBearerToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token = strings.TrimSpace(token)
	if token == "" {
		s.expectedAuthorization = ""
		return
	}
	s.expectedAuthorization = "Bearer " + token
}

// SetRateLimit throttles /generate to rps requests per second with
// the given burst. Requests over the limit get 429 without touching
// the credit pool.
func (s *Server) SetRateLimit(rps float64, burst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// SetResponder overrides the canned artifact for /generate.
func (s *Server) SetResponder(fn func(stage string, context map[string]string) string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responder = fn
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/generate", s.handleGenerate)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Credits returns the remaining credit pool.
func (s *Server) Credits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credits
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	expected := s.expectedAuthorization
	s.mu.Unlock()

	if expected == "" {
		return true
	}
	if r.Header.Get("Authorization") != expected {
		writeError(w, http.StatusUnauthorized, "auth", "invalid_token", "missing or invalid bearer token")
		return false
	}
	return true
}

type generateRequest struct {
	Prompt  string            `json:"prompt"`
	Stage   string            `json:"stage"`
	Context map[string]string `json:"context"`
}

type generateResponse struct {
	Content          string `json:"content"`
	CreditsRemaining int    `json:"creditsRemaining"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r) {
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "bad_json", "request body is not valid JSON")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing_prompt", "prompt is required")
		return
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{
		Method:  r.Method,
		Path:    r.URL.Path,
		Stage:   req.Stage,
		Context: req.Context,
	})

	if s.limiter != nil && !s.limiter.Allow() {
		s.mu.Unlock()
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate_limit", "throttled", "too many requests")
		return
	}
	if s.credits <= 0 {
		s.mu.Unlock()
		writeError(w, http.StatusTooManyRequests, "rate_limit", "credits_exhausted", "free generations exhausted")
		return
	}
	s.credits--
	remaining := s.credits
	responder := s.responder
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	_ = json.NewEncoder(w).Encode(generateResponse{
		Content:          responder(req.Stage, req.Context),
		CreditsRemaining: remaining,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func writeError(w http.ResponseWriter, status int, errType, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"message": message,
			"type":    errType,
			"code":    code,
		},
	})
}

func defaultResponder(stage string, context map[string]string) string {
	company := context["company"]
	if company == "" {
		company = "your team"
	}
	subject := fmt.Sprintf("A quick note for %s", company)
	body := fmt.Sprintf("Hi, this is a generated %s email for %s.", stage, company)
	b, _ := json.Marshal(map[string]string{"subject": subject, "body": body})
	return string(b)
}
