package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/yellowcircle/outreach-engine/internal/mockproxy"
)

func main() {
	addr := defaultString("MOCK_PROXY_ADDR", ":8080")
	credits := defaultInt("MOCK_PROXY_CREDITS", 3)
	token := defaultString("MOCK_PROXY_TOKEN", "")
	rps := defaultFloat("MOCK_PROXY_RPS", 0)

	fs := flag.NewFlagSet("mock-proxy", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.IntVar(&credits, "credits", credits, "Free generation credits before 429")
	fs.StringVar(&token, "token", token, "Required bearer token, empty disables auth")
	fs.Float64Var(&rps, "rps", rps, "Request rate limit (RPS), 0 disables")
	_ = fs.Parse(os.Args[1:])

	srv := mockproxy.New(credits)
	if token != "" {
		srv.RequireBearerToken(token)
	}
	if rps > 0 {
		srv.SetRateLimit(rps, 1)
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-proxy listening on %s (credits=%d)\n", addr, credits)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}

func defaultInt(envVar string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return out
}

func defaultFloat(envVar string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return out
}
