// Package quota is the single source of truth for "can the caller
// generate right now" and for which lane pays for a successful run.
package quota

import (
	"context"
	"sync"

	"github.com/yellowcircle/outreach-engine/pkg/outreach/core"
)

// Lane names one of the three quota counters.
type Lane string

const (
	LaneClient Lane = "client"
	LaneAPIKey Lane = "api-key"
	LaneFree   Lane = "free"
)

const (
	DefaultFree   = 3
	DefaultAPIKey = 10
)

// State holds the two persisted counters. The unlimited-client flag is
// configuration, not ledger state, and lives on the Ledger itself.
type State struct {
	FreeRemaining   int `json:"free_remaining"`
	APIKeyRemaining int `json:"apikey_remaining"`
}

// DefaultState returns the counters a fresh session starts with.
func DefaultState() State {
	return State{FreeRemaining: DefaultFree, APIKeyRemaining: DefaultAPIKey}
}

// Decide picks the lane for a run and reports whether the run is
// permitted. Precedence: client flag, then caller key, then free lane.
// It is pure so the precedence rules are testable without a store.
func Decide(s State, isClient, hasAPIKey bool) (Lane, bool) {
	if isClient {
		return LaneClient, true
	}
	if hasAPIKey {
		return LaneAPIKey, s.APIKeyRemaining > 0
	}
	return LaneFree, s.FreeRemaining > 0
}

// Store persists ledger state. Load reports found=false when no state
// has ever been saved, in which case defaults apply.
type Store interface {
	Load(ctx context.Context) (s State, found bool, err error)
	Save(ctx context.Context, s State) error
}

// Ledger guards check-and-consume for one session. Callers must not
// interleave runs: Check and the matching Consume belong to the same
// run, and the engine serializes runs around them.
type Ledger struct {
	store    Store
	isClient bool

	mu     sync.Mutex
	state  State
	loaded bool
}

func NewLedger(store Store, isClient bool) *Ledger {
	return &Ledger{store: store, isClient: isClient}
}

func (l *Ledger) load(ctx context.Context) error {
	if l.loaded {
		return nil
	}
	s, found, err := l.store.Load(ctx)
	if err != nil {
		return err
	}
	if !found {
		s = DefaultState()
	}
	l.state = s
	l.loaded = true
	return nil
}

// Check decides the lane for a run, denying with QuotaExhaustedError
// when the applicable counter is empty. No counter is touched.
func (l *Ledger) Check(ctx context.Context, hasAPIKey bool) (Lane, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.load(ctx); err != nil {
		return "", err
	}
	lane, ok := Decide(l.state, l.isClient, hasAPIKey)
	if !ok {
		return lane, &core.QuotaExhaustedError{Lane: string(lane)}
	}
	return lane, nil
}

// Consume decrements the lane's counter by exactly one (floor at zero)
// and persists the new state. The client lane never decrements.
func (l *Ledger) Consume(ctx context.Context, lane Lane) (State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.load(ctx); err != nil {
		return State{}, err
	}
	switch lane {
	case LaneAPIKey:
		if l.state.APIKeyRemaining > 0 {
			l.state.APIKeyRemaining--
		}
	case LaneFree:
		if l.state.FreeRemaining > 0 {
			l.state.FreeRemaining--
		}
	case LaneClient:
		return l.state, nil
	}
	if err := l.store.Save(ctx, l.state); err != nil {
		return l.state, err
	}
	return l.state, nil
}

// ApplyProxyRemaining overwrites the free counter with the proxy's
// authoritative remaining count. Negative values are clamped to zero.
func (l *Ledger) ApplyProxyRemaining(ctx context.Context, remaining int) (State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.load(ctx); err != nil {
		return State{}, err
	}
	if remaining < 0 {
		remaining = 0
	}
	l.state.FreeRemaining = remaining
	if err := l.store.Save(ctx, l.state); err != nil {
		return l.state, err
	}
	return l.state, nil
}

// ForceExhaustFree zeroes the free lane. Called when the hosted proxy
// reports a 429; the next keyless run is denied and the caller is
// prompted for an API key. This is a one-shot transition, not a retry.
func (l *Ledger) ForceExhaustFree(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.load(ctx); err != nil {
		return err
	}
	if l.state.FreeRemaining == 0 {
		return nil
	}
	l.state.FreeRemaining = 0
	return l.store.Save(ctx, l.state)
}

// Reset restores both counters to their defaults and persists them.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = DefaultState()
	l.loaded = true
	return l.store.Save(ctx, l.state)
}

// State returns a copy of the current counters.
func (l *Ledger) State(ctx context.Context) (State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.load(ctx); err != nil {
		return State{}, err
	}
	return l.state, nil
}

// IsClient reports whether this session bypasses counters entirely.
func (l *Ledger) IsClient() bool {
	return l.isClient
}
