// Package app orchestrates a generation run end to end: validate,
// check quota, pick a provider, generate the pathway's stages, settle
// the ledger, and hand the artifacts to the pathway's delivery step.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yellowcircle/outreach-engine/internal/brand"
	"github.com/yellowcircle/outreach-engine/internal/canvas"
	"github.com/yellowcircle/outreach-engine/internal/llm"
	"github.com/yellowcircle/outreach-engine/internal/pipeline"
	"github.com/yellowcircle/outreach-engine/internal/quota"
	"github.com/yellowcircle/outreach-engine/internal/util"
	"github.com/yellowcircle/outreach-engine/pkg/outreach/core"
)

type Engine struct {
	ledger   *quota.Ledger
	factory  *llm.Factory
	sender   core.Sender
	contacts core.ContactStore
	canvas   canvas.Store
	brand    brand.Config
	logger   *log.Logger

	// runMu serializes runs for this session: the ledger's check and
	// consume must not interleave across runs.
	runMu sync.Mutex

	// sendMu guards sentRuns, the one-off pathway's idempotency record.
	sendMu   sync.Mutex
	sentRuns map[string]string
	sentLog  *SentLog
}

type Options struct {
	Ledger   *quota.Ledger
	Factory  *llm.Factory
	Sender   core.Sender
	Contacts core.ContactStore
	Canvas   canvas.Store
	Brand    brand.Config
	Logger   *log.Logger

	// SentLog persists the duplicate-send guard across sessions.
	SentLog *SentLog
}

func New(opts Options) (*Engine, error) {
	if opts.Ledger == nil {
		return nil, fmt.Errorf("quota ledger is required")
	}
	if opts.Factory == nil {
		return nil, fmt.Errorf("llm factory is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	sentRuns := map[string]string{}
	if opts.SentLog != nil {
		loaded, err := opts.SentLog.Load()
		if err != nil {
			return nil, err
		}
		sentRuns = loaded
	}
	return &Engine{
		ledger:   opts.Ledger,
		factory:  opts.Factory,
		sender:   opts.Sender,
		contacts: opts.Contacts,
		canvas:   opts.Canvas,
		brand:    opts.Brand,
		logger:   opts.Logger,
		sentRuns: sentRuns,
		sentLog:  opts.SentLog,
	}, nil
}

// RunRequest is one generation run.
type RunRequest struct {
	Prospect core.Prospect
	Pathway  core.Pathway
	Mode     core.Mode

	// APIKey is the caller's provider key; empty means the hosted
	// proxy is preferred while free credits remain.
	APIKey string

	Temperature float64
	MaxTokens   int
}

// RunResult is a completed run: a full artifact set plus quota and,
// for the journey pathway, the deployed campaign.
type RunResult struct {
	RunID     string
	Pathway   core.Pathway
	Prospect  core.Prospect
	Artifacts map[core.Stage]core.EmailArtifact
	Quota     quota.State
	Provider  string

	// Campaign is set only for the journey pathway.
	Campaign *canvas.Graph
}

// Run executes one generation run. Exactly one credit is consumed on
// success regardless of stage count; failures consume nothing.
func (e *Engine) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if !req.Pathway.Valid() {
		return RunResult{}, fmt.Errorf("unknown pathway %q", req.Pathway)
	}
	if req.Mode == "" {
		req.Mode = core.ModeProspect
	}
	if err := req.Prospect.Validate(); err != nil {
		return RunResult{}, err
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()

	runID := uuid.NewString()
	logf := e.logf(runID)
	runStart := time.Now()

	hasKey := strings.TrimSpace(req.APIKey) != ""
	lane, err := e.ledger.Check(ctx, hasKey)
	if err != nil {
		logf("run denied: %v", err)
		return RunResult{}, err
	}

	useProxy := !hasKey && (lane == quota.LaneFree || lane == quota.LaneClient)
	gen, err := e.factory.Select(ctx, req.APIKey, useProxy)
	if err != nil {
		return RunResult{}, err
	}
	logf("run start: pathway=%s mode=%s lane=%s provider=%s company=%q",
		req.Pathway, req.Mode, lane, gen.Name(), req.Prospect.Company)

	seq, err := pipeline.GenerateSequence(ctx, gen, e.brand, req.Prospect, req.Pathway, req.Mode, pipeline.Options{
		APIKey:      req.APIKey,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		var rle *core.RateLimitError
		if errors.As(err, &rle) {
			// The proxy said no: the free lane is done for this session.
			if ferr := e.ledger.ForceExhaustFree(ctx); ferr != nil {
				logf("force-exhaust free lane failed: %v", ferr)
			}
			logf("run rate-limited by proxy, free lane closed")
		}
		logf("run failed: duration=%s error=%s",
			time.Since(runStart).Round(time.Millisecond), util.RedactSecrets(err.Error()))
		return RunResult{}, err
	}

	state, err := e.settle(ctx, lane, seq.QuotaRemaining)
	if err != nil {
		return RunResult{}, err
	}

	res := RunResult{
		RunID:     runID,
		Pathway:   req.Pathway,
		Prospect:  req.Prospect,
		Artifacts: seq.Artifacts,
		Quota:     state,
		Provider:  gen.Name(),
	}

	if req.Pathway == core.PathwayJourney {
		if e.canvas == nil {
			return RunResult{}, fmt.Errorf("journey pathway requires a canvas store")
		}
		campaign, err := canvas.Deploy(ctx, e.canvas, req.Prospect, seq.Artifacts)
		if err != nil {
			logf("campaign deploy failed: %v", err)
			return RunResult{}, err
		}
		res.Campaign = &campaign
		logf("campaign deployed: nodes=%d edges=%d", len(campaign.Nodes), len(campaign.Edges))
	}

	e.recordContact(req.Prospect, runID)

	logf("run complete: stages=%d quotaFree=%d quotaKeyed=%d duration=%s",
		len(seq.Artifacts), state.FreeRemaining, state.APIKeyRemaining,
		time.Since(runStart).Round(time.Millisecond))
	return res, nil
}

// settle books exactly one credit for a successful run. A proxy-
// reported remaining count is authoritative for the free lane.
func (e *Engine) settle(ctx context.Context, lane quota.Lane, proxyRemaining *int) (quota.State, error) {
	if lane == quota.LaneFree && proxyRemaining != nil {
		return e.ledger.ApplyProxyRemaining(ctx, *proxyRemaining)
	}
	return e.ledger.Consume(ctx, lane)
}

// recordContact writes the prospect to the content store without
// blocking or failing the run.
func (e *Engine) recordContact(p core.Prospect, runID string) {
	if e.contacts == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := e.contacts.Create(ctx, core.Contact{
			Email:          p.Email,
			FirstName:      p.FirstName,
			LastName:       p.LastName,
			Company:        p.Company,
			Title:          p.Title,
			Industry:       p.Industry,
			Trigger:        p.Trigger,
			TriggerDetails: p.TriggerDetails,
		})
		if err != nil {
			e.logf(runID)("contact write failed (ignored): %v", err)
		}
	}()
}

// SendRequest delivers a one-off run's artifact to the prospect.
type SendRequest struct {
	RunID    string
	Artifact core.EmailArtifact
	To       string
	ReplyTo  string

	// APIKey overrides the server-side ESP key when set.
	APIKey string
}

// Send delivers a single artifact through the ESP. Once a send for a
// run succeeds, repeats are refused with AlreadySentError; a failed
// send may be retried.
func (e *Engine) Send(ctx context.Context, req SendRequest) (core.SendResult, error) {
	if e.sender == nil {
		return core.SendResult{Status: core.SendStatusError}, &core.ESPNotConfiguredError{}
	}
	if strings.TrimSpace(req.RunID) == "" {
		return core.SendResult{Status: core.SendStatusError}, fmt.Errorf("run id is required")
	}
	logf := e.logf(req.RunID)

	e.sendMu.Lock()
	if msgID, ok := e.sentRuns[req.RunID]; ok {
		e.sendMu.Unlock()
		return core.SendResult{ID: msgID, Status: core.SendStatusSent},
			&core.AlreadySentError{RunID: req.RunID, MessageID: msgID}
	}
	e.sendMu.Unlock()

	start := time.Now()
	res, err := e.sender.SendEmail(ctx, core.SendRequest{
		To:      req.To,
		Subject: req.Artifact.Subject,
		HTML:    htmlBody(req.Artifact.Body),
		Text:    req.Artifact.Body,
		ReplyTo: req.ReplyTo,
		Tags:    []string{"campaign=outreach", "run=" + req.RunID},
		APIKey:  req.APIKey,
	})
	if err != nil {
		logf("send failed: to=%q duration=%s error=%s",
			req.To, time.Since(start).Round(time.Millisecond), util.RedactSecrets(err.Error()))
		return res, err
	}

	e.sendMu.Lock()
	e.sentRuns[req.RunID] = res.ID
	if e.sentLog != nil {
		snapshot := make(map[string]string, len(e.sentRuns))
		for k, v := range e.sentRuns {
			snapshot[k] = v
		}
		if serr := e.sentLog.Save(snapshot); serr != nil {
			logf("sent log write failed (ignored): %v", serr)
		}
	}
	e.sendMu.Unlock()
	logf("send complete: to=%q message=%s duration=%s",
		req.To, res.ID, time.Since(start).Round(time.Millisecond))

	e.markContacted(req.To, req.RunID)
	return res, nil
}

// markContacted updates the contact's engagement state after a
// successful send, fire-and-forget.
func (e *Engine) markContacted(email, runID string) {
	if e.contacts == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		status := "contacted"
		now := time.Now().UTC()
		err := e.contacts.Update(ctx, email, core.ContactPatch{
			Status:     &status,
			LastRunID:  &runID,
			LastSentAt: &now,
		})
		if err != nil {
			e.logf(runID)("contact update failed (ignored): %v", err)
		}
	}()
}

// Quota returns the current ledger state.
func (e *Engine) Quota(ctx context.Context) (quota.State, error) {
	return e.ledger.State(ctx)
}

// ExportJSON writes a run's artifact set as indented JSON, keyed by
// stage, for the copy/export pathways.
func ExportJSON(w io.Writer, res RunResult) error {
	type exportProspect struct {
		Company string `json:"company"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Title   string `json:"title,omitempty"`
	}
	type export struct {
		RunID       string                            `json:"run_id"`
		Pathway     core.Pathway                      `json:"pathway"`
		Provider    string                            `json:"provider,omitempty"`
		GeneratedAt time.Time                         `json:"generated_at"`
		Prospect    exportProspect                    `json:"prospect"`
		Artifacts   map[core.Stage]core.EmailArtifact `json:"artifacts"`
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(export{
		RunID:       res.RunID,
		Pathway:     res.Pathway,
		Provider:    res.Provider,
		GeneratedAt: time.Now().UTC(),
		Prospect: exportProspect{
			Company: res.Prospect.Company,
			Name:    strings.TrimSpace(res.Prospect.FirstName + " " + res.Prospect.LastName),
			Email:   res.Prospect.Email,
			Title:   res.Prospect.Title,
		},
		Artifacts: res.Artifacts,
	})
}

// DeployCampaign builds and merges a campaign graph for an already
// generated three-stage artifact set, without consuming quota. This
// backs the deploy subcommand for runs exported earlier.
func (e *Engine) DeployCampaign(ctx context.Context, p core.Prospect, artifacts map[core.Stage]core.EmailArtifact) (canvas.Graph, error) {
	if e.canvas == nil {
		return canvas.Graph{}, fmt.Errorf("deploy requires a canvas store")
	}
	if err := p.Validate(); err != nil {
		return canvas.Graph{}, err
	}
	campaign, err := canvas.Deploy(ctx, e.canvas, p, artifacts)
	if err != nil {
		return canvas.Graph{}, err
	}
	e.logger.Printf("campaign deployed: company=%q nodes=%d edges=%d",
		p.Company, len(campaign.Nodes), len(campaign.Edges))
	return campaign, nil
}

func (e *Engine) logf(runID string) func(format string, args ...any) {
	return func(format string, args ...any) {
		prefix := make([]any, 0, len(args)+1)
		prefix = append(prefix, runID)
		prefix = append(prefix, args...)
		e.logger.Printf("run=%s "+format, prefix...)
	}
}

// htmlBody renders the plain-text body as minimal HTML paragraphs.
func htmlBody(text string) string {
	paras := strings.Split(strings.TrimSpace(text), "\n\n")
	var sb strings.Builder
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(strings.ReplaceAll(htmlEscape(p), "\n", "<br>"))
		sb.WriteString("</p>")
	}
	return sb.String()
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
