// Package pipeline turns one prospect and one stage into one email
// artifact: build prompts, call the selected generator, parse the
// response. Multi-stage sequences are strictly sequential and
// all-or-nothing.
package pipeline

import (
	"context"

	"github.com/yellowcircle/outreach-engine/internal/brand"
	"github.com/yellowcircle/outreach-engine/internal/prompt"
	"github.com/yellowcircle/outreach-engine/pkg/outreach/core"
)

// Defaults mirror the sampling parameters the generator UIs shipped with.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 500
)

type Options struct {
	// APIKey is the caller's provider key, forwarded to direct clients.
	APIKey      string
	Temperature float64
	MaxTokens   int
}

func (o Options) withDefaults() Options {
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}

// StageResult pairs a produced artifact with its QuotaRemaining report,
// which is only present on the hosted-proxy path.
type StageResult struct {
	Artifact       core.EmailArtifact
	QuotaRemaining *int
}

// GenerateStage produces the artifact for one stage. Any failure means
// no artifact: the zero StageResult carries nothing usable.
func GenerateStage(ctx context.Context, gen core.Generator, b brand.Config, p core.Prospect, stage core.Stage, mode core.Mode, opts Options) (StageResult, error) {
	opts = opts.withDefaults()
	system, user, err := prompt.Build(b, p, stage, mode)
	if err != nil {
		return StageResult{}, err
	}

	res, err := gen.Generate(ctx, user, core.GenerateOptions{
		APIKey:       opts.APIKey,
		SystemPrompt: system,
		Temperature:  opts.Temperature,
		MaxTokens:    opts.MaxTokens,
		Stage:        stage,
		Context: map[string]string{
			"company": p.Company,
			"mode":    string(mode),
		},
	})
	if err != nil {
		return StageResult{}, err
	}

	art, err := prompt.ParseArtifact(res.Text, stage)
	if err != nil {
		return StageResult{}, err
	}
	return StageResult{Artifact: art, QuotaRemaining: res.QuotaRemaining}, nil
}

// SequenceResult is a complete artifact set for a pathway's stages.
type SequenceResult struct {
	Artifacts map[core.Stage]core.EmailArtifact

	// QuotaRemaining is the last proxy-reported count seen, if any.
	QuotaRemaining *int
}

// GenerateSequence runs the pathway's stages in order. The first
// failure aborts the sequence and discards any artifacts already
// produced; callers never see a partial set.
func GenerateSequence(ctx context.Context, gen core.Generator, b brand.Config, p core.Prospect, pathway core.Pathway, mode core.Mode, opts Options) (SequenceResult, error) {
	out := SequenceResult{Artifacts: make(map[core.Stage]core.EmailArtifact)}
	for _, stage := range pathway.Stages() {
		res, err := GenerateStage(ctx, gen, b, p, stage, mode, opts)
		if err != nil {
			return SequenceResult{}, err
		}
		out.Artifacts[stage] = res.Artifact
		if res.QuotaRemaining != nil {
			out.QuotaRemaining = res.QuotaRemaining
		}
	}
	return out, nil
}
