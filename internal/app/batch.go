package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yellowcircle/outreach-engine/internal/pipeline"
	"github.com/yellowcircle/outreach-engine/pkg/outreach/core"
)

// RunLocalBatch reads a local CSV of prospects and writes a local CSV
// of generated sequences.
//
// Batch runs never ride the free lane: the hosted proxy's credits are
// sized for interactive one-at-a-time runs. Callers bring their own
// key or a client session. One credit is consumed per successful row
// on the keyed lane.
func (e *Engine) RunLocalBatch(ctx context.Context, inputPath, outputPath string, pathway core.Pathway, mode core.Mode, opts pipeline.BatchOptions) error {
	if !pathway.Valid() {
		return fmt.Errorf("unknown pathway %q", pathway)
	}
	if mode == "" {
		mode = core.ModeProspect
	}

	hasKey := strings.TrimSpace(opts.Generation.APIKey) != ""
	if !hasKey && !e.ledger.IsClient() {
		return fmt.Errorf("batch runs require an API key or a client session")
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()

	runID := uuid.NewString()
	logf := e.logf(runID)
	runStart := time.Now()

	lane, err := e.ledger.Check(ctx, hasKey)
	if err != nil {
		return err
	}

	inF, err := os.Open(inputPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = inF.Close()
	}()

	prospects, err := pipeline.ReadProspectsCSV(inF)
	if err != nil {
		return err
	}
	logf("batch start: pathway=%s mode=%s lane=%s prospects=%d workers=%d", pathway, mode, lane, len(prospects), opts.Workers)

	gen, err := e.factory.Select(ctx, opts.Generation.APIKey, false)
	if err != nil {
		return err
	}

	rows, err := pipeline.GenerateAll(ctx, prospects, tracedGenerator{next: gen, logger: e.logger, runID: runID}, e.brand, pathway, mode, opts)
	if err != nil {
		return err
	}

	okRows := 0
	for _, row := range rows {
		if row.Status == "ok" {
			okRows++
			if _, cerr := e.ledger.Consume(ctx, lane); cerr != nil {
				logf("quota consume failed (continuing): %v", cerr)
			}
		}
	}
	logf("batch generation complete: produced=%d ok=%d error=%d duration=%s",
		len(rows), okRows, len(rows)-okRows, time.Since(runStart).Round(time.Millisecond))

	outF, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = outF.Close()
	}()

	if err := pipeline.WriteCSV(outF, rows); err != nil {
		return err
	}
	return outF.Close()
}

// tracedGenerator logs each provider call with timing, the way long
// batch runs need to be observable row by row.
type tracedGenerator struct {
	next   core.Generator
	logger *log.Logger
	runID  string
}

func (t tracedGenerator) Name() string { return t.next.Name() }

func (t tracedGenerator) Generate(ctx context.Context, prompt string, opts core.GenerateOptions) (core.GenerateResult, error) {
	start := time.Now()
	out, err := t.next.Generate(ctx, prompt, opts)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		t.logger.Printf("run=%s generate: provider=%s stage=%s duration=%s status=error",
			t.runID, t.next.Name(), opts.Stage, elapsed)
		return out, err
	}
	t.logger.Printf("run=%s generate: provider=%s stage=%s duration=%s status=ok chars=%d",
		t.runID, t.next.Name(), opts.Stage, elapsed, len(out.Text))
	return out, nil
}
