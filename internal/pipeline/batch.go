package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/yellowcircle/outreach-engine/internal/brand"
	"github.com/yellowcircle/outreach-engine/internal/util"
	"github.com/yellowcircle/outreach-engine/pkg/outreach/core"
	"github.com/yellowcircle/outreach-engine/pkg/outreach/worker"
)

// Row is the stable output schema for batch runs. Stage columns are
// always present; pathways that skip a stage leave its cells empty.
type Row struct {
	Email   string
	Company string

	SingleSubject    string
	SingleBody       string
	InitialSubject   string
	InitialBody      string
	Followup1Subject string
	Followup1Body    string
	Followup2Subject string
	Followup2Body    string

	Status string
	Error  string
}

// Header returns the stable CSV header for Row.
func Header() []string {
	return []string{
		"email",
		"company",
		"single_subject",
		"single_body",
		"initial_subject",
		"initial_body",
		"followup1_subject",
		"followup1_body",
		"followup2_subject",
		"followup2_body",
		"status",
		"error",
	}
}

// Fields returns the row's cells in Header order.
func (r Row) Fields() []string {
	return []string{
		r.Email,
		r.Company,
		r.SingleSubject,
		r.SingleBody,
		r.InitialSubject,
		r.InitialBody,
		r.Followup1Subject,
		r.Followup1Body,
		r.Followup2Subject,
		r.Followup2Body,
		r.Status,
		r.Error,
	}
}

type BatchOptions struct {
	Workers        int
	MaxRetries     int
	RequestTimeout time.Duration
	RateLimitRPS   float64
	FailFast       bool

	Generation Options
}

// GenerateAll runs the full pathway sequence for every prospect and
// returns stable output rows.
//
// Generation errors are recorded per-row and do not fail the full run
// unless FailFast is set. Batch runs are for keyed or client sessions;
// quota accounting for the free lane is per-run, not per-batch, so the
// caller checks the ledger before invoking this.
func GenerateAll(ctx context.Context, prospects []core.Prospect, gen core.Generator, b brand.Config, pathway core.Pathway, mode core.Mode, opts BatchOptions) ([]Row, error) {
	policy := worker.FailurePolicyPartialOutput
	if opts.FailFast {
		policy = worker.FailurePolicyFailFast
	}

	out, err := worker.ProcessAll(ctx, prospects,
		func(ctx context.Context, p core.Prospect) (SequenceResult, error) {
			if err := p.Validate(); err != nil {
				return SequenceResult{}, err
			}
			return GenerateSequence(ctx, gen, b, p, pathway, mode, opts.Generation)
		},
		worker.Options{
			Workers:        opts.Workers,
			MaxRetries:     opts.MaxRetries,
			RequestTimeout: opts.RequestTimeout,
			RateLimitRPS:   opts.RateLimitRPS,
			FailurePolicy:  policy,
		})
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(out))
	for _, item := range out {
		row := Row{
			Email:   strings.TrimSpace(item.Input.Email),
			Company: strings.TrimSpace(item.Input.Company),
		}
		if item.Err != nil {
			row.Status = "error"
			row.Error = util.RedactSecrets(item.Err.Error())
			rows = append(rows, row)
			continue
		}
		arts := item.Output.Artifacts
		if a, ok := arts[core.StageSingle]; ok {
			row.SingleSubject, row.SingleBody = a.Subject, a.Body
		}
		if a, ok := arts[core.StageInitial]; ok {
			row.InitialSubject, row.InitialBody = a.Subject, a.Body
		}
		if a, ok := arts[core.StageFollowup1]; ok {
			row.Followup1Subject, row.Followup1Body = a.Subject, a.Body
		}
		if a, ok := arts[core.StageFollowup2]; ok {
			row.Followup2Subject, row.Followup2Body = a.Subject, a.Body
		}
		row.Status = "ok"
		rows = append(rows, row)
	}
	return rows, nil
}
