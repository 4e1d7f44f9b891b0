// Package pipeline runs the per contest state machine:
//
//	PENDING -> FETCHING_DIRECT -> [FETCHING_RENDERED] -> PARSING -> DONE | FAILED
//
// Contests never share state except the rate limiter, which is waited on before every fetch.
package pipeline

import (
	"context"
	"fmt"
	"time"
	"vjudge-crawler/internal/components/assert"
	"vjudge-crawler/internal/components/telemetry"
	"vjudge-crawler/internal/fetch"
	"vjudge-crawler/internal/normalize"
	"vjudge-crawler/internal/ranking"
	"vjudge-crawler/internal/scorer"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

const (
	report_transition   = "transition"
	report_fetch_direct = "fetch-direct"
	report_fetch_render = "fetch-rendered"
	report_parse        = "parse"
	report_dropped_row  = "dropped-row"
	report_records      = "records"
)

var tracer = otel.Tracer("vjudge-crawler.internal.pipeline")

// DefaultMinDelay is the minimum time between two requests to the contest site.
const DefaultMinDelay = 2 * time.Second

type Options struct {
	Direct fetch.Fetcher
	// Rendered is the fallback fetcher, nil turns the fallback off whatever the policy says.
	Rendered fetch.Fetcher
	// MinDelay is the minimum time between two fetches, zero means DefaultMinDelay and a
	// negative value turns the limit off.
	MinDelay time.Duration
}

type Pipeline struct {
	direct   fetch.Fetcher
	rendered fetch.Fetcher
	limiter  *rate.Limiter
	tel      telemetry.API
}

func New(opts Options, tel telemetry.API) *Pipeline {
	assert.NotNil(opts.Direct)
	assert.NotNil(tel)

	delay := opts.MinDelay
	if delay == 0 {
		delay = DefaultMinDelay
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}

	return &Pipeline{
		direct:   opts.Direct,
		rendered: opts.Rendered,
		limiter:  rate.NewLimiter(limit, 1),
		tel:      telemetry.NewScopedAPI("pipeline", tel),
	}
}

// run is the state of one contest going through the pipeline.
type run struct {
	p      *Pipeline
	policy ranking.Policy
	result ranking.ContestResult
	doc    ranking.RawDocument
	// directErr is kept so that a failed fallback can say why it was attempted.
	directErr error
}

func (r *run) enter(state ranking.State) {
	r.p.tel.ReportDebug(report_transition, r.result.ContestID, string(r.result.State), string(state))
	r.result.State = state
	r.result.Trace = append(r.result.Trace, state)
}

func (r *run) fail(err error) ranking.State {
	r.result.Err = err
	return ranking.StateFailed
}

func (r *run) step(ctx context.Context) ranking.State {
	switch r.result.State {
	case ranking.StatePending:
		return ranking.StateFetchingDirect

	case ranking.StateFetchingDirect:
		doc, err := r.p.fetch(ctx, r.p.direct, r.result.ContestID, r.policy.DirectTimeout)
		if err == nil {
			r.doc = doc
			return ranking.StateParsing
		}
		r.p.tel.ReportWarning(report_fetch_direct, r.result.ContestID, err)
		r.directErr = err
		if r.policy.FallbackEnabled && r.p.rendered != nil && ctx.Err() == nil {
			return ranking.StateFetchingRendered
		}
		return r.fail(err)

	case ranking.StateFetchingRendered:
		doc, err := r.p.fetch(ctx, r.p.rendered, r.result.ContestID, r.policy.RenderTimeout)
		if err != nil {
			r.p.tel.ReportWarning(report_fetch_render, r.result.ContestID, err)
			return r.fail(fmt.Errorf("%w (direct fetch: %s)", err, r.directErr))
		}
		r.doc = doc
		return ranking.StateParsing

	case ranking.StateParsing:
		err := r.parse(ctx)
		if err != nil {
			r.p.tel.ReportWarning(report_parse, r.result.ContestID, err)
			return r.fail(err)
		}
		return ranking.StateDone
	}

	panic(fmt.Sprintf("no transition out of %s", r.result.State))
}

func (r *run) parse(ctx context.Context) error {
	r.result.Origin = r.doc.Origin

	best, err := scorer.Best(ctx, r.doc)
	if err != nil {
		return err
	}
	r.p.tel.ReportDebug(report_parse, r.result.ContestID, best.Source, best.Score)

	table, err := normalize.Normalize(best)
	r.result.DroppedRows = len(table.Dropped)
	for _, dropped := range table.Dropped {
		r.p.tel.ReportWarning(report_dropped_row, r.result.ContestID, dropped)
	}
	if err != nil {
		return err
	}

	r.result.Problems = table.Problems
	r.result.Records = table.Records
	r.p.tel.ReportCount(report_records, int64(len(table.Records)))
	return nil
}

func (p *Pipeline) fetch(ctx context.Context, f fetch.Fetcher, contestId string, timeout time.Duration) (ranking.RawDocument, error) {
	err := p.limiter.Wait(ctx)
	if err != nil {
		return ranking.RawDocument{}, fmt.Errorf("wait for rate limit: %w", err)
	}
	return f.Fetch(ctx, contestId, timeout)
}

// Process takes one contest through the state machine. It never panics on contest level
// failures, those end up in ContestResult.Err with State set to FAILED.
func (p *Pipeline) Process(ctx context.Context, contestId string, policy ranking.Policy) ranking.ContestResult {
	assert.NotEmptyStr(contestId)

	ctx, span := tracer.Start(ctx, "Process")
	defer span.End()
	span.SetAttributes(attribute.String("contest_id", contestId))

	r := &run{
		p:      p,
		policy: policy,
		result: ranking.ContestResult{ContestID: contestId},
	}
	r.enter(ranking.StatePending)
	for r.result.State != ranking.StateDone && r.result.State != ranking.StateFailed {
		r.enter(r.step(ctx))
	}

	span.SetAttributes(
		attribute.String("state", string(r.result.State)),
		attribute.String("origin", string(r.result.Origin)),
		attribute.Int("records", len(r.result.Records)),
	)
	if r.result.Err != nil {
		span.RecordError(r.result.Err)
		span.SetStatus(codes.Error, ranking.Reason(r.result.Err))
	}
	return r.result
}
