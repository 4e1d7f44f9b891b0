package pipeline

import (
	"context"
	"vjudge-crawler/internal/ranking"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const report_batch = "batch"

// Sink receives every contest result of a batch as soon as it is known.
type Sink func(result ranking.ContestResult)

// BatchSummary lists which contests of a batch succeeded.
type BatchSummary struct {
	RunID     string
	Succeeded []string
	Failed    []string
}

// Batch processes contests one after the other. A failed contest never stops the batch, the
// rate limiter keeps the spacing between contests.
func (p *Pipeline) Batch(ctx context.Context, contestIds []string, policy ranking.Policy, sink Sink) BatchSummary {
	summary := BatchSummary{RunID: uuid.NewString()}

	ctx, span := tracer.Start(ctx, "Batch")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", summary.RunID),
		attribute.Int("contests", len(contestIds)),
	)
	p.tel.ReportDebug(report_batch, summary.RunID, len(contestIds))

	for _, id := range contestIds {
		result := p.Process(ctx, id, policy)
		if result.Ok() {
			summary.Succeeded = append(summary.Succeeded, id)
		} else {
			summary.Failed = append(summary.Failed, id)
		}
		if sink != nil {
			sink(result)
		}
	}

	p.tel.ReportCount(report_batch+"-succeeded", int64(len(summary.Succeeded)))
	p.tel.ReportCount(report_batch+"-failed", int64(len(summary.Failed)))
	return summary
}
