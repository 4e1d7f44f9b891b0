package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeteredAPI forwards every report to an inner API and mirrors it as otel metrics: counts
// become a histogram, broken and warning reports become a counter.
type MeteredAPI struct {
	inner  API
	counts metric.Int64Histogram
	issues metric.Int64Counter
}

func NewMeteredAPI(inner API, meter metric.Meter) (MeteredAPI, error) {
	counts, err := meter.Int64Histogram(
		"vjudge_crawler.report.count",
		metric.WithDescription("Counts reported by the crawler components."),
	)
	if err != nil {
		return MeteredAPI{}, err
	}
	issues, err := meter.Int64Counter(
		"vjudge_crawler.report.issues",
		metric.WithDescription("Broken and warning reports."),
	)
	if err != nil {
		return MeteredAPI{}, err
	}
	return MeteredAPI{inner: inner, counts: counts, issues: issues}, nil
}

func (m MeteredAPI) ReportBroken(id string, params ...any) {
	m.inner.ReportBroken(id, params...)
	m.issues.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("id", id),
		attribute.String("kind", "broken"),
	))
}

func (m MeteredAPI) ReportWarning(id string, params ...any) {
	m.inner.ReportWarning(id, params...)
	m.issues.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("id", id),
		attribute.String("kind", "warning"),
	))
}

func (m MeteredAPI) ReportDebug(msg string, params ...any) {
	m.inner.ReportDebug(msg, params...)
}

func (m MeteredAPI) ReportCount(id string, count int64) {
	m.inner.ReportCount(id, count)
	m.counts.Record(context.Background(), count, metric.WithAttributes(attribute.String("id", id)))
}
