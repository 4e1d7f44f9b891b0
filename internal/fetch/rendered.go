package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
	"vjudge-crawler/internal/components/assert"
	"vjudge-crawler/internal/components/telemetry"
	"vjudge-crawler/internal/ranking"

	"go.opentelemetry.io/otel"
)

const (
	report_rendered_fetch = "rendered.fetch"
	report_rendered_close = "rendered.close"
)

var tracer = otel.Tracer("vjudge-crawler.internal.fetch")

// RankingSelector matches an element that only exists once the ranking has been injected:
// a participant link inside a table, or failing that any populated table cell.
const RankingSelector = "table a[href*='/user/'], table tbody tr td"

// Browser starts isolated rendering sessions.
//
// note: fault injection point
type Browser interface {
	Open(ctx context.Context) (Session, error)
}

// Session is one running rendering environment. Close must release every process it started
// and is safe to call more than once.
type Session interface {
	// Render navigates to url, waits up to timeout for `waitSelector` and returns the page markup.
	// It returns context.DeadlineExceeded when the selector never appears.
	Render(url, waitSelector string, timeout time.Duration) (string, error)
	Close() error
}

// RenderedFetcher fetches a contest page after its scripts have run.
type RenderedFetcher struct {
	baseUrl *url.URL
	browser Browser
	tel     telemetry.API
}

var _ Fetcher = (*RenderedFetcher)(nil)

func NewRenderedFetcher(baseUrl string, browser Browser, tel telemetry.API) (*RenderedFetcher, error) {
	assert.NotNil(browser)
	assert.NotNil(tel)

	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	parsed, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &RenderedFetcher{
		baseUrl: parsed,
		browser: browser,
		tel:     telemetry.NewScopedAPI("fetch", tel),
	}, nil
}

func (f *RenderedFetcher) pageUrl(contestId string) string {
	page := f.baseUrl.JoinPath("contest", contestId)
	page.Fragment = "rank"
	return page.String()
}

// Fetch opens a session, renders the contest page and closes the session before returning,
// whatever the outcome.
func (f *RenderedFetcher) Fetch(ctx context.Context, contestId string, timeout time.Duration) (doc ranking.RawDocument, err error) {
	assert.NotEmptyStr(contestId)

	ctx, span := tracer.Start(ctx, "RenderedFetcher.Fetch")
	defer span.End()

	session, err := f.browser.Open(ctx)
	if err != nil {
		f.tel.ReportBroken(report_rendered_fetch, err)
		return ranking.RawDocument{}, &ranking.RenderSessionError{Err: err}
	}
	defer func() {
		closeErr := session.Close()
		if closeErr != nil {
			f.tel.ReportWarning(report_rendered_close, closeErr)
		}
	}()

	page := f.pageUrl(contestId)
	f.tel.ReportDebug(report_rendered_fetch, "rendering", page, timeout.String())

	markup, err := session.Render(page, RankingSelector, timeout)
	if err != nil {
		if ctx.Err() != nil {
			return ranking.RawDocument{}, fmt.Errorf("render %s: %w", page, ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return ranking.RawDocument{}, fmt.Errorf("render %s after %s: %w", page, timeout, ranking.ErrRenderTimeout)
		}
		return ranking.RawDocument{}, &ranking.RenderSessionError{Err: err}
	}

	return ranking.RawDocument{
		ContestID:   contestId,
		URL:         page,
		Body:        []byte(markup),
		ContentType: "text/html; charset=utf-8",
		Origin:      ranking.OriginRendered,
		Status:      200,
	}, nil
}
