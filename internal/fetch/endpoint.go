// Package fetch acquires the raw ranking page of a contest, either straight from the site's
// endpoints or through a headless browser.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"vjudge-crawler/internal/components/assert"
	"vjudge-crawler/internal/components/telemetry"
	"vjudge-crawler/internal/ranking"
	"vjudge-crawler/internal/scorer"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const (
	report_endpoint_fetch     = "endpoint.fetch"
	report_endpoint_candidate = "endpoint.candidate"
)

const DefaultBaseUrl = "https://vjudge.net"

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// DefaultEndpoints are tried in order, `%s` is replaced with the contest id. The page itself
// comes last since it only carries the ranking when it is embedded in a script.
var DefaultEndpoints = []string{
	"/contest/rank/single/%s",
	"/contest/%s/rank",
	"/api/contest/%s/rank",
	"/contest/%s/data",
	"/contest/data/%s",
	"/contest/%s?output=json",
	"/contest/%s",
}

// Fetcher is anything that can acquire the raw ranking document of a contest.
type Fetcher interface {
	Fetch(ctx context.Context, contestId string, timeout time.Duration) (ranking.RawDocument, error)
}

type EndpointOptions struct {
	BaseUrl   string
	UserAgent string
	// Endpoints overrides DefaultEndpoints.
	Endpoints []string
	// BypassCloudflare wraps the transport so it negotiates TLS like a browser.
	BypassCloudflare bool
	// Dump receives every request/response pair when set.
	Dump telemetry.MessageOutput
}

// EndpointFetcher fetches a contest through plain http requests.
type EndpointFetcher struct {
	baseUrl   *url.URL
	userAgent string
	endpoints []string
	bypass    bool
	dump      telemetry.MessageOutput

	tel telemetry.API
}

var _ Fetcher = (*EndpointFetcher)(nil)

func NewEndpointFetcher(opts EndpointOptions, tel telemetry.API) (*EndpointFetcher, error) {
	assert.NotNil(tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	parsed, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseUrl)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if len(opts.Endpoints) == 0 {
		opts.Endpoints = DefaultEndpoints
	}

	return &EndpointFetcher{
		baseUrl:   parsed,
		userAgent: opts.UserAgent,
		endpoints: opts.Endpoints,
		bypass:    opts.BypassCloudflare,
		dump:      opts.Dump,
		tel:       telemetry.NewScopedAPI("fetch", tel),
	}, nil
}

// newClient builds a client for a single contest, connections are not kept between contests.
func (f *EndpointFetcher) newClient(timeout time.Duration) *resty.Client {
	httpClient := resty.New()
	httpClient.SetBaseURL(strings.TrimSuffix(f.baseUrl.String(), "/"))
	if f.bypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeaders(map[string]string{
		"user-agent":                f.userAgent,
		"accept":                    "text/html,application/xhtml+xml,application/xml,application/json;q=0.9,*/*;q=0.8",
		"accept-language":           "en-US,en;q=0.5",
		"upgrade-insecure-requests": "1",
	})
	httpClient.SetCloseConnection(true)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(f.baseUrl.Hostname()))
	httpClient.SetRetryCount(0)
	if timeout > 0 {
		httpClient.SetTimeout(timeout)
	}

	telemetry.InstrumentResty(httpClient, f.tel, f.dump)
	return httpClient
}

var scriptRankingRegex = regexp.MustCompile(`(?s)(?:dataRank|rankData|standings|participants)\s*=\s*[\[{]`)

// looksLikeRanking is a cheap check that a payload could hold a ranking at all, so that the
// next candidate endpoint is tried instead of handing a login page to the scorer.
func looksLikeRanking(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return false
	}
	if trimmed[0] == '[' || trimmed[0] == '{' {
		return scorer.HasRankingArray(trimmed)
	}
	lower := bytes.ToLower(trimmed)
	if bytes.Contains(lower, []byte("<table")) {
		return true
	}
	return scriptRankingRegex.Match(trimmed)
}

// Fetch tries every candidate endpoint once, in order, and returns the first successful one.
func (f *EndpointFetcher) Fetch(ctx context.Context, contestId string, timeout time.Duration) (ranking.RawDocument, error) {
	assert.NotEmptyStr(contestId)

	client := f.newClient(timeout)
	defer client.GetClient().CloseIdleConnections()

	var (
		lastStatus    int
		lastStatusUrl string
		lastTransport *ranking.TransportError
		fallbackDoc   *ranking.RawDocument
	)

	for _, endpoint := range f.endpoints {
		path := fmt.Sprintf(endpoint, url.PathEscape(contestId))
		res, err := client.R().
			SetContext(ctx).
			Get(path)
		if err != nil {
			lastTransport = &ranking.TransportError{URL: path, Err: err}
			if ctx.Err() != nil {
				break
			}
			continue
		}

		body := res.Body()
		if !res.IsSuccess() || len(bytes.TrimSpace(body)) == 0 {
			lastStatus = res.StatusCode()
			lastStatusUrl = path
			f.tel.ReportDebug(report_endpoint_candidate, path, lastStatus, len(body))
			continue
		}

		doc := ranking.RawDocument{
			ContestID:   contestId,
			URL:         res.Request.URL,
			Body:        body,
			ContentType: res.Header().Get("content-type"),
			Origin:      ranking.OriginDirect,
			Status:      res.StatusCode(),
		}
		if looksLikeRanking(body) {
			f.tel.ReportDebug(report_endpoint_fetch, "found payload", path, len(body))
			return doc, nil
		}
		f.tel.ReportDebug(report_endpoint_candidate, path, "no ranking shaped content")
		fallbackDoc = &doc
	}

	if fallbackDoc != nil {
		return *fallbackDoc, nil
	}
	if lastStatus != 0 {
		return ranking.RawDocument{}, &ranking.EndpointError{URL: lastStatusUrl, Status: lastStatus}
	}
	if lastTransport != nil {
		return ranking.RawDocument{}, lastTransport
	}
	return ranking.RawDocument{}, &ranking.TransportError{
		URL: f.baseUrl.String(),
		Err: fmt.Errorf("no candidate endpoints configured"),
	}
}
