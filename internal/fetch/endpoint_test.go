package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
	"vjudge-crawler/internal/components/telemetry"
	"vjudge-crawler/internal/ranking"
	"vjudge-crawler/lib/restyutil"

	"github.com/stretchr/testify/require"
)

const rankingPage = `<html><body><table>
<tr><th>Rank</th><th>Team</th><th>Score</th><th>Penalty</th></tr>
<tr><td>1</td><td>A</td><td>6</td><td>279</td></tr>
</table></body></html>`

func newTestFetcher(t *testing.T, baseUrl string) *EndpointFetcher {
	t.Helper()
	f, err := NewEndpointFetcher(EndpointOptions{BaseUrl: baseUrl}, &telemetry.Recorder{})
	require.NoError(t, err)
	return f
}

func TestEndpointFetcherFirstSuccessfulCandidate(t *testing.T) {
	var hits []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.Path)
		switch r.URL.Path {
		case "/contest/rank/single/739901":
			w.WriteHeader(http.StatusNotFound)
		case "/contest/739901/rank":
			// empty body does not count as success
			w.WriteHeader(http.StatusOK)
		case "/api/contest/739901/rank":
			w.Header().Set("content-type", "text/html")
			w.Write([]byte(rankingPage))
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
		}
	}))
	defer server.Close()

	doc, err := newTestFetcher(t, server.URL).Fetch(context.Background(), "739901", time.Second)
	require.NoError(t, err)
	require.Equal(t, ranking.OriginDirect, doc.Origin)
	require.Equal(t, http.StatusOK, doc.Status)
	require.Equal(t, rankingPage, string(doc.Body))
	require.Equal(t, []string{
		"/contest/rank/single/739901",
		"/contest/739901/rank",
		"/api/contest/739901/rank",
	}, hits)
}

func TestEndpointFetcherAllNonSuccess(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		status := http.StatusForbidden
		if r.URL.Path == "/contest/739901" && r.URL.RawQuery == "" {
			status = http.StatusServiceUnavailable
		}
		w.WriteHeader(status)
	}))
	defer server.Close()

	_, err := newTestFetcher(t, server.URL).Fetch(context.Background(), "739901", time.Second)
	var endpointErr *ranking.EndpointError
	require.True(t, errors.As(err, &endpointErr))
	// the page itself is the last candidate
	require.Equal(t, http.StatusServiceUnavailable, endpointErr.Status)
	require.Equal(t, len(DefaultEndpoints), requests)
}

func TestEndpointFetcherTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseUrl := server.URL
	server.Close()

	_, err := newTestFetcher(t, baseUrl).Fetch(context.Background(), "1", time.Second)
	var transportErr *ranking.TransportError
	require.True(t, errors.As(err, &transportErr))
}

func TestEndpointFetcherPrefersRankingShapedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/contest/rank/single/5":
			w.Write([]byte("<html><body>please log in</body></html>"))
		case "/contest/5/rank":
			w.Header().Set("content-type", "application/json")
			w.Write([]byte(`[{"rank":1,"name":"A","score":3,"penalty":100}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	doc, err := newTestFetcher(t, server.URL).Fetch(context.Background(), "5", time.Second)
	require.NoError(t, err)
	require.Contains(t, doc.URL, "/contest/5/rank")
	require.Equal(t, "application/json", doc.ContentType)
}

func TestEndpointFetcherSkipsJsonWithoutRanking(t *testing.T) {
	var hits []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.Path)
		switch r.URL.Path {
		case "/contest/rank/single/5":
			w.Header().Set("content-type", "application/json")
			w.Write([]byte(`{"error":"Contest not found or private"}`))
		case "/contest/5/rank":
			w.Header().Set("content-type", "text/html")
			w.Write([]byte(rankingPage))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	doc, err := newTestFetcher(t, server.URL).Fetch(context.Background(), "5", time.Second)
	require.NoError(t, err)
	require.Contains(t, doc.URL, "/contest/5/rank")
	require.Equal(t, rankingPage, string(doc.Body))
	require.Equal(t, []string{"/contest/rank/single/5", "/contest/5/rank"}, hits)
}

func TestEndpointFetcherReturnsLastPageWithoutRanking(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/contest/9" {
			w.Write([]byte("<html><body>private contest</body></html>"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	doc, err := newTestFetcher(t, server.URL).Fetch(context.Background(), "9", time.Second)
	require.NoError(t, err)
	require.Contains(t, string(doc.Body), "private contest")
}

func TestLooksLikeRanking(t *testing.T) {
	testCases := []struct {
		body     string
		expected bool
	}{
		{body: "", expected: false},
		{body: "   \n", expected: false},
		{body: `{"data": []}`, expected: false},
		{body: `{"error": "Contest not found or private"}`, expected: false},
		{body: `{"data": [{"rank": 1, "name": "A", "score": 3}]}`, expected: true},
		{body: `<TABLE><tr><td>1</td></tr></TABLE>`, expected: true},
		{body: `<script>var dataRank = [[1, "a"]];</script>`, expected: true},
		{body: `<html><body>hello</body></html>`, expected: false},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, looksLikeRanking([]byte(test.body)), test.body)
	}
}

func TestEndpointFetcherDumpsMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/contest/7/rank" {
			w.Write([]byte(rankingPage))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "dump")
	dump, err := restyutil.NewFilesystemOutput(dir, "vjudge")
	require.NoError(t, err)

	tel := &telemetry.Recorder{}
	f, err := NewEndpointFetcher(EndpointOptions{BaseUrl: server.URL, Dump: dump}, tel)
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), "7", time.Second)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	second, err := os.ReadFile(filepath.Join(dir, "vjudge-2.txt"))
	require.NoError(t, err)
	require.Contains(t, string(second), "---- RESPONSE ----")
	require.Contains(t, string(second), "/contest/7/rank")
	require.Contains(t, string(second), "<th>Rank</th>")

	require.Len(t, tel.Reports("debug", "resty.request"), 2)
}
