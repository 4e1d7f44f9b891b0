package fetch

import (
	"context"
	"errors"
	"testing"
	"time"
	"vjudge-crawler/internal/components/telemetry"
	"vjudge-crawler/internal/ranking"

	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	markup    string
	renderErr error
	closed    int
	renderUrl string
}

func (s *fakeSession) Render(url, waitSelector string, timeout time.Duration) (string, error) {
	s.renderUrl = url
	return s.markup, s.renderErr
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

type fakeBrowser struct {
	session *fakeSession
	openErr error
}

func (b fakeBrowser) Open(ctx context.Context) (Session, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.session, nil
}

func TestRenderedFetcher(t *testing.T) {
	testCases := []struct {
		name      string
		browser   fakeBrowser
		expectErr func(t *testing.T, err error)
	}{
		{
			name:    "success",
			browser: fakeBrowser{session: &fakeSession{markup: "<html><table></table></html>"}},
			expectErr: func(t *testing.T, err error) {
				require.NoError(t, err)
			},
		},
		{
			name:    "timeout",
			browser: fakeBrowser{session: &fakeSession{renderErr: context.DeadlineExceeded}},
			expectErr: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ranking.ErrRenderTimeout)
			},
		},
		{
			name:    "crashed mid render",
			browser: fakeBrowser{session: &fakeSession{renderErr: errors.New("target closed")}},
			expectErr: func(t *testing.T, err error) {
				var sessionErr *ranking.RenderSessionError
				require.True(t, errors.As(err, &sessionErr))
			},
		},
		{
			name:    "cannot start",
			browser: fakeBrowser{openErr: errors.New("chrome not found")},
			expectErr: func(t *testing.T, err error) {
				var sessionErr *ranking.RenderSessionError
				require.True(t, errors.As(err, &sessionErr))
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			f, err := NewRenderedFetcher("https://vjudge.net", test.browser, &telemetry.Recorder{})
			require.NoError(t, err)

			doc, err := f.Fetch(context.Background(), "739901", time.Second)
			test.expectErr(t, err)

			if test.browser.session == nil {
				return
			}
			// the session is released on every path
			require.Equal(t, 1, test.browser.session.closed)
			require.Equal(t, "https://vjudge.net/contest/739901#rank", test.browser.session.renderUrl)
			if err == nil {
				require.Equal(t, ranking.OriginRendered, doc.Origin)
				require.Equal(t, test.browser.session.markup, string(doc.Body))
			}
		})
	}
}

func TestIsBrowserProcess(t *testing.T) {
	require.True(t, isBrowserProcess("chrome"))
	require.True(t, isBrowserProcess("Chromium-Browser"))
	require.True(t, isBrowserProcess("headless_shell"))
	require.False(t, isBrowserProcess("go"))
}
