package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"vjudge-crawler/internal/components/telemetry"

	"github.com/chromedp/chromedp"
	"github.com/shirou/gopsutil/v4/process"
)

const report_chrome_sweep = "chrome.sweep"

type ChromeOptions struct {
	// ExecPath points at a chrome/chromium binary, empty means chromedp looks it up.
	ExecPath string
	// Headful shows the browser window, useful when a contest page misbehaves.
	Headful bool
}

// ChromeBrowser starts headless chrome sessions through chromedp.
type ChromeBrowser struct {
	opts ChromeOptions
	tel  telemetry.API
}

var _ Browser = ChromeBrowser{}

func NewChromeBrowser(opts ChromeOptions, tel telemetry.API) ChromeBrowser {
	return ChromeBrowser{opts: opts, tel: telemetry.NewScopedAPI("fetch", tel)}
}

func (b ChromeBrowser) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(DefaultUserAgent),
	)
	if b.opts.Headful {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if b.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.opts.ExecPath))
	}
	return opts
}

// Open starts a browser process. The process lives until Close is called or ctx is cancelled.
func (b ChromeBrowser) Open(ctx context.Context) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, b.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		tel:           b.tel,
	}

	// running no actions is enough to launch the browser
	err := chromedp.Run(browserCtx)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	return s, nil
}

type chromeSession struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	tel           telemetry.API

	once     sync.Once
	closeErr error
}

func (s *chromeSession) Render(url, waitSelector string, timeout time.Duration) (string, error) {
	runCtx, cancel := context.WithTimeout(s.browserCtx, timeout)
	defer cancel()

	var markup string
	err := chromedp.Run(
		runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(waitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
	)
	if err != nil {
		if runCtx.Err() != nil {
			return "", runCtx.Err()
		}
		return "", err
	}
	return markup, nil
}

func (s *chromeSession) Close() error {
	s.once.Do(func() {
		var errs []error
		err := chromedp.Cancel(s.browserCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
		s.browserCancel()
		// waits for the browser process to exit and removes its profile directory
		s.allocCancel()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		killed, err := sweepBrowserProcesses(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		if killed > 0 {
			s.tel.ReportWarning(report_chrome_sweep, "killed leftover browser processes", killed)
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

var browserProcessNames = []string{"chrome", "chromium", "headless_shell"}

func isBrowserProcess(name string) bool {
	name = strings.ToLower(name)
	for _, candidate := range browserProcessNames {
		if strings.Contains(name, candidate) {
			return true
		}
	}
	return false
}

// sweepBrowserProcesses kills browser processes that are still children of this process.
func sweepBrowserProcesses(ctx context.Context) (int, error) {
	self, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return 0, fmt.Errorf("inspect own process: %w", err)
	}
	children, err := self.ChildrenWithContext(ctx)
	if errors.Is(err, process.ErrorNoChildren) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("list child processes: %w", err)
	}

	killed := 0
	var errs []error
	for _, child := range children {
		name, err := child.NameWithContext(ctx)
		if err != nil || !isBrowserProcess(name) {
			continue
		}
		err = child.KillWithContext(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("kill %s (%d): %w", name, child.Pid, err))
			continue
		}
		killed++
	}
	return killed, errors.Join(errs...)
}
