package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"vjudge-crawler/internal/components/telemetry"
	"vjudge-crawler/internal/fetch"
	"vjudge-crawler/internal/output"
	"vjudge-crawler/internal/pipeline"
	"vjudge-crawler/internal/ranking"
	"vjudge-crawler/lib/restyutil"
	libtelemetry "vjudge-crawler/lib/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

var contestIdRegex = regexp.MustCompile(`^\d+$`)

// validContestIds keeps the numeric ids and warns about the rest.
func validContestIds(w io.Writer, args []string) []string {
	var ids []string
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if !contestIdRegex.MatchString(arg) {
			fmt.Fprintf(w, "Warning: skipping invalid contest id %q (must be numeric)\n", arg)
			continue
		}
		ids = append(ids, arg)
	}
	return ids
}

type crawlReport struct {
	saved  []string
	failed []failure
}

type failure struct {
	contestId string
	reason    string
}

func (r *crawlReport) fail(contestId, reason string) {
	r.failed = append(r.failed, failure{contestId: contestId, reason: reason})
}

func runCrawl(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	stdout := cmd.OutOrStdout()

	cfg, err := loadConfig(flags.config)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)
	libtelemetry.InitSlog(flags.verbose)

	ids := validContestIds(stdout, args)
	if len(ids) == 0 {
		return fmt.Errorf("no valid contest ids provided")
	}

	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	delay, err := cfg.Delay()
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	providers, err := libtelemetry.Setup(ctx, "vjudge-crawler", cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer providers.Shutdown(context.WithoutCancel(ctx))

	tel, err := telemetry.NewMeteredAPI(telemetry.SlogAPI{}, otel.Meter("vjudge-crawler"))
	if err != nil {
		return err
	}

	writer, err := output.New(output.Options{Dir: cfg.Output, Format: format, BOM: cfg.BOM})
	if err != nil {
		return err
	}

	endpointOpts := fetch.EndpointOptions{
		BaseUrl:          cfg.BaseUrl,
		UserAgent:        cfg.UserAgent,
		BypassCloudflare: cfg.BypassCloudflare,
	}
	if flags.dumpHttp != "" {
		dump, err := restyutil.NewFilesystemOutput(flags.dumpHttp, "vjudge")
		if err != nil {
			return fmt.Errorf("prepare http dump directory: %w", err)
		}
		endpointOpts.Dump = dump
	}
	direct, err := fetch.NewEndpointFetcher(endpointOpts, tel)
	if err != nil {
		return err
	}

	opts := pipeline.Options{Direct: direct, MinDelay: delay}
	if policy.FallbackEnabled {
		browser := fetch.NewChromeBrowser(fetch.ChromeOptions{ExecPath: cfg.ChromeExecPath, Headful: cfg.Headful}, tel)
		rendered, err := fetch.NewRenderedFetcher(cfg.BaseUrl, browser, tel)
		if err != nil {
			return err
		}
		opts.Rendered = rendered
	}
	p := pipeline.New(opts, tel)

	fmt.Fprintln(stdout, "VJudge Contest Ranking Crawler")
	fmt.Fprintln(stdout, strings.Repeat("=", 50))
	fmt.Fprintf(stdout, "Contest IDs: %s\n", strings.Join(ids, ", "))
	fmt.Fprintf(stdout, "Output directory: %s (%s)\n", cfg.Output, format)
	fmt.Fprintf(stdout, "Browser fallback: %t\n", policy.FallbackEnabled)
	fmt.Fprintln(stdout, strings.Repeat("=", 50))

	report := &crawlReport{}
	done := 0
	summary := p.Batch(ctx, ids, policy, func(result ranking.ContestResult) {
		done++
		prefix := fmt.Sprintf("[%d/%d]", done, len(ids))
		if !result.Ok() {
			reason := ranking.Reason(result.Err)
			report.fail(result.ContestID, reason)
			fmt.Fprintf(stdout, "%s ✗ %s: %s\n", prefix, result.ContestID, reason)
			return
		}

		path, err := writer.Write(ctx, result)
		if err != nil {
			report.fail(result.ContestID, fmt.Sprintf("write output: %s", err))
			fmt.Fprintf(stdout, "%s ✗ %s: write output: %s\n", prefix, result.ContestID, err)
			return
		}
		report.saved = append(report.saved, path)

		line := fmt.Sprintf("%s ✓ %s: %d participants via %s -> %s", prefix, result.ContestID, len(result.Records), result.Origin, filepath.Base(path))
		if result.DroppedRows > 0 {
			line += fmt.Sprintf(" (%d rows dropped)", result.DroppedRows)
		}
		fmt.Fprintln(stdout, line)
	})

	printSummary(stdout, summary.RunID, len(ids), report, cfg.Output)
	if len(report.failed) > 0 {
		return errContestsFailed
	}
	return nil
}

func printSummary(w io.Writer, runId string, total int, report *crawlReport, outputDir string) {
	fmt.Fprintln(w)
	t := newTable(w)
	t.SetTitle("Crawling summary")
	t.AppendRow(table.Row{"Run", runId})
	t.AppendRow(table.Row{"Contests", total})
	t.AppendRow(table.Row{"Successful", len(report.saved)})
	t.AppendRow(table.Row{"Failed", len(report.failed)})
	if abs, err := filepath.Abs(outputDir); err == nil {
		t.AppendRow(table.Row{"Output directory", abs})
	}
	t.Render()

	if len(report.failed) == 0 {
		return
	}
	fmt.Fprintln(w)
	failed := newTable(w)
	failed.SetTitle("Failed contests")
	failed.AppendHeader(table.Row{"Contest", "Reason"})
	for _, f := range report.failed {
		failed.AppendRow(table.Row{f.contestId, f.reason})
	}
	failed.Render()
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}
