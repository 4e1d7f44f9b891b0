package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// errContestsFailed makes the process exit with 1 once the summary has been printed.
var errContestsFailed = errors.New("some contests failed")

type rootFlags struct {
	config     string
	output     string
	format     string
	verbose    bool
	noFallback bool
	bom        bool
	headful    bool
	dumpHttp   string
}

var flags rootFlags

var rootCmd = &cobra.Command{
	Use:   "vjudge-crawler <contest id>...",
	Short: "vjudge-crawler extracts VJudge contest rankings into csv, xlsx or sqlite files.",
	Example: `  vjudge-crawler 739901
  vjudge-crawler 739901 740123 740456
  vjudge-crawler 739901 -o custom_output --format xlsx`,
	Version:       version,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCrawl,
}

func init() {
	f := rootCmd.Flags()
	rootCmd.PersistentFlags().StringVar(&flags.config, "config", "", "The json5 config file, defaults to the nearest "+DefaultConfigFile+".")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log every step of the pipeline.")
	f.StringVarP(&flags.output, "output", "o", "output", "The directory to write rankings to.")
	f.StringVar(&flags.format, "format", "csv", "The output format: csv, xlsx or sqlite.")
	f.BoolVar(&flags.noFallback, "no-fallback", false, "Never fall back to a headless browser.")
	f.BoolVar(&flags.bom, "bom", false, "Start csv files with a UTF-8 byte order mark.")
	f.BoolVar(&flags.headful, "headful", false, "Show the browser window during rendered fetches.")
	f.StringVar(&flags.dumpHttp, "dump-http", "", "Write every http request and response to this directory.")
}

// applyFlags overrides config values with the flags given on the command line.
func applyFlags(cmd *cobra.Command, cfg *Config) {
	changed := cmd.Flags().Changed
	if changed("output") {
		cfg.Output = flags.output
	}
	if changed("format") {
		cfg.Format = flags.format
	}
	if changed("no-fallback") {
		cfg.DisableFallback = flags.noFallback
	}
	if changed("bom") {
		cfg.BOM = flags.bom
	}
	if changed("headful") {
		cfg.Headful = flags.headful
	}
}

func ExecuteContext(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	if errors.Is(err, errContestsFailed) {
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
