package commands

import (
	"errors"
	"fmt"
	"os"
	"time"
	"vjudge-crawler/internal/output"
	"vjudge-crawler/internal/pipeline"
	"vjudge-crawler/internal/ranking"
	"vjudge-crawler/lib/configutil"
	"vjudge-crawler/lib/telemetry"
)

// DefaultConfigFile is looked up in the working directory and every parent of it.
const DefaultConfigFile = "vjudge-crawler.json5"

type Config struct {
	BaseUrl   string `json:"base_url"`
	UserAgent string `json:"user_agent"`
	// DirectTimeout, RenderTimeout and MinDelay are go durations, ex. "15s".
	DirectTimeout string `json:"direct_timeout"`
	RenderTimeout string `json:"render_timeout"`
	MinDelay      string `json:"min_delay"`

	DisableFallback  bool   `json:"disable_fallback"`
	BypassCloudflare bool   `json:"bypass_cloudflare"`
	ChromeExecPath   string `json:"chrome_exec_path"`
	Headful          bool   `json:"headful"`

	Output string `json:"output"`
	Format string `json:"format"`
	BOM    bool   `json:"bom"`

	Telemetry telemetry.Config `json:"telemetry"`
}

func defaultConfig() Config {
	policy := ranking.DefaultPolicy()
	return Config{
		DirectTimeout: policy.DirectTimeout.String(),
		RenderTimeout: policy.RenderTimeout.String(),
		MinDelay:      pipeline.DefaultMinDelay.String(),
		Output:        "output",
		Format:        string(output.FormatCsv),
	}
}

// loadConfig reads the config file on top of the defaults. An explicit path must exist,
// the default one is optional.
func loadConfig(path string) (Config, error) {
	if path != "" {
		cfg, err := configutil.ReadConfig(path, defaultConfig())
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config file %s does not exist", path)
		}
		return cfg, err
	}
	cfg, err := configutil.ReadRecursively(DefaultConfigFile, defaultConfig())
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

func parseDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// Policy converts the config into the per contest acquisition policy.
func (c Config) Policy() (ranking.Policy, error) {
	direct, err := parseDuration("direct_timeout", c.DirectTimeout)
	if err != nil {
		return ranking.Policy{}, err
	}
	render, err := parseDuration("render_timeout", c.RenderTimeout)
	if err != nil {
		return ranking.Policy{}, err
	}
	return ranking.Policy{
		DirectTimeout:   direct,
		RenderTimeout:   render,
		FallbackEnabled: !c.DisableFallback,
	}, nil
}

// Delay is the minimum time between two fetches, "0s" turns the limit off.
func (c Config) Delay() (time.Duration, error) {
	d, err := parseDuration("min_delay", c.MinDelay)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return -1, nil
	}
	return d, nil
}
