// Package output writes finished contest rankings to disk.
package output

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"vjudge-crawler/internal/components/chrono"
	"vjudge-crawler/internal/headers"
	"vjudge-crawler/internal/ranking"
)

type Format string

const (
	FormatCsv    Format = "csv"
	FormatXlsx   Format = "xlsx"
	FormatSqlite Format = "sqlite"
)

// Formats lists every supported format, the first is the default.
var Formats = []Format{FormatCsv, FormatXlsx, FormatSqlite}

func ParseFormat(value string) (Format, error) {
	for _, f := range Formats {
		if strings.EqualFold(value, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (expected one of csv, xlsx, sqlite)", value)
}

const timestampLayout = "20060102_150405"

// Writer persists the records of one successful contest and returns where they went.
type Writer interface {
	Write(ctx context.Context, result ranking.ContestResult) (string, error)
}

type Options struct {
	Dir    string
	Format Format
	// BOM prefixes csv files with a UTF-8 byte order mark so spreadsheet apps detect the encoding.
	BOM   bool
	Clock chrono.API
}

// New creates the output directory and returns the writer of the configured format.
func New(opts Options) (Writer, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Clock == nil {
		opts.Clock = chrono.NewStandardImpl()
	}
	err := EnsureDir(opts.Dir)
	if err != nil {
		return nil, err
	}

	switch opts.Format {
	case FormatCsv, "":
		return CsvWriter{Dir: opts.Dir, BOM: opts.BOM, Clock: opts.Clock}, nil
	case FormatXlsx:
		return XlsxWriter{Dir: opts.Dir, Clock: opts.Clock}, nil
	case FormatSqlite:
		return SqliteWriter{Path: filepath.Join(opts.Dir, SqliteFilename), Clock: opts.Clock}, nil
	}
	return nil, fmt.Errorf("unknown output format %q", opts.Format)
}

// EnsureDir creates dir if needed and checks that it can be written to.
func EnsureDir(dir string) error {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	probe, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// Basename is the file name of a contest ranking without its collision suffix or extension.
func Basename(contestId string, clock chrono.API) string {
	return fmt.Sprintf("vjudge_contest_%s_rankings_%s", contestId, clock.Now().Format(timestampLayout))
}

// createUnique creates `dir/base.ext`, or `dir/base_N.ext` with the lowest free N when
// another file already took the name within the same second.
func createUnique(dir, base, ext string) (*os.File, string, error) {
	for i := 0; ; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		path := filepath.Join(dir, name+ext)
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return file, path, nil
	}
}

func checkWritable(result ranking.ContestResult) error {
	if !result.Ok() {
		return fmt.Errorf("contest %s did not finish: %s", result.ContestID, result.State)
	}
	if strings.ContainsAny(result.ContestID, `/\`) || result.ContestID == ".." {
		return fmt.Errorf("contest id %q cannot be used in a file name", result.ContestID)
	}
	return nil
}

// Header is the column row shared by the tabular formats.
func Header(result ranking.ContestResult) []string {
	out := make([]string, 0, len(headers.Fields)+len(result.Problems))
	for _, f := range headers.Fields {
		out = append(out, string(f))
	}
	return append(out, result.Problems...)
}

// Row renders a record with the raw problem cells as the source displayed them.
func Row(record ranking.Record) []string {
	out := []string{
		strconv.Itoa(record.Rank),
		record.Team,
		strconv.Itoa(record.Score),
		strconv.Itoa(record.Penalty),
		strconv.Itoa(record.Solved),
	}
	for _, p := range record.Problems {
		out = append(out, p.Raw)
	}
	return out
}
