// Package normalize turns the winning table candidate into ranking records.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"vjudge-crawler/internal/headers"
	"vjudge-crawler/internal/ranking"
	"vjudge-crawler/internal/scorer"
	"vjudge-crawler/lib/textutil"
)

var (
	errNotPositive = errors.New("rank must be an integer of at least 1")
	errMissingTeam = errors.New("team is empty")
)

var (
	clockRegex    = regexp.MustCompile(`\b(\d+):(\d{2}):(\d{2})\b`)
	rejectedRegex = regexp.MustCompile(`(?:^|[\s(])[-−+]\s*(\d+)\s*\)?\s*$`)
	leadingRegex  = regexp.MustCompile(`^[^\d]*?(\d+)`)
)

// Result is a normalized contest ranking.
type Result struct {
	// Problems are the labels of the per-problem columns, in source order.
	Problems []string
	Records  []ranking.Record
	// Dropped holds a *ranking.RowParseError per row that was left out.
	Dropped []error
}

type column struct {
	index int
	label string
}

// layout tells which cell index holds which canonical field, the rest are problems.
type layout struct {
	fields   map[headers.Field]int
	problems []column
}

// positionalFields is the column order assumed for headerless tables.
var positionalFields = []headers.Field{
	headers.FieldRank,
	headers.FieldTeam,
	headers.FieldScore,
	headers.FieldPenalty,
}

func newLayout(c scorer.TableCandidate) layout {
	l := layout{fields: map[headers.Field]int{}}
	claimed := map[int]bool{}
	for i, h := range c.Headers {
		field, ok := headers.Match(h)
		if !ok {
			continue
		}
		// first column wins when two headers map to the same field
		_, taken := l.fields[field]
		if !taken {
			l.fields[field] = i
		}
		claimed[i] = true
	}

	_, hasRank := l.fields[headers.FieldRank]
	_, hasTeam := l.fields[headers.FieldTeam]
	if !hasRank && !hasTeam {
		for i, field := range positionalFields {
			if i >= c.Columns() || claimed[i] {
				break
			}
			if _, taken := l.fields[field]; taken {
				continue
			}
			l.fields[field] = i
			claimed[i] = true
		}
	}

	for i := 0; i < c.Columns(); i++ {
		if claimed[i] {
			continue
		}
		header := ""
		if i < len(c.Headers) {
			header = c.Headers[i]
		}
		label := headers.Label(header)
		if label == "" {
			label = fmt.Sprintf("col%d", i+1)
		}
		l.problems = append(l.problems, column{index: i, label: label})
	}
	return l
}

func (l layout) cell(row []string, field headers.Field) (string, bool) {
	i, ok := l.fields[field]
	if !ok || i >= len(row) {
		return "", false
	}
	return row[i], true
}

// ParseRank reads a displayed rank. Only the first line counts, some layouts print the
// previous rank or a medal under it.
func ParseRank(cell string) (int, error) {
	rank, err := strconv.Atoi(textutil.FirstLine(cell))
	if err != nil {
		return 0, err
	}
	if rank < 1 {
		return 0, errNotPositive
	}
	return rank, nil
}

// LeadingInt returns the first integer on the first line of a cell, 0 when there is none.
func LeadingInt(cell string) int {
	match := leadingRegex.FindStringSubmatch(textutil.FirstLine(cell))
	if match == nil {
		return 0
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return n
}

// ParsePenalty reads a penalty in minutes, "H:MM:SS" penalties are converted.
func ParsePenalty(cell string) int {
	first := textutil.FirstLine(cell)
	match := clockRegex.FindStringSubmatch(first)
	if match != nil {
		hours, _ := strconv.Atoi(match[1])
		minutes, _ := strconv.Atoi(match[2])
		return hours*60 + minutes
	}
	return LeadingInt(first)
}

// ParseProblem splits a problem cell such as "0:36:26\n(-1)" into its accepted time and
// attempt count. Attempts include the accepted submission, so an accepted cell without
// rejections counts 1 and "(-2)" alone counts 2.
func ParseProblem(label, cell string) ranking.ProblemResult {
	result := ranking.ProblemResult{
		Label: label,
		Raw:   textutil.CollapseSpaces(cell),
	}

	rejected := 0
	for _, line := range strings.Split(cell, "\n") {
		match := rejectedRegex.FindStringSubmatch(strings.TrimSpace(line))
		if match != nil {
			rejected, _ = strconv.Atoi(match[1])
			break
		}
	}

	accepted := clockRegex.FindString(cell)
	switch {
	case accepted != "":
		result.AcceptedTime = accepted
		result.Attempts = rejected + 1
	case rejected > 0:
		result.Attempts = rejected
	}
	return result
}

func (l layout) record(row []string) (ranking.Record, *ranking.RowParseError) {
	rankCell, _ := l.cell(row, headers.FieldRank)
	rank, err := ParseRank(rankCell)
	if err != nil {
		return ranking.Record{}, &ranking.RowParseError{Cell: rankCell, Err: err}
	}

	teamCell, _ := l.cell(row, headers.FieldTeam)
	team := textutil.CollapseSpaces(teamCell)
	if team == "" {
		return ranking.Record{}, &ranking.RowParseError{Cell: teamCell, Err: errMissingTeam}
	}

	record := ranking.Record{
		Rank:     rank,
		Team:     team,
		Problems: make([]ranking.ProblemResult, len(l.problems)),
	}
	if cell, ok := l.cell(row, headers.FieldScore); ok {
		record.Score = LeadingInt(cell)
	}
	if cell, ok := l.cell(row, headers.FieldPenalty); ok {
		record.Penalty = ParsePenalty(cell)
	}

	accepted := 0
	for i, col := range l.problems {
		cell := ""
		if col.index < len(row) {
			cell = row[col.index]
		}
		record.Problems[i] = ParseProblem(col.label, cell)
		if record.Problems[i].Accepted() {
			accepted++
		}
	}

	solvedCell, hasSolved := l.cell(row, headers.FieldSolved)
	switch {
	case hasSolved:
		record.Solved = LeadingInt(solvedCell)
	case len(l.problems) > 0:
		record.Solved = accepted
	default:
		record.Solved = record.Score
	}
	return record, nil
}

// Normalize maps a table candidate onto records. Rows whose rank or team cannot be read are
// dropped and reported in Result.Dropped, ranks are kept as displayed (ties included).
// It fails with ranking.ErrEmptyRanking when no row survives.
func Normalize(c scorer.TableCandidate) (Result, error) {
	l := newLayout(c)

	result := Result{Problems: make([]string, len(l.problems))}
	for i, col := range l.problems {
		result.Problems[i] = col.label
	}

	for i, row := range c.Rows {
		record, rowErr := l.record(row)
		if rowErr != nil {
			rowErr.Row = i + 1
			result.Dropped = append(result.Dropped, rowErr)
			continue
		}
		result.Records = append(result.Records, record)
	}

	if len(result.Records) == 0 {
		return result, fmt.Errorf(
			"%d rows, %d dropped: %w",
			len(c.Rows), len(result.Dropped), ranking.ErrEmptyRanking,
		)
	}
	return result, nil
}
