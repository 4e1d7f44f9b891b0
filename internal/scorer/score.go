package scorer

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
	"vjudge-crawler/internal/headers"
	"vjudge-crawler/internal/ranking"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("vjudge-crawler.internal.scorer")

const (
	// weightNameCell is added per name column cell that looks like a participant.
	weightNameCell = 1.0
	// weightTimeCell is added per cell that looks like an accepted time or an attempt count.
	weightTimeCell = 0.5
	// weightPrimaryToken is added per distinct rank, team or score header. One of them outweighs
	// every other feature a table without them can collect.
	weightPrimaryToken = 30.0
	// weightSecondaryToken is added per distinct penalty or solved header.
	weightSecondaryToken = 10.0

	// cell features saturate so that a long decoy table cannot outweigh a ranking header.
	maxNameScore = 10.0
	maxTimeScore = 10.0

	// MinViableScore is the lowest score a candidate needs to be taken as the ranking.
	MinViableScore = 10.0

	minRows    = 1
	minColumns = 3

	maxNameLength = 64
)

// Disqualified is the score of candidates too small to be a ranking table.
var Disqualified = math.Inf(-1)

var (
	timeRegex     = regexp.MustCompile(`\b\d+:\d{2}:\d{2}\b`)
	attemptsRegex = regexp.MustCompile(`^(?:\(\s*[-−]\s*\d+\s*\)|[+-]\d+)$`)
	numericRegex  = regexp.MustCompile(`^[\s\d.,:+\-−()%/]*$`)
)

func isParticipantName(cell string) bool {
	cell = strings.TrimSpace(cell)
	length := utf8.RuneCountInString(cell)
	if length == 0 || length > maxNameLength {
		return false
	}
	if numericRegex.MatchString(cell) {
		return false
	}
	return strings.IndexFunc(cell, unicode.IsLetter) >= 0
}

func isTimeLike(cell string) bool {
	if timeRegex.MatchString(cell) {
		return true
	}
	for _, line := range strings.Split(cell, "\n") {
		if attemptsRegex.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

// nameColumn is the column mapped to the team field, or the second column when no header
// says so (the first is usually the rank).
func nameColumn(c TableCandidate) int {
	for i, h := range c.Headers {
		field, ok := headers.Match(h)
		if ok && field == headers.FieldTeam {
			return i
		}
	}
	return 1
}

// Score computes the ranking likelihood of a candidate from its structure alone.
func Score(c TableCandidate) float64 {
	if len(c.Rows) < minRows || c.Columns() < minColumns {
		return Disqualified
	}

	tokens := map[headers.Field]bool{}
	for _, h := range c.Headers {
		field, ok := headers.Match(h)
		if ok {
			tokens[field] = true
		}
	}
	score := 0.0
	for field := range tokens {
		switch field {
		case headers.FieldRank, headers.FieldTeam, headers.FieldScore:
			score += weightPrimaryToken
		default:
			score += weightSecondaryToken
		}
	}

	nameCol := nameColumn(c)
	nameScore := 0.0
	timeScore := 0.0
	for _, row := range c.Rows {
		if nameCol < len(row) && isParticipantName(row[nameCol]) {
			nameScore += weightNameCell
		}
		for _, cell := range row {
			if isTimeLike(cell) {
				timeScore += weightTimeCell
			}
		}
	}
	score += min(nameScore, maxNameScore)
	score += min(timeScore, maxTimeScore)

	return score
}

// Select scores every candidate in place and returns the highest scoring one. Ties go to the
// candidate with more rows, then to the one that appears first.
func Select(candidates []TableCandidate) (TableCandidate, error) {
	best := -1
	for i := range candidates {
		candidates[i].Score = Score(candidates[i])
		if candidates[i].Score < MinViableScore {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		current := candidates[best]
		switch {
		case candidates[i].Score > current.Score:
			best = i
		case candidates[i].Score == current.Score && len(candidates[i].Rows) > len(current.Rows):
			best = i
		}
	}
	if best < 0 {
		return TableCandidate{}, fmt.Errorf(
			"%d candidates, none scored %.1f or more: %w",
			len(candidates), MinViableScore, ranking.ErrNoRankingTableFound,
		)
	}
	return candidates[best], nil
}

func isJson(doc ranking.RawDocument) bool {
	if strings.Contains(strings.ToLower(doc.ContentType), "json") {
		return true
	}
	trimmed := bytes.TrimSpace(doc.Body)
	return len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{')
}

// Candidates enumerates every tabular region of a document, unscored.
func Candidates(doc ranking.RawDocument) ([]TableCandidate, error) {
	if isJson(doc) {
		candidates, err := jsonCandidates("json", doc.Body)
		if err == nil {
			return candidates, nil
		}
		// some endpoints answer html with a json content type
	}
	return htmlCandidates(doc.Body)
}

// Best finds the ranking table of a document. It never modifies doc.
func Best(ctx context.Context, doc ranking.RawDocument) (TableCandidate, error) {
	_, span := tracer.Start(ctx, "Best")
	defer span.End()

	candidates, err := Candidates(doc)
	if err != nil {
		return TableCandidate{}, err
	}
	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	if len(candidates) == 0 {
		return TableCandidate{}, fmt.Errorf("document has no tables: %w", ranking.ErrNoRankingTableFound)
	}

	best, err := Select(candidates)
	if err != nil {
		return TableCandidate{}, err
	}
	span.SetAttributes(
		attribute.String("source", best.Source),
		attribute.Float64("score", best.Score),
		attribute.Int("rows", len(best.Rows)),
	)
	return best, nil
}
