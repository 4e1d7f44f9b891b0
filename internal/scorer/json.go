package scorer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"vjudge-crawler/internal/headers"
)

// containerKeys are the object keys that may wrap a ranking array, in lookup order.
var containerKeys = []string{"data", "participants", "rank", "standings", "rows"}

// preferredKeys decide the column order of candidates built from arrays of objects,
// unknown keys follow in alphabetical order.
var preferredKeys = []string{
	"rank", "rk",
	"name", "user", "team", "teamName",
	"score", "totalScore", "sc",
	"penalty", "totalPenalty", "time",
	"solved", "ac",
}

// positionalHeaders name the columns of rows that are plain arrays.
var positionalHeaders = []string{"rank", "team", "score", "penalty", "solved"}

var scriptRankingRegex = regexp.MustCompile(`(?s)\b(dataRank|rankData|standings|participants)\s*=\s*(\[.*?\]);`)

func decodeJson(data []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var out any
	err := decoder.Decode(&out)
	return out, err
}

// jsonCandidates builds candidates out of a json payload.
func jsonCandidates(source string, body []byte) ([]TableCandidate, error) {
	value, err := decodeJson(body)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	candidate, ok := candidateFromValue(source, value)
	if !ok {
		return nil, nil
	}
	return []TableCandidate{candidate}, nil
}

// scriptCandidates finds ranking arrays assigned to well known variables in a script.
func scriptCandidates(script string) []TableCandidate {
	var out []TableCandidate
	for _, match := range scriptRankingRegex.FindAllStringSubmatch(script, -1) {
		value, err := decodeJson([]byte(match[2]))
		if err != nil {
			continue
		}
		candidate, ok := candidateFromValue("script:"+match[1], value)
		if ok {
			out = append(out, candidate)
		}
	}
	return out
}

// HasRankingArray reports whether a json body holds an array that can be read as a ranking.
func HasRankingArray(body []byte) bool {
	value, err := decodeJson(body)
	if err != nil {
		return false
	}
	candidate, ok := candidateFromValue("json", value)
	return ok && len(candidate.Rows) > 0
}

func candidateFromValue(source string, value any) (TableCandidate, bool) {
	switch v := value.(type) {
	case map[string]any:
		for _, key := range containerKeys {
			inner, ok := v[key].([]any)
			if ok {
				return candidateFromValue(source+"."+key, inner)
			}
		}
		return TableCandidate{}, false
	case []any:
		if len(v) == 0 {
			return TableCandidate{}, false
		}
		switch v[0].(type) {
		case map[string]any:
			return candidateFromObjects(source, v), true
		case []any:
			return candidateFromArrays(source, v), true
		}
	}
	return TableCandidate{}, false
}

func candidateFromObjects(source string, entries []any) TableCandidate {
	seen := map[string]bool{}
	hasRank := false
	var extra []string
	for _, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		for key, value := range obj {
			if seen[key] || !isScalar(value) {
				continue
			}
			seen[key] = true
			if field, ok := headers.Match(key); ok && field == headers.FieldRank {
				hasRank = true
			}
			if !slices.Contains(preferredKeys, key) {
				extra = append(extra, key)
			}
		}
	}
	slices.Sort(extra)

	var columns []string
	for _, key := range preferredKeys {
		if seen[key] {
			columns = append(columns, key)
		}
	}
	columns = append(columns, extra...)

	// entries without any rank are listed in ranking order
	candidate := TableCandidate{Source: source}
	if !hasRank {
		candidate.Headers = append(candidate.Headers, string(headers.FieldRank))
	}
	candidate.Headers = append(candidate.Headers, columns...)

	for _, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		row := make([]string, 0, len(candidate.Headers))
		if !hasRank {
			row = append(row, strconv.Itoa(len(candidate.Rows)+1))
		}
		for _, key := range columns {
			row = append(row, scalarText(obj[key]))
		}
		candidate.Rows = append(candidate.Rows, row)
	}
	return candidate
}

func candidateFromArrays(source string, entries []any) TableCandidate {
	candidate := TableCandidate{Source: source, Headers: slices.Clone(positionalHeaders)}
	for _, entry := range entries {
		arr, ok := entry.([]any)
		if !ok {
			continue
		}
		width := min(len(arr), len(positionalHeaders))
		row := make([]string, width)
		for i := 0; i < width; i++ {
			row[i] = scalarText(arr[i])
		}
		candidate.Rows = append(candidate.Rows, row)
	}
	return candidate
}

func isScalar(value any) bool {
	switch value.(type) {
	case string, json.Number, bool, nil:
		return true
	}
	return false
}

func scalarText(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}
