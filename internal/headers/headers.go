// Package headers maps ranking table header text onto the canonical record fields.
//
// New layouts are supported by adding synonyms to the table below, not by adding code paths.
package headers

import (
	"strings"
	"unicode"
	"vjudge-crawler/lib/textutil"

	"github.com/antzucaro/matchr"
)

type Field string

const (
	FieldRank    Field = "rank"
	FieldTeam    Field = "team"
	FieldScore   Field = "score"
	FieldPenalty Field = "penalty"
	FieldSolved  Field = "solved"
)

// Fields is the canonical field order, it is also the leading column order of the output.
var Fields = []Field{FieldRank, FieldTeam, FieldScore, FieldPenalty, FieldSolved}

var synonyms = map[Field][]string{
	FieldRank:    {"rank", "#", "place", "no", "position", "rk", "ranking"},
	FieldTeam:    {"team", "team name", "teamname", "name", "user", "username", "participant", "contestant", "nickname", "handle", "who"},
	FieldScore:   {"score", "solved/score", "total score", "totalscore", "points", "sc", "=", "total"},
	FieldPenalty: {"penalty", "time", "penalty time", "total time", "totalpenalty", "penalty (min)"},
	FieldSolved:  {"solved", "ac", "accepted", "solved count", "solvedcount"},
}

// fuzzyThreshold is the minimum Jaro-Winkler similarity for a header that is not an exact
// synonym, ex. "Penality" or "Contestants".
const fuzzyThreshold = 0.92

// fuzzyMinLength keeps one and two letter problem labels from fuzzily matching "ac" or "no".
const fuzzyMinLength = 4

var normalizedSynonyms = func() map[Field][]string {
	out := make(map[Field][]string, len(synonyms))
	for field, list := range synonyms {
		for _, s := range list {
			out[field] = append(out[field], normalize(s))
		}
	}
	return out
}()

// normalize lowercases, drops whitespace and keeps only letters, digits and the symbols
// used as headers on their own (#, =, /).
func normalize(header string) string {
	header = textutil.NormalizeName(header)
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '#' || r == '=' || r == '/' {
			return r
		}
		return -1
	}, header)
}

// Match returns the canonical field a header maps to. Only the first line of a header is
// considered since problem headers stack the label over their statistics.
func Match(header string) (Field, bool) {
	n := normalize(textutil.FirstLine(header))
	if n == "" {
		return "", false
	}

	for _, field := range Fields {
		for _, s := range normalizedSynonyms[field] {
			if n == s {
				return field, true
			}
		}
	}

	if len([]rune(n)) < fuzzyMinLength {
		return "", false
	}

	var best Field
	var bestSimilarity float64
	for _, field := range Fields {
		for _, s := range normalizedSynonyms[field] {
			if len([]rune(s)) < fuzzyMinLength {
				continue
			}
			similarity := matchr.JaroWinkler(n, s, false)
			if similarity > bestSimilarity {
				bestSimilarity = similarity
				best = field
			}
		}
	}
	if bestSimilarity >= fuzzyThreshold {
		return best, true
	}
	return "", false
}

// Label returns the display label of a non canonical (problem) header.
func Label(header string) string {
	return textutil.CollapseSpaces(textutil.FirstLine(header))
}
