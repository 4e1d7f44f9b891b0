package normalize

import (
	"context"
	"errors"
	"testing"
	"vjudge-crawler/internal/ranking"
	"vjudge-crawler/internal/scorer"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSummaryOnly(t *testing.T) {
	result, err := Normalize(scorer.TableCandidate{
		Headers: []string{"rank", "team", "score", "penalty", "solved"},
		Rows: [][]string{
			{"1", "A", "6", "279", "6"},
			{"2", "B", "6", "1076", "6"},
			{"3", "C", "5", "429", "5"},
		},
	})
	require.NoError(t, err)
	require.Empty(t, result.Problems)
	require.Empty(t, result.Dropped)

	expected := []ranking.Record{
		{Rank: 1, Team: "A", Score: 6, Penalty: 279, Solved: 6},
		{Rank: 2, Team: "B", Score: 6, Penalty: 1076, Solved: 6},
		{Rank: 3, Team: "C", Score: 5, Penalty: 429, Solved: 5},
	}
	require.Empty(t, cmp.Diff(expected, result.Records, cmpopts.EquateEmpty()))
}

func TestNormalizeKeepsTies(t *testing.T) {
	result, err := Normalize(scorer.TableCandidate{
		Headers: []string{"Rank", "Team", "Score", "Penalty"},
		Rows: [][]string{
			{"1", "A", "3", "100"},
			{"1", "B", "3", "100"},
			{"3", "C", "2", "90"},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Records, 3)
	require.Equal(t, 1, result.Records[0].Rank)
	require.Equal(t, 1, result.Records[1].Rank)
	require.Equal(t, 3, result.Records[2].Rank)
	require.Equal(t, "B", result.Records[1].Team)
}

func TestNormalizeDropsUnparseableRank(t *testing.T) {
	result, err := Normalize(scorer.TableCandidate{
		Headers: []string{"Rank", "Team", "Score", "Penalty"},
		Rows: [][]string{
			{"1", "A", "5", "300"},
			{"2", "B", "4", "200"},
			{"—", "C", "4", "250"},
			{"4", "D", "3", "100"},
			{"5", "E", "1", "20"},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Records, 4)
	require.Len(t, result.Dropped, 1)

	var rowErr *ranking.RowParseError
	require.True(t, errors.As(result.Dropped[0], &rowErr))
	require.Equal(t, 3, rowErr.Row)
	require.Equal(t, "—", rowErr.Cell)

	var teams []string
	for _, r := range result.Records {
		teams = append(teams, r.Team)
	}
	require.Equal(t, []string{"A", "B", "D", "E"}, teams)
}

func TestNormalizeEveryRowFails(t *testing.T) {
	result, err := Normalize(scorer.TableCandidate{
		Headers: []string{"Rank", "Team", "Score"},
		Rows: [][]string{
			{"—", "A", "1"},
			{"0", "B", "1"},
		},
	})
	require.ErrorIs(t, err, ranking.ErrEmptyRanking)
	require.Len(t, result.Dropped, 2)
	require.Empty(t, result.Records)
}

func TestNormalizeProblemColumns(t *testing.T) {
	result, err := Normalize(scorer.TableCandidate{
		Headers: []string{"Rank", "Team", "Score", "Penalty", "A\n2/3", "B\n1/4", "C\n0/1"},
		Rows: [][]string{
			{"1", "Krutoichel\n(Крутой)", "2", "279\n4:39:00", "0:36:26", "1:35:25\n(-2)", ""},
			// trailing cells missing
			{"2", "zxzuam", "1", "96", "1:36:00", "(-1)"},
			{"3", "late", "0", "0"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C"}, result.Problems)

	for _, r := range result.Records {
		require.Len(t, r.Problems, len(result.Problems), r.Team)
	}

	first := result.Records[0]
	require.Equal(t, "Krutoichel (Крутой)", first.Team)
	require.Equal(t, 279, first.Penalty)
	require.Equal(t, 2, first.Solved)
	require.Equal(t, []ranking.ProblemResult{
		{Label: "A", Attempts: 1, AcceptedTime: "0:36:26", Raw: "0:36:26"},
		{Label: "B", Attempts: 3, AcceptedTime: "1:35:25", Raw: "1:35:25 (-2)"},
		{Label: "C"},
	}, first.Problems)

	second := result.Records[1]
	require.Equal(t, 1, second.Solved)
	require.Equal(t, ranking.ProblemResult{Label: "B", Attempts: 1, Raw: "(-1)"}, second.Problems[1])
	require.Equal(t, ranking.ProblemResult{Label: "C"}, second.Problems[2])

	third := result.Records[2]
	require.Equal(t, 0, third.Solved)
	require.Equal(t, ranking.ProblemResult{Label: "A"}, third.Problems[0])
}

func TestNormalizeHeaderSynonyms(t *testing.T) {
	result, err := Normalize(scorer.TableCandidate{
		Headers: []string{"#", "Team Name", "Solved", "Penalty Time", "Points"},
		Rows: [][]string{
			{"1", "A", "4", "1:00:00", "400"},
		},
	})
	require.NoError(t, err)
	require.Empty(t, result.Problems)
	require.Empty(t, cmp.Diff([]ranking.Record{
		{Rank: 1, Team: "A", Score: 400, Penalty: 60, Solved: 4},
	}, result.Records, cmpopts.EquateEmpty()))
}

func TestNormalizeHeaderlessTable(t *testing.T) {
	result, err := Normalize(scorer.TableCandidate{
		Headers: []string{"1", "A", "2", "100", "0:10:00"},
		Rows: [][]string{
			{"2", "B", "1", "50", ""},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"0:10:00"}, result.Problems)
	require.Equal(t, 2, result.Records[0].Rank)
	require.Equal(t, "B", result.Records[0].Team)
	require.Equal(t, 50, result.Records[0].Penalty)
	require.Equal(t, 0, result.Records[0].Solved)
}

func TestNormalizeJsonWithoutRanks(t *testing.T) {
	best, err := scorer.Best(context.Background(), ranking.RawDocument{
		Body:        []byte(`{"data":[{"name":"alice","score":3,"penalty":100},{"name":"bob","score":2,"penalty":80}]}`),
		ContentType: "application/json",
	})
	require.NoError(t, err)

	result, err := Normalize(best)
	require.NoError(t, err)
	require.Empty(t, result.Dropped)
	require.Empty(t, cmp.Diff([]ranking.Record{
		{Rank: 1, Team: "alice", Score: 3, Penalty: 100, Solved: 3},
		{Rank: 2, Team: "bob", Score: 2, Penalty: 80, Solved: 2},
	}, result.Records, cmpopts.EquateEmpty()))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	candidate := scorer.TableCandidate{
		Headers: []string{"Rank", "Team", "Score", "Penalty", "A", "B"},
		Rows: [][]string{
			{"1", "A", "2", "100", "0:10:00", "0:20:00\n(-1)"},
			{"x", "B", "1", "50", "", "(-4)"},
			{"2", "C", "1", "50", "0:50:00"},
		},
	}
	first, err := Normalize(candidate)
	require.NoError(t, err)
	second, err := Normalize(candidate)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(first.Records, second.Records))
	require.Equal(t, first.Problems, second.Problems)
	require.Len(t, first.Dropped, 1)
}

func TestParseProblem(t *testing.T) {
	testCases := []struct {
		cell     string
		attempts int
		accepted string
	}{
		{cell: "", attempts: 0, accepted: ""},
		{cell: "0:36:26", attempts: 1, accepted: "0:36:26"},
		{cell: "1:35:25\n(-2)", attempts: 3, accepted: "1:35:25"},
		{cell: "1:35:25 (-2)", attempts: 3, accepted: "1:35:25"},
		{cell: "(-1)", attempts: 1, accepted: ""},
		{cell: "(−3)", attempts: 3, accepted: ""},
		{cell: "-5", attempts: 5, accepted: ""},
		{cell: "12:00:01\n+1", attempts: 2, accepted: "12:00:01"},
	}
	for _, test := range testCases {
		result := ParseProblem("A", test.cell)
		require.Equal(t, test.attempts, result.Attempts, test.cell)
		require.Equal(t, test.accepted, result.AcceptedTime, test.cell)
	}
}

func TestParsePenalty(t *testing.T) {
	testCases := []struct {
		cell     string
		expected int
	}{
		{cell: "279", expected: 279},
		{cell: "279\n4:39:00", expected: 279},
		{cell: "4:39:00", expected: 279},
		{cell: "", expected: 0},
		{cell: "—", expected: 0},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, ParsePenalty(test.cell), test.cell)
	}
}
