package headers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	testCases := []struct {
		header  string
		field   Field
		matched bool
	}{
		{header: "Rank", field: FieldRank, matched: true},
		{header: "#", field: FieldRank, matched: true},
		{header: "Team Name", field: FieldTeam, matched: true},
		{header: "team", field: FieldTeam, matched: true},
		{header: "  NICKNAME ", field: FieldTeam, matched: true},
		{header: "Score", field: FieldScore, matched: true},
		{header: "Penalty", field: FieldPenalty, matched: true},
		{header: "Penality", field: FieldPenalty, matched: true},
		{header: "Contestants", field: FieldTeam, matched: true},
		{header: "Solved", field: FieldSolved, matched: true},
		{header: "Rank:", field: FieldRank, matched: true},
		{header: "A\n6/10", matched: false},
		{header: "B", matched: false},
		{header: "Graph Theory", matched: false},
		{header: "", matched: false},
	}

	for _, test := range testCases {
		field, ok := Match(test.header)
		require.Equal(t, test.matched, ok, test.header)
		if test.matched {
			require.Equal(t, test.field, field, test.header)
		}
	}
}

func TestLabel(t *testing.T) {
	require.Equal(t, "A", Label("A\n6/10"))
	require.Equal(t, "Graph Theory", Label("  Graph   Theory "))
}
