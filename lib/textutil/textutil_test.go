package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "teamname", NormalizeName(" Team \t Name\n"))
	require.Equal(t, "rank", NormalizeName("RANK"))
}

func TestFirstLine(t *testing.T) {
	require.Equal(t, "279", FirstLine("279\n4:39:00"))
	require.Equal(t, "279", FirstLine(" 279 "))
	require.Equal(t, "", FirstLine(""))
}
