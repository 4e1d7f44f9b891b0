package output

import (
	"context"
	"database/sql"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"
	"vjudge-crawler/internal/components/chrono"
	"vjudge-crawler/internal/ranking"
	"vjudge-crawler/lib/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	_ "modernc.org/sqlite"
)

var fixedClock = chrono.FixedImpl{At: time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)}

func sampleResult() ranking.ContestResult {
	return ranking.ContestResult{
		ContestID: "739901",
		Problems:  []string{"A", "B"},
		Origin:    ranking.OriginDirect,
		State:     ranking.StateDone,
		Records: []ranking.Record{
			{
				Rank: 1, Team: "Krutoichel (Крутой)", Score: 2, Penalty: 279, Solved: 2,
				Problems: []ranking.ProblemResult{
					{Label: "A", Attempts: 1, AcceptedTime: "0:36:26", Raw: "0:36:26"},
					{Label: "B", Attempts: 3, AcceptedTime: "1:35:25", Raw: "1:35:25 (-2)"},
				},
			},
			{
				Rank: 1, Team: "zxzuam", Score: 2, Penalty: 279, Solved: 2,
				Problems: []ranking.ProblemResult{
					{Label: "A", Attempts: 1, AcceptedTime: "1:36:00", Raw: "1:36:00"},
					{Label: "B", Attempts: 1, Raw: "(-1)"},
				},
			},
		},
	}
}

func TestBasename(t *testing.T) {
	require.Equal(t, "vjudge_contest_739901_rankings_20240309_140507", Basename("739901", fixedClock))
}

func TestCsvWriter(t *testing.T) {
	dir := t.TempDir()
	writer, err := New(Options{Dir: dir, Format: FormatCsv, Clock: fixedClock})
	require.NoError(t, err)

	path, err := writer.Write(context.Background(), sampleResult())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "vjudge_contest_739901_rankings_20240309_140507.csv"), path)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"rank", "team", "score", "penalty", "solved", "A", "B"},
		{"1", "Krutoichel (Крутой)", "2", "279", "2", "0:36:26", "1:35:25 (-2)"},
		{"1", "zxzuam", "2", "279", "2", "1:36:00", "(-1)"},
	}, rows)
}

func TestCsvWriterCollisions(t *testing.T) {
	dir := t.TempDir()
	writer := CsvWriter{Dir: dir, Clock: fixedClock}

	var paths []string
	for i := 0; i < 3; i++ {
		path, err := writer.Write(context.Background(), sampleResult())
		require.NoError(t, err)
		paths = append(paths, filepath.Base(path))
	}
	require.Equal(t, []string{
		"vjudge_contest_739901_rankings_20240309_140507.csv",
		"vjudge_contest_739901_rankings_20240309_140507_1.csv",
		"vjudge_contest_739901_rankings_20240309_140507_2.csv",
	}, paths)
}

func TestCsvWriterBom(t *testing.T) {
	writer := CsvWriter{Dir: t.TempDir(), BOM: true, Clock: fixedClock}
	path, err := writer.Write(context.Background(), sampleResult())
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, BOM, content[:3])
	require.Equal(t, "rank,team", string(content[3:12]))
}

func TestWriterRefusesFailedContest(t *testing.T) {
	dir := t.TempDir()
	failed := ranking.ContestResult{
		ContestID: "1",
		State:     ranking.StateFailed,
		Err:       ranking.ErrNoRankingTableFound,
	}
	for _, writer := range []Writer{
		CsvWriter{Dir: dir, Clock: fixedClock},
		XlsxWriter{Dir: dir, Clock: fixedClock},
		SqliteWriter{Path: filepath.Join(dir, SqliteFilename), Clock: fixedClock},
	} {
		_, err := writer.Write(context.Background(), failed)
		require.Error(t, err)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestXlsxWriter(t *testing.T) {
	writer, err := New(Options{Dir: t.TempDir(), Format: FormatXlsx, Clock: fixedClock})
	require.NoError(t, err)
	path, err := writer.Write(context.Background(), sampleResult())
	require.NoError(t, err)
	require.Equal(t, ".xlsx", filepath.Ext(path))

	book, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows(book.GetSheetName(0))
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"rank", "team", "score", "penalty", "solved", "A", "B"},
		{"1", "Krutoichel (Крутой)", "2", "279", "2", "0:36:26", "1:35:25 (-2)"},
		{"1", "zxzuam", "2", "279", "2", "1:36:00", "(-1)"},
	}, rows)
}

func TestSqliteWriter(t *testing.T) {
	dir := t.TempDir()
	writer, err := New(Options{Dir: dir, Format: FormatSqlite, Clock: fixedClock})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		path, err := writer.Write(context.Background(), sampleResult())
		require.NoError(t, err)
		require.Equal(t, filepath.Join(dir, SqliteFilename), path)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, SqliteFilename))
	require.NoError(t, err)
	defer db.Close()

	var snapshots int
	err = db.QueryRow("select count(*) from contest where contest_id = ?", "739901").Scan(&snapshots)
	require.NoError(t, err)
	require.Equal(t, 2, snapshots)

	pulled, err := NewStore(db).Pull(context.Background(), "739901")
	require.NoError(t, err)
	expected := sampleResult()
	diff := cmp.Diff(expected.Records, pulled.Records, cmpopts.EquateEmpty())
	require.Empty(t, diff)
	require.Equal(t, expected.Problems, pulled.Problems)
	require.Equal(t, ranking.OriginDirect, pulled.Origin)
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("XLSX")
	require.NoError(t, err)
	require.Equal(t, FormatXlsx, format)

	_, err = ParseFormat("json")
	require.Error(t, err)
}

func TestStoreKeepsEverySnapshot(t *testing.T) {
	db := testutil.OpenSqlite(t, Schema)
	store := NewStore(db)
	ctx := context.Background()

	first := sampleResult()
	_, err := store.Push(ctx, 100, first)
	require.NoError(t, err)

	second := sampleResult()
	second.Origin = ranking.OriginRendered
	second.Records = second.Records[:1]
	second.DroppedRows = 1
	_, err = store.Push(ctx, 200, second)
	require.NoError(t, err)

	latest, err := store.Pull(ctx, "739901")
	require.NoError(t, err)
	require.Equal(t, ranking.OriginRendered, latest.Origin)
	require.Equal(t, 1, latest.DroppedRows)
	require.Len(t, latest.Records, 1)
	require.Len(t, latest.Records[0].Problems, 2)

	_, err = store.Pull(ctx, "404")
	require.ErrorIs(t, err, sql.ErrNoRows)
}
