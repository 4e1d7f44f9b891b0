package output

import (
	"context"
	"database/sql"
	"fmt"
	"vjudge-crawler/internal/components/chrono"
	"vjudge-crawler/internal/ranking"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// SqliteFilename is the database every contest of an output directory is appended to.
const SqliteFilename = "vjudge_rankings.db"

// SqliteWriter appends each contest as a new snapshot, older snapshots of the same contest
// are kept.
type SqliteWriter struct {
	Path  string
	Clock chrono.API
}

func (w SqliteWriter) Write(ctx context.Context, result ranking.ContestResult) (string, error) {
	err := checkWritable(result)
	if err != nil {
		return "", err
	}

	db, err := sql.Open("sqlite", w.Path)
	if err != nil {
		return "", err
	}
	defer db.Close()

	store := NewStore(db)
	err = store.Migrate(ctx)
	if err != nil {
		return "", err
	}
	_, err = store.Push(ctx, w.Clock.Now().Unix(), result)
	if err != nil {
		return "", err
	}
	return w.Path, nil
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) Store {
	return Store{db: db}
}

func (s Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Push stores a contest snapshot and returns its row id.
func (s Store) Push(ctx context.Context, fetchedAt int64, result ranking.ContestResult) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(
		ctx,
		"insert into contest(contest_id, fetched_at, origin, dropped_rows) values (?, ?, ?, ?)",
		result.ContestID, fetchedAt, string(result.Origin), result.DroppedRows,
	)
	if err != nil {
		return 0, err
	}
	contest, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, label := range result.Problems {
		_, err = tx.ExecContext(
			ctx,
			"insert into problem(contest, position, label) values (?, ?, ?)",
			contest, i, label,
		)
		if err != nil {
			return 0, err
		}
	}

	for i, r := range result.Records {
		_, err = tx.ExecContext(
			ctx,
			"insert into record(contest, position, rank, team, score, penalty, solved) values (?, ?, ?, ?, ?, ?, ?)",
			contest, i, r.Rank, r.Team, r.Score, r.Penalty, r.Solved,
		)
		if err != nil {
			return 0, err
		}
		for j, p := range r.Problems {
			var accepted sql.NullString
			if p.Accepted() {
				accepted = sql.NullString{String: p.AcceptedTime, Valid: true}
			}
			_, err = tx.ExecContext(
				ctx,
				"insert into problem_result(contest, record, problem, attempts, accepted_time, raw) values (?, ?, ?, ?, ?, ?)",
				contest, i, j, p.Attempts, accepted, p.Raw,
			)
			if err != nil {
				return 0, err
			}
		}
	}

	return contest, tx.Commit()
}

// Pull reads back the latest snapshot of a contest.
func (s Store) Pull(ctx context.Context, contestId string) (ranking.ContestResult, error) {
	result := ranking.ContestResult{ContestID: contestId}

	var contest int64
	var origin string
	err := s.db.QueryRowContext(
		ctx,
		"select id, origin, dropped_rows from contest where contest_id = ? order by fetched_at desc, id desc limit 1",
		contestId,
	).Scan(&contest, &origin, &result.DroppedRows)
	if err != nil {
		return ranking.ContestResult{}, err
	}
	result.Origin = ranking.Origin(origin)

	labels, err := s.db.QueryContext(ctx, "select label from problem where contest = ? order by position", contest)
	if err != nil {
		return ranking.ContestResult{}, err
	}
	defer labels.Close()
	for labels.Next() {
		var label string
		err = labels.Scan(&label)
		if err != nil {
			return ranking.ContestResult{}, err
		}
		result.Problems = append(result.Problems, label)
	}
	if err = labels.Err(); err != nil {
		return ranking.ContestResult{}, err
	}

	records, err := s.db.QueryContext(
		ctx,
		"select rank, team, score, penalty, solved from record where contest = ? order by position",
		contest,
	)
	if err != nil {
		return ranking.ContestResult{}, err
	}
	defer records.Close()
	for records.Next() {
		var r ranking.Record
		err = records.Scan(&r.Rank, &r.Team, &r.Score, &r.Penalty, &r.Solved)
		if err != nil {
			return ranking.ContestResult{}, err
		}
		result.Records = append(result.Records, r)
	}
	if err = records.Err(); err != nil {
		return ranking.ContestResult{}, err
	}

	cells, err := s.db.QueryContext(
		ctx,
		"select record, problem, attempts, accepted_time, raw from problem_result where contest = ? order by record, problem",
		contest,
	)
	if err != nil {
		return ranking.ContestResult{}, err
	}
	defer cells.Close()
	for cells.Next() {
		var record, problem int
		var p ranking.ProblemResult
		var accepted sql.NullString
		err = cells.Scan(&record, &problem, &p.Attempts, &accepted, &p.Raw)
		if err != nil {
			return ranking.ContestResult{}, err
		}
		if record >= len(result.Records) || problem >= len(result.Problems) {
			continue
		}
		p.Label = result.Problems[problem]
		p.AcceptedTime = accepted.String
		result.Records[record].Problems = append(result.Records[record].Problems, p)
	}
	return result, cells.Err()
}
