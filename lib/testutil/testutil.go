package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

// OpenSqlite opens an in-memory sqlite database with `schema` applied. The database is
// closed when the test ends.
func OpenSqlite(t testing.TB, schema string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// every connection to :memory: is a different database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		db.Close()
	})

	_, err = db.Exec(schema)
	if err != nil {
		t.Fatal(err)
	}
	return db
}
