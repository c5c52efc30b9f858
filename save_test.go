package xrecord

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestInsertSQL_SparseColumns(t *testing.T) {
	s := songSchema(t)

	full, _ := s.New(map[string]any{"name": "Thriller", "artist": "MJ"})
	q, args := full.InsertSQL()
	if q != `INSERT INTO "songs" ("name", "artist") VALUES (?, ?)` {
		t.Fatalf("query = %q", q)
	}
	if len(args) != 2 || args[0] != "Thriller" || args[1] != "MJ" {
		t.Fatalf("args = %#v", args)
	}

	sparse, _ := s.New(map[string]any{"artist": "MJ"})
	q, args = sparse.InsertSQL()
	if q != `INSERT INTO "songs" ("artist") VALUES (?)` {
		t.Fatalf("sparse query = %q", q)
	}
	if len(args) != 1 || args[0] != "MJ" {
		t.Fatalf("sparse args = %#v", args)
	}
}

func TestInsertSQL_NeverWritesPrimaryKey(t *testing.T) {
	s := songSchema(t)
	r, _ := s.New(map[string]any{"id": 99, "name": "Bad"})
	q, args := r.InsertSQL()
	if q != `INSERT INTO "songs" ("name") VALUES (?)` || len(args) != 1 {
		t.Fatalf("query = %q args = %#v", q, args)
	}
}

func TestInsertSQL_QuotesAreBoundNotInterpolated(t *testing.T) {
	s := songSchema(t)
	r, _ := s.New(map[string]any{"name": "Don't Stop '); DROP TABLE songs; --"})
	q, args := r.InsertSQL()
	if q != `INSERT INTO "songs" ("name") VALUES (?)` {
		t.Fatalf("value leaked into SQL: %q", q)
	}
	if args[0] != "Don't Stop '); DROP TABLE songs; --" {
		t.Fatalf("args = %#v", args)
	}
}

func TestInsertSQL_EmptyRecord(t *testing.T) {
	r, _ := songSchema(t).New(nil)
	if q, _ := r.InsertSQL(); q != `INSERT INTO "songs" DEFAULT VALUES` {
		t.Fatalf("sqlite empty insert = %q", q)
	}

	r, _ = songSchema(t, WithDialect(MySQL)).New(nil)
	if q, _ := r.InsertSQL(); q != "INSERT INTO `songs` () VALUES ()" {
		t.Fatalf("mysql empty insert = %q", q)
	}
}

func TestInsertSQL_Dialects(t *testing.T) {
	fields := map[string]any{"name": "Thriller", "artist": "MJ"}

	r, _ := songSchema(t, WithDialect(MySQL)).New(fields)
	if q, _ := r.InsertSQL(); q != "INSERT INTO `songs` (`name`, `artist`) VALUES (?, ?)" {
		t.Fatalf("mysql = %q", q)
	}

	r, _ = songSchema(t, WithDialect(Postgres)).New(fields)
	want := `INSERT INTO "songs" ("name", "artist") VALUES ($1, $2) RETURNING "id"`
	if q, _ := r.InsertSQL(); q != want {
		t.Fatalf("postgres = %q, want %q", q, want)
	}
}

func TestSave_SetsIDFromLastInsertID(t *testing.T) {
	s := songSchema(t)
	var gotQuery string
	var gotArgs []driver.NamedValue
	db := newExecDB(t, func(q string, args []driver.NamedValue) (driver.Result, error) {
		gotQuery, gotArgs = q, args
		return testResult{lastID: 1, rows: 1}, nil
	})

	r, _ := s.New(map[string]any{"name": "Thriller", "artist": "MJ"})
	id, err := r.Save(context.Background(), db)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id != 1 {
		t.Fatalf("id = %d, want 1", id)
	}
	if got, ok := r.ID(); !ok || got != 1 {
		t.Fatalf("ID() = %d, %v", got, ok)
	}
	if v, _ := r.Get("id"); v != int64(1) {
		t.Fatalf("id field = %#v", v)
	}
	if !r.Saved() {
		t.Fatal("record should be saved")
	}
	if gotQuery != `INSERT INTO "songs" ("name", "artist") VALUES (?, ?)` {
		t.Fatalf("query = %q", gotQuery)
	}
	if len(gotArgs) != 2 || gotArgs[0].Value != "Thriller" || gotArgs[1].Value != "MJ" {
		t.Fatalf("args = %#v", gotArgs)
	}
}

func TestSave_TwiceInsertsTwice(t *testing.T) {
	s := songSchema(t)
	next := int64(0)
	db := newExecDB(t, func(string, []driver.NamedValue) (driver.Result, error) {
		next++
		return testResult{lastID: next, rows: 1}, nil
	})

	r, _ := s.New(map[string]any{"name": "Again"})
	first, err := r.Save(context.Background(), db)
	if err != nil {
		t.Fatalf("first Save: %v", err)
	}
	second, err := r.Save(context.Background(), db)
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if first != 1 || second != 2 || next != 2 {
		t.Fatalf("ids = %d, %d after %d inserts", first, second, next)
	}
}

func TestSave_InsertFailureLeavesRecordUnsaved(t *testing.T) {
	s := songSchema(t)
	boom := errors.New("NOT NULL constraint failed: songs.name")
	db := newExecDB(t, func(string, []driver.NamedValue) (driver.Result, error) {
		return nil, boom
	})

	r, _ := s.New(map[string]any{"artist": "MJ"})
	_, err := r.Save(context.Background(), db)
	if !errors.Is(err, ErrPersistence) || !errors.Is(err, boom) {
		t.Fatalf("want ErrPersistence wrapping driver error, got %v", err)
	}
	if r.Saved() {
		t.Fatal("failed save must leave the record unsaved")
	}
	if _, ok := r.ID(); ok {
		t.Fatal("failed save must not set an id")
	}
}

func TestSave_LastInsertIDFailure(t *testing.T) {
	s := songSchema(t)
	unsupported := errors.New("LastInsertId is not supported")
	db := newExecDB(t, func(string, []driver.NamedValue) (driver.Result, error) {
		return testResult{liErr: unsupported}, nil
	})

	r, _ := s.New(map[string]any{"name": "x"})
	if _, err := r.Save(context.Background(), db); !errors.Is(err, ErrPersistence) || !errors.Is(err, unsupported) {
		t.Fatalf("want ErrPersistence, got %v", err)
	}
	if r.Saved() {
		t.Fatal("record must stay unsaved")
	}
}

func TestSave_PostgresReturning(t *testing.T) {
	s := songSchema(t, WithDialect(Postgres))
	var gotQuery string
	db := newFakeDB(t, func(q string, args []driver.NamedValue) ([]string, [][]driver.Value, error) {
		gotQuery = q
		return []string{"id"}, [][]driver.Value{{int64(42)}}, nil
	}, nil)

	r, _ := s.New(map[string]any{"name": "Thriller"})
	id, err := r.Save(context.Background(), db)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id != 42 {
		t.Fatalf("id = %d", id)
	}
	if gotQuery != `INSERT INTO "songs" ("name") VALUES ($1) RETURNING "id"` {
		t.Fatalf("query = %q", gotQuery)
	}
}

func TestSave_NoPrimaryKeyColumn(t *testing.T) {
	cat := &catalog{tables: map[string][]any{"tags": {"label"}}}
	s, err := Define(context.Background(), newTestDB(t, cat.handle), "Tag")
	if err != nil {
		t.Fatalf("Define: %v", err)
	}
	db := newExecDB(t, func(string, []driver.NamedValue) (driver.Result, error) {
		return testResult{lastID: 5, rows: 1}, nil
	})

	r, _ := s.New(map[string]any{"label": "rock"})
	if _, ok := r.ID(); ok {
		t.Fatal("no id before save")
	}
	if _, err := r.Save(context.Background(), db); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id, ok := r.ID(); !ok || id != 5 {
		t.Fatalf("ID() = %d, %v (rowid)", id, ok)
	}
}

func TestSave_LogsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := songSchema(t, WithLogger(logger))
	db := newExecDB(t, func(string, []driver.NamedValue) (driver.Result, error) {
		return testResult{lastID: 3, rows: 1}, nil
	})

	r, _ := s.New(map[string]any{"name": "Thriller"})
	if _, err := r.Save(context.Background(), db); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"xrecord: schema defined", "xrecord: inserted", "table=songs", "id=3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %q:\n%s", want, out)
		}
	}
}
