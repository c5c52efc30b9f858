package xrecord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// InsertSQL returns the statement Save executes and its bound arguments.
//
// The column list is the schema's insertable columns in catalog order,
// restricted to fields that are currently set: absent fields are left out
// entirely so database defaults and constraints apply to them. Identifiers
// are quoted; values are never interpolated.
func (r *Record) InsertSQL() (string, []any) {
	s := r.schema
	d := s.dialect

	var cols []string
	var args []any
	for i, c := range s.columns {
		if i == s.pk || r.values[i] == nil {
			continue
		}
		cols = append(cols, d.Quote(c))
		args = append(args, r.values[i])
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(d.Quote(s.table))
	if len(cols) == 0 {
		b.WriteByte(' ')
		b.WriteString(d.emptyInsert)
	} else {
		b.WriteString(" (")
		b.WriteString(strings.Join(cols, ", "))
		b.WriteString(") VALUES (")
		b.WriteString(strings.Repeat(", ?", len(cols))[2:])
		b.WriteByte(')')
	}
	if d.returning && s.pk >= 0 {
		b.WriteString(" RETURNING ")
		b.WriteString(d.Quote(s.primaryKey))
	}
	return d.bind(b.String()), args
}

// Save inserts the record as a new row and stores the generated key in the
// record's primary key field.
//
// Save is insert-only: saving the same record twice inserts two rows. On
// failure the error matches ErrPersistence and the record is unchanged, so
// it stays Unsaved with no id.
//
// The key is read from the insert itself (sql.Result.LastInsertId, or the
// RETURNING row on engines that need it), which keeps it scoped to this
// statement even on a pooled handle.
func (r *Record) Save(ctx context.Context, db DB) (int64, error) {
	s := r.schema
	query, args := r.InsertSQL()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var id int64
	if s.dialect.returning && s.pk >= 0 {
		v, err := Get[int64](ctx, db, query, args...)
		if err != nil {
			return 0, fmt.Errorf("%w: insert into %q: %w", ErrPersistence, s.table, err)
		}
		id = v
	} else {
		res, err := Exec(ctx, db, query, args...)
		if err != nil {
			return 0, fmt.Errorf("%w: insert into %q: %w", ErrPersistence, s.table, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, fmt.Errorf("%w: last insert id for %q: %w", ErrPersistence, s.table, err)
		}
	}

	r.setID(id)
	s.logger.DebugContext(ctx, "xrecord: inserted",
		slog.String("table", s.table),
		slog.Int("columns", len(args)),
		slog.Int64("id", id))
	return id, nil
}
