package xrecord

import (
	"context"
	"database/sql"
)

// Get executes the query and scans the first row into a value of type T.
//
// It returns [sql.ErrNoRows] when the query yields no rows; rows after the
// first are ignored. T may be a struct (`db` tags, ,inline), a primitive, or
// any [sql.Scanner]. Save uses Get[int64] to read the key an
// INSERT ... RETURNING statement produces.
//
// Example:
//
//	type Song struct {
//	    ID   int64  `db:"id"`
//	    Name string `db:"name"`
//	}
//	s, err := xrecord.Get[Song](ctx, db, `SELECT id, name FROM songs WHERE id = ?`, 1)
//	if errors.Is(err, sql.ErrNoRows) {
//	    // not found
//	}
func Get[T any](ctx context.Context, q Querier, query string, args ...any) (out T, err error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return out, err
	}
	// Ensure Close error is propagated if no earlier error occurred.
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if !rows.Next() {
		if ne := rows.Err(); ne != nil {
			return out, ne
		}
		return out, sql.ErrNoRows
	}
	return scanRow[T](getScanner(), rows)
}
