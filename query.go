package xrecord

import (
	"context"
)

// Query executes the query and scans all result rows into a slice of T.
//
// T may be a struct (`db` tags, ,inline), a primitive, or any [sql.Scanner].
// Extra columns are ignored and missing columns leave zero values. Scan
// plans are cached per (T, column set), so Query is cheap to call
// repeatedly and safe for concurrent use.
//
// Example:
//
//	names, err := xrecord.Query[string](ctx, db, `SELECT name FROM songs ORDER BY id`)
func Query[T any](ctx context.Context, q Querier, query string, args ...any) (out []T, err error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	// Propagate rows.Close() error if nothing else failed.
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	sc := getScanner()
	for rows.Next() {
		v, scanErr := scanRow[T](sc, rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, v)
	}
	if ne := rows.Err(); ne != nil {
		return nil, ne
	}
	return out, nil
}
