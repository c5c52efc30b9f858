package xrecord

import (
	"context"
	"database/sql"
)

// Exec executes a statement that does not return rows.
//
// It forwards to the underlying [Execer] and returns the driver's
// [sql.Result], whose LastInsertId is what Save reads on engines without
// RETURNING. Exec does not rewrite placeholders; pass SQL exactly as your
// driver expects, or run it through [Rebind] first.
//
// Example:
//
//	res, err := xrecord.Exec(ctx, db, `DELETE FROM songs WHERE id = ?`, 7)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	n, _ := res.RowsAffected()
func Exec(ctx context.Context, e Execer, query string, args ...any) (sql.Result, error) {
	return e.ExecContext(ctx, query, args...)
}
