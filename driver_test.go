package xrecord

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"testing"
)

// --- In-process fake driver ---------------------------------------------------

type DBHandler func(query string, args []driver.NamedValue) (cols []string, rows [][]driver.Value, err error)

type ExecHandler func(query string, args []driver.NamedValue) (driver.Result, error)

type testConnector struct {
	q DBHandler
	e ExecHandler
}

func (c *testConnector) Connect(context.Context) (driver.Conn, error) {
	return &testConn{q: c.q, e: c.e}, nil
}
func (c *testConnector) Driver() driver.Driver { return testDriver{} }

type testDriver struct{}

func (testDriver) Open(name string) (driver.Conn, error) {
	return nil, errors.New("testDriver.Open should not be called; use sql.OpenDB with connector")
}

type testConn struct {
	q DBHandler
	e ExecHandler
}

func (c *testConn) Prepare(string) (driver.Stmt, error) { return nil, driver.ErrSkip }
func (c *testConn) Close() error                        { return nil }
func (c *testConn) Begin() (driver.Tx, error)           { return nil, driver.ErrSkip }

func (c *testConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if c.q == nil {
		return nil, errors.New("testConn: no query handler")
	}
	cols, data, err := c.q(query, args)
	if err != nil {
		return nil, err
	}
	return &testRows{cols: cols, data: data}, nil
}

func (c *testConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if c.e == nil {
		return nil, errors.New("testConn: no exec handler")
	}
	return c.e(query, args)
}

type testRows struct {
	cols []string
	data [][]driver.Value
	i    int
}

func (r *testRows) Columns() []string { return append([]string(nil), r.cols...) }
func (r *testRows) Close() error      { return nil }
func (r *testRows) Next(dest []driver.Value) error {
	if r.i >= len(r.data) {
		return io.EOF
	}
	row := r.data[r.i]
	for i := range dest {
		if i < len(row) {
			dest[i] = row[i]
		} else {
			dest[i] = nil
		}
	}
	r.i++
	return nil
}

// testResult is the driver.Result handed back by exec handlers.
type testResult struct {
	lastID int64
	rows   int64
	liErr  error
	raErr  error
}

func (r testResult) LastInsertId() (int64, error) { return r.lastID, r.liErr }
func (r testResult) RowsAffected() (int64, error) { return r.rows, r.raErr }

// newTestDB creates a *sql.DB whose queries are answered by h.
func newTestDB(t *testing.T, h DBHandler) *sql.DB {
	t.Helper()
	return newFakeDB(t, h, nil)
}

// newExecDB creates a *sql.DB whose statements are answered by h.
func newExecDB(t *testing.T, h ExecHandler) *sql.DB {
	t.Helper()
	return newFakeDB(t, nil, h)
}

func newFakeDB(t *testing.T, q DBHandler, e ExecHandler) *sql.DB {
	t.Helper()
	db := sql.OpenDB(&testConnector{q: q, e: e})
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// catalog answers column introspection for a fixed set of tables and counts
// how often it was asked.
type catalog struct {
	mu     sync.Mutex
	tables map[string][]any // table -> names; nil entries model NULL names
	calls  int
}

func (c *catalog) handle(query string, args []driver.NamedValue) ([]string, [][]driver.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(args) != 1 {
		return nil, nil, errors.New("catalog: want one arg")
	}
	table, _ := args[0].Value.(string)
	var rows [][]driver.Value
	for _, n := range c.tables[table] {
		rows = append(rows, []driver.Value{n})
	}
	return []string{"name"}, rows, nil
}

func (c *catalog) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// --- rows.Next error simulation ---------------------------------------------

type errNextConnector struct{}

func (c *errNextConnector) Connect(context.Context) (driver.Conn, error) { return &errNextConn{}, nil }
func (c *errNextConnector) Driver() driver.Driver                        { return testDriver{} }

type errNextConn struct{}

func (c *errNextConn) Prepare(string) (driver.Stmt, error) { return nil, driver.ErrSkip }
func (c *errNextConn) Close() error                        { return nil }
func (c *errNextConn) Begin() (driver.Tx, error)           { return nil, driver.ErrSkip }
func (c *errNextConn) QueryContext(context.Context, string, []driver.NamedValue) (driver.Rows, error) {
	return &errRows{}, nil
}

// errRows fails on first Next(); database/sql exposes it via rows.Err() after Next() returns false.
type errRows struct{}

func (e *errRows) Columns() []string { return []string{"a"} }
func (e *errRows) Close() error      { return nil }
func (e *errRows) Next(dest []driver.Value) error {
	return errors.New("driver next error")
}
