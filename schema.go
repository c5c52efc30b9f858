package xrecord

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jinzhu/inflection"
)

// DefaultTimeout bounds every catalog, insert and lookup round trip unless
// WithTimeout says otherwise.
const DefaultTimeout = 30 * time.Second

// TableName derives the table backing a record type from the type's bare
// name: lowercased, then pluralized with English rules, irregular nouns
// included ("Song" → "songs", "Person" → "people").
func TableName(typeName string) string {
	return inflection.Plural(strings.ToLower(typeName))
}

// Columns asks the schema catalog for the columns of table, in catalog order.
//
// It issues exactly one query. Rows with a NULL name are skipped. A table the
// catalog knows nothing about is reported as ErrNoTable rather than as an
// empty column list, so "missing" and "no columns" cannot be confused. Every
// failure matches ErrSchema.
func Columns(ctx context.Context, q Querier, d Dialect, table string) ([]string, error) {
	names, err := Query[sql.NullString](ctx, q, d.bind(d.columnsSQL), table)
	if err != nil {
		return nil, fmt.Errorf("%w: columns of %q: %w", ErrSchema, table, err)
	}
	cols := make([]string, 0, len(names))
	for _, n := range names {
		if n.Valid && n.String != "" {
			cols = append(cols, n.String)
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %q: %w", ErrSchema, table, ErrNoTable)
	}
	return cols, nil
}

// Option configures Define, NewRegistry and the records they produce.
type Option func(*options)

type options struct {
	dialect    Dialect
	table      string
	primaryKey string
	logger     *slog.Logger
	timeout    time.Duration
}

func buildOptions(opts []Option) options {
	o := options{
		dialect:    SQLite,
		primaryKey: "id",
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// WithDialect selects the engine. The default is SQLite.
func WithDialect(d Dialect) Option { return func(o *options) { o.dialect = d } }

// WithTable overrides the table name derived by TableName.
func WithTable(table string) Option { return func(o *options) { o.table = table } }

// WithPrimaryKey names the auto-generated key column. The default is "id".
func WithPrimaryKey(col string) Option { return func(o *options) { o.primaryKey = col } }

// WithLogger sets the logger used for debug statement traces.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithTimeout bounds each database round trip; zero or negative disables it.
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// Schema is the table name and column list shared by every record of one
// type. It is immutable once Define returns and safe for concurrent use.
type Schema struct {
	typeName string
	table    string
	columns  []string
	index    map[string]int
	pk       int // position of the primary key in columns, or -1

	dialect    Dialect
	primaryKey string
	logger     *slog.Logger
	timeout    time.Duration
}

// Define prepares a record type: it resolves the table name and introspects
// its columns once. The returned Schema never re-queries the catalog; if the
// table changes, Define again.
func Define(ctx context.Context, q Querier, typeName string, opts ...Option) (*Schema, error) {
	o := buildOptions(opts)
	table := o.table
	if table == "" {
		table = TableName(typeName)
	}

	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	cols, err := Columns(ctx, q, o.dialect, table)
	if err != nil {
		return nil, err
	}

	s := &Schema{
		typeName:   typeName,
		table:      table,
		columns:    cols,
		index:      make(map[string]int, len(cols)),
		pk:         -1,
		dialect:    o.dialect,
		primaryKey: o.primaryKey,
		logger:     o.logger,
		timeout:    o.timeout,
	}
	for i, c := range cols {
		if _, dup := s.index[c]; !dup {
			s.index[c] = i
		}
		if c == o.primaryKey && s.pk < 0 {
			s.pk = i
		}
	}
	s.logger.DebugContext(ctx, "xrecord: schema defined",
		slog.String("type", typeName),
		slog.String("table", table),
		slog.Int("columns", len(cols)))
	return s, nil
}

// TypeName returns the name the schema was defined for.
func (s *Schema) TypeName() string { return s.typeName }

// Table returns the backing table name.
func (s *Schema) Table() string { return s.table }

// Columns returns a copy of the column names in catalog order.
func (s *Schema) Columns() []string { return append([]string(nil), s.columns...) }

// Dialect returns the engine the schema was introspected with.
func (s *Schema) Dialect() Dialect { return s.dialect }

// PrimaryKey returns the generated key column and whether the table has it.
func (s *Schema) PrimaryKey() (string, bool) { return s.primaryKey, s.pk >= 0 }

// Has reports whether name is a column of the table.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// InsertColumns returns the columns Save may write: every column except the
// primary key, in catalog order.
func (s *Schema) InsertColumns() []string {
	out := make([]string, 0, len(s.columns))
	for i, c := range s.columns {
		if i != s.pk {
			out = append(out, c)
		}
	}
	return out
}

func (s *Schema) lookup(name string) (int, error) {
	i, ok := s.index[name]
	if !ok {
		return 0, &UnknownFieldError{Table: s.table, Field: name}
	}
	return i, nil
}

func (s *Schema) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, s.timeout)
}

func (o options) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, o.timeout)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
