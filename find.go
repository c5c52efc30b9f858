package xrecord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// FindBy returns every row whose field equals value, as saved records with
// all columns populated, in the order the engine returns them. A nil value
// matches NULL.
//
// field must be a column of the table (*UnknownFieldError otherwise, before
// any SQL runs). Execution and scan failures match ErrQuery and return no
// partial results.
func (s *Schema) FindBy(ctx context.Context, q Querier, field string, value any) (out []*Record, err error) {
	query, args, err := s.findSQL(field, value)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: find %s by %s: %w", ErrQuery, s.table, field, err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			out, err = nil, fmt.Errorf("%w: find %s by %s: %w", ErrQuery, s.table, field, cerr)
		}
	}()

	for rows.Next() {
		r := &Record{schema: s, values: make([]any, len(s.columns)), saved: true}
		dest := make([]any, len(s.columns))
		for i := range dest {
			dest[i] = &r.values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %w", ErrQuery, s.table, err)
		}
		for i, v := range r.values {
			if b, ok := v.([]byte); ok {
				r.values[i] = string(b)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: find %s by %s: %w", ErrQuery, s.table, field, err)
	}

	s.logger.DebugContext(ctx, "xrecord: find",
		slog.String("table", s.table),
		slog.String("field", field),
		slog.Int("rows", len(out)))
	return out, nil
}

// findSQL builds the lookup statement. The select list is the full column
// list in catalog order, never "*", so results line up with the schema.
func (s *Schema) findSQL(field string, value any) (string, []any, error) {
	if _, err := s.lookup(field); err != nil {
		return "", nil, err
	}
	v, err := normalizeValue(value)
	if err != nil {
		return "", nil, fmt.Errorf("%w: find %s by %s: %w", ErrInvalidValue, s.table, field, err)
	}

	d := s.dialect
	cols := make([]string, len(s.columns))
	for i, c := range s.columns {
		cols[i] = d.Quote(c)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(d.Quote(s.table))
	b.WriteString(" WHERE ")
	b.WriteString(d.Quote(field))
	if v == nil {
		b.WriteString(" IS NULL")
		return d.bind(b.String()), nil, nil
	}
	b.WriteString(" = ?")
	return d.bind(b.String()), []any{v}, nil
}
