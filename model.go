package xrecord

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
)

// Model binds a Go struct type to its table. The struct declares the field
// set statically; NewModel checks it against the catalog once, and from then
// on inserts and lookups move values between T and rows through cached field
// paths, with no per-call name resolution.
//
// Fields bind by `db:"name"` tag, otherwise by case-insensitive field name.
// `db:"-"` skips a field and `db:",inline"` flattens a nested struct. Use
// pointer or sql.Null* fields for columns that may be absent: a nil pointer
// or a Valuer returning nil is left out of the INSERT, while any other field
// is written even when it holds its zero value.
//
// A Model is safe for concurrent use.
type Model[T any] struct {
	schema *Schema
	fields []boundField
	pk     *structField // struct field holding the primary key, if any
}

type boundField struct {
	col int // position in schema columns
	f   *structField
}

// NewModel defines (or reuses) the schema for T's type name through reg and
// binds T's fields to it.
//
//	type Song struct {
//	    ID     int64   `db:"id"`
//	    Name   string  `db:"name"`
//	    Artist *string `db:"artist"`
//	}
//	songs, err := xrecord.NewModel[Song](ctx, reg) // table "songs"
func NewModel[T any](ctx context.Context, reg *Registry, opts ...Option) (*Model[T], error) {
	rt := reflect.TypeFor[T]()
	if !isRowStruct(rt) {
		return nil, fmt.Errorf("xrecord: model type %s is not a struct", rt)
	}
	s, err := reg.Schema(ctx, rt.Name(), opts...)
	if err != nil {
		return nil, err
	}
	return Bind[T](s)
}

// Bind binds T's fields to an already defined schema. Every bound field must
// name a column of the table, otherwise Bind fails with *UnknownFieldError.
func Bind[T any](s *Schema) (*Model[T], error) {
	rt := reflect.TypeFor[T]()
	if !isRowStruct(rt) {
		return nil, fmt.Errorf("xrecord: model type %s is not a struct", rt)
	}

	cols := make(map[string]int, len(s.columns))
	for i, c := range s.columns {
		lc := strings.ToLower(c)
		if _, dup := cols[lc]; !dup {
			cols[lc] = i
		}
	}

	m := &Model[T]{schema: s}
	for _, f := range getScanner().fieldTable(rt).list {
		i, ok := cols[f.name]
		if !ok {
			return nil, &UnknownFieldError{Table: s.table, Field: f.name}
		}
		m.fields = append(m.fields, boundField{col: i, f: f})
		if i == s.pk {
			m.pk = f
		}
	}
	return m, nil
}

// Schema returns the schema the model is bound to.
func (m *Model[T]) Schema() *Schema { return m.schema }

// Record copies v into a new unsaved Record.
func (m *Model[T]) Record(v *T) (*Record, error) {
	rv := reflect.ValueOf(v).Elem()
	r := &Record{schema: m.schema, values: make([]any, len(m.schema.columns))}
	for _, b := range m.fields {
		fv, ok := lookupPath(rv, b.f.path)
		if !ok {
			continue
		}
		dv, err := normalizeValue(fv.Interface())
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", ErrInvalidValue, b.f.name, err)
		}
		if b.col == m.schema.pk && dv == int64(0) {
			continue
		}
		r.values[b.col] = dv
	}
	return r, nil
}

// Insert saves v as a new row and writes the generated key back into v's
// primary key field. Errors are those of Record.Save; v is not modified on
// failure.
func (m *Model[T]) Insert(ctx context.Context, db DB, v *T) (int64, error) {
	r, err := m.Record(v)
	if err != nil {
		return 0, err
	}
	id, err := r.Save(ctx, db)
	if err != nil {
		return 0, err
	}
	if m.pk != nil {
		dst := fieldByPath(reflect.ValueOf(v).Elem(), m.pk.path)
		if err := assignID(dst, id); err != nil {
			return id, fmt.Errorf("%w: assign id to %s: %w", ErrPersistence, m.pk.name, err)
		}
	}
	return id, nil
}

// FindBy returns every row whose column field equals value, scanned into T.
// It runs the same statement as Schema.FindBy.
func (m *Model[T]) FindBy(ctx context.Context, q Querier, field string, value any) ([]T, error) {
	s := m.schema
	query, args, err := s.findSQL(field, value)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, err := Query[T](ctx, q, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: find %s by %s: %w", ErrQuery, s.table, field, err)
	}
	return out, nil
}

func assignID(dst reflect.Value, id int64) error {
	if dst.Kind() == reflect.Pointer {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		dst = dst.Elem()
	}
	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		dst.SetInt(id)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		dst.SetUint(uint64(id))
		return nil
	}
	if sc, ok := dst.Addr().Interface().(sql.Scanner); ok {
		return sc.Scan(id)
	}
	return fmt.Errorf("xrecord: cannot store id in %s", dst.Type())
}
