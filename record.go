package xrecord

import (
	"database/sql/driver"
	"fmt"
)

// Record is one in-memory row of a Schema's table. Each column is a field
// holding a driver value or nothing (absent). A Record is Unsaved until Save
// succeeds; records returned by FindBy are already Saved.
//
// A Record is not safe for concurrent mutation.
type Record struct {
	schema *Schema
	values []any // by column position; nil means absent
	rowID  int64 // generated key when the table has no primary key column
	saved  bool
}

// New constructs an unsaved record from field values. Every key must be a
// column of the table; an unknown key fails with *UnknownFieldError instead
// of being dropped. Fields not in the map stay absent.
func (s *Schema) New(fields map[string]any) (*Record, error) {
	r := &Record{schema: s, values: make([]any, len(s.columns))}
	for name, v := range fields {
		if err := r.Set(name, v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Schema returns the schema the record belongs to.
func (r *Record) Schema() *Schema { return r.schema }

// Get returns the value of field name, or nil when it is absent.
func (r *Record) Get(name string) (any, error) {
	i, err := r.schema.lookup(name)
	if err != nil {
		return nil, err
	}
	return r.values[i], nil
}

// Set assigns field name. Values are normalized to driver values (int to
// int64, float32 to float64, driver.Valuer to its value); nil makes the
// field absent.
func (r *Record) Set(name string, v any) error {
	i, err := r.schema.lookup(name)
	if err != nil {
		return err
	}
	dv, err := normalizeValue(v)
	if err != nil {
		return fmt.Errorf("%w: field %q: %w", ErrInvalidValue, name, err)
	}
	r.values[i] = dv
	return nil
}

// Fields returns the non-absent fields by name.
func (r *Record) Fields() map[string]any {
	out := make(map[string]any, len(r.values))
	for i, v := range r.values {
		if v != nil {
			out[r.schema.columns[i]] = v
		}
	}
	return out
}

// ID returns the generated key. ok is false until the record is saved, or
// when the key column holds something other than an integer. A key assigned
// with Set before saving is not an id: Save never writes it.
func (r *Record) ID() (id int64, ok bool) {
	if !r.saved {
		return 0, false
	}
	if r.schema.pk < 0 {
		return r.rowID, r.rowID != 0
	}
	id, ok = r.values[r.schema.pk].(int64)
	return id, ok
}

// Saved reports whether the record has been inserted or was loaded.
func (r *Record) Saved() bool { return r.saved }

func (r *Record) setID(id int64) {
	if r.schema.pk >= 0 {
		r.values[r.schema.pk] = id
	} else {
		r.rowID = id
	}
	r.saved = true
}

func normalizeValue(v any) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}
