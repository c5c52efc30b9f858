package xrecord

import (
	"errors"
	"fmt"
)

var (
	// ErrSchema is returned when a table's columns cannot be introspected:
	// the table is missing, the catalog query failed, or the connection is
	// unusable.
	ErrSchema = errors.New("xrecord: schema")

	// ErrNoTable is returned alongside ErrSchema when the catalog reports no
	// columns for the table.
	ErrNoTable = errors.New("xrecord: table does not exist")

	// ErrUnknownField matches every *UnknownFieldError.
	ErrUnknownField = errors.New("xrecord: unknown field")

	// ErrInvalidValue is returned when a field value cannot be represented as
	// a database/sql driver value (maps, structs, channels, ...).
	ErrInvalidValue = errors.New("xrecord: invalid field value")

	// ErrPersistence is returned by Save when the insert or the generated key
	// lookup fails. The record is left unsaved.
	ErrPersistence = errors.New("xrecord: persistence")

	// ErrQuery is returned by FindBy when the lookup fails to execute or scan.
	ErrQuery = errors.New("xrecord: query")
)

// UnknownFieldError reports a field name that is not a column of the table.
type UnknownFieldError struct {
	Table string
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("xrecord: unknown field %q for table %q", e.Field, e.Table)
}

// Is makes errors.Is(err, ErrUnknownField) true.
func (e *UnknownFieldError) Is(target error) bool { return target == ErrUnknownField }
