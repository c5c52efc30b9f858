/*
Package xrecord is a minimal, schema-driven record mapper over database/sql.
A record type is bound to exactly one table; the table's columns, read once
from the database's schema catalog, become the record's fields. Records are
inserted one row at a time and looked up by a single equality predicate.

# Overview

	db, dialect, err := dbconfig.Open(ctx, cfg)
	reg := xrecord.NewRegistry(db, xrecord.WithDialect(dialect))

	songs, err := reg.Schema(ctx, "Song") // table "songs", columns from the catalog
	rec, err := songs.New(map[string]any{"name": "Thriller", "artist": "MJ"})
	id, err := rec.Save(ctx, db)          // INSERT, then the generated id
	found, err := songs.FindBy(ctx, db, "name", "Thriller")

# Schema introspection

Table names come from the type name, lowercased and pluralized with English
rules ("Song" → "songs", "Person" → "people"); WithTable overrides it.
Columns come from the engine's catalog (pragma_table_info on SQLite,
information_schema on MySQL and PostgreSQL) in catalog order. A Registry
introspects each type at most once and shares the resulting Schema, which is
immutable and safe for concurrent use.

# Records

A Record holds one nullable value per column. Fields are read and written by
name through Get and Set, which only accept columns of the table. Save writes
every set field except the primary key and leaves unset fields out of the
statement entirely, so database defaults apply. Save is insert-only: saving
twice inserts twice.

Model[T] is the typed form: a struct's fields are bound to the table's
columns once and rows are scanned straight into T.

# SQL safety

Every value is a bound parameter and every identifier is quoted with
embedded quotes doubled. Field names passed to FindBy must be columns of the
table. Statements are written with "?" and rewritten for the engine's
placeholder style (see Rebind).

# Error handling

  - ErrSchema (with ErrNoTable for a missing table): introspection failed.
  - ErrUnknownField (*UnknownFieldError): a name is not a column.
  - ErrInvalidValue: a value cannot be sent to the driver.
  - ErrPersistence: Save failed; the record is still unsaved.
  - ErrQuery: FindBy failed; no partial results.

Driver errors stay wrapped underneath, so errors.Is and errors.As reach them.
Nothing is logged at error level or swallowed; debug traces go to the
*slog.Logger passed with WithLogger.
*/
package xrecord
