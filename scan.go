package xrecord

import (
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"reflect"
	"strings"
	"sync"
	"time"
)

// scanner owns the caches behind Query, Get and Model: one field table per
// struct type and one scan plan per (type, column set).
type scanner struct {
	plans  sync.Map // planKey -> *scanPlan
	fields sync.Map // reflect.Type -> *fieldTable
}

var (
	defaultScanner *scanner
	scannerOnce    sync.Once
)

func getScanner() *scanner {
	scannerOnce.Do(func() { defaultScanner = &scanner{} })
	return defaultScanner
}

// scanRow scans the current row of rows into a new T.
func scanRow[T any](sc *scanner, rows *sql.Rows) (T, error) {
	var zero T

	cols, err := rows.Columns()
	if err != nil {
		return zero, err
	}
	if len(cols) == 0 {
		return zero, errors.New("xrecord: query returned zero columns")
	}

	h := fnv.New64a()
	for i := range cols {
		cols[i] = normalizeColumn(cols[i])
		_, _ = h.Write([]byte(cols[i]))
		_, _ = h.Write([]byte{0})
	}

	rt := reflect.TypeFor[T]()
	p, err := sc.plan(rt, cols, h.Sum64())
	if err != nil {
		return zero, err
	}

	ptr := reflect.New(rt)
	dests, finish := p.targets(ptr.Elem())
	if err := rows.Scan(dests...); err != nil {
		return zero, err
	}
	finish()
	return *ptr.Interface().(*T), nil
}

type planKey struct {
	rt    reflect.Type
	hash  uint64 // FNV-1a of normalized columns
	ncols int
}

type stepKind uint8

const (
	stepSkip   stepKind = iota // no destination; value discarded
	stepDirect                 // database/sql scans straight into the target
	stepNull                   // scan into sql.Null[X], then assign or zero
)

type step struct {
	kind stepKind
	path []int // field index path; nil targets T itself
	tmp  reflect.Type
	set  func(dst, v reflect.Value)
}

type scanPlan struct {
	steps []step // one per column
}

func (sc *scanner) plan(rt reflect.Type, cols []string, hash uint64) (*scanPlan, error) {
	key := planKey{rt: rt, hash: hash, ncols: len(cols)}
	if v, ok := sc.plans.Load(key); ok {
		return v.(*scanPlan), nil
	}

	p := &scanPlan{}
	if isRowStruct(rt) {
		ft := sc.fieldTable(rt)
		p.steps = make([]step, len(cols))
		for i, c := range cols {
			if f, ok := ft.byName[c]; ok {
				p.steps[i] = stepFor(f.typ, f.path)
			}
		}
	} else {
		if len(cols) != 1 {
			return nil, fmt.Errorf("xrecord: cannot scan %d columns into %s; use a struct", len(cols), rt)
		}
		p.steps = []step{stepFor(rt, nil)}
	}

	sc.plans.Store(key, p)
	return p, nil
}

func stepFor(t reflect.Type, path []int) step {
	if implementsScanner(t) || t.Kind() == reflect.Pointer {
		return step{kind: stepDirect, path: path}
	}
	if tmp, set, ok := nullFor(t); ok {
		return step{kind: stepNull, path: path, tmp: tmp, set: set}
	}
	return step{kind: stepDirect, path: path}
}

var (
	nullInt64   = reflect.TypeFor[sql.Null[int64]]()
	nullUint64  = reflect.TypeFor[sql.Null[uint64]]()
	nullFloat64 = reflect.TypeFor[sql.Null[float64]]()
	nullString  = reflect.TypeFor[sql.Null[string]]()
	nullBool    = reflect.TypeFor[sql.Null[bool]]()
	timeType    = reflect.TypeFor[time.Time]()
	scannerType = reflect.TypeFor[sql.Scanner]()
)

// nullFor picks a sql.Null[X] staging type for primitive kinds, named types
// included, so NULL lands as the zero value and int64 widens into any int
// width.
func nullFor(t reflect.Type) (reflect.Type, func(dst, v reflect.Value), bool) {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return nullInt64, func(dst, v reflect.Value) { dst.SetInt(v.Int()) }, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return nullUint64, func(dst, v reflect.Value) { dst.SetUint(v.Uint()) }, true
	case reflect.Float32, reflect.Float64:
		return nullFloat64, func(dst, v reflect.Value) { dst.SetFloat(v.Float()) }, true
	case reflect.String:
		return nullString, func(dst, v reflect.Value) { dst.SetString(v.String()) }, true
	case reflect.Bool:
		return nullBool, func(dst, v reflect.Value) { dst.SetBool(v.Bool()) }, true
	}
	return nil, nil, false
}

// targets allocates scan destinations into root for one row. finish must be
// called after a successful rows.Scan to move staged values into place.
func (p *scanPlan) targets(root reflect.Value) ([]any, func()) {
	dests := make([]any, len(p.steps))
	var post []func()
	var sink any // shared by all unmapped columns

	for i, st := range p.steps {
		switch st.kind {
		case stepDirect:
			dests[i] = fieldByPath(root, st.path).Addr().Interface()
		case stepNull:
			tmp := reflect.New(st.tmp)
			dests[i] = tmp.Interface()
			path, set := st.path, st.set
			post = append(post, func() {
				dst := fieldByPath(root, path)
				n := tmp.Elem()
				if n.Field(1).Bool() { // Valid
					set(dst, n.Field(0))
				} else {
					dst.SetZero()
				}
			})
		default:
			dests[i] = &sink
		}
	}

	return dests, func() {
		for _, f := range post {
			f()
		}
	}
}

// ---------------- Struct field tables ----------------

type structField struct {
	name string // lower-case column name
	path []int
	typ  reflect.Type
}

type fieldTable struct {
	byName map[string]*structField
	list   []*structField // declaration order
}

func (sc *scanner) fieldTable(rt reflect.Type) *fieldTable {
	if v, ok := sc.fields.Load(rt); ok {
		return v.(*fieldTable)
	}
	v, _ := sc.fields.LoadOrStore(rt, buildFieldTable(rt))
	return v.(*fieldTable)
}

// buildFieldTable indexes the exported fields of a struct by column name:
// the `db` tag when present, otherwise the field name, both lower-cased.
// Embedded structs without a tag, and fields tagged ",inline", are
// flattened. The first field to claim a name wins.
func buildFieldTable(rt reflect.Type) *fieldTable {
	ft := &fieldTable{byName: make(map[string]*structField)}

	var walk func(t reflect.Type, base []int, forceInline bool)
	walk = func(t reflect.Type, base []int, forceInline bool) {
		t = derefType(t)
		if t.Kind() != reflect.Struct {
			return
		}
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if !sf.IsExported() && !sf.Anonymous {
				continue
			}
			tag := sf.Tag.Get("db")
			name, inline, omit := parseTag(tag)
			if omit {
				continue
			}
			path := append(append([]int(nil), base...), i)

			if inline || (sf.Anonymous && (forceInline || tag == "")) {
				if isRowStruct(derefType(sf.Type)) {
					walk(sf.Type, path, inline)
					continue
				}
			}
			if !sf.IsExported() {
				continue
			}
			if name == "" {
				name = sf.Name
			}
			name = strings.ToLower(name)
			if _, seen := ft.byName[name]; !seen {
				f := &structField{name: name, path: path, typ: sf.Type}
				ft.byName[name] = f
				ft.list = append(ft.list, f)
			}
		}
	}
	walk(rt, nil, false)
	return ft
}

// parseTag supports: "-", "col", ",inline", "col,inline", "inline,col".
func parseTag(tag string) (name string, inline, omit bool) {
	if tag == "-" {
		return "", false, true
	}
	for _, part := range strings.Split(tag, ",") {
		switch {
		case part == "inline":
			inline = true
		case part != "" && name == "":
			name = part
		}
	}
	return name, inline, false
}

// ---------------- Reflection helpers ----------------

func isRowStruct(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t != timeType && !implementsScanner(t)
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func implementsScanner(t reflect.Type) bool {
	return reflect.PointerTo(t).Implements(scannerType)
}

// fieldByPath walks path from root, allocating nil embedded pointers on the
// way so the final field is addressable. The final field itself is left
// as is.
func fieldByPath(root reflect.Value, path []int) reflect.Value {
	v := root
	for _, i := range path {
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v
}

// lookupPath walks path without allocating; ok is false when a nil embedded
// pointer is in the way.
func lookupPath(root reflect.Value, path []int) (reflect.Value, bool) {
	v := root
	for _, i := range path {
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v, true
}

// normalizeColumn strips one layer of identifier quoting and lower-cases.
func normalizeColumn(s string) string {
	if l := len(s); l >= 2 {
		switch {
		case s[0] == '"' && s[l-1] == '"',
			s[0] == '`' && s[l-1] == '`',
			s[0] == '[' && s[l-1] == ']':
			s = s[1 : l-1]
		}
	}
	return strings.ToLower(s)
}
