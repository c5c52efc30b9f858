package xrecord

import (
	"strings"
)

// Dialect captures what differs between engines: placeholder style,
// identifier quoting, the schema catalog query, and how generated keys are
// reported back after an insert.
type Dialect struct {
	Name        string
	Placeholder Placeholder

	quote       byte
	columnsSQL  string // one bound parameter: the table name
	returning   bool   // generated key comes back via RETURNING, not LastInsertId
	emptyInsert string
}

var (
	SQLite = Dialect{
		Name:        "sqlite",
		Placeholder: PlaceholderQuestion,
		quote:       '"',
		columnsSQL:  `SELECT name FROM pragma_table_info(?) ORDER BY cid`,
		emptyInsert: "DEFAULT VALUES",
	}

	MySQL = Dialect{
		Name:        "mysql",
		Placeholder: PlaceholderQuestion,
		quote:       '`',
		columnsSQL: `SELECT column_name FROM information_schema.columns
		 WHERE table_schema = DATABASE() AND table_name = ?
		 ORDER BY ordinal_position`,
		emptyInsert: "() VALUES ()",
	}

	Postgres = Dialect{
		Name:        "postgres",
		Placeholder: PlaceholderDollar,
		quote:       '"',
		columnsSQL: `SELECT column_name FROM information_schema.columns
		 WHERE table_schema = current_schema() AND table_name = ?
		 ORDER BY ordinal_position`,
		returning:   true,
		emptyInsert: "DEFAULT VALUES",
	}
)

// DialectFor picks a Dialect from a database/sql driver name. Unknown names
// fall back to SQLite.
func DialectFor(driverName string) Dialect {
	switch strings.ToLower(driverName) {
	case "mysql", "mariadb":
		return MySQL
	case "pgx", "postgres", "postgresql", "lib/pq", "pg":
		return Postgres
	default:
		return SQLite
	}
}

// Quote returns ident as a quoted identifier, doubling any embedded quote
// character so catalog names can never break out of the identifier.
func (d Dialect) Quote(ident string) string {
	q := d.quote
	if q == 0 {
		q = '"'
	}
	var b strings.Builder
	b.Grow(len(ident) + 2)
	b.WriteByte(q)
	for i := 0; i < len(ident); i++ {
		if ident[i] == q {
			b.WriteByte(q)
		}
		b.WriteByte(ident[i])
	}
	b.WriteByte(q)
	return b.String()
}

func (d Dialect) bind(query string) string { return Rebind(query, d.Placeholder) }
