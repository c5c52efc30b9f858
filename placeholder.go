package xrecord

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Placeholder selects the positional parameter style for a target database.
//
// Common choices:
//   - PlaceholderQuestion   → "?"           (MySQL, SQLite)
//   - PlaceholderDollar     → "$1, $2, …"  (PostgreSQL)
//   - PlaceholderAtP        → "@p1, @p2…"  (SQL Server)
//   - PlaceholderColonNum   → ":1, :2, …"  (Oracle)
type Placeholder int

const (
	PlaceholderQuestion Placeholder = iota
	PlaceholderDollar
	PlaceholderAtP
	PlaceholderColonNum
)

// PlaceholderFor picks a Placeholder based on a driver name string.
//
//	ph := xrecord.PlaceholderFor("postgres")  // => PlaceholderDollar
//	ph := xrecord.PlaceholderFor("sqlserver") // => PlaceholderAtP
//	ph := xrecord.PlaceholderFor("sqlite")    // => PlaceholderQuestion
func PlaceholderFor(driverName string) Placeholder {
	switch strings.ToLower(driverName) {
	case "pgx", "postgres", "postgresql", "lib/pq", "pg":
		return PlaceholderDollar
	case "sqlserver", "mssql":
		return PlaceholderAtP
	case "godror", "oracle", "goracle":
		return PlaceholderColonNum
	default:
		return PlaceholderQuestion
	}
}

// Rebind rewrites every "?" outside string literals, quoted identifiers,
// comments and PostgreSQL dollar-quoted bodies into the style of ph.
// Every statement this package generates is written with "?" and passed
// through Rebind before it reaches the driver.
func Rebind(query string, ph Placeholder) string {
	if ph == PlaceholderQuestion {
		return query
	}
	out := make([]byte, 0, len(query)+16)
	arg := 1
	for i := 0; i < len(query); {
		if j := skipOpaque(query, i); j > i {
			out = append(out, query[i:j]...)
			i = j
			continue
		}
		if query[i] != '?' {
			out = append(out, query[i])
			i++
			continue
		}
		switch ph {
		case PlaceholderDollar:
			out = append(out, '$')
		case PlaceholderAtP:
			out = append(out, '@', 'p')
		case PlaceholderColonNum:
			out = append(out, ':')
		}
		out = strconv.AppendInt(out, int64(arg), 10)
		arg++
		i++
	}
	return string(out)
}

// skipOpaque returns the end of the literal, identifier or comment starting
// at i, or i when none starts there. Unterminated regions run to the end of
// the input so they are copied through untouched.
func skipOpaque(s string, i int) int {
	switch s[i] {
	case '\'', '"', '`':
		return skipQuoted(s, i+1, s[i])
	case '-':
		if strings.HasPrefix(s[i:], "--") {
			if n := strings.IndexByte(s[i:], '\n'); n >= 0 {
				return i + n + 1
			}
			return len(s)
		}
	case '/':
		if strings.HasPrefix(s[i:], "/*") {
			if n := strings.Index(s[i+2:], "*/"); n >= 0 {
				return i + 2 + n + 2
			}
			return len(s)
		}
	case '$':
		return skipDollarQuoted(s, i)
	}
	return i
}

// skipQuoted scans past a region closed by q; a doubled q is an escape.
func skipQuoted(s string, i int, q byte) int {
	for i < len(s) {
		c := s[i]
		i++
		if c == q {
			if i < len(s) && s[i] == q {
				i++
				continue
			}
			return i
		}
	}
	return len(s)
}

// skipDollarQuoted handles $$...$$ and $tag$...$tag$ (PostgreSQL). A "$"
// that does not open a tag, such as "$1", is not opaque.
func skipDollarQuoted(s string, i int) int {
	j := i + 1
	for j < len(s) {
		r, w := utf8.DecodeRuneInString(s[j:])
		if r == '$' {
			break
		}
		if r != '_' && !unicode.IsLetter(r) && (j == i+1 || !unicode.IsDigit(r)) {
			return i
		}
		j += w
	}
	if j >= len(s) {
		return i
	}
	tag := s[i : j+1]
	if n := strings.Index(s[j+1:], tag); n >= 0 {
		return j + 1 + n + len(tag)
	}
	return len(s)
}
