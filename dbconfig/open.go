package dbconfig

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/go-mizu/xrecord"
)

// Dialect returns the xrecord dialect for the configured driver.
func (c *Config) Dialect() xrecord.Dialect { return xrecord.DialectFor(c.Driver) }

// Options returns the xrecord options implied by the config.
func (c *Config) Options() []xrecord.Option {
	return []xrecord.Option{
		xrecord.WithDialect(c.Dialect()),
		xrecord.WithTimeout(c.Timeout),
	}
}

// DataSource returns the database/sql driver name and DSN for the config.
func (c *Config) DataSource() (driverName, dsn string, err error) {
	switch c.Driver {
	case "sqlite", "sqlite3", "":
		if c.DSN != "" {
			return "sqlite", c.DSN, nil
		}
		return "sqlite", sqliteDSN(c.Path), nil
	case "mysql", "mariadb":
		if c.DSN != "" {
			return "mysql", c.DSN, nil
		}
		return "mysql", mysqlDSN(c), nil
	case "postgres", "postgresql", "pg":
		if c.DSN != "" {
			return "postgres", c.DSN, nil
		}
		return "postgres", postgresDSN(c), nil
	default:
		return "", "", fmt.Errorf("unsupported driver: %s", c.Driver)
	}
}

// Open opens and pings the configured database. The caller owns the
// returned handle and closes it.
//
// SQLite is limited to a single connection that is never recycled: the
// engine has one writer, and a private in-memory database lives only as
// long as its connection.
func Open(ctx context.Context, c *Config) (*sql.DB, xrecord.Dialect, error) {
	name, dsn, err := c.DataSource()
	if err != nil {
		return nil, xrecord.Dialect{}, err
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, xrecord.Dialect{}, fmt.Errorf("open %s: %w", name, err)
	}

	if name == "sqlite" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(c.Pool.MaxOpenConns)
		db.SetMaxIdleConns(c.Pool.MaxIdleConns)
		db.SetConnMaxLifetime(c.Pool.ConnMaxLifetime)
	}

	pingCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, xrecord.Dialect{}, fmt.Errorf("ping %s: %w", name, err)
	}
	return db, c.Dialect(), nil
}

// sqliteDSN names in-memory databases with a fresh UUID so two Opens in one
// process never share one by accident.
func sqliteDSN(path string) string {
	if path == "" {
		return "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)"
}

func mysqlDSN(c *Config) string {
	port := c.Port
	if port == 0 {
		port = 3306
	}
	mc := mysql.NewConfig()
	mc.User = c.Username
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(port))
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	if c.SSLMode == "require" {
		mc.TLSConfig = "true"
	}
	return mc.FormatDSN()
}

func postgresDSN(c *Config) string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	return u.String()
}
