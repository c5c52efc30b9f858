// Package dbconfig loads connection settings and opens the database/sql
// handle that xrecord schemas and records run against. It registers the
// SQLite (modernc.org/sqlite), MySQL and PostgreSQL (lib/pq) drivers.
package dbconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config describes one database connection.
type Config struct {
	// Driver is sqlite, mysql or postgres.
	Driver string `mapstructure:"driver"`
	// DSN, when set, is passed to the driver verbatim and the fields below
	// are ignored.
	DSN string `mapstructure:"dsn"`

	// Path is the SQLite database file. Empty means a private in-memory
	// database.
	Path string `mapstructure:"path"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`

	Pool struct {
		MaxOpenConns    int           `mapstructure:"max_open_conns"`
		MaxIdleConns    int           `mapstructure:"max_idle_conns"`
		ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	} `mapstructure:"pool"`

	// Timeout bounds the initial ping and, through xrecord.WithTimeout,
	// each statement.
	Timeout time.Duration `mapstructure:"timeout"`
}

// EnvPrefix is the prefix of environment overrides: XRECORD_DRIVER,
// XRECORD_PASSWORD, XRECORD_POOL_MAX_OPEN_CONNS, ...
const EnvPrefix = "XRECORD"

// Load reads a YAML config file. Environment variables override file
// values, which keeps passwords out of the file.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return decode(v)
}

// FromEnv builds a Config from defaults and XRECORD_* variables alone.
func FromEnv() (*Config, error) {
	return decode(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv can override it on Unmarshal.
	v.SetDefault("driver", "sqlite")
	v.SetDefault("dsn", "")
	v.SetDefault("path", "")
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 0)
	v.SetDefault("database", "")
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("ssl_mode", "disable")
	v.SetDefault("pool.max_open_conns", 5)
	v.SetDefault("pool.max_idle_conns", 2)
	v.SetDefault("pool.conn_max_lifetime", 10*time.Minute)
	v.SetDefault("timeout", 30*time.Second)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	return &cfg, nil
}
