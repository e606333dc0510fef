package rainbow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"gopkg.in/yaml.v3"
)

// Config describes how to reach a database and how containers use it.
type Config struct {
	// Driver is the database/sql driver name, such as mysql, postgres or
	// sqlite3. The driver must be registered by the program.
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`

	// Dialect names a registered template to use instead of the driver's.
	Dialect string `yaml:"dialect"`

	CommandTimeout  time.Duration `yaml:"command_timeout"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// Environment variables overriding the file.
const (
	EnvDriver = "RAINBOW_DRIVER"
	EnvDSN    = "RAINBOW_DSN"
)

// LoadConfig reads a YAML configuration file. See ParseConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML, applies the environment overrides and
// validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvDriver); v != "" {
		c.Driver = v
	}
	if v := os.Getenv(EnvDSN); v != "" {
		c.DSN = v
	}
}

// Validate checks the configuration without connecting. MySQL DSNs and
// postgres:// URLs are parsed by their drivers.
func (c *Config) Validate() error {
	var errs []error
	if c.Driver == "" {
		errs = append(errs, errors.New("driver is required"))
	}
	if c.DSN == "" {
		errs = append(errs, errors.New("dsn is required"))
	}
	if c.Dialect != "" {
		if _, ok := templates.Load(c.Dialect); !ok {
			errs = append(errs, fmt.Errorf("unknown dialect %q", c.Dialect))
		}
	}
	if c.CommandTimeout < 0 {
		errs = append(errs, errors.New("command_timeout must not be negative"))
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		errs = append(errs, errors.New("connection limits must not be negative"))
	}

	if c.DSN != "" {
		switch c.Driver {
		case "mysql":
			if _, err := mysql.ParseDSN(c.DSN); err != nil {
				errs = append(errs, fmt.Errorf("mysql dsn: %w", err))
			}
		case "postgres", "pgx":
			if strings.HasPrefix(c.DSN, "postgres://") || strings.HasPrefix(c.DSN, "postgresql://") {
				if _, err := pq.ParseURL(c.DSN); err != nil {
					errs = append(errs, fmt.Errorf("postgres dsn: %w", err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// Connect opens a pool for cfg and a container of type D on it. The
// container owns the pool: closing it closes both.
func Connect[D any](ctx context.Context, cfg *Config) (*D, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d, err := Open[D](ctx, pool, cfg.CommandTimeout)
	if err != nil {
		pool.Close()
		return nil, err
	}
	db := any(d).(Session).database()
	if cfg.Dialect != "" {
		db.SetTemplate(TemplateFor(cfg.Dialect))
	}
	db.pool = pool
	return d, nil
}
