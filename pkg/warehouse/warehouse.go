// Package warehouse opens the SQLite data warehouse read by input builders.
// A Conn is opened once per process and shared; it is safe for concurrent use.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DefaultMaxOpenConns        = 4
	DefaultMaxIdleConns        = 2
	DefaultConnMaxLifetime     = 30 * time.Minute
	DefaultPingAttempts        = 3
	DefaultPingInitialInterval = 200 * time.Millisecond
	DefaultPingMaxInterval     = 2 * time.Second
)

var (
	ErrPathRequired  = errors.New("warehouse: database path is required")
	ErrInvalidWindow = errors.New("warehouse: invalid year window")
)

// Config describes the warehouse location and pool sizing. Zero values select
// the defaults.
type Config struct {
	Path                string
	ReadOnly            bool
	MaxOpenConns        int
	MaxIdleConns        int
	ConnMaxLifetime     time.Duration
	PingAttempts        int
	PingInitialInterval time.Duration
	PingMaxInterval     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = DefaultMaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = DefaultMaxIdleConns
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = DefaultConnMaxLifetime
	}
	if c.PingAttempts <= 0 {
		c.PingAttempts = DefaultPingAttempts
	}
	if c.PingInitialInterval <= 0 {
		c.PingInitialInterval = DefaultPingInitialInterval
	}
	if c.PingMaxInterval <= 0 {
		c.PingMaxInterval = DefaultPingMaxInterval
	}
	return c
}

// DSN returns the driver connection string.
func (c Config) DSN() string {
	if c.Path == ":memory:" {
		return c.Path
	}
	query := url.Values{}
	query.Set("_busy_timeout", "5000")
	if c.ReadOnly {
		query.Set("mode", "ro")
	}
	return "file:" + c.Path + "?" + query.Encode()
}

// Conn is an open warehouse connection pool scoped to a span of years.
type Conn struct {
	db        *sql.DB
	startYear int
	endYear   int
}

// Open connects to the warehouse and verifies it answers a ping, retrying with
// exponential backoff. startYear and endYear bound the data callers query.
func Open(ctx context.Context, cfg Config, startYear, endYear int) (*Conn, error) {
	if cfg.Path == "" {
		return nil, ErrPathRequired
	}
	if startYear <= 0 || endYear < startYear {
		return nil, fmt.Errorf("%w: %d-%d", ErrInvalidWindow, startYear, endYear)
	}
	cfg = cfg.withDefaults()
	if cfg.ReadOnly && cfg.Path != ":memory:" {
		if _, err := os.Stat(cfg.Path); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("warehouse: %s: %w", cfg.Path, err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("warehouse: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := ping(ctx, db, cfg); err != nil {
		db.Close()
		return nil, err
	}
	return &Conn{db: db, startYear: startYear, endYear: endYear}, nil
}

func ping(ctx context.Context, db *sql.DB, cfg Config) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.PingInitialInterval
	b.MaxInterval = cfg.PingMaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(cfg.PingAttempts-1)), ctx)

	err := backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, policy)
	if err != nil {
		return fmt.Errorf("warehouse: ping %s: %w", cfg.Path, err)
	}
	return nil
}

// DB exposes the underlying pool.
func (c *Conn) DB() *sql.DB {
	return c.db
}

// Years returns the year window the connection was opened for.
func (c *Conn) Years() (start, end int) {
	return c.startYear, c.endYear
}

// Covers reports whether year lies inside the connection window.
func (c *Conn) Covers(year int) bool {
	return year >= c.startYear && year <= c.endYear
}

// DateRange returns the first and last day of the year window in UTC.
func (c *Conn) DateRange() (start, end time.Time) {
	start = time.Date(c.startYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end = time.Date(c.endYear, time.December, 31, 0, 0, 0, 0, time.UTC)
	return start, end
}

// Tables lists the warehouse tables and views by name.
func (c *Conn) Tables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("warehouse: list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("warehouse: scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close releases the pool.
func (c *Conn) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
