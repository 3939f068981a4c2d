// Package sqldb opens the SQL backends shared by the config store and the
// response cache: SQLite through modernc.org/sqlite and Postgres through
// lib/pq.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// Config selects a backend. An empty Type means SQLite.
type Config struct {
	Type string `yaml:"type" json:"type"`
	DSN  string `yaml:"dsn" json:"dsn"`
}

// DB is a *sql.DB that knows its placeholder style.
type DB struct {
	*sql.DB
	Dialect string
}

// Open connects to the configured backend and pings it.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	var dialect string
	switch strings.ToLower(cfg.Type) {
	case "", "sqlite", "sqlite3":
		dialect = SQLite
		if cfg.DSN == "" {
			cfg.DSN = "remotedata.db"
		}
	case "postgres", "postgresql":
		dialect = Postgres
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres connection string is required")
		}
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := sql.Open(dialect, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == SQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{DB: db, Dialect: dialect}, nil
}

// Rebind rewrites ? placeholders to $n for Postgres.
func (db *DB) Rebind(query string) string {
	if db.Dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// BlobType is the column type for binary values.
func (db *DB) BlobType() string {
	if db.Dialect == Postgres {
		return "BYTEA"
	}
	return "BLOB"
}
