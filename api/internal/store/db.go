package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "modernc.org/sqlite"             // pure-Go sqlite driver
)

type Dialect string

const (
	Postgres Dialect = "pgx"
	SQLite   Dialect = "sqlite"
)

// DialectFor picks the driver from the DSN: postgres:// and postgresql://
// URLs go to pgx, everything else (sqlite:, file:, :memory:, a path) to sqlite.
func DialectFor(dsn string) (Dialect, string) {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return Postgres, dsn
	case strings.HasPrefix(lower, "sqlite://"):
		return SQLite, dsn[len("sqlite://"):]
	case strings.HasPrefix(lower, "sqlite:"):
		return SQLite, dsn[len("sqlite:"):]
	}
	return SQLite, dsn
}

// Open connects and pings the database named by dsn.
func Open(ctx context.Context, dsn string) (*sql.DB, Dialect, error) {
	dialect, src := DialectFor(strings.TrimSpace(dsn))
	if src == "" {
		return nil, "", fmt.Errorf("store: empty DSN")
	}
	db, err := sql.Open(string(dialect), src)
	if err != nil {
		return nil, "", fmt.Errorf("sql.Open: %w", err)
	}
	if dialect == SQLite {
		// one writer; also keeps a :memory: database alive across calls
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("db ping: %w", err)
	}
	return db, dialect, nil
}
