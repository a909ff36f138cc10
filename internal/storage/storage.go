package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Dialect selects SQL syntax differences between the supported backends.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// DialectFor picks the backend from a DSN: postgres:// and postgresql:// URLs
// go to Postgres, anything else is a SQLite file path.
func DialectFor(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// DB wraps a sql.DB for the snapshot store.
type DB struct {
	conn    *sql.DB
	dialect Dialect
}

// Open opens (or creates) the store behind dsn and applies pending migrations.
func Open(dsn string) (*DB, error) {
	dialect := DialectFor(dsn)

	var conn *sql.DB
	var err error
	switch dialect {
	case Postgres:
		conn, err = sql.Open("postgres", dsn)
	default:
		conn, err = sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dsn))
	}
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dialect == SQLite {
		// One connection keeps ":memory:" databases alive and serializes writers.
		conn.SetMaxOpenConns(1)
	}

	if err := migrateUp(conn, dialect); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn, dialect: dialect}, nil
}

func migrateUp(conn *sql.DB, dialect Dialect) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	var driver database.Driver
	switch dialect {
	case Postgres:
		// The migrator pins one connection; closing it hands it back to the pool.
		ctx := context.Background()
		c, err := conn.Conn(ctx)
		if err != nil {
			return fmt.Errorf("migration conn: %w", err)
		}
		defer c.Close()
		driver, err = postgres.WithConnection(ctx, c, &postgres.Config{})
		if err != nil {
			return fmt.Errorf("migration driver: %w", err)
		}
	default:
		driver, err = sqlite.WithInstance(conn, &sqlite.Config{})
		if err != nil {
			return fmt.Errorf("migration driver: %w", err)
		}
	}

	m, err := migrate.NewWithInstance("iofs", src, dialect.String(), driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	// m.Close would close conn, which the DB keeps using.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Dialect reports the backend in use.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// rebind rewrites ? placeholders to $1, $2, ... for Postgres.
func (db *DB) rebind(query string) string {
	if db.dialect != Postgres {
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
