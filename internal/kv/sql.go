package kv

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

type dialect string

const (
	dialectPostgres dialect = "postgres"
	dialectSQLite   dialect = "sqlite"
)

func (d dialect) placeholder(n int) string {
	if d == dialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// SQLStore keeps entries in the kv_entries table of Postgres or SQLite.
type SQLStore struct {
	db        *sql.DB
	dialect   dialect
	namespace string
}

func OpenPostgres(cred *Credentials, namespace string) (*SQLStore, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if e2 := db.Ping(); e2 != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	return newSQLStore(db, dialectPostgres, namespace)
}

// OpenSQLite opens (or creates) a local database file. It is the closest
// match to browser local storage: durable, per machine, shared by processes.
func OpenSQLite(path, namespace string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	return newSQLStore(db, dialectSQLite, namespace)
}

func newSQLStore(db *sql.DB, d dialect, namespace string) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d, namespace: namespace}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) runMigrations() error {
	var (
		driver database.Driver
		err    error
	)
	switch s.dialect {
	case dialectPostgres:
		driver, err = postgres.WithInstance(s.db, &postgres.Config{
			MigrationsTable: "storefront_schema_migrations",
		})
	default:
		driver, err = sqlite.WithInstance(s.db, &sqlite.Config{
			MigrationsTable: "storefront_schema_migrations",
		})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(s.dialect), driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, error) {
	query := fmt.Sprintf(`SELECT entry_value FROM kv_entries WHERE namespace = %s AND entry_key = %s`,
		s.dialect.placeholder(1), s.dialect.placeholder(2))

	var value string
	err := s.db.QueryRowContext(ctx, query, s.namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get entry: %w", err)
	}
	return value, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

func (s *SQLStore) SetMany(ctx context.Context, entries map[string]string) error {
	query := fmt.Sprintf(`INSERT INTO kv_entries (namespace, entry_key, entry_value, updated_at)
	          VALUES (%s, %s, %s, %s)
	          ON CONFLICT (namespace, entry_key) DO UPDATE SET entry_value = excluded.entry_value, updated_at = excluded.updated_at`,
		s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3), s.dialect.placeholder(4))

	return s.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for k, v := range entries {
			if _, err := tx.ExecContext(ctx, query, s.namespace, k, v, now); err != nil {
				return fmt.Errorf("failed to upsert entry %q: %w", k, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) Delete(ctx context.Context, keys ...string) error {
	query := fmt.Sprintf(`DELETE FROM kv_entries WHERE namespace = %s AND entry_key = %s`,
		s.dialect.placeholder(1), s.dialect.placeholder(2))

	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, query, s.namespace, k); err != nil {
				return fmt.Errorf("failed to delete entry %q: %w", k, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
