package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"

	// import the SQLite driver to register it with the database/sql package.
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var pragmas = []struct {
	name  string
	value string
}{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// NewSQLite opens the database at path, tunes it and applies pending migrations.
func NewSQLite(logger *slog.Logger, path string) (*sql.DB, error) {
	log := logger.With("component", "sqlite")

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("can't open database: %w", err)
	}

	// sqlite allows a single writer
	conn.SetMaxOpenConns(1)

	if err = conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("can't connect to database: %w", err)
	}

	for _, pragma := range pragmas {
		if _, err = conn.Exec(fmt.Sprintf("PRAGMA %s = %s", pragma.name, pragma.value)); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set PRAGMA %s: %w", pragma.name, err)
		}
	}

	if err = migrate(log, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	log.Info("database is ready", "path", path)

	return conn, nil
}

func migrate(log *slog.Logger, conn *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(&gooseLogger{logger: log})

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(conn, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// gooseLogger routes goose output through slog.
type gooseLogger struct {
	logger *slog.Logger
}

func (that *gooseLogger) Printf(format string, v ...any) {
	that.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (that *gooseLogger) Fatalf(format string, v ...any) {
	that.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
