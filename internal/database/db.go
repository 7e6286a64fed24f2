// Package database provides database setup, models, and the data access layer (Store)
// for participants and support sessions.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/supportbot/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// Routing writes a participant and a session back to back; a short wait beats SQLITE_BUSY
// when maintenance holds the file.
const connectionPragmas = "_pragma=busy_timeout(5000)&_txlock=immediate"

// NewDB opens the participant/session database at path and brings its schema up to date.
func NewDB(path string) (*sqlx.DB, error) {
	log := slog.Default().With("component", "database")

	db, err := sqlx.Connect("sqlite", DataSourceName(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open support database: %w", err)
	}

	// One writer: the routing engine already serializes, and sqlite cannot do better.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	version, err := migrateSchema(db.DB, FilePath(path), log)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Failed to close support database after schema error", "error", closeErr)
		}
		return nil, err
	}

	log.Info("Support database ready", "path", path, "schema_version", version)
	return db, nil
}

// CloseDB closes the pool, logging instead of returning the error since it runs on shutdown.
func CloseDB(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		slog.Error("Failed to close support database", "error", err)
		return
	}
	slog.Debug("Support database closed")
}

// SchemaVersion reports the applied migration version and whether the last one failed halfway.
func SchemaVersion(db *sqlx.DB, path string) (uint, bool, error) {
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{DatabaseName: FilePath(path)})
	if err != nil {
		return 0, false, fmt.Errorf("failed to inspect schema: %w", err)
	}
	version, dirty, err := driver.Version()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	if version < 0 {
		return 0, dirty, nil
	}
	return uint(version), dirty, nil
}

func migrateSchema(db *sql.DB, name string, log *slog.Logger) (uint, error) {
	if name == "" {
		return 0, errors.New("schema migration needs a database file name")
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return 0, fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	target, err := sqlite.WithInstance(db, &sqlite.Config{DatabaseName: name})
	if err != nil {
		return 0, fmt.Errorf("failed to prepare schema migration: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite", target)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare schema migration: %w", err)
	}

	switch err := migrator.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		log.Debug("Participant and session schema already current")
	case err != nil:
		return 0, fmt.Errorf("failed to migrate participant and session schema: %w", err)
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty; fix it by hand before starting", version)
	}
	return version, nil
}

// DataSourceName appends the connection pragmas to path unless it already sets a busy timeout.
func DataSourceName(path string) string {
	if strings.Contains(path, "busy_timeout") {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&" + connectionPragmas
	}
	return path + "?" + connectionPragmas
}

// FilePath returns the file behind a sqlite DSN such as "file:my%20db.sqlite?cache=shared".
func FilePath(dsn string) string {
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if decoded, err := url.PathUnescape(path); err == nil {
		return decoded
	}
	return path
}
