package persistence

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite wraps an embedded database/sql handle backed by modernc.org/sqlite.
type SQLite struct {
	DB *sql.DB
}

// NewSQLite opens the database, enables foreign keys and applies migrations.
func NewSQLite(ctx context.Context, dsn string, logger *zap.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases coherent and avoids
	// SQLITE_BUSY between writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := RunSQLiteMigrations(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("opened sqlite credential store")
	return &SQLite{DB: db}, nil
}

// Close releases the handle.
func (s *SQLite) Close() {
	if s != nil && s.DB != nil {
		_ = s.DB.Close()
	}
}

// Ping verifies the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("sqlite not configured")
	}
	return s.DB.PingContext(ctx)
}
