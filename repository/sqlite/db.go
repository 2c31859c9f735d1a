// Package sqlite implements repository.AnalysisRepository on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nijaru/yt-sentiment/config"
	"github.com/nijaru/yt-sentiment/errors"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
    id TEXT PRIMARY KEY,
    url TEXT UNIQUE NOT NULL,
    video_id TEXT NOT NULL,
    slug TEXT NOT NULL,
    title TEXT,
    transcript_hash TEXT,
    transcript_method TEXT,
    general_only INTEGER NOT NULL DEFAULT 0,
    payload TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS preview_analyses (
    id TEXT PRIMARY KEY,
    url TEXT UNIQUE NOT NULL,
    video_id TEXT NOT NULL,
    slug TEXT NOT NULL,
    title TEXT,
    transcript_hash TEXT,
    transcript_method TEXT,
    general_only INTEGER NOT NULL DEFAULT 0,
    payload TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_analyses_video_id ON analyses(video_id);
CREATE INDEX IF NOT EXISTS idx_analyses_updated_at ON analyses(updated_at);
CREATE INDEX IF NOT EXISTS idx_preview_analyses_video_id ON preview_analyses(video_id);
`

type DBConfig struct {
	MaxRetries         int
	RetryDelay         time.Duration
	QueryTimeout       time.Duration
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

func DefaultDBConfig() DBConfig {
	return DBConfig{
		MaxRetries:         3,
		RetryDelay:         time.Second,
		QueryTimeout:       30 * time.Second,
		MaxConnections:     10,
		MaxIdleConnections: 5,
		ConnMaxLifetime:    time.Hour,
	}
}

// DBConfigFrom overlays the database section of the configuration on the defaults.
func DBConfigFrom(cfg config.DatabaseConfig) DBConfig {
	c := DefaultDBConfig()
	if cfg.MaxConnections > 0 {
		c.MaxConnections = cfg.MaxConnections
	}
	if cfg.MaxIdleConnections > 0 {
		c.MaxIdleConnections = cfg.MaxIdleConnections
	}
	if cfg.ConnMaxLifetime > 0 {
		c.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	return c
}

// DB is an open database with its prepared statements.
type DB struct {
	*sql.DB
	config     DBConfig
	statements *PreparedStatements
}

// Open initializes the database at path and prepares every statement.
func Open(ctx context.Context, path string, cfg DBConfig) (*DB, error) {
	const op = "sqlite.Open"

	sqlDB, err := InitDB(path)
	if err != nil {
		return nil, err
	}
	configureDB(sqlDB, cfg)

	stmts := &PreparedStatements{}
	if err := stmts.Prepare(ctx, sqlDB); err != nil {
		stmts.Close()
		sqlDB.Close()
		return nil, errors.E(errors.KindPersistenceError, op, err, "failed to prepare statements")
	}

	return &DB{DB: sqlDB, config: cfg, statements: stmts}, nil
}

func (db *DB) Close() error {
	stmtErr := db.statements.Close()
	if err := db.DB.Close(); err != nil {
		return err
	}
	return stmtErr
}

func configureDB(db *sql.DB, config DBConfig) {
	db.SetMaxOpenConns(config.MaxConnections)
	db.SetMaxIdleConns(config.MaxIdleConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
}

func InitDB(dbPath string) (*sql.DB, error) {
	const op = "sqlite.InitDB"

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.E(errors.KindPersistenceError, op, err, "failed to create database directory")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.E(errors.KindPersistenceError, op, err, "failed to open database")
	}

	if err := configurePragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := execSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func configurePragmas(db *sql.DB) error {
	const op = "sqlite.configurePragmas"

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA cache_size = -2000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.E(errors.KindPersistenceError, op, err, fmt.Sprintf("failed to set pragma: %s", pragma))
		}
	}

	return nil
}

func execSchema(db *sql.DB) error {
	const op = "sqlite.execSchema"

	tx, err := db.Begin()
	if err != nil {
		return errors.E(errors.KindPersistenceError, op, err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return errors.E(errors.KindPersistenceError, op, err,
				fmt.Sprintf("failed to execute schema statement: %s", stmt))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.E(errors.KindPersistenceError, op, err, "failed to commit schema transaction")
	}

	return nil
}

// withLockRetry repeats fn while SQLite reports the database as locked.
func withLockRetry(ctx context.Context, config DBConfig, fn func() error) error {
	var lastErr error
	for i := 0; i < config.MaxRetries; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil || !isLockError(lastErr) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(config.RetryDelay * time.Duration(i+1)):
		}
	}
	return lastErr
}

func isLockError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
