package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/camden-git/dopplerindex/logging"
	"go.uber.org/zap"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Table names. Children come after their parents.
const (
	TableAcquisition        = "acquisition"
	TablePreviewAsset       = "preview_asset"
	TableIntermediateRender = "intermediate_render"
	TableFinalRender        = "final_render"
)

// Tables lists every table in parent-before-child order.
var Tables = []string{
	TableAcquisition,
	TablePreviewAsset,
	TableIntermediateRender,
	TableFinalRender,
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS acquisition (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL,
	tag TEXT,
	created_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS preview_asset (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	acquisition_id INTEGER NOT NULL REFERENCES acquisition(id),
	path TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_preview_asset_acquisition ON preview_asset(acquisition_id);

CREATE TABLE IF NOT EXISTS intermediate_render (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	acquisition_id INTEGER NOT NULL REFERENCES acquisition(id),
	path TEXT NOT NULL,
	sequence_no INTEGER,
	params_json TEXT,
	raw_output_path TEXT,
	version TEXT,
	updated_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_intermediate_render_acquisition ON intermediate_render(acquisition_id);

CREATE TABLE IF NOT EXISTS final_render (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	intermediate_id INTEGER NOT NULL REFERENCES intermediate_render(id),
	sequence_no INTEGER,
	path TEXT NOT NULL,
	input_params_json TEXT,
	version TEXT,
	report_path TEXT,
	output_path TEXT,
	updated_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_final_render_intermediate ON final_render(intermediate_id);
`

// Options tweak how InitDB treats an existing database file.
type Options struct {
	// Override deletes an existing database file before opening it.
	Override bool
}

// InitDB opens (creating if needed) the SQLite index at dataSourceName with
// foreign keys enforced and write-ahead logging, and ensures the schema.
func InitDB(dataSourceName string, opts Options, log *logging.Logger) (*sql.DB, error) {
	log = log.Tag(logging.TagDatabase)

	if dir := filepath.Dir(dataSourceName); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(dataSourceName); err == nil {
		if opts.Override {
			log.Info("overriding existing database", zap.String("path", dataSourceName))
			if err := removeDatabaseFiles(dataSourceName); err != nil {
				return nil, err
			}
		} else {
			log.Warn("database file already exists, new scans append to it (set db.override_db to replace it)",
				zap.String("path", dataSourceName))
		}
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000", dataSourceName)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// one writer at a time; the loader holds this connection for its whole transaction
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&mode); err != nil {
		log.Warn("failed to read journal mode", zap.Error(err))
	} else if mode != "wal" {
		log.Warn("write-ahead logging not active", zap.String("journal_mode", mode))
	}

	log.Info("database initialized", zap.String("path", dataSourceName))
	return db, nil
}

func removeDatabaseFiles(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove database file %s: %w", p, err)
		}
	}
	return nil
}
