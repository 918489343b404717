package status

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-ingest/internal/logger"
	"github.com/rxtech-lab/argo-ingest/internal/types"
	"github.com/rxtech-lab/argo-ingest/pkg/errors"
)

const statusTable = "unit_status"

// DuckDBStore records statuses in a single keyed table of an embedded DuckDB file.
// The unit key is the primary key, so a unit can never hold two statuses.
type DuckDBStore struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

var _ Store = (*DuckDBStore)(nil)

// NewDuckDBStore opens (or creates) the status database at path.
// Use ":memory:" for a throwaway store.
func NewDuckDBStore(path string, log *logger.Logger) (*DuckDBStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStatusWriteFailed, "failed to create status database directory", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		log.Error("Failed to open status database", zap.String("path", path), zap.Error(err))

		return nil, errors.Wrap(errors.ErrCodeStatusReadFailed, "failed to open status database", err)
	}

	if err := db.Ping(); err != nil {
		log.Error("Failed to connect to status database", zap.String("path", path), zap.Error(err))
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeStatusReadFailed, "failed to connect to status database", err)
	}

	store := &DuckDBStore{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := store.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return store, nil
}

func (s *DuckDBStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS ` + statusTable + ` (
			unit_key TEXT PRIMARY KEY,
			ticker TEXT NOT NULL,
			granularity TEXT NOT NULL,
			bucket TEXT NOT NULL,
			what_to_show TEXT NOT NULL,
			status TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStatusWriteFailed, "failed to create status table", err)
	}

	return nil
}

func (s *DuckDBStore) StatusOf(ctx context.Context, unit types.DownloadUnit) (types.Status, error) {
	var status string

	err := s.sq.
		Select("status").
		From(statusTable).
		Where(squirrel.Eq{"unit_key": unit.Key()}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return types.StatusUnset, nil
	}

	if err != nil {
		return types.StatusUnset, errors.Wrapf(errors.ErrCodeStatusReadFailed, err, "failed to read status for %s", unit)
	}

	st := types.Status(status)
	if !st.IsValid() {
		return types.StatusUnset, errors.Newf(errors.ErrCodeStatusInvariant, "unknown status %q stored for %s", status, unit)
	}

	return st, nil
}

func (s *DuckDBStore) Mark(ctx context.Context, unit types.DownloadUnit, status types.Status) error {
	if !status.IsValid() {
		return errors.Newf(errors.ErrCodeInvalidParameter, "unknown status %q", status)
	}

	if status == types.StatusUnset {
		_, err := s.sq.
			Delete(statusTable).
			Where(squirrel.Eq{"unit_key": unit.Key()}).
			RunWith(s.db).
			ExecContext(ctx)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeStatusWriteFailed, err, "failed to clear status for %s", unit)
		}

		return nil
	}

	_, err := s.sq.
		Insert(statusTable).
		Options("OR REPLACE").
		Columns("unit_key", "ticker", "granularity", "bucket", "what_to_show", "status", "updated_at").
		Values(unit.Key(), unit.Ticker, string(unit.Granularity), unit.Bucket, unit.WhatToShow, string(status), time.Now().UTC()).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStatusWriteFailed, err, "failed to mark %s as %s", unit, status)
	}

	return nil
}

func (s *DuckDBStore) NeedsDownload(ctx context.Context, unit types.DownloadUnit) (bool, error) {
	return needsDownload(ctx, s, unit)
}

// Counts returns the number of units recorded per status.
func (s *DuckDBStore) Counts(ctx context.Context) (map[types.Status]int, error) {
	rows, err := s.sq.
		Select("status", "COUNT(*)").
		From(statusTable).
		GroupBy("status").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStatusReadFailed, "failed to count statuses", err)
	}
	defer rows.Close()

	counts := make(map[types.Status]int)

	for rows.Next() {
		var (
			status string
			n      int
		)

		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStatusReadFailed, "failed to scan status count", err)
		}

		counts[types.Status(status)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStatusReadFailed, "failed to iterate status counts", err)
	}

	return counts, nil
}

func (s *DuckDBStore) Close() error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil

	return err
}
