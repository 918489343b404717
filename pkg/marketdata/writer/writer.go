package writer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rxtech-lab/argo-ingest/internal/types"
	"github.com/rxtech-lab/argo-ingest/pkg/errors"
)

// Supported artifact formats.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
	FormatJSON    = "json"
)

// BarWriter persists one download unit's bars as a single file.
type BarWriter interface {
	// Write replaces the file at path with bars. A partially written file never
	// appears under path.
	Write(path string, bars []types.Bar) error
	// Extension is the file extension used for artifacts, without the dot.
	Extension() string
}

// NewBarWriter returns the writer for format (csv, parquet or json).
func NewBarWriter(format string) (BarWriter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatCSV:
		return CSVWriter{}, nil
	case FormatParquet:
		return ParquetWriter{}, nil
	case FormatJSON:
		return JSONWriter{}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported storage format %q (use csv, parquet or json)", format)
	}
}

// writeAtomic writes into <path>.tmp through fill and renames the result over path.
func writeAtomic(path string, fill func(f *os.File) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to create directory for %s", path)
	}

	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to create %s", tmp)
	}

	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err = fill(f); err != nil {
		f.Close()

		return errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to write %s", path)
	}

	if err = f.Sync(); err != nil {
		f.Close()

		return errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to sync %s", tmp)
	}

	if err = f.Close(); err != nil {
		return errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to close %s", tmp)
	}

	if err = os.Rename(tmp, path); err != nil {
		return errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to move %s into place", path)
	}

	return nil
}
