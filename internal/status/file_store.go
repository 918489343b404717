package status

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-ingest/internal/logger"
	"github.com/rxtech-lab/argo-ingest/internal/types"
	"github.com/rxtech-lab/argo-ingest/pkg/errors"
	"github.com/rxtech-lab/argo-ingest/pkg/marketdata/writer"
)

// FileStore records statuses as empty marker files next to the raw artifact,
// e.g. <raw>/TRADES/1H/AAPL-2024-01-03.completed.
type FileStore struct {
	layout writer.Layout
	logger *logger.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore for artifacts below rawRoot.
func NewFileStore(rawRoot string, log *logger.Logger) *FileStore {
	return &FileStore{
		layout: writer.NewLayout(rawRoot),
		logger: log,
	}
}

// MarkerPath returns the marker file path for a unit and status.
func (s *FileStore) MarkerPath(unit types.DownloadUnit, status types.Status) string {
	return s.layout.Path(unit, string(status))
}

func (s *FileStore) StatusOf(_ context.Context, unit types.DownloadUnit) (types.Status, error) {
	var found []types.Status

	for _, st := range types.MarkerStatuses {
		_, err := os.Stat(s.MarkerPath(unit, st))
		if err == nil {
			found = append(found, st)

			continue
		}

		if !os.IsNotExist(err) {
			return types.StatusUnset, errors.Wrapf(errors.ErrCodeStatusReadFailed, err, "failed to inspect %s marker for %s", st, unit)
		}
	}

	if len(found) == 0 {
		return types.StatusUnset, nil
	}

	if len(found) > 1 {
		s.logger.Warn("Multiple status markers present",
			zap.String("unit", unit.Key()),
			zap.Any("markers", found),
			zap.String("using", string(found[0])),
		)
	}

	return found[0], nil
}

func (s *FileStore) Mark(_ context.Context, unit types.DownloadUnit, status types.Status) error {
	if !status.IsValid() {
		return errors.Newf(errors.ErrCodeInvalidParameter, "unknown status %q", status)
	}

	for _, st := range types.MarkerStatuses {
		err := os.Remove(s.MarkerPath(unit, st))
		if err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(errors.ErrCodeStatusWriteFailed, err, "failed to clear %s marker for %s", st, unit)
		}
	}

	if status == types.StatusUnset {
		return nil
	}

	if err := os.MkdirAll(s.layout.Dir(unit), 0o755); err != nil {
		return errors.Wrapf(errors.ErrCodeStatusWriteFailed, err, "failed to create marker directory for %s", unit)
	}

	f, err := os.Create(s.MarkerPath(unit, status))
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStatusWriteFailed, err, "failed to write %s marker for %s", status, unit)
	}

	if err := f.Close(); err != nil {
		return errors.Wrapf(errors.ErrCodeStatusWriteFailed, err, "failed to write %s marker for %s", status, unit)
	}

	return nil
}

func (s *FileStore) NeedsDownload(ctx context.Context, unit types.DownloadUnit) (bool, error) {
	return needsDownload(ctx, s, unit)
}

// Close is a no-op; FileStore holds no open resources.
func (s *FileStore) Close() error {
	return nil
}
