package status

import (
	"github.com/rxtech-lab/argo-ingest/internal/config"
	"github.com/rxtech-lab/argo-ingest/internal/logger"
	"github.com/rxtech-lab/argo-ingest/pkg/errors"
)

// NewStore builds the store selected by cfg.Storage.StatusBackend.
func NewStore(cfg *config.Config, log *logger.Logger) (Store, error) {
	switch cfg.Storage.StatusBackend {
	case config.StatusBackendFile, "":
		return NewFileStore(cfg.Paths.RawDataDir, log), nil
	case config.StatusBackendDuckDB:
		store, err := NewDuckDBStore(cfg.Paths.StatusDB, log)
		if err != nil {
			return nil, err
		}

		return store, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported status backend %q", cfg.Storage.StatusBackend)
	}
}
