package status

import (
	"context"

	"github.com/rxtech-lab/argo-ingest/internal/types"
)

// Store maps download units to a durable status flag.
// At most one status is recorded per unit at any time.
type Store interface {
	// StatusOf returns the unit's current status, or types.StatusUnset.
	StatusOf(ctx context.Context, unit types.DownloadUnit) (types.Status, error)
	// Mark clears every status recorded for the unit and records status.
	// Marking types.StatusUnset only clears.
	Mark(ctx context.Context, unit types.DownloadUnit, status types.Status) error
	// NeedsDownload reports whether the unit is neither completed nor not_available.
	NeedsDownload(ctx context.Context, unit types.DownloadUnit) (bool, error)
	// Close releases resources held by the store.
	Close() error
}

func needsDownload(ctx context.Context, s Store, unit types.DownloadUnit) (bool, error) {
	st, err := s.StatusOf(ctx, unit)
	if err != nil {
		return false, err
	}

	return !st.IsTerminal(), nil
}
