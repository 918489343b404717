package provider

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-ingest/internal/types"
	"github.com/rxtech-lab/argo-ingest/pkg/errors"
)

// ProviderType names a market data source.
type ProviderType string

const (
	ProviderIBKR    ProviderType = "ibkr"
	ProviderPolygon ProviderType = "polygon"
	ProviderBinance ProviderType = "binance"
	ProviderSaxo    ProviderType = "saxo"
)

// CutoffLayout is the layout of FetchParams.EndCutoff.
const CutoffLayout = "2006-01-02 15:04:05"

// FetchParams describes one historical bar request.
type FetchParams struct {
	Ticker      string
	Granularity types.Granularity
	// EndCutoff is the as-of time in CutoffLayout. Major granularities cover the
	// year ending at the cutoff, the others the day ending at it.
	EndCutoff    string
	Currency     string
	Exchange     string
	ContractType string
	WhatToShow   string
}

// Window returns the [start, end] interval covered by the request, in UTC.
func (p FetchParams) Window() (time.Time, time.Time, error) {
	end, err := time.ParseInLocation(CutoffLayout, p.EndCutoff, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "malformed end cutoff %q", p.EndCutoff)
	}

	return p.Granularity.WindowStart(end), end, nil
}

// Provider is a historical bar source.
type Provider interface {
	// Name returns the provider type it was created for.
	Name() string
	// Connect establishes (or verifies) the session. Failures carry
	// ErrCodeConnectionFailed or ErrCodeAuthFailed.
	Connect(ctx context.Context) error
	// Disconnect releases the session. Safe to call when not connected.
	Disconnect(ctx context.Context) error
	// FetchHistoricalData returns the bars for params oldest first.
	// An empty slice with a nil error means the provider has no data for the request.
	FetchHistoricalData(ctx context.Context, params FetchParams) ([]types.Bar, error)
}
