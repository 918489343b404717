package provider

import (
	"context"
	"strings"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-ingest/internal/logger"
	"github.com/rxtech-lab/argo-ingest/internal/types"
	"github.com/rxtech-lab/argo-ingest/pkg/errors"
)

// PolygonAggsIterator is the subset of the Polygon aggregates iterator used here.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonAPIClient is the subset of the Polygon REST client used here.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator
}

type polygonRESTClient struct {
	client *polygon.Client
}

func (c polygonRESTClient) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator {
	return c.client.ListAggs(ctx, params, options...)
}

// PolygonClient fetches aggregates from Polygon.io. Only TRADES data is available.
type PolygonClient struct {
	apiClient PolygonAPIClient
	logger    *logger.Logger
}

// NewPolygonClient creates a Polygon provider authenticated with apiKey.
func NewPolygonClient(apiKey string, log *logger.Logger) (*PolygonClient, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "apiKey is required")
	}

	return NewPolygonClientWithAPI(polygonRESTClient{client: polygon.New(apiKey)}, log), nil
}

// NewPolygonClientWithAPI creates a Polygon provider on top of an existing API client.
func NewPolygonClientWithAPI(api PolygonAPIClient, log *logger.Logger) *PolygonClient {
	return &PolygonClient{
		apiClient: api,
		logger:    log,
	}
}

func (c *PolygonClient) Name() string {
	return string(ProviderPolygon)
}

// Connect is a no-op; the REST API is stateless and authenticates per request.
func (c *PolygonClient) Connect(_ context.Context) error {
	return nil
}

func (c *PolygonClient) Disconnect(_ context.Context) error {
	return nil
}

func (c *PolygonClient) FetchHistoricalData(ctx context.Context, params FetchParams) ([]types.Bar, error) {
	if params.WhatToShow != "" && params.WhatToShow != types.DefaultWhatToShow {
		return nil, errors.Newf(errors.ErrCodeUnsupportedWhatToShow, "polygon only provides TRADES, got %s", params.WhatToShow)
	}

	multiplier, timespan, err := polygonTimespan(params.Granularity)
	if err != nil {
		return nil, err
	}

	start, end, err := params.Window()
	if err != nil {
		return nil, err
	}

	//nolint:exhaustruct // third-party struct with many optional fields
	aggParams := models.ListAggsParams{
		Ticker:     polygonTicker(params),
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithOrder(models.Asc).WithLimit(50000)

	iter := c.apiClient.ListAggs(ctx, aggParams)

	var bars []types.Bar

	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, types.Bar{
			Date:     time.Time(agg.Timestamp).UTC(),
			Open:     agg.Open,
			High:     agg.High,
			Low:      agg.Low,
			Close:    agg.Close,
			Volume:   agg.Volume,
			Average:  agg.VWAP,
			BarCount: float64(agg.Transactions),
		})
	}

	if err := iter.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "error iterating polygon aggregates for %s", params.Ticker)
	}

	c.logger.Debug("Fetched polygon aggregates",
		zap.String("ticker", params.Ticker),
		zap.String("granularity", string(params.Granularity)),
		zap.Int("bars", len(bars)),
	)

	return bars, nil
}

// polygonTicker prefixes index tickers with "I:" as Polygon expects.
func polygonTicker(params FetchParams) string {
	if params.ContractType == "Index" && !strings.HasPrefix(params.Ticker, "I:") {
		return "I:" + params.Ticker
	}

	return params.Ticker
}
