package provider

import (
	"context"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-ingest/internal/logger"
	"github.com/rxtech-lab/argo-ingest/internal/types"
	"github.com/rxtech-lab/argo-ingest/pkg/errors"
)

// binanceKlineLimit is the maximum page size of the klines endpoint.
const binanceKlineLimit = 1000

// BinanceAPIClient is the subset of the Binance REST API used here.
type BinanceAPIClient interface {
	Ping(ctx context.Context) error
	Klines(ctx context.Context, symbol, interval string, startMillis, endMillis int64, limit int) ([]*binance.Kline, error)
}

type binanceRESTClient struct {
	client *binance.Client
}

func (c binanceRESTClient) Ping(ctx context.Context) error {
	return c.client.NewPingService().Do(ctx)
}

func (c binanceRESTClient) Klines(ctx context.Context, symbol, interval string, startMillis, endMillis int64, limit int) ([]*binance.Kline, error) {
	return c.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		StartTime(startMillis).
		EndTime(endMillis).
		Limit(limit).
		Do(ctx)
}

// BinanceClient fetches spot klines from Binance. Only TRADES data is available.
type BinanceClient struct {
	apiClient BinanceAPIClient
	logger    *logger.Logger
}

// NewBinanceClient creates a Binance provider. Market data endpoints work without keys.
func NewBinanceClient(apiKey, secretKey string, log *logger.Logger) *BinanceClient {
	return NewBinanceClientWithAPI(binanceRESTClient{client: binance.NewClient(apiKey, secretKey)}, log)
}

// NewBinanceClientWithAPI creates a Binance provider on top of an existing API client.
func NewBinanceClientWithAPI(api BinanceAPIClient, log *logger.Logger) *BinanceClient {
	return &BinanceClient{
		apiClient: api,
		logger:    log,
	}
}

func (c *BinanceClient) Name() string {
	return string(ProviderBinance)
}

// Connect pings the API so an unreachable endpoint surfaces as a connection error.
func (c *BinanceClient) Connect(ctx context.Context) error {
	if err := c.apiClient.Ping(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeConnectionFailed, "failed to reach Binance", err)
	}

	return nil
}

func (c *BinanceClient) Disconnect(_ context.Context) error {
	return nil
}

func (c *BinanceClient) FetchHistoricalData(ctx context.Context, params FetchParams) ([]types.Bar, error) {
	if params.WhatToShow != "" && params.WhatToShow != types.DefaultWhatToShow {
		return nil, errors.Newf(errors.ErrCodeUnsupportedWhatToShow, "binance only provides TRADES, got %s", params.WhatToShow)
	}

	interval, err := binanceInterval(params.Granularity)
	if err != nil {
		return nil, err
	}

	start, end, err := params.Window()
	if err != nil {
		return nil, err
	}

	endMillis := end.UnixMilli()
	currentStart := start.UnixMilli()

	var bars []types.Bar

	// Page forward from the last close time until a short page or the end of the window.
	for currentStart <= endMillis {
		klines, err := c.apiClient.Klines(ctx, params.Ticker, interval, currentStart, endMillis, binanceKlineLimit)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to fetch klines for %s", params.Ticker)
		}

		for _, k := range klines {
			bar, err := klineToBar(k)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "malformed kline for %s", params.Ticker)
			}

			bars = append(bars, bar)
		}

		if len(klines) < binanceKlineLimit {
			break
		}

		currentStart = klines[len(klines)-1].CloseTime + 1
	}

	c.logger.Debug("Fetched binance klines",
		zap.String("ticker", params.Ticker),
		zap.String("interval", interval),
		zap.Int("bars", len(bars)),
	)

	return bars, nil
}

// klineToBar converts a kline. Average is the quote-volume weighted price when volume is non-zero.
func klineToBar(k *binance.Kline) (types.Bar, error) {
	var values [6]decimal.Decimal

	for i, s := range []string{k.Open, k.High, k.Low, k.Close, k.Volume, k.QuoteAssetVolume} {
		if s == "" {
			continue
		}

		d, err := decimal.NewFromString(s)
		if err != nil {
			return types.Bar{}, err
		}

		values[i] = d
	}

	volume := values[4]

	var average float64
	if !volume.IsZero() {
		average = values[5].Div(volume).InexactFloat64()
	}

	return types.Bar{
		Date:     time.UnixMilli(k.OpenTime).UTC(),
		Open:     values[0].InexactFloat64(),
		High:     values[1].InexactFloat64(),
		Low:      values[2].InexactFloat64(),
		Close:    values[3].InexactFloat64(),
		Volume:   volume.InexactFloat64(),
		Average:  average,
		BarCount: float64(k.TradeNum),
	}, nil
}
