package provider

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-ingest/internal/config"
	"github.com/rxtech-lab/argo-ingest/internal/logger"
	"github.com/rxtech-lab/argo-ingest/internal/types"
	"github.com/rxtech-lab/argo-ingest/pkg/errors"
)

// saxoChartCount is the number of samples requested per chart call.
const saxoChartCount = 1200

// saxoAssetTypes maps request contract types onto Saxo asset types.
var saxoAssetTypes = map[string]string{
	"Stock": "Stock",
	"Index": "StockIndex",
	"CFD":   "CfdOnIndex",
}

type saxoInstrument struct {
	Identifier  int    `json:"Identifier"`
	Symbol      string `json:"Symbol"`
	Description string `json:"Description"`
	AssetType   string `json:"AssetType"`
}

type saxoInstruments struct {
	Data []saxoInstrument `json:"Data"`
}

// saxoSample is one chart sample. Stock charts carry traded prices, while
// CFD and index charts carry separate bid and ask series.
type saxoSample struct {
	Time     time.Time `json:"Time"`
	Open     *float64  `json:"Open"`
	High     *float64  `json:"High"`
	Low      *float64  `json:"Low"`
	Close    *float64  `json:"Close"`
	Volume   float64   `json:"Volume"`
	Interest float64   `json:"Interest"`
	OpenBid  float64   `json:"OpenBid"`
	HighBid  float64   `json:"HighBid"`
	LowBid   float64   `json:"LowBid"`
	CloseBid float64   `json:"CloseBid"`
	OpenAsk  float64   `json:"OpenAsk"`
	HighAsk  float64   `json:"HighAsk"`
	LowAsk   float64   `json:"LowAsk"`
	CloseAsk float64   `json:"CloseAsk"`
}

type saxoChart struct {
	Data []saxoSample `json:"Data"`
}

// SaxoOption configures a SaxoClient.
type SaxoOption func(*SaxoClient)

// WithAuthorizeHandler is called with the URL the user must open to authorize the app.
// By default the URL is logged.
func WithAuthorizeHandler(fn func(authURL string)) SaxoOption {
	return func(c *SaxoClient) {
		c.onAuthorize = fn
	}
}

// WithSaxoClock overrides the clock used for token expiry.
func WithSaxoClock(now func() time.Time) SaxoOption {
	return func(c *SaxoClient) {
		c.now = now
	}
}

// SaxoClient fetches chart data from the Saxo OpenAPI.
type SaxoClient struct {
	cfg         config.SaxoConfig
	client      *resty.Client
	logger      *logger.Logger
	token       SaxoToken
	uics        map[string]int
	onAuthorize func(string)
	now         func() time.Time
	connected   bool
}

// NewSaxoClient creates a Saxo provider from the application credentials in cfg.
func NewSaxoClient(cfg config.SaxoConfig, log *logger.Logger, opts ...SaxoOption) (*SaxoClient, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "saxo client_id and client_secret are required")
	}

	c := &SaxoClient{
		cfg: cfg,
		client: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(60 * time.Second),
		logger: log,
		uics:   make(map[string]int),
		now:    time.Now,
	}
	c.onAuthorize = func(authURL string) {
		c.logger.Info("Open this URL in a browser to authorize Saxo access", zap.String("url", authURL))
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *SaxoClient) Name() string {
	return string(ProviderSaxo)
}

// Connect loads any persisted token and obtains a valid access token.
func (c *SaxoClient) Connect(ctx context.Context) error {
	c.loadToken()

	if err := c.ensureToken(ctx); err != nil {
		return err
	}

	c.connected = true

	return nil
}

func (c *SaxoClient) Disconnect(_ context.Context) error {
	c.connected = false

	return nil
}

func (c *SaxoClient) FetchHistoricalData(ctx context.Context, params FetchParams) ([]types.Bar, error) {
	if !c.connected {
		return nil, errors.New(errors.ErrCodeProviderNotConnected, "saxo provider is not connected")
	}

	horizon, err := saxoHorizon(params.Granularity)
	if err != nil {
		return nil, err
	}

	start, end, err := params.Window()
	if err != nil {
		return nil, err
	}

	contractType := params.ContractType
	if contractType == "" {
		contractType = types.DefaultContractType
	}

	assetType, ok := saxoAssetTypes[contractType]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported contract type %q", contractType)
	}

	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	uic, err := c.lookupUIC(ctx, params.Ticker, assetType)
	if err != nil {
		return nil, err
	}

	var chart saxoChart

	resp, err := c.authed(ctx).
		SetQueryParams(map[string]string{
			"AssetType": assetType,
			"Uic":       strconv.Itoa(uic),
			"Horizon":   strconv.Itoa(horizon),
			"Mode":      "UpTo",
			"Time":      end.Format(time.RFC3339),
			"Count":     strconv.Itoa(saxoChartCount),
		}).
		SetResult(&chart).
		Get("/chart/v1/charts")
	if err := c.checkResponse(resp, err, "chart request for "+params.Ticker); err != nil {
		return nil, err
	}

	bars := make([]types.Bar, 0, len(chart.Data))

	for _, s := range chart.Data {
		t := s.Time.UTC()
		if t.Before(start) || t.After(end) {
			continue
		}

		bars = append(bars, sampleToBar(s, params.WhatToShow))
	}

	c.logger.Debug("Fetched Saxo chart",
		zap.String("ticker", params.Ticker),
		zap.Int("uic", uic),
		zap.Int("horizon", horizon),
		zap.Int("bars", len(bars)),
	)

	return bars, nil
}

func (c *SaxoClient) lookupUIC(ctx context.Context, ticker, assetType string) (int, error) {
	key := ticker + "/" + assetType
	if uic, ok := c.uics[key]; ok {
		return uic, nil
	}

	var instruments saxoInstruments

	resp, err := c.authed(ctx).
		SetQueryParams(map[string]string{
			"Keywords":   ticker,
			"AssetTypes": assetType,
		}).
		SetResult(&instruments).
		Get("/ref/v1/instruments")
	if err := c.checkResponse(resp, err, "instrument lookup for "+ticker); err != nil {
		return 0, err
	}

	for _, inst := range instruments.Data {
		symbol, _, _ := strings.Cut(inst.Symbol, ":")
		if strings.EqualFold(symbol, ticker) || strings.EqualFold(inst.Symbol, ticker) {
			c.uics[key] = inst.Identifier

			return inst.Identifier, nil
		}
	}

	if len(instruments.Data) > 0 {
		c.uics[key] = instruments.Data[0].Identifier

		return instruments.Data[0].Identifier, nil
	}

	return 0, errors.Newf(errors.ErrCodeContractNotFound, "no %s instrument found for %s", assetType, ticker)
}

func (c *SaxoClient) authed(ctx context.Context) *resty.Request {
	return c.client.R().
		SetContext(ctx).
		SetAuthToken(c.token.AccessToken)
}

func (c *SaxoClient) checkResponse(resp *resty.Response, err error, what string) error {
	if err != nil {
		return errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "%s failed", what)
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		c.token.AccessToken = ""
		c.connected = false

		return errors.Newf(errors.ErrCodeAuthFailed, "%s was rejected: access token expired or revoked", what)
	}

	if resp.IsError() {
		return errors.Newf(errors.ErrCodeMarketDataFetchFailed, "%s returned %s: %s", what, resp.Status(), resp.String())
	}

	return nil
}

// sampleToBar converts a chart sample. Traded prices are used when present; otherwise
// TRADES and MIDPOINT use the bid/ask midpoint, ASK the ask and everything else the bid.
func sampleToBar(s saxoSample, whatToShow string) types.Bar {
	bar := types.Bar{Date: s.Time.UTC(), Volume: s.Volume}

	if s.Open != nil && s.Close != nil {
		bar.Open = *s.Open
		bar.Close = *s.Close

		if s.High != nil {
			bar.High = *s.High
		}

		if s.Low != nil {
			bar.Low = *s.Low
		}

		return bar
	}

	switch whatToShow {
	case "", types.DefaultWhatToShow, "MIDPOINT":
		bar.Open = (s.OpenBid + s.OpenAsk) / 2
		bar.High = (s.HighBid + s.HighAsk) / 2
		bar.Low = (s.LowBid + s.LowAsk) / 2
		bar.Close = (s.CloseBid + s.CloseAsk) / 2
	case "ASK":
		bar.Open, bar.High, bar.Low, bar.Close = s.OpenAsk, s.HighAsk, s.LowAsk, s.CloseAsk
	default:
		bar.Open, bar.High, bar.Low, bar.Close = s.OpenBid, s.HighBid, s.LowBid, s.CloseBid
	}

	return bar
}
