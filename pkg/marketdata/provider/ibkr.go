package provider

import (
	"context"
	"crypto/tls"
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

// ibkrSecTypes maps request contract types onto Client Portal security types.
var ibkrSecTypes = map[string]string{
	"Stock": "STK",
	"Index": "IND",
	"CFD":   "CFD",
}

// ibkrSources maps what-to-show modes onto history data sources.
var ibkrSources = map[string]string{
	"TRADES":   "trades",
	"MIDPOINT": "midpoint",
	"BID_ASK":  "bid_ask",
}

// ibkrConid accepts contract ids encoded as JSON numbers or strings.
type ibkrConid string

func (c *ibkrConid) UnmarshalJSON(b []byte) error {
	*c = ibkrConid(strings.Trim(string(b), `"`))

	return nil
}

type ibkrAuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Connected     bool   `json:"connected"`
	Competing     bool   `json:"competing"`
	Message       string `json:"message"`
}

type ibkrContract struct {
	Conid         ibkrConid `json:"conid"`
	Symbol        string    `json:"symbol"`
	CompanyHeader string    `json:"companyHeader"`
}

type ibkrHistoryBar struct {
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
	Time   int64   `json:"t"`
}

type ibkrHistory struct {
	Symbol string           `json:"symbol"`
	Data   []ibkrHistoryBar `json:"data"`
}

type ibkrError struct {
	Error string `json:"error"`
}

// IBKRClient fetches historical bars through a running Client Portal Gateway.
type IBKRClient struct {
	client     *resty.Client
	outsideRTH bool
	logger     *logger.Logger
	conids     map[string]string
	connected  bool
}

// NewIBKRClient creates a provider talking to the gateway at cfg.BaseURL.
func NewIBKRClient(cfg config.IBKRConfig, log *logger.Logger) (*IBKRClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "ibkr base_url is required")
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(60*time.Second).
		SetHeader("User-Agent", "argo-ingest").
		//nolint:gosec // the gateway serves a self-signed certificate on localhost
		SetTLSClientConfig(&tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify})

	return &IBKRClient{
		client:     client,
		outsideRTH: cfg.OutsideRTH,
		logger:     log,
		conids:     make(map[string]string),
	}, nil
}

func (c *IBKRClient) Name() string {
	return string(ProviderIBKR)
}

// Connect checks that the gateway is reachable and its brokerage session is authenticated.
func (c *IBKRClient) Connect(ctx context.Context) error {
	var status ibkrAuthStatus

	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&status).
		Post("/iserver/auth/status")
	if err != nil {
		return errors.Wrap(errors.ErrCodeConnectionFailed, "failed to reach IBKR gateway", err)
	}

	if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
		return errors.Newf(errors.ErrCodeAuthFailed, "IBKR gateway rejected the session: %s", resp.Status())
	}

	if resp.IsError() {
		return errors.Newf(errors.ErrCodeConnectionFailed, "IBKR gateway returned %s", resp.Status())
	}

	if !status.Authenticated {
		return errors.Newf(errors.ErrCodeAuthFailed, "IBKR session is not authenticated (connected=%t competing=%t %s)", status.Connected, status.Competing, status.Message)
	}

	c.connected = true
	c.logger.Info("Connected to IBKR gateway", zap.Bool("connected", status.Connected))

	return nil
}

func (c *IBKRClient) Disconnect(_ context.Context) error {
	if c.connected {
		c.client.GetClient().CloseIdleConnections()
		c.connected = false
	}

	return nil
}

func (c *IBKRClient) FetchHistoricalData(ctx context.Context, params FetchParams) ([]types.Bar, error) {
	if !c.connected {
		return nil, errors.New(errors.ErrCodeProviderNotConnected, "IBKR provider is not connected")
	}

	whatToShow := params.WhatToShow
	if whatToShow == "" {
		whatToShow = types.DefaultWhatToShow
	}

	source, ok := ibkrSources[whatToShow]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnsupportedWhatToShow, "IBKR history does not provide %s", whatToShow)
	}

	barSize, period, err := ibkrBarSize(params.Granularity)
	if err != nil {
		return nil, err
	}

	start, end, err := params.Window()
	if err != nil {
		return nil, err
	}

	conid, err := c.resolveContract(ctx, params)
	if err != nil {
		return nil, err
	}

	query := map[string]string{
		"conid":      conid,
		"period":     period,
		"bar":        barSize,
		"outsideRth": strconv.FormatBool(c.outsideRTH),
		"startTime":  end.Format("20060102-15:04:05"),
		"source":     source,
	}
	if params.Exchange != "" && params.Exchange != types.DefaultExchange {
		query["exchange"] = params.Exchange
	}

	var history ibkrHistory

	var apiErr ibkrError

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(&history).
		SetError(&apiErr).
		Get("/iserver/marketdata/history")
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "history request failed for %s", params.Ticker)
	}

	if resp.StatusCode() == 401 {
		c.connected = false

		return nil, errors.New(errors.ErrCodeAuthFailed, "IBKR session expired")
	}

	if resp.IsError() {
		return nil, errors.Newf(errors.ErrCodeMarketDataFetchFailed, "history request for %s returned %s: %s", params.Ticker, resp.Status(), apiErr.Error)
	}

	bars := make([]types.Bar, 0, len(history.Data))

	for _, b := range history.Data {
		t := time.UnixMilli(b.Time).UTC()
		if t.Before(start) || t.After(end) {
			continue
		}

		bars = append(bars, types.Bar{
			Date:   t,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}

	c.logger.Debug("Fetched IBKR history",
		zap.String("ticker", params.Ticker),
		zap.String("conid", conid),
		zap.String("bar", barSize),
		zap.Int("bars", len(bars)),
	)

	return bars, nil
}

// resolveContract looks up and caches the contract id for the ticker and contract type.
func (c *IBKRClient) resolveContract(ctx context.Context, params FetchParams) (string, error) {
	contractType := params.ContractType
	if contractType == "" {
		contractType = types.DefaultContractType
	}

	secType, ok := ibkrSecTypes[contractType]
	if !ok {
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported contract type %q", contractType)
	}

	key := params.Ticker + "/" + secType
	if conid, ok := c.conids[key]; ok {
		return conid, nil
	}

	var contracts []ibkrContract

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"symbol": params.Ticker, "secType": secType, "name": false}).
		SetResult(&contracts).
		Post("/iserver/secdef/search")
	if err != nil {
		return "", errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "contract search failed for %s", params.Ticker)
	}

	if resp.IsError() {
		return "", errors.Newf(errors.ErrCodeMarketDataFetchFailed, "contract search for %s returned %s", params.Ticker, resp.Status())
	}

	for _, contract := range contracts {
		if contract.Conid != "" && strings.EqualFold(contract.Symbol, params.Ticker) {
			c.conids[key] = string(contract.Conid)

			return string(contract.Conid), nil
		}
	}

	return "", errors.Newf(errors.ErrCodeContractNotFound, "no %s contract found for %s", secType, params.Ticker)
}
