package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-ingest/internal/config"
	"github.com/rxtech-lab/argo-ingest/internal/logger"
	"github.com/rxtech-lab/argo-ingest/internal/types"
	"github.com/rxtech-lab/argo-ingest/pkg/errors"
)

type IBKRClientTestSuite struct {
	suite.Suite
	server        *httptest.Server
	authenticated bool
	searches      int
	historyQuery  url.Values
	history       []ibkrHistoryBar
	historyStatus int
}

func TestIBKRClientSuite(t *testing.T) {
	suite.Run(t, new(IBKRClientTestSuite))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (suite *IBKRClientTestSuite) SetupTest() {
	suite.authenticated = true
	suite.searches = 0
	suite.historyQuery = nil
	suite.historyStatus = http.StatusOK
	suite.history = []ibkrHistoryBar{
		// Previous day, outside the requested window.
		{Open: 1, High: 1, Low: 1, Close: 1, Volume: 1, Time: time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC).UnixMilli()},
		{Open: 185.1, High: 186, Low: 184.9, Close: 185.7, Volume: 5000, Time: time.Date(2024, 1, 3, 14, 30, 0, 0, time.UTC).UnixMilli()},
		{Open: 185.7, High: 186.2, Low: 185.5, Close: 186.1, Volume: 4200, Time: time.Date(2024, 1, 3, 14, 31, 0, 0, time.UTC).UnixMilli()},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/api/iserver/auth/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": suite.authenticated, "connected": true, "competing": false})
	})
	mux.HandleFunc("/v1/api/iserver/secdef/search", func(w http.ResponseWriter, r *http.Request) {
		suite.searches++

		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		if body["symbol"] != "AAPL" {
			writeJSON(w, http.StatusOK, []any{})

			return
		}

		writeJSON(w, http.StatusOK, []map[string]any{
			{"conid": 265598, "symbol": "AAPL", "companyHeader": "APPLE INC - NASDAQ"},
		})
	})
	mux.HandleFunc("/v1/api/iserver/marketdata/history", func(w http.ResponseWriter, r *http.Request) {
		suite.historyQuery = r.URL.Query()
		if suite.historyStatus != http.StatusOK {
			writeJSON(w, suite.historyStatus, map[string]string{"error": "chart data unavailable"})

			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"symbol": "AAPL", "data": suite.history})
	})

	suite.server = httptest.NewServer(mux)
}

func (suite *IBKRClientTestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *IBKRClientTestSuite) newClient() *IBKRClient {
	client, err := NewIBKRClient(config.IBKRConfig{BaseURL: suite.server.URL + "/v1/api"}, logger.NewNopLogger())
	suite.Require().NoError(err)

	return client
}

func (suite *IBKRClientTestSuite) params() FetchParams {
	return FetchParams{
		Ticker:       "AAPL",
		Granularity:  types.GranularityOneMinute,
		EndCutoff:    "2024-01-03 23:59:59",
		Currency:     "USD",
		Exchange:     "SMART",
		ContractType: "Stock",
		WhatToShow:   "TRADES",
	}
}

func (suite *IBKRClientTestSuite) TestNewIBKRClientRequiresBaseURL() {
	_, err := NewIBKRClient(config.IBKRConfig{}, logger.NewNopLogger())
	suite.Error(err)
}

func (suite *IBKRClientTestSuite) TestConnect() {
	client := suite.newClient()
	suite.NoError(client.Connect(context.Background()))
	suite.Equal("ibkr", client.Name())
	suite.NoError(client.Disconnect(context.Background()))
}

func (suite *IBKRClientTestSuite) TestConnectUnauthenticated() {
	suite.authenticated = false

	err := suite.newClient().Connect(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeAuthFailed))
	suite.True(errors.IsConnectionError(err))
}

func (suite *IBKRClientTestSuite) TestConnectUnreachable() {
	client := suite.newClient()
	suite.server.Close()

	err := client.Connect(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeConnectionFailed))
}

func (suite *IBKRClientTestSuite) TestFetchRequiresConnect() {
	_, err := suite.newClient().FetchHistoricalData(context.Background(), suite.params())
	suite.True(errors.HasCode(err, errors.ErrCodeProviderNotConnected))
}

func (suite *IBKRClientTestSuite) TestFetchHistoricalData() {
	client := suite.newClient()
	suite.Require().NoError(client.Connect(context.Background()))

	bars, err := client.FetchHistoricalData(context.Background(), suite.params())
	suite.Require().NoError(err)
	suite.Require().Len(bars, 2)
	suite.Equal(time.Date(2024, 1, 3, 14, 30, 0, 0, time.UTC), bars[0].Date)
	suite.Equal(186.1, bars[1].Close)
	suite.Zero(bars[0].BarCount)

	suite.Equal("265598", suite.historyQuery.Get("conid"))
	suite.Equal("1min", suite.historyQuery.Get("bar"))
	suite.Equal("1d", suite.historyQuery.Get("period"))
	suite.Equal("20240103-23:59:59", suite.historyQuery.Get("startTime"))
	suite.Equal("trades", suite.historyQuery.Get("source"))
	suite.Equal("false", suite.historyQuery.Get("outsideRth"))

	// The contract id is cached.
	_, err = client.FetchHistoricalData(context.Background(), suite.params())
	suite.Require().NoError(err)
	suite.Equal(1, suite.searches)
}

func (suite *IBKRClientTestSuite) TestFetchYearPeriod() {
	client := suite.newClient()
	suite.Require().NoError(client.Connect(context.Background()))

	params := suite.params()
	params.Granularity = types.GranularityOneDay
	params.EndCutoff = "2024-12-31 23:59:59"

	bars, err := client.FetchHistoricalData(context.Background(), params)
	suite.Require().NoError(err)
	suite.Len(bars, 3)
	suite.Equal("1y", suite.historyQuery.Get("period"))
	suite.Equal("1d", suite.historyQuery.Get("bar"))
}

func (suite *IBKRClientTestSuite) TestFetchEmpty() {
	suite.history = nil
	client := suite.newClient()
	suite.Require().NoError(client.Connect(context.Background()))

	bars, err := client.FetchHistoricalData(context.Background(), suite.params())
	suite.NoError(err)
	suite.Empty(bars)
}

func (suite *IBKRClientTestSuite) TestFetchErrors() {
	client := suite.newClient()
	suite.Require().NoError(client.Connect(context.Background()))

	params := suite.params()
	params.Ticker = "ZZZZ"
	_, err := client.FetchHistoricalData(context.Background(), params)
	suite.True(errors.HasCode(err, errors.ErrCodeContractNotFound))

	params = suite.params()
	params.WhatToShow = "BID"
	_, err = client.FetchHistoricalData(context.Background(), params)
	suite.True(errors.HasCode(err, errors.ErrCodeUnsupportedWhatToShow))

	suite.historyStatus = http.StatusInternalServerError
	_, err = client.FetchHistoricalData(context.Background(), suite.params())
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataFetchFailed))
	suite.Contains(err.Error(), "chart data unavailable")

	suite.historyStatus = http.StatusUnauthorized
	_, err = client.FetchHistoricalData(context.Background(), suite.params())
	suite.True(errors.IsConnectionError(err))
}
