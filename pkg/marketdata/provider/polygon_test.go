package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-ingest/internal/logger"
	"github.com/rxtech-lab/argo-ingest/internal/types"
	apperrors "github.com/rxtech-lab/argo-ingest/pkg/errors"
)

// mockPolygonAPIClient implements PolygonAPIClient for testing.
type mockPolygonAPIClient struct {
	iterator PolygonAggsIterator
	params   *models.ListAggsParams
}

func (m *mockPolygonAPIClient) ListAggs(_ context.Context, params *models.ListAggsParams, _ ...models.RequestOption) PolygonAggsIterator {
	m.params = params

	return m.iterator
}

// mockPolygonIterator implements PolygonAggsIterator for testing.
type mockPolygonIterator struct {
	aggs  []models.Agg
	index int
	err   error
}

func (m *mockPolygonIterator) Next() bool {
	if m.index < len(m.aggs) {
		m.index++

		return true
	}

	return false
}

func (m *mockPolygonIterator) Item() models.Agg {
	if m.index > 0 && m.index <= len(m.aggs) {
		return m.aggs[m.index-1]
	}

	return models.Agg{}
}

func (m *mockPolygonIterator) Err() error {
	return m.err
}

type PolygonClientTestSuite struct {
	suite.Suite
}

func TestPolygonClientSuite(t *testing.T) {
	suite.Run(t, new(PolygonClientTestSuite))
}

func (suite *PolygonClientTestSuite) params() FetchParams {
	return FetchParams{
		Ticker:       "SPY",
		Granularity:  types.GranularityOneMinute,
		EndCutoff:    "2024-01-03 23:59:59",
		ContractType: "Stock",
		WhatToShow:   "TRADES",
	}
}

func (suite *PolygonClientTestSuite) TestNewPolygonClient() {
	client, err := NewPolygonClient("test-api-key", logger.NewNopLogger())
	suite.NoError(err)
	suite.NotNil(client.apiClient)
	suite.Equal("polygon", client.Name())

	_, err = NewPolygonClient("", logger.NewNopLogger())
	suite.Error(err)
	suite.Contains(err.Error(), "apiKey is required")
}

func (suite *PolygonClientTestSuite) TestFetchHistoricalData() {
	ts := time.Date(2024, 1, 3, 14, 30, 0, 0, time.UTC)
	mockAPI := &mockPolygonAPIClient{iterator: &mockPolygonIterator{aggs: []models.Agg{
		{Timestamp: models.Millis(ts), Open: 470, High: 471, Low: 469.5, Close: 470.5, Volume: 12000, VWAP: 470.2, Transactions: 88},
		{Timestamp: models.Millis(ts.Add(time.Minute)), Open: 470.5, High: 472, Low: 470, Close: 471.8, Volume: 9000},
	}}}

	client := NewPolygonClientWithAPI(mockAPI, logger.NewNopLogger())
	suite.NoError(client.Connect(context.Background()))

	bars, err := client.FetchHistoricalData(context.Background(), suite.params())
	suite.Require().NoError(err)
	suite.Require().Len(bars, 2)
	suite.Equal(ts, bars[0].Date)
	suite.Equal(470.2, bars[0].Average)
	suite.Equal(88.0, bars[0].BarCount)
	suite.Equal(471.8, bars[1].Close)

	suite.Require().NotNil(mockAPI.params)
	suite.Equal("SPY", mockAPI.params.Ticker)
	suite.Equal(1, mockAPI.params.Multiplier)
	suite.Equal(models.Minute, mockAPI.params.Timespan)
	suite.Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), time.Time(mockAPI.params.From))
	suite.Equal(time.Date(2024, 1, 3, 23, 59, 59, 0, time.UTC), time.Time(mockAPI.params.To))
}

func (suite *PolygonClientTestSuite) TestFetchYearWindowForMajorGranularity() {
	mockAPI := &mockPolygonAPIClient{iterator: &mockPolygonIterator{}}
	client := NewPolygonClientWithAPI(mockAPI, logger.NewNopLogger())

	params := suite.params()
	params.Granularity = types.GranularityOneDay
	params.EndCutoff = "2023-12-31 23:59:59"

	bars, err := client.FetchHistoricalData(context.Background(), params)
	suite.NoError(err)
	suite.Empty(bars)
	suite.Equal(models.Day, mockAPI.params.Timespan)
	suite.Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Time(mockAPI.params.From))
}

func (suite *PolygonClientTestSuite) TestIndexTickerPrefix() {
	mockAPI := &mockPolygonAPIClient{iterator: &mockPolygonIterator{}}
	client := NewPolygonClientWithAPI(mockAPI, logger.NewNopLogger())

	params := suite.params()
	params.Ticker = "SPX"
	params.ContractType = "Index"

	_, err := client.FetchHistoricalData(context.Background(), params)
	suite.NoError(err)
	suite.Equal("I:SPX", mockAPI.params.Ticker)
}

func (suite *PolygonClientTestSuite) TestIteratorError() {
	mockAPI := &mockPolygonAPIClient{iterator: &mockPolygonIterator{err: errors.New("rate limited")}}
	client := NewPolygonClientWithAPI(mockAPI, logger.NewNopLogger())

	_, err := client.FetchHistoricalData(context.Background(), suite.params())
	suite.Error(err)
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeMarketDataFetchFailed))
	suite.Contains(err.Error(), "rate limited")
}

func (suite *PolygonClientTestSuite) TestRejectsQuoteModes() {
	client := NewPolygonClientWithAPI(&mockPolygonAPIClient{}, logger.NewNopLogger())

	params := suite.params()
	params.WhatToShow = "BID_ASK"

	_, err := client.FetchHistoricalData(context.Background(), params)
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeUnsupportedWhatToShow))
}

func (suite *PolygonClientTestSuite) TestMalformedCutoff() {
	client := NewPolygonClientWithAPI(&mockPolygonAPIClient{iterator: &mockPolygonIterator{}}, logger.NewNopLogger())

	params := suite.params()
	params.EndCutoff = "2024-01-03"

	_, err := client.FetchHistoricalData(context.Background(), params)
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeInvalidParameter))
}
