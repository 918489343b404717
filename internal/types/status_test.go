package types

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type StatusTestSuite struct {
	suite.Suite
}

func TestStatusSuite(t *testing.T) {
	suite.Run(t, new(StatusTestSuite))
}

func (suite *StatusTestSuite) TestIsTerminal() {
	suite.True(StatusCompleted.IsTerminal())
	suite.True(StatusNotAvailable.IsTerminal())
	suite.False(StatusIncomplete.IsTerminal())
	suite.False(StatusCorrupted.IsTerminal())
	suite.False(StatusUnset.IsTerminal())
}

func (suite *StatusTestSuite) TestIsValid() {
	suite.True(StatusUnset.IsValid())
	for _, s := range MarkerStatuses {
		suite.True(s.IsValid(), s.String())
	}
	suite.False(Status("done").IsValid())
}

func (suite *StatusTestSuite) TestString() {
	suite.Equal("unset", StatusUnset.String())
	suite.Equal("not_available", StatusNotAvailable.String())
}

func (suite *StatusTestSuite) TestUnitKey() {
	unit := DownloadUnit{Ticker: "AAPL", Granularity: GranularityOneDay, Bucket: "2024", WhatToShow: "TRADES"}
	suite.Equal("AAPL-2024", unit.Stem())
	suite.Equal("TRADES/1D/AAPL-2024", unit.Key())
	suite.Equal(unit.Key(), unit.String())
}

func (suite *StatusTestSuite) TestRequestDefaults() {
	req := DownloadRequest{Tickers: []string{"SPX"}, Granularities: []string{"1D"}, StartingDate: "2024-01-01", Type: "Index"}
	filled := req.WithDefaults()

	suite.Equal(DefaultCurrency, filled.Currency)
	suite.Equal(DefaultExchange, filled.Exchange)
	suite.Equal("Index", filled.Type)
	suite.Equal(DefaultWhatToShow, filled.WhatToShow)
	suite.Empty(req.Currency)
}
