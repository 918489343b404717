package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/rxtech-lab/argo-ingest/internal/logger"
	"github.com/rxtech-lab/argo-ingest/internal/planner"
	"github.com/rxtech-lab/argo-ingest/internal/request"
	"github.com/rxtech-lab/argo-ingest/internal/status"
	"github.com/rxtech-lab/argo-ingest/internal/types"
	"github.com/rxtech-lab/argo-ingest/mocks"
	"github.com/rxtech-lab/argo-ingest/pkg/errors"
)

type SummaryTestSuite struct {
	suite.Suite
	planner *planner.Planner
}

func TestSummarySuite(t *testing.T) {
	suite.Run(t, new(SummaryTestSuite))
}

func (suite *SummaryTestSuite) SetupTest() {
	suite.planner = planner.New(planner.WithClock(func() time.Time {
		return time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC)
	}))
}

func (suite *SummaryTestSuite) TestCountsStatusesPerSeries() {
	ctx := context.Background()
	store := status.NewFileStore(suite.T().TempDir(), logger.NewNopLogger())

	suite.Require().NoError(store.Mark(ctx, hourUnit("AAPL", "2024-01-03"), types.StatusCompleted))
	suite.Require().NoError(store.Mark(ctx, hourUnit("AAPL", "2024-01-02"), types.StatusCorrupted))

	invalid := hourlyRequest("TSLA")
	invalid.StartingDate = "yesterday"

	summaries, err := Summarize(ctx, request.StaticSource{hourlyRequest("AAPL", "MSFT"), invalid}, store, suite.planner)
	suite.Require().NoError(err)
	suite.Require().Len(summaries, 2)

	aapl := summaries[0]
	suite.Equal("AAPL", aapl.Ticker)
	suite.Equal(types.GranularityOneHour, aapl.Granularity)
	suite.Equal("TRADES", aapl.WhatToShow)
	suite.Equal(2, aapl.Total)
	suite.Equal(1, aapl.Counts[types.StatusCompleted])
	suite.Equal(1, aapl.Counts[types.StatusCorrupted])
	suite.Equal(1, aapl.Pending())

	msft := summaries[1]
	suite.Equal("MSFT", msft.Ticker)
	suite.Equal(2, msft.Counts[types.StatusUnset])
	suite.Equal(2, msft.Pending())
}

func (suite *SummaryTestSuite) TestPropagatesSourceAndStoreErrors() {
	ctrl := gomock.NewController(suite.T())

	source := mocks.NewMockSource(ctrl)
	source.EXPECT().Load().Return(nil, errors.New(errors.ErrCodeInvalidRequest, "bad yaml"))

	_, err := Summarize(context.Background(), source, mocks.NewMockStore(ctrl), suite.planner)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidRequest))

	store := mocks.NewMockStore(ctrl)
	store.EXPECT().StatusOf(gomock.Any(), gomock.Any()).
		Return(types.StatusUnset, errors.New(errors.ErrCodeStatusReadFailed, "io"))

	_, err = Summarize(context.Background(), request.StaticSource{hourlyRequest("AAPL")}, store, suite.planner)
	suite.True(errors.HasCode(err, errors.ErrCodeStatusReadFailed))
}
