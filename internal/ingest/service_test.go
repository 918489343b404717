package ingest

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-ingest/internal/config"
	"github.com/rxtech-lab/argo-ingest/internal/logger"
	"github.com/rxtech-lab/argo-ingest/pkg/errors"
)

// scriptedRunner returns the queued cycle errors in order.
type scriptedRunner struct {
	results []error
	cycles  int
	closed  int
}

func (r *scriptedRunner) RunCycle(context.Context) (*CycleReport, error) {
	var err error
	if r.cycles < len(r.results) {
		err = r.results[r.cycles]
	}

	r.cycles++

	return &CycleReport{}, err
}

func (r *scriptedRunner) Close(context.Context) error {
	r.closed++

	return nil
}

type ServiceTestSuite struct {
	suite.Suite
	timing config.TimingConfig
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (suite *ServiceTestSuite) SetupTest() {
	suite.timing = config.TimingConfig{
		ConnectionRetrySeconds: 30,
		DownloadCycleSeconds:   3600,
		RequestDelaySeconds:    10,
		ErrorRetrySeconds:      60,
	}
}

// stopAfter records waits and cancels the loop once n waits were requested.
func stopAfter(n int, cancel context.CancelFunc, waits *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		if len(*waits) >= n {
			cancel()
		}

		return ctx.Err()
	}
}

func (suite *ServiceTestSuite) TestWaitDependsOnCycleResult() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &scriptedRunner{results: []error{
		nil,
		errors.New(errors.ErrCodeConnectionFailed, "gateway down"),
		stderrors.Join(errors.New(errors.ErrCodeAuthFailed, "expired")),
		errors.New(errors.ErrCodeInvalidRequest, "bad requests file"),
	}}

	var waits []time.Duration

	service := NewService(runner, suite.timing, logger.NewNopLogger(), stopAfter(4, cancel, &waits))
	suite.NoError(service.Run(ctx))

	suite.Equal([]time.Duration{time.Hour, 30 * time.Second, 30 * time.Second, time.Minute}, waits)
	suite.Equal(4, runner.cycles)
	suite.Equal(1, runner.closed)
}

func (suite *ServiceTestSuite) TestCancelledDuringCycleStopsImmediately() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &scriptedRunner{results: []error{context.Canceled}}

	var waits []time.Duration

	service := NewService(runner, suite.timing, logger.NewNopLogger(), stopAfter(1, cancel, &waits))
	suite.NoError(service.Run(ctx))

	suite.Equal(1, runner.cycles)
	suite.Empty(waits)
	suite.Equal(1, runner.closed)
}

func (suite *ServiceTestSuite) TestDefaultSleepHonoursCancellation() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	suite.ErrorIs(sleepContext(ctx, time.Hour), context.Canceled)
	suite.NoError(sleepContext(context.Background(), 0))
	suite.NoError(sleepContext(context.Background(), time.Millisecond))
}
