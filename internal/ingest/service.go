package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-ingest/internal/config"
	"github.com/rxtech-lab/argo-ingest/internal/logger"
	"github.com/rxtech-lab/argo-ingest/pkg/errors"
)

// CycleRunner runs ingestion cycles.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*CycleReport, error)
	Close(ctx context.Context) error
}

// Service repeats download cycles until its context is cancelled.
type Service struct {
	runner CycleRunner
	timing config.TimingConfig
	logger *logger.Logger
	sleep  SleepFunc
}

// NewService creates a Service. A nil sleep uses a context-aware timer.
func NewService(runner CycleRunner, timing config.TimingConfig, log *logger.Logger, sleep SleepFunc) *Service {
	if sleep == nil {
		sleep = sleepContext
	}

	return &Service{
		runner: runner,
		timing: timing,
		logger: log,
		sleep:  sleep,
	}
}

// Run loops: run a cycle, then wait download_cycle_seconds, or connection_retry_seconds after a
// connection failure, or error_retry_seconds after any other cycle error. It returns nil once ctx
// is cancelled, after closing the runner.
func (s *Service) Run(ctx context.Context) error {
	defer func() {
		if err := s.runner.Close(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to close providers", zap.Error(err))
		}
	}()

	for {
		_, err := s.runner.RunCycle(ctx)
		if ctx.Err() != nil {
			s.logger.Info("Ingestion service stopping")

			return nil
		}

		wait := s.nextWait(err)

		if err != nil {
			s.logger.Error("Download cycle failed", zap.Error(err), zap.Duration("retry_in", wait))
		} else {
			s.logger.Info("Download cycle done", zap.Duration("next_in", wait))
		}

		if err := s.sleep(ctx, wait); err != nil {
			s.logger.Info("Ingestion service stopping")

			return nil
		}
	}
}

func (s *Service) nextWait(err error) time.Duration {
	switch {
	case err == nil:
		return s.timing.DownloadCycle()
	case errors.IsConnectionError(err):
		return s.timing.ConnectionRetry()
	default:
		return s.timing.ErrorRetry()
	}
}
