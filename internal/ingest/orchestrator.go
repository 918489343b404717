package ingest

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-ingest/internal/logger"
	"github.com/rxtech-lab/argo-ingest/internal/normalization"
	"github.com/rxtech-lab/argo-ingest/internal/planner"
	"github.com/rxtech-lab/argo-ingest/internal/request"
	"github.com/rxtech-lab/argo-ingest/internal/status"
	"github.com/rxtech-lab/argo-ingest/internal/types"
	"github.com/rxtech-lab/argo-ingest/pkg/errors"
	"github.com/rxtech-lab/argo-ingest/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-ingest/pkg/marketdata/writer"
)

// OnProgress is called once per planned unit with the running position in the cycle.
type OnProgress = func(current float64, total float64, message string)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options wires an Orchestrator.
type Options struct {
	Requests        request.Source
	Store           status.Store
	Tracker         *normalization.Tracker
	Writer          writer.BarWriter
	RawRoot         string
	ProcessedRoot   string
	Providers       provider.Factory
	DefaultProvider string
	Planner         *planner.Planner
	// RequestDelay is the pause after every unit that reached a provider.
	RequestDelay time.Duration
	Logger       *logger.Logger
	OnProgress   OnProgress
	// Sleep defaults to a context-aware timer.
	Sleep SleepFunc
	// Now defaults to time.Now and only stamps reports.
	Now func() time.Time
}

// Orchestrator runs ingestion cycles: plan, filter by status, fetch, mark, normalize and persist.
// It processes one unit at a time and owns the provider connections it opens.
type Orchestrator struct {
	requests        request.Source
	store           status.Store
	tracker         *normalization.Tracker
	writer          writer.BarWriter
	raw             writer.Layout
	processed       writer.Layout
	rawRoot         string
	providers       provider.Factory
	defaultProvider string
	planner         *planner.Planner
	delay           time.Duration
	logger          *logger.Logger
	onProgress      OnProgress
	sleep           SleepFunc
	now             func() time.Time
	connected       map[string]provider.Provider
}

// plannedRequest is a validated request with its units and resolved provider.
type plannedRequest struct {
	request  types.DownloadRequest
	provider string
	units    []types.DownloadUnit
}

// NewOrchestrator validates opts and creates an Orchestrator.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Requests == nil:
		return nil, errors.New(errors.ErrCodeMissingParameter, "request source is required")
	case opts.Store == nil:
		return nil, errors.New(errors.ErrCodeMissingParameter, "status store is required")
	case opts.Tracker == nil:
		return nil, errors.New(errors.ErrCodeMissingParameter, "normalization tracker is required")
	case opts.Writer == nil:
		return nil, errors.New(errors.ErrCodeMissingParameter, "bar writer is required")
	case opts.Providers == nil:
		return nil, errors.New(errors.ErrCodeMissingParameter, "provider factory is required")
	case opts.RawRoot == "" || opts.ProcessedRoot == "":
		return nil, errors.New(errors.ErrCodeMissingParameter, "raw and processed roots are required")
	case opts.RawRoot == opts.ProcessedRoot:
		return nil, errors.New(errors.ErrCodeInvalidParameter, "raw and processed roots must differ")
	}

	o := &Orchestrator{
		requests:        opts.Requests,
		store:           opts.Store,
		tracker:         opts.Tracker,
		writer:          opts.Writer,
		raw:             writer.NewLayout(opts.RawRoot),
		processed:       writer.NewLayout(opts.ProcessedRoot),
		rawRoot:         opts.RawRoot,
		providers:       opts.Providers,
		defaultProvider: opts.DefaultProvider,
		planner:         opts.Planner,
		delay:           opts.RequestDelay,
		logger:          opts.Logger,
		onProgress:      opts.OnProgress,
		sleep:           opts.Sleep,
		now:             opts.Now,
		connected:       make(map[string]provider.Provider),
	}

	if o.planner == nil {
		o.planner = planner.New()
	}

	if o.logger == nil {
		o.logger = logger.NewNopLogger()
	}

	if o.sleep == nil {
		o.sleep = sleepContext
	}

	if o.now == nil {
		o.now = time.Now
	}

	if o.defaultProvider == "" {
		o.defaultProvider = string(provider.ProviderIBKR)
	}

	return o, nil
}

// RunCycle makes one pass over every download request.
// Unit failures are recorded in the report and never returned. The returned error joins the
// connection failures of the cycle, a request-source failure, or the context error when cancelled.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleReport, error) {
	report := newCycleReport(o.now())

	o.logger.Info("Starting download cycle", zap.String("run_id", report.RunID))

	requests, err := o.requests.Load()
	if err != nil {
		o.logger.Error("Failed to load download requests", zap.Error(err))
		o.finish(report)

		return report, err
	}

	report.Requests = len(requests)
	planned := o.plan(requests, report)

	total := 0
	for _, p := range planned {
		total += len(p.units)
	}

	report.Planned = total

	var (
		connErrs []error
		failed   = make(map[string]bool)
		current  = 0
		cycleErr error
	)

cycle:
	for _, p := range planned {
		if failed[p.provider] {
			report.skipRequest(p.provider, fmt.Errorf("provider %s unavailable this cycle", p.provider))
			current += len(p.units)

			continue
		}

		prov, err := o.provider(ctx, p.provider)
		if err != nil {
			if ctx.Err() != nil {
				cycleErr = ctx.Err()

				break
			}

			report.skipRequest(p.provider, err)
			current += len(p.units)

			if errors.IsConnectionError(err) {
				o.logger.Error("Provider connection failed, skipping its requests this cycle",
					zap.String("provider", p.provider), zap.Error(err))

				failed[p.provider] = true
				connErrs = append(connErrs, err)
			} else {
				o.logger.Error("Failed to create provider, skipping request",
					zap.String("provider", p.provider), zap.Error(err))
			}

			continue
		}

		for i, unit := range p.units {
			if err := ctx.Err(); err != nil {
				cycleErr = err

				break cycle
			}

			current++
			o.progress(current, total, unit.Key())

			outcome, err := o.runUnit(ctx, prov, p.request, unit)
			report.record(unit.Key(), outcome, err)

			if outcome == OutcomeCancelled {
				cycleErr = ctx.Err()

				break cycle
			}

			if outcome == OutcomeSkipped {
				continue
			}

			if errors.IsConnectionError(err) {
				o.logger.Error("Provider connection lost, skipping its remaining requests this cycle",
					zap.String("provider", p.provider), zap.Error(err))

				o.drop(ctx, p.provider)
				failed[p.provider] = true
				connErrs = append(connErrs, err)
				current += len(p.units) - i - 1

				continue cycle
			}

			if err := o.sleep(ctx, o.delay); err != nil {
				cycleErr = err

				break cycle
			}
		}
	}

	o.finish(report)

	if cycleErr != nil {
		connErrs = append(connErrs, cycleErr)
	}

	return report, stderrors.Join(connErrs...)
}

// plan validates each request and expands it into units. Invalid requests are skipped.
func (o *Orchestrator) plan(requests []types.DownloadRequest, report *CycleReport) []plannedRequest {
	planned := make([]plannedRequest, 0, len(requests))

	for i, req := range requests {
		req = req.WithDefaults()

		providerName := req.Provider
		if providerName == "" {
			providerName = o.defaultProvider
		}

		err := request.Validate(req)
		if err == nil {
			_, err = provider.GetProviderInfo(providerName)
		}

		var units []types.DownloadUnit
		if err == nil {
			units, err = o.planner.Units(req)
		}

		if err != nil {
			o.logger.Error("Skipping invalid download request",
				zap.Int("index", i),
				zap.Strings("tickers", req.Tickers),
				zap.Error(err),
			)
			report.skipRequest(providerName, err)

			continue
		}

		planned = append(planned, plannedRequest{request: req, provider: providerName, units: units})
	}

	return planned
}

// runUnit drives one unit through the status state machine. Errors and panics are contained
// here: the unit is marked corrupted and the returned outcome is OutcomeFailed.
func (o *Orchestrator) runUnit(ctx context.Context, prov provider.Provider, req types.DownloadRequest, unit types.DownloadUnit) (outcome Outcome, err error) {
	log := o.logger.With(zap.String("unit", unit.Key()), zap.String("provider", prov.Name()))

	needs, err := o.store.NeedsDownload(ctx, unit)
	if err != nil {
		log.Error("Failed to read unit status", zap.Error(err))

		return OutcomeFailed, err
	}

	if !needs {
		return OutcomeSkipped, nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrCodeUnknown, "panic while processing %s: %v", unit, r)
			outcome = o.fail(ctx, log, unit, err)
		}
	}()

	if err := o.store.Mark(ctx, unit, types.StatusIncomplete); err != nil {
		log.Error("Failed to mark unit incomplete", zap.Error(err))

		return OutcomeFailed, err
	}

	bars, err := prov.FetchHistoricalData(ctx, provider.FetchParams{
		Ticker:       unit.Ticker,
		Granularity:  unit.Granularity,
		EndCutoff:    planner.EndCutoff(unit.Granularity, unit.Bucket),
		Currency:     req.Currency,
		Exchange:     req.Exchange,
		ContractType: req.Type,
		WhatToShow:   req.WhatToShow,
	})
	if err != nil {
		if ctx.Err() != nil {
			// Left incomplete; retried from scratch next cycle.
			log.Warn("Fetch cancelled", zap.Error(err))

			return OutcomeCancelled, ctx.Err()
		}

		return o.fail(ctx, log, unit, err), err
	}

	if len(bars) == 0 {
		if err := o.store.Mark(ctx, unit, types.StatusNotAvailable); err != nil {
			log.Error("Failed to mark unit not available", zap.Error(err))

			return OutcomeFailed, err
		}

		log.Info("No data available")

		return OutcomeNotAvailable, nil
	}

	if err := o.persist(unit, bars); err != nil {
		if errors.HasCode(err, errors.ErrCodeMissingBaseline) {
			log.Error("Baseline missing after it was established", zap.Error(err))
		}

		return o.fail(ctx, log, unit, err), err
	}

	if err := o.store.Mark(ctx, unit, types.StatusCompleted); err != nil {
		log.Error("Failed to mark unit completed", zap.Error(err))

		return OutcomeFailed, err
	}

	log.Info("Unit completed", zap.Int("bars", len(bars)))

	return OutcomeCompleted, nil
}

// persist writes the raw bars, fixes the series baseline if needed and writes the normalized bars.
func (o *Orchestrator) persist(unit types.DownloadUnit, bars []types.Bar) error {
	ext := o.writer.Extension()

	if err := o.writer.Write(o.raw.Path(unit, ext), bars); err != nil {
		return err
	}

	if _, err := o.tracker.EstablishBaseline(unit.Ticker, unit.Granularity, bars); err != nil {
		return err
	}

	normalized, err := o.tracker.Normalize(unit.Ticker, unit.Granularity, bars)
	if err != nil {
		return err
	}

	return o.writer.Write(o.processed.Path(unit, ext), normalized)
}

func (o *Orchestrator) fail(ctx context.Context, log *zap.Logger, unit types.DownloadUnit, cause error) Outcome {
	log.Error("Unit failed", zap.Error(cause))

	// The mark must land even if the cycle is being cancelled.
	if err := o.store.Mark(context.WithoutCancel(ctx), unit, types.StatusCorrupted); err != nil {
		log.Error("Failed to mark unit corrupted", zap.Error(err))
	}

	return OutcomeFailed
}

// provider returns a connected provider, creating and connecting it on first use.
func (o *Orchestrator) provider(ctx context.Context, name string) (provider.Provider, error) {
	if p, ok := o.connected[name]; ok {
		return p, nil
	}

	p, err := o.providers(name)
	if err != nil {
		return nil, err
	}

	if err := p.Connect(ctx); err != nil {
		return nil, err
	}

	o.logger.Info("Connected provider", zap.String("provider", name))
	o.connected[name] = p

	return p, nil
}

// drop disconnects a provider so the next cycle reconnects it.
func (o *Orchestrator) drop(ctx context.Context, name string) {
	p, ok := o.connected[name]
	if !ok {
		return
	}

	delete(o.connected, name)

	if err := p.Disconnect(ctx); err != nil {
		o.logger.Warn("Failed to disconnect provider", zap.String("provider", name), zap.Error(err))
	}
}

func (o *Orchestrator) progress(current, total int, message string) {
	if o.onProgress != nil {
		o.onProgress(float64(current), float64(total), message)
	}
}

func (o *Orchestrator) finish(report *CycleReport) {
	report.FinishedAt = o.now()

	o.logger.Info("Download cycle finished",
		zap.String("run_id", report.RunID),
		zap.Int("planned", report.Planned),
		zap.Int("skipped", report.Skipped),
		zap.Int("completed", report.Completed),
		zap.Int("not_available", report.NotAvailable),
		zap.Int("failed", report.Failed),
		zap.Int("skipped_requests", report.SkippedRequests),
	)

	if err := WriteReport(o.rawRoot, report); err != nil {
		o.logger.Warn("Failed to write cycle report", zap.Error(err))
	}
}

// Close disconnects every provider this orchestrator connected.
func (o *Orchestrator) Close(ctx context.Context) error {
	var errs []error

	for name, p := range o.connected {
		if err := p.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to disconnect %s: %w", name, err))
		}

		delete(o.connected, name)
	}

	return stderrors.Join(errs...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
