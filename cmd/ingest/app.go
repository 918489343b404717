package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-ingest/internal/config"
	"github.com/rxtech-lab/argo-ingest/internal/ingest"
	"github.com/rxtech-lab/argo-ingest/internal/logger"
	"github.com/rxtech-lab/argo-ingest/internal/normalization"
	"github.com/rxtech-lab/argo-ingest/internal/request"
	"github.com/rxtech-lab/argo-ingest/internal/status"
	"github.com/rxtech-lab/argo-ingest/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-ingest/pkg/marketdata/writer"
)

// app holds what every command needs: the loaded config, a logger and the closers of
// whatever it opened.
type app struct {
	cfg     *config.Config
	logger  *logger.Logger
	closers []func() error
}

func loadApp(cmd *cli.Command) (*app, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}

	log, err := logger.NewLoggerWithLevel(level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &app{cfg: cfg, logger: log}, nil
}

// newOrchestrator wires the status store, tracker, writer and provider factory from the config.
func (a *app) newOrchestrator(onProgress ingest.OnProgress) (*ingest.Orchestrator, error) {
	if err := ingest.CheckDataVersion(a.cfg.Paths.RawDataDir); err != nil {
		a.logger.Warn("Data root may not be resumable by this version", zap.Error(err))
	}

	store, err := status.NewStore(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}

	a.closers = append(a.closers, store.Close)

	tracker, err := normalization.NewTracker(a.cfg.Paths.NormalizationFile, a.logger)
	if err != nil {
		return nil, err
	}

	barWriter, err := writer.NewBarWriter(string(a.cfg.Storage.Format))
	if err != nil {
		return nil, err
	}

	return ingest.NewOrchestrator(ingest.Options{
		Requests:        request.NewFileSource(a.cfg.Paths.DownloadRequestsFile),
		Store:           store,
		Tracker:         tracker,
		Writer:          barWriter,
		RawRoot:         a.cfg.Paths.RawDataDir,
		ProcessedRoot:   a.cfg.Paths.ProcessedDataDir,
		Providers:       provider.NewFactory(a.cfg, a.logger, provider.WithAuthorizeHandler(printAuthorizeURL)),
		DefaultProvider: a.cfg.Provider,
		RequestDelay:    a.cfg.Timing.RequestDelay(),
		Logger:          a.logger,
		OnProgress:      onProgress,
	})
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}

	_ = a.logger.Sync()
}

func printAuthorizeURL(authURL string) {
	fmt.Fprintln(os.Stderr, TitleStyle.Render("Open this URL to authorize Saxo access:"))
	fmt.Fprintln(os.Stderr, authURL)
}
