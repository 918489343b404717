package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/argo-ingest/internal/config"
	"github.com/rxtech-lab/argo-ingest/internal/ingest"
	"github.com/rxtech-lab/argo-ingest/internal/planner"
	"github.com/rxtech-lab/argo-ingest/internal/request"
	"github.com/rxtech-lab/argo-ingest/internal/status"
	"github.com/rxtech-lab/argo-ingest/internal/version"
)

// runAction starts the service loop and blocks until SIGINT or SIGTERM.
func runAction(ctx context.Context, cmd *cli.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	orchestrator, err := a.newOrchestrator(newProgressReporter().OnProgress)
	if err != nil {
		return err
	}

	return ingest.NewService(orchestrator, a.cfg.Timing, a.logger, nil).Run(ctx)
}

// onceAction runs a single cycle and prints its report.
func onceAction(ctx context.Context, cmd *cli.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	orchestrator, err := a.newOrchestrator(newProgressReporter().OnProgress)
	if err != nil {
		return err
	}

	defer func() {
		_ = orchestrator.Close(context.WithoutCancel(ctx))
	}()

	report, cycleErr := orchestrator.RunCycle(ctx)
	if report != nil {
		fmt.Println(renderReport(report))
	}

	return cycleErr
}

// statusAction prints per-series status counts for the configured requests.
func statusAction(ctx context.Context, cmd *cli.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	store, err := status.NewStore(a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := ingest.Summarize(ctx, request.NewFileSource(a.cfg.Paths.DownloadRequestsFile), store, planner.New())
	if err != nil {
		return err
	}

	fmt.Println(renderSummaries(summaries))

	if report, err := ingest.ReadReport(a.cfg.Paths.RawDataDir); err == nil {
		fmt.Println(HelpStyle.Render(fmt.Sprintf("Last run %s finished %s",
			report.RunID, report.FinishedAt.Format("2006-01-02 15:04:05"))))
	}

	return nil
}

// schemaAction prints the JSON schema of the download requests file or of the config file.
func schemaAction(_ context.Context, cmd *cli.Command) error {
	var (
		schema string
		err    error
	)

	switch target := cmd.String("target"); target {
	case "requests":
		schema, err = request.Schema()
	case "config":
		schema, err = config.Schema()
	default:
		return fmt.Errorf("unknown schema target %q, expected requests or config", target)
	}

	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "argo-ingest",
		Usage:   "Download, normalize and store historical OHLCV bars",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "config/config.yaml",
				Sources: cli.EnvVars("ARGO_INGEST_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override log.level from the configuration (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run download cycles until interrupted",
				Action: runAction,
			},
			{
				Name:   "once",
				Usage:  "Run a single download cycle and print its report",
				Action: onceAction,
			},
			{
				Name:   "status",
				Usage:  "Show download status per ticker and granularity",
				Action: statusAction,
			},
			{
				Name:  "schema",
				Usage: "Print the JSON schema of the download requests file or the config file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "target",
						Usage: "Schema to print: requests or config",
						Value: "requests",
					},
				},
				Action: schemaAction,
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newCommand().Run(ctx, os.Args)

	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render(err.Error()))
		os.Exit(1)
	}
}
