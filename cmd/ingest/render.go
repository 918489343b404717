package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/schollz/progressbar/v3"

	"github.com/rxtech-lab/argo-ingest/internal/ingest"
	"github.com/rxtech-lab/argo-ingest/internal/types"
)

// Style definitions.
var (
	// TitleStyle for headers.
	TitleStyle = lipgloss.NewStyle().Bold(true)

	// HelpStyle for secondary text.
	HelpStyle = lipgloss.NewStyle().Faint(true)

	// ErrorStyle for error messages.
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}

			return cellStyle
		})
}

func renderSummaries(summaries []ingest.SeriesSummary) string {
	t := newTable("Ticker", "Granularity", "Show", "Units", "Completed", "N/A", "Corrupted", "Incomplete", "Pending")

	for _, s := range summaries {
		t.Row(
			s.Ticker,
			string(s.Granularity),
			s.WhatToShow,
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Counts[types.StatusCompleted]),
			strconv.Itoa(s.Counts[types.StatusNotAvailable]),
			strconv.Itoa(s.Counts[types.StatusCorrupted]),
			strconv.Itoa(s.Counts[types.StatusIncomplete]),
			strconv.Itoa(s.Pending()),
		)
	}

	return t.String()
}

func renderReport(report *ingest.CycleReport) string {
	t := newTable("Planned", "Skipped", "Completed", "N/A", "Failed", "Skipped requests")
	t.Row(
		strconv.Itoa(report.Planned),
		strconv.Itoa(report.Skipped),
		strconv.Itoa(report.Completed),
		strconv.Itoa(report.NotAvailable),
		strconv.Itoa(report.Failed),
		strconv.Itoa(report.SkippedRequests),
	)

	out := TitleStyle.Render("Run "+report.RunID) + "\n" + t.String()

	if len(report.Failures) == 0 {
		return out
	}

	failures := newTable("Unit", "Provider", "Reason")
	for _, f := range report.Failures {
		failures.Row(f.Unit, f.Provider, f.Reason)
	}

	return out + "\n" + failures.String()
}

// progressReporter draws one progress bar per cycle.
type progressReporter struct {
	bar *progressbar.ProgressBar
}

func newProgressReporter() *progressReporter {
	return &progressReporter{}
}

func (p *progressReporter) OnProgress(current, total float64, message string) {
	if p.bar == nil || current <= 1 {
		if p.bar != nil {
			_ = p.bar.Finish()
		}

		p.bar = progressbar.NewOptions64(int64(total),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Downloading"),
			progressbar.OptionShowCount(),
		)
	}

	p.bar.Describe(fmt.Sprintf("Downloading %s", message))
	_ = p.bar.Set64(int64(current))
}
