package ingest

import (
	"context"

	"github.com/rxtech-lab/argo-ingest/internal/planner"
	"github.com/rxtech-lab/argo-ingest/internal/request"
	"github.com/rxtech-lab/argo-ingest/internal/status"
	"github.com/rxtech-lab/argo-ingest/internal/types"
)

// SeriesSummary counts unit statuses for one (ticker, granularity, what-to-show) series.
type SeriesSummary struct {
	Ticker      string
	Granularity types.Granularity
	WhatToShow  string
	Total       int
	Counts      map[types.Status]int
}

// Pending is the number of units a cycle would still attempt.
func (s SeriesSummary) Pending() int {
	return s.Total - s.Counts[types.StatusCompleted] - s.Counts[types.StatusNotAvailable]
}

// Summarize plans every valid request and reports the stored status of each unit per series.
// Invalid requests are left out.
func Summarize(ctx context.Context, src request.Source, store status.Store, p *planner.Planner) ([]SeriesSummary, error) {
	requests, err := src.Load()
	if err != nil {
		return nil, err
	}

	var summaries []SeriesSummary

	for _, req := range requests {
		req = req.WithDefaults()
		if request.Validate(req) != nil {
			continue
		}

		for _, ticker := range req.Tickers {
			for _, g := range req.Granularities {
				granularity := types.Granularity(g)

				buckets, err := p.Plan(granularity, req.StartingDate)
				if err != nil {
					return nil, err
				}

				summary := SeriesSummary{
					Ticker:      ticker,
					Granularity: granularity,
					WhatToShow:  req.WhatToShow,
					Total:       len(buckets),
					Counts:      make(map[types.Status]int),
				}

				for _, bucket := range buckets {
					st, err := store.StatusOf(ctx, types.DownloadUnit{
						Ticker:      ticker,
						Granularity: granularity,
						Bucket:      bucket,
						WhatToShow:  req.WhatToShow,
					})
					if err != nil {
						return nil, err
					}

					summary.Counts[st]++
				}

				summaries = append(summaries, summary)
			}
		}
	}

	return summaries, nil
}
