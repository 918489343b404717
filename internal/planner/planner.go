package planner

import (
	"slices"
	"strconv"
	"time"

	"github.com/rxtech-lab/argo-ingest/internal/types"
	"github.com/rxtech-lab/argo-ingest/pkg/errors"
)

const (
	dateLayout = "2006-01-02"
	// CutoffLayout is the layout of the as-of timestamp handed to providers.
	CutoffLayout = "2006-01-02 15:04:05"
)

// Planner expands a granularity and starting date into the date buckets still to download.
type Planner struct {
	now func() time.Time
}

// Option configures a Planner.
type Option func(*Planner)

// WithClock overrides the clock used to determine "yesterday".
func WithClock(now func() time.Time) Option {
	return func(p *Planner) {
		p.now = now
	}
}

// New creates a Planner using the local wall clock unless overridden.
func New(opts ...Option) *Planner {
	p := &Planner{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Plan returns the buckets from startingDate through yesterday, most recent first.
// Major granularities produce one 4-digit year per bucket, the others one YYYY-MM-DD day.
// Today is never planned because its bar has not closed yet.
func (p *Planner) Plan(granularity types.Granularity, startingDate string) ([]string, error) {
	now := p.now()

	start, err := time.ParseInLocation(dateLayout, startingDate, now.Location())
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidDate, err, "malformed starting_date %q", startingDate)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterday := today.AddDate(0, 0, -1)

	if start.After(yesterday) {
		return []string{}, nil
	}

	var buckets []string

	if granularity.IsMajor() {
		for year := start.Year(); year <= yesterday.Year(); year++ {
			buckets = append(buckets, strconv.Itoa(year))
		}
	} else {
		for d := start; !d.After(yesterday); d = d.AddDate(0, 0, 1) {
			buckets = append(buckets, d.Format(dateLayout))
		}
	}

	slices.Reverse(buckets)

	return buckets, nil
}

// Units plans every (ticker, granularity, bucket) unit of a request, ticker-major and newest first
// within each series. The request is expected to have defaults applied.
func (p *Planner) Units(req types.DownloadRequest) ([]types.DownloadUnit, error) {
	var units []types.DownloadUnit

	for _, ticker := range req.Tickers {
		for _, g := range req.Granularities {
			granularity := types.Granularity(g)

			buckets, err := p.Plan(granularity, req.StartingDate)
			if err != nil {
				return nil, err
			}

			for _, bucket := range buckets {
				units = append(units, types.DownloadUnit{
					Ticker:      ticker,
					Granularity: granularity,
					Bucket:      bucket,
					WhatToShow:  req.WhatToShow,
				})
			}
		}
	}

	return units, nil
}

// EndCutoff returns the as-of timestamp for a bucket: the last second of the year for major
// granularities and the last second of the day otherwise.
func EndCutoff(granularity types.Granularity, bucket string) string {
	if granularity.IsMajor() {
		return bucket + "-12-31 23:59:59"
	}

	return bucket + " 23:59:59"
}

// ParseCutoff parses a cutoff produced by EndCutoff in the given location.
func ParseCutoff(cutoff string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(CutoffLayout, cutoff, loc)
	if err != nil {
		return time.Time{}, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "malformed end cutoff %q", cutoff)
	}

	return t, nil
}
