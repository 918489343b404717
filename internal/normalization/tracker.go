package normalization

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-ingest/internal/logger"
	"github.com/rxtech-lab/argo-ingest/internal/types"
	"github.com/rxtech-lab/argo-ingest/pkg/errors"
)

const (
	recordInstrument  = "instrument"
	recordGranularity = "granularity"

	// legacyInstrument is accepted on load for files written before records were keyed by instrument.
	legacyInstrument = "ticker"
)

// Baseline maps a numeric bar field to the maximum value observed in the first
// batch fetched for a series.
type Baseline map[string]float64

// scale returns the divisor for field. A zero or missing maximum scales by 1 so the
// transform stays finite and invertible.
func (b Baseline) scale(field string) float64 {
	if v := b[field]; v != 0 {
		return v
	}

	return 1
}

type seriesKey struct {
	instrument  string
	granularity types.Granularity
}

// Tracker owns the baseline table for every (instrument, granularity) series and
// converts bars between raw and normalized form.
// A baseline is fixed by the first batch of a series and never overwritten.
type Tracker struct {
	path      string
	logger    *logger.Logger
	baselines map[seriesKey]Baseline
}

// NewTracker loads the baseline table stored at path. A missing file yields an empty table.
func NewTracker(path string, log *logger.Logger) (*Tracker, error) {
	t := &Tracker{
		path:      path,
		logger:    log,
		baselines: make(map[seriesKey]Baseline),
	}

	if err := t.load(); err != nil {
		return nil, err
	}

	return t, nil
}

// Len returns the number of series with a baseline.
func (t *Tracker) Len() int {
	return len(t.baselines)
}

// HasBaseline reports whether a baseline exists for the series.
func (t *Tracker) HasBaseline(instrument string, granularity types.Granularity) bool {
	_, ok := t.baselines[seriesKey{instrument, granularity}]

	return ok
}

// Baseline returns a copy of the series baseline, if any.
func (t *Tracker) Baseline(instrument string, granularity types.Granularity) optional.Option[Baseline] {
	b, ok := t.baselines[seriesKey{instrument, granularity}]
	if !ok {
		return optional.None[Baseline]()
	}

	return optional.Some(copyBaseline(b))
}

// EstablishBaseline records the per-field maximum over bars as the series baseline and
// persists the table. If the series already has a baseline it is returned unchanged.
func (t *Tracker) EstablishBaseline(instrument string, granularity types.Granularity, bars []types.Bar) (Baseline, error) {
	key := seriesKey{instrument, granularity}
	if existing, ok := t.baselines[key]; ok {
		return copyBaseline(existing), nil
	}

	if len(bars) == 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "cannot establish baseline for %s/%s from an empty batch", instrument, granularity)
	}

	baseline := make(Baseline, len(types.NumericFields))

	for i, bar := range bars {
		for _, field := range types.NumericFields {
			v, _ := bar.Field(field)
			if i == 0 || v > baseline[field] {
				baseline[field] = v
			}
		}
	}

	t.baselines[key] = baseline

	if err := t.save(); err != nil {
		delete(t.baselines, key)

		return nil, err
	}

	t.logger.Info("Established normalization baseline",
		zap.String("instrument", instrument),
		zap.String("granularity", string(granularity)),
		zap.Any("baseline", baseline),
	)

	return copyBaseline(baseline), nil
}

// Normalize maps every numeric field v to v / baseline * 2 - 1. Dates are untouched.
func (t *Tracker) Normalize(instrument string, granularity types.Granularity, bars []types.Bar) ([]types.Bar, error) {
	return t.transform(instrument, granularity, bars, func(v, scale float64) float64 {
		return v/scale*2 - 1
	})
}

// Denormalize is the inverse of Normalize: baseline * (v + 1) / 2.
func (t *Tracker) Denormalize(instrument string, granularity types.Granularity, bars []types.Bar) ([]types.Bar, error) {
	return t.transform(instrument, granularity, bars, func(v, scale float64) float64 {
		return scale * (v + 1) / 2
	})
}

func (t *Tracker) transform(instrument string, granularity types.Granularity, bars []types.Bar, fn func(v, scale float64) float64) ([]types.Bar, error) {
	baseline, ok := t.baselines[seriesKey{instrument, granularity}]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeMissingBaseline, "no normalization baseline for %s/%s", instrument, granularity)
	}

	out := make([]types.Bar, 0, len(bars))

	for _, bar := range bars {
		for _, field := range types.NumericFields {
			v, _ := bar.Field(field)
			bar = bar.WithField(field, fn(v, baseline.scale(field)))
		}

		out = append(out, bar)
	}

	return out, nil
}

func (t *Tracker) load() error {
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return errors.Wrapf(errors.ErrCodeBaselineLoadFailed, err, "failed to read baseline file %s", t.path)
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return errors.Wrapf(errors.ErrCodeBaselineLoadFailed, err, "failed to parse baseline file %s", t.path)
	}

	for i, record := range records {
		key, baseline, err := parseRecord(record)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeBaselineLoadFailed, err, "invalid baseline record %d in %s", i, t.path)
		}

		t.baselines[key] = baseline
	}

	t.logger.Debug("Loaded normalization baselines", zap.String("path", t.path), zap.Int("count", len(t.baselines)))

	return nil
}

func parseRecord(record map[string]any) (seriesKey, Baseline, error) {
	instrument, _ := record[recordInstrument].(string)
	if instrument == "" {
		instrument, _ = record[legacyInstrument].(string)
	}

	granularity, _ := record[recordGranularity].(string)

	if instrument == "" || granularity == "" {
		return seriesKey{}, nil, fmt.Errorf("record needs %s and %s", recordInstrument, recordGranularity)
	}

	baseline := make(Baseline)

	for _, field := range types.NumericFields {
		raw, ok := record[field]
		if !ok {
			continue
		}

		v, ok := raw.(float64)
		if !ok {
			return seriesKey{}, nil, fmt.Errorf("field %s is not a number", field)
		}

		baseline[field] = v
	}

	return seriesKey{instrument, types.Granularity(granularity)}, baseline, nil
}

// save rewrites the whole table through a temp file and rename.
func (t *Tracker) save() error {
	keys := make([]seriesKey, 0, len(t.baselines))
	for k := range t.baselines {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].instrument != keys[j].instrument {
			return keys[i].instrument < keys[j].instrument
		}

		return keys[i].granularity < keys[j].granularity
	})

	records := make([]map[string]any, 0, len(keys))

	for _, k := range keys {
		record := map[string]any{
			recordInstrument:  k.instrument,
			recordGranularity: string(k.granularity),
		}
		for field, v := range t.baselines[k] {
			record[field] = v
		}

		records = append(records, record)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeBaselinePersistFailed, "failed to encode baselines", err)
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return errors.Wrapf(errors.ErrCodeBaselinePersistFailed, err, "failed to create directory for %s", t.path)
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(errors.ErrCodeBaselinePersistFailed, err, "failed to write %s", tmp)
	}

	if err := os.Rename(tmp, t.path); err != nil {
		_ = os.Remove(tmp)

		return errors.Wrapf(errors.ErrCodeBaselinePersistFailed, err, "failed to move %s into place", t.path)
	}

	return nil
}

func copyBaseline(b Baseline) Baseline {
	out := make(Baseline, len(b))
	for k, v := range b {
		out[k] = v
	}

	return out
}
