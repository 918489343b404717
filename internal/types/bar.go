package types

import "time"

// Bar field names as they appear in artifacts and baseline records.
const (
	FieldDate     = "date"
	FieldOpen     = "open"
	FieldHigh     = "high"
	FieldLow      = "low"
	FieldClose    = "close"
	FieldVolume   = "volume"
	FieldAverage  = "average"
	FieldBarCount = "barCount"
)

// NumericFields lists every bar field that takes part in normalization, in artifact column order.
// The date field is never transformed.
var NumericFields = []string{
	FieldOpen,
	FieldHigh,
	FieldLow,
	FieldClose,
	FieldVolume,
	FieldAverage,
	FieldBarCount,
}

// Bar is one OHLCV sample. Fields a provider does not report are left at zero.
type Bar struct {
	Date     time.Time `json:"date" csv:"date"`
	Open     float64   `json:"open" csv:"open"`
	High     float64   `json:"high" csv:"high"`
	Low      float64   `json:"low" csv:"low"`
	Close    float64   `json:"close" csv:"close"`
	Volume   float64   `json:"volume" csv:"volume"`
	Average  float64   `json:"average" csv:"average"`
	BarCount float64   `json:"barCount" csv:"barCount"`
}

// Field returns the value of a numeric field by name.
func (b Bar) Field(name string) (float64, bool) {
	switch name {
	case FieldOpen:
		return b.Open, true
	case FieldHigh:
		return b.High, true
	case FieldLow:
		return b.Low, true
	case FieldClose:
		return b.Close, true
	case FieldVolume:
		return b.Volume, true
	case FieldAverage:
		return b.Average, true
	case FieldBarCount:
		return b.BarCount, true
	default:
		return 0, false
	}
}

// WithField returns a copy of the bar with the named numeric field replaced.
// Unknown names leave the bar unchanged.
func (b Bar) WithField(name string, v float64) Bar {
	switch name {
	case FieldOpen:
		b.Open = v
	case FieldHigh:
		b.High = v
	case FieldLow:
		b.Low = v
	case FieldClose:
		b.Close = v
	case FieldVolume:
		b.Volume = v
	case FieldAverage:
		b.Average = v
	case FieldBarCount:
		b.BarCount = v
	}

	return b
}
