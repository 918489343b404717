package types

import (
	"strings"
	"time"
)

// Granularity is a sampling interval code such as 1S, 5M, 1H, 1D or 1W.
// The suffix selects the unit: S seconds, M minutes, H hours, D days, W weeks.
type Granularity string

const (
	GranularityOneSecond      Granularity = "1S"
	GranularityFiveSeconds    Granularity = "5S"
	GranularityFifteenSeconds Granularity = "15S"
	GranularityThirtySeconds  Granularity = "30S"
	GranularityOneMinute      Granularity = "1M"
	GranularityFiveMinutes    Granularity = "5M"
	GranularityFifteenMinutes Granularity = "15M"
	GranularityThirtyMinutes  Granularity = "30M"
	GranularityOneHour        Granularity = "1H"
	GranularityOneDay         Granularity = "1D"
	GranularityOneWeek        Granularity = "1W"
)

// SupportedGranularities is the set of codes accepted in download requests.
var SupportedGranularities = []Granularity{
	GranularityOneSecond,
	GranularityFiveSeconds,
	GranularityFifteenSeconds,
	GranularityThirtySeconds,
	GranularityOneMinute,
	GranularityFiveMinutes,
	GranularityFifteenMinutes,
	GranularityThirtyMinutes,
	GranularityOneHour,
	GranularityOneDay,
	GranularityOneWeek,
}

// IsMajor reports whether the granularity is bucketed by calendar year (day or week bars).
func (g Granularity) IsMajor() bool {
	s := string(g)

	return strings.HasSuffix(s, "D") || strings.HasSuffix(s, "W")
}

// IsSupported reports whether g is one of SupportedGranularities.
func (g Granularity) IsSupported() bool {
	for _, s := range SupportedGranularities {
		if s == g {
			return true
		}
	}

	return false
}

// WindowStart returns the first instant covered by a fetch that ends at cutoff.
// Major granularities cover one year, the others one day.
func (g Granularity) WindowStart(cutoff time.Time) time.Time {
	if g.IsMajor() {
		return cutoff.AddDate(-1, 0, 0).Add(time.Second)
	}

	return cutoff.AddDate(0, 0, -1).Add(time.Second)
}

func (g Granularity) String() string {
	return string(g)
}
