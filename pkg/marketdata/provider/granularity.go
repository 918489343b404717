package provider

import (
	"fmt"
	"strconv"

	"github.com/polygon-io/client-go/rest/models"

	"github.com/rxtech-lab/argo-ingest/internal/types"
	"github.com/rxtech-lab/argo-ingest/pkg/errors"
)

// splitGranularity splits a code such as "15M" into 15 and 'M'.
func splitGranularity(g types.Granularity) (int, byte, error) {
	s := string(g)
	if !g.IsSupported() || len(s) < 2 {
		return 0, 0, errors.Newf(errors.ErrCodeInvalidGranularity, "unsupported granularity %q", s)
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, 0, errors.Wrapf(errors.ErrCodeInvalidGranularity, err, "unsupported granularity %q", s)
	}

	return n, s[len(s)-1], nil
}

// polygonTimespan maps a granularity onto a Polygon aggregate multiplier and timespan.
func polygonTimespan(g types.Granularity) (int, models.Timespan, error) {
	n, unit, err := splitGranularity(g)
	if err != nil {
		return 0, "", err
	}

	switch unit {
	case 'S':
		return n, models.Second, nil
	case 'M':
		return n, models.Minute, nil
	case 'H':
		return n, models.Hour, nil
	case 'D':
		return n, models.Day, nil
	default:
		return n, models.Week, nil
	}
}

// binanceInterval maps a granularity onto a Binance kline interval.
// Binance has no sub-minute klines other than 1s.
// Ref: https://binance-docs.github.io/apidocs/spot/en/#kline-candlestick-data
func binanceInterval(g types.Granularity) (string, error) {
	n, unit, err := splitGranularity(g)
	if err != nil {
		return "", err
	}

	switch unit {
	case 'S':
		if n != 1 {
			return "", errors.Newf(errors.ErrCodeInvalidGranularity, "unsupported granularity for Binance: %s", g)
		}

		return "1s", nil
	case 'M':
		return fmt.Sprintf("%dm", n), nil
	case 'H':
		return fmt.Sprintf("%dh", n), nil
	case 'D':
		return fmt.Sprintf("%dd", n), nil
	default:
		return fmt.Sprintf("%dw", n), nil
	}
}

// ibkrBarSize maps a granularity onto a Client Portal history bar size and period.
// Intraday bars are requested one day at a time, day and week bars one year at a time.
func ibkrBarSize(g types.Granularity) (bar string, period string, err error) {
	n, unit, err := splitGranularity(g)
	if err != nil {
		return "", "", err
	}

	switch unit {
	case 'S':
		return fmt.Sprintf("%dsecs", n), "1d", nil
	case 'M':
		return fmt.Sprintf("%dmin", n), "1d", nil
	case 'H':
		return fmt.Sprintf("%dh", n), "1d", nil
	case 'D':
		return fmt.Sprintf("%dd", n), "1y", nil
	default:
		return fmt.Sprintf("%dw", n), "1y", nil
	}
}

// saxoHorizons maps granularities onto Saxo chart horizons in minutes.
var saxoHorizons = map[types.Granularity]int{
	types.GranularityOneMinute:      1,
	types.GranularityFiveMinutes:    5,
	types.GranularityFifteenMinutes: 15,
	types.GranularityThirtyMinutes:  30,
	types.GranularityOneHour:        60,
	types.GranularityOneDay:         1440,
	types.GranularityOneWeek:        10080,
}

func saxoHorizon(g types.Granularity) (int, error) {
	h, ok := saxoHorizons[g]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeInvalidGranularity, "unsupported granularity for Saxo: %s", g)
	}

	return h, nil
}
