package writer

import (
	"os"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/rxtech-lab/argo-ingest/internal/types"
)

// DateLayout is the timestamp layout used in CSV artifacts.
const DateLayout = "2006-01-02 15:04:05"

type csvBar struct {
	Date     string  `csv:"date"`
	Open     float64 `csv:"open"`
	High     float64 `csv:"high"`
	Low      float64 `csv:"low"`
	Close    float64 `csv:"close"`
	Volume   float64 `csv:"volume"`
	Average  float64 `csv:"average"`
	BarCount float64 `csv:"barCount"`
}

// CSVWriter writes bars as a headed CSV file with one row per bar.
type CSVWriter struct{}

func (CSVWriter) Extension() string { return FormatCSV }

func (CSVWriter) Write(path string, bars []types.Bar) error {
	rows := make([]csvBar, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, csvBar{
			Date:     b.Date.UTC().Format(DateLayout),
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			Volume:   b.Volume,
			Average:  b.Average,
			BarCount: b.BarCount,
		})
	}

	return writeAtomic(path, func(f *os.File) error {
		return gocsv.MarshalFile(&rows, f)
	})
}

// ReadCSV loads bars written by CSVWriter.
func ReadCSV(path string) ([]types.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []csvBar
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, err
	}

	bars := make([]types.Bar, 0, len(rows))

	for _, r := range rows {
		date, err := time.ParseInLocation(DateLayout, r.Date, time.UTC)
		if err != nil {
			return nil, err
		}

		bars = append(bars, types.Bar{
			Date:     date,
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			Volume:   r.Volume,
			Average:  r.Average,
			BarCount: r.BarCount,
		})
	}

	return bars, nil
}
