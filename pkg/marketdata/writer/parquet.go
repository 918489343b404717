package writer

import (
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/rxtech-lab/argo-ingest/internal/types"
)

// parquetBar stores the date as unix milliseconds.
type parquetBar struct {
	Date     int64   `parquet:"date"`
	Open     float64 `parquet:"open"`
	High     float64 `parquet:"high"`
	Low      float64 `parquet:"low"`
	Close    float64 `parquet:"close"`
	Volume   float64 `parquet:"volume"`
	Average  float64 `parquet:"average"`
	BarCount float64 `parquet:"barCount"`
}

// ParquetWriter writes bars as a single Parquet file.
type ParquetWriter struct{}

func (ParquetWriter) Extension() string { return FormatParquet }

func (ParquetWriter) Write(path string, bars []types.Bar) error {
	rows := make([]parquetBar, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, parquetBar{
			Date:     b.Date.UnixMilli(),
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
		return parquet.Write(f, rows)
	})
}

// ReadParquet loads bars written by ParquetWriter.
func ReadParquet(path string) ([]types.Bar, error) {
	rows, err := parquet.ReadFile[parquetBar](path)
	if err != nil {
		return nil, err
	}

	bars := make([]types.Bar, 0, len(rows))
	for _, r := range rows {
		bars = append(bars, types.Bar{
			Date:     time.UnixMilli(r.Date).UTC(),
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
