package writer

import (
	"encoding/json"
	"os"

	"github.com/rxtech-lab/argo-ingest/internal/types"
)

// JSONWriter writes bars as an indented JSON array.
type JSONWriter struct{}

func (JSONWriter) Extension() string { return FormatJSON }

func (JSONWriter) Write(path string, bars []types.Bar) error {
	if bars == nil {
		bars = []types.Bar{}
	}

	return writeAtomic(path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")

		return enc.Encode(bars)
	})
}

// ReadJSON loads bars written by JSONWriter.
func ReadJSON(path string) ([]types.Bar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var bars []types.Bar
	if err := json.Unmarshal(data, &bars); err != nil {
		return nil, err
	}

	return bars, nil
}
