package request

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"github.com/rxtech-lab/argo-ingest/internal/types"
	"github.com/rxtech-lab/argo-ingest/pkg/errors"
)

// Source yields the download requests for one ingestion cycle.
type Source interface {
	Load() ([]types.DownloadRequest, error)
}

// FileSource reads download requests from a JSON file on every Load,
// so edits to the file take effect on the next cycle.
type FileSource struct {
	path     string
	validate *validator.Validate
}

// NewFileSource creates a Source backed by the JSON file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{
		path:     path,
		validate: validator.New(),
	}
}

// Load reads and decodes the file. Records are returned as written (defaults are not applied),
// so that a malformed record can be reported and skipped by the caller without hiding the others.
func (s *FileSource) Load() ([]types.DownloadRequest, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read download requests file %s", s.path)
	}

	return Parse(data)
}

// Parse decodes a JSON list of download requests.
func Parse(data []byte) ([]types.DownloadRequest, error) {
	var requests []types.DownloadRequest
	if err := json.Unmarshal(data, &requests); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "failed to parse download requests", err)
	}

	return requests, nil
}

// Validate checks a single request: required fields, date format, granularity codes and enum values.
func Validate(req types.DownloadRequest) error {
	if err := validator.New().Struct(req); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidRequest, "invalid download request", err)
	}

	for _, g := range req.Granularities {
		if !types.Granularity(g).IsSupported() {
			return errors.Newf(errors.ErrCodeInvalidGranularity, "unsupported granularity %q", g)
		}
	}

	return nil
}

// StaticSource serves a fixed list of requests.
type StaticSource []types.DownloadRequest

func (s StaticSource) Load() ([]types.DownloadRequest, error) {
	return s, nil
}

// Schema returns the JSON schema of the download requests file.
func Schema() (string, error) {
	reflector := &jsonschema.Reflector{ExpandedStruct: true, DoNotReference: true}
	item := reflector.Reflect(&types.DownloadRequest{})
	item.Version = ""

	//nolint:exhaustruct // third-party struct with many optional fields
	schema := &jsonschema.Schema{
		Version: jsonschema.Version,
		Title:   "Download Requests",
		Type:    "array",
		Items:   item,
	}

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}

	return string(out), nil
}
