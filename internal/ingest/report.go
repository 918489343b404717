package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rxtech-lab/argo-ingest/internal/version"
	"github.com/rxtech-lab/argo-ingest/pkg/errors"
)

// ReportFileName is the name of the cycle report written below the raw data root.
const ReportFileName = ".lastrun.json"

// Outcome is the result of handling one download unit in a cycle.
type Outcome string

const (
	OutcomeSkipped      Outcome = "skipped"
	OutcomeCompleted    Outcome = "completed"
	OutcomeNotAvailable Outcome = "not_available"
	OutcomeFailed       Outcome = "failed"
	OutcomeCancelled    Outcome = "cancelled"
)

// Failure records why a unit or a whole request did not complete.
type Failure struct {
	Unit     string `json:"unit,omitempty"`
	Provider string `json:"provider,omitempty"`
	Reason   string `json:"reason"`
}

// CycleReport summarises one pass over the download requests.
type CycleReport struct {
	RunID           string    `json:"run_id"`
	Version         string    `json:"version"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Requests        int       `json:"requests"`
	SkippedRequests int       `json:"skipped_requests"`
	Planned         int       `json:"planned"`
	Skipped         int       `json:"skipped"`
	Completed       int       `json:"completed"`
	NotAvailable    int       `json:"not_available"`
	Failed          int       `json:"failed"`
	Failures        []Failure `json:"failures,omitempty"`
}

func newCycleReport(now time.Time) *CycleReport {
	return &CycleReport{
		RunID:     uuid.New().String(),
		Version:   version.GetVersion(),
		StartedAt: now,
	}
}

// Attempted is the number of units that reached a provider fetch.
func (r *CycleReport) Attempted() int {
	return r.Completed + r.NotAvailable + r.Failed
}

func (r *CycleReport) record(unit string, outcome Outcome, reason error) {
	switch outcome {
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeCompleted:
		r.Completed++
	case OutcomeNotAvailable:
		r.NotAvailable++
	case OutcomeFailed:
		r.Failed++
		r.Failures = append(r.Failures, Failure{Unit: unit, Reason: errorReason(reason)})
	case OutcomeCancelled:
	}
}

func (r *CycleReport) skipRequest(providerName string, reason error) {
	r.SkippedRequests++
	r.Failures = append(r.Failures, Failure{Provider: providerName, Reason: errorReason(reason)})
}

func errorReason(err error) string {
	if err == nil {
		return "unknown"
	}

	return err.Error()
}

// WriteReport stores the report as indented JSON at <dir>/.lastrun.json.
func WriteReport(dir string, report *CycleReport) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to create report directory %s", dir)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to encode cycle report", err)
	}

	path := filepath.Join(dir, ReportFileName)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to write %s", tmp)
	}

	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to move %s into place", path)
	}

	return nil
}

// ReadReport loads the report written by the last cycle.
func ReadReport(dir string) (*CycleReport, error) {
	data, err := os.ReadFile(filepath.Join(dir, ReportFileName))
	if err != nil {
		return nil, err
	}

	var report CycleReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}

	return &report, nil
}

// CheckDataVersion compares the version stamped in the last report under dir with this binary.
// A root without a report is compatible.
func CheckDataVersion(dir string) error {
	report, err := ReadReport(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read cycle report in %s", dir)
	}

	return version.CheckDataCompatibility(version.GetVersion(), report.Version)
}
