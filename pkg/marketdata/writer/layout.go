package writer

import (
	"path/filepath"

	"github.com/rxtech-lab/argo-ingest/internal/types"
)

// Layout maps download units onto artifact paths below a root directory:
// <root>/<whatToShow>/<granularity>/<ticker>-<bucket>.<ext>.
type Layout struct {
	Root string
}

// NewLayout creates a Layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{Root: root}
}

// Dir returns the directory holding every artifact of the unit's series.
func (l Layout) Dir(unit types.DownloadUnit) string {
	return filepath.Join(l.Root, unit.WhatToShow, string(unit.Granularity))
}

// Stem returns the artifact path without extension.
func (l Layout) Stem(unit types.DownloadUnit) string {
	return filepath.Join(l.Dir(unit), unit.Stem())
}

// Path returns the artifact path for the unit with the given extension.
func (l Layout) Path(unit types.DownloadUnit, ext string) string {
	return l.Stem(unit) + "." + ext
}
