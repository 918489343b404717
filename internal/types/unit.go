package types

import "path"

// DownloadUnit is the atomic (ticker, granularity, date-bucket) work item.
// WhatToShow selects the artifact directory the unit is stored under.
type DownloadUnit struct {
	Ticker      string
	Granularity Granularity
	Bucket      string
	WhatToShow  string
}

// Stem is the artifact file name without extension: <ticker>-<bucket>.
func (u DownloadUnit) Stem() string {
	return u.Ticker + "-" + u.Bucket
}

// Key identifies the unit independently of any storage root: <whatToShow>/<granularity>/<stem>.
func (u DownloadUnit) Key() string {
	return path.Join(u.WhatToShow, string(u.Granularity), u.Stem())
}

func (u DownloadUnit) String() string {
	return u.Key()
}
