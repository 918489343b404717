package types

// Status is the durable state of a download unit.
type Status string

const (
	// StatusUnset is the absence of any flag.
	StatusUnset        Status = ""
	StatusIncomplete   Status = "incomplete"
	StatusCompleted    Status = "completed"
	StatusCorrupted    Status = "corrupted"
	StatusNotAvailable Status = "not_available"
)

// MarkerStatuses lists every status that is backed by a marker, in lookup priority order.
var MarkerStatuses = []Status{
	StatusCompleted,
	StatusCorrupted,
	StatusIncomplete,
	StatusNotAvailable,
}

// IsTerminal reports whether a unit with this status is skipped by later passes.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusNotAvailable
}

// IsValid reports whether s is unset or one of the marker statuses.
func (s Status) IsValid() bool {
	if s == StatusUnset {
		return true
	}

	for _, m := range MarkerStatuses {
		if m == s {
			return true
		}
	}

	return false
}

func (s Status) String() string {
	if s == StatusUnset {
		return "unset"
	}

	return string(s)
}
