package loader

import "time"

// State is the aggregate lifecycle of a page load.
type State int

const (
	Loading State = iota
	Finalizing
	Ready
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Finalizing:
		return "finalizing"
	case Ready:
		return "ready"
	}
	return "unknown"
}

// ResourceStatus is the per-resource record.
type ResourceStatus struct {
	Phase Phase
	Tier  Tier
	Err   error
}

// Started reports whether loading of the resource ever began.
func (s ResourceStatus) Started() bool { return s.Phase != NotStarted }

// Loaded reports whether the resource reached a terminal outcome, fallback included.
func (s ResourceStatus) Loaded() bool { return s.Phase == Loaded || s.Phase == Fallback }

// ErrText returns the last error message, or "" if none occurred.
func (s ResourceStatus) ErrText() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// LoadStatus is the state of one page load. CompletedCount only grows and
// never exceeds TotalResources.
type LoadStatus struct {
	Resources      [TotalResources]ResourceStatus
	TotalResources int
	CompletedCount int
	StartTime      time.Time
}

// Snapshot is a copy of the supervisor state handed to observers.
type Snapshot struct {
	State   State
	Status  LoadStatus
	Percent int
	Detail  string
}
