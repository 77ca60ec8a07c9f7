package domain

// RunOrder describes how a LogBook's runs are laid out.
type RunOrder int

const (
	// NewestFirst is the count-window layout: runs sorted by start descending.
	NewestFirst RunOrder = iota
	// OldestFirstByDay is the calendar-window layout: one slot per day, oldest
	// day first, nil for a day with no run.
	OldestFirstByDay
)

// LogBook holds all retained runs for one council.
type LogBook struct {
	CouncilID string    `json:"council_id"`
	Missing   bool      `json:"missing"`
	LogRuns   []*LogRun `json:"log_runs"`
	Order     RunOrder  `json:"-"`
}

// MissingLogBook is the logbook of a council with no source document at all.
func MissingLogBook(councilID string) LogBook {
	return LogBook{CouncilID: councilID, Missing: true, LogRuns: []*LogRun{}}
}

// Empty reports whether the logbook carries no information and must not be
// written out.
func (lb *LogBook) Empty() bool {
	return !lb.Missing && len(lb.LogRuns) == 0
}

// LatestRun returns the chronologically latest retained run, or nil.
func (lb *LogBook) LatestRun() *LogRun {
	if lb.Missing || len(lb.LogRuns) == 0 {
		return nil
	}
	if lb.Order == OldestFirstByDay {
		for i := len(lb.LogRuns) - 1; i >= 0; i-- {
			if lb.LogRuns[i] != nil {
				return lb.LogRuns[i]
			}
		}
		return nil
	}
	return lb.LogRuns[0]
}

// FailingEntry is a read-only projection of a council whose latest run failed.
type FailingEntry struct {
	CouncilID string `json:"council_id"`
	Missing   bool   `json:"missing"`
	LatestRun LogRun `json:"latest_run"`
}
