package domain

import "time"

// Aggregation is one archived aggregation pass
type Aggregation struct {
	ID             string
	GeneratedAt    time.Time
	Source         string // "s3" or "github"
	Window         string // "count" or "calendar"
	LogBooks       []LogBook
	Failing        []FailingEntry
	FailedCouncils []string
}

// AggregationSummary is the listing form of an archived pass
type AggregationSummary struct {
	ID             string    `json:"id"`
	GeneratedAt    time.Time `json:"generated_at"`
	Source         string    `json:"source"`
	Window         string    `json:"window"`
	LogBooks       int       `json:"logbooks"`
	Failing        int       `json:"failing"`
	FailedCouncils int       `json:"failed_councils"`
}

// Summary returns the listing form of the pass
func (a *Aggregation) Summary() AggregationSummary {
	return AggregationSummary{
		ID:             a.ID,
		GeneratedAt:    a.GeneratedAt,
		Source:         a.Source,
		Window:         a.Window,
		LogBooks:       len(a.LogBooks),
		Failing:        len(a.Failing),
		FailedCouncils: len(a.FailedCouncils),
	}
}

// FindLogBook returns the logbook for councilID, if present
func (a *Aggregation) FindLogBook(councilID string) (*LogBook, bool) {
	for i := range a.LogBooks {
		if a.LogBooks[i].CouncilID == councilID {
			return &a.LogBooks[i], true
		}
	}
	return nil, false
}
