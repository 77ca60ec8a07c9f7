// Package failing derives the list of councils whose latest run failed.
package failing

import "github.com/lgsf-dashboard/logbooks/internal/domain"

// Extract returns a FailingEntry for every logbook whose latest retained run
// has a non-zero status. Missing logbooks and logbooks with no present run are
// never included. Input order is preserved.
func Extract(logbooks []domain.LogBook) []domain.FailingEntry {
	failing := make([]domain.FailingEntry, 0)
	for i := range logbooks {
		lb := &logbooks[i]
		if lb.Missing {
			continue
		}
		latest := lb.LatestRun()
		if latest == nil || !latest.Failed() {
			continue
		}
		failing = append(failing, domain.FailingEntry{
			CouncilID: lb.CouncilID,
			Missing:   false,
			LatestRun: *latest,
		})
	}
	return failing
}
