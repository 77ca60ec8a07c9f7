package logbook

import (
	"fmt"
	"sort"
	"time"

	"github.com/lgsf-dashboard/logbooks/internal/domain"
)

// DefaultSize is the retention bound for both window policies
const DefaultSize = 20

// Window is a retention policy over a council's normalized runs
type Window interface {
	// Apply returns the retained runs. Nil entries are absent markers.
	Apply(runs []domain.LogRun) []*domain.LogRun
	// Order is the layout Apply produces
	Order() domain.RunOrder
	// Name identifies the policy in config and logs
	Name() string
}

// CountWindow keeps the Size most recent runs, newest first. Runs without a
// start sort last. Equal starts keep source order. A non-positive Size means
// DefaultSize.
type CountWindow struct {
	Size int
}

// Apply implements Window
func (w CountWindow) Apply(runs []domain.LogRun) []*domain.LogRun {
	ordered := make([]*domain.LogRun, len(runs))
	for i := range runs {
		run := runs[i]
		ordered[i] = &run
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].Start, ordered[j].Start
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.Time().After(b.Time())
	})

	if size := bound(w.Size); len(ordered) > size {
		ordered = ordered[:size]
	}
	return ordered
}

// bound falls back to DefaultSize for a non-positive size
func bound(n int) int {
	if n <= 0 {
		return DefaultSize
	}
	return n
}

// Order implements Window
func (CountWindow) Order() domain.RunOrder { return domain.NewestFirst }

// Name implements Window
func (CountWindow) Name() string { return "count" }

// CalendarWindow keeps one slot per day for the last Days days, oldest first.
// A day's slot holds the last run in source order that started on it.
// Runs without a start never occupy a slot. A non-positive Days means
// DefaultSize.
type CalendarWindow struct {
	Days int
	// Today returns the current instant. Its own location decides the date.
	Today func() time.Time
}

// Apply implements Window
func (w CalendarWindow) Apply(runs []domain.LogRun) []*domain.LogRun {
	now := time.Now
	if w.Today != nil {
		now = w.Today
	}
	y, m, d := now().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	byDate := make(map[time.Time]*domain.LogRun)
	for i := range runs {
		date, ok := runs[i].RunDate()
		if !ok {
			continue
		}
		run := runs[i]
		byDate[date] = &run
	}

	days := bound(w.Days)
	slots := make([]*domain.LogRun, days)
	for i := range slots {
		day := today.AddDate(0, 0, i-(days-1))
		slots[i] = byDate[day]
	}
	return slots
}

// Order implements Window
func (CalendarWindow) Order() domain.RunOrder { return domain.OldestFirstByDay }

// Name implements Window
func (CalendarWindow) Name() string { return "calendar" }

// NewWindow builds a window policy by name
func NewWindow(name string, size int, today func() time.Time) (Window, error) {
	if size <= 0 {
		size = DefaultSize
	}
	switch name {
	case "", "count":
		return CountWindow{Size: size}, nil
	case "calendar":
		return CalendarWindow{Days: size, Today: today}, nil
	default:
		return nil, fmt.Errorf("unknown window policy %q", name)
	}
}
