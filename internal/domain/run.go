package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/lgsf-dashboard/logbooks/internal/errors"
)

// StatusCode is the outcome of a single scraper run. Only 0, 1 and 429 are
// ever produced: a stored per-council code outside that set, such as 500,
// is written out as 1.
type StatusCode int

const (
	// StatusOK covers both successful and disabled scrapers
	StatusOK StatusCode = 0
	// StatusFailed is the generic failure sentinel
	StatusFailed StatusCode = 1
	// StatusRateLimited means the council site answered HTTP 429
	StatusRateLimited StatusCode = 429
)

// Known reports whether c is one of the documented codes.
func (c StatusCode) Known() bool {
	switch c {
	case StatusOK, StatusFailed, StatusRateLimited:
		return true
	}
	return false
}

func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusRateLimited:
		return "rate_limited"
	default:
		return fmt.Sprintf("status(%d)", int(c))
	}
}

// timestampLayouts are tried in order. Fractional seconds are accepted
// after the seconds field by time.Parse without being spelled out.
var timestampLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// Timestamp is an ISO-8601 instant that keeps its source text, so output
// reproduces exactly what the upstream store recorded.
type Timestamp struct {
	raw string
	t   time.Time
}

// ParseTimestamp parses s for the named field. Naive timestamps are read as UTC.
func ParseTimestamp(field, s string) (*Timestamp, error) {
	value := strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &Timestamp{raw: value, t: t}, nil
		}
	}
	return nil, apperrors.NewParseError(field, s, nil)
}

// Time returns the parsed instant in its own offset.
func (ts *Timestamp) Time() time.Time {
	return ts.t
}

// Date returns the calendar date of the instant in its own offset, as
// midnight UTC so dates from different offsets compare directly.
func (ts *Timestamp) Date() time.Time {
	y, m, d := ts.t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (ts *Timestamp) String() string {
	return ts.raw
}

// MarshalJSON writes the source text unchanged.
func (ts *Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.raw)
}

// UnmarshalJSON parses a previously written timestamp.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp("timestamp", s)
	if err != nil {
		return err
	}
	*ts = *parsed
	return nil
}

// LogRun is one scraper execution. Values are built once by the normalizer
// and never modified afterwards.
type LogRun struct {
	StatusCode StatusCode `json:"status_code"`
	Start      *Timestamp `json:"start"`
	Errors     string     `json:"errors"`
	LogText    string     `json:"log_text"`
	End        *Timestamp `json:"end"`
	Duration   float64    `json:"duration"`
}

// RunDate is the calendar date of Start, false when the run has no start.
func (r *LogRun) RunDate() (time.Time, bool) {
	if r.Start == nil {
		return time.Time{}, false
	}
	return r.Start.Date(), true
}

// Failed reports whether the run ended with a non-zero status.
func (r *LogRun) Failed() bool {
	return r.StatusCode != StatusOK
}

// String is the short form. LogText is left out.
func (r *LogRun) String() string {
	start, end := "<none>", "<none>"
	if r.Start != nil {
		start = r.Start.String()
	}
	if r.End != nil {
		end = r.End.String()
	}
	return fmt.Sprintf("LogRun(status_code=%d, start=%s, errors=%q, end=%s, duration=%g)",
		int(r.StatusCode), start, r.Errors, end, r.Duration)
}
