// Package normalizer turns raw upstream run entries into canonical LogRuns.
//
// Both raw shapes go through Normalize. The shape is resolved by the type of
// the record and never inspected again downstream.
package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lgsf-dashboard/logbooks/internal/domain"
	apperrors "github.com/lgsf-dashboard/logbooks/internal/errors"
)

// Normalize converts one raw record into a LogRun. detail is only consulted
// for snapshot records and may be nil.
func Normalize(record domain.RawRecord, detail *domain.RunLogDetail) (domain.LogRun, error) {
	switch r := record.(type) {
	case domain.SnapshotRecord:
		return fromSnapshot(r, detail)
	case domain.CouncilRecord:
		return fromCouncilRecord(r)
	case domain.MalformedRecord:
		if r.Err == nil {
			return domain.LogRun{}, apperrors.NewParseError("entry", "", nil)
		}
		return domain.LogRun{}, r.Err
	default:
		return domain.LogRun{}, apperrors.NewInternalError(fmt.Sprintf("unsupported record type %T", record), nil)
	}
}

// SnapshotStatus maps a snapshot entry onto the closed status code set.
func SnapshotStatus(r domain.SnapshotRecord) domain.StatusCode {
	if !r.IsFailed() {
		// disabled and every other status count as success
		return domain.StatusOK
	}
	if r.StatusCode != nil && *r.StatusCode == int(domain.StatusRateLimited) {
		return domain.StatusRateLimited
	}
	return domain.StatusFailed
}

func fromSnapshot(r domain.SnapshotRecord, detail *domain.RunLogDetail) (domain.LogRun, error) {
	run := domain.LogRun{
		StatusCode: SnapshotStatus(r),
		Errors:     r.Error,
	}
	start := r.StartTime
	var end string

	if detail != nil {
		if detail.ErrorMessage != nil {
			run.Errors = *detail.ErrorMessage
		}
		if detail.Error != nil {
			run.LogText = *detail.Error
		}
		if detail.DurationSeconds != nil {
			if *detail.DurationSeconds < 0 {
				return domain.LogRun{}, apperrors.NewParseError("duration_seconds",
					strconv.FormatFloat(*detail.DurationSeconds, 'f', -1, 64), nil)
			}
			run.Duration = *detail.DurationSeconds
		}
		if detail.StartTime != nil && *detail.StartTime != "" {
			start = *detail.StartTime
		}
		if detail.EndTime != nil {
			end = *detail.EndTime
		}
	}

	var err error
	if run.Start, err = optionalTimestamp("start_time", start); err != nil {
		return domain.LogRun{}, err
	}
	if run.End, err = optionalTimestamp("end_time", end); err != nil {
		return domain.LogRun{}, err
	}
	return run, nil
}

func fromCouncilRecord(r domain.CouncilRecord) (domain.LogRun, error) {
	if r.StatusCode == nil {
		return domain.LogRun{}, apperrors.NewParseError("status_code", "", nil)
	}
	status, err := StoredStatus(*r.StatusCode)
	if err != nil {
		return domain.LogRun{}, err
	}

	run := domain.LogRun{
		StatusCode: status,
		Errors:     r.Error,
		LogText:    r.Log,
	}
	if run.Start, err = optionalTimestamp("start", r.Start); err != nil {
		return domain.LogRun{}, err
	}
	if run.End, err = optionalTimestamp("end", r.End); err != nil {
		return domain.LogRun{}, err
	}
	if run.Duration, err = durationValue(r.Duration); err != nil {
		return domain.LogRun{}, err
	}
	return run, nil
}

// StoredStatus passes an already-resolved status code through. Positive codes
// outside the documented set collapse to StatusFailed, so a stored 500 comes
// out as 1.
func StoredStatus(code int) (domain.StatusCode, error) {
	if code < 0 {
		return 0, apperrors.NewParseError("status_code", strconv.Itoa(code), nil)
	}
	status := domain.StatusCode(code)
	if !status.Known() {
		return domain.StatusFailed, nil
	}
	return status, nil
}

// ParseClockDuration parses a "HH:MM:SS.ffffff" duration into seconds.
//
// Only the last two components (minutes and seconds) are counted. The hours
// component is validated but dropped, matching the stored format's history.
func ParseClockDuration(s string) (float64, error) {
	value := strings.TrimSpace(s)
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, apperrors.NewParseError("duration", s, nil)
	}
	if len(parts) == 3 {
		if _, err := strconv.ParseUint(parts[0], 10, 32); err != nil {
			return 0, apperrors.NewParseError("duration", s, err)
		}
	}
	minutes, err := strconv.ParseUint(parts[len(parts)-2], 10, 32)
	if err != nil {
		return 0, apperrors.NewParseError("duration", s, err)
	}
	secondsText := parts[len(parts)-1]
	if secondsText == "" || strings.HasPrefix(secondsText, "-") || strings.HasPrefix(secondsText, "+") {
		return 0, apperrors.NewParseError("duration", s, nil)
	}
	seconds, err := strconv.ParseFloat(secondsText, 64)
	if err != nil {
		return 0, apperrors.NewParseError("duration", s, err)
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, apperrors.NewParseError("duration", s, nil)
	}
	return float64(minutes)*60 + seconds, nil
}

// durationValue accepts the clock string form, a bare number of seconds, or
// nothing at all.
func durationValue(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, apperrors.NewParseError("duration", string(raw), err)
		}
		if s == "" {
			return 0, nil
		}
		return ParseClockDuration(s)
	}
	seconds, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || seconds < 0 {
		return 0, apperrors.NewParseError("duration", string(raw), err)
	}
	return seconds, nil
}

func optionalTimestamp(field, s string) (*domain.Timestamp, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return domain.ParseTimestamp(field, s)
}
