package domain

import (
	"bytes"
	"encoding/json"
	"errors"

	apperrors "github.com/lgsf-dashboard/logbooks/internal/errors"
)

// RawRecord is one upstream run entry, in one of the two supported shapes.
type RawRecord interface {
	// DetailKey references a detail document to merge, or is empty.
	DetailKey() string
	rawRecord()
}

// SnapshotRecord is a council's entry inside a periodic run report.
type SnapshotRecord struct {
	Council    string `json:"council"`
	Status     string `json:"status"`
	StatusCode *int   `json:"status_code,omitempty"`
	Error      string `json:"error"`
	StartTime  string `json:"start_time"`
	RunLogKey  string `json:"runlog_s3_key"`
}

// Snapshot statuses. Anything else is a success.
const (
	SnapshotStatusFailed   = "failed"
	SnapshotStatusDisabled = "disabled"
)

// IsFailed reports whether the snapshot entry recorded a failure.
func (r SnapshotRecord) IsFailed() bool {
	return r.Status == SnapshotStatusFailed
}

// DetailKey is the reference to the detailed RunLog document, empty if the
// run did not fail or no reference was recorded.
func (r SnapshotRecord) DetailKey() string {
	if !r.IsFailed() {
		return ""
	}
	return r.RunLogKey
}

// CouncilRecord is a run entry stored in a council's own logbook document.
type CouncilRecord struct {
	StatusCode *int            `json:"status_code"`
	Log        string          `json:"log"`
	Start      string          `json:"start"`
	End        string          `json:"end"`
	Duration   json.RawMessage `json:"duration"`
	Error      string          `json:"error"`
}

// DetailKey implements RawRecord. Council logbooks carry no references.
func (CouncilRecord) DetailKey() string { return "" }

// MalformedRecord stands in for an entry that could not be decoded. Err is
// a parse error, so it goes through the same policy as any other bad run.
type MalformedRecord struct {
	Council string
	Err     error
}

// DetailKey implements RawRecord
func (MalformedRecord) DetailKey() string { return "" }

func (SnapshotRecord) rawRecord()  {}
func (CouncilRecord) rawRecord()   {}
func (MalformedRecord) rawRecord() {}

// RunLogDetail is the detailed document referenced by a failed snapshot entry.
// Absent keys are nil so they can fall back to the summary.
type RunLogDetail struct {
	ErrorMessage    *string  `json:"error_message"`
	Error           *string  `json:"error"`
	DurationSeconds *float64 `json:"duration_seconds"`
	StartTime       *string  `json:"start_time"`
	EndTime         *string  `json:"end_time"`
}

// Document is one raw upstream document.
type Document interface {
	// RecordsFor returns the entries belonging to councilID, in source order.
	RecordsFor(councilID string) []RawRecord
}

// RunReport is a periodic snapshot covering many councils.
//
// Scrapers holds the well-formed entries. Entries that fail to decode keep
// their place in source order and surface from RecordsFor as MalformedRecords.
// Entries whose council cannot be read are counted in Unattributed.
type RunReport struct {
	Scrapers     []SnapshotRecord `json:"scrapers"`
	Unattributed int              `json:"-"`

	entries []RawRecord
}

// UnmarshalJSON decodes each entry on its own, so one bad entry never takes
// the rest of the report with it.
func (r *RunReport) UnmarshalJSON(data []byte) error {
	var raw struct {
		Scrapers []json.RawMessage `json:"scrapers"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = RunReport{entries: make([]RawRecord, 0, len(raw.Scrapers))}
	for _, entry := range raw.Scrapers {
		var rec SnapshotRecord
		if err := json.Unmarshal(entry, &rec); err != nil {
			var owner struct {
				Council string `json:"council"`
			}
			if json.Unmarshal(entry, &owner) != nil || owner.Council == "" {
				r.Unattributed++
				continue
			}
			r.entries = append(r.entries, MalformedRecord{Council: owner.Council, Err: entryError(entry, err)})
			continue
		}
		r.Scrapers = append(r.Scrapers, rec)
		r.entries = append(r.entries, rec)
	}
	return nil
}

func (r *RunReport) records() []RawRecord {
	if r.entries != nil {
		return r.entries
	}
	records := make([]RawRecord, 0, len(r.Scrapers))
	for _, s := range r.Scrapers {
		records = append(records, s)
	}
	return records
}

func recordCouncil(record RawRecord) string {
	switch rec := record.(type) {
	case SnapshotRecord:
		return rec.Council
	case MalformedRecord:
		return rec.Council
	}
	return ""
}

// RecordsFor implements Document
func (r *RunReport) RecordsFor(councilID string) []RawRecord {
	var records []RawRecord
	for _, rec := range r.records() {
		if recordCouncil(rec) == councilID {
			records = append(records, rec)
		}
	}
	return records
}

// Councils returns every council named in the report, in source order,
// possibly with repeats.
func (r *RunReport) Councils() []string {
	records := r.records()
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if id := recordCouncil(rec); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// CouncilLogbook is the per-council document kept in the logbook repository.
// Runs holds the well-formed entries only.
type CouncilLogbook struct {
	Runs []CouncilRecord `json:"runs"`

	entries []RawRecord
}

// UnmarshalJSON decodes each run on its own
func (l *CouncilLogbook) UnmarshalJSON(data []byte) error {
	var raw struct {
		Runs []json.RawMessage `json:"runs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*l = CouncilLogbook{entries: make([]RawRecord, 0, len(raw.Runs))}
	for _, entry := range raw.Runs {
		var rec CouncilRecord
		if err := json.Unmarshal(entry, &rec); err != nil {
			l.entries = append(l.entries, MalformedRecord{Err: entryError(entry, err)})
			continue
		}
		l.Runs = append(l.Runs, rec)
		l.entries = append(l.entries, rec)
	}
	return nil
}

// RecordsFor implements Document. The document only ever holds its own
// council's runs.
func (l *CouncilLogbook) RecordsFor(string) []RawRecord {
	if l.entries != nil {
		return l.entries
	}
	records := make([]RawRecord, 0, len(l.Runs))
	for _, r := range l.Runs {
		records = append(records, r)
	}
	return records
}

// DecodeDocument detects the document shape from its top-level keys.
func DecodeDocument(data []byte) (Document, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, apperrors.NewParseError("document", abbreviate(data), err)
	}

	var doc Document
	switch {
	case keys["scrapers"] != nil:
		doc = &RunReport{}
	case keys["runs"] != nil:
		doc = &CouncilLogbook{}
	default:
		return nil, apperrors.NewParseError("document", abbreviate(data), nil)
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, apperrors.NewParseError("document", abbreviate(data), err)
	}
	return doc, nil
}

// DecodeRunLogDetail decodes a detailed RunLog document.
func DecodeRunLogDetail(data []byte) (*RunLogDetail, error) {
	var detail RunLogDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		return nil, apperrors.NewParseError("runlog", abbreviate(data), err)
	}
	return &detail, nil
}

func entryError(entry json.RawMessage, err error) error {
	field := "entry"
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		field = typeErr.Field
	}
	return apperrors.NewParseError(field, abbreviate(entry), err)
}

func abbreviate(data []byte) string {
	const limit = 64
	data = bytes.TrimSpace(data)
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}
