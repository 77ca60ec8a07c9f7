package storage

import (
	"encoding/json"
	"fmt"

	"github.com/lgsf-dashboard/logbooks/internal/domain"
)

// DefaultListLimit is used when a non-positive limit is requested
const DefaultListLimit = 20

// Payload is the serialized form of a pass's content columns
type Payload struct {
	LogBooks       string
	Failing        string
	FailedCouncils string
}

// EncodePayload serializes a pass for storage
func EncodePayload(agg *domain.Aggregation) (*Payload, error) {
	logbooks := agg.LogBooks
	if logbooks == nil {
		logbooks = []domain.LogBook{}
	}
	failing := agg.Failing
	if failing == nil {
		failing = []domain.FailingEntry{}
	}
	failed := agg.FailedCouncils
	if failed == nil {
		failed = []string{}
	}

	lb, err := json.Marshal(logbooks)
	if err != nil {
		return nil, fmt.Errorf("encode logbooks: %w", err)
	}
	fl, err := json.Marshal(failing)
	if err != nil {
		return nil, fmt.Errorf("encode failing: %w", err)
	}
	fc, err := json.Marshal(failed)
	if err != nil {
		return nil, fmt.Errorf("encode failed councils: %w", err)
	}
	return &Payload{LogBooks: string(lb), Failing: string(fl), FailedCouncils: string(fc)}, nil
}

// DecodePayload fills agg from its stored columns. agg.Window must already
// be set so the logbook layout can be restored.
func DecodePayload(agg *domain.Aggregation, p *Payload) error {
	if err := json.Unmarshal([]byte(p.LogBooks), &agg.LogBooks); err != nil {
		return fmt.Errorf("decode logbooks: %w", err)
	}
	if err := json.Unmarshal([]byte(p.Failing), &agg.Failing); err != nil {
		return fmt.Errorf("decode failing: %w", err)
	}
	if err := json.Unmarshal([]byte(p.FailedCouncils), &agg.FailedCouncils); err != nil {
		return fmt.Errorf("decode failed councils: %w", err)
	}

	order := domain.NewestFirst
	if agg.Window == "calendar" {
		order = domain.OldestFirstByDay
	}
	for i := range agg.LogBooks {
		agg.LogBooks[i].Order = order
	}
	return nil
}

// Limit normalizes a requested list limit
func Limit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
