// Package services reads services.csv and summarises it by service and CMS.
package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/lgsf-dashboard/logbooks/internal/domain"
)

// Load reads the services CSV at path. A missing file yields no rows.
func Load(path string, logger *zap.Logger) ([]domain.Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("services.csv not found, returning empty list", zap.String("path", path))
			return []domain.Service{}, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rows, nil
}

// Parse reads CSV with a header row. Short rows are padded with empty
// values and every value is trimmed.
func Parse(r io.Reader) ([]domain.Service, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return []domain.Service{}, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows := []domain.Service{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(domain.Service, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Summarize counts rows per service_name and cms_type, sorted by service name
// then CMS type
func Summarize(rows []domain.Service) []domain.ServiceSummary {
	type key struct{ service, cms string }
	counts := make(map[key]int)
	for _, row := range rows {
		counts[key{row["service_name"], row["cms_type"]}]++
	}

	summary := make([]domain.ServiceSummary, 0, len(counts))
	for k, n := range counts {
		summary = append(summary, domain.ServiceSummary{ServiceName: k.service, CMSType: k.cms, Count: n})
	}
	sort.Slice(summary, func(i, j int) bool {
		if summary[i].ServiceName != summary[j].ServiceName {
			return summary[i].ServiceName < summary[j].ServiceName
		}
		return summary[i].CMSType < summary[j].CMSType
	})
	return summary
}
