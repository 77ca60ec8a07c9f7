// Package output writes and reads the JSON files the dashboard renders from.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lgsf-dashboard/logbooks/internal/domain"
	apperrors "github.com/lgsf-dashboard/logbooks/internal/errors"
)

// File names inside the output directory
const (
	LogBooksFile        = "logbooks.json"
	FailingFile         = "failing.json"
	ServicesSummaryFile = "servicesSummary.json"
)

// WriteAll writes logbooks.json and failing.json into dir, creating it if needed
func WriteAll(dir string, logbooks []domain.LogBook, failing []domain.FailingEntry) error {
	if logbooks == nil {
		logbooks = []domain.LogBook{}
	}
	if failing == nil {
		failing = []domain.FailingEntry{}
	}
	if err := WriteJSON(dir, LogBooksFile, logbooks); err != nil {
		return err
	}
	return WriteJSON(dir, FailingFile, failing)
}

// WriteServicesSummary writes servicesSummary.json into dir
func WriteServicesSummary(dir string, summary []domain.ServiceSummary) error {
	if summary == nil {
		summary = []domain.ServiceSummary{}
	}
	return WriteJSON(dir, ServicesSummaryFile, summary)
}

// Encode renders v the way every output file is written: four-space indent,
// no HTML escaping
func Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON encodes v into dir/name. The file is replaced atomically.
func WriteJSON(dir, name string, v interface{}) error {
	data, err := Encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}

// ReadLogBooks reads dir/logbooks.json
func ReadLogBooks(dir string) ([]domain.LogBook, error) {
	var logbooks []domain.LogBook
	if err := readJSON(dir, LogBooksFile, &logbooks); err != nil {
		return nil, err
	}
	return logbooks, nil
}

// ReadFailing reads dir/failing.json
func ReadFailing(dir string) ([]domain.FailingEntry, error) {
	var failing []domain.FailingEntry
	if err := readJSON(dir, FailingFile, &failing); err != nil {
		return nil, err
	}
	return failing, nil
}

func readJSON(dir, name string, v interface{}) error {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.NewNotFoundError(path)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.NewParseError(name, "", err)
	}
	return nil
}
