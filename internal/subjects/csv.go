package subjects

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"operantcore/pkg/domain"
)

// CSV appends trial records to a comma-separated file, one row per trial,
// with a header row written when the file is created. Nil field values
// become empty cells.
type CSV struct {
	f      *os.File
	w      *csv.Writer
	fields []string
}

// NewCSV opens (or creates) the datastore at path for the given field list.
func NewCSV(path string, fields []string) (*CSV, error) {
	if path == "" {
		return nil, domain.NewConfigError("datastore", fmt.Errorf("csv path required"))
	}
	info, err := os.Stat(path)
	fresh := err != nil || info.Size() == 0
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open csv datastore: %w", err)
	}
	s := &CSV{f: f, w: csv.NewWriter(f), fields: fields}
	if fresh {
		if err := s.w.Write(fields); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		s.w.Flush()
		if err := s.w.Error(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("flush csv header: %w", err)
		}
	}
	return s, nil
}

// Driver identifies the backend in store errors.
func (s *CSV) Driver() string { return "csv" }

// Store appends one record row in field order.
func (s *CSV) Store(_ context.Context, rec domain.Record) error {
	row := make([]string, len(s.fields))
	for i, field := range s.fields {
		v, ok := rec[field]
		if !ok || v == nil {
			continue
		}
		row[i] = fmt.Sprintf("%v", v)
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush csv row: %w", err)
	}
	return nil
}

// Close closes the datastore file.
func (s *CSV) Close() error { return s.f.Close() }
