package subjects

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"operantcore/pkg/domain"
)

func TestCSVHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bird42_trialdata.csv")
	fields := []string{"session", "index", "correct", "rt"}
	store, err := NewCSV(path, fields)
	if err != nil {
		t.Fatalf("new csv: %v", err)
	}
	subject, err := New("bird42", fields, store)
	if err != nil {
		t.Fatalf("new subject: %v", err)
	}

	correct := true
	trial := &domain.Trial{Session: 1, Index: 1, Correct: &correct, Responded: true, RT: 2 * time.Second}
	if err := subject.StoreTrial(context.Background(), trial); err != nil {
		t.Fatalf("store trial: %v", err)
	}
	// Missing optional fields serialize as empty cells, never an error.
	if err := subject.StoreTrial(context.Background(), &domain.Trial{Session: 1, Index: 2}); err != nil {
		t.Fatalf("store sparse trial: %v", err)
	}
	if err := subject.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][0] != "session" || rows[0][2] != "correct" {
		t.Fatalf("bad header %v", rows[0])
	}
	if rows[1][2] != "true" || rows[1][3] != "2" {
		t.Fatalf("bad trial row %v", rows[1])
	}
	if rows[2][2] != "" || rows[2][3] != "" {
		t.Fatalf("sparse trial should leave empty cells, got %v", rows[2])
	}
}

func TestCSVAppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trialdata.csv")
	fields := []string{"session", "index"}
	store, err := NewCSV(path, fields)
	if err != nil {
		t.Fatalf("new csv: %v", err)
	}
	if err := store.Store(context.Background(), domain.Record{"session": 1, "index": 1}); err != nil {
		t.Fatalf("store: %v", err)
	}
	_ = store.Close()

	store, err = NewCSV(path, fields)
	if err != nil {
		t.Fatalf("reopen csv: %v", err)
	}
	if err := store.Store(context.Background(), domain.Record{"session": 1, "index": 2}); err != nil {
		t.Fatalf("store after reopen: %v", err)
	}
	_ = store.Close()

	f, _ := os.Open(path)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want one header and two trials", len(rows))
	}
}

func TestSQLiteStoreAndCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trialdata.db")
	store, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		rec := domain.Record{"session": 1, "index": i, "correct": nil}
		if err := store.Store(ctx, rec); err != nil {
			t.Fatalf("store %d: %v", i, err)
		}
	}
	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("mongodb", "", nil)
	var ce *domain.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError for unknown driver, got %v", err)
	}
}

func TestStoreTrialWrapsFailure(t *testing.T) {
	subject, err := New("bird42", nil, failingStore{})
	if err != nil {
		t.Fatalf("new subject: %v", err)
	}
	err = subject.StoreTrial(context.Background(), &domain.Trial{Index: 1})
	var se *domain.StoreError
	if !errors.As(err, &se) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if domain.IsControlSignal(err) || domain.IsHardwareError(err) {
		t.Fatal("store failure misclassified")
	}
}

type failingStore struct{}

func (failingStore) Store(context.Context, domain.Record) error { return errors.New("disk full") }
func (failingStore) Close() error                               { return nil }
