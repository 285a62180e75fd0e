// Package subjects binds a subject to its trial datastore. The subject owns
// the experiment-declared field list and projects each trial into a flat
// record before handing it to the configured store backend.
package subjects

import (
	"context"
	"fmt"
	"strings"

	"operantcore/pkg/domain"
)

// Subject is the animal (or simulated agent) running the experiment.
type Subject struct {
	Name   string
	Fields []string

	store domain.TrialStore
}

// New binds a subject to a trial store. fields defaults to
// domain.DefaultFields when empty.
func New(name string, fields []string, store domain.TrialStore) (*Subject, error) {
	if name == "" {
		return nil, domain.NewConfigError("subject", fmt.Errorf("name required"))
	}
	if store == nil {
		return nil, domain.NewConfigError("subject", fmt.Errorf("trial store required"))
	}
	if len(fields) == 0 {
		fields = domain.DefaultFields
	}
	return &Subject{Name: name, Fields: fields, store: store}, nil
}

// StoreTrial projects the trial over the subject's field list and persists
// it. A failure comes back as a StoreError so the caller can report it
// without confusing it with a control fault; the pipeline keeps running
// unless the caller opts into strict durability.
func (s *Subject) StoreTrial(ctx context.Context, t *domain.Trial) error {
	rec := t.Project(s.Fields)
	if err := s.store.Store(ctx, rec); err != nil {
		return &domain.StoreError{Driver: driverName(s.store), Err: err}
	}
	return nil
}

// Close releases the underlying store.
func (s *Subject) Close() error { return s.store.Close() }

type named interface{ Driver() string }

func driverName(store domain.TrialStore) string {
	if n, ok := store.(named); ok {
		return n.Driver()
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", store), "*subjects.")
}

// Open selects a trial store backend by driver name: "csv", "sqlite" or
// "postgres". dsn is the file path for csv/sqlite and the connection string
// for postgres. Unknown drivers fail fast.
func Open(driver, dsn string, fields []string) (domain.TrialStore, error) {
	if len(fields) == 0 {
		fields = domain.DefaultFields
	}
	switch driver {
	case "", "csv":
		return NewCSV(dsn, fields)
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(dsn)
	default:
		return nil, domain.NewConfigError("datastore", fmt.Errorf("unknown driver %q", driver))
	}
}
