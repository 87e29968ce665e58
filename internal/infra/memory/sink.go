package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/dv360-adoption/internal/sink"
	"github.com/dvloznov/dv360-adoption/internal/transform"
)

// Sink is an in-memory implementation of sink.Sink, used by tests and dry runs.
// It is safe for concurrent use.
type Sink struct {
	mu      sync.RWMutex
	tables  map[string]*sink.Table
	rows    map[string][]transform.Row
	creates int
	inserts int

	// InsertErr, when set, fails every Insert call.
	InsertErr error
}

// NewSink creates an empty in-memory sink.
func NewSink() *Sink {
	return &Sink{
		tables: make(map[string]*sink.Table),
		rows:   make(map[string][]transform.Row),
	}
}

// EnsureTable implements sink.Sink. Repeated calls return handles to the same table
// with Created unset.
func (s *Sink) EnsureTable(ctx context.Context, spec sink.TableSpec) (*sink.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := spec.FullName()
	if t, ok := s.tables[name]; ok {
		return &sink.Table{Spec: t.Spec}, nil
	}

	t := &sink.Table{Spec: spec, Created: true}
	s.tables[name] = t
	s.creates++
	return t, nil
}

// Insert implements sink.Sink.
func (s *Sink) Insert(ctx context.Context, table *sink.Table, rows []transform.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.InsertErr != nil {
		return s.InsertErr
	}

	name := table.Spec.FullName()
	if _, ok := s.tables[name]; !ok {
		return fmt.Errorf("table not found: %s", name)
	}

	s.rows[name] = append(s.rows[name], rows...)
	s.inserts++
	return nil
}

// Rows returns a copy of the rows inserted into dataset.table.
func (s *Sink) Rows(fullName string) []transform.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]transform.Row, len(s.rows[fullName]))
	copy(out, s.rows[fullName])
	return out
}

// Creates is the number of tables actually created.
func (s *Sink) Creates() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creates
}

// Inserts is the number of Insert calls that succeeded.
func (s *Sink) Inserts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inserts
}

var _ sink.Sink = (*Sink)(nil)
