package memory

import (
	"context"
	"testing"

	"github.com/dvloznov/dv360-adoption/internal/sink"
	"github.com/dvloznov/dv360-adoption/internal/transform"
)

func TestSink_EnsureTableIdempotent(t *testing.T) {
	s := NewSink()
	ctx := context.Background()
	spec := sink.TableSpec{Dataset: "dv360_feature_adoption", Name: "sdfs", Schema: transform.SDFMapping.Schema(), PartitionField: "imported_at"}

	first, err := s.EnsureTable(ctx, spec)
	if err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}
	second, err := s.EnsureTable(ctx, spec)
	if err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}

	if first.Spec.FullName() != second.Spec.FullName() {
		t.Errorf("handles name different tables: %s vs %s", first.Spec.FullName(), second.Spec.FullName())
	}
	if !first.Created || second.Created {
		t.Errorf("Created = %v then %v, want true then false", first.Created, second.Created)
	}
	if s.Creates() != 1 {
		t.Errorf("Creates() = %d, want 1", s.Creates())
	}
}

func TestSink_InsertRequiresTable(t *testing.T) {
	s := NewSink()
	table := &sink.Table{Spec: sink.TableSpec{Dataset: "d", Name: "missing"}}

	if err := s.Insert(context.Background(), table, []transform.Row{{"a": 1}}); err == nil {
		t.Error("expected error inserting into a table that was never ensured")
	}
}

func TestSink_InsertAppends(t *testing.T) {
	s := NewSink()
	ctx := context.Background()
	table, _ := s.EnsureTable(ctx, sink.TableSpec{Dataset: "d", Name: "reports"})

	_ = s.Insert(ctx, table, []transform.Row{{"n": 1}, {"n": 2}})
	_ = s.Insert(ctx, table, []transform.Row{{"n": 3}})

	if got := len(s.Rows("d.reports")); got != 3 {
		t.Errorf("Rows() = %d rows, want 3", got)
	}
	if s.Inserts() != 2 {
		t.Errorf("Inserts() = %d, want 2", s.Inserts())
	}
}
