// Package sink defines the destination-table contract and the loader that drains a
// row iterator into it.
package sink

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/dv360-adoption/internal/transform"
)

// TableSpec declares a destination table.
type TableSpec struct {
	Dataset  string
	Name     string
	Location string
	Schema   bigquery.Schema
	// PartitionField is partitioned at DAY granularity.
	PartitionField string
}

// FullName returns dataset.table.
func (s TableSpec) FullName() string {
	return fmt.Sprintf("%s.%s", s.Dataset, s.Name)
}

// Table is a handle returned by EnsureTable.
type Table struct {
	Spec TableSpec
	// Created is true when EnsureTable created the table on this call.
	Created bool
}

// Sink is an append-only, schema-on-write destination.
type Sink interface {
	// EnsureTable returns the table, creating its dataset and itself if absent.
	// An existing table is returned as-is; its schema is not compared or migrated.
	EnsureTable(ctx context.Context, spec TableSpec) (*Table, error)

	// Insert appends rows in a single bulk call.
	Insert(ctx context.Context, table *Table, rows []transform.Row) error
}
