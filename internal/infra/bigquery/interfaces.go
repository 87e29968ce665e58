package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/dv360-adoption/internal/config"
	"github.com/dvloznov/dv360-adoption/internal/sink"
	"github.com/dvloznov/dv360-adoption/internal/transform"
)

// BigQueryTableSink is the concrete implementation of sink.Sink that writes to BigQuery.
// It holds a shared client to avoid creating a new connection for each operation.
type BigQueryTableSink struct {
	client *bigquery.Client
}

// NewBigQueryTableSink creates a sink with a client built from the explicit configuration.
func NewBigQueryTableSink(ctx context.Context, cfg config.Config) (*BigQueryTableSink, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID, cfg.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryTableSink: creating client: %w", err)
	}
	return &BigQueryTableSink{
		client: client,
	}, nil
}

// Close closes the BigQuery client connection.
func (s *BigQueryTableSink) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// EnsureTable delegates to EnsureTableWithClient with the shared client.
func (s *BigQueryTableSink) EnsureTable(ctx context.Context, spec sink.TableSpec) (*sink.Table, error) {
	return EnsureTableWithClient(ctx, s.client, spec)
}

// Insert delegates to InsertRowsWithClient with the shared client.
func (s *BigQueryTableSink) Insert(ctx context.Context, table *sink.Table, rows []transform.Row) error {
	return InsertRowsWithClient(ctx, s.client, table.Spec, rows)
}

// CountRowsByImportDate delegates to CountRowsByImportDateWithClient with the shared client.
func (s *BigQueryTableSink) CountRowsByImportDate(ctx context.Context, spec sink.TableSpec, advertiserID int64, since civil.Date) ([]ImportCount, error) {
	return CountRowsByImportDateWithClient(ctx, s.client, spec, advertiserID, since)
}

var _ sink.Sink = (*BigQueryTableSink)(nil)
