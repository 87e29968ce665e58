package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/dv360-adoption/internal/errs"
	"github.com/dvloznov/dv360-adoption/internal/logger"
	"github.com/dvloznov/dv360-adoption/internal/sink"
	"google.golang.org/api/googleapi"
)

// EnsureTableWithClient gets or creates spec's dataset and table. A missing table is created
// with the declared schema and DAY partitioning on spec.PartitionField; an existing one is
// returned without comparing schemas. Losing a creation race to a concurrent invocation
// counts as success.
func EnsureTableWithClient(ctx context.Context, client *bigquery.Client, spec sink.TableSpec) (*sink.Table, error) {
	log := logger.FromContext(ctx)

	if err := ensureDatasetWithClient(ctx, client, spec); err != nil {
		return nil, err
	}

	table := client.Dataset(spec.Dataset).Table(spec.Name)
	_, err := table.Metadata(ctx)
	if err == nil {
		return &sink.Table{Spec: spec}, nil
	}
	if !hasStatus(err, http.StatusNotFound) {
		return nil, fmt.Errorf("EnsureTable: reading metadata of %s: %v: %w", spec.FullName(), err, errs.ErrTransport)
	}

	meta := &bigquery.TableMetadata{
		Schema: spec.Schema,
	}
	if spec.PartitionField != "" {
		meta.TimePartitioning = &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: spec.PartitionField,
		}
	}

	if err := table.Create(ctx, meta); err != nil {
		if hasStatus(err, http.StatusConflict) {
			log.Info().Str("table", spec.FullName()).Msg("Table created concurrently, using existing table")
			return &sink.Table{Spec: spec}, nil
		}
		return nil, fmt.Errorf("EnsureTable: creating %s: %v: %w", spec.FullName(), err, errs.ErrTransport)
	}

	log.Info().
		Str("table", spec.FullName()).
		Str("partition_field", spec.PartitionField).
		Int("columns", len(spec.Schema)).
		Msg("Created table")

	return &sink.Table{Spec: spec, Created: true}, nil
}

func ensureDatasetWithClient(ctx context.Context, client *bigquery.Client, spec sink.TableSpec) error {
	ds := client.Dataset(spec.Dataset)
	_, err := ds.Metadata(ctx)
	if err == nil {
		return nil
	}
	if !hasStatus(err, http.StatusNotFound) {
		return fmt.Errorf("ensureDataset: reading metadata of %s: %v: %w", spec.Dataset, err, errs.ErrTransport)
	}

	location := spec.Location
	if location == "" {
		location = "US"
	}
	if err := ds.Create(ctx, &bigquery.DatasetMetadata{Location: location}); err != nil {
		if hasStatus(err, http.StatusConflict) {
			return nil
		}
		return fmt.Errorf("ensureDataset: creating %s: %v: %w", spec.Dataset, err, errs.ErrTransport)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("dataset", spec.Dataset).
		Str("location", location).
		Msg("Created dataset")
	return nil
}

// hasStatus reports whether err is a Google API error with the given HTTP status.
func hasStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
