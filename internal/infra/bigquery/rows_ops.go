package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/dv360-adoption/internal/errs"
	"github.com/dvloznov/dv360-adoption/internal/sink"
	"github.com/dvloznov/dv360-adoption/internal/transform"
	"google.golang.org/api/iterator"
)

// ImportCount is the number of rows loaded for one ingestion day.
type ImportCount struct {
	ImportedAt civil.Date `bigquery:"imported_at"`
	Rows       int64      `bigquery:"row_count"`
}

// InsertRowsWithClient streams rows into the table with one insert call.
// Row-level failures come back as a bigquery.PutMultiError and are reported as-is.
func InsertRowsWithClient(ctx context.Context, client *bigquery.Client, spec sink.TableSpec, rows []transform.Row) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(spec.Dataset).Table(spec.Name).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		if multi, ok := err.(bigquery.PutMultiError); ok {
			return fmt.Errorf("InsertRows: %d of %d rows rejected by %s: %w", len(multi), len(rows), spec.FullName(), err)
		}
		return fmt.Errorf("InsertRows: inserting into %s: %v: %w", spec.FullName(), err, errs.ErrTransport)
	}

	return nil
}

// CountRowsByImportDateWithClient returns per-day row counts for one advertiser,
// newest day first, starting at since.
func CountRowsByImportDateWithClient(ctx context.Context, client *bigquery.Client, spec sink.TableSpec, advertiserID int64, since civil.Date) ([]ImportCount, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			imported_at,
			COUNT(*) AS row_count
		FROM %s
		WHERE advertiser_id = @advertiser_id
		  AND imported_at >= @since
		GROUP BY imported_at
		ORDER BY imported_at DESC
	`, "`"+spec.FullName()+"`"))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "advertiser_id", Value: advertiserID},
		{Name: "since", Value: since},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("CountRowsByImportDate: query read: %v: %w", err, errs.ErrTransport)
	}

	var counts []ImportCount
	for {
		var c ImportCount
		err := it.Next(&c)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CountRowsByImportDate: iter next: %w", err)
		}
		counts = append(counts, c)
	}

	return counts, nil
}
