package sink

import (
	"context"
	"fmt"

	"github.com/dvloznov/dv360-adoption/internal/logger"
	"github.com/dvloznov/dv360-adoption/internal/transform"
	"google.golang.org/api/iterator"
)

// RowSource is a finite, non-restartable row sequence.
type RowSource interface {
	Next() (transform.Row, error)
	Dropped() int
}

// LoadStats summarises one load.
type LoadStats struct {
	Inserted int
	Dropped  int
	Batches  int
}

// Load drains src into table.
//
// With batchSize 0 every row is buffered and inserted with one call, so a stream error
// leaves the table untouched. With batchSize > 0 rows are flushed every batchSize rows;
// memory stays bounded but batches flushed before a stream error remain inserted.
func Load(ctx context.Context, s Sink, table *Table, src RowSource, batchSize int) (LoadStats, error) {
	log := logger.FromContext(ctx)

	var stats LoadStats
	var buf []transform.Row
	if batchSize > 0 {
		buf = make([]transform.Row, 0, batchSize)
	}

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if err := s.Insert(ctx, table, buf); err != nil {
			return fmt.Errorf("Load: inserting %d rows into %s: %w", len(buf), table.Spec.FullName(), err)
		}
		stats.Inserted += len(buf)
		stats.Batches++
		log.Debug().
			Str("table", table.Spec.FullName()).
			Int("rows", len(buf)).
			Int("inserted_total", stats.Inserted).
			Msg("Flushed row batch")
		buf = make([]transform.Row, 0, batchSize)
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("Load: %w", err)
		}

		row, err := src.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			stats.Dropped = src.Dropped()
			return stats, fmt.Errorf("Load: reading rows for %s: %w", table.Spec.FullName(), err)
		}

		buf = append(buf, row)
		if batchSize > 0 && len(buf) >= batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}
	stats.Dropped = src.Dropped()
	return stats, nil
}
