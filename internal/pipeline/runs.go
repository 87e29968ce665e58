package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/dv360-adoption/internal/jobs"
)

// HandleRun executes a queued run and records its outcome on run.
// It satisfies jobs.RunHandler.
func (r *Runner) HandleRun(ctx context.Context, run *jobs.IngestionRun) error {
	req := Request{AdvertiserID: run.AdvertiserID, DataRange: run.DataRange}

	var (
		res *Result
		err error
	)
	switch run.Pipeline {
	case PipelineReport:
		res, err = r.RunReport(ctx, req)
	case PipelineSDF:
		res, err = r.RunSDF(ctx, req)
	default:
		return fmt.Errorf("HandleRun: unknown pipeline %q", run.Pipeline)
	}
	if err != nil {
		return err
	}

	run.RemoteJobID = res.JobID
	run.Table = res.Table
	run.RowsInserted = res.RowsInserted
	run.RowsDropped = res.RowsDropped
	return nil
}

var _ jobs.RunHandler = (*Runner)(nil).HandleRun
