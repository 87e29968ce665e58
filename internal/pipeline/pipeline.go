// Package pipeline wires the job poller, the stream fetcher, the row transformer and the
// table sink into the report and SDF ingestion flows.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/dv360-adoption/internal/config"
	"github.com/dvloznov/dv360-adoption/internal/errs"
	"github.com/dvloznov/dv360-adoption/internal/jobs"
	"github.com/dvloznov/dv360-adoption/internal/logger"
	"github.com/dvloznov/dv360-adoption/internal/sink"
	"github.com/dvloznov/dv360-adoption/internal/transform"
)

// Pipeline names.
const (
	PipelineReport = "report"
	PipelineSDF    = "sdf"
)

// PartitionField is the DAY-partitioning column of both destination tables.
const PartitionField = "imported_at"

// Request is one invocation's input as received from a caller.
type Request struct {
	AdvertiserID string `json:"advertiserId"`
	DataRange    string `json:"dataRange,omitempty"`
}

// Result describes a successful invocation.
type Result struct {
	Pipeline     string `json:"pipeline"`
	Table        string `json:"table"`
	JobID        string `json:"job_id"`
	RowsInserted int    `json:"rows_inserted"`
	RowsDropped  int    `json:"rows_dropped"`
}

// Message is the human-readable outcome returned to callers.
func (r *Result) Message() string {
	var what string
	switch r.Pipeline {
	case PipelineReport:
		what = "Report data"
	case PipelineSDF:
		what = "SDF data"
	default:
		what = "Data"
	}
	msg := fmt.Sprintf("%s successfully inserted into %s (%d rows)", what, r.Table, r.RowsInserted)
	if r.RowsDropped > 0 {
		msg += fmt.Sprintf(", %d malformed rows skipped", r.RowsDropped)
	}
	return msg
}

// flow describes what differs between the two pipelines.
type flow struct {
	name     string
	api      jobs.RemoteAPI
	mapping  transform.Mapping
	table    string
	archived bool
}

// Runner executes pipelines. It holds only goroutine-safe clients, so one Runner can
// serve concurrent invocations.
type Runner struct {
	report    jobs.RemoteAPI
	sdf       jobs.RemoteAPI
	poller    *jobs.Poller
	opener    StreamOpener
	sink      sink.Sink
	dataset   string
	location  string
	tables    map[string]string
	batchSize int
	now       func() time.Time
}

// NewRunner creates a Runner writing to the dataset, tables and batch size named in cfg.
func NewRunner(report, sdf jobs.RemoteAPI, poller *jobs.Poller, opener StreamOpener, s sink.Sink, cfg config.Config) *Runner {
	return &Runner{
		report:   report,
		sdf:      sdf,
		poller:   poller,
		opener:   opener,
		sink:     s,
		dataset:  cfg.DatasetID,
		location: cfg.Location,
		tables: map[string]string{
			PipelineReport: cfg.ReportTable,
			PipelineSDF:    cfg.SDFTable,
		},
		batchSize: cfg.InsertBatchSize,
		now:       time.Now,
	}
}

// WithClock overrides the clock used for the imported_at stamp.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// RunReport requests a performance report for the advertiser and loads it into the
// report table.
func (r *Runner) RunReport(ctx context.Context, req Request) (*Result, error) {
	return r.run(ctx, flow{
		name:    PipelineReport,
		api:     r.report,
		mapping: transform.ReportMapping,
		table:   r.tables[PipelineReport],
	}, req)
}

// RunSDF requests an SDF export for the advertiser and loads its line-item file into
// the SDF table.
func (r *Runner) RunSDF(ctx context.Context, req Request) (*Result, error) {
	return r.run(ctx, flow{
		name:     PipelineSDF,
		api:      r.sdf,
		mapping:  transform.SDFMapping,
		table:    r.tables[PipelineSDF],
		archived: true,
	}, req)
}

// TableSpecs returns the declarations of both destination tables.
func (r *Runner) TableSpecs() []sink.TableSpec {
	return []sink.TableSpec{
		r.tableSpec(r.tables[PipelineReport], transform.ReportMapping),
		r.tableSpec(r.tables[PipelineSDF], transform.SDFMapping),
	}
}

// EnsureTables creates any missing destination table.
func (r *Runner) EnsureTables(ctx context.Context) ([]*sink.Table, error) {
	var out []*sink.Table
	for _, spec := range r.TableSpecs() {
		table, err := r.sink.EnsureTable(ctx, spec)
		if err != nil {
			return out, fmt.Errorf("EnsureTables: %s: %w", spec.FullName(), err)
		}
		out = append(out, table)
	}
	return out, nil
}

func (r *Runner) tableSpec(name string, mapping transform.Mapping) sink.TableSpec {
	return sink.TableSpec{
		Dataset:        r.dataset,
		Name:           name,
		Location:       r.location,
		Schema:         mapping.Schema(),
		PartitionField: PartitionField,
	}
}

func (r *Runner) run(ctx context.Context, f flow, req Request) (*Result, error) {
	advertiserID, err := ParseAdvertiserID(req.AdvertiserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.name, err)
	}

	log := logger.FromContext(ctx).With().
		Str("pipeline", f.name).
		Int64("advertiser_id", advertiserID).
		Logger()
	ctx = logger.WithContext(ctx, log)

	start := time.Now()
	log.Info().Str("data_range", req.DataRange).Msg("Pipeline started")

	// 1. Submit the remote job.
	job, err := f.api.Submit(ctx, jobs.Params{AdvertiserID: advertiserID, DataRange: req.DataRange})
	if err != nil {
		return nil, fmt.Errorf("%s: submit: %w", f.name, err)
	}

	// 2. Wait for it to finish.
	done, err := r.poller.AwaitCompletion(ctx, f.api, job)
	if err != nil {
		return nil, fmt.Errorf("%s: await job %s: %w", f.name, job.ID, err)
	}
	job = done
	log.Info().
		Str("job_id", job.ID).
		Int("checks", job.Checks).
		Str("location", job.ResultLocation).
		Msg("Remote job done")

	// 3. Open the payload.
	stream, err := r.opener.Open(ctx, job.ResultLocation, f.archived)
	if err != nil {
		return nil, fmt.Errorf("%s: open %s: %w", f.name, job.ResultLocation, err)
	}
	defer stream.Close()

	// 4. Transform lazily while loading.
	stamp := transform.Stamp{
		AdvertiserID: advertiserID,
		ImportedAt:   civil.DateOf(r.now().UTC()),
	}
	rows := transform.NewTransformer(f.mapping, stamp).Stream(stream)

	// 5. Make sure the table exists.
	table, err := r.sink.EnsureTable(ctx, r.tableSpec(f.table, f.mapping))
	if err != nil {
		return nil, fmt.Errorf("%s: ensure table: %w", f.name, err)
	}

	// 6. Drain rows into it.
	stats, err := sink.Load(ctx, r.sink, table, rows, r.batchSize)
	if err != nil {
		return nil, fmt.Errorf("%s: load: %w", f.name, err)
	}

	log.Info().
		Str("table", table.Spec.FullName()).
		Int("rows_inserted", stats.Inserted).
		Int("rows_dropped", stats.Dropped).
		Int("batches", stats.Batches).
		Dur("duration", time.Since(start)).
		Msg("Pipeline completed")

	return &Result{
		Pipeline:     f.name,
		Table:        table.Spec.FullName(),
		JobID:        job.ID,
		RowsInserted: stats.Inserted,
		RowsDropped:  stats.Dropped,
	}, nil
}

// ParseAdvertiserID validates a caller-supplied advertiser id.
func ParseAdvertiserID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("advertiser id: %w", errs.ErrMissingParameter)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("advertiser id %q is not a positive integer: %w", raw, errs.ErrInvalidParameter)
	}
	return id, nil
}
