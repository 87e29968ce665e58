// Package dv360 adapts the Bid Manager and Display & Video 360 APIs to the
// jobs.RemoteAPI submit/check contract.
package dv360

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/dv360-adoption/internal/config"
	"github.com/dvloznov/dv360-adoption/internal/errs"
	"github.com/dvloznov/dv360-adoption/internal/jobs"
	"github.com/dvloznov/dv360-adoption/internal/logger"
	dbm "google.golang.org/api/doubleclickbidmanager/v2"
	"google.golang.org/api/option"
)

// ReportTitle names the queries this system creates.
const ReportTitle = "DV360 Feature Adoption Report"

// ReportGroupBys are the report dimensions, in output column order.
var ReportGroupBys = []string{
	"FILTER_DATE",
	"FILTER_INSERTION_ORDER",
	"FILTER_LINE_ITEM",
	"FILTER_LINE_ITEM_STATUS",
	"FILTER_DEVICE_TYPE",
}

// ReportMetrics are the requested report metrics.
var ReportMetrics = []string{
	"METRIC_IMPRESSIONS",
	"METRIC_BILLABLE_IMPRESSIONS",
	"METRIC_CLICKS",
	"METRIC_CTR",
	"METRIC_TOTAL_CONVERSIONS",
	"METRIC_LAST_CLICKS",
	"METRIC_LAST_IMPRESSIONS",
	"METRIC_REVENUE_USD",
	"METRIC_MEDIA_COST_USD",
}

// ReportAPI submits one-time report queries and polls their reports.
type ReportAPI struct {
	svc              *dbm.Service
	defaultDataRange string
}

// NewReportAPI builds a Bid Manager client from cfg. Extra options are appended last.
func NewReportAPI(ctx context.Context, cfg config.Config, opts ...option.ClientOption) (*ReportAPI, error) {
	all := append(cfg.ClientOptions(config.ScopeBidManager), opts...)
	svc, err := dbm.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("NewReportAPI: creating service: %w", err)
	}

	dataRange := cfg.DefaultDataRange
	if dataRange == "" {
		dataRange = config.DefaultDataRange
	}
	return &ReportAPI{svc: svc, defaultDataRange: dataRange}, nil
}

// Submit creates the query and starts an asynchronous run of it.
func (r *ReportAPI) Submit(ctx context.Context, params jobs.Params) (*jobs.Job, error) {
	if params.AdvertiserID == 0 {
		return nil, fmt.Errorf("ReportAPI.Submit: advertiser id: %w", errs.ErrMissingParameter)
	}

	dataRange := params.DataRange
	if dataRange == "" {
		dataRange = r.defaultDataRange
	}

	query := &dbm.Query{
		Metadata: &dbm.QueryMetadata{
			Title:            ReportTitle,
			DataRange:        &dbm.DataRange{Range: dataRange},
			Format:           "CSV",
			SendNotification: false,
		},
		Params: &dbm.Parameters{
			Type:     "STANDARD",
			GroupBys: ReportGroupBys,
			Metrics:  ReportMetrics,
			Filters: []*dbm.FilterPair{
				{Type: "FILTER_ADVERTISER", Value: strconv.FormatInt(params.AdvertiserID, 10)},
			},
		},
		Schedule: &dbm.QuerySchedule{Frequency: "ONE_TIME"},
	}

	created, err := r.svc.Queries.Create(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("ReportAPI.Submit: create query: %v: %w", err, errs.ErrTransport)
	}

	report, err := r.svc.Queries.Run(created.QueryId, &dbm.RunQueryRequest{}).Synchronous(false).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("ReportAPI.Submit: run query %d: %v: %w", created.QueryId, err, errs.ErrTransport)
	}
	if report.Key == nil {
		return nil, fmt.Errorf("ReportAPI.Submit: run query %d returned no report key: %w", created.QueryId, errs.ErrJobFailed)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int64("query_id", report.Key.QueryId).
		Int64("report_id", report.Key.ReportId).
		Str("data_range", dataRange).
		Msg("Report query submitted")

	job := &jobs.Job{
		ID:          reportJobID(report.Key.QueryId, report.Key.ReportId),
		Kind:        jobs.KindReport,
		Status:      jobs.StatusNotDone,
		SubmittedAt: time.Now(),
	}
	return applyReport(job, report)
}

// Check fetches the report and marks the job done once its storage path is set.
func (r *ReportAPI) Check(ctx context.Context, job *jobs.Job) (*jobs.Job, error) {
	queryID, reportID, err := parseReportJobID(job.ID)
	if err != nil {
		return nil, err
	}

	report, err := r.svc.Queries.Reports.Get(queryID, reportID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("ReportAPI.Check: get report %s: %v: %w", job.ID, err, errs.ErrTransport)
	}
	return applyReport(job, report)
}

func applyReport(job *jobs.Job, report *dbm.Report) (*jobs.Job, error) {
	next := *job
	if report.Metadata == nil {
		return &next, nil
	}
	if st := report.Metadata.Status; st != nil && st.State == "FAILED" {
		return nil, fmt.Errorf("report %s: state FAILED: %w", job.ID, errs.ErrJobFailed)
	}
	if path := report.Metadata.GoogleCloudStoragePath; path != "" {
		next.Status = jobs.StatusDone
		next.ResultLocation = path
	}
	return &next, nil
}

func reportJobID(queryID, reportID int64) string {
	return fmt.Sprintf("%d/%d", queryID, reportID)
}

func parseReportJobID(id string) (int64, int64, error) {
	parts := strings.Split(id, "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed report job id %q: %w", id, errs.ErrInvalidParameter)
	}
	queryID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed query id in %q: %w", id, errs.ErrInvalidParameter)
	}
	reportID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed report id in %q: %w", id, errs.ErrInvalidParameter)
	}
	return queryID, reportID, nil
}

var _ jobs.RemoteAPI = (*ReportAPI)(nil)
