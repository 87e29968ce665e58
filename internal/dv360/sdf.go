package dv360

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dvloznov/dv360-adoption/internal/config"
	"github.com/dvloznov/dv360-adoption/internal/errs"
	"github.com/dvloznov/dv360-adoption/internal/jobs"
	"github.com/dvloznov/dv360-adoption/internal/logger"
	dv "google.golang.org/api/displayvideo/v3"
	"google.golang.org/api/option"
)

// SDFAPI submits SDF download tasks, polls their operations, and downloads the bundles.
type SDFAPI struct {
	svc     *dv.Service
	version string
}

// NewSDFAPI builds a Display & Video 360 client from cfg. Extra options are appended last.
func NewSDFAPI(ctx context.Context, cfg config.Config, opts ...option.ClientOption) (*SDFAPI, error) {
	all := append(cfg.ClientOptions(config.ScopeDisplayVideo), opts...)
	svc, err := dv.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("NewSDFAPI: creating service: %w", err)
	}

	version := cfg.SDFVersion
	if version == "" {
		version = config.DefaultSDFVersion
	}
	return &SDFAPI{svc: svc, version: version}, nil
}

// Submit creates a line-item SDF download task for the advertiser.
func (s *SDFAPI) Submit(ctx context.Context, params jobs.Params) (*jobs.Job, error) {
	if params.AdvertiserID == 0 {
		return nil, fmt.Errorf("SDFAPI.Submit: advertiser id: %w", errs.ErrMissingParameter)
	}

	req := &dv.CreateSdfDownloadTaskRequest{
		Version:      s.version,
		AdvertiserId: params.AdvertiserID,
		ParentEntityFilter: &dv.ParentEntityFilter{
			FileType:   []string{"FILE_TYPE_LINE_ITEM"},
			FilterType: "FILTER_TYPE_NONE",
		},
	}

	op, err := s.svc.Sdfdownloadtasks.Create(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("SDFAPI.Submit: create task: %v: %w", err, errs.ErrTransport)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("operation", op.Name).
		Str("sdf_version", s.version).
		Msg("SDF download task submitted")

	job := &jobs.Job{
		ID:          op.Name,
		Kind:        jobs.KindSDFExport,
		Status:      jobs.StatusNotDone,
		SubmittedAt: time.Now(),
	}
	return applyOperation(job, op)
}

// Check fetches the task's operation.
func (s *SDFAPI) Check(ctx context.Context, job *jobs.Job) (*jobs.Job, error) {
	op, err := s.svc.Sdfdownloadtasks.Operations.Get(job.ID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("SDFAPI.Check: get operation %s: %v: %w", job.ID, err, errs.ErrTransport)
	}
	return applyOperation(job, op)
}

// Download implements fetch.MediaDownloader.
func (s *SDFAPI) Download(ctx context.Context, resourceName string) (io.ReadCloser, error) {
	resp, err := s.svc.Media.Download(resourceName).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("SDFAPI.Download: %s: %v: %w", resourceName, err, errs.ErrTransport)
	}
	return resp.Body, nil
}

func applyOperation(job *jobs.Job, op *dv.Operation) (*jobs.Job, error) {
	next := *job
	if !op.Done {
		return &next, nil
	}
	if op.Error != nil {
		return nil, fmt.Errorf("sdf task %s: %s: %w", job.ID, op.Error.Message, errs.ErrJobFailed)
	}

	var task dv.SdfDownloadTask
	if err := json.Unmarshal(op.Response, &task); err != nil {
		return nil, fmt.Errorf("sdf task %s: decoding response: %v: %w", job.ID, err, errs.ErrJobFailed)
	}
	if task.ResourceName == "" {
		return nil, fmt.Errorf("sdf task %s: done without a resource name: %w", job.ID, errs.ErrJobFailed)
	}

	next.Status = jobs.StatusDone
	next.ResultLocation = task.ResourceName
	return &next, nil
}

var _ jobs.RemoteAPI = (*SDFAPI)(nil)
