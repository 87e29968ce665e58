package jobs

import (
	"context"
	"time"
)

// Kind identifies which remote job queue a Job belongs to.
type Kind string

const (
	// KindReport is a Bid Manager performance report query.
	KindReport Kind = "report"
	// KindSDFExport is a Display & Video 360 SDF download task.
	KindSDFExport Kind = "sdf_export"
)

// Status is the remote completion state as last observed by polling.
type Status string

const (
	// StatusNotDone means the remote system has not produced a result yet.
	StatusNotDone Status = "not_done"
	// StatusDone means ResultLocation is set.
	StatusDone Status = "done"
)

// Job is a read-only projection of one remote asynchronous unit of work.
type Job struct {
	// ID is the opaque identifier assigned by the remote system.
	ID string `json:"job_id"`

	Kind   Kind   `json:"kind"`
	Status Status `json:"status"`

	// ResultLocation is a URL or resource handle, present only once Status is done.
	ResultLocation string `json:"result_location,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`

	// Checks counts the status checks performed by AwaitCompletion.
	Checks int `json:"checks"`
}

// Done reports whether the job has a usable result location.
func (j *Job) Done() bool {
	return j.Status == StatusDone && j.ResultLocation != ""
}

// Params are the caller-supplied inputs to a job creation call.
type Params struct {
	AdvertiserID int64
	// DataRange is a report range keyword such as LAST_7_DAYS. Ignored by SDF exports.
	DataRange string
}

// RemoteAPI is a remote asynchronous job queue.
type RemoteAPI interface {
	// Submit issues the creation call and returns a not-done Job.
	Submit(ctx context.Context, params Params) (*Job, error)

	// Check performs one status check and returns the refreshed Job.
	Check(ctx context.Context, job *Job) (*Job, error)
}

// RunStatus is the lifecycle state of a local ingestion run.
type RunStatus string

const (
	// RunStatusPending indicates the run is queued.
	RunStatusPending RunStatus = "pending"
	// RunStatusRunning indicates the run is currently executing.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted indicates rows were loaded successfully.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed indicates the run failed.
	RunStatusFailed RunStatus = "failed"
)

// IngestionRun records one invocation of a pipeline.
type IngestionRun struct {
	RunID        string `json:"run_id"`
	Pipeline     string `json:"pipeline"`
	AdvertiserID string `json:"advertiser_id"`
	DataRange    string `json:"data_range,omitempty"`

	Status RunStatus `json:"status"`

	// RemoteJobID is the report query or SDF task the run polled.
	RemoteJobID string `json:"remote_job_id,omitempty"`

	Table        string `json:"table,omitempty"`
	RowsInserted int    `json:"rows_inserted"`
	RowsDropped  int    `json:"rows_dropped"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Error string `json:"error,omitempty"`
}

// Publisher enqueues runs for asynchronous execution.
type Publisher interface {
	// PublishRun enqueues a run.
	PublishRun(ctx context.Context, run *IngestionRun) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer executes queued runs.
type Consumer interface {
	// Start begins consuming runs from the queue.
	Start(ctx context.Context, handler RunHandler) error

	// Stop stops consuming runs and waits for in-flight runs to complete.
	Stop(ctx context.Context) error
}

// RunHandler executes one run and fills in its outcome fields.
type RunHandler func(ctx context.Context, run *IngestionRun) error

// RunStore tracks run state for inspection over the API.
type RunStore interface {
	// SaveRun saves or updates a run's state.
	SaveRun(ctx context.Context, run *IngestionRun) error

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, runID string) (*IngestionRun, error)

	// ListRuns retrieves runs with optional filtering, newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]*IngestionRun, error)
}

// RunFilter defines filtering criteria for listing runs.
type RunFilter struct {
	Pipeline     string
	AdvertiserID string
	Status       RunStatus

	Limit  int
	Offset int
}
