package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/dv360-adoption/internal/api/middleware"
	"github.com/dvloznov/dv360-adoption/internal/errs"
	"github.com/dvloznov/dv360-adoption/internal/jobs"
	"github.com/dvloznov/dv360-adoption/internal/logger"
	"github.com/dvloznov/dv360-adoption/internal/pipeline"
)

// PipelineRunner runs the two ingestion pipelines synchronously.
type PipelineRunner interface {
	RunReport(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	RunSDF(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// PipelinesHandler handles the /report and /sdf endpoints.
type PipelinesHandler struct {
	runner    PipelineRunner
	publisher jobs.Publisher
}

// NewPipelinesHandler creates a new pipelines handler. publisher may be nil, in which
// case async=true requests are rejected.
func NewPipelinesHandler(runner PipelineRunner, publisher jobs.Publisher) *PipelinesHandler {
	return &PipelinesHandler{
		runner:    runner,
		publisher: publisher,
	}
}

// Report handles GET|POST /report
func (h *PipelinesHandler) Report(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, pipeline.PipelineReport, h.runner.RunReport)
}

// SDF handles GET|POST /sdf
func (h *PipelinesHandler) SDF(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, pipeline.PipelineSDF, h.runner.RunSDF)
}

type runFunc func(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)

func (h *PipelinesHandler) serve(w http.ResponseWriter, r *http.Request, name string, run runFunc) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	req, async, err := parseRequest(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if async {
		h.enqueue(w, r, name, req)
		return
	}

	res, err := run(ctx, req)
	if err != nil {
		status := http.StatusInternalServerError
		if errs.IsClientError(err) {
			status = http.StatusBadRequest
		}
		log.Error().Err(err).Str("pipeline", name).Msg("Pipeline failed")
		middleware.WriteError(w, status, err.Error())
		return
	}

	middleware.WriteSuccess(w, res.Message())
}

func (h *PipelinesHandler) enqueue(w http.ResponseWriter, r *http.Request, name string, req pipeline.Request) {
	ctx := r.Context()

	if h.publisher == nil {
		middleware.WriteError(w, http.StatusNotImplemented, "Asynchronous runs are not enabled")
		return
	}
	if _, err := pipeline.ParseAdvertiserID(req.AdvertiserID); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	run := &jobs.IngestionRun{
		Pipeline:     name,
		AdvertiserID: strings.TrimSpace(req.AdvertiserID),
		DataRange:    req.DataRange,
	}
	if err := h.publisher.PublishRun(ctx, run); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("pipeline", name).Msg("Failed to enqueue run")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue run")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"run_id":  run.RunID,
		"status":  jobs.RunStatusPending,
		"message": "Run queued",
	})
}

// advertiserParam accepts the advertiser id as a JSON number or string.
type advertiserParam string

func (p *advertiserParam) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = advertiserParam(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("advertiserId must be a string or a number: %w", err)
	}
	*p = advertiserParam(n.String())
	return nil
}

// parseRequest reads query parameters first and falls back to a JSON body.
func parseRequest(r *http.Request) (pipeline.Request, bool, error) {
	query := r.URL.Query()
	req := pipeline.Request{
		AdvertiserID: query.Get("advertiserId"),
		DataRange:    query.Get("dataRange"),
	}
	async, _ := strconv.ParseBool(query.Get("async"))

	if r.Method == http.MethodPost && r.Body != nil {
		var body struct {
			AdvertiserID advertiserParam `json:"advertiserId"`
			DataRange    string          `json:"dataRange"`
			Async        bool            `json:"async"`
		}
		err := json.NewDecoder(r.Body).Decode(&body)
		switch {
		case errors.Is(err, io.EOF):
		case err != nil:
			return req, false, errors.New("invalid request body")
		default:
			if req.AdvertiserID == "" {
				req.AdvertiserID = string(body.AdvertiserID)
			}
			if req.DataRange == "" {
				req.DataRange = body.DataRange
			}
			async = async || body.Async
		}
	}

	return req, async, nil
}

// RunsHandler handles run-tracking endpoints.
type RunsHandler struct {
	store jobs.RunStore
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(store jobs.RunStore) *RunsHandler {
	return &RunsHandler{store: store}
}

// GetRun handles GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request, runID string) {
	ctx := r.Context()

	run, err := h.store.GetRun(ctx, runID)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("run_id", runID).Msg("Failed to get run")
		middleware.WriteError(w, http.StatusNotFound, "Run not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, run)
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.RunFilter{
		Pipeline:     query.Get("pipeline"),
		AdvertiserID: query.Get("advertiser_id"),
		Status:       jobs.RunStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	runs, err := h.store.ListRuns(ctx, filter)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}
