// Package app builds the runner and its clients from a Config. Both binaries use it.
package app

import (
	"context"
	"fmt"
	"net/http"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/dv360-adoption/internal/config"
	"github.com/dvloznov/dv360-adoption/internal/dv360"
	"github.com/dvloznov/dv360-adoption/internal/fetch"
	infraBQ "github.com/dvloznov/dv360-adoption/internal/infra/bigquery"
	"github.com/dvloznov/dv360-adoption/internal/infra/memory"
	"github.com/dvloznov/dv360-adoption/internal/jobs"
	"github.com/dvloznov/dv360-adoption/internal/logger"
	"github.com/dvloznov/dv360-adoption/internal/pipeline"
	"github.com/dvloznov/dv360-adoption/internal/sink"
)

// App holds the wired runner and the clients that must be closed on exit.
type App struct {
	Config config.Config
	Runner *pipeline.Runner
	Sink   sink.Sink

	// Warehouse is nil in dry-run mode.
	Warehouse *infraBQ.BigQueryTableSink

	storage *storage.Client
}

// Options tweaks how New wires the App.
type Options struct {
	// DryRun loads rows into an in-memory sink instead of BigQuery.
	DryRun bool
}

// New creates every client from cfg and wires the runner.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	log := logger.FromContext(ctx)

	reportAPI, err := dv360.NewReportAPI(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}
	sdfAPI, err := dv360.NewSDFAPI(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}

	storageClient, err := storage.NewClient(ctx, cfg.ClientOptions(storage.ScopeReadOnly)...)
	if err != nil {
		return nil, fmt.Errorf("app.New: creating storage client: %w", err)
	}

	a := &App{Config: cfg, storage: storageClient}

	if opts.DryRun {
		log.Warn().Msg("Dry run: rows are kept in memory and not written to BigQuery")
		a.Sink = memory.NewSink()
	} else {
		warehouse, err := infraBQ.NewBigQueryTableSink(ctx, cfg)
		if err != nil {
			storageClient.Close()
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.Warehouse = warehouse
		a.Sink = warehouse
	}

	fetcher := fetch.NewFetcher(&http.Client{}, storageClient, sdfAPI)
	a.Runner = pipeline.NewRunner(reportAPI, sdfAPI, jobs.NewPoller(cfg.Poll), fetcher, a.Sink, cfg)

	log.Info().
		Str("project", cfg.ProjectID).
		Str("dataset", cfg.DatasetID).
		Str("sdf_version", cfg.SDFVersion).
		Int("insert_batch_size", cfg.InsertBatchSize).
		Msg("Pipelines wired")

	return a, nil
}

// Close releases the storage and BigQuery clients.
func (a *App) Close() error {
	var firstErr error
	if a.Warehouse != nil {
		if err := a.Warehouse.Close(); err != nil {
			firstErr = err
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
