package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/dv360-adoption/internal/app"
	"github.com/dvloznov/dv360-adoption/internal/config"
	"github.com/dvloznov/dv360-adoption/internal/logger"
	"github.com/dvloznov/dv360-adoption/internal/pipeline"
	"github.com/rs/zerolog"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	switch os.Args[1] {
	case "report":
		runPipeline(log, cfg, pipeline.PipelineReport)
	case "sdf":
		runPipeline(log, cfg, pipeline.PipelineSDF)
	case "ensure-tables":
		runEnsureTables(log, cfg)
	case "inspect":
		runInspect(log, cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("DV360 Feature Adoption CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  report         Request a performance report and load it into BigQuery")
	fmt.Println("  sdf            Request an SDF export and load its line items into BigQuery")
	fmt.Println("  ensure-tables  Create the dataset and destination tables if missing")
	fmt.Println("  inspect        Show rows loaded per import date for an advertiser")
	fmt.Println("  help           Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// commandContext is cancelled on SIGINT/SIGTERM and after the polling bound plus a margin.
func commandContext(log zerolog.Logger, cfg config.Config) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, cfg.Poll.MaxElapsed+10*time.Minute)
	return logger.WithContext(ctx, log), func() {
		cancel()
		stop()
	}
}

func runPipeline(log zerolog.Logger, cfg config.Config, name string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	advertiserID := fs.String("advertiser-id", "", "DV360 advertiser ID")
	dataRange := fs.String("data-range", "", "Report data range, e.g. LAST_7_DAYS (report only)")
	batchSize := fs.Int("batch-size", cfg.InsertBatchSize, "Rows per insert call; 0 inserts everything at once")
	dryRun := fs.Bool("dry-run", false, "Keep rows in memory instead of writing to BigQuery")
	fs.Parse(os.Args[2:])

	if *advertiserID == "" {
		log.Fatal().Msg("Error: --advertiser-id is required")
	}
	cfg.InsertBatchSize = *batchSize
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := commandContext(log, cfg)
	defer cancel()

	a, err := app.New(ctx, cfg, app.Options{DryRun: *dryRun})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire pipelines")
	}
	defer a.Close()

	req := pipeline.Request{AdvertiserID: *advertiserID, DataRange: *dataRange}

	var res *pipeline.Result
	switch name {
	case pipeline.PipelineReport:
		res, err = a.Runner.RunReport(ctx, req)
	case pipeline.PipelineSDF:
		res, err = a.Runner.RunSDF(ctx, req)
	}
	if err != nil {
		log.Error().Err(err).Str("pipeline", name).Msg("Pipeline failed")
		os.Exit(1)
	}

	fmt.Println(res.Message())
}

func runEnsureTables(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("ensure-tables", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel := commandContext(log, cfg)
	defer cancel()

	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire pipelines")
	}
	defer a.Close()

	tables, err := a.Runner.EnsureTables(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to ensure tables")
		os.Exit(1)
	}

	for _, t := range tables {
		state := "exists"
		if t.Created {
			state = "created"
		}
		fmt.Printf("%-40s %s\n", t.Spec.FullName(), state)
	}
}

func runInspect(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	advertiserID := fs.String("advertiser-id", "", "DV360 advertiser ID")
	days := fs.Int("days", 30, "How many days of imports to show")
	fs.Parse(os.Args[2:])

	id, err := pipeline.ParseAdvertiserID(*advertiserID)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: --advertiser-id must be a positive integer")
	}

	ctx, cancel := commandContext(log, cfg)
	defer cancel()

	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire pipelines")
	}
	defer a.Close()

	since := civil.DateOf(time.Now()).AddDays(-*days)

	for _, spec := range a.Runner.TableSpecs() {
		counts, err := a.Warehouse.CountRowsByImportDate(ctx, spec, id, since)
		if err != nil {
			log.Error().Err(err).Str("table", spec.FullName()).Msg("Failed to count rows")
			os.Exit(1)
		}

		fmt.Printf("\n=== %s (%d import dates) ===\n", spec.FullName(), len(counts))
		for _, c := range counts {
			fmt.Printf("  %s  %d rows\n", c.ImportedAt, c.Rows)
		}
	}
	fmt.Println()
}
