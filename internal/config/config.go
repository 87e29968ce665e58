// Package config holds the explicit configuration shared by every remote call site.
// Nothing here is global: callers load a Config once and pass it down.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/option"
)

// OAuth scopes required by the reporting and export APIs.
const (
	ScopeDisplayVideo  = "https://www.googleapis.com/auth/display-video"
	ScopeBidManager    = "https://www.googleapis.com/auth/doubleclickbidmanager"
	DefaultDataRange   = "LAST_7_DAYS"
	DefaultSDFVersion  = "SDF_VERSION_7"
	DefaultDatasetID   = "dv360_feature_adoption"
	DefaultLocation    = "US"
	DefaultReportTable = "reports"
	DefaultSDFTable    = "sdfs"
)

// Poll controls how AwaitCompletion spaces and bounds its status checks.
type Poll struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsed      time.Duration
	// MaxAttempts caps status checks; 0 leaves only MaxElapsed as the bound.
	MaxAttempts uint64
}

// Config is the process configuration.
type Config struct {
	ProjectID       string
	DatasetID       string
	Location        string
	ReportTable     string
	SDFTable        string
	CredentialsFile string

	SDFVersion       string
	DefaultDataRange string

	Poll Poll

	// InsertBatchSize of 0 buffers every row and inserts once.
	InsertBatchSize int

	Port        string
	QueueSize   int
	WorkerCount int
}

// Default returns the configuration used when no environment overrides are set.
func Default() Config {
	return Config{
		ProjectID:        bigquery.DetectProjectID,
		DatasetID:        DefaultDatasetID,
		Location:         DefaultLocation,
		ReportTable:      DefaultReportTable,
		SDFTable:         DefaultSDFTable,
		SDFVersion:       DefaultSDFVersion,
		DefaultDataRange: DefaultDataRange,
		Poll: Poll{
			InitialInterval: 5 * time.Second,
			MaxInterval:     time.Minute,
			Multiplier:      1.5,
			MaxElapsed:      30 * time.Minute,
		},
		Port:        "8080",
		QueueSize:   100,
		WorkerCount: 5,
	}
}

// Load builds a Config from Default overlaid with environment variables.
func Load() (Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("GCP_PROJECT", &cfg.ProjectID)
	str("BQ_DATASET", &cfg.DatasetID)
	str("BQ_LOCATION", &cfg.Location)
	str("BQ_REPORT_TABLE", &cfg.ReportTable)
	str("BQ_SDF_TABLE", &cfg.SDFTable)
	str("GOOGLE_APPLICATION_CREDENTIALS", &cfg.CredentialsFile)
	str("SDF_VERSION", &cfg.SDFVersion)
	str("REPORT_DATA_RANGE", &cfg.DefaultDataRange)
	str("PORT", &cfg.Port)

	durations := map[string]*time.Duration{
		"POLL_INITIAL_INTERVAL": &cfg.Poll.InitialInterval,
		"POLL_MAX_INTERVAL":     &cfg.Poll.MaxInterval,
		"POLL_MAX_ELAPSED":      &cfg.Poll.MaxElapsed,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = d
	}

	if v, ok := lookup("POLL_MULTIPLIER"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: POLL_MULTIPLIER: %w", err)
		}
		cfg.Poll.Multiplier = f
	}
	if v, ok := lookup("POLL_MAX_ATTEMPTS"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: POLL_MAX_ATTEMPTS: %w", err)
		}
		cfg.Poll.MaxAttempts = n
	}

	ints := map[string]*int{
		"INSERT_BATCH_SIZE": &cfg.InsertBatchSize,
		"QUEUE_SIZE":        &cfg.QueueSize,
		"WORKER_COUNT":      &cfg.WorkerCount,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = n
	}

	return cfg, cfg.Validate()
}

// Validate rejects configurations that would make polling or loading misbehave.
func (c Config) Validate() error {
	if c.DatasetID == "" {
		return fmt.Errorf("config: dataset is required")
	}
	if c.ReportTable == "" || c.SDFTable == "" {
		return fmt.Errorf("config: report and sdf table names are required")
	}
	if c.Poll.InitialInterval <= 0 {
		return fmt.Errorf("config: poll initial interval must be positive, got %s", c.Poll.InitialInterval)
	}
	if c.Poll.Multiplier < 1 {
		return fmt.Errorf("config: poll multiplier must be >= 1, got %v", c.Poll.Multiplier)
	}
	if c.Poll.MaxElapsed <= 0 && c.Poll.MaxAttempts == 0 {
		return fmt.Errorf("config: polling must be bounded by max elapsed time or max attempts")
	}
	if c.InsertBatchSize < 0 {
		return fmt.Errorf("config: insert batch size must not be negative")
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("config: worker count must be at least 1")
	}
	return nil
}

// ClientOptions returns the options every Google API client is built with.
func (c Config) ClientOptions(scopes ...string) []option.ClientOption {
	var opts []option.ClientOption
	if c.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}
	if len(scopes) > 0 {
		opts = append(opts, option.WithScopes(scopes...))
	}
	return opts
}
