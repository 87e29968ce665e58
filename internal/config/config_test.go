package config

import (
	"testing"
	"time"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(lookupFrom(nil))
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.DatasetID != DefaultDatasetID {
		t.Errorf("DatasetID = %q, want %q", cfg.DatasetID, DefaultDatasetID)
	}
	if cfg.SDFTable != "sdfs" {
		t.Errorf("SDFTable = %q, want sdfs", cfg.SDFTable)
	}
	if cfg.InsertBatchSize != 0 {
		t.Errorf("InsertBatchSize = %d, want 0", cfg.InsertBatchSize)
	}
	if cfg.DefaultDataRange != "LAST_7_DAYS" {
		t.Errorf("DefaultDataRange = %q", cfg.DefaultDataRange)
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(lookupFrom(map[string]string{
		"GCP_PROJECT":           "my-project",
		"BQ_DATASET":            "adoption",
		"POLL_INITIAL_INTERVAL": "250ms",
		"POLL_MULTIPLIER":       "1",
		"POLL_MAX_ATTEMPTS":     "40",
		"INSERT_BATCH_SIZE":     "500",
	}))
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.ProjectID != "my-project" || cfg.DatasetID != "adoption" {
		t.Errorf("unexpected project/dataset: %q/%q", cfg.ProjectID, cfg.DatasetID)
	}
	if cfg.Poll.InitialInterval != 250*time.Millisecond {
		t.Errorf("InitialInterval = %s", cfg.Poll.InitialInterval)
	}
	if cfg.Poll.Multiplier != 1 || cfg.Poll.MaxAttempts != 40 {
		t.Errorf("unexpected poll config: %+v", cfg.Poll)
	}
	if cfg.InsertBatchSize != 500 {
		t.Errorf("InsertBatchSize = %d", cfg.InsertBatchSize)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad duration", map[string]string{"POLL_MAX_ELAPSED": "soon"}},
		{"bad multiplier", map[string]string{"POLL_MULTIPLIER": "0.5"}},
		{"negative batch", map[string]string{"INSERT_BATCH_SIZE": "-1"}},
		{"bad int", map[string]string{"WORKER_COUNT": "five"}},
		{"unbounded polling", map[string]string{"POLL_MAX_ELAPSED": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := load(lookupFrom(tt.env)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestClientOptions(t *testing.T) {
	cfg := Default()
	if got := len(cfg.ClientOptions()); got != 0 {
		t.Errorf("ClientOptions() without credentials = %d options, want 0", got)
	}

	cfg.CredentialsFile = "/tmp/key.json"
	if got := len(cfg.ClientOptions(ScopeDisplayVideo, ScopeBidManager)); got != 2 {
		t.Errorf("ClientOptions() = %d options, want 2", got)
	}
}
