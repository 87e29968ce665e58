package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/dv360-adoption/internal/config"
	"github.com/dvloznov/dv360-adoption/internal/errs"
)

// scriptedAPI reports not-done until doneAfter checks have been made.
type scriptedAPI struct {
	doneAfter int
	checkErr  error
	calls     int
}

func (s *scriptedAPI) Submit(ctx context.Context, params Params) (*Job, error) {
	return &Job{ID: "query-1", Kind: KindReport, Status: StatusNotDone}, nil
}

func (s *scriptedAPI) Check(ctx context.Context, job *Job) (*Job, error) {
	s.calls++
	if s.checkErr != nil {
		return nil, s.checkErr
	}
	next := *job
	if s.doneAfter > 0 && s.calls >= s.doneAfter {
		next.Status = StatusDone
		next.ResultLocation = "gs://reports/query-1.csv"
	}
	return &next, nil
}

func fastPoll() config.Poll {
	return config.Poll{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      1,
		MaxElapsed:      5 * time.Second,
		MaxAttempts:     10,
	}
}

func TestAwaitCompletion_ThirdCheckDone(t *testing.T) {
	api := &scriptedAPI{doneAfter: 3}
	job, _ := api.Submit(context.Background(), Params{AdvertiserID: 1})

	done, err := NewPoller(fastPoll()).AwaitCompletion(context.Background(), api, job)
	if err != nil {
		t.Fatalf("AwaitCompletion() error = %v", err)
	}
	if api.calls != 3 {
		t.Errorf("status checks = %d, want 3", api.calls)
	}
	if done.Checks != 3 {
		t.Errorf("job.Checks = %d, want 3", done.Checks)
	}
	if done.ResultLocation != "gs://reports/query-1.csv" {
		t.Errorf("ResultLocation = %q", done.ResultLocation)
	}
}

func TestAwaitCompletion_MaxAttempts(t *testing.T) {
	api := &scriptedAPI{}
	cfg := fastPoll()
	cfg.MaxAttempts = 4

	_, err := NewPoller(cfg).AwaitCompletion(context.Background(), api, &Job{ID: "q", Kind: KindReport})
	if !errors.Is(err, errs.ErrPollTimeout) {
		t.Fatalf("error = %v, want ErrPollTimeout", err)
	}
	if api.calls != 4 {
		t.Errorf("status checks = %d, want 4", api.calls)
	}
}

func TestAwaitCompletion_CheckErrorNotRetried(t *testing.T) {
	api := &scriptedAPI{checkErr: errs.ErrTransport}

	_, err := NewPoller(fastPoll()).AwaitCompletion(context.Background(), api, &Job{ID: "op/1", Kind: KindSDFExport})
	if !errors.Is(err, errs.ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
	if api.calls != 1 {
		t.Errorf("status checks = %d, want 1", api.calls)
	}
}

func TestAwaitCompletion_ContextCancelled(t *testing.T) {
	api := &scriptedAPI{}
	cfg := fastPoll()
	cfg.InitialInterval = time.Hour
	cfg.MaxInterval = time.Hour
	cfg.MaxAttempts = 0
	cfg.MaxElapsed = 2 * time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewPoller(cfg).AwaitCompletion(ctx, api, &Job{ID: "q", Kind: KindReport})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
	if api.calls != 1 {
		t.Errorf("status checks = %d, want 1", api.calls)
	}
}
