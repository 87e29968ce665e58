package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dvloznov/dv360-adoption/internal/config"
	"github.com/dvloznov/dv360-adoption/internal/errs"
	"github.com/dvloznov/dv360-adoption/internal/logger"
)

var errNotDone = errors.New("job not done")

// Poller waits for remote jobs to complete using a bounded exponential backoff.
type Poller struct {
	cfg config.Poll
}

// NewPoller creates a Poller. A multiplier of 1 polls at a fixed interval.
func NewPoller(cfg config.Poll) *Poller {
	return &Poller{cfg: cfg}
}

// AwaitCompletion checks the job until the remote system reports it done and returns the
// refreshed job carrying its result location. Check errors are returned immediately
// without retry. When the attempt or elapsed-time bound is hit the error wraps
// errs.ErrPollTimeout; when ctx ends first the context error is returned.
func (p *Poller) AwaitCompletion(ctx context.Context, api RemoteAPI, job *Job) (*Job, error) {
	log := logger.FromContext(ctx)

	current := job
	checks := job.Checks

	operation := func() error {
		next, err := api.Check(ctx, current)
		checks++
		if err != nil {
			return backoff.Permanent(err)
		}
		next.Checks = checks
		current = next
		if current.Done() {
			return nil
		}
		return errNotDone
	}

	notify := func(_ error, wait time.Duration) {
		log.Debug().
			Str("job_id", current.ID).
			Str("kind", string(current.Kind)).
			Int("checks", checks).
			Dur("wait", wait).
			Msg("Remote job not done yet")
	}

	err := backoff.RetryNotify(operation, p.backOff(ctx), notify)
	if err == nil {
		log.Info().
			Str("job_id", current.ID).
			Str("kind", string(current.Kind)).
			Int("checks", checks).
			Msg("Remote job completed")
		return current, nil
	}

	if errors.Is(err, errNotDone) {
		return current, fmt.Errorf("AwaitCompletion: %s job %s after %d checks: %w", current.Kind, current.ID, checks, errs.ErrPollTimeout)
	}
	return current, fmt.Errorf("AwaitCompletion: %s job %s: %w", current.Kind, current.ID, err)
}

func (p *Poller) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.cfg.InitialInterval
	exp.MaxInterval = p.cfg.MaxInterval
	if exp.MaxInterval < exp.InitialInterval {
		exp.MaxInterval = exp.InitialInterval
	}
	exp.Multiplier = p.cfg.Multiplier
	if exp.Multiplier <= 1 {
		exp.Multiplier = 1
		exp.RandomizationFactor = 0
	}
	exp.MaxElapsedTime = p.cfg.MaxElapsed

	var b backoff.BackOff = exp
	if p.cfg.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, p.cfg.MaxAttempts-1)
	}
	return backoff.WithContext(b, ctx)
}
