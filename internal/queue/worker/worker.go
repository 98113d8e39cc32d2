package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aeroreserva/flighthub/internal/domain/job"
	"github.com/aeroreserva/flighthub/internal/jobs"
	"github.com/aeroreserva/flighthub/internal/notifications"
	"github.com/aeroreserva/flighthub/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
}

// WakeWaiter blocks until the API signals fresh work or the timeout passes.
// Optional; without one the worker runs on the poll ticker alone.
type WakeWaiter interface {
	WaitForWake(ctx context.Context, timeout time.Duration)
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	ShutdownGrace time.Duration
}

type Worker struct {
	cfg      Config
	repo     JobsRepository
	notifier notifications.Notifier
	log      *slog.Logger
	prom     *observability.Prom
	waiter   WakeWaiter

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo JobsRepository, notifier notifications.Notifier, log *slog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}

	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		log:      log,
	}
}

// WithWakeWaiter lets the worker sleep on a redis nudge instead of only the
// poll ticker.
func (w *Worker) WithWakeWaiter(ww WakeWaiter) *Worker {
	w.waiter = ww
	return w
}

func (w *Worker) WithMetrics(prom *observability.Prom) *Worker {
	w.prom = prom
	return w
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

// Run drains jobs until ctx is cancelled. After each idle claim it waits for
// either a wake nudge or the poll interval before claiming again.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	w.log.Info("worker started", "worker_id", w.cfg.WorkerID, "poll_interval", w.cfg.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker received shutdown signal")
			return nil
		default:
		}

		processed, err := w.ProcessOne(ctx)

		if err != nil {
			w.log.Error("job processing error", "error", err)
		}

		if processed {
			// drain the queue while there is work
			continue
		}

		w.idle(ctx)
	}
}

func (w *Worker) idle(ctx context.Context) {
	if w.waiter != nil {
		w.waiter.WaitForWake(ctx, w.cfg.PollInterval)
		return
	}

	select {
	case <-ctx.Done():
	case <-time.After(w.cfg.PollInterval):
	}
}

// ProcessOne claims and executes at most one job. The bool reports whether a
// job was claimed, so the caller knows to keep draining.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}
		return false, err
	}

	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	start := time.Now()
	execErr := w.execute(ctx, j)
	elapsed := time.Since(start).Seconds()

	if execErr != nil {
		result := w.handleFailure(ctx, j, execErr)
		w.jobResult(j.Type, result, elapsed)
		return true, nil
	}

	err = w.repo.MarkDone(ctx, j.ID)

	if err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		w.jobResult(j.Type, "failed", elapsed)
		return true, err
	}

	w.jobResult(j.Type, "done", elapsed)
	w.log.Info("job done", "job_id", j.ID, "type", j.Type, "attempts", j.Attempts)
	return true, nil
}

func (w *Worker) jobResult(jobType, result string, seconds float64) {
	if w.prom == nil {
		return
	}

	w.prom.JobResults.WithLabelValues(jobType, result).Inc()
	w.prom.JobDuration.WithLabelValues(jobType, result).Observe(seconds)
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	switch j.Type {
	case jobs.TypeReservationConfirmation:
		var p jobs.ReservationConfirmationPayload

		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}

		return w.notifier.SendReservationConfirmation(ctx, notifications.SendReservationConfirmationInput{
			Email:         p.Email,
			Name:          p.Name,
			FlightID:      p.FlightID,
			ReservationID: p.ReservationID,
			Code:          p.Code,
		})

	default:
		return fmt.Errorf("unknown job type %q", j.Type)
	}
}

// handleFailure decides between retry and terminal failure and returns the
// metric label for the outcome.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, execErr error) string {
	// Attempts was read before this run; the attempt we just burned makes it +1.
	nextAttempts := j.Attempts + 1

	if nextAttempts >= j.MaxAttempts {
		w.log.Error("job failed permanently",
			"job_id", j.ID, "type", j.Type, "attempts", nextAttempts, "error", execErr)

		if err := w.repo.MarkFailed(ctx, j.ID, execErr.Error()); err != nil {
			w.log.Error("mark failed error", "job_id", j.ID, "error", err)
		}
		return "failed"
	}

	delay := ExponentialBackoff(j.Attempts)
	runAt := time.Now().UTC().Add(delay)

	w.log.Warn("job failed, rescheduling",
		"job_id", j.ID, "type", j.Type, "attempts", nextAttempts, "retry_in", delay.String(), "error", execErr)

	if err := w.repo.Reschedule(ctx, j.ID, runAt, execErr.Error()); err != nil {
		w.log.Error("reschedule error", "job_id", j.ID, "error", err)
	}
	return "retry"
}
