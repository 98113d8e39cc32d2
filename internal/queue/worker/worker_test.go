package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aeroreserva/flighthub/internal/domain/job"
	"github.com/aeroreserva/flighthub/internal/jobs"
	"github.com/aeroreserva/flighthub/internal/notifications"
)

type fakeJobsRepo struct {
	mu      sync.Mutex
	pending []job.Job

	done        []string
	failed      []string
	rescheduled []string
}

func (r *fakeJobsRepo) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) == 0 {
		return job.Job{}, job.ErrJobNotFound
	}

	j := r.pending[0]
	r.pending = r.pending[1:]
	return j, nil
}

func (r *fakeJobsRepo) MarkDone(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = append(r.done, id)
	return nil
}

func (r *fakeJobsRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, id)
	return nil
}

func (r *fakeJobsRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rescheduled = append(r.rescheduled, id)
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []notifications.SendReservationConfirmationInput
	fail  bool
	calls int
}

func (n *fakeNotifier) SendReservationConfirmation(ctx context.Context, in notifications.SendReservationConfirmationInput) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.calls++

	if n.fail {
		return errors.New("provider down")
	}

	n.sent = append(n.sent, in)
	return nil
}

func confirmationJob(t *testing.T, id string, attempts, maxAttempts int) job.Job {
	t.Helper()

	payload, err := jobs.ReservationConfirmationPayload{
		ReservationID: "res-1",
		FlightID:      "flight-1",
		Code:          "A1B2C3D4",
		Email:         "ana@example.com",
		Name:          "Ana",
	}.JSON()

	if err != nil {
		t.Fatalf("payload: %v", err)
	}

	return job.Job{
		ID:          id,
		Type:        jobs.TypeReservationConfirmation,
		Payload:     payload,
		Status:      job.StatusProcessing,
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
	}
}

func newTestWorker(repo *fakeJobsRepo, n notifications.Notifier) *Worker {
	return New(Config{WorkerID: "test-1", PollInterval: time.Millisecond}, repo, n, slog.New(slog.DiscardHandler))
}

func TestProcessOneDeliversConfirmation(t *testing.T) {
	repo := &fakeJobsRepo{pending: []job.Job{confirmationJob(t, "job-1", 0, 10)}}
	notifier := &fakeNotifier{}

	w := newTestWorker(repo, notifier)

	processed, err := w.ProcessOne(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !processed {
		t.Fatal("expected a job to be claimed")
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.sent))
	}

	if notifier.sent[0].Code != "A1B2C3D4" {
		t.Fatalf("unexpected code %q", notifier.sent[0].Code)
	}

	if len(repo.done) != 1 || repo.done[0] != "job-1" {
		t.Fatalf("expected job-1 marked done, got %v", repo.done)
	}
}

func TestProcessOneIdleQueue(t *testing.T) {
	repo := &fakeJobsRepo{}

	w := newTestWorker(repo, &fakeNotifier{})

	processed, err := w.ProcessOne(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if processed {
		t.Fatal("expected no job on an empty queue")
	}
}

func TestProcessOneReschedulesOnFailure(t *testing.T) {
	repo := &fakeJobsRepo{pending: []job.Job{confirmationJob(t, "job-1", 0, 10)}}
	notifier := &fakeNotifier{fail: true}

	w := newTestWorker(repo, notifier)

	processed, err := w.ProcessOne(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !processed {
		t.Fatal("expected a job to be claimed")
	}

	if len(repo.rescheduled) != 1 {
		t.Fatalf("expected 1 reschedule, got %v", repo.rescheduled)
	}

	if len(repo.failed) != 0 {
		t.Fatalf("expected no terminal failure, got %v", repo.failed)
	}
}

func TestProcessOneFailsPermanentlyAtMaxAttempts(t *testing.T) {
	// attempts=9 of max 10: this run burns the last attempt
	repo := &fakeJobsRepo{pending: []job.Job{confirmationJob(t, "job-1", 9, 10)}}
	notifier := &fakeNotifier{fail: true}

	w := newTestWorker(repo, notifier)

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.failed) != 1 {
		t.Fatalf("expected terminal failure, got failed=%v rescheduled=%v", repo.failed, repo.rescheduled)
	}
}

func TestProcessOneUnknownJobType(t *testing.T) {
	repo := &fakeJobsRepo{pending: []job.Job{{
		ID:          "job-x",
		Type:        "mystery",
		Payload:     []byte(`{}`),
		Attempts:    0,
		MaxAttempts: 1,
	}}}

	w := newTestWorker(repo, &fakeNotifier{})

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.failed) != 1 {
		t.Fatalf("expected unknown type to fail terminally, got %v", repo.failed)
	}
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{attempt: 0, min: 2 * time.Second, max: 2*time.Second + 250*time.Millisecond},
		{attempt: 1, min: 4 * time.Second, max: 4*time.Second + 250*time.Millisecond},
		{attempt: 3, min: 16 * time.Second, max: 16*time.Second + 250*time.Millisecond},
		{attempt: 20, min: 5 * time.Minute, max: 5*time.Minute + 250*time.Millisecond},
	}

	for _, tc := range tests {
		got := ExponentialBackoff(tc.attempt)

		if got < tc.min || got > tc.max {
			t.Fatalf("attempt %d: backoff %v outside [%v, %v]", tc.attempt, got, tc.min, tc.max)
		}
	}
}
