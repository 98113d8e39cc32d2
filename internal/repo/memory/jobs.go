package memory

import (
	"context"
	"sync"

	"github.com/aeroreserva/flighthub/internal/domain/job"
	"github.com/jackc/pgx/v5"
)

// JobsRepo records enqueued jobs so tests can assert on them.
type JobsRepo struct {
	mu   sync.Mutex
	jobs []job.Job
}

func NewJobsRepo() *JobsRepo {
	return &JobsRepo{}
}

func (r *JobsRepo) CreateTx(ctx context.Context, tx pgx.Tx, req job.CreateRequest) (job.Job, error) {
	j := job.New(req)

	r.mu.Lock()
	r.jobs = append(r.jobs, j)
	r.mu.Unlock()

	return j, nil
}

func (r *JobsRepo) All() []job.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]job.Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}
