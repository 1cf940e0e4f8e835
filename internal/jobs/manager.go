package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wavetrader/internal/errors"
	"wavetrader/internal/models"
)

// Job is one asynchronous run and its lifecycle state.
type Job struct {
	ID         string
	Kind       string
	Status     models.JobStatus
	Error      string
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// Recorder persists job lifecycle transitions. Persistence failures
// are logged, never fatal to the run itself.
type Recorder interface {
	RecordJob(ctx context.Context, job Job) error
}

// TaskFunc is the body of a job. It must poll ctx at its own
// iteration boundaries; cancellation is cooperative.
type TaskFunc func(ctx context.Context) error

type jobState struct {
	job    Job
	cancel context.CancelFunc
}

// Manager tracks jobs, dispatches them onto a worker pool and flips
// their cancellation flags.
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*jobState
	order    []string
	pool     *WorkerPool
	recorder Recorder
	seq      int
	log      zerolog.Logger
}

// NewManager creates a manager backed by a started worker pool.
func NewManager(workers int, logger zerolog.Logger) *Manager {
	pool := NewWorkerPool(workers)
	pool.Start()
	return &Manager{
		jobs: make(map[string]*jobState),
		pool: pool,
		log:  logger,
	}
}

// WithRecorder attaches a persistent job recorder.
func (m *Manager) WithRecorder(recorder Recorder) *Manager {
	m.recorder = recorder
	return m
}

// Submit registers a job and queues it for execution. The returned ID
// is unique within this manager.
func (m *Manager) Submit(kind string, task TaskFunc) (string, error) {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.seq++
	id := fmt.Sprintf("%s-%d", kind, m.seq)
	state := &jobState{
		job: Job{
			ID:        id,
			Kind:      kind,
			Status:    models.JobPending,
			CreatedAt: time.Now(),
		},
		cancel: cancel,
	}
	m.jobs[id] = state
	m.order = append(m.order, id)
	m.mu.Unlock()

	m.record(state.job)

	queued := m.pool.Submit(func() {
		defer cancel()
		m.run(ctx, id, task)
	})
	if !queued {
		cancel()
		m.transition(id, func(j *Job) {
			j.Status = models.JobFailed
			j.Error = "worker pool rejected job"
			j.FinishedAt = time.Now()
		})
		return id, errors.Wrap(errors.ErrInvalidParameter, "worker pool full or stopped")
	}

	return id, nil
}

func (m *Manager) run(ctx context.Context, id string, task TaskFunc) {
	m.transition(id, func(j *Job) {
		j.Status = models.JobRunning
		j.StartedAt = time.Now()
	})

	err := task(ctx)

	m.transition(id, func(j *Job) {
		j.FinishedAt = time.Now()
		switch {
		case err == nil:
			j.Status = models.JobCompleted
		case errors.Is(err, errors.ErrJobCancelled) || errors.Is(err, context.Canceled) || ctx.Err() != nil:
			j.Status = models.JobCancelled
		default:
			j.Status = models.JobFailed
			j.Error = err.Error()
		}
	})

	if err != nil {
		m.log.Warn().Str("job_id", id).Err(err).Msg("Job finished with error")
	} else {
		m.log.Info().Str("job_id", id).Msg("Job completed")
	}
}

// Cancel flips the job's cancellation flag. The job observes it at
// its next iteration boundary.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	state, ok := m.jobs[id]
	m.mu.Unlock()

	if !ok {
		return errors.Wrap(errors.ErrJobNotFound, id)
	}
	state.cancel()
	return nil
}

// Get returns a snapshot of one job.
func (m *Manager) Get(id string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.jobs[id]
	if !ok {
		return Job{}, errors.Wrap(errors.ErrJobNotFound, id)
	}
	return state.job, nil
}

// List returns snapshots of all jobs in submission order.
func (m *Manager) List() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Job, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.jobs[id].job)
	}
	return out
}

// Wait blocks until the job reaches a terminal state or the context
// expires, polling the snapshot.
func (m *Manager) Wait(ctx context.Context, id string) (Job, error) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		job, err := m.Get(id)
		if err != nil {
			return Job{}, err
		}
		switch job.Status {
		case models.JobCompleted, models.JobFailed, models.JobCancelled:
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops the pool, waiting for in-flight jobs.
func (m *Manager) Close() {
	m.pool.Stop()
}

func (m *Manager) transition(id string, mutate func(*Job)) {
	m.mu.Lock()
	state, ok := m.jobs[id]
	if ok {
		mutate(&state.job)
	}
	var snapshot Job
	if ok {
		snapshot = state.job
	}
	m.mu.Unlock()

	if ok {
		m.record(snapshot)
	}
}

func (m *Manager) record(job Job) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.RecordJob(context.Background(), job); err != nil {
		m.log.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to persist job state")
	}
}
