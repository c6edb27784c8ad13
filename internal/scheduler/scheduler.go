// Package scheduler runs the periodic maintenance jobs of the tutor daemon.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
	"git.home.luguber.info/inful/tutoragent/internal/logfields"
)

// Task is one run of a job. The context ends when the scheduler stops.
type Task func(ctx context.Context) error

// JobStatus summarizes the runs of one job.
type JobStatus struct {
	Name      string
	Runs      int
	Failures  int
	LastRun   time.Time
	LastError string
	NextRun   time.Time
}

// Scheduler wraps a gocron scheduler. Runs of the same job never overlap.
type Scheduler struct {
	scheduler gocron.Scheduler

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	jobs   map[string]gocron.Job
	status map[string]*JobStatus
}

// New creates a stopped scheduler.
func New() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "create scheduler").Build()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      map[string]gocron.Job{},
		status:    map[string]*JobStatus{},
	}, nil
}

// AddInterval runs task every interval once the scheduler is started. With
// immediately set the first run happens at start.
func (s *Scheduler) AddInterval(name string, every time.Duration, immediately bool, task Task) error {
	if every <= 0 {
		return ferrors.ValidationError("job interval must be positive").WithContext("job", name).Build()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return ferrors.NewError(ferrors.CategoryAlreadyExists, "job already registered").WithContext("job", name).Build()
	}

	opts := []gocron.JobOption{
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if immediately {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}
	job, err := s.scheduler.NewJob(gocron.DurationJob(every), gocron.NewTask(s.run, name, task), opts...)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "create job").WithContext("job", name).Build()
	}
	s.jobs[name] = job
	s.status[name] = &JobStatus{Name: name}
	slog.Info("Scheduled job", logfields.Job(name), slog.Duration("every", every))
	return nil
}

func (s *Scheduler) run(name string, task Task) {
	start := time.Now()
	err := task(s.ctx)

	s.mu.Lock()
	st := s.status[name]
	st.Runs++
	st.LastRun = start
	st.LastError = ""
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		slog.Error("Scheduled job failed", logfields.Job(name), logfields.Error(err))
		return
	}
	slog.Debug("Scheduled job finished", logfields.Job(name), logfields.Duration(time.Since(start)))
}

// Status returns a snapshot of every job, including its next run time.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.status))
	for name, st := range s.status {
		cp := *st
		if next, err := s.jobs[name].NextRun(); err == nil {
			cp.NextRun = next
		}
		out = append(out, cp)
	}
	return out
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop cancels running tasks and waits for them to return.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	s.cancel()
	if err := s.scheduler.Shutdown(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "stop scheduler").Build()
	}
	return nil
}
