package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"verimeter/internal/services"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// JobScheduler runs the periodic ledger and audit maintenance
type JobScheduler struct {
	scheduler  gocron.Scheduler
	reconciler *Reconciler
	archive    services.AuditArchiveService
	logger     *logrus.Logger

	reconcileInterval time.Duration
	archiveInterval   time.Duration

	jobs map[string]gocron.Job
	mu   sync.RWMutex
}

// SchedulerOptions configures job intervals. A nil Archive disables the
// archive job.
type SchedulerOptions struct {
	ReconcileInterval time.Duration
	ArchiveInterval   time.Duration
	Archive           services.AuditArchiveService
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler(reconciler *Reconciler, opts SchedulerOptions, logger *logrus.Logger) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	js := &JobScheduler{
		scheduler:         scheduler,
		reconciler:        reconciler,
		archive:           opts.Archive,
		logger:            logger,
		reconcileInterval: opts.ReconcileInterval,
		archiveInterval:   opts.ArchiveInterval,
		jobs:              make(map[string]gocron.Job),
	}
	if err := js.registerJobs(); err != nil {
		return nil, err
	}
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	js.logger.WithField("jobs", js.JobNames()).Info("starting background job scheduler")
	js.scheduler.Start()
}

// Stop stops the job scheduler and waits for running jobs
func (js *JobScheduler) Stop() error {
	js.logger.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// JobNames lists registered jobs
func (js *JobScheduler) JobNames() []string {
	js.mu.RLock()
	defer js.mu.RUnlock()

	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}
	return names
}

func (js *JobScheduler) registerJobs() error {
	if js.reconcileInterval > 0 {
		if err := js.add("wallet-reconciliation", js.reconcileInterval, js.runReconciliation); err != nil {
			return err
		}
	}
	if js.archive != nil && js.archiveInterval > 0 {
		if err := js.add("audit-archive", js.archiveInterval, js.runArchive); err != nil {
			return err
		}
	}
	return nil
}

func (js *JobScheduler) add(name string, every time.Duration, fn func()) error {
	job, err := js.scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s job: %w", name, err)
	}

	js.mu.Lock()
	js.jobs[name] = job
	js.mu.Unlock()
	return nil
}

func (js *JobScheduler) runReconciliation() {
	ctx, cancel := context.WithTimeout(context.Background(), js.reconcileInterval)
	defer cancel()

	if _, err := js.reconciler.Run(ctx); err != nil {
		js.logger.WithError(err).Error("wallet reconciliation failed")
	}
}

// runArchive exports the previous UTC day
func (js *JobScheduler) runArchive() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	day := time.Now().UTC().AddDate(0, 0, -1)
	if _, err := js.archive.ArchiveDay(ctx, day); err != nil {
		js.logger.WithError(err).WithField("day", day.Format("2006-01-02")).Error("audit archive failed")
	}
}
