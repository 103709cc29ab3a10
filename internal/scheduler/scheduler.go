// Package scheduler fires recurring exports on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"HistPull/internal/domain/models"
	"HistPull/internal/usecase"
	"HistPull/pkg/cache"
	"HistPull/pkg/config"
	"HistPull/pkg/logger"

	"github.com/robfig/cron/v3"
)

// runTimeout bounds a single scheduled export.
const runTimeout = 10 * time.Minute

// lockTTL covers the window in which replicas could double-fire the
// same tick.
const lockTTL = time.Minute

// Scheduler runs configured export jobs on their cron expressions.
// Each tick grabs a short lock so a job fires on one replica only.
type Scheduler struct {
	cron   *cron.Cron
	export *usecase.ExportUseCase
	locks  cache.Service
	loc    *time.Location
	log    *logger.Logger
}

// New creates the scheduler. locks may be nil for single-instance
// deployments; jobs then run unguarded.
func New(export *usecase.ExportUseCase, locks cache.Service, loc *time.Location, log *logger.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		export: export,
		locks:  locks,
		loc:    loc,
		log:    log,
	}
}

// RegisterAll puts every configured job on the cron table.
func (s *Scheduler) RegisterAll(jobs []config.SchedulerJob) error {
	for i := range jobs {
		job := jobs[i]
		name := jobName(job, i)
		if _, err := s.cron.AddFunc(job.Spec, func() { s.run(name, job) }); err != nil {
			return fmt.Errorf("register scheduled job %s: %w", name, err)
		}
		if s.log != nil {
			s.log.Info("scheduled job registered",
				logger.String("job", name),
				logger.String("spec", job.Spec),
				logger.Strings("patterns", job.Patterns),
			)
		}
	}
	return nil
}

// Start begins firing jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	if s.log != nil {
		s.log.Info("scheduler started")
	}
}

// Stop waits for in-flight jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		if s.log != nil {
			s.log.Info("scheduler stopped")
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// RunNow fires one job immediately, outside its schedule.
func (s *Scheduler) RunNow(job config.SchedulerJob) {
	s.run(jobName(job, 0), job)
}

func (s *Scheduler) run(name string, job config.SchedulerJob) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if s.locks != nil {
		key := cache.GenerateKey("scheduler:lock", name)
		ok, err := s.locks.TryLock(ctx, key, lockTTL)
		if err != nil {
			if s.log != nil {
				s.log.Warn("scheduler lock unavailable, running unguarded",
					logger.String("job", name),
					logger.Error(err),
				)
			}
		} else if !ok {
			if s.log != nil {
				s.log.Debug("scheduled job held by another replica",
					logger.String("job", name))
			}
			return
		} else {
			defer func() {
				if err := s.locks.Unlock(context.Background(), key); err != nil && s.log != nil {
					s.log.Warn("scheduler unlock failed",
						logger.String("job", name),
						logger.Error(err),
					)
				}
			}()
		}
	}

	window := job.Window
	if window <= 0 {
		window = 24 * time.Hour
	}
	end := time.Now().In(s.loc)
	start := end.Add(-window)

	began := time.Now()
	res, err := s.export.Export(ctx, usecase.ExportParams{
		QueryParams: usecase.QueryParams{
			Patterns: job.Patterns,
			Range:    models.TimeRange{Start: start, End: end},
			Interval: job.Interval,
			Backend:  job.Backend,
		},
		Mode:       "schedule",
		Target:     jobTarget(job),
		OutputRoot: stampedRoot(job, end),
	})
	if err != nil {
		if s.log != nil {
			s.log.Error("scheduled export failed",
				logger.String("job", name),
				logger.Error(err),
			)
		}
		return
	}

	if s.log != nil {
		s.log.Info("scheduled export finished",
			logger.String("job", name),
			logger.Int("signals", len(res.Set.Signals)),
			logger.Int("failures", res.Set.Failures()),
			logger.Int("files", len(res.Files)),
			logger.Duration("duration_ms", time.Since(began)),
		)
	}
}

func jobName(job config.SchedulerJob, i int) string {
	if job.Name != "" {
		return job.Name
	}
	return fmt.Sprintf("job-%d", i)
}

func jobTarget(job config.SchedulerJob) string {
	if job.Target != "" {
		return job.Target
	}
	return usecase.TargetFiles
}

// stampedRoot appends the run end time to the output root so recurring
// runs never overwrite each other.
func stampedRoot(job config.SchedulerJob, end time.Time) string {
	if jobTarget(job) != usecase.TargetFiles {
		return job.OutputRoot
	}
	return fmt.Sprintf("%s%s_", job.OutputRoot, end.Format("20060102_150405"))
}
