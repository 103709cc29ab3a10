// Package jobs runs export requests asynchronously over the Redis
// queue and tracks per-job status under TTL'd keys.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"HistPull/internal/domain/models"
	"HistPull/internal/usecase"
	"HistPull/pkg/cache"
	"HistPull/pkg/logger"
	"HistPull/pkg/queue"

	"github.com/google/uuid"
)

// TypeExportRequest is the queue message type for asynchronous exports.
const TypeExportRequest = "export.request"

// Job states.
const (
	StateQueued  = "queued"
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
)

// ErrJobNotFound is returned when a status key has expired or never
// existed.
var ErrJobNotFound = errors.New("job not found")

// ExportJobRequest is the queue payload for one asynchronous export.
// Times are carried as RFC3339 by the JSON codec.
type ExportJobRequest struct {
	ID         string    `json:"id"`
	Patterns   []string  `json:"patterns"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Interval   string    `json:"interval"`
	Backend    string    `json:"backend"`
	Target     string    `json:"target"`
	OutputRoot string    `json:"output_root"`
}

// JobStatus is the externally visible state of one job.
type JobStatus struct {
	ID         string     `json:"id"`
	State      string     `json:"state"`
	Error      string     `json:"error,omitempty"`
	Files      []string   `json:"files,omitempty"`
	Signals    int        `json:"signals,omitempty"`
	Points     int64      `json:"points,omitempty"`
	Failures   int        `json:"failures,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Service submits export jobs and answers status lookups.
type Service struct {
	queue  queue.QueueService
	status cache.Service
	ttl    time.Duration
	log    *logger.Logger
}

// NewService creates the job service. ttl bounds how long finished job
// status stays readable.
func NewService(q queue.QueueService, status cache.Service, ttl time.Duration, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{queue: q, status: status, ttl: ttl, log: log}
}

// Submit validates, records the queued status and enqueues the job.
// The returned status carries the assigned job ID.
func (s *Service) Submit(ctx context.Context, req ExportJobRequest) (*JobStatus, error) {
	if req.Target != usecase.TargetFiles && req.Target != usecase.TargetKafka {
		return nil, fmt.Errorf("job target must be %q or %q, got %q",
			usecase.TargetFiles, usecase.TargetKafka, req.Target)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	st := &JobStatus{ID: req.ID, State: StateQueued, CreatedAt: time.Now()}
	if err := s.put(ctx, st); err != nil {
		return nil, fmt.Errorf("store job status: %w", err)
	}
	if err := s.queue.PublishMessage(ctx, TypeExportRequest, req); err != nil {
		st.State = StateFailed
		st.Error = err.Error()
		s.update(ctx, st)
		return nil, fmt.Errorf("enqueue export job: %w", err)
	}

	if s.log != nil {
		s.log.Info("export job queued",
			logger.String("job_id", req.ID),
			logger.Strings("patterns", req.Patterns),
			logger.String("target", req.Target),
		)
	}
	return st, nil
}

// Status looks the job up; expired or unknown IDs yield ErrJobNotFound.
func (s *Service) Status(ctx context.Context, id string) (*JobStatus, error) {
	var st JobStatus
	if err := s.status.Get(ctx, statusKey(id), &st); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("load job status: %w", err)
	}
	return &st, nil
}

func (s *Service) put(ctx context.Context, st *JobStatus) error {
	return s.status.Set(ctx, statusKey(st.ID), *st, s.ttl)
}

// update is put for transitions that must not fail the caller.
func (s *Service) update(ctx context.Context, st *JobStatus) {
	if err := s.put(ctx, st); err != nil && s.log != nil {
		s.log.Warn("job status update failed",
			logger.String("job_id", st.ID),
			logger.Error(err),
		)
	}
}

func (s *Service) markRunning(ctx context.Context, id string) {
	st, err := s.Status(ctx, id)
	if err != nil {
		st = &JobStatus{ID: id, CreatedAt: time.Now()}
	}
	now := time.Now()
	st.State = StateRunning
	st.StartedAt = &now
	st.Error = ""
	s.update(ctx, st)
}

func (s *Service) markDone(ctx context.Context, id string, res *usecase.ExportResult) {
	st, err := s.Status(ctx, id)
	if err != nil {
		st = &JobStatus{ID: id, CreatedAt: time.Now()}
	}
	now := time.Now()
	st.State = StateDone
	st.FinishedAt = &now
	st.Files = res.Files
	st.Signals = len(res.Set.Signals)
	st.Points = res.Set.TotalPoints()
	st.Failures = res.Set.Failures()
	s.update(ctx, st)
}

func (s *Service) markFailed(ctx context.Context, id string, cause error) {
	st, err := s.Status(ctx, id)
	if err != nil {
		st = &JobStatus{ID: id, CreatedAt: time.Now()}
	}
	now := time.Now()
	st.State = StateFailed
	st.FinishedAt = &now
	st.Error = cause.Error()
	s.update(ctx, st)
}

func statusKey(id string) string {
	return cache.GenerateKey("jobs:status", id)
}

// ExportJob executes queued export requests. Registered with the Redis
// queue under TypeExportRequest.
type ExportJob struct {
	export  *usecase.ExportUseCase
	service *Service
	log     *logger.Logger
}

func NewExportJob(export *usecase.ExportUseCase, service *Service, log *logger.Logger) *ExportJob {
	return &ExportJob{export: export, service: service, log: log}
}

func (j *ExportJob) Name() string { return "dataset-export" }

func (j *ExportJob) Type() string { return TypeExportRequest }

// Handle runs the export pipeline for one queued request. A returned
// error puts the message on the retry schedule; the status key tracks
// every transition so clients can poll.
func (j *ExportJob) Handle(ctx context.Context, payload interface{}) error {
	req, err := queue.ParsePayload[ExportJobRequest](payload)
	if err != nil {
		return fmt.Errorf("parse export payload: %w", err)
	}

	j.service.markRunning(ctx, req.ID)

	res, err := j.export.Export(ctx, usecase.ExportParams{
		QueryParams: usecase.QueryParams{
			Patterns: req.Patterns,
			Range:    models.TimeRange{Start: req.From, End: req.To},
			Interval: req.Interval,
			Backend:  req.Backend,
		},
		Mode:       "job",
		Target:     req.Target,
		OutputRoot: req.OutputRoot,
	})
	if err != nil {
		j.service.markFailed(ctx, req.ID, err)
		return fmt.Errorf("export job %s: %w", req.ID, err)
	}

	j.service.markDone(ctx, req.ID, res)
	if j.log != nil {
		j.log.Info("export job finished",
			logger.String("job_id", req.ID),
			logger.Int("signals", len(res.Set.Signals)),
			logger.Int("files", len(res.Files)),
		)
	}
	return nil
}
