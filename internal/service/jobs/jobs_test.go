package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"HistPull/internal/domain/models"
	"HistPull/internal/service/export"
	"HistPull/internal/usecase"
	"HistPull/pkg/cache"
)

type fakeQueue struct {
	types    []string
	payloads []interface{}
	err      error
}

func (f *fakeQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.types = append(f.types, msgType)
	f.payloads = append(f.payloads, payload)
	return nil
}

type stubResolver struct {
	matches map[string][]string
	err     error
}

func (s *stubResolver) Search(_ context.Context, target string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.matches[target], nil
}

type stubArchive struct {
	points map[string][]models.DataPoint
}

func (s *stubArchive) Fetch(_ context.Context, signal string, _ models.TimeRange, _ models.Interval) ([]models.DataPoint, error) {
	return s.points[signal], nil
}

func (s *stubArchive) Health(context.Context) error { return nil }
func (s *stubArchive) Close() error                 { return nil }

func newTestService(t *testing.T, q *fakeQueue) (*Service, *cache.MemoryCache) {
	t.Helper()
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { mem.Close() })
	return NewService(q, mem, time.Hour, nil), mem
}

func newTestExport(t *testing.T, archive *stubArchive) *usecase.ExportUseCase {
	t.Helper()
	resolve := usecase.NewResolveUseCase(&stubResolver{matches: map[string][]string{
		".*mag.*": {"r1/mag/a/current"},
	}}, nil)
	fetch := usecase.NewFetchUseCase(archive, nil, "rest", 2, 0, nil)
	query := usecase.NewQueryUseCase(resolve, fetch, nil, nil)
	fmtr := export.NewFormatter(time.UTC, export.WithClock(func() time.Time {
		return time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC)
	}))
	return usecase.NewExportUseCase(query, fmtr, export.NewWriter(nil), nil, nil, nil)
}

func TestSubmitQueuesJob(t *testing.T) {
	q := &fakeQueue{}
	svc, _ := newTestService(t, q)

	st, err := svc.Submit(context.Background(), ExportJobRequest{
		Patterns:   []string{"mag"},
		From:       time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC),
		To:         time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC),
		Target:     usecase.TargetFiles,
		OutputRoot: "out/scan_",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if st.ID == "" || st.State != StateQueued {
		t.Fatalf("unexpected status: %+v", st)
	}
	if len(q.types) != 1 || q.types[0] != TypeExportRequest {
		t.Fatalf("unexpected queue types: %v", q.types)
	}

	got, err := svc.Status(context.Background(), st.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got.State != StateQueued {
		t.Fatalf("stored state: got %s, want %s", got.State, StateQueued)
	}
}

func TestSubmitRejectsInteractiveTarget(t *testing.T) {
	svc, _ := newTestService(t, &fakeQueue{})

	_, err := svc.Submit(context.Background(), ExportJobRequest{
		Patterns: []string{"mag"},
		Target:   usecase.TargetStdout,
	})
	if err == nil || !strings.Contains(err.Error(), "job target") {
		t.Fatalf("expected target rejection, got %v", err)
	}
}

func TestSubmitEnqueueFailureMarksFailed(t *testing.T) {
	q := &fakeQueue{err: errors.New("redis down")}
	svc, _ := newTestService(t, q)

	st, err := svc.Submit(context.Background(), ExportJobRequest{
		Patterns: []string{"mag"},
		Target:   usecase.TargetFiles,
	})
	if err == nil {
		t.Fatal("expected enqueue error")
	}
	if st != nil {
		t.Fatalf("expected nil status on error, got %+v", st)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	svc, _ := newTestService(t, &fakeQueue{})

	_, err := svc.Status(context.Background(), "nope")
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestExportJobHandleCompletes(t *testing.T) {
	svc, _ := newTestService(t, &fakeQueue{})
	base := time.Date(2024, 5, 14, 6, 0, 0, 0, time.UTC)
	v := 1.5
	archive := &stubArchive{points: map[string][]models.DataPoint{
		"r1/mag/a/current": {{Time: base, Value: &v}},
	}}
	job := NewExportJob(newTestExport(t, archive), svc, nil)
	dir := t.TempDir()

	req := ExportJobRequest{
		ID:         "job-1",
		Patterns:   []string{"mag"},
		From:       time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC),
		To:         time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC),
		Target:     usecase.TargetFiles,
		OutputRoot: filepath.Join(dir, "scan_"),
	}
	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	if err := job.Handle(context.Background(), json.RawMessage(raw)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	st, err := svc.Status(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != StateDone {
		t.Fatalf("state: got %s, want %s", st.State, StateDone)
	}
	if st.Signals != 1 || st.Points != 1 || len(st.Files) != 1 {
		t.Fatalf("unexpected completion status: %+v", st)
	}
	if st.StartedAt == nil || st.FinishedAt == nil {
		t.Fatal("missing started/finished timestamps")
	}
}

func TestExportJobHandleFailure(t *testing.T) {
	svc, _ := newTestService(t, &fakeQueue{})

	resolve := usecase.NewResolveUseCase(&stubResolver{err: models.ErrBackendUnreachable}, nil)
	fetch := usecase.NewFetchUseCase(&stubArchive{}, nil, "rest", 2, 0, nil)
	query := usecase.NewQueryUseCase(resolve, fetch, nil, nil)
	fmtr := export.NewFormatter(time.UTC)
	uc := usecase.NewExportUseCase(query, fmtr, export.NewWriter(nil), nil, nil, nil)
	job := NewExportJob(uc, svc, nil)

	req := ExportJobRequest{
		ID:       "job-2",
		Patterns: []string{"mag"},
		Target:   usecase.TargetFiles,
	}
	req.OutputRoot = "out/scan_"
	raw, _ := json.Marshal(req)

	if err := job.Handle(context.Background(), json.RawMessage(raw)); err == nil {
		t.Fatal("expected Handle to propagate the failure for retry")
	}

	st, err := svc.Status(context.Background(), "job-2")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != StateFailed || st.Error == "" {
		t.Fatalf("expected failed status with error, got %+v", st)
	}
}
