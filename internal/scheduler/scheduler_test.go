package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"HistPull/internal/domain/models"
	"HistPull/internal/service/export"
	"HistPull/internal/usecase"
	"HistPull/pkg/cache"
	"HistPull/pkg/config"
)

type stubResolver struct {
	matches map[string][]string
}

func (s *stubResolver) Search(_ context.Context, target string) ([]string, error) {
	return s.matches[target], nil
}

type stubArchive struct {
	mu     sync.Mutex
	ranges []models.TimeRange
}

func (s *stubArchive) Fetch(_ context.Context, _ string, r models.TimeRange, _ models.Interval) ([]models.DataPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ranges = append(s.ranges, r)
	v := 1.0
	return []models.DataPoint{{Time: r.Start, Value: &v}}, nil
}

func (s *stubArchive) Health(context.Context) error { return nil }
func (s *stubArchive) Close() error                 { return nil }

func newTestScheduler(t *testing.T, archive *stubArchive, locks cache.Service) *Scheduler {
	t.Helper()
	resolve := usecase.NewResolveUseCase(&stubResolver{matches: map[string][]string{
		".*mag.*": {"r1/mag/a/current"},
	}}, nil)
	fetch := usecase.NewFetchUseCase(archive, nil, "rest", 2, 0, nil)
	query := usecase.NewQueryUseCase(resolve, fetch, nil, nil)
	fmtr := export.NewFormatter(time.UTC)
	uc := usecase.NewExportUseCase(query, fmtr, export.NewWriter(nil), nil, nil, nil)
	return New(uc, locks, time.UTC, nil)
}

func TestRegisterAllRejectsBadSpec(t *testing.T) {
	s := newTestScheduler(t, &stubArchive{}, nil)

	err := s.RegisterAll([]config.SchedulerJob{{
		Name:     "broken",
		Spec:     "not a cron line",
		Patterns: []string{"mag"},
	}})
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("expected registration error naming the job, got %v", err)
	}
}

func TestRegisterAllAcceptsSecondsSpec(t *testing.T) {
	s := newTestScheduler(t, &stubArchive{}, nil)

	err := s.RegisterAll([]config.SchedulerJob{{
		Name:     "nightly",
		Spec:     "0 0 2 * * *",
		Patterns: []string{"mag"},
	}})
	if err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
}

func TestRunNowExportsTrailingWindow(t *testing.T) {
	archive := &stubArchive{}
	s := newTestScheduler(t, archive, nil)
	dir := t.TempDir()

	s.RunNow(config.SchedulerJob{
		Name:       "nightly",
		Patterns:   []string{"mag"},
		Window:     6 * time.Hour,
		Target:     usecase.TargetFiles,
		OutputRoot: filepath.Join(dir, "run"),
	})

	if len(archive.ranges) != 1 {
		t.Fatalf("expected 1 fetch, got %d", len(archive.ranges))
	}
	got := archive.ranges[0].Duration()
	if got != 6*time.Hour {
		t.Fatalf("window: got %s, want 6h", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 output file, got %d", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "run") || !strings.HasSuffix(name, "_0.dat") {
		t.Fatalf("unexpected stamped file name: %s", name)
	}
}

func TestRunSkipsWhenAnotherReplicaHoldsLock(t *testing.T) {
	archive := &stubArchive{}
	mem := cache.NewMemoryCache()
	defer mem.Close()
	s := newTestScheduler(t, archive, mem)

	key := cache.GenerateKey("scheduler:lock", "nightly")
	if ok, err := mem.TryLock(context.Background(), key, time.Minute); err != nil || !ok {
		t.Fatalf("pre-lock failed: ok=%v err=%v", ok, err)
	}

	s.RunNow(config.SchedulerJob{
		Name:     "nightly",
		Patterns: []string{"mag"},
		Target:   usecase.TargetFiles,
	})

	if len(archive.ranges) != 0 {
		t.Fatalf("job ran despite held lock: %d fetches", len(archive.ranges))
	}
}

func TestRunReleasesLock(t *testing.T) {
	archive := &stubArchive{}
	mem := cache.NewMemoryCache()
	defer mem.Close()
	s := newTestScheduler(t, archive, mem)
	dir := t.TempDir()

	job := config.SchedulerJob{
		Name:       "nightly",
		Patterns:   []string{"mag"},
		Target:     usecase.TargetFiles,
		OutputRoot: filepath.Join(dir, "run"),
	}
	s.RunNow(job)
	s.RunNow(job)

	if len(archive.ranges) != 2 {
		t.Fatalf("lock not released between runs: %d fetches", len(archive.ranges))
	}
}
