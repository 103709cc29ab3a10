package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"HistPull/internal/domain/models"
	"HistPull/pkg/cache"
)

// fakeResolver answers searches from a canned map keyed by the wrapped
// target string and records every call.
type fakeResolver struct {
	matches map[string][]string
	err     error
	calls   []string
}

func (f *fakeResolver) Search(_ context.Context, target string) ([]string, error) {
	f.calls = append(f.calls, target)
	if f.err != nil {
		return nil, f.err
	}
	return f.matches[target], nil
}

func TestResolveWrapsPattern(t *testing.T) {
	fr := &fakeResolver{matches: map[string][]string{
		".*r1.*current.*": {"r1/mag/psib-12/current"},
	}}
	uc := NewResolveUseCase(fr, nil)

	signals, err := uc.Resolve(context.Background(), []string{"r1.*current"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(fr.calls) != 1 || fr.calls[0] != ".*r1.*current.*" {
		t.Fatalf("expected wrapped target, got %v", fr.calls)
	}
	if len(signals) != 1 || signals[0] != "r1/mag/psib-12/current" {
		t.Fatalf("unexpected signals: %v", signals)
	}
}

func TestResolveConcatenatesInOrderWithoutDedup(t *testing.T) {
	fr := &fakeResolver{matches: map[string][]string{
		".*mag.*":     {"r1/mag/a/current", "r1/mag/b/current"},
		".*current.*": {"r1/mag/a/current", "r3/rf/c/current"},
	}}
	uc := NewResolveUseCase(fr, nil)

	signals, err := uc.Resolve(context.Background(), []string{"mag", "current"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"r1/mag/a/current", "r1/mag/b/current", "r1/mag/a/current", "r3/rf/c/current"}
	if len(signals) != len(want) {
		t.Fatalf("expected %d signals, got %d: %v", len(want), len(signals), signals)
	}
	for i := range want {
		if signals[i] != want[i] {
			t.Fatalf("signal %d: got %s, want %s", i, signals[i], want[i])
		}
	}
}

func TestResolveZeroMatchesIsNotAnError(t *testing.T) {
	uc := NewResolveUseCase(&fakeResolver{matches: map[string][]string{}}, nil)

	signals, err := uc.Resolve(context.Background(), []string{"nothing"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(signals) != 0 {
		t.Fatalf("expected no signals, got %v", signals)
	}
}

func TestResolveSearchFailureIsFatal(t *testing.T) {
	uc := NewResolveUseCase(&fakeResolver{err: models.ErrBackendUnreachable}, nil)

	_, err := uc.Resolve(context.Background(), []string{"anything"})
	if !errors.Is(err, models.ErrBackendUnreachable) {
		t.Fatalf("expected ErrBackendUnreachable, got %v", err)
	}
}

func TestResolveOneExactlyOne(t *testing.T) {
	fr := &fakeResolver{matches: map[string][]string{
		".*psib-12.*": {"r1/mag/psib-12/current"},
	}}
	uc := NewResolveUseCase(fr, nil)

	name, err := uc.ResolveOne(context.Background(), "psib-12")
	if err != nil {
		t.Fatalf("ResolveOne: %v", err)
	}
	if name != "r1/mag/psib-12/current" {
		t.Fatalf("unexpected name: %s", name)
	}
}

func TestResolveOneNoMatch(t *testing.T) {
	uc := NewResolveUseCase(&fakeResolver{matches: map[string][]string{}}, nil)

	_, err := uc.ResolveOne(context.Background(), "missing")
	if !errors.Is(err, models.ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestResolveOneAmbiguous(t *testing.T) {
	fr := &fakeResolver{matches: map[string][]string{
		".*current.*": {"r1/mag/a/current", "r1/mag/b/current"},
	}}
	uc := NewResolveUseCase(fr, nil)

	_, err := uc.ResolveOne(context.Background(), "current")
	if !errors.Is(err, models.ErrAmbiguousMatch) {
		t.Fatalf("expected ErrAmbiguousMatch, got %v", err)
	}
}

func TestResolveCachesSearches(t *testing.T) {
	fr := &fakeResolver{matches: map[string][]string{
		".*mag.*": {"r1/mag/a/current"},
	}}
	mem := cache.NewMemoryCache()
	defer mem.Close()
	uc := NewResolveUseCase(fr, nil).WithCache(mem, "test-backend", time.Minute)

	for i := 0; i < 3; i++ {
		signals, err := uc.Resolve(context.Background(), []string{"mag"})
		if err != nil {
			t.Fatalf("Resolve #%d: %v", i, err)
		}
		if len(signals) != 1 || signals[0] != "r1/mag/a/current" {
			t.Fatalf("Resolve #%d: unexpected signals %v", i, signals)
		}
	}
	if len(fr.calls) != 1 {
		t.Fatalf("expected a single backend search, got %d", len(fr.calls))
	}
}
