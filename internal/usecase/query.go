package usecase

import (
	"context"
	"fmt"
	"time"

	"HistPull/internal/domain/models"
	"HistPull/internal/domain/repository"
	"HistPull/internal/service/stats"
	"HistPull/pkg/logger"
)

// QueryUseCase runs the resolve-then-fetch pipeline for one request
// and assembles the consolidated QuerySet.
type QueryUseCase struct {
	resolve *ResolveUseCase
	rest    *FetchUseCase
	hdb     *FetchUseCase
	log     *logger.Logger
}

// NewQueryUseCase wires the pipeline. hdb may be nil when the low-level
// path is not configured; requests selecting it then fail cleanly.
func NewQueryUseCase(resolve *ResolveUseCase, rest *FetchUseCase, hdb *FetchUseCase, log *logger.Logger) *QueryUseCase {
	return &QueryUseCase{resolve: resolve, rest: rest, hdb: hdb, log: log}
}

type QueryParams struct {
	Patterns []string
	// Single requires every pattern to match exactly one signal.
	Single   bool
	Range    models.TimeRange
	Interval string
	Backend  string
}

// Query resolves the patterns, fetches every matched signal over the
// selected backend and returns the assembled set with per-signal
// summaries. Interval validation happens before any network call.
func (uc *QueryUseCase) Query(ctx context.Context, p QueryParams) (*models.QuerySet, error) {
	if len(p.Patterns) == 0 {
		return nil, fmt.Errorf("at least one pattern required")
	}
	if p.Range.Start.After(p.Range.End) {
		return nil, fmt.Errorf("range start %s is after end %s", p.Range.Start, p.Range.End)
	}
	interval, err := models.ParseInterval(p.Interval)
	if err != nil {
		return nil, err
	}
	fetch, err := uc.fetcher(p.Backend)
	if err != nil {
		return nil, err
	}

	signals, err := uc.resolveSignals(ctx, p)
	if err != nil {
		return nil, err
	}

	set := &models.QuerySet{
		Patterns:  p.Patterns,
		Signals:   signals,
		Range:     p.Range,
		Interval:  interval,
		Backend:   string(repository.NormalizeBackend(p.Backend)),
		Timestamp: time.Now(),
	}
	if len(signals) == 0 {
		return set, nil
	}

	set.Results = fetch.FetchAll(ctx, signals, p.Range, interval)
	set.Summaries = stats.SummarizeSet(set.Results)
	set.Errors = collectErrors(set.Results)
	return set, nil
}

func (uc *QueryUseCase) resolveSignals(ctx context.Context, p QueryParams) ([]string, error) {
	if !p.Single {
		return uc.resolve.Resolve(ctx, p.Patterns)
	}
	signals := make([]string, 0, len(p.Patterns))
	for _, pattern := range p.Patterns {
		name, err := uc.resolve.ResolveOne(ctx, pattern)
		if err != nil {
			return nil, err
		}
		signals = append(signals, name)
	}
	return signals, nil
}

func (uc *QueryUseCase) fetcher(backend string) (*FetchUseCase, error) {
	switch repository.NormalizeBackend(backend) {
	case repository.BackendHDB:
		if uc.hdb == nil {
			return nil, fmt.Errorf("hdb backend requested but not configured")
		}
		return uc.hdb, nil
	default:
		return uc.rest, nil
	}
}

func collectErrors(results []models.QueryResult) map[string]string {
	var errs map[string]string
	for _, r := range results {
		if !r.Failed() {
			continue
		}
		if errs == nil {
			errs = map[string]string{}
		}
		errs[r.Signal] = r.Err.Error()
	}
	return errs
}
