package usecase

import (
	"context"
	"sync"
	"time"

	"HistPull/internal/domain/models"
	"HistPull/internal/domain/repository"
	"HistPull/pkg/logger"
)

// DefaultFetchWorkers bounds concurrent signal fetches when the
// configuration does not say otherwise.
const DefaultFetchWorkers = 8

// FetchUseCase fans one retrieval out per resolved signal and collects
// the results in input order. One bad signal never aborts its siblings;
// its failure is captured in its own result slot.
type FetchUseCase struct {
	archive repository.Archive
	metrics repository.Metrics
	log     *logger.Logger
	backend string
	workers int
	timeout time.Duration
}

// NewFetchUseCase creates the fetch orchestrator. backend is the
// metrics label ("rest" or "hdb"). workers <= 0 falls back to
// DefaultFetchWorkers; timeout 0 disables the per-signal deadline.
func NewFetchUseCase(
	archive repository.Archive,
	metrics repository.Metrics,
	backend string,
	workers int,
	timeout time.Duration,
	log *logger.Logger,
) *FetchUseCase {
	if workers <= 0 {
		workers = DefaultFetchWorkers
	}
	return &FetchUseCase{
		archive: archive,
		metrics: metrics,
		log:     log,
		backend: backend,
		workers: workers,
		timeout: timeout,
	}
}

// FetchAll retrieves every signal concurrently and returns exactly one
// QueryResult per input signal, at the input index. Each goroutine
// writes only its own pre-allocated slot, so no lock guards the result
// slice and completion order never reorders output.
func (uc *FetchUseCase) FetchAll(ctx context.Context, signals []string, r models.TimeRange, interval models.Interval) []models.QueryResult {
	results := make([]models.QueryResult, len(signals))
	if len(signals) == 0 {
		return results
	}

	start := time.Now()
	sem := make(chan struct{}, uc.workers)
	var wg sync.WaitGroup

	for i, signal := range signals {
		wg.Add(1)
		go func(idx int, signal string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = uc.failed(signal, ctx.Err())
				return
			}

			results[idx] = uc.fetchOne(ctx, signal, r, interval)
		}(i, signal)
	}
	wg.Wait()

	if uc.metrics != nil {
		uc.metrics.RecordLatency("fetch_all", time.Since(start).Seconds())
	}
	if uc.log != nil {
		failures := 0
		for _, res := range results {
			if res.Failed() {
				failures++
			}
		}
		uc.log.Info("fetch complete",
			logger.String("backend", uc.backend),
			logger.Int("signals", len(signals)),
			logger.Int("failures", failures),
			logger.Duration("duration_ms", time.Since(start)),
		)
	}
	return results
}

func (uc *FetchUseCase) fetchOne(ctx context.Context, signal string, r models.TimeRange, interval models.Interval) models.QueryResult {
	if uc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.timeout)
		defer cancel()
	}

	start := time.Now()
	points, err := uc.archive.Fetch(ctx, signal, r, interval)
	if err != nil {
		if uc.log != nil {
			uc.log.Error("signal fetch failed",
				logger.String("signal", signal),
				logger.String("backend", uc.backend),
				logger.Error(err),
			)
		}
		return uc.failed(signal, err)
	}

	if uc.metrics != nil {
		uc.metrics.RecordFetch(uc.backend, "ok")
		uc.metrics.RecordPoints(uc.backend, len(points))
		uc.metrics.RecordLatency("fetch", time.Since(start).Seconds())
	}
	return models.QueryResult{Signal: signal, Points: points}
}

func (uc *FetchUseCase) failed(signal string, err error) models.QueryResult {
	if uc.metrics != nil {
		uc.metrics.RecordFetch(uc.backend, "error")
		uc.metrics.RecordError("fetch")
	}
	return models.QueryResult{
		Signal: signal,
		Err:    &models.SignalError{Signal: signal, Err: err},
	}
}
