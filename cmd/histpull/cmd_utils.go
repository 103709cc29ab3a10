package main

import (
	"fmt"
	"io"
	"time"

	"HistPull/internal/di"
	"HistPull/internal/domain/models"
	"HistPull/internal/domain/repository"
	"HistPull/internal/service/archiver"
	"HistPull/internal/usecase"
	pkgch "HistPull/pkg/clickhouse"
	"HistPull/pkg/config"
	"HistPull/pkg/logger"
	"HistPull/pkg/util"
)

const civilLayout = "2006-01-02T15:04:05"

// engine is the one-shot retrieval pipeline behind fetch, dump and
// search. Serve mode assembles through wire instead; the CLI path
// skips redis, kafka, queue and scheduler and opens only what a
// single run needs.
type engine struct {
	cfg      *config.Config
	log      *logger.Logger
	loc      *time.Location
	archive  *archiver.Client
	ch       *pkgch.Client
	recorder repository.Recorder
	resolve  *usecase.ResolveUseCase
	query    *usecase.QueryUseCase
	export   *usecase.ExportUseCase
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	return cfg, nil
}

// cliLogger builds the logger for one-shot commands. Dataset text owns
// stdout, so console logs move to stderr unless config names a file.
func cliLogger(cfg *config.Config) (*logger.Logger, error) {
	out := cfg.Logging.Output
	if out == "" || out == "stdout" {
		out = "stderr"
	}
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: out,
	})
}

func buildEngine(cfg *config.Config) (*engine, error) {
	log, err := cliLogger(cfg)
	if err != nil {
		return nil, err
	}
	loc := cfg.Location()

	archive := di.ProvideArchiveClient(cfg, log)

	ch, err := di.ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	store := di.ProvideHDBStore(ch, cfg, loc, log)

	rec, err := di.ProvideRecorder(cfg, log)
	if err != nil {
		if ch != nil {
			_ = ch.Close()
		}
		return nil, err
	}

	resolve := usecase.NewResolveUseCase(archive, log)
	query := di.ProvideQueryUseCase(resolve, archive, store, di.ProvideMetrics(), cfg, log)
	exportUC := di.ProvideExportUseCase(query, nil, rec, loc, log)

	return &engine{
		cfg:      cfg,
		log:      log,
		loc:      loc,
		archive:  archive,
		ch:       ch,
		recorder: rec,
		resolve:  resolve,
		query:    query,
		export:   exportUC,
	}, nil
}

func (e *engine) Close() {
	_ = e.archive.Close()
	if e.ch != nil {
		_ = e.ch.Close()
	}
	if e.recorder != nil {
		_ = e.recorder.Close()
	}
}

// parseRangeArgs parses the START and END positional arguments as
// civil timestamps in loc.
func parseRangeArgs(startArg, endArg string, loc *time.Location) (models.TimeRange, error) {
	start, ok := util.ParseCivil(startArg, loc)
	if !ok {
		return models.TimeRange{}, fmt.Errorf("bad start time %q, want YYYY-MM-DDTHH:MM:SS", startArg)
	}
	end, ok := util.ParseCivil(endArg, loc)
	if !ok {
		return models.TimeRange{}, fmt.Errorf("bad end time %q, want YYYY-MM-DDTHH:MM:SS", endArg)
	}
	if start.After(end) {
		return models.TimeRange{}, fmt.Errorf("start %s is after end %s", startArg, endArg)
	}
	return models.TimeRange{Start: start, End: end}, nil
}

func intervalOrDefault(cfg *config.Config) string {
	if intervalFlag != "" {
		return intervalFlag
	}
	return cfg.Fetch.Interval
}

// printSummaries renders per-signal statistics, successes first in
// summary order, then the failures in result order.
func printSummaries(w io.Writer, set *models.QuerySet, loc *time.Location) {
	for _, s := range set.Summaries {
		fmt.Fprintf(w, "%-44s %8d points", s.Signal, s.Count)
		if s.Nulls > 0 {
			fmt.Fprintf(w, " (%d null)", s.Nulls)
		}
		if s.Count > s.Nulls {
			fmt.Fprintf(w, "  min %.6g  max %.6g  mean %.6g", s.Min, s.Max, s.Mean)
			fmt.Fprintf(w, "  %s .. %s", s.First.In(loc).Format(civilLayout), s.Last.In(loc).Format(civilLayout))
		}
		fmt.Fprintln(w)
	}
	for _, r := range set.Results {
		if r.Failed() {
			fmt.Fprintf(w, "%-44s FAILED: %v\n", r.Signal, r.Err)
		}
	}
}
