package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"HistPull/internal/domain/models"
	"HistPull/internal/domain/repository"
	"HistPull/internal/service/export"
	"HistPull/pkg/logger"
)

// Export targets.
const (
	TargetStdout = "stdout"
	TargetFiles  = "files"
	TargetKafka  = "kafka"
)

// ExportUseCase runs a query and routes the formatted dataset blocks
// to stdout, per-signal files, or a Kafka topic.
type ExportUseCase struct {
	query    *QueryUseCase
	fmtr     *export.Formatter
	writer   *export.Writer
	pub      repository.Publisher
	recorder repository.Recorder
	log      *logger.Logger
}

// NewExportUseCase wires the export pipeline. pub and recorder may be
// nil; the kafka target then fails cleanly and runs go unrecorded.
func NewExportUseCase(
	query *QueryUseCase,
	fmtr *export.Formatter,
	writer *export.Writer,
	pub repository.Publisher,
	recorder repository.Recorder,
	log *logger.Logger,
) *ExportUseCase {
	return &ExportUseCase{
		query:    query,
		fmtr:     fmtr,
		writer:   writer,
		pub:      pub,
		recorder: recorder,
		log:      log,
	}
}

type ExportParams struct {
	QueryParams
	// Mode labels the run record: "fetch", "dump", "api" or "job".
	Mode       string
	Target     string
	OutputRoot string
	// Out receives the blocks for the stdout target. Defaults to
	// os.Stdout.
	Out io.Writer
}

type ExportResult struct {
	Set   *models.QuerySet
	Files []string
}

// Export runs resolve, fetch, format and delivery. Per-signal fetch
// failures still produce header-only blocks; only resolution, routing
// and validation errors abort the run.
func (uc *ExportUseCase) Export(ctx context.Context, p ExportParams) (*ExportResult, error) {
	started := time.Now()

	set, err := uc.query.Query(ctx, p.QueryParams)
	if err != nil {
		return nil, err
	}

	blocks := make([]models.ExportBlock, 0, len(set.Results))
	for _, r := range set.Results {
		blocks = append(blocks, uc.fmtr.Block(r))
	}

	res := &ExportResult{Set: set}
	switch p.Target {
	case TargetFiles:
		if p.OutputRoot == "" {
			return nil, fmt.Errorf("files target needs an output root")
		}
		res.Files, err = uc.writer.WriteAll(p.OutputRoot, blocks)
		if err != nil {
			return nil, fmt.Errorf("write datasets: %w", err)
		}
	case TargetKafka:
		if uc.pub == nil {
			return nil, fmt.Errorf("kafka target requested but no publisher configured")
		}
		if err := uc.pub.PublishBatch(ctx, blocks); err != nil {
			return nil, fmt.Errorf("publish datasets: %w", err)
		}
	case TargetStdout, "":
		out := p.Out
		if out == nil {
			out = os.Stdout
		}
		for _, b := range blocks {
			if _, err := io.WriteString(out, b.Text); err != nil {
				return nil, fmt.Errorf("write dataset to output: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("unknown export target: %s", p.Target)
	}

	uc.record(ctx, p, set, started)
	return res, nil
}

// record appends the run to the audit log. Recording trouble never
// fails an export that already delivered its data.
func (uc *ExportUseCase) record(ctx context.Context, p ExportParams, set *models.QuerySet, started time.Time) {
	if uc.recorder == nil {
		return
	}
	rec := &models.RunRecord{
		Mode:       p.Mode,
		Patterns:   strings.Join(p.Patterns, " "),
		Signals:    len(set.Signals),
		Points:     set.TotalPoints(),
		Failures:   set.Failures(),
		Output:     outputLabel(p),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err := uc.recorder.Record(ctx, rec); err != nil && uc.log != nil {
		uc.log.Warn("run record failed", logger.Error(err))
	}
}

func outputLabel(p ExportParams) string {
	if p.Target == TargetFiles {
		return p.OutputRoot
	}
	if p.Target == "" {
		return TargetStdout
	}
	return p.Target
}
