package repository

import (
	"context"

	"HistPull/internal/domain/models"
)

type Resolver interface {
	Search(ctx context.Context, pattern string) ([]string, error)
}

type Archive interface {
	Fetch(ctx context.Context, signal string, r models.TimeRange, interval models.Interval) ([]models.DataPoint, error)
	Health(ctx context.Context) error // ping
	Close() error
}

type Publisher interface {
	Publish(ctx context.Context, b models.ExportBlock) error
	PublishBatch(ctx context.Context, blocks []models.ExportBlock) error
	Close() error
}

type Recorder interface {
	Record(ctx context.Context, rec *models.RunRecord) error
	Recent(ctx context.Context, limit int) ([]*models.RunRecord, error)
	Close() error
}

type Metrics interface {
	RecordFetch(backend, outcome string)
	RecordPoints(backend string, n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
