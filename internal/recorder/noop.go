package recorder

import (
	"context"

	"HistPull/internal/domain/models"
)

// NoopRecorder is used when the audit log is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) Record(context.Context, *models.RunRecord) error { return nil }

func (n *NoopRecorder) Recent(context.Context, int) ([]*models.RunRecord, error) {
	return nil, nil
}

func (n *NoopRecorder) Close() error { return nil }
