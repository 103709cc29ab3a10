package repository

import (
	"context"

	"HistPull/internal/domain/models"
	"HistPull/internal/domain/repository"
	pkgkafka "HistPull/pkg/kafka"
)

// KafkaPublisher implements Publisher for Kafka. Export blocks are
// keyed by signal so one signal's datasets stay on one partition.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, b models.ExportBlock) error {
	return p.producer.Publish(ctx, p.topic, []byte(b.Signal), map[string]interface{}{
		"signal":  b.Signal,
		"dataset": b.Text,
	})
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, blocks []models.ExportBlock) error {
	if len(blocks) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(blocks))
	for i, b := range blocks {
		msgs[i] = pkgkafka.Message{
			Key: []byte(b.Signal),
			Value: map[string]interface{}{
				"signal":  b.Signal,
				"dataset": b.Text,
			},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
