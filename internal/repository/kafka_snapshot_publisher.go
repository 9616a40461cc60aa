package repository

import (
	"context"

	"CaesarEcon/internal/domain/models"
	domrepo "CaesarEcon/internal/domain/repository"
	pkgkafka "CaesarEcon/pkg/kafka"
)

// KafkaSnapshotPublisher streams snapshots keyed by market, so each market's
// snapshots stay ordered within one partition.
type KafkaSnapshotPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaSnapshotPublisher creates the publisher. The producer is shared
// and closed by its owner.
func NewKafkaSnapshotPublisher(producer *pkgkafka.Producer, topic string) *KafkaSnapshotPublisher {
	return &KafkaSnapshotPublisher{producer: producer, topic: topic}
}

var _ domrepo.SnapshotPublisher = (*KafkaSnapshotPublisher)(nil)

func (p *KafkaSnapshotPublisher) Publish(ctx context.Context, rec *models.SnapshotRecord) error {
	return p.producer.Publish(ctx, p.topic, []byte(rec.Market), rec)
}

func (p *KafkaSnapshotPublisher) Close() error { return nil }
