package repository

import (
	"context"

	"ClpWatch/internal/domain/models"
	"ClpWatch/internal/domain/repository"
	pkgkafka "ClpWatch/pkg/kafka"
)

// batchPublisher is the part of pkg/kafka.Producer the publisher needs.
type batchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaPublisher publishes snapshots and flips keyed by symbol.
type KafkaPublisher struct {
	producer   batchPublisher
	topic      string
	flipsTopic string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer batchPublisher, topic, flipsTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, flipsTopic: flipsTopic}
}

var _ repository.SnapshotPublisher = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) PublishSnapshots(ctx context.Context, snaps []models.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(snaps))
	for i, sn := range snaps {
		msgs[i] = pkgkafka.Message{Key: []byte(sn.Symbol), Value: sn}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) PublishFlips(ctx context.Context, flips []models.FlipEvent) error {
	if len(flips) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(flips))
	for i, f := range flips {
		msgs[i] = pkgkafka.Message{Key: []byte(f.Symbol), Value: f}
	}
	return p.producer.PublishBatch(ctx, p.flipsTopic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
