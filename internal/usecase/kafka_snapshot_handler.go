package usecase

import (
	"context"
	"encoding/json"
	"time"

	"ClpWatch/internal/domain/models"
	domrepo "ClpWatch/internal/domain/repository"
	pkgkafka "ClpWatch/pkg/kafka"
)

// KafkaSnapshotHandler consumes published snapshots and appends them to a store.
type KafkaSnapshotHandler struct {
	topic   string
	store   domrepo.SnapshotStore
	metrics domrepo.Metrics
}

func NewKafkaSnapshotHandler(topic string, store domrepo.SnapshotStore, metrics domrepo.Metrics) *KafkaSnapshotHandler {
	return &KafkaSnapshotHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaSnapshotHandler) Topic() string { return h.topic }

// Handle accepts one snapshot JSON object per message.
func (h *KafkaSnapshotHandler) Handle(ctx context.Context, b []byte) error {
	var snap models.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		h.recordError("consumer_unmarshal")
		return err
	}
	if !snap.Timestamp.IsZero() {
		h.recordLatency("snapshot_e2e_seconds", time.Since(snap.Timestamp).Seconds())
	}

	start := time.Now()
	err := h.store.Append(ctx, []models.Snapshot{snap})
	h.recordLatency("snapshot_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.recordError("consumer_store")
		return err
	}
	return nil
}

func (h *KafkaSnapshotHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

func (h *KafkaSnapshotHandler) recordLatency(op string, s float64) {
	if h.metrics != nil {
		h.metrics.RecordLatency(op, s)
	}
}

var _ pkgkafka.MessageHandler = (*KafkaSnapshotHandler)(nil)
