package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func (w *memWriter) all() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func TestProducerEncodesPayloads(t *testing.T) {
	w := &memWriter{}
	p := NewProducerWithWriter(w, "snappy")

	require.NoError(t, p.PublishBatch(context.Background(), "clp.snapshots", []Message{
		{Key: []byte("BTCUSDT"), Value: map[string]float64{"clp": 1.5}},
		{Key: []byte("ETHUSDT"), Value: "raw"},
	}))
	require.NoError(t, p.PublishMessage(context.Background(), "clp.logs", []byte("x")))
	require.NoError(t, p.PublishBatch(context.Background(), "empty", nil))

	msgs := w.all()
	require.Len(t, msgs, 3)
	assert.Equal(t, "clp.snapshots", msgs[0].Topic)
	assert.Equal(t, []byte("BTCUSDT"), msgs[0].Key)
	var v map[string]float64
	require.NoError(t, json.Unmarshal(msgs[0].Value, &v))
	assert.Equal(t, 1.5, v["clp"])
	assert.Equal(t, []byte("raw"), msgs[1].Value)
	assert.Nil(t, msgs[2].Key)
}

func TestProducerWrapsWriteError(t *testing.T) {
	p := NewProducerWithWriter(&memWriter{err: errors.New("broker down")}, "gzip")
	err := p.Publish(context.Background(), "t", nil, 1)
	assert.ErrorContains(t, err, "broker down")
}

type chanReader struct {
	ch        chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func (r *chanReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-r.ch:
		return m, nil
	}
}

func (r *chanReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *chanReader) Close() error { return nil }

func (r *chanReader) offsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type flakyHandler struct {
	mu       sync.Mutex
	failures map[string]int
	handled  []string
}

func (h *flakyHandler) Topic() string { return "clp.snapshots" }

func (h *flakyHandler) Handle(_ context.Context, b []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failures[string(b)] > 0 {
		h.failures[string(b)]--
		return errors.New("transient")
	}
	h.handled = append(h.handled, string(b))
	return nil
}

func newTestConsumer(t *testing.T, r MessageReader, dlq MessageWriter) *Consumer {
	t.Helper()
	c, err := NewConsumer(nil,
		WithConsumerBrokers([]string{"unused:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	)
	require.NoError(t, err)
	c.newReader = func(string) MessageReader { return r }
	c.dlq = dlq
	c.cfg.DLQTopic = "clp.snapshots.dlq"
	return c
}

func TestConsumerRetriesCommitsAndParksPoison(t *testing.T) {
	r := &chanReader{ch: make(chan kafka.Message, 4)}
	dlq := &memWriter{}
	h := &flakyHandler{failures: map[string]int{"flaky": 2, "poison": 100}}
	c := newTestConsumer(t, r, dlq)
	c.RegisterHandler(h)
	require.NoError(t, c.Start())

	r.ch <- kafka.Message{Offset: 1, Value: []byte("ok")}
	r.ch <- kafka.Message{Offset: 2, Value: []byte("flaky")}
	r.ch <- kafka.Message{Offset: 3, Value: []byte("poison")}

	require.Eventually(t, func() bool { return len(r.offsets()) == 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))

	assert.ElementsMatch(t, []int64{1, 2, 3}, r.offsets())
	assert.Equal(t, []string{"ok", "flaky"}, h.handled)
	parked := dlq.all()
	require.Len(t, parked, 1)
	assert.Equal(t, []byte("poison"), parked[0].Value)
	assert.Equal(t, "clp.snapshots.dlq", parked[0].Topic)
}

func TestConsumerWithoutHandlers(t *testing.T) {
	c := newTestConsumer(t, &chanReader{ch: make(chan kafka.Message)}, nil)
	assert.Error(t, c.Start())
	assert.NoError(t, c.Stop(context.Background()))
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
}
