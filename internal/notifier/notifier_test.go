package notifier_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linemk/parfume-shop/internal/domain/models"
	"github.com/linemk/parfume-shop/internal/notifier"
)

type recordingSink struct {
	mu     sync.Mutex
	events []notifier.StatusEvent
	err    error
	got    chan struct{}
}

func newRecordingSink(err error) *recordingSink {
	return &recordingSink{err: err, got: make(chan struct{}, 16)}
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Send(_ context.Context, ev notifier.StatusEvent) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	s.got <- struct{}{}
	return s.err
}

func (s *recordingSink) snapshot() []notifier.StatusEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notifier.StatusEvent(nil), s.events...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func waitEvent(t *testing.T, s *recordingSink) {
	t.Helper()
	select {
	case <-s.got:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestNotifier_DeliversToAllSinks(t *testing.T) {
	failing := newRecordingSink(errors.New("sink down"))
	ok := newRecordingSink(nil)
	n := notifier.New(testLogger(), 4, failing, ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	ev := notifier.StatusEvent{OrderID: 1, OrderNumber: "BVP-20240101-AAAAAAAA", Status: models.StatusPaid, At: time.Now()}
	assert.True(t, n.Notify(ev))

	waitEvent(t, failing)
	waitEvent(t, ok)

	// ошибка одного sink'а не мешает остальным
	assert.Equal(t, []notifier.StatusEvent{ev}, ok.snapshot())

	cancel()
	assert.NoError(t, <-done)
}

func TestNotifier_NotifyNeverBlocks(t *testing.T) {
	n := notifier.New(testLogger(), 2)

	// воркер не запущен: третье событие не помещается и отбрасывается
	assert.True(t, n.Notify(notifier.StatusEvent{OrderID: 1}))
	assert.True(t, n.Notify(notifier.StatusEvent{OrderID: 2}))

	start := time.Now()
	assert.False(t, n.Notify(notifier.StatusEvent{OrderID: 3}))
	assert.Less(t, time.Since(start), time.Second)
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSink_Send(t *testing.T) {
	w := &fakeWriter{}
	sink := notifier.NewKafkaSink(w)

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ev := notifier.StatusEvent{OrderID: 9, OrderNumber: "BVP-20240101-ABCDEF12", Status: models.StatusShipped, At: at}
	require.NoError(t, sink.Send(context.Background(), ev))
	require.Len(t, w.msgs, 1)

	assert.Equal(t, []byte("BVP-20240101-ABCDEF12"), w.msgs[0].Key)

	var decoded notifier.StatusEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, int64(9), decoded.OrderID)
	assert.Equal(t, models.StatusShipped, decoded.Status)
	assert.True(t, at.Equal(decoded.At))

	assert.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestKafkaSink_WriteError(t *testing.T) {
	sink := notifier.NewKafkaSink(&fakeWriter{err: errors.New("broker unavailable")})
	err := sink.Send(context.Background(), notifier.StatusEvent{OrderID: 1})
	assert.ErrorContains(t, err, "broker unavailable")
}

func TestNewKafkaWriter(t *testing.T) {
	w := notifier.NewKafkaWriter([]string{"localhost:9092"}, "order-status")
	assert.Equal(t, "order-status", w.Topic)
	assert.NoError(t, w.Close())
}
