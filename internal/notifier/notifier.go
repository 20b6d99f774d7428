// Package notifier доставляет уведомления о смене статуса заказа вне транзакции запроса.
package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/linemk/parfume-shop/internal/domain/models"
)

// StatusEvent событие смены статуса заказа
type StatusEvent struct {
	OrderID     int64              `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	Status      models.OrderStatus `json:"status"`
	At          time.Time          `json:"at"`
}

// Sink получатель событий: лог, kafka
type Sink interface {
	Name() string
	Send(ctx context.Context, ev StatusEvent) error
}

// Notifier очередь событий и воркер, который раздаёт их по sink'ам
type Notifier struct {
	log   *slog.Logger
	queue chan StatusEvent
	sinks []Sink
}

func New(log *slog.Logger, queueSize int, sinks ...Sink) *Notifier {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Notifier{
		log:   log,
		queue: make(chan StatusEvent, queueSize),
		sinks: sinks,
	}
}

// Notify ставит событие в очередь и никогда не блокирует; при переполнении событие теряется.
func (n *Notifier) Notify(ev StatusEvent) bool {
	select {
	case n.queue <- ev:
		return true
	default:
		n.log.Warn("notification queue is full, event dropped",
			slog.Int64("order_id", ev.OrderID),
			slog.String("status", string(ev.Status)),
		)
		return false
	}
}

// Run обрабатывает очередь до отмены контекста.
func (n *Notifier) Run(ctx context.Context) error {
	const op = "notifier.Notifier.Run"
	n.log.Info("notifier started", slog.String("op", op), slog.Int("sinks", len(n.sinks)))

	for {
		select {
		case <-ctx.Done():
			n.log.Info("notifier stopped", slog.String("op", op))
			return nil
		case ev := <-n.queue:
			n.dispatch(ctx, ev)
		}
	}
}

func (n *Notifier) dispatch(ctx context.Context, ev StatusEvent) {
	for _, sink := range n.sinks {
		if err := sink.Send(ctx, ev); err != nil {
			n.log.Error("failed to deliver notification",
				slog.String("sink", sink.Name()),
				slog.Int64("order_id", ev.OrderID),
				slog.Any("error", err),
			)
		}
	}
}

// LogSink пишет события в лог
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, ev StatusEvent) error {
	s.log.Info("order status changed",
		slog.Int64("order_id", ev.OrderID),
		slog.String("order_number", ev.OrderNumber),
		slog.String("status", string(ev.Status)),
		slog.Time("at", ev.At),
	)
	return nil
}
