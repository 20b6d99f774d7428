package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linemk/parfume-shop/internal/domain/models"
	"github.com/linemk/parfume-shop/internal/storage"
)

// DefaultHistoryLimit размер истории, которую получает новое соединение
const DefaultHistoryLimit = 50

// Relay пересылает кадр на другие инстансы, если получатель подключён не здесь
type Relay interface {
	Publish(ctx context.Context, env Envelope) error
}

// Envelope кадр для получателя на другом инстансе
type Envelope struct {
	Origin     string       `json:"origin"`
	ItemID     int64        `json:"item_id"`
	ReceiverID int64        `json:"receiver_id"`
	Frame      MessageFrame `json:"frame"`
}

type Hub struct {
	log          *slog.Logger
	registry     *Registry
	messages     storage.MessageStorage
	historyLimit int
	relay        Relay
}

func NewHub(log *slog.Logger, registry *Registry, messages storage.MessageStorage, historyLimit int) *Hub {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Hub{
		log:          log,
		registry:     registry,
		messages:     messages,
		historyLimit: historyLimit,
	}
}

// WithRelay включает пересылку между инстансами
func (h *Hub) WithRelay(relay Relay) *Hub {
	h.relay = relay
	return h
}

// Connect регистрирует соединение и сразу отправляет историю канала, от старых к новым.
// Предыдущее соединение того же пользователя в этом канале закрывается.
func (h *Hub) Connect(ctx context.Context, itemID, userID int64, s Sender) error {
	const op = "chat.Hub.Connect"
	logger := h.log.With(slog.String("op", op), slog.Int64("itemID", itemID), slog.Int64("userID", userID))

	if prev := h.registry.Bind(itemID, userID, s); prev != nil {
		logger.Info("replacing previous connection")
		_ = prev.Close()
	}

	history, err := h.History(ctx, itemID, h.historyLimit)
	if err != nil {
		logger.Error("failed to load history", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	frame := HistoryFrame{Type: FrameHistory, Messages: make([]WireMessage, 0, len(history))}
	for _, m := range history {
		frame.Messages = append(frame.Messages, toWire(m))
	}
	if err := s.Send(frame); err != nil {
		return fmt.Errorf("%s: failed to send history: %w", op, err)
	}

	logger.Info("chat connected", slog.Int("history", len(frame.Messages)))
	return nil
}

// HandleIncoming обрабатывает один кадр от пользователя.
// Кадр без текста, без получателя или не JSON игнорируется.
func (h *Hub) HandleIncoming(ctx context.Context, itemID, userID int64, s Sender, payload []byte) error {
	const op = "chat.Hub.HandleIncoming"

	var in incoming
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil
	}
	text := strings.TrimSpace(in.Text)
	if text == "" || in.ReceiverID == 0 {
		return nil
	}

	msg := &models.ChatMessage{
		SenderID:   userID,
		ReceiverID: in.ReceiverID,
		ItemID:     itemID,
		Text:       text,
	}
	if err := h.messages.CreateMessage(ctx, msg); err != nil {
		h.log.Error("failed to save message", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	wire := toWire(*msg)
	h.deliver(ctx, itemID, in.ReceiverID, MessageFrame{Type: FrameMessage, WireMessage: wire})

	// подтверждение отправителю
	if err := s.Send(MessageFrame{Type: FrameSent, WireMessage: wire}); err != nil {
		return fmt.Errorf("%s: failed to confirm: %w", op, err)
	}
	return nil
}

// deliver доставляет кадр получателю; ошибка доставки не влияет на отправителя
func (h *Hub) deliver(ctx context.Context, itemID, receiverID int64, frame MessageFrame) {
	if h.DeliverLocal(itemID, receiverID, frame) {
		return
	}
	if h.relay == nil {
		return
	}
	env := Envelope{ItemID: itemID, ReceiverID: receiverID, Frame: frame}
	if err := h.relay.Publish(ctx, env); err != nil {
		h.log.Warn("failed to relay message", slog.Int64("itemID", itemID), slog.Any("error", err))
	}
}

// DeliverLocal отправляет кадр, если получатель подключён к этому инстансу
func (h *Hub) DeliverLocal(itemID, receiverID int64, frame MessageFrame) bool {
	receiver, ok := h.registry.Get(itemID, receiverID)
	if !ok {
		return false
	}
	if err := receiver.Send(frame); err != nil {
		h.log.Warn("failed to deliver message",
			slog.Int64("itemID", itemID),
			slog.Int64("receiverID", receiverID),
			slog.Any("error", err),
		)
	}
	return true
}

// Disconnect вызывается на любом пути завершения соединения
func (h *Hub) Disconnect(itemID, userID int64, s Sender) {
	if h.registry.Unbind(itemID, userID, s) {
		h.log.Info("chat disconnected", slog.Int64("itemID", itemID), slog.Int64("userID", userID))
	}
}

// History последние limit сообщений канала от старых к новым
func (h *Hub) History(ctx context.Context, itemID int64, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > h.historyLimit {
		limit = h.historyLimit
	}
	msgs, err := h.messages.GetRecentByItem(ctx, itemID, limit)
	if err != nil {
		return nil, err
	}
	// из хранилища приходят от новых к старым
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	return msgs, nil
}

// MarkRead помечает прочитанными сообщения канала, адресованные пользователю
func (h *Hub) MarkRead(ctx context.Context, itemID, userID int64) (int64, error) {
	const op = "chat.Hub.MarkRead"

	n, err := h.messages.MarkRead(ctx, itemID, userID)
	if err != nil {
		h.log.Error("failed to mark messages read", slog.String("op", op), slog.Any("error", err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
