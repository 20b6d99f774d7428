package chat

import (
	"time"

	"github.com/linemk/parfume-shop/internal/domain/models"
)

const (
	FrameHistory = "history"
	FrameMessage = "message"
	FrameSent    = "sent"
)

// CloseUnauthorized код закрытия при неверном токене
const CloseUnauthorized = 4001

type WireMessage struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

func toWire(m models.ChatMessage) WireMessage {
	return WireMessage{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Timestamp:  m.Timestamp,
	}
}

type HistoryFrame struct {
	Type     string        `json:"type"`
	Messages []WireMessage `json:"messages"`
}

type MessageFrame struct {
	Type string `json:"type"`
	WireMessage
}

// incoming входящий кадр от клиента
type incoming struct {
	Text       string `json:"text"`
	ReceiverID int64  `json:"receiver_id"`
}
