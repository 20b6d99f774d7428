package models

import "time"

// ChatMessage сообщение чата по товару; после записи меняется только IsRead
type ChatMessage struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	ItemID     int64     `json:"item_id"`
	Text       string    `json:"text"`
	IsRead     bool      `json:"is_read"`
	Timestamp  time.Time `json:"timestamp"`
}
