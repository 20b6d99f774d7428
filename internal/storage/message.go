package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/linemk/parfume-shop/internal/domain/models"
)

// MessageStorage хранит историю чата по товарам.
type MessageStorage interface {
	CreateMessage(ctx context.Context, msg *models.ChatMessage) error
	// GetRecentByItem возвращает последние limit сообщений по товару, от новых к старым.
	GetRecentByItem(ctx context.Context, itemID int64, limit int) ([]models.ChatMessage, error)
	// MarkRead помечает прочитанными сообщения товара, адресованные получателю.
	MarkRead(ctx context.Context, itemID, receiverID int64) (int64, error)
}

type messageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) MessageStorage {
	return &messageRepository{db: db}
}

func (r *messageRepository) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO messages (text, sender_id, receiver_id, item_id)
		 VALUES ($1, $2, $3, $4) RETURNING id, is_read, timestamp`,
		msg.Text, msg.SenderID, msg.ReceiverID, msg.ItemID,
	).Scan(&msg.ID, &msg.IsRead, &msg.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *messageRepository) GetRecentByItem(ctx context.Context, itemID int64, limit int) ([]models.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sender_id, receiver_id, item_id, text, is_read, timestamp
		 FROM messages WHERE item_id = $1
		 ORDER BY timestamp DESC, id DESC LIMIT $2`,
		itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.ItemID, &m.Text, &m.IsRead, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, itemID, receiverID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE messages SET is_read = TRUE WHERE item_id = $1 AND receiver_id = $2 AND is_read = FALSE",
		itemID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return res.RowsAffected()
}
