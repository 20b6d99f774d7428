package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/parfume-shop/internal/domain/models"
)

var ErrCartLineNotFound = errors.New("cart line not found")

// CartStorage описывает методы для работы с корзиной.
type CartStorage interface {
	GetCartLines(ctx context.Context, userID int64) ([]*models.CartLine, error)
	// LockCartLinesTx читает корзину вместе с товарами и блокирует строки корзины до конца транзакции.
	LockCartLinesTx(ctx context.Context, tx *sql.Tx, userID int64) ([]*models.CartLine, error)
	GetCartLine(ctx context.Context, userID, lineID int64) (*models.CartLine, error)
	// AddCartLine добавляет товар в корзину, при повторном добавлении увеличивает количество.
	AddCartLine(ctx context.Context, userID, itemID int64, quantity int) (int64, error)
	UpdateCartLineQuantity(ctx context.Context, userID, lineID int64, quantity int) error
	DeleteCartLine(ctx context.Context, userID, lineID int64) error
	ClearCartTx(ctx context.Context, tx *sql.Tx, userID int64) error
}

type cartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) CartStorage {
	return &cartRepository{db: db}
}

const cartLineQuery = `
	SELECT c.id, c.user_id, c.item_id, c.quantity, c.added_at,
	       i.id, i.name, i.description, i.price, i.brand, i.volume_ml, i.stock_quantity, i.image_url,
	       i.is_active, i.category_id, i.owner_id, i.created_at, i.updated_at
	FROM cart_items c
	JOIN items i ON i.id = c.item_id`

func scanCartLine(row rowScanner) (*models.CartLine, error) {
	line := &models.CartLine{}
	it := &line.Item
	err := row.Scan(&line.ID, &line.UserID, &line.ItemID, &line.Quantity, &line.AddedAt,
		&it.ID, &it.Name, &it.Description, &it.Price, &it.Brand, &it.VolumeML, &it.StockQuantity,
		&it.ImageURL, &it.IsActive, &it.CategoryID, &it.OwnerID, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return line, nil
}

func collectCartLines(rows *sql.Rows) ([]*models.CartLine, error) {
	defer rows.Close()

	var lines []*models.CartLine
	for rows.Next() {
		line, err := scanCartLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *cartRepository) GetCartLines(ctx context.Context, userID int64) ([]*models.CartLine, error) {
	rows, err := r.db.QueryContext(ctx, cartLineQuery+" WHERE c.user_id = $1 ORDER BY c.added_at, c.id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}
	return collectCartLines(rows)
}

func (r *cartRepository) LockCartLinesTx(ctx context.Context, tx *sql.Tx, userID int64) ([]*models.CartLine, error) {
	rows, err := tx.QueryContext(ctx, cartLineQuery+" WHERE c.user_id = $1 ORDER BY c.item_id FOR UPDATE OF c", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock cart: %w", err)
	}
	return collectCartLines(rows)
}

func (r *cartRepository) GetCartLine(ctx context.Context, userID, lineID int64) (*models.CartLine, error) {
	row := r.db.QueryRowContext(ctx, cartLineQuery+" WHERE c.id = $1 AND c.user_id = $2", lineID, userID)
	line, err := scanCartLine(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartLineNotFound
		}
		return nil, err
	}
	return line, nil
}

func (r *cartRepository) AddCartLine(ctx context.Context, userID, itemID int64, quantity int) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO cart_items (user_id, item_id, quantity) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, item_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		 RETURNING id`,
		userID, itemID, quantity,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to add cart line: %w", err)
	}
	return id, nil
}

func (r *cartRepository) UpdateCartLineQuantity(ctx context.Context, userID, lineID int64, quantity int) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1 WHERE id = $2 AND user_id = $3", quantity, lineID, userID)
	if err != nil {
		return fmt.Errorf("failed to update cart line: %w", err)
	}
	return checkAffected(res, ErrCartLineNotFound)
}

func (r *cartRepository) DeleteCartLine(ctx context.Context, userID, lineID int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cart_items WHERE id = $1 AND user_id = $2", lineID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete cart line: %w", err)
	}
	return checkAffected(res, ErrCartLineNotFound)
}

func (r *cartRepository) ClearCartTx(ctx context.Context, tx *sql.Tx, userID int64) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// checkAffected возвращает notFound, если запрос не затронул ни одной строки
func checkAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
