package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/parfume-shop/internal/domain/models"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderNumberTaken = errors.New("order number already taken")
	ErrStatusConflict   = errors.New("order status changed concurrently")
)

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// CreateOrderTx вставляет заказ; при совпадении номера возвращает ErrOrderNumberTaken, не ломая транзакцию.
	CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error
	CreateOrderLineTx(ctx context.Context, tx *sql.Tx, line *models.OrderLine) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	// GetOrderLines возвращает позиции заказа с названием товара.
	GetOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error)
	// GetOrdersBySeller возвращает заказы, в которых есть хотя бы один товар продавца.
	GetOrdersBySeller(ctx context.Context, sellerID int64, status *models.OrderStatus) ([]*models.Order, error)
	// UpdateOrderStatus меняет статус, только если текущий статус равен from.
	UpdateOrderStatus(ctx context.Context, id int64, from, to models.OrderStatus) (*models.Order, error)
	IsSellerOfOrder(ctx context.Context, orderID, sellerID int64) (bool, error)
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

const orderColumns = "id, order_number, status, total_price, shipping_address, notes, user_id, created_at, updated_at"

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(&order.ID, &order.OrderNumber, &order.Status, &order.TotalPrice, &order.ShippingAddress,
		&order.Notes, &order.UserID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func collectOrders(rows *sql.Rows) ([]*models.Order, error) {
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	query := `INSERT INTO orders (order_number, status, total_price, shipping_address, notes, user_id)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (order_number) DO NOTHING
	          RETURNING id, created_at, updated_at`
	err := tx.QueryRowContext(ctx, query, order.OrderNumber, order.Status, order.TotalPrice,
		order.ShippingAddress, order.Notes, order.UserID,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNumberTaken
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *orderRepository) CreateOrderLineTx(ctx context.Context, tx *sql.Tx, line *models.OrderLine) error {
	err := tx.QueryRowContext(ctx,
		`INSERT INTO order_items (order_id, item_id, quantity, price_at_purchase)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		line.OrderID, line.ItemID, line.Quantity, line.PriceAtPurchase,
	).Scan(&line.ID)
	if err != nil {
		return fmt.Errorf("failed to create order line: %w", err)
	}
	return nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	query := `
		SELECT oi.id, oi.order_id, oi.item_id, i.name, oi.quantity, oi.price_at_purchase
		FROM order_items oi
		JOIN items i ON i.id = oi.item_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []models.OrderLine
	for rows.Next() {
		var line models.OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ItemID, &line.ItemName, &line.Quantity, &line.PriceAtPurchase); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *orderRepository) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (r *orderRepository) GetOrdersBySeller(ctx context.Context, sellerID int64, status *models.OrderStatus) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE id IN (
			SELECT oi.order_id FROM order_items oi
			JOIN items i ON i.id = oi.item_id
			WHERE i.owner_id = $1
		)`
	args := []any{sellerID}
	if status != nil {
		query += " AND status = $2"
		args = append(args, *status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (r *orderRepository) UpdateOrderStatus(ctx context.Context, id int64, from, to models.OrderStatus) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3
		 RETURNING `+orderColumns,
		to, id, from)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	return order, nil
}

func (r *orderRepository) IsSellerOfOrder(ctx context.Context, orderID, sellerID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM order_items oi
			JOIN items i ON i.id = oi.item_id
			WHERE oi.order_id = $1 AND i.owner_id = $2
		)`, orderID, sellerID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
