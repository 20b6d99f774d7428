package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/linemk/parfume-shop/internal/domain/models"
)

var (
	ErrItemNotFound      = errors.New("item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ItemStorage описывает методы для работы с каталогом товаров.
type ItemStorage interface {
	GetItemByID(ctx context.Context, id int64) (*models.Item, error)
	// ListItems возвращает страницу активных товаров и общее количество по фильтру.
	ListItems(ctx context.Context, filter models.ItemFilter) ([]*models.Item, int, error)
	CreateItem(ctx context.Context, item *models.Item) (*models.Item, error)
	UpdateItem(ctx context.Context, item *models.Item) error
	// DecrementStockTx списывает остаток одним условным UPDATE: проверка и запись атомарны.
	DecrementStockTx(ctx context.Context, tx *sql.Tx, itemID int64, quantity int) error
}

type itemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) ItemStorage {
	return &itemRepository{db: db}
}

const itemColumns = `id, name, description, price, brand, volume_ml, stock_quantity, image_url, is_active,
	category_id, owner_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	item := &models.Item{}
	err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Price, &item.Brand, &item.VolumeML,
		&item.StockQuantity, &item.ImageURL, &item.IsActive, &item.CategoryID, &item.OwnerID,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *itemRepository) GetItemByID(ctx context.Context, id int64) (*models.Item, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE id = $1", id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

// buildItemWhere собирает условие WHERE и аргументы по фильтру
func buildItemWhere(filter models.ItemFilter) (string, []any) {
	conds := []string{"is_active = TRUE"}
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.CategoryID != nil {
		add("category_id = $%d", *filter.CategoryID)
	}
	if filter.MinPrice != nil {
		add("price >= $%d", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		add("price <= $%d", *filter.MaxPrice)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern)
		n := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR brand ILIKE $%d OR description ILIKE $%d)", n, n, n))
	}
	if filter.InStock != nil {
		if *filter.InStock {
			conds = append(conds, "stock_quantity > 0")
		} else {
			conds = append(conds, "stock_quantity = 0")
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *itemRepository) ListItems(ctx context.Context, filter models.ItemFilter) ([]*models.Item, int, error) {
	where, args := buildItemWhere(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count items: %w", err)
	}

	offset := (filter.Page - 1) * filter.PageSize
	args = append(args, filter.PageSize, offset)
	query := "SELECT " + itemColumns + " FROM items" + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *itemRepository) CreateItem(ctx context.Context, item *models.Item) (*models.Item, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO items (name, description, price, brand, volume_ml, stock_quantity, image_url, is_active, category_id, owner_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id, created_at, updated_at`,
		item.Name, item.Description, item.Price, item.Brand, item.VolumeML, item.StockQuantity,
		item.ImageURL, item.IsActive, item.CategoryID, item.OwnerID,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return item, nil
}

func (r *itemRepository) UpdateItem(ctx context.Context, item *models.Item) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE items SET name = $1, description = $2, price = $3, brand = $4, volume_ml = $5,
		 stock_quantity = $6, image_url = $7, is_active = $8, category_id = $9, updated_at = NOW()
		 WHERE id = $10 RETURNING updated_at`,
		item.Name, item.Description, item.Price, item.Brand, item.VolumeML, item.StockQuantity,
		item.ImageURL, item.IsActive, item.CategoryID, item.ID,
	).Scan(&item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrItemNotFound
		}
		return fmt.Errorf("failed to update item: %w", err)
	}
	return nil
}

func (r *itemRepository) DecrementStockTx(ctx context.Context, tx *sql.Tx, itemID int64, quantity int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE items SET stock_quantity = stock_quantity - $1, updated_at = NOW()
		 WHERE id = $2 AND is_active = TRUE AND stock_quantity >= $1`,
		quantity, itemID)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientStock
	}
	return nil
}
