package storage_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/linemk/parfume-shop/internal/domain/models"
	"github.com/linemk/parfume-shop/internal/storage"
)

var userRowColumns = []string{"id", "email", "username", "pass_hash", "first_name", "last_name", "role", "is_active", "created_at"}

var itemRowColumns = []string{"id", "name", "description", "price", "brand", "volume_ml", "stock_quantity",
	"image_url", "is_active", "category_id", "owner_id", "created_at", "updated_at"}

func TestGetUserByID_Success(t *testing.T) {
	// Создаем sqlmock для эмуляции базы данных.
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()
	userID := int64(1)
	now := time.Now()

	rows := sqlmock.NewRows(userRowColumns).
		AddRow(userID, "test@example.com", "tester", []byte("hashed-password"), "Ivan", nil, "seller", true, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(userID).WillReturnRows(rows)

	user, err := repo.GetUserByID(ctx, userID)
	assert.NoError(t, err, "Expected no error when user is found")
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, "test@example.com", user.Email)
	assert.Equal(t, "tester", user.Username)
	assert.Equal(t, []byte("hashed-password"), user.PassHash)
	assert.Equal(t, "Ivan", *user.FirstName)
	assert.Nil(t, user.LastName)
	assert.Equal(t, models.RoleSeller, user.Role)
	assert.True(t, user.IsActive)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID_NoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)

	// Эмулируем ситуацию, когда запрос возвращает 0 строк.
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(int64(2)).WillReturnRows(sqlmock.NewRows(userRowColumns))

	user, err := repo.GetUserByID(context.Background(), 2)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
	assert.Nil(t, user, "User should be nil when not found")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByUsername_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)

	// Эмулируем ошибку выполнения запроса.
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1")).
		WithArgs("tester").WillReturnError(errors.New("db error"))

	user, err := repo.GetUserByUsername(context.Background(), "tester")
	assert.Error(t, err, "Expected error when query fails")
	assert.NotErrorIs(t, err, storage.ErrUserNotFound)
	assert.Nil(t, user)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_Duplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	user := &models.User{Email: "a@b.c", Username: "abc", PassHash: []byte("h"), Role: models.RoleUser, IsActive: true}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505"})

	created, err := repo.CreateUser(context.Background(), user)
	assert.ErrorIs(t, err, storage.ErrUserExists)
	assert.Nil(t, created)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	user := &models.User{Email: "a@b.c", Username: "abc", PassHash: []byte("h"), Role: models.RoleUser, IsActive: true}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("a@b.c", "abc", []byte("h"), nil, nil, models.RoleUser, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, time.Now()))

	created, err := repo.CreateUser(context.Background(), user)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementStockTx_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewItemRepository(db)

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE items SET stock_quantity = stock_quantity - $1")).
		WithArgs(2, int64(10)).WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.DecrementStockTx(context.Background(), tx, 10, 2)
	assert.NoError(t, err)

	mock.ExpectCommit()
	assert.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementStockTx_Insufficient(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewItemRepository(db)

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	// условие stock_quantity >= $1 не выполнено - ни одна строка не обновлена
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $2 AND is_active = TRUE AND stock_quantity >= $1")).
		WithArgs(5, int64(10)).WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.DecrementStockTx(context.Background(), tx, 10, 5)
	assert.ErrorIs(t, err, storage.ErrInsufficientStock)

	mock.ExpectRollback()
	assert.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListItems_WithFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewItemRepository(db)
	categoryID := int64(3)
	minPrice := decimal.NewFromInt(5)
	inStock := true
	filter := models.ItemFilter{
		CategoryID: &categoryID,
		MinPrice:   &minPrice,
		Search:     "rose",
		InStock:    &inStock,
		Page:       2,
		PageSize:   10,
	}

	where := "WHERE is_active = TRUE AND category_id = $1 AND price >= $2 AND (name ILIKE $3 OR brand ILIKE $3 OR description ILIKE $3) AND stock_quantity > 0"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM items " + where)).
		WithArgs(categoryID, sqlmock.AnyArg(), "%rose%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(where + " ORDER BY created_at DESC LIMIT $4 OFFSET $5")).
		WithArgs(categoryID, sqlmock.AnyArg(), "%rose%", 10, 10).
		WillReturnRows(sqlmock.NewRows(itemRowColumns).
			AddRow(11, "Rose Oud", nil, "99.90", "Maison", 50, 4, nil, true, categoryID, 2, now, now))

	items, total, err := repo.ListItems(context.Background(), filter)
	assert.NoError(t, err)
	assert.Equal(t, 11, total)
	assert.Len(t, items, 1)
	assert.Equal(t, "Rose Oud", items[0].Name)
	assert.True(t, decimal.RequireFromString("99.90").Equal(items[0].Price))
	assert.Equal(t, 50, *items[0].VolumeML)
	assert.Nil(t, items[0].Description)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetItemByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewItemRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM items WHERE id = $1")).
		WithArgs(int64(42)).WillReturnRows(sqlmock.NewRows(itemRowColumns))

	item, err := repo.GetItemByID(context.Background(), 42)
	assert.ErrorIs(t, err, storage.ErrItemNotFound)
	assert.Nil(t, item)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddCartLine_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewCartRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (user_id, item_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity")).
		WithArgs(int64(1), int64(5), 3).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

	id, err := repo.AddCartLine(context.Background(), 1, 5, 3)
	assert.NoError(t, err)
	assert.Equal(t, int64(9), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCartLine_NotOwned(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewCartRepository(db)

	// строка принадлежит другому пользователю - удалять нечего
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cart_items WHERE id = $1 AND user_id = $2")).
		WithArgs(int64(9), int64(2)).WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.DeleteCartLine(context.Background(), 2, 9)
	assert.ErrorIs(t, err, storage.ErrCartLineNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockCartLinesTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewCartRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	cols := append([]string{"c.id", "c.user_id", "c.item_id", "c.quantity", "c.added_at"}, itemRowColumns...)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.user_id = $1 ORDER BY c.item_id FOR UPDATE OF c")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, 1, 10, 2, now, 10, "A", nil, "10.00", nil, nil, 2, nil, true, nil, 5, now, now).
			AddRow(2, 1, 11, 1, now, 11, "B", nil, "5.00", nil, nil, 5, nil, true, nil, 5, now, now))

	lines, err := repo.LockCartLinesTx(context.Background(), tx, 1)
	assert.NoError(t, err)
	assert.Len(t, lines, 2)
	assert.Equal(t, "A", lines[0].Item.Name)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, decimal.NewFromInt(20).Equal(lines[0].LineTotal()))

	mock.ExpectCommit()
	assert.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
