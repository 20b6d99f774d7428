package service_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/linemk/parfume-shop/internal/domain/models"
	"github.com/linemk/parfume-shop/internal/notifier"
	"github.com/linemk/parfume-shop/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// fakeUserRepo
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*models.User
	nextID int64
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*models.User)}
}

func (f *fakeUserRepo) find(match func(u *models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUserRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Username == username })
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	f.users[user.ID] = user
	return user, nil
}

// fakeItemRepo хранит товары; списание условное, как в SQL
type fakeItemRepo struct {
	mu    sync.Mutex
	items map[int64]*models.Item
	// вызывается перед списанием, позволяет сымитировать параллельную покупку
	beforeDecrement func(itemID int64)
}

var _ storage.ItemStorage = (*fakeItemRepo)(nil)

func newFakeItemRepo(items ...*models.Item) *fakeItemRepo {
	f := &fakeItemRepo{items: make(map[int64]*models.Item)}
	for _, it := range items {
		f.items[it.ID] = it
	}
	return f
}

func (f *fakeItemRepo) snapshot(id int64) (models.Item, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return models.Item{}, false
	}
	return *it, true
}

func (f *fakeItemRepo) GetItemByID(ctx context.Context, id int64) (*models.Item, error) {
	it, ok := f.snapshot(id)
	if !ok {
		return nil, storage.ErrItemNotFound
	}
	return &it, nil
}

func (f *fakeItemRepo) ListItems(ctx context.Context, filter models.ItemFilter) ([]*models.Item, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*models.Item
	for _, it := range f.items {
		if it.IsActive {
			cp := *it
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	start := (filter.Page - 1) * filter.PageSize
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (f *fakeItemRepo) CreateItem(ctx context.Context, item *models.Item) (*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.ID = int64(len(f.items) + 1)
	cp := *item
	f.items[item.ID] = &cp
	return item, nil
}

func (f *fakeItemRepo) UpdateItem(ctx context.Context, item *models.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[item.ID]; !ok {
		return storage.ErrItemNotFound
	}
	cp := *item
	f.items[item.ID] = &cp
	return nil
}

func (f *fakeItemRepo) setPrice(id int64, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[id].Price = mustDecimal(price)
}

func (f *fakeItemRepo) DecrementStockTx(ctx context.Context, tx *sql.Tx, itemID int64, quantity int) error {
	if f.beforeDecrement != nil {
		f.beforeDecrement(itemID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[itemID]
	if !ok || !it.IsActive || it.StockQuantity < quantity {
		return storage.ErrInsufficientStock
	}
	it.StockQuantity -= quantity
	return nil
}

// fakeCartRepo корзины по пользователям; товар подставляется при чтении, как JOIN
type fakeCartRepo struct {
	mu      sync.Mutex
	items   *fakeItemRepo
	lines   map[int64][]*models.CartLine
	nextID  int64
	cleared map[int64]bool
}

var _ storage.CartStorage = (*fakeCartRepo)(nil)

func newFakeCartRepo(items *fakeItemRepo) *fakeCartRepo {
	return &fakeCartRepo{items: items, lines: make(map[int64][]*models.CartLine), cleared: make(map[int64]bool)}
}

func (f *fakeCartRepo) add(userID, itemID int64, quantity int) {
	_, _ = f.AddCartLine(context.Background(), userID, itemID, quantity)
}

func (f *fakeCartRepo) read(userID int64) []*models.CartLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.CartLine
	for _, l := range f.lines[userID] {
		cp := *l
		cp.Item, _ = f.items.snapshot(l.ItemID)
		out = append(out, &cp)
	}
	return out
}

func (f *fakeCartRepo) GetCartLines(ctx context.Context, userID int64) ([]*models.CartLine, error) {
	return f.read(userID), nil
}

func (f *fakeCartRepo) LockCartLinesTx(ctx context.Context, tx *sql.Tx, userID int64) ([]*models.CartLine, error) {
	return f.read(userID), nil
}

func (f *fakeCartRepo) GetCartLine(ctx context.Context, userID, lineID int64) (*models.CartLine, error) {
	for _, l := range f.read(userID) {
		if l.ID == lineID {
			return l, nil
		}
	}
	return nil, storage.ErrCartLineNotFound
}

func (f *fakeCartRepo) AddCartLine(ctx context.Context, userID, itemID int64, quantity int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lines[userID] {
		if l.ItemID == itemID {
			l.Quantity += quantity
			return l.ID, nil
		}
	}
	f.nextID++
	f.lines[userID] = append(f.lines[userID], &models.CartLine{
		ID: f.nextID, UserID: userID, ItemID: itemID, Quantity: quantity, AddedAt: time.Now(),
	})
	return f.nextID, nil
}

func (f *fakeCartRepo) UpdateCartLineQuantity(ctx context.Context, userID, lineID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lines[userID] {
		if l.ID == lineID {
			l.Quantity = quantity
			return nil
		}
	}
	return storage.ErrCartLineNotFound
}

func (f *fakeCartRepo) DeleteCartLine(ctx context.Context, userID, lineID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := f.lines[userID]
	for i, l := range lines {
		if l.ID == lineID {
			f.lines[userID] = append(lines[:i], lines[i+1:]...)
			return nil
		}
	}
	return storage.ErrCartLineNotFound
}

func (f *fakeCartRepo) ClearCartTx(ctx context.Context, tx *sql.Tx, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lines, userID)
	f.cleared[userID] = true
	return nil
}

// fakeOrderRepo; takenAttempts - сколько первых вставок вернут ErrOrderNumberTaken
type fakeOrderRepo struct {
	mu            sync.Mutex
	orders        map[int64]*models.Order
	lines         map[int64][]models.OrderLine
	sellerItems   map[int64]map[int64]bool // sellerID -> itemID
	takenAttempts int
	attempts      int
	nextID        int64
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:      make(map[int64]*models.Order),
		lines:       make(map[int64][]models.OrderLine),
		sellerItems: make(map[int64]map[int64]bool),
	}
}

func (f *fakeOrderRepo) put(order *models.Order, lines ...models.OrderLine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *order
	cp.Lines = nil
	f.orders[order.ID] = &cp
	f.lines[order.ID] = lines
	if order.ID > f.nextID {
		f.nextID = order.ID
	}
}

func (f *fakeOrderRepo) status(id int64) models.OrderStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id].Status
}

func (f *fakeOrderRepo) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.takenAttempts {
		return storage.ErrOrderNumberTaken
	}
	f.nextID++
	order.ID = f.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeOrderRepo) CreateOrderLineTx(ctx context.Context, tx *sql.Tx, line *models.OrderLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	line.ID = int64(len(f.lines[line.OrderID]) + 1)
	f.lines[line.OrderID] = append(f.lines[line.OrderID], *line)
	return nil
}

func (f *fakeOrderRepo) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) GetOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OrderLine(nil), f.lines[orderID]...), nil
}

func (f *fakeOrderRepo) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeOrderRepo) GetOrdersBySeller(ctx context.Context, sellerID int64, status *models.OrderStatus) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Order
	for id, o := range f.orders {
		if status != nil && o.Status != *status {
			continue
		}
		for _, l := range f.lines[id] {
			if f.sellerItems[sellerID][l.ItemID] {
				cp := *o
				out = append(out, &cp)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeOrderRepo) UpdateOrderStatus(ctx context.Context, id int64, from, to models.OrderStatus) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.Status != from {
		return nil, storage.ErrStatusConflict
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) IsSellerOfOrder(ctx context.Context, orderID, sellerID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lines[orderID] {
		if f.sellerItems[sellerID][l.ItemID] {
			return true, nil
		}
	}
	return false, nil
}

// fakeNotifier запоминает события
type fakeNotifier struct {
	mu     sync.Mutex
	events []notifier.StatusEvent
}

func (f *fakeNotifier) Notify(ev notifier.StatusEvent) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return true
}

func (f *fakeNotifier) statuses() []models.OrderStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.OrderStatus
	for _, ev := range f.events {
		out = append(out, ev.Status)
	}
	return out
}
