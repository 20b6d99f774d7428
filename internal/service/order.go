package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/linemk/parfume-shop/internal/domain/models"
	"github.com/linemk/parfume-shop/internal/lib/apperr"
	"github.com/linemk/parfume-shop/internal/notifier"
	"github.com/linemk/parfume-shop/internal/storage"
)

const (
	orderNumberPrefix = "BVP"
	// сколько раз пробуем новый номер при совпадении
	orderNumberAttempts = 5
)

// StatusNotifier принимает событие без ожидания доставки
type StatusNotifier interface {
	Notify(ev notifier.StatusEvent) bool
}

type OrderService interface {
	// CreateOrder превращает корзину пользователя в заказ одной транзакцией.
	CreateOrder(ctx context.Context, user *models.User, shippingAddress string, notes *string) (*models.Order, error)
	// UpdateStatus меняет статус по графу переходов.
	UpdateStatus(ctx context.Context, orderID int64, requested models.OrderStatus, actor *models.User) (*models.Order, error)
	GetOrder(ctx context.Context, orderID int64, actor *models.User) (*models.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]*models.Order, error)
	GetOrdersForSeller(ctx context.Context, seller *models.User, status *models.OrderStatus) ([]*models.Order, error)
}

type orderService struct {
	log       *slog.Logger
	db        *sql.DB
	cartRepo  storage.CartStorage
	itemRepo  storage.ItemStorage
	orderRepo storage.OrderStorage
	notifier  StatusNotifier
}

func NewOrderService(log *slog.Logger, db *sql.DB, cartRepo storage.CartStorage, itemRepo storage.ItemStorage,
	orderRepo storage.OrderStorage, statusNotifier StatusNotifier) OrderService {
	return &orderService{
		log:       log,
		db:        db,
		cartRepo:  cartRepo,
		itemRepo:  itemRepo,
		orderRepo: orderRepo,
		notifier:  statusNotifier,
	}
}

// GenerateOrderNumber номер вида BVP-20240131-1A2B3C4D
func GenerateOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", orderNumberPrefix, now.Format("20060102"), suffix)
}

// CreateOrder создаёт заказ из корзины
// Если что-то идет не так, транзакция откатывается: заказ не создан, остатки и корзина не тронуты
func (s *orderService) CreateOrder(ctx context.Context, user *models.User, shippingAddress string, notes *string) (*models.Order, error) {
	const op = "service.OrderService.CreateOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", user.ID))
	logger.Info("starting order transaction")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	rollback := func() {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
	}

	// Блокируем корзину, чтобы два оформления одного пользователя не списали её дважды
	lines, err := s.cartRepo.LockCartLinesTx(ctx, tx, user.ID)
	if err != nil {
		rollback()
		logger.Error("failed to read cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to read cart: %w", op, err)
	}
	if len(lines) == 0 {
		rollback()
		logger.Warn("cart is empty")
		return nil, apperr.EmptyCart()
	}

	// Проверяем товары и считаем сумму по текущим ценам
	total := decimal.Zero
	for _, l := range lines {
		if !l.Item.IsActive {
			rollback()
			logger.Warn("item is unavailable", slog.Int64("itemID", l.ItemID))
			return nil, apperr.ItemUnavailable(l.ItemID, l.Item.Name)
		}
		if l.Item.StockQuantity < l.Quantity {
			rollback()
			logger.Warn("insufficient stock", slog.Int64("itemID", l.ItemID),
				slog.Int("requested", l.Quantity), slog.Int("available", l.Item.StockQuantity))
			return nil, apperr.InsufficientStock(l.ItemID, l.Item.Name, l.Quantity, l.Item.StockQuantity)
		}
		total = total.Add(l.LineTotal())
	}

	order := &models.Order{
		Status:          models.StatusPending,
		TotalPrice:      total,
		ShippingAddress: shippingAddress,
		Notes:           notes,
		UserID:          user.ID,
	}
	if err := s.insertOrder(ctx, tx, order); err != nil {
		rollback()
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order: %w", op, err)
	}

	order.Lines = make([]models.OrderLine, 0, len(lines))
	for _, l := range lines {
		line := models.OrderLine{
			OrderID:         order.ID,
			ItemID:          l.ItemID,
			ItemName:        l.Item.Name,
			Quantity:        l.Quantity,
			PriceAtPurchase: l.Item.Price,
		}
		if err := s.orderRepo.CreateOrderLineTx(ctx, tx, &line); err != nil {
			rollback()
			logger.Error("failed to create order line", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to create order line: %w", op, err)
		}

		// Условный UPDATE: остаток проверяется в момент записи
		if err := s.itemRepo.DecrementStockTx(ctx, tx, l.ItemID, l.Quantity); err != nil {
			rollback()
			if errors.Is(err, storage.ErrInsufficientStock) {
				logger.Warn("stock changed concurrently", slog.Int64("itemID", l.ItemID))
				return nil, apperr.InsufficientStock(l.ItemID, l.Item.Name, l.Quantity, l.Item.StockQuantity)
			}
			logger.Error("failed to decrement stock", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to decrement stock: %w", op, err)
		}
		order.Lines = append(order.Lines, line)
	}

	if err := s.cartRepo.ClearCartTx(ctx, tx, user.ID); err != nil {
		rollback()
		logger.Error("failed to clear cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to clear cart: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	s.notify(order)
	logger.Info("order created", slog.Int64("orderID", order.ID), slog.String("orderNumber", order.OrderNumber))
	return order, nil
}

// insertOrder повторяет вставку с новым номером, если номер уже занят
func (s *orderService) insertOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
		order.OrderNumber = GenerateOrderNumber(time.Now())
		err := s.orderRepo.CreateOrderTx(ctx, tx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrOrderNumberTaken) {
			return err
		}
		s.log.Warn("order number collision, retrying",
			slog.String("orderNumber", order.OrderNumber), slog.Int("attempt", attempt))
	}
	return storage.ErrOrderNumberTaken
}

// UpdateStatus меняет статус заказа.
// Доступно администратору и продавцу, чей товар есть в заказе. Отмена не возвращает товар на склад.
func (s *orderService) UpdateStatus(ctx context.Context, orderID int64, requested models.OrderStatus, actor *models.User) (*models.Order, error) {
	const op = "service.OrderService.UpdateStatus"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("orderID", orderID),
		slog.String("requested", string(requested)),
		slog.Int64("actorID", actor.ID),
	)

	if !requested.Valid() {
		return nil, apperr.Fields([]apperr.FieldError{{Field: "status", Message: "unknown order status"}})
	}

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeStatusChange(ctx, orderID, actor); err != nil {
		return nil, err
	}

	if !order.Status.CanTransitionTo(requested) {
		logger.Warn("illegal status transition", slog.String("current", string(order.Status)))
		return nil, apperr.IllegalTransition(string(order.Status), string(requested))
	}

	updated, err := s.orderRepo.UpdateOrderStatus(ctx, orderID, order.Status, requested)
	if err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			// статус успели поменять параллельно, переход считаем недопустимым
			logger.Warn("order status changed concurrently")
			return nil, apperr.IllegalTransition(string(order.Status), string(requested))
		}
		logger.Error("failed to update order status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.attachLines(ctx, updated); err != nil {
		logger.Error("failed to load order lines", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.notify(updated)
	logger.Info("order status updated", slog.String("from", string(order.Status)))
	return updated, nil
}

func (s *orderService) authorizeStatusChange(ctx context.Context, orderID int64, actor *models.User) error {
	const op = "service.OrderService.authorizeStatusChange"

	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleSeller:
		ok, err := s.orderRepo.IsSellerOfOrder(ctx, orderID, actor.ID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if ok {
			return nil
		}
	}
	return apperr.Forbidden("not enough permissions")
}

// GetOrder доступен владельцу заказа и администратору
func (s *orderService) GetOrder(ctx context.Context, orderID int64, actor *models.User) (*models.Order, error) {
	const op = "service.OrderService.GetOrder"

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, apperr.Forbidden("not enough permissions")
	}
	if err := s.attachLines(ctx, order); err != nil {
		s.log.Error("failed to load order lines", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, userID int64) ([]*models.Order, error) {
	const op = "service.OrderService.ListOrders"

	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		s.log.Error("failed to list orders", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.withLines(ctx, op, orders)
}

func (s *orderService) GetOrdersForSeller(ctx context.Context, seller *models.User, status *models.OrderStatus) ([]*models.Order, error) {
	const op = "service.OrderService.GetOrdersForSeller"

	if status != nil && !status.Valid() {
		return nil, apperr.Fields([]apperr.FieldError{{Field: "status", Message: "unknown order status"}})
	}

	orders, err := s.orderRepo.GetOrdersBySeller(ctx, seller.ID, status)
	if err != nil {
		s.log.Error("failed to list seller orders", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.withLines(ctx, op, orders)
}

func (s *orderService) withLines(ctx context.Context, op string, orders []*models.Order) ([]*models.Order, error) {
	for _, o := range orders {
		if err := s.attachLines(ctx, o); err != nil {
			s.log.Error("failed to load order lines", slog.String("op", op), slog.Any("error", err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	return orders, nil
}

func (s *orderService) getOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	const op = "service.OrderService.getOrder"

	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, apperr.NotFound("order", orderID)
		}
		s.log.Error("failed to get order", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

func (s *orderService) attachLines(ctx context.Context, order *models.Order) error {
	lines, err := s.orderRepo.GetOrderLines(ctx, order.ID)
	if err != nil {
		return err
	}
	order.Lines = lines
	return nil
}

// notify не ждёт доставки и не влияет на результат операции
func (s *orderService) notify(order *models.Order) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(notifier.StatusEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		At:          time.Now(),
	})
}
