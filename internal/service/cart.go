package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/linemk/parfume-shop/internal/domain/models"
	"github.com/linemk/parfume-shop/internal/lib/apperr"
	"github.com/linemk/parfume-shop/internal/storage"
)

type CartService interface {
	GetCart(ctx context.Context, userID int64) (*CartView, error)
	AddToCart(ctx context.Context, userID, itemID int64, quantity int) (*models.CartLine, error)
	UpdateCartLine(ctx context.Context, userID, lineID int64, quantity int) (*models.CartLine, error)
	RemoveCartLine(ctx context.Context, userID, lineID int64) error
}

// CartView корзина с итогами по текущим ценам
type CartView struct {
	Items      []*models.CartLine `json:"items"`
	TotalItems int                `json:"total_items"`
	TotalPrice decimal.Decimal    `json:"total_price"`
}

type cartService struct {
	log      *slog.Logger
	cartRepo storage.CartStorage
	itemRepo storage.ItemStorage
}

func NewCartService(log *slog.Logger, cartRepo storage.CartStorage, itemRepo storage.ItemStorage) CartService {
	return &cartService{log: log, cartRepo: cartRepo, itemRepo: itemRepo}
}

func (s *cartService) GetCart(ctx context.Context, userID int64) (*CartView, error) {
	const op = "service.CartService.GetCart"

	lines, err := s.cartRepo.GetCartLines(ctx, userID)
	if err != nil {
		s.log.Error("failed to get cart", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	view := &CartView{Items: lines, TotalPrice: decimal.Zero}
	if view.Items == nil {
		view.Items = []*models.CartLine{}
	}
	for _, l := range lines {
		view.TotalItems += l.Quantity
		view.TotalPrice = view.TotalPrice.Add(l.LineTotal())
	}
	return view, nil
}

// AddToCart добавляет товар; повторное добавление увеличивает количество в той же строке.
func (s *cartService) AddToCart(ctx context.Context, userID, itemID int64, quantity int) (*models.CartLine, error) {
	const op = "service.CartService.AddToCart"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("itemID", itemID))

	item, err := s.activeItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if quantity > item.StockQuantity {
		return nil, apperr.InsufficientStock(item.ID, item.Name, quantity, item.StockQuantity)
	}

	lineID, err := s.cartRepo.AddCartLine(ctx, userID, itemID, quantity)
	if err != nil {
		logger.Error("failed to add cart line", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	line, err := s.cartRepo.GetCartLine(ctx, userID, lineID)
	if err != nil {
		logger.Error("failed to read cart line", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("item added to cart", slog.Int("quantity", line.Quantity))
	return line, nil
}

func (s *cartService) UpdateCartLine(ctx context.Context, userID, lineID int64, quantity int) (*models.CartLine, error) {
	const op = "service.CartService.UpdateCartLine"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("lineID", lineID))

	line, err := s.cartRepo.GetCartLine(ctx, userID, lineID)
	if err != nil {
		if errors.Is(err, storage.ErrCartLineNotFound) {
			return nil, apperr.NotFound("cart_item", lineID)
		}
		logger.Error("failed to get cart line", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if quantity > line.Item.StockQuantity {
		return nil, apperr.InsufficientStock(line.Item.ID, line.Item.Name, quantity, line.Item.StockQuantity)
	}

	if err := s.cartRepo.UpdateCartLineQuantity(ctx, userID, lineID, quantity); err != nil {
		if errors.Is(err, storage.ErrCartLineNotFound) {
			return nil, apperr.NotFound("cart_item", lineID)
		}
		logger.Error("failed to update cart line", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	line.Quantity = quantity
	return line, nil
}

func (s *cartService) RemoveCartLine(ctx context.Context, userID, lineID int64) error {
	const op = "service.CartService.RemoveCartLine"

	if err := s.cartRepo.DeleteCartLine(ctx, userID, lineID); err != nil {
		if errors.Is(err, storage.ErrCartLineNotFound) {
			return apperr.NotFound("cart_item", lineID)
		}
		s.log.Error("failed to delete cart line", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *cartService) activeItem(ctx context.Context, itemID int64) (*models.Item, error) {
	const op = "service.CartService.activeItem"

	item, err := s.itemRepo.GetItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, storage.ErrItemNotFound) {
			return nil, apperr.NotFound("item", itemID)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !item.IsActive {
		return nil, apperr.NotFound("item", itemID)
	}
	return item, nil
}
