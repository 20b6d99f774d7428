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

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type CatalogService interface {
	ListItems(ctx context.Context, filter models.ItemFilter) (*ItemPage, error)
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	CreateItem(ctx context.Context, owner *models.User, in ItemInput) (*models.Item, error)
	UpdateItem(ctx context.Context, actor *models.User, id int64, patch ItemPatch) (*models.Item, error)
}

type ItemPage struct {
	Items    []*models.Item `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Pages    int            `json:"pages"`
}

type ItemInput struct {
	Name          string
	Description   *string
	Price         decimal.Decimal
	Brand         *string
	VolumeML      *int
	StockQuantity int
	ImageURL      *string
	CategoryID    *int64
}

// ItemPatch частичное обновление: nil - поле не меняется
type ItemPatch struct {
	Name          *string
	Description   *string
	Price         *decimal.Decimal
	Brand         *string
	VolumeML      *int
	StockQuantity *int
	ImageURL      *string
	CategoryID    *int64
	IsActive      *bool
}

type catalogService struct {
	log      *slog.Logger
	itemRepo storage.ItemStorage
}

func NewCatalogService(log *slog.Logger, itemRepo storage.ItemStorage) CatalogService {
	return &catalogService{log: log, itemRepo: itemRepo}
}

func (s *catalogService) ListItems(ctx context.Context, filter models.ItemFilter) (*ItemPage, error) {
	const op = "service.CatalogService.ListItems"

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = DefaultPageSize
	}
	if filter.PageSize > MaxPageSize {
		filter.PageSize = MaxPageSize
	}

	items, total, err := s.itemRepo.ListItems(ctx, filter)
	if err != nil {
		s.log.Error("failed to list items", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if items == nil {
		items = []*models.Item{}
	}

	return &ItemPage{
		Items:    items,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
		Pages:    (total + filter.PageSize - 1) / filter.PageSize,
	}, nil
}

// GetItem возвращает только активный товар
func (s *catalogService) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	const op = "service.CatalogService.GetItem"

	item, err := s.itemRepo.GetItemByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrItemNotFound) {
			return nil, apperr.NotFound("item", id)
		}
		s.log.Error("failed to get item", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !item.IsActive {
		return nil, apperr.NotFound("item", id)
	}
	return item, nil
}

func (s *catalogService) CreateItem(ctx context.Context, owner *models.User, in ItemInput) (*models.Item, error) {
	const op = "service.CatalogService.CreateItem"
	logger := s.log.With(slog.String("op", op), slog.Int64("ownerID", owner.ID))

	if !in.Price.IsPositive() {
		return nil, apperr.Fields([]apperr.FieldError{{Field: "price", Message: "must be greater than 0"}})
	}

	item, err := s.itemRepo.CreateItem(ctx, &models.Item{
		Name:          in.Name,
		Description:   in.Description,
		Price:         in.Price,
		Brand:         in.Brand,
		VolumeML:      in.VolumeML,
		StockQuantity: in.StockQuantity,
		ImageURL:      in.ImageURL,
		IsActive:      true,
		CategoryID:    in.CategoryID,
		OwnerID:       owner.ID,
	})
	if err != nil {
		logger.Error("failed to create item", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("item created", slog.Int64("itemID", item.ID))
	return item, nil
}

// UpdateItem доступен владельцу товара и администратору.
// Цена в уже созданных заказах не меняется: там хранится price_at_purchase.
func (s *catalogService) UpdateItem(ctx context.Context, actor *models.User, id int64, patch ItemPatch) (*models.Item, error) {
	const op = "service.CatalogService.UpdateItem"
	logger := s.log.With(slog.String("op", op), slog.Int64("itemID", id))

	item, err := s.itemRepo.GetItemByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrItemNotFound) {
			return nil, apperr.NotFound("item", id)
		}
		logger.Error("failed to get item", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if item.OwnerID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, apperr.Forbidden("not enough permissions")
	}

	if patch.Price != nil && !patch.Price.IsPositive() {
		return nil, apperr.Fields([]apperr.FieldError{{Field: "price", Message: "must be greater than 0"}})
	}
	applyItemPatch(item, patch)

	if err := s.itemRepo.UpdateItem(ctx, item); err != nil {
		if errors.Is(err, storage.ErrItemNotFound) {
			return nil, apperr.NotFound("item", id)
		}
		logger.Error("failed to update item", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("item updated")
	return item, nil
}

func applyItemPatch(item *models.Item, p ItemPatch) {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.Description != nil {
		item.Description = p.Description
	}
	if p.Price != nil {
		item.Price = *p.Price
	}
	if p.Brand != nil {
		item.Brand = p.Brand
	}
	if p.VolumeML != nil {
		item.VolumeML = p.VolumeML
	}
	if p.StockQuantity != nil {
		item.StockQuantity = *p.StockQuantity
	}
	if p.ImageURL != nil {
		item.ImageURL = p.ImageURL
	}
	if p.CategoryID != nil {
		item.CategoryID = p.CategoryID
	}
	if p.IsActive != nil {
		item.IsActive = *p.IsActive
	}
}
