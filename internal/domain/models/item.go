package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item представляет товар (парфюм) в каталоге
type Item struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   *string         `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Brand         *string         `json:"brand,omitempty"`
	VolumeML      *int            `json:"volume_ml,omitempty"`
	StockQuantity int             `json:"stock_quantity"`
	ImageURL      *string         `json:"image_url,omitempty"`
	IsActive      bool            `json:"is_active"`
	CategoryID    *int64          `json:"category_id,omitempty"`
	OwnerID       int64           `json:"owner_id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ItemFilter фильтры и пагинация для каталога
type ItemFilter struct {
	CategoryID *int64
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Search     string
	InStock    *bool
	Page       int
	PageSize   int
}
