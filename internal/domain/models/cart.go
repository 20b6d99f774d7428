package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine позиция корзины: уникальна для пары (пользователь, товар)
type CartLine struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"-"`
	ItemID   int64     `json:"item_id"`
	Quantity int       `json:"quantity"`
	AddedAt  time.Time `json:"added_at"`
	Item     Item      `json:"item"` // заполняется через JOIN с таблицей items
}

// LineTotal стоимость позиции по текущей цене товара
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Item.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
