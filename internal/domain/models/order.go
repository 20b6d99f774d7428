package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus статус заказа
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// допустимые переходы статусов; delivered и cancelled - конечные
var statusTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {},
	StatusCancelled: {},
}

// Valid проверяет, что статус известен
func (s OrderStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransitionTo проверяет переход from -> to по графу статусов
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal - из статуса нет переходов
func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(statusTransitions[s]) == 0
}

// Order представляет заказ; после создания меняются только Status и UpdatedAt
type Order struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"order_number"`
	Status          OrderStatus     `json:"status"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	ShippingAddress string          `json:"shipping_address"`
	Notes           *string         `json:"notes,omitempty"`
	UserID          int64           `json:"user_id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Lines           []OrderLine     `json:"items,omitempty"`
}

// OrderLine позиция заказа с замороженной ценой
type OrderLine struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"-"`
	ItemID          int64           `json:"item_id"`
	ItemName        string          `json:"item_name"` // заполняется через JOIN с таблицей items
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

// LineTotal стоимость позиции по цене на момент покупки
func (l OrderLine) LineTotal() decimal.Decimal {
	return l.PriceAtPurchase.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
