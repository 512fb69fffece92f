package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state managed from the admin dashboard.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderPreparing  OrderStatus = "preparing"
	OrderDelivering OrderStatus = "delivering"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderPreparing, OrderCancelled},
	OrderPreparing:  {OrderDelivering, OrderCancelled},
	OrderDelivering: {OrderDelivered, OrderCancelled},
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// CanTransitionTo reports whether the admin may move an order from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is a placed order. DraftID is generated by the client before the
// first submission attempt and makes retries idempotent.
type Order struct {
	ID           string          `json:"id"`
	DraftID      string          `json:"draft_id"`
	CustomerName string          `json:"customer_name"`
	Phone        string          `json:"phone"`
	Address      string          `json:"address"`
	Notes        string          `json:"notes,omitempty"`
	Latitude     *float64        `json:"latitude,omitempty"`
	Longitude    *float64        `json:"longitude,omitempty"`
	CouponCode   string          `json:"coupon_code,omitempty"`
	SubtotalIQD  decimal.Decimal `json:"subtotal_iqd"`
	DiscountIQD  decimal.Decimal `json:"discount_iqd"`
	TotalIQD     decimal.Decimal `json:"total_iqd"`
	TotalUSD     decimal.Decimal `json:"total_usd"`
	Status       OrderStatus     `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// OrderItem is one line of a placed order.
type OrderItem struct {
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	NameAr    string          `json:"name_ar"`
	NameEn    string          `json:"name_en"`
	Quantity  int             `json:"quantity"`
	PriceIQD  decimal.Decimal `json:"price_iqd"`
	PriceUSD  decimal.Decimal `json:"price_usd"`
}

// OrderFilter narrows ListOrders. Zero values match everything.
type OrderFilter struct {
	Status OrderStatus
	Limit  int
}

// OrderBackend is the order side of the backend: coupon validation, order
// creation and stock decrement procedures plus admin order management.
type OrderBackend interface {
	CreateCoupon(ctx context.Context, coupon Coupon) error
	ValidateCoupon(ctx context.Context, code string, subtotalIQD decimal.Decimal) (decimal.Decimal, error)

	// CreateOrder inserts order unless one with the same DraftID exists, in
	// which case the stored order is returned with created == false.
	CreateOrder(ctx context.Context, order Order) (stored Order, created bool, err error)
	// OrderByDraft fails with an OrderNotFoundError when no order carries draftID.
	OrderByDraft(ctx context.Context, draftID string) (Order, error)
	// InsertOrderItems ignores items already recorded for the order.
	InsertOrderItems(ctx context.Context, orderID string, items []OrderItem) error
	// DecrementStock is applied at most once per order and product.
	DecrementStock(ctx context.Context, orderID, productID string, quantity int) error

	GetOrder(ctx context.Context, id string) (Order, []OrderItem, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status OrderStatus) error
}
