package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order is the persisted record of a successful saga run. It is built
// by the orchestrator and never mutated after insertion.
type Order struct {
	ID           string      `json:"id"`
	ProductID    int64       `json:"productId"`
	Quantity     int         `json:"quantity"`
	Destination  string      `json:"destination"`
	Subtotal     float64     `json:"subtotal"`
	ShippingCost float64     `json:"shippingCost"`
	Status       OrderStatus `json:"status"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Total is the amount charged to the customer: product subtotal plus
// shipping.
func (o *Order) Total() float64 {
	return o.Subtotal + o.ShippingCost
}
