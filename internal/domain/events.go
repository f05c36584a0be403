package domain

import "time"

// OrderConfirmedEvent is published after an order is persisted.
type OrderConfirmedEvent struct {
	OrderID      string    `json:"order_id"`
	ProductID    int64     `json:"product_id"`
	Quantity     int       `json:"quantity"`
	Subtotal     float64   `json:"subtotal"`
	ShippingCost float64   `json:"shipping_cost"`
	Timestamp    time.Time `json:"timestamp"`
}

// StockRestoreFailedEvent records a compensation that exhausted its
// retries. Stock for the product may be understated until someone
// reconciles it by hand.
type StockRestoreFailedEvent struct {
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
