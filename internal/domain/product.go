package domain

// Product is a read-only snapshot from the product service. Stock may
// be stale by the time a decrement is issued; the product service owns
// the authoritative count.
type Product struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"price"`
	Stock     int     `json:"stock"`
}
