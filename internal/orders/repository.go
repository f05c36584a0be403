package orders

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/Whiteherobot/microservices-project/internal/domain"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order and assigns its id. The order is never
// updated afterwards.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	order.ID = uuid.New().String()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (id, product_id, quantity, destination, subtotal, shipping_cost, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, order.ID, order.ProductID, order.Quantity, order.Destination,
		order.Subtotal, order.ShippingCost, order.Status, order.CreatedAt)

	return err
}

// GetByID returns (nil, nil) when no order exists with the given id.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, product_id, quantity, destination, subtotal, shipping_cost, status, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.ProductID, &order.Quantity, &order.Destination,
		&order.Subtotal, &order.ShippingCost, &order.Status, &order.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return order, nil
}

// List returns all orders, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, quantity, destination, subtotal, shipping_cost, status, created_at
		FROM orders
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.ProductID, &order.Quantity, &order.Destination,
			&order.Subtotal, &order.ShippingCost, &order.Status, &order.CreatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
