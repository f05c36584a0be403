package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Whiteherobot/microservices-project/internal/domain"
)

var sagaTracer = otel.Tracer("orders/saga")

// ProductGateway is the product service as the saga sees it. Retry,
// timeout and circuit breaking happen behind this interface; the saga
// only observes success or a typed failure.
type ProductGateway interface {
	FindAndValidate(ctx context.Context, productID int64, quantity int) (domain.Product, error)
	DecreaseStock(ctx context.Context, productID int64, quantity int) error
	RestoreStock(ctx context.Context, productID int64, quantity int) error
}

type ShippingGateway interface {
	Quote(ctx context.Context, weight, distance float64) (float64, error)
}

type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Publishers are optional; a nil publisher disables that event.
type Publishers struct {
	OrderConfirmed     EventPublisher
	StockRestoreFailed EventPublisher
}

type CreateOrderInput struct {
	ProductID int64
	Quantity  int
	Weight    float64
	Distance  float64
}

func (in CreateOrderInput) validate() error {
	if in.ProductID <= 0 {
		return fmt.Errorf("%w: productId is required", domain.ErrInvalidInput)
	}
	if in.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidInput)
	}
	if in.Weight <= 0 {
		return fmt.Errorf("%w: weight must be positive", domain.ErrInvalidInput)
	}
	if in.Distance <= 0 {
		return fmt.Errorf("%w: distance must be positive", domain.ErrInvalidInput)
	}
	return nil
}

// Saga coordinates order creation across the product service, the
// shipping service and the local store. Steps run strictly in
// sequence; the only compensating action is restoring stock when
// persistence fails after a successful decrement.
type Saga struct {
	products   ProductGateway
	shipping   ShippingGateway
	store      OrderStore
	publishers Publishers
	logger     *slog.Logger

	confirmed       metric.Int64Counter
	failed          metric.Int64Counter
	restores        metric.Int64Counter
	restoreFailures metric.Int64Counter
}

func NewSaga(products ProductGateway, shipping ShippingGateway, store OrderStore, publishers Publishers, logger *slog.Logger) *Saga {
	meter := otel.Meter("orders/saga")

	confirmed, _ := meter.Int64Counter("saga.orders.confirmed",
		metric.WithDescription("Orders created and persisted"))
	failed, _ := meter.Int64Counter("saga.orders.failed",
		metric.WithDescription("Saga runs that ended in a typed failure"))
	restores, _ := meter.Int64Counter("saga.stock.restores",
		metric.WithDescription("Successful compensating stock restores"))
	restoreFailures, _ := meter.Int64Counter("saga.stock.restore_failures",
		metric.WithDescription("Compensating restores that exhausted retries"))

	return &Saga{
		products:        products,
		shipping:        shipping,
		store:           store,
		publishers:      publishers,
		logger:          logger,
		confirmed:       confirmed,
		failed:          failed,
		restores:        restores,
		restoreFailures: restoreFailures,
	}
}

// CreateOrder runs the saga: validate input, validate product and
// stock, quote shipping, decrease stock, persist the order.
//
// Failure before the decrement aborts with nothing to undo. Failure at
// persistence triggers one compensating restore; its outcome is logged
// but never changes the surfaced error.
func (s *Saga) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	ctx, span := sagaTracer.Start(ctx, "saga.create_order", trace.WithAttributes(
		attribute.Int64("order.product_id", in.ProductID),
		attribute.Int("order.quantity", in.Quantity),
	))
	defer span.End()

	order, err := s.run(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", failureReason(err))))
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", order.ID))
	s.confirmed.Add(ctx, 1)
	return order, nil
}

func (s *Saga) run(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	s.logger.Info("starting order creation",
		"product_id", in.ProductID, "quantity", in.Quantity,
		"weight", in.Weight, "distance", in.Distance)

	product, err := s.products.FindAndValidate(ctx, in.ProductID, in.Quantity)
	if err != nil {
		return nil, err
	}
	s.logger.Info("product validated", "product_id", product.ID, "name", product.Name, "stock", product.Stock)

	shippingCost, err := s.shipping.Quote(ctx, in.Weight, in.Distance)
	if err != nil {
		return nil, err
	}
	s.logger.Info("shipping cost quoted", "cost", shippingCost)

	if err := s.products.DecreaseStock(ctx, in.ProductID, in.Quantity); err != nil {
		// Nothing has been mutated that this saga owns: abort without
		// compensation. The decrement may still have landed remotely
		// (at-least-once), which is the product service's problem to
		// absorb, not ours to guess at.
		return nil, fmt.Errorf("%w: decrease stock: %w", domain.ErrOrderCreation, err)
	}
	s.logger.Info("stock decreased", "product_id", in.ProductID, "quantity", in.Quantity)

	order := &domain.Order{
		ProductID:    in.ProductID,
		Quantity:     in.Quantity,
		Destination:  "N/A",
		Subtotal:     product.UnitPrice * float64(in.Quantity),
		ShippingCost: shippingCost,
		Status:       domain.OrderStatusConfirmed,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.Create(ctx, order); err != nil {
		s.logger.Error("order persistence failed, compensating", "error", err, "product_id", in.ProductID)
		s.compensate(ctx, in, err)
		return nil, fmt.Errorf("%w: persist order: %w", domain.ErrOrderCreation, err)
	}

	s.logger.Info("order created", "order_id", order.ID, "total", order.Total())
	s.publishConfirmed(ctx, order)

	return order, nil
}

// compensate restores the decremented stock. Best effort: the restore
// has its own retry budget inside the gateway, and whatever happens the
// caller still sees the original persistence failure.
func (s *Saga) compensate(ctx context.Context, in CreateOrderInput, cause error) {
	if err := s.products.RestoreStock(ctx, in.ProductID, in.Quantity); err != nil {
		s.logger.Error("CRITICAL: stock restore failed, stock may be understated",
			"error", err, "product_id", in.ProductID, "quantity", in.Quantity)
		s.restoreFailures.Add(ctx, 1)
		s.publishRestoreFailed(ctx, in, err)
		return
	}

	s.logger.Info("stock restored after failed persistence",
		"product_id", in.ProductID, "quantity", in.Quantity, "cause", cause.Error())
	s.restores.Add(ctx, 1)
}

func (s *Saga) publishConfirmed(ctx context.Context, order *domain.Order) {
	if s.publishers.OrderConfirmed == nil {
		return
	}

	event := domain.OrderConfirmedEvent{
		OrderID:      order.ID,
		ProductID:    order.ProductID,
		Quantity:     order.Quantity,
		Subtotal:     order.Subtotal,
		ShippingCost: order.ShippingCost,
		Timestamp:    order.CreatedAt,
	}
	if err := s.publishers.OrderConfirmed.Publish(ctx, order.ID, event); err != nil {
		s.logger.Error("failed to publish order confirmed event", "error", err, "order_id", order.ID)
	}
}

func (s *Saga) publishRestoreFailed(ctx context.Context, in CreateOrderInput, cause error) {
	if s.publishers.StockRestoreFailed == nil {
		return
	}

	event := domain.StockRestoreFailedEvent{
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		Reason:    cause.Error(),
		Timestamp: time.Now().UTC(),
	}
	key := fmt.Sprintf("%d", in.ProductID)
	if err := s.publishers.StockRestoreFailed.Publish(ctx, key, event); err != nil {
		s.logger.Error("failed to publish stock restore failure", "error", err, "product_id", in.ProductID)
	}
}

// GetOrder and ListOrders expose the store reads alongside the saga so
// the handler has a single collaborator.
func (s *Saga) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Saga) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.store.List(ctx)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrOrderCreation):
		return "order_creation"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	default:
		return "unknown"
	}
}
