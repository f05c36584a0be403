package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/Whiteherobot/microservices-project/internal/domain"
)

type fakeProducts struct {
	catalog       []domain.Product
	listErr       error
	decreaseErr   error
	restoreErr    error
	decreaseCalls []int
	restoreCalls  []int
}

func (f *fakeProducts) FindAndValidate(ctx context.Context, productID int64, quantity int) (domain.Product, error) {
	if f.listErr != nil {
		return domain.Product{}, f.listErr
	}
	for _, p := range f.catalog {
		if p.ID == productID {
			if p.Stock < quantity {
				return domain.Product{}, fmt.Errorf("%w: product %d", domain.ErrInsufficientStock, productID)
			}
			return p, nil
		}
	}
	return domain.Product{}, fmt.Errorf("%w: product %d", domain.ErrProductNotFound, productID)
}

func (f *fakeProducts) DecreaseStock(ctx context.Context, productID int64, quantity int) error {
	if f.decreaseErr != nil {
		return f.decreaseErr
	}
	f.decreaseCalls = append(f.decreaseCalls, quantity)
	return nil
}

func (f *fakeProducts) RestoreStock(ctx context.Context, productID int64, quantity int) error {
	f.restoreCalls = append(f.restoreCalls, quantity)
	return f.restoreErr
}

type fakeShipping struct {
	cost  float64
	err   error
	calls int
}

func (f *fakeShipping) Quote(ctx context.Context, weight, distance float64) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.cost, nil
}

type fakeStore struct {
	orders    []domain.Order
	createErr error
}

func (f *fakeStore) Create(ctx context.Context, order *domain.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	order.ID = fmt.Sprintf("order-%d", len(f.orders)+1)
	f.orders = append(f.orders, *order)
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	for i := range f.orders {
		if f.orders[i].ID == id {
			return &f.orders[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) List(ctx context.Context) ([]domain.Order, error) {
	return f.orders, nil
}

type fakePublisher struct {
	events []any
}

func (f *fakePublisher) Publish(ctx context.Context, key string, event any) error {
	f.events = append(f.events, event)
	return nil
}

func laptopCatalog(stock int) []domain.Product {
	return []domain.Product{{ID: 1, Name: "Laptop", UnitPrice: 10.0, Stock: stock}}
}

func validInput() CreateOrderInput {
	return CreateOrderInput{ProductID: 1, Quantity: 2, Weight: 5.0, Distance: 100.0}
}

func newTestSaga(products *fakeProducts, shipping *fakeShipping, store *fakeStore, publishers Publishers) *Saga {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSaga(products, shipping, store, publishers, logger)
}

func TestSaga_CreateOrder(t *testing.T) {
	t.Run("happy path confirms and persists the order", func(t *testing.T) {
		products := &fakeProducts{catalog: laptopCatalog(5)}
		shipping := &fakeShipping{cost: 27.5}
		store := &fakeStore{}
		confirmed := &fakePublisher{}
		saga := newTestSaga(products, shipping, store, Publishers{OrderConfirmed: confirmed})

		order, err := saga.CreateOrder(context.Background(), validInput())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if order.ID == "" {
			t.Error("expected order id to be assigned")
		}
		if order.Status != domain.OrderStatusConfirmed {
			t.Errorf("expected CONFIRMED, got %s", order.Status)
		}
		if order.Subtotal != 20.0 {
			t.Errorf("expected subtotal 20.0, got %f", order.Subtotal)
		}
		if order.ShippingCost != 27.5 {
			t.Errorf("expected shipping cost 27.5, got %f", order.ShippingCost)
		}
		if order.Total() != 47.5 {
			t.Errorf("expected total 47.5, got %f", order.Total())
		}
		if len(products.decreaseCalls) != 1 || products.decreaseCalls[0] != 2 {
			t.Errorf("expected one decrement of 2, got %v", products.decreaseCalls)
		}
		if len(products.restoreCalls) != 0 {
			t.Errorf("expected no restores, got %v", products.restoreCalls)
		}
		if len(store.orders) != 1 {
			t.Fatalf("expected 1 persisted order, got %d", len(store.orders))
		}
		if len(confirmed.events) != 1 {
			t.Fatalf("expected 1 confirmed event, got %d", len(confirmed.events))
		}
		event, ok := confirmed.events[0].(domain.OrderConfirmedEvent)
		if !ok {
			t.Fatalf("unexpected event type %T", confirmed.events[0])
		}
		if event.OrderID != order.ID {
			t.Errorf("event order id mismatch: %s != %s", event.OrderID, order.ID)
		}
	})

	t.Run("rejects invalid input before any remote call", func(t *testing.T) {
		inputs := []CreateOrderInput{
			{ProductID: 0, Quantity: 2, Weight: 5, Distance: 100},
			{ProductID: 1, Quantity: 0, Weight: 5, Distance: 100},
			{ProductID: 1, Quantity: 2, Weight: 0, Distance: 100},
			{ProductID: 1, Quantity: 2, Weight: 5, Distance: -1},
		}

		for _, in := range inputs {
			products := &fakeProducts{catalog: laptopCatalog(5)}
			shipping := &fakeShipping{cost: 1}
			saga := newTestSaga(products, shipping, &fakeStore{}, Publishers{})

			_, err := saga.CreateOrder(context.Background(), in)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("input %+v: expected ErrInvalidInput, got %v", in, err)
			}
			if shipping.calls != 0 {
				t.Errorf("input %+v: expected no quote calls", in)
			}
			if len(products.decreaseCalls) != 0 {
				t.Errorf("input %+v: expected no decrement calls", in)
			}
		}
	})

	t.Run("propagates product not found with no decrement", func(t *testing.T) {
		products := &fakeProducts{catalog: laptopCatalog(5)}
		saga := newTestSaga(products, &fakeShipping{cost: 1}, &fakeStore{}, Publishers{})

		in := validInput()
		in.ProductID = 99
		_, err := saga.CreateOrder(context.Background(), in)
		if !errors.Is(err, domain.ErrProductNotFound) {
			t.Fatalf("expected ErrProductNotFound, got %v", err)
		}
		if len(products.decreaseCalls) != 0 {
			t.Errorf("expected no decrement calls, got %v", products.decreaseCalls)
		}
	})

	t.Run("propagates insufficient stock with no decrement", func(t *testing.T) {
		products := &fakeProducts{catalog: laptopCatalog(1)}
		saga := newTestSaga(products, &fakeShipping{cost: 1}, &fakeStore{}, Publishers{})

		_, err := saga.CreateOrder(context.Background(), validInput())
		if !errors.Is(err, domain.ErrInsufficientStock) {
			t.Fatalf("expected ErrInsufficientStock, got %v", err)
		}
		if len(products.decreaseCalls) != 0 {
			t.Errorf("expected no decrement calls, got %v", products.decreaseCalls)
		}
	})

	t.Run("propagates shipping unavailability with no decrement", func(t *testing.T) {
		products := &fakeProducts{catalog: laptopCatalog(5)}
		shipping := &fakeShipping{err: fmt.Errorf("%w: quote", domain.ErrUnavailable)}
		saga := newTestSaga(products, shipping, &fakeStore{}, Publishers{})

		_, err := saga.CreateOrder(context.Background(), validInput())
		if !errors.Is(err, domain.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
		if errors.Is(err, domain.ErrOrderCreation) {
			t.Fatalf("quote failure must not be wrapped as order creation: %v", err)
		}
		if len(products.decreaseCalls) != 0 {
			t.Errorf("expected no decrement calls, got %v", products.decreaseCalls)
		}
	})

	t.Run("decrement failure aborts without compensation", func(t *testing.T) {
		products := &fakeProducts{
			catalog:     laptopCatalog(5),
			decreaseErr: fmt.Errorf("%w: decrement", domain.ErrUnavailable),
		}
		store := &fakeStore{}
		saga := newTestSaga(products, &fakeShipping{cost: 1}, store, Publishers{})

		_, err := saga.CreateOrder(context.Background(), validInput())
		if !errors.Is(err, domain.ErrOrderCreation) {
			t.Fatalf("expected ErrOrderCreation, got %v", err)
		}
		if len(products.restoreCalls) != 0 {
			t.Errorf("expected no restore calls, got %v", products.restoreCalls)
		}
		if len(store.orders) != 0 {
			t.Errorf("expected no persisted orders, got %d", len(store.orders))
		}
	})

	t.Run("persistence failure triggers exactly one restore", func(t *testing.T) {
		products := &fakeProducts{catalog: laptopCatalog(5)}
		store := &fakeStore{createErr: errors.New("insert failed")}
		saga := newTestSaga(products, &fakeShipping{cost: 1}, store, Publishers{})

		_, err := saga.CreateOrder(context.Background(), validInput())
		if !errors.Is(err, domain.ErrOrderCreation) {
			t.Fatalf("expected ErrOrderCreation, got %v", err)
		}
		if len(products.restoreCalls) != 1 || products.restoreCalls[0] != 2 {
			t.Errorf("expected one restore of 2, got %v", products.restoreCalls)
		}
	})

	t.Run("restore failure does not change the surfaced error", func(t *testing.T) {
		products := &fakeProducts{
			catalog:    laptopCatalog(5),
			restoreErr: fmt.Errorf("%w: restore", domain.ErrUnavailable),
		}
		store := &fakeStore{createErr: errors.New("insert failed")}
		incidents := &fakePublisher{}
		saga := newTestSaga(products, &fakeShipping{cost: 1}, store, Publishers{StockRestoreFailed: incidents})

		_, err := saga.CreateOrder(context.Background(), validInput())
		if !errors.Is(err, domain.ErrOrderCreation) {
			t.Fatalf("expected ErrOrderCreation, got %v", err)
		}
		if len(products.restoreCalls) != 1 {
			t.Errorf("expected one restore attempt, got %v", products.restoreCalls)
		}
		if len(incidents.events) != 1 {
			t.Fatalf("expected 1 restore failure record, got %d", len(incidents.events))
		}
		event, ok := incidents.events[0].(domain.StockRestoreFailedEvent)
		if !ok {
			t.Fatalf("unexpected event type %T", incidents.events[0])
		}
		if event.ProductID != 1 || event.Quantity != 2 {
			t.Errorf("unexpected event payload: %+v", event)
		}
	})
}
