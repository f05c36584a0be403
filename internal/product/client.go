package product

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Whiteherobot/microservices-project/internal/domain"
	"github.com/Whiteherobot/microservices-project/internal/resilience"
)

// Client talks to the product service. Each remote operation runs
// under its own resilience policy; stock restoration gets a separate
// policy with a higher retry budget because it is the saga's only
// compensating action.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	listPolicy     *resilience.Policy[[]domain.Product]
	decreasePolicy *resilience.Policy[struct{}]
	restorePolicy  *resilience.Policy[struct{}]
}

type Policies struct {
	List     resilience.Config
	Decrease resilience.Config
	Restore  resilience.Config
}

func NewClient(baseURL string, httpClient *http.Client, policies Policies, logger *slog.Logger) *Client {
	return &Client{
		baseURL:        baseURL,
		httpClient:     httpClient,
		logger:         logger,
		listPolicy:     resilience.NewPolicy[[]domain.Product]("product.list", policies.List, logger),
		decreasePolicy: resilience.NewPolicy[struct{}]("product.decrease_stock", policies.Decrease, logger),
		restorePolicy:  resilience.NewPolicy[struct{}]("product.restore_stock", policies.Restore, logger),
	}
}

// List fetches the full catalog.
func (c *Client) List(ctx context.Context) ([]domain.Product, error) {
	return c.listPolicy.Execute(ctx, c.fetchProducts)
}

// FindAndValidate fetches the catalog and checks that productID exists
// with at least quantity units in stock. The check runs on a snapshot:
// it is not atomic with a later decrement, and the product service
// remains the authority on stock.
func (c *Client) FindAndValidate(ctx context.Context, productID int64, quantity int) (domain.Product, error) {
	products, err := c.List(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	for _, p := range products {
		if p.ID != productID {
			continue
		}
		if p.Stock < quantity {
			return domain.Product{}, fmt.Errorf("%w: product %d has %d units, requested %d",
				domain.ErrInsufficientStock, productID, p.Stock, quantity)
		}
		return p, nil
	}

	return domain.Product{}, fmt.Errorf("%w: product %d", domain.ErrProductNotFound, productID)
}

// DecreaseStock removes quantity units from the product's stock.
func (c *Client) DecreaseStock(ctx context.Context, productID int64, quantity int) error {
	_, err := c.decreasePolicy.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.postDecreaseStock(ctx, productID, quantity)
	})
	return err
}

// RestoreStock puts quantity units back by decreasing with a negated
// amount. Used only for compensation.
func (c *Client) RestoreStock(ctx context.Context, productID int64, quantity int) error {
	c.logger.Warn("restoring stock", "product_id", productID, "quantity", quantity)
	_, err := c.restorePolicy.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.postDecreaseStock(ctx, productID, -quantity)
	})
	return err
}

func (c *Client) fetchProducts(ctx context.Context) ([]domain.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/products", nil)
	if err != nil {
		return nil, fmt.Errorf("create list request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: list products: %v", domain.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: product service returned status %d", domain.ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("product service returned status %d", resp.StatusCode)
	}

	var products []domain.Product
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		return nil, fmt.Errorf("decode product list: %w", err)
	}

	return products, nil
}

func (c *Client) postDecreaseStock(ctx context.Context, productID int64, quantity int) error {
	url := fmt.Sprintf("%s/v1/products/%d/decrease-stock?quantity=%d",
		c.baseURL, productID, quantity)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("create decrease-stock request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: decrease stock for product %d: %v", domain.ErrUnavailable, productID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: product service returned status %d", domain.ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("product service rejected stock change for product %d: status %d", productID, resp.StatusCode)
	}

	return nil
}
