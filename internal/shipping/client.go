package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Whiteherobot/microservices-project/internal/domain"
	"github.com/Whiteherobot/microservices-project/internal/resilience"
)

// Client quotes shipping costs from the shipping service.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger
	quotePolicy *resilience.Policy[float64]
}

func NewClient(baseURL string, httpClient *http.Client, policy resilience.Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL:     baseURL,
		httpClient:  httpClient,
		logger:      logger,
		quotePolicy: resilience.NewPolicy[float64]("shipping.quote", policy, logger),
	}
}

type quoteRequest struct {
	Weight   float64 `json:"weight"`
	Distance float64 `json:"distance"`
}

type quoteResponse struct {
	Cost float64 `json:"cost"`
}

// Quote returns the shipping cost for a weight/distance pair.
func (c *Client) Quote(ctx context.Context, weight, distance float64) (float64, error) {
	return c.quotePolicy.Execute(ctx, func(ctx context.Context) (float64, error) {
		return c.fetchQuote(ctx, weight, distance)
	})
}

func (c *Client) fetchQuote(ctx context.Context, weight, distance float64) (float64, error) {
	body, err := json.Marshal(quoteRequest{Weight: weight, Distance: distance})
	if err != nil {
		return 0, fmt.Errorf("marshal quote request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/shipping/calculate", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create quote request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: quote shipping: %v", domain.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return 0, fmt.Errorf("%w: shipping service returned status %d", domain.ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("shipping service returned status %d", resp.StatusCode)
	}

	var quote quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return 0, fmt.Errorf("decode quote response: %w", err)
	}

	return quote.Cost, nil
}
