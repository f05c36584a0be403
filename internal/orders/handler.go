package orders

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Whiteherobot/microservices-project/internal/domain"
)

type Handler struct {
	saga   *Saga
	db     *sql.DB
	logger *slog.Logger
}

func NewHandler(saga *Saga, db *sql.DB, logger *slog.Logger) *Handler {
	return &Handler{
		saga:   saga,
		db:     db,
		logger: logger,
	}
}

type createOrderRequest struct {
	ProductID int64   `json:"productId"`
	Quantity  int     `json:"quantity"`
	Weight    float64 `json:"weight"`
	Distance  float64 `json:"distance"`
}

type orderResponse struct {
	ID           string  `json:"id"`
	ProductID    int64   `json:"productId"`
	Quantity     int     `json:"quantity"`
	Subtotal     float64 `json:"subtotal"`
	ShippingCost float64 `json:"shippingCost"`
	Total        float64 `json:"total"`
	Status       string  `json:"status"`
}

func toOrderResponse(order *domain.Order) orderResponse {
	return orderResponse{
		ID:           order.ID,
		ProductID:    order.ProductID,
		Quantity:     order.Quantity,
		Subtotal:     order.Subtotal,
		ShippingCost: order.ShippingCost,
		Total:        order.Total(),
		Status:       string(order.Status),
	}
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The key is observational only: logged and traced, not used for
	// deduplication. Replays with the same key may create new orders.
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		h.logger.Info("processing order with idempotency key", "idempotency_key", key)
		trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("order.idempotency_key", key))
	}

	order, err := h.saga.CreateOrder(r.Context(), CreateOrderInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Weight:    req.Weight,
		Distance:  req.Distance,
	})
	if err != nil {
		h.writeSagaError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.saga.GetOrder(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.saga.ListOrders(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	responses := make([]orderResponse, 0, len(orders))
	for i := range orders {
		responses = append(responses, toOrderResponse(&orders[i]))
	}

	h.writeJSON(w, http.StatusOK, responses)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "database connection failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "up"})
}

// writeSagaError maps the saga's error taxonomy onto HTTP statuses.
// Compensation failures never appear here: the caller only ever sees
// the order-creation failure itself.
func (h *Handler) writeSagaError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrProductNotFound):
		h.logger.Warn("product not found", "error", err)
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		h.logger.Warn("insufficient stock", "error", err)
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrOrderCreation):
		h.logger.Error("order creation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "order creation failed")
	case errors.Is(err, domain.ErrUnavailable):
		h.logger.Error("dependency unavailable", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "external service unavailable")
	default:
		h.logger.Error("unexpected error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
