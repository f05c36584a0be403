package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Whiteherobot/microservices-project/internal/domain"
)

// Handler records stock restore failures for operational follow-up.
// When a compensating restore exhausts its retries the product stock is
// understated until someone corrects it; this is the durable trail an
// operator works from. It deliberately does not retry the restore
// itself.
type Handler struct {
	logger    *slog.Logger
	incidents metric.Int64Counter
}

func NewHandler(logger *slog.Logger) *Handler {
	meter := otel.Meter("reconcile")

	incidents, _ := meter.Int64Counter("reconcile.stock.incidents",
		metric.WithDescription("Stock restore failures awaiting manual reconciliation"))

	return &Handler{
		logger:    logger,
		incidents: incidents,
	}
}

// Handle consumes one stock.restore.failed event. Malformed payloads
// are logged and dropped rather than blocking the partition.
func (h *Handler) Handle(ctx context.Context, payload []byte) error {
	var event domain.StockRestoreFailedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("dropping malformed stock restore event", "error", err, "payload", string(payload))
		return nil
	}

	h.logger.Warn("stock restore failed, manual reconciliation required",
		"product_id", event.ProductID,
		"quantity", event.Quantity,
		"reason", event.Reason,
		"occurred_at", event.Timestamp)

	h.incidents.Add(ctx, 1, metric.WithAttributes(
		attribute.Int64("product_id", event.ProductID),
	))

	return nil
}
